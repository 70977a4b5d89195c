// Package format renders a search outcome as the fixed key/value record the
// conversational layer consumes.
package format

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultClip is the preview length cap in characters.
const DefaultClip = 1200

const (
	placeholder = "-"
	ellipsis    = "…"
)

// Record is the single top result, or a negative outcome when Message is set.
type Record struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Extension string `json:"ext"`
	URL       string `json:"url"`
	Preview   string `json:"preview"`
	Message   string `json:"message,omitempty"`
}

// Found reports whether the record carries a result.
func (r Record) Found() bool {
	return r.Message == "" && r.Name != ""
}

// NotFound is the generic negative record.
func NotFound(query string) Record {
	return Record{Message: fmt.Sprintf("'%s' 관련 파일을 찾지 못했습니다.", query)}
}

// NotFoundInScope is the negative record for a restricted scope.
func NotFoundInScope(query string) Record {
	return Record{Message: fmt.Sprintf("선택한 폴더 범위 내에서 '%s' 관련 파일을 찾지 못했습니다.", query)}
}

// Clip trims s and cuts it to n characters, marking the cut with an ellipsis.
func Clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + ellipsis
}

// Formatter renders records.
type Formatter struct {
	clip int
}

// New creates a formatter clipping previews to clip characters.
func New(clip int) *Formatter {
	if clip <= 0 {
		clip = DefaultClip
	}
	return &Formatter{clip: clip}
}

// Clipped returns r with its preview clipped and empty fields set to the
// placeholder.
func (f *Formatter) Clipped(r Record) Record {
	r.Name = orPlaceholder(r.Name)
	r.Path = orPlaceholder(r.Path)
	r.Extension = orPlaceholder(r.Extension)
	r.URL = orPlaceholder(r.URL)
	r.Preview = orPlaceholder(Clip(r.Preview, f.clip))
	return r
}

// Render writes the KV block:
//
//	__TOP1_NAME__=...
//	__TOP1_PATH__=...
//	__TOP1_EXT__=...
//	__TOP1_URL__=...
//	__TOP1_PREVIEW__=...
//	__MSG__=...        (only when a message is set)
func (f *Formatter) Render(r Record) string {
	c := f.Clipped(r)
	lines := []string{
		"__TOP1_NAME__=" + c.Name,
		"__TOP1_PATH__=" + c.Path,
		"__TOP1_EXT__=" + c.Extension,
		"__TOP1_URL__=" + c.URL,
		"__TOP1_PREVIEW__=" + c.Preview,
	}
	if r.Message != "" {
		lines = append(lines, "__MSG__="+r.Message)
	}
	return strings.Join(lines, "\n")
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}
