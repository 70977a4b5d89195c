package extract

import (
	"bytes"
	"context"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
)

const (
	defaultSampleBytes = 64 << 10
	maxTextBytes       = 8 << 20
)

// Source opens a file body.
type Source interface {
	Open(ctx context.Context, e models.FileEntry) (io.ReadCloser, error)
}

// Text extracts plain-text files. Bodies that are not valid UTF-8 are
// decoded as EUC-KR.
type Text struct {
	src Source
}

// NewText creates a plain-text extractor over src.
func NewText(src Source) *Text {
	return &Text{src: src}
}

// Preview implements Extractor.
func (t *Text) Preview(ctx context.Context, e models.FileEntry) (string, error) {
	return t.read(ctx, e, maxTextBytes)
}

// Sample implements Extractor. It reads a byte-bounded prefix.
func (t *Text) Sample(ctx context.Context, e models.FileEntry, b Budget) (string, error) {
	limit := b.MaxBytes
	if limit <= 0 {
		limit = defaultSampleBytes
	}
	return t.read(ctx, e, limit)
}

// Full implements Extractor.
func (t *Text) Full(ctx context.Context, e models.FileEntry, b Budget) (string, error) {
	return t.read(ctx, e, maxTextBytes)
}

func (t *Text) read(ctx context.Context, e models.FileEntry, limit int64) (string, error) {
	rc, err := t.src.Open(ctx, e)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return "", err
	}
	return decodeText(data), nil
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	// A byte cap may split the last rune.
	if trimmed := trimPartialRune(data); utf8.Valid(trimmed) {
		return string(trimmed)
	}
	out, err := korean.EUCKR.NewDecoder().Bytes(data)
	if err != nil {
		return string(bytes.ToValidUTF8(data, nil))
	}
	return string(out)
}

func trimPartialRune(data []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(data) > 0; i++ {
		r, size := utf8.DecodeLastRune(data)
		if r != utf8.RuneError || size != 1 {
			return data
		}
		data = data[:len(data)-1]
	}
	return data
}

var _ Extractor = (*Text)(nil)
