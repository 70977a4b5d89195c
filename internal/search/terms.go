package search

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
)

// normalize applies NFKC, lower-cases, and keeps only letters and digits.
// Whitespace and punctuation are dropped so that queries written without
// word boundaries still match.
func normalize(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapse lower-cases s and folds whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func ngrams(s string, n int) []string {
	runes := []rune(s)
	if len(runes) < n {
		return nil
	}
	out := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		out = append(out, string(runes[i:i+n]))
	}
	return out
}

// Terms expands a query into normalized match terms: each whitespace token
// of at least two characters, the whole normalized query, and its 2-grams
// and 3-grams. The result is deduplicated and sorted.
func Terms(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(query) {
		if t := normalize(tok); utf8.RuneCountInString(t) >= 2 {
			set[t] = struct{}{}
		}
	}
	full := normalize(query)
	if utf8.RuneCountInString(full) >= 2 {
		set[full] = struct{}{}
	}
	for _, g := range ngrams(full, 2) {
		set[g] = struct{}{}
	}
	for _, g := range ngrams(full, 3) {
		set[g] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// ScoreInText counts term occurrences in text: raw lower-cased matches
// count once, matches in the normalized text count twice.
func ScoreInText(text string, terms []string) int {
	raw := strings.ToLower(text)
	normText := normalize(raw)
	score := 0
	for _, t := range terms {
		if tr := strings.ToLower(t); tr != "" {
			score += strings.Count(raw, tr)
		}
		if tn := normalize(t); tn != "" {
			score += 2 * strings.Count(normText, tn)
		}
	}
	return score
}

// nameScore ranks an entry's path and name against the terms.
func nameScore(e models.FileEntry, terms []string) int {
	raw := strings.ToLower(e.Path + " " + e.Name)
	normHay := normalize(raw)
	score := 0
	for _, t := range terms {
		score += strings.Count(raw, t) + 2*strings.Count(normHay, t)
	}
	return score
}

// nameHit reports whether the entry's name or path contains any term.
func nameHit(e models.FileEntry, terms []string) bool {
	raw := strings.ToLower(e.Name + " " + e.Path)
	normHay := normalize(e.Name + e.Path)
	for _, t := range terms {
		if strings.Contains(raw, t) || strings.Contains(normHay, t) {
			return true
		}
	}
	return false
}

var extWords = []struct {
	word string
	exts []models.Extension
}{
	{"pdf", []models.Extension{models.ExtPDF}},
	{"hwp", []models.Extension{models.ExtHWP, models.ExtHWPX}},
	{"ppt", []models.Extension{models.ExtPPT, models.ExtPPTX}},
	{"pptx", []models.Extension{models.ExtPPTX}},
	{"docx", []models.Extension{models.ExtDOCX}},
	{"word", []models.Extension{models.ExtDOCX}},
	{"txt", []models.Extension{models.ExtTXT}},
	{"excel", []models.Extension{models.ExtXLSX, ".xls"}},
	{"xlsx", []models.Extension{models.ExtXLSX}},
}

// ExtFilter returns the extensions named in the query ("pdf", "excel", ...)
// as whole words, or nil when none are named.
func ExtFilter(query string) []models.Extension {
	q := strings.ToLower(query)
	var out []models.Extension
	for _, w := range extWords {
		if containsWord(q, w.word) {
			out = append(out, w.exts...)
		}
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// containsWord reports whether word occurs in s bounded by non-word runes.
func containsWord(s, word string) bool {
	for i := 0; i <= len(s)-len(word); {
		j := strings.Index(s[i:], word)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(word)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(s) || !isWordRune(after)) {
			return true
		}
		i = start + 1
	}
	return false
}

func hasExt(exts []models.Extension, ext models.Extension) bool {
	return slices.Contains(exts, ext)
}
