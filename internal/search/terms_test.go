package search

import (
	"slices"
	"testing"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
)

func TestTerms(t *testing.T) {
	got := Terms("예산 보고")
	for _, want := range []string{"예산", "보고", "예산보고", "산보", "예산보", "산보고"} {
		if !slices.Contains(got, want) {
			t.Errorf("Terms missing %q: %v", want, got)
		}
	}
	if !slices.IsSorted(got) {
		t.Errorf("terms not sorted: %v", got)
	}
	if len(Terms("  ")) != 0 {
		t.Error("blank query should have no terms")
	}
	if got := Terms("a"); len(got) != 0 {
		t.Errorf("single character query should have no terms, got %v", got)
	}
}

func TestTerms_NormalizesWidthAndCase(t *testing.T) {
	got := Terms("ＲＥＰＯＲＴ")
	if !slices.Contains(got, "report") {
		t.Errorf("expected NFKC folded term, got %v", got)
	}
}

func TestScoreInText(t *testing.T) {
	tests := []struct {
		text  string
		terms []string
		want  int
	}{
		{"예산 예산", []string{"예산"}, 6},
		{"예 산", []string{"예산"}, 2},
		{"Budget", []string{"budget"}, 3},
		{"nothing here", []string{"예산"}, 0},
		{"anything", nil, 0},
	}
	for _, tt := range tests {
		if got := ScoreInText(tt.text, tt.terms); got != tt.want {
			t.Errorf("ScoreInText(%q, %v) = %d, want %d", tt.text, tt.terms, got, tt.want)
		}
	}
}

func TestExtFilter(t *testing.T) {
	tests := []struct {
		query string
		want  []models.Extension
	}{
		{"2024 보고서", nil},
		{"보고서 PDF", []models.Extension{models.ExtPDF}},
		{"회의록 hwp", []models.Extension{models.ExtHWP, models.ExtHWPX}},
		{"excel 매출", []models.Extension{".xls", models.ExtXLSX}},
		{"word or txt", []models.Extension{models.ExtDOCX, models.ExtTXT}},
		{"pdfs", nil},
		{"한글pdf", nil},
		{"ppt", []models.Extension{models.ExtPPT, models.ExtPPTX}},
	}
	for _, tt := range tests {
		if got := ExtFilter(tt.query); !slices.Equal(got, tt.want) {
			t.Errorf("ExtFilter(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestNameHit(t *testing.T) {
	e := models.NewFileEntry("1", "분기 예산.txt", "/재무/", "F1")
	if !nameHit(e, Terms("예산")) {
		t.Error("expected name hit")
	}
	if !nameHit(e, Terms("재무")) {
		t.Error("expected path hit")
	}
	if nameHit(e, Terms("회의록")) {
		t.Error("unexpected hit")
	}
}

func TestQuantizedIndices(t *testing.T) {
	for n := 1; n <= 40; n++ {
		for k := 1; k <= n; k++ {
			got := QuantizedIndices(n, k)
			if len(got) != k {
				t.Fatalf("n=%d k=%d: expected %d indices, got %v", n, k, k, got)
			}
			for i := 1; i < len(got); i++ {
				if got[i] <= got[i-1] {
					t.Fatalf("n=%d k=%d: not strictly increasing: %v", n, k, got)
				}
			}
			if got[0] != 0 {
				t.Fatalf("n=%d k=%d: missing first index: %v", n, k, got)
			}
			if k >= 2 && got[len(got)-1] != n-1 {
				t.Fatalf("n=%d k=%d: missing last index: %v", n, k, got)
			}
		}
	}
	if got := QuantizedIndices(3, 10); !slices.Equal(got, []int{0, 1, 2}) {
		t.Errorf("cap above n should take all, got %v", got)
	}
	if got := QuantizedIndices(0, 3); got != nil {
		t.Errorf("empty list should give nil, got %v", got)
	}
}

func TestSamplePool_GroupsFormats(t *testing.T) {
	var ranked []models.FileEntry
	for i := 0; i < 10; i++ {
		ranked = append(ranked, models.NewFileEntry(string(rune('a'+i)), "f.pdf", "/", "F1"))
	}
	ranked = append(ranked,
		models.NewFileEntry("h1", "a.hwp", "/", "F1"),
		models.NewFileEntry("h2", "b.hwpx", "/", "F1"),
		models.NewFileEntry("z", "c.zip", "/", "F1"),
	)
	pool := samplePool(ranked, Caps{PDF: 3, HWP: 5})
	var ids []string
	for _, e := range pool {
		ids = append(ids, e.ID)
	}
	want := []string{"h1", "h2", "a", "f", "j"}
	if !slices.Equal(ids, want) {
		t.Errorf("samplePool = %v, want %v", ids, want)
	}
}
