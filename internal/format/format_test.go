package format

import (
	"strings"
	"testing"
)

func TestRender_Found(t *testing.T) {
	f := New(0)
	got := f.Render(Record{
		Name:      "report_2024.pdf",
		Path:      "/2024/",
		Extension: ".pdf",
		URL:       "https://example.dooray.com/preview-pages/drives/f1",
		Preview:   "  매출 보고서  ",
	})
	want := strings.Join([]string{
		"__TOP1_NAME__=report_2024.pdf",
		"__TOP1_PATH__=/2024/",
		"__TOP1_EXT__=.pdf",
		"__TOP1_URL__=https://example.dooray.com/preview-pages/drives/f1",
		"__TOP1_PREVIEW__=매출 보고서",
	}, "\n")
	if got != want {
		t.Errorf("unexpected render:\n%s\nwant:\n%s", got, want)
	}
}

func TestRender_NotFoundUsesPlaceholders(t *testing.T) {
	got := New(0).Render(NotFoundInScope("예산"))
	lines := strings.Split(got, "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 lines, got %d: %q", len(lines), got)
	}
	for _, l := range lines[:5] {
		if !strings.HasSuffix(l, "=-") {
			t.Errorf("expected placeholder in %q", l)
		}
	}
	if lines[5] != "__MSG__=선택한 폴더 범위 내에서 '예산' 관련 파일을 찾지 못했습니다." {
		t.Errorf("unexpected message line %q", lines[5])
	}
}

func TestClip(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"가나다라마", 3, "가나다…"},
		{"exact", 5, "exact"},
		{"  padded  ", 6, "padded"},
	}
	for _, tt := range tests {
		if got := Clip(tt.in, tt.n); got != tt.want {
			t.Errorf("Clip(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestRender_ClipsLongPreview(t *testing.T) {
	f := New(1200)
	r := f.Clipped(Record{Name: "a.txt", Preview: strings.Repeat("x", 1500)})
	if n := len([]rune(r.Preview)); n != 1201 {
		t.Errorf("expected 1200 chars plus ellipsis, got %d", n)
	}
	if !strings.HasSuffix(r.Preview, "…") {
		t.Error("expected ellipsis marker")
	}
}

func TestFound(t *testing.T) {
	if NotFound("x").Found() {
		t.Error("negative record reported found")
	}
	if !(Record{Name: "a.txt"}).Found() {
		t.Error("record with a name should be found")
	}
}
