package search

import (
	"math"
	"slices"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
)

// Caps bounds how many candidates of each format group Stage B samples.
type Caps struct {
	TXT  int
	HWP  int
	PDF  int
	PPT  int
	XLSX int
	DOCX int
}

type group struct {
	exts []models.Extension
	cap  int
}

func (c Caps) groups() []group {
	return []group{
		{[]models.Extension{models.ExtTXT}, c.TXT},
		{[]models.Extension{models.ExtHWP, models.ExtHWPX}, c.HWP},
		{[]models.Extension{models.ExtPDF}, c.PDF},
		{[]models.Extension{models.ExtPPT, models.ExtPPTX}, c.PPT},
		{[]models.Extension{models.ExtXLSX}, c.XLSX},
		{[]models.Extension{models.ExtDOCX}, c.DOCX},
	}
}

// QuantizedIndices picks k indices evenly spaced over [0, n), always
// including both ends when k >= 2. With k >= n every index is returned.
func QuantizedIndices(n, k int) []int {
	if n <= 0 || k <= 0 {
		return nil
	}
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	if k == 1 {
		return []int{0}
	}
	out := make([]int, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, int(math.Round(float64(i)*float64(n-1)/float64(k-1))))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// samplePool selects, per format group, a quantized sample of ranked
// entries. ranked must already be sorted by name score.
func samplePool(ranked []models.FileEntry, caps Caps) []models.FileEntry {
	var pool []models.FileEntry
	for _, g := range caps.groups() {
		var members []models.FileEntry
		for _, e := range ranked {
			if hasExt(g.exts, e.Extension) {
				members = append(members, e)
			}
		}
		for _, i := range QuantizedIndices(len(members), g.cap) {
			pool = append(pool, members[i])
		}
	}
	return pool
}
