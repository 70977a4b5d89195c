// Package extract defines the content extraction contract and the
// extension registry that dispatches to per-format extractors.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
)

// ErrExtraction marks a per-file extraction failure. Callers treat it as
// empty content.
var ErrExtraction = errors.New("extraction failed")

// UnsupportedError is returned for extensions with no registered extractor.
type UnsupportedError struct {
	Name      string
	Extension models.Extension
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported format %s (%s)", e.Extension, e.Name)
}

// IsUnsupported reports whether err is an UnsupportedError.
func IsUnsupported(err error) (*UnsupportedError, bool) {
	var ue *UnsupportedError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// Budget bounds one sample or full extraction. Deadline is advisory: an
// extractor that cannot be interrupted may overrun it.
type Budget struct {
	Deadline  time.Time
	Pages     int   // document pages to read, 0 = all
	OCRPages  int   // pages to OCR when text is missing
	OCRStride int   // OCR every n-th page in full extraction
	AllowOCR  bool
	MaxBytes  int64 // byte cap for stream formats, 0 = extractor default
}

// Extractor turns a file into text.
type Extractor interface {
	// Preview returns rendering-quality text for the result card.
	Preview(ctx context.Context, e models.FileEntry) (string, error)
	// Sample returns a cheap partial text for first-pass scoring.
	Sample(ctx context.Context, e models.FileEntry, b Budget) (string, error)
	// Full returns a deeper extraction for last-resort scoring.
	Full(ctx context.Context, e models.FileEntry, b Budget) (string, error)
}
