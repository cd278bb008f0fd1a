package expiry

import (
	"context"
	"log/slog"
	"time"

	"github.com/zombor/fridgetrack/internal/imaging"
)

// MinSpanConfidence is the OCR confidence below which text is ignored
const MinSpanConfidence = 0.5

// TextSpan is one piece of recognized text
type TextSpan struct {
	Text       string
	Confidence float64
}

// OCR reads printed text from an image
type OCR interface {
	ReadText(ctx context.Context, png []byte) ([]TextSpan, error)
}

// Extractor reads expiration dates off cropped item images with OCR
type Extractor struct {
	ocr OCR
	now func() time.Time
}

// NewExtractor creates an Extractor. A nil ocr makes every extraction come back empty.
func NewExtractor(ocr OCR) *Extractor {
	return &Extractor{ocr: ocr, now: time.Now}
}

// Available reports whether an OCR engine is configured
func (e *Extractor) Available() bool {
	return e.ocr != nil
}

// ExtractDate returns the first future date printed on region. It does not escalate to
// other readers when nothing is found.
func (e *Extractor) ExtractDate(ctx context.Context, region *imaging.Image) (time.Time, bool) {
	if e.ocr == nil || region == nil {
		return time.Time{}, false
	}

	spans, err := e.ocr.ReadText(ctx, region.PNG)
	if err != nil {
		slog.Warn("OCR failed", "provider", "ocr", "stage", "extract_date", "error", err)
		return time.Time{}, false
	}

	texts := make([]string, 0, len(spans))
	for _, span := range spans {
		if span.Confidence >= MinSpanConfidence {
			texts = append(texts, span.Text)
		}
	}
	if len(texts) == 0 {
		return time.Time{}, false
	}

	return FindExpirationDateAt(texts, e.now())
}
