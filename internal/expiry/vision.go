package expiry

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/zombor/fridgetrack/internal/imaging"
	"github.com/zombor/fridgetrack/internal/scanning"
)

const visionDatePrompt = `Look for an expiration date, best by date, or use by date in this image.
Respond with ONLY the date in format MM/DD/YYYY.
If no date is found, respond with "NO DATE FOUND".`

// VisionDateReader asks a vision-language model for the date printed on an item
type VisionDateReader struct {
	vision scanning.Vision
	now    func() time.Time
}

// NewVisionDateReader creates a reader. A nil vision model makes every read come back empty.
func NewVisionDateReader(vision scanning.Vision) *VisionDateReader {
	return &VisionDateReader{vision: vision, now: time.Now}
}

// Available reports whether a vision model is configured
func (r *VisionDateReader) Available() bool {
	return r.vision != nil
}

// ReadDate returns the future date the model reads off region
func (r *VisionDateReader) ReadDate(ctx context.Context, region *imaging.Image) (time.Time, bool) {
	if r.vision == nil || region == nil {
		return time.Time{}, false
	}

	text, err := r.vision.Ask(ctx, region.PNG, visionDatePrompt)
	if err != nil {
		slog.Warn("Vision date read failed", "provider", "vision", "stage", "read_date", "error", err)
		return time.Time{}, false
	}
	if strings.Contains(strings.ToUpper(text), "NO DATE") {
		return time.Time{}, false
	}

	return FindExpirationDateAt([]string{text}, r.now())
}
