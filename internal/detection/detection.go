package detection

import (
	"context"
	"math"

	"github.com/zombor/fridgetrack/internal/imaging"
)

// Box is an axis-aligned region in pixel space: x1, y1, x2, y2
type Box [4]int

// Valid reports whether the box has a positive area
func (b Box) Valid() bool {
	return b[0] < b[2] && b[1] < b[3]
}

// Detection is one recognized item in an image
type Detection struct {
	ItemName    string  `json:"item_name"`
	Confidence  float64 `json:"confidence"`
	BoundingBox Box     `json:"bounding_box"`
	// IsFoodRelated is only set by backends with a known food-class allow-list
	IsFoodRelated *bool `json:"is_food_related,omitempty"`
}

// Geometry is a provider's raw description of where a prediction is
type Geometry interface {
	corners() (x1, y1, x2, y2 float64)
}

// Corners is corner-pair geometry
type Corners struct {
	X1, Y1, X2, Y2 float64
}

func (c Corners) corners() (float64, float64, float64, float64) {
	return c.X1, c.Y1, c.X2, c.Y2
}

// CenterSize is center point plus width/height geometry
type CenterSize struct {
	X, Y, Width, Height float64
}

func (c CenterSize) corners() (float64, float64, float64, float64) {
	return c.X - c.Width/2, c.Y - c.Height/2, c.X + c.Width/2, c.Y + c.Height/2
}

// Prediction is a raw provider result before normalization
type Prediction struct {
	ClassName   string
	Confidence  float64
	Geometry    Geometry
	FoodRelated *bool
}

// Provider is an object-detection capability
type Provider interface {
	// Name identifies the provider in logs and health output
	Name() string

	// Predict returns raw predictions at or above threshold
	Predict(ctx context.Context, img *imaging.Image, threshold float64) ([]Prediction, error)
}

// Normalize converts a prediction into a Detection with absolute corner coordinates
// clipped to a width x height image. It reports false when the geometry is degenerate
// or lies entirely outside the image.
func Normalize(p Prediction, width, height int) (Detection, bool) {
	if p.Geometry == nil {
		return Detection{}, false
	}
	fx1, fy1, fx2, fy2 := p.Geometry.corners()

	x1, x2, ok := span(fx1, fx2, width)
	if !ok {
		return Detection{}, false
	}
	y1, y2, ok := span(fy1, fy2, height)
	if !ok {
		return Detection{}, false
	}

	return Detection{
		ItemName:      p.ClassName,
		Confidence:    roundConfidence(p.Confidence),
		BoundingBox:   Box{x1, y1, x2, y2},
		IsFoodRelated: p.FoodRelated,
	}, true
}

// span rounds one axis of a box and clips it to [0, limit]. A limit of zero disables clipping.
func span(lo, hi float64, limit int) (int, int, bool) {
	if !(hi > lo) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 0, false
	}
	if limit > 0 && (lo >= float64(limit) || hi <= 0) {
		return 0, 0, false
	}

	a, b := int(math.Round(lo)), int(math.Round(hi))
	if limit > 0 {
		a = min(max(a, 0), limit)
		b = min(max(b, 0), limit)
	}
	if b <= a {
		// sub-pixel box, keep one pixel
		b = a + 1
		if limit > 0 && b > limit {
			a, b = limit-1, limit
		}
	}
	return a, b, true
}

func roundConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	c = min(max(c, 0), 1)
	return math.Round(c*1000) / 1000
}
