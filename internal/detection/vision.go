package detection

import (
	"context"
	"fmt"
	"strings"

	"github.com/zombor/fridgetrack/internal/imaging"
	"github.com/zombor/fridgetrack/internal/scanning"
)

const visionDetectPrompt = `Analyze this refrigerator image and list all visible food items.

For each item, provide:
1. Item name (be specific, e.g., "milk carton", "apple", "cheese block")
2. Confidence level (0.0 to 1.0)

Return ONLY a JSON array like this:
[
  {"item_name": "milk", "confidence": 0.95},
  {"item_name": "eggs", "confidence": 0.90}
]

Only include food items you can clearly see. Be concise.`

const visionDefaultConfidence = 0.8

// VisionDetector asks a vision-language model for the items in an image.
// Models do not return locations, so boxes are tiled across the image width.
type VisionDetector struct {
	name   string
	vision scanning.Vision
}

// NewVisionDetector wraps vision as a Provider reported under name
func NewVisionDetector(name string, vision scanning.Vision) *VisionDetector {
	return &VisionDetector{name: name, vision: vision}
}

// Name implements Provider
func (v *VisionDetector) Name() string {
	return v.name
}

// Predict implements Provider
func (v *VisionDetector) Predict(ctx context.Context, img *imaging.Image, threshold float64) ([]Prediction, error) {
	text, err := v.vision.Ask(ctx, img.PNG, visionDetectPrompt)
	if err != nil {
		return nil, fmt.Errorf("asking vision model: %w", err)
	}

	var items []struct {
		ItemName   string   `json:"item_name"`
		Confidence *float64 `json:"confidence"`
	}
	if err := scanning.ExtractJSON(text, &items); err != nil {
		return nil, fmt.Errorf("parsing vision detections: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	boxWidth := float64(img.Width) / float64(len(items))
	predictions := make([]Prediction, 0, len(items))
	for i, item := range items {
		name := strings.ToLower(strings.TrimSpace(item.ItemName))
		if name == "" {
			name = "unknown"
		}
		confidence := visionDefaultConfidence
		if item.Confidence != nil {
			confidence = *item.Confidence
		}
		predictions = append(predictions, Prediction{
			ClassName:  name,
			Confidence: confidence,
			Geometry: Corners{
				X1: float64(i) * boxWidth,
				Y1: 0,
				X2: float64(i+1) * boxWidth,
				Y2: float64(img.Height),
			},
		})
	}
	return predictions, nil
}
