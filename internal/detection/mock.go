package detection

import (
	"math"
	"math/rand/v2"
)

var mockCatalog = []string{
	"milk", "eggs", "cheese", "yogurt", "butter",
	"apple", "banana", "orange", "strawberries", "grapes",
	"lettuce", "tomato", "carrot", "broccoli", "cucumber",
	"bell pepper", "onion", "chicken", "ground beef", "salmon",
	"ham", "bacon", "bread", "orange juice", "soda",
	"water bottle", "ketchup", "mustard", "leftovers", "hummus",
}

// MockGenerator produces synthetic detections for running without any detection backend.
// Output is deterministic for a given image size.
type MockGenerator struct {
	catalog  []string
	minItems int
	maxItems int
}

// NewMockGenerator creates a generator picking between minItems and maxItems catalog entries
func NewMockGenerator(minItems, maxItems int) *MockGenerator {
	minItems = min(max(minItems, 1), len(mockCatalog))
	maxItems = min(max(maxItems, minItems), len(mockCatalog))
	return &MockGenerator{
		catalog:  mockCatalog,
		minItems: minItems,
		maxItems: maxItems,
	}
}

// Generate returns detections tiled left to right across a width x height image
func (m *MockGenerator) Generate(width, height int) []Detection {
	if width <= 0 || height <= 0 {
		return []Detection{}
	}

	r := rand.New(rand.NewPCG(uint64(width), uint64(height)))

	count := m.minItems + r.IntN(m.maxItems-m.minItems+1)
	count = min(count, width)

	names := r.Perm(len(m.catalog))[:count]
	boxWidth := width / count

	detections := make([]Detection, 0, count)
	for i, idx := range names {
		x1 := i * boxWidth
		x2 := x1 + boxWidth
		if i == count-1 {
			x2 = width
		}
		confidence := 0.7 + r.Float64()*0.25
		detections = append(detections, Detection{
			ItemName:    m.catalog[idx],
			Confidence:  math.Round(confidence*1000) / 1000,
			BoundingBox: Box{x1, 0, x2, height},
		})
	}
	return detections
}
