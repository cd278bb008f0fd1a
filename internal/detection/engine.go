package detection

import (
	"context"
	"log/slog"
	"math"

	"github.com/zombor/fridgetrack/internal/imaging"
)

// Engine runs an ordered chain of detection providers.
//
// The chain is fixed at construction. With no providers the engine is in mock mode and
// serves synthetic detections. With providers, an image that every provider fails on or
// finds nothing in yields an empty result; mock detections are never mixed with real ones.
type Engine struct {
	providers []Provider
	mock      *MockGenerator
}

// NewEngine creates an engine trying providers in order. mock is only used when
// providers is empty; a nil mock in that case makes every Detect call return nothing.
func NewEngine(providers []Provider, mock *MockGenerator) *Engine {
	chain := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			chain = append(chain, p)
		}
	}
	return &Engine{providers: chain, mock: mock}
}

// MockMode reports whether the engine generates synthetic detections
func (e *Engine) MockMode() bool {
	return len(e.providers) == 0 && e.mock != nil
}

// Primary returns the name of the first provider in the chain, "mock" or "none"
func (e *Engine) Primary() string {
	switch {
	case len(e.providers) > 0:
		return e.providers[0].Name()
	case e.mock != nil:
		return "mock"
	default:
		return "none"
	}
}

// Providers returns the provider names in fallback order
func (e *Engine) Providers() []string {
	names := make([]string, 0, len(e.providers))
	for _, p := range e.providers {
		names = append(names, p.Name())
	}
	return names
}

// Detect finds items in img with confidence at or above threshold. It never fails:
// provider errors are logged and the next provider is tried. Thresholds below 0 are
// treated as 0; thresholds above 1 or NaN match nothing.
func (e *Engine) Detect(ctx context.Context, img *imaging.Image, threshold float64) []Detection {
	detections := []Detection{}
	if img == nil {
		slog.Warn("Detect called without an image")
		return detections
	}
	if threshold > 1 || math.IsNaN(threshold) {
		return detections
	}
	threshold = max(threshold, 0)

	if e.MockMode() {
		for _, d := range e.mock.Generate(img.Width, img.Height) {
			if d.Confidence >= threshold {
				detections = append(detections, d)
			}
		}
		slog.Info("Generated mock detections", "count", len(detections))
		return detections
	}

	for _, provider := range e.providers {
		if err := ctx.Err(); err != nil {
			slog.Warn("Detection cancelled", "provider", provider.Name(), "error", err)
			return detections
		}

		predictions, err := provider.Predict(ctx, img, threshold)
		if err != nil {
			slog.Warn("Detection provider failed", "provider", provider.Name(), "stage", "detect", "error", err)
			continue
		}

		for _, p := range predictions {
			d, ok := Normalize(p, img.Width, img.Height)
			if !ok || d.Confidence < threshold {
				continue
			}
			detections = append(detections, d)
		}

		if len(detections) > 0 {
			slog.Info("Detected items", "provider", provider.Name(), "count", len(detections))
			return detections
		}
		slog.Warn("Detection provider returned no items", "provider", provider.Name(), "stage", "detect")
	}

	return detections
}
