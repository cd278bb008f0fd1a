package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zombor/fridgetrack/internal/scanning"
)

const (
	minPriority = 1
	maxPriority = 5
)

// GenerateShoppingSuggestions suggests items to buy given what is in the fridge now and
// what past scans found. Any failure yields an empty list.
func (g *Generator) GenerateShoppingSuggestions(ctx context.Context, current []string, history []ScanHistory) []ShoppingSuggestion {
	if g.text == nil {
		return []ShoppingSuggestion{}
	}

	suggestions, err := g.askShopping(ctx, current, history)
	if err != nil {
		slog.Warn("Shopping suggestions failed", "provider", "llm", "stage", "shopping", "error", err)
		return []ShoppingSuggestion{}
	}
	return suggestions
}

func (g *Generator) askShopping(ctx context.Context, current []string, history []ScanHistory) ([]ShoppingSuggestion, error) {
	var recent []string
	for _, scan := range history {
		recent = append(recent, scan.Items...)
	}

	prompt, err := render(shoppingTemplate, struct {
		Current []string
		Recent  []string
	}{current, recent})
	if err != nil {
		return nil, fmt.Errorf("rendering shopping prompt: %w", err)
	}

	text, err := g.text.AskText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("asking for shopping suggestions: %w", err)
	}

	var parsed []ShoppingSuggestion
	if err := scanning.ExtractJSON(text, &parsed); err != nil {
		return nil, err
	}

	suggestions := make([]ShoppingSuggestion, 0, len(parsed))
	for _, s := range parsed {
		s.ItemName = strings.TrimSpace(s.ItemName)
		if s.ItemName == "" {
			continue
		}
		s.Priority = min(max(s.Priority, minPriority), maxPriority)
		suggestions = append(suggestions, s)
	}
	return suggestions, nil
}
