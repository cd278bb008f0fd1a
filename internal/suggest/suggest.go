// Package suggest turns inventory into recipe ideas and shopping suggestions
// using a language model, with fixed fallbacks when the model is unavailable.
package suggest

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/zombor/fridgetrack/internal/scanning"
)

//go:embed recipes_prompt.md
var recipesPrompt string

//go:embed shopping_prompt.md
var shoppingPrompt string

var templateFuncs = template.FuncMap{"join": strings.Join}

var (
	recipesTemplate  = template.Must(template.New("recipes").Funcs(templateFuncs).Parse(recipesPrompt))
	shoppingTemplate = template.Must(template.New("shopping").Funcs(templateFuncs).Parse(shoppingPrompt))
)

// DefaultRecipeCount is used when no positive recipe count is requested
const DefaultRecipeCount = 3

// Recipe is a suggested way to use up expiring items
type Recipe struct {
	Name         string   `json:"name"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	PrepTime     string   `json:"prep_time"`
	ItemsUsed    []string `json:"items_used"`
}

// ShoppingSuggestion is an item worth buying and why
type ShoppingSuggestion struct {
	ItemName string `json:"item_name"`
	Reason   string `json:"reason"`
	Priority int    `json:"priority"`
}

// ScanHistory is the set of items seen in one past scan
type ScanHistory struct {
	ScanID    string
	ScannedAt time.Time
	Items     []string
}

// Generator builds suggestions with an optional language model
type Generator struct {
	text scanning.TextGenerator
}

// NewGenerator creates a Generator. A nil text generator makes every call use fallbacks.
func NewGenerator(text scanning.TextGenerator) *Generator {
	return &Generator{text: text}
}

// Available reports whether a language model is configured
func (g *Generator) Available() bool {
	return g.text != nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
