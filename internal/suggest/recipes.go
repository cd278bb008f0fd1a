package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/zombor/fridgetrack/internal/scanning"
)

var (
	breakfastStaples = []string{"eggs", "egg", "milk", "bread"}
	smoothieStaples  = []string{"yogurt", "banana", "berries", "strawberry"}
)

// GenerateRecipes suggests up to maxCount recipes using items. It never fails: without a
// model, or when the model's answer cannot be used, fixed recipes matching items are returned.
func (g *Generator) GenerateRecipes(ctx context.Context, items []string, maxCount int) []Recipe {
	if len(items) == 0 {
		return []Recipe{}
	}
	if maxCount <= 0 {
		maxCount = DefaultRecipeCount
	}
	if g.text == nil {
		return fallbackRecipes(items, maxCount)
	}

	recipes, err := g.askRecipes(ctx, items, maxCount)
	if err != nil {
		slog.Warn("Recipe generation failed, using fallback recipes", "provider", "llm", "stage", "recipes", "error", err)
		return fallbackRecipes(items, maxCount)
	}

	if len(recipes) > maxCount {
		recipes = recipes[:maxCount]
	}
	return recipes
}

func (g *Generator) askRecipes(ctx context.Context, items []string, count int) ([]Recipe, error) {
	prompt, err := render(recipesTemplate, struct {
		Items []string
		Count int
	}{items, count})
	if err != nil {
		return nil, fmt.Errorf("rendering recipes prompt: %w", err)
	}

	text, err := g.text.AskText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("asking for recipes: %w", err)
	}

	var recipes []Recipe
	if err := scanning.ExtractJSON(text, &recipes); err != nil {
		return nil, err
	}
	if len(recipes) == 0 {
		return nil, fmt.Errorf("model returned no recipes")
	}

	for i := range recipes {
		recipes[i].normalize()
		if recipes[i].ItemsUsed == nil {
			recipes[i].ItemsUsed = mentionedItems(recipes[i], items)
		}
	}
	return recipes, nil
}

func (r *Recipe) normalize() {
	if r.Ingredients == nil {
		r.Ingredients = []string{}
	}
	if r.Instructions == nil {
		r.Instructions = []string{}
	}
}

// mentionedItems returns the items named anywhere in the recipe
func mentionedItems(recipe Recipe, items []string) []string {
	data, err := json.Marshal(recipe)
	if err != nil {
		return []string{}
	}
	content := strings.ToLower(string(data))

	used := []string{}
	for _, item := range items {
		if name := strings.ToLower(strings.TrimSpace(item)); name != "" && strings.Contains(content, name) {
			used = append(used, item)
		}
	}
	return used
}

func fallbackRecipes(items []string, maxCount int) []Recipe {
	recipes := []Recipe{}

	if used := matching(items, breakfastStaples); len(used) > 0 {
		recipes = append(recipes, Recipe{
			Name:        "Quick Breakfast Scramble",
			Ingredients: []string{"eggs", "milk", "bread", "butter", "salt", "pepper"},
			Instructions: []string{
				"Beat eggs with a splash of milk",
				"Heat butter in a pan over medium heat",
				"Pour in egg mixture and gently scramble",
				"Serve with toasted bread",
			},
			PrepTime:  "10 minutes",
			ItemsUsed: used,
		})
	}

	if used := matching(items, smoothieStaples); len(used) > 0 {
		recipes = append(recipes, Recipe{
			Name:        "Fruit Smoothie",
			Ingredients: []string{"yogurt", "banana", "berries", "honey"},
			Instructions: []string{
				"Add all ingredients to a blender",
				"Blend until smooth",
				"Pour into a glass and enjoy",
			},
			PrepTime:  "5 minutes",
			ItemsUsed: used,
		})
	}

	if len(recipes) > maxCount {
		recipes = recipes[:maxCount]
	}
	return recipes
}

func matching(items, staples []string) []string {
	var used []string
	for _, item := range items {
		if slices.Contains(staples, strings.ToLower(strings.TrimSpace(item))) {
			used = append(used, item)
		}
	}
	return used
}
