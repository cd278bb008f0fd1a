package inventory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/zombor/fridgetrack/internal/suggest"
)

const (
	DefaultExpiringDays = 3
	listLimit           = 100
	recipeItemLimit     = 50
	shoppingHistoryDays = 30

	moneyPerItem  = 3.0 // dollars saved per consumed item
	poundsPerItem = 0.5
	co2PerPound   = 0.8 // kg of CO2 per pound of food not wasted
)

// ItemList is a user's inventory for one status
type ItemList struct {
	UserID string           `json:"user_id"`
	Items  []*InventoryItem `json:"items"`
	Total  int              `json:"total"`
}

// ExpiringItem is an inventory item with the whole days left until it expires
type ExpiringItem struct {
	*InventoryItem
	DaysLeft int `json:"days_left"`
}

// Urgency counts expiring items by how soon they expire
type Urgency struct {
	Today    int `json:"today"`
	Tomorrow int `json:"tomorrow"`
	ThisWeek int `json:"this_week"`
}

// ExpiringReport lists items close to their expiration date
type ExpiringReport struct {
	UserID           string         `json:"user_id"`
	ExpiringItems    []ExpiringItem `json:"expiring_items"`
	TotalExpiring    int            `json:"total_expiring"`
	UrgencyBreakdown Urgency        `json:"urgency_breakdown"`
}

// RecipeReport holds recipes generated for expiring items
type RecipeReport struct {
	Recipes           []suggest.Recipe `json:"recipes"`
	ExpiringItemsUsed []string         `json:"expiring_items_used"`
	Message           string           `json:"message"`
}

// ShoppingList holds suggested purchases
type ShoppingList struct {
	UserID        string                       `json:"user_id"`
	ShoppingItems []suggest.ShoppingSuggestion `json:"shopping_items"`
	TotalItems    int                          `json:"total_items"`
	GeneratedAt   time.Time                    `json:"generated_at"`
}

// Stats summarizes a user's food waste impact
type Stats struct {
	TotalItemsTracked int     `json:"total_items_tracked"`
	ItemsSaved        int     `json:"items_saved"`
	ItemsWasted       int     `json:"items_wasted"`
	MoneySaved        float64 `json:"money_saved"`
	PoundsSaved       float64 `json:"pounds_saved"`
	CO2Saved          float64 `json:"co2_saved"`
}

// Health reports component status
type Health struct {
	Status     string           `json:"status"`
	Timestamp  time.Time        `json:"timestamp"`
	Database   string           `json:"database"`
	Components HealthComponents `json:"components"`
}

// HealthComponents reports which engines are configured
type HealthComponents struct {
	FoodDetector  string `json:"food_detector"`
	DateExtractor string `json:"date_extractor"`
	AI            string `json:"ai"`
}

// ListItems returns up to 100 of a user's items with the given status, newest first.
// An empty status means active.
func (s *Service) ListItems(ctx context.Context, userID string, status string) (*ItemList, error) {
	if status == "" {
		status = string(StatusActive)
	}
	parsed, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}

	items, err := s.db.FindItems(ctx, ItemFilter{UserID: userID, Status: parsed, Limit: listLimit})
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return &ItemList{UserID: userID, Items: items, Total: len(items)}, nil
}

// expiring returns active items expiring between today and today+days inclusive, soonest first
func (s *Service) expiring(ctx context.Context, userID string, days int, limit int) ([]*InventoryItem, time.Time, error) {
	start := today(s.timeSource.Now())
	end := start.AddDate(0, 0, days+1)

	items, err := s.db.FindItems(ctx, ItemFilter{
		UserID:        userID,
		Status:        StatusActive,
		ExpiresFrom:   &start,
		ExpiresBefore: &end,
	})
	if err != nil {
		return nil, start, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ExpirationDate.Before(*items[j].ExpirationDate)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, start, nil
}

// ExpiringItems reports active items expiring within days (3 when days is negative)
func (s *Service) ExpiringItems(ctx context.Context, userID string, days int) (*ExpiringReport, error) {
	if days < 0 {
		days = DefaultExpiringDays
	}

	items, start, err := s.expiring(ctx, userID, days, listLimit)
	if err != nil {
		return nil, fmt.Errorf("finding expiring items: %w", err)
	}

	report := &ExpiringReport{UserID: userID, ExpiringItems: make([]ExpiringItem, 0, len(items))}
	for _, item := range items {
		daysLeft := int(math.Round(today(*item.ExpirationDate).Sub(start).Hours() / 24))
		switch daysLeft {
		case 0:
			report.UrgencyBreakdown.Today++
		case 1:
			report.UrgencyBreakdown.Tomorrow++
		default:
			report.UrgencyBreakdown.ThisWeek++
		}
		report.ExpiringItems = append(report.ExpiringItems, ExpiringItem{InventoryItem: item, DaysLeft: daysLeft})
	}
	report.TotalExpiring = len(report.ExpiringItems)
	return report, nil
}

// RecipesForUser suggests recipes that use the user's expiring items
func (s *Service) RecipesForUser(ctx context.Context, userID string, days int) (*RecipeReport, error) {
	if days < 0 {
		days = DefaultExpiringDays
	}

	items, _, err := s.expiring(ctx, userID, days, recipeItemLimit)
	if err != nil {
		return nil, fmt.Errorf("finding expiring items: %w", err)
	}
	if len(items) == 0 {
		return &RecipeReport{
			Recipes:           []suggest.Recipe{},
			ExpiringItemsUsed: []string{},
			Message:           "No expiring items found. Your fridge is in good shape!",
		}, nil
	}

	names := uniqueNames(items)
	recipes := s.pipeline.Suggester.GenerateRecipes(ctx, names, suggest.DefaultRecipeCount)
	return &RecipeReport{
		Recipes:           recipes,
		ExpiringItemsUsed: names,
		Message:           fmt.Sprintf("Here are %d recipes using your expiring items!", len(recipes)),
	}, nil
}

// ShoppingList suggests purchases from current inventory and the last 30 days of scans
func (s *Service) ShoppingList(ctx context.Context, userID string) (*ShoppingList, error) {
	now := s.timeSource.Now()

	current, err := s.db.FindItems(ctx, ItemFilter{UserID: userID, Status: StatusActive, Limit: listLimit})
	if err != nil {
		return nil, fmt.Errorf("listing current items: %w", err)
	}

	scans, err := s.db.FindScans(ctx, userID, now.AddDate(0, 0, -shoppingHistoryDays))
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	if len(scans) > listLimit {
		scans = scans[:listLimit]
	}

	history := make([]suggest.ScanHistory, len(scans))
	for i, scan := range scans {
		history[i] = suggest.ScanHistory{ScanID: scan.ID, ScannedAt: scan.ScannedAt, Items: scan.Items}
	}

	suggestions := s.pipeline.Suggester.GenerateShoppingSuggestions(ctx, uniqueNames(current), history)
	return &ShoppingList{
		UserID:        userID,
		ShoppingItems: suggestions,
		TotalItems:    len(suggestions),
		GeneratedAt:   now,
	}, nil
}

// Stats counts tracked, consumed and wasted items and the resulting savings
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	total, err := s.db.CountItems(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}
	saved, err := s.db.CountItems(ctx, userID, StatusConsumed)
	if err != nil {
		return nil, fmt.Errorf("counting consumed items: %w", err)
	}
	wasted, err := s.db.CountItems(ctx, userID, StatusWasted)
	if err != nil {
		return nil, fmt.Errorf("counting wasted items: %w", err)
	}

	pounds := float64(saved) * poundsPerItem
	return &Stats{
		TotalItemsTracked: total,
		ItemsSaved:        saved,
		ItemsWasted:       wasted,
		MoneySaved:        round2(float64(saved) * moneyPerItem),
		PoundsSaved:       round2(pounds),
		CO2Saved:          round2(pounds * co2PerPound),
	}, nil
}

// Health checks the database and reports which engines are configured
func (s *Service) Health(ctx context.Context) *Health {
	h := &Health{
		Status:    "healthy",
		Timestamp: s.timeSource.Now().UTC(),
		Database:  "connected",
		Components: HealthComponents{
			FoodDetector:  s.pipeline.Detector.Primary(),
			DateExtractor: "unavailable",
			AI:            "unconfigured",
		},
	}
	if err := s.db.Ping(ctx); err != nil {
		h.Status = "degraded"
		h.Database = "disconnected"
	}
	if s.pipeline.OCR != nil && s.pipeline.OCR.Available() {
		h.Components.DateExtractor = "loaded"
	}
	if s.pipeline.Suggester.Available() {
		h.Components.AI = "loaded"
	}
	return h
}

func uniqueNames(items []*InventoryItem) []string {
	seen := make(map[string]bool, len(items))
	names := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item.ItemName] {
			continue
		}
		seen[item.ItemName] = true
		names = append(names, item.ItemName)
	}
	return names
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
