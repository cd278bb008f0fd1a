package expiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/fridgetrack/internal/cache"
	"github.com/zombor/fridgetrack/internal/scanning"
)

const (
	shelfLifeTTL     = 24 * time.Hour
	maxShelfLifeDays = 3650
)

var firstInteger = regexp.MustCompile(`\d+`)

// Estimator guesses an expiration date from an item name alone
type Estimator struct {
	text  scanning.TextGenerator
	cache cache.Cache
	now   func() time.Time
}

// NewEstimator creates an Estimator. text and c may both be nil; without a model only the
// shelf-life table is used.
func NewEstimator(text scanning.TextGenerator, c cache.Cache) *Estimator {
	return &Estimator{text: text, cache: c, now: time.Now}
}

// EstimateDate returns today plus the expected shelf life of itemName. It always returns a date.
func (e *Estimator) EstimateDate(ctx context.Context, itemName string) time.Time {
	now := e.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return today.AddDate(0, 0, e.shelfLifeDays(ctx, itemName, today))
}

func (e *Estimator) shelfLifeDays(ctx context.Context, itemName string, today time.Time) int {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if e.text == nil || name == "" {
		return ShelfLifeDays(name)
	}

	// estimates are pinned per day so repeated scans agree
	key := fmt.Sprintf("shelf-life:%s:%s", today.Format(time.DateOnly), name)
	if e.cache != nil {
		if data, err := e.cache.Get(ctx, key); err == nil {
			if days, err := strconv.Atoi(string(data)); err == nil && days > 0 {
				return days
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			slog.Warn("Shelf life cache read failed", "stage", "estimate_date", "item", name, "error", err)
		}
	}

	days, err := e.askShelfLife(ctx, name)
	if err != nil {
		slog.Warn("Shelf life estimate failed", "provider", "llm", "stage", "estimate_date", "item", name, "error", err)
		return ShelfLifeDays(name)
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, []byte(strconv.Itoa(days)), shelfLifeTTL); err != nil {
			slog.Warn("Shelf life cache write failed", "stage", "estimate_date", "item", name, "error", err)
		}
	}
	return days
}

func (e *Estimator) askShelfLife(ctx context.Context, name string) (int, error) {
	prompt := fmt.Sprintf(`How many days does %s typically last in the refrigerator?
Respond with ONLY a whole number of days, nothing else.`, name)

	text, err := e.text.AskText(ctx, prompt)
	if err != nil {
		return 0, fmt.Errorf("asking for shelf life: %w", err)
	}

	match := firstInteger.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("no number in response %q", text)
	}
	days, err := strconv.Atoi(match)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", match, err)
	}
	if days <= 0 || days > maxShelfLifeDays {
		return 0, fmt.Errorf("implausible shelf life of %d days", days)
	}
	return days, nil
}
