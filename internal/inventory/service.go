package inventory

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/fridgetrack/internal/detection"
	"github.com/zombor/fridgetrack/internal/expiry"
	"github.com/zombor/fridgetrack/internal/imaging"
	"github.com/zombor/fridgetrack/internal/suggest"
)

// DefaultUserID is used when a request does not name a user
const DefaultUserID = "demo_user"

// IDGenerator generates unique IDs for items and scans
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Detector finds food items in an image
type Detector interface {
	Detect(ctx context.Context, img *imaging.Image, threshold float64) []detection.Detection
	Primary() string
}

// DateExtractor reads a printed expiration date off an item crop
type DateExtractor interface {
	ExtractDate(ctx context.Context, region *imaging.Image) (time.Time, bool)
	Available() bool
}

// DateReader is the vision-model date reader used for low-confidence detections
type DateReader interface {
	ReadDate(ctx context.Context, region *imaging.Image) (time.Time, bool)
	Available() bool
}

// DateEstimator estimates an expiration date from an item name
type DateEstimator interface {
	EstimateDate(ctx context.Context, itemName string) time.Time
}

// Suggester generates recipes and shopping suggestions
type Suggester interface {
	GenerateRecipes(ctx context.Context, items []string, maxCount int) []suggest.Recipe
	GenerateShoppingSuggestions(ctx context.Context, current []string, history []suggest.ScanHistory) []suggest.ShoppingSuggestion
	Available() bool
}

// Pipeline holds the engines a scan runs through. Detector is required; a nil
// Estimator falls back to the static shelf-life table.
type Pipeline struct {
	Detector  Detector
	Threshold float64
	OCR       DateExtractor
	Vision    DateReader
	Estimator DateEstimator
	Suggester Suggester
}

// Service handles inventory operations
type Service struct {
	db          DB
	storage     Storage
	pipeline    Pipeline
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, storage Storage, pipeline Pipeline) *Service {
	return NewServiceWithDeps(db, storage, pipeline, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, pipeline Pipeline, idGen IDGenerator, timeSrc TimeSource) *Service {
	if pipeline.Estimator == nil {
		pipeline.Estimator = expiry.NewEstimator(nil, nil)
	}
	if pipeline.Suggester == nil {
		pipeline.Suggester = suggest.NewGenerator(nil)
	}
	return &Service{
		db:          db,
		storage:     storage,
		pipeline:    pipeline,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
	unsafeUserChars     = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	ext = unsafeFilenameChars.ReplaceAllString(ext[min(len(ext), 1):], "")
	if ext != "" {
		ext = "." + ext
	}

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(repeatedSpaces.ReplaceAllString(base, " "))

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "scan"
	}

	return base + ext
}

func sanitizeUserID(userID string) string {
	return unsafeUserChars.ReplaceAllString(userID, "-")
}

func today(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// GetItem retrieves an item by ID
func (s *Service) GetItem(ctx context.Context, id string) (*InventoryItem, error) {
	item, err := s.db.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// GetItemImage returns the photo an item was detected in, with its sniffed content type
func (s *Service) GetItemImage(ctx context.Context, id string) ([]byte, string, error) {
	item, err := s.db.GetItem(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("getting item: %w", err)
	}
	if item.ImageReference == "" {
		return nil, "", fmt.Errorf("%w: item %s has no image", ErrImageNotFound, id)
	}

	data, err := s.storage.Get(ctx, item.ImageReference)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrImageNotFound, err)
	}
	return data, http.DetectContentType(data), nil
}

// UpdateItemStatus changes the status of an item. The expiration date is never touched.
func (s *Service) UpdateItemStatus(ctx context.Context, id string, status string) (Status, error) {
	parsed, err := ParseStatus(status)
	if err != nil {
		return "", err
	}
	if err := s.db.UpdateItemStatus(ctx, id, parsed, s.timeSource.Now()); err != nil {
		return "", fmt.Errorf("updating item status: %w", err)
	}
	return parsed, nil
}
