package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zombor/fridgetrack/internal/detection"
	"github.com/zombor/fridgetrack/internal/expiry"
	"github.com/zombor/fridgetrack/internal/imaging"
)

const (
	// visionEscalationConfidence is the detection confidence below which an OCR miss
	// is retried with the vision model
	visionEscalationConfidence = 0.7

	dateWorkers = 4
	dateLayout  = "2006-01-02"
)

// ScannedItem is one detection in a scan result
type ScannedItem struct {
	ItemName       string        `json:"item_name"`
	Confidence     float64       `json:"confidence"`
	BoundingBox    detection.Box `json:"bounding_box"`
	ExpirationDate *string       `json:"expiration_date"`
}

// ScanResult is returned to the client after a scan
type ScanResult struct {
	ScanID                string        `json:"scan_id"`
	ItemsDetected         []ScannedItem `json:"items_detected"`
	TotalItems            int           `json:"total_items"`
	ProcessingTimeSeconds float64       `json:"processing_time_seconds"`
	Message               string        `json:"message"`
}

// ProcessScan stores an uploaded fridge photo, detects the items in it, works out an
// expiration date for each and persists them with a scan record
func (s *Service) ProcessScan(ctx context.Context, userID, filename string, data []byte, contentType string) (*ScanResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}
	if userID == "" {
		userID = DefaultUserID
	}

	start := s.timeSource.Now()
	scanID := s.idGenerator.Generate()

	name := fmt.Sprintf("%s_%d_%s", sanitizeUserID(userID), start.UnixNano(), sanitizeFilename(filename))
	ref, err := s.storage.Save(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}

	img, err := imaging.Load(data, contentType)
	if err != nil {
		slog.Error("Failed to decode upload",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.discard(ctx, ref)
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	detections := s.pipeline.Detector.Detect(ctx, img, s.pipeline.Threshold)
	if len(detections) == 0 {
		s.discard(ctx, ref)
		return nil, ErrNoItemsDetected
	}

	dates, err := s.extractDates(ctx, img, detections)
	if err != nil {
		s.discard(ctx, ref)
		return nil, fmt.Errorf("extracting dates: %w", err)
	}

	detectedAt := s.timeSource.Now()
	items := make([]*InventoryItem, len(detections))
	names := make([]string, len(detections))
	scanned := make([]ScannedItem, len(detections))
	for i, d := range detections {
		items[i] = &InventoryItem{
			ID:              s.idGenerator.Generate(),
			UserID:          userID,
			ItemName:        d.ItemName,
			ExpirationDate:  dates[i],
			DetectedAt:      detectedAt,
			ConfidenceScore: d.Confidence,
			ImageReference:  ref,
			Quantity:        1,
			Category:        expiry.Category(d.ItemName),
			Status:          StatusActive,
			ScanID:          scanID,
			BoundingBox:     d.BoundingBox,
			UpdatedAt:       detectedAt,
		}
		names[i] = d.ItemName

		scanned[i] = ScannedItem{
			ItemName:    d.ItemName,
			Confidence:  d.Confidence,
			BoundingBox: d.BoundingBox,
		}
		if dates[i] != nil {
			formatted := dates[i].Format(dateLayout)
			scanned[i].ExpirationDate = &formatted
		}
	}

	if err := s.db.SaveItems(ctx, items); err != nil {
		s.discard(ctx, ref)
		return nil, fmt.Errorf("saving items: %w", err)
	}

	processing := math.Round(s.timeSource.Now().Sub(start).Seconds()*100) / 100
	scan := &ScanRecord{
		ID:             scanID,
		UserID:         userID,
		ScannedAt:      start,
		ItemsDetected:  len(items),
		Items:          names,
		ImageReference: ref,
		ProcessingTime: processing,
	}
	if err := s.db.SaveScan(ctx, scan); err != nil {
		// the items are stored and still reference the upload, so it is kept
		slog.Error("Saved items without a scan record", "scan_id", scanID, "user_id", userID, "items", len(items), "error", err)
		return nil, fmt.Errorf("saving scan: %w", err)
	}

	slog.Info("Processed scan", "scan_id", scanID, "user_id", userID, "items", len(items), "seconds", processing)

	return &ScanResult{
		ScanID:                scanID,
		ItemsDetected:         scanned,
		TotalItems:            len(scanned),
		ProcessingTimeSeconds: processing,
		Message:               fmt.Sprintf("Successfully detected %d items!", len(scanned)),
	}, nil
}

// extractDates resolves an expiration date for every detection. It only fails when ctx is done.
func (s *Service) extractDates(ctx context.Context, img *imaging.Image, detections []detection.Detection) ([]*time.Time, error) {
	dates := make([]*time.Time, len(detections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dateWorkers)
	for i, d := range detections {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			date := s.itemDate(gctx, img, d)
			dates[i] = &date
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dates, nil
}

// itemDate tries OCR on the in-memory crop, falling back to the vision model for
// low-confidence detections and finally to an estimate
func (s *Service) itemDate(ctx context.Context, img *imaging.Image, d detection.Detection) time.Time {
	region := detection.Crop(img, d.BoundingBox, detection.DefaultPadding)

	if s.pipeline.OCR != nil {
		if date, ok := s.pipeline.OCR.ExtractDate(ctx, region); ok {
			return date
		}
	}
	if s.pipeline.Vision != nil && d.Confidence < visionEscalationConfidence {
		if date, ok := s.pipeline.Vision.ReadDate(ctx, region); ok {
			return date
		}
	}
	return s.pipeline.Estimator.EstimateDate(ctx, d.ItemName)
}

// discard removes an upload that will not be referenced by any record
func (s *Service) discard(ctx context.Context, ref string) {
	if err := s.storage.Delete(context.WithoutCancel(ctx), ref); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Failed to delete upload", "ref", ref, "error", err)
	}
}
