package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/zombor/fridgetrack/internal/detection"
)

var (
	// ErrEmptyUpload is returned when a scan upload has no data
	ErrEmptyUpload = errors.New("uploaded file is empty")

	// ErrInvalidImage is returned when an upload cannot be decoded as an image
	ErrInvalidImage = errors.New("invalid image")

	// ErrNoItemsDetected is returned when no detector found anything in a scan
	ErrNoItemsDetected = errors.New("no items detected in image")

	// ErrInvalidStatus is returned for a status other than active, consumed or wasted
	ErrInvalidStatus = errors.New("invalid status")

	// ErrItemNotFound is returned when an inventory item does not exist
	ErrItemNotFound = errors.New("item not found")

	// ErrImageNotFound is returned when an item's photo is missing from storage
	ErrImageNotFound = errors.New("image not found")
)

// Status is the lifecycle state of an inventory item
type Status string

const (
	StatusActive   Status = "active"
	StatusConsumed Status = "consumed"
	StatusWasted   Status = "wasted"
)

// ParseStatus validates a status string
func ParseStatus(s string) (Status, error) {
	switch status := Status(s); status {
	case StatusActive, StatusConsumed, StatusWasted:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q (must be one of: active, consumed, wasted)", ErrInvalidStatus, s)
	}
}

// InventoryItem is one food item found by a scan
type InventoryItem struct {
	ID              string        `json:"id" bson:"_id"`
	UserID          string        `json:"user_id" bson:"user_id"`
	ItemName        string        `json:"item_name" bson:"item_name"`
	ExpirationDate  *time.Time    `json:"expiration_date" bson:"expiration_date,omitempty"` // set once, at creation
	DetectedAt      time.Time     `json:"detected_at" bson:"detected_at"`
	ConfidenceScore float64       `json:"confidence_score" bson:"confidence_score"`
	ImageReference  string        `json:"image_reference" bson:"image_reference"`
	Quantity        int           `json:"quantity" bson:"quantity"`
	Category        string        `json:"category,omitempty" bson:"category,omitempty"`
	Status          Status        `json:"status" bson:"status"`
	ScanID          string        `json:"scan_id" bson:"scan_id"`
	BoundingBox     detection.Box `json:"bounding_box" bson:"bounding_box"`
	UpdatedAt       time.Time     `json:"updated_at" bson:"updated_at"`
}

// ScanRecord describes one scan invocation
type ScanRecord struct {
	ID             string    `json:"id" bson:"_id"`
	UserID         string    `json:"user_id" bson:"user_id"`
	ScannedAt      time.Time `json:"scanned_at" bson:"scanned_at"`
	ItemsDetected  int       `json:"items_detected" bson:"items_detected"`
	Items          []string  `json:"items" bson:"items"`
	ImageReference string    `json:"image_reference" bson:"image_reference"`
	ProcessingTime float64   `json:"processing_time" bson:"processing_time"` // seconds
}
