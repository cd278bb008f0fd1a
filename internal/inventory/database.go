package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	itemsBucketName = "inventory_items"
	scansBucketName = "scans"
)

// ItemFilter selects inventory items. Zero fields match everything.
type ItemFilter struct {
	UserID string
	Status Status

	// ExpiresFrom and ExpiresBefore bound the expiration date, inclusive and exclusive.
	// Items without an expiration date never match a bounded filter.
	ExpiresFrom   *time.Time
	ExpiresBefore *time.Time

	Limit int
}

func (f ItemFilter) matches(item *InventoryItem) bool {
	if f.UserID != "" && item.UserID != f.UserID {
		return false
	}
	if f.Status != "" && item.Status != f.Status {
		return false
	}
	if f.ExpiresFrom != nil || f.ExpiresBefore != nil {
		if item.ExpirationDate == nil {
			return false
		}
		if f.ExpiresFrom != nil && item.ExpirationDate.Before(*f.ExpiresFrom) {
			return false
		}
		if f.ExpiresBefore != nil && !item.ExpirationDate.Before(*f.ExpiresBefore) {
			return false
		}
	}
	return true
}

// DB defines the interface for inventory persistence
type DB interface {
	// SaveItems stores new inventory items
	SaveItems(ctx context.Context, items []*InventoryItem) error

	// GetItem retrieves an item by ID, returning ErrItemNotFound if it does not exist
	GetItem(ctx context.Context, id string) (*InventoryItem, error)

	// UpdateItemStatus changes only the status of an item
	UpdateItemStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error

	// FindItems returns matching items, most recently detected first
	FindItems(ctx context.Context, filter ItemFilter) ([]*InventoryItem, error)

	// CountItems counts a user's items, optionally restricted to one status
	CountItems(ctx context.Context, userID string, status Status) (int, error)

	// SaveScan stores a scan record
	SaveScan(ctx context.Context, scan *ScanRecord) error

	// FindScans returns a user's scans at or after since, most recent first
	FindScans(ctx context.Context, userID string, since time.Time) ([]*ScanRecord, error)

	// Ping checks that the database is reachable
	Ping(ctx context.Context) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(itemsBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(scansBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveItems stores all items in one transaction
func (b *BoltDB) SaveItems(ctx context.Context, items []*InventoryItem) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(itemsBucketName))
		for _, item := range items {
			data, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("marshaling item: %w", err)
			}
			if err := bucket.Put([]byte(item.ID), data); err != nil {
				return fmt.Errorf("storing item %s: %w", item.ID, err)
			}
		}
		return nil
	})
}

// GetItem retrieves an item by ID
func (b *BoltDB) GetItem(ctx context.Context, id string) (*InventoryItem, error) {
	var item *InventoryItem
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(itemsBucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		return json.Unmarshal(data, &item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItemStatus rewrites the status of an item inside one transaction
func (b *BoltDB) UpdateItemStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(itemsBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}

		var item InventoryItem
		if err := json.Unmarshal(data, &item); err != nil {
			return fmt.Errorf("unmarshaling item: %w", err)
		}
		item.Status = status
		item.UpdatedAt = updatedAt

		updated, err := json.Marshal(&item)
		if err != nil {
			return fmt.Errorf("marshaling item: %w", err)
		}
		return bucket.Put([]byte(id), updated)
	})
}

// FindItems scans the item bucket for matches
func (b *BoltDB) FindItems(ctx context.Context, filter ItemFilter) ([]*InventoryItem, error) {
	items := make([]*InventoryItem, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(itemsBucketName)).ForEach(func(k, v []byte) error {
			var item InventoryItem
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("unmarshaling item: %w", err)
			}
			if filter.matches(&item) {
				items = append(items, &item)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DetectedAt.After(items[j].DetectedAt)
	})
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

// CountItems counts matching items
func (b *BoltDB) CountItems(ctx context.Context, userID string, status Status) (int, error) {
	items, err := b.FindItems(ctx, ItemFilter{UserID: userID, Status: status})
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// SaveScan stores a scan record
func (b *BoltDB) SaveScan(ctx context.Context, scan *ScanRecord) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(scan)
		if err != nil {
			return fmt.Errorf("marshaling scan: %w", err)
		}
		return tx.Bucket([]byte(scansBucketName)).Put([]byte(scan.ID), data)
	})
}

// FindScans returns a user's scans since a point in time
func (b *BoltDB) FindScans(ctx context.Context, userID string, since time.Time) ([]*ScanRecord, error) {
	scans := make([]*ScanRecord, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(scansBucketName)).ForEach(func(k, v []byte) error {
			var scan ScanRecord
			if err := json.Unmarshal(v, &scan); err != nil {
				return fmt.Errorf("unmarshaling scan: %w", err)
			}
			if scan.UserID == userID && !scan.ScannedAt.Before(since) {
				scans = append(scans, &scan)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(scans, func(i, j int) bool {
		return scans[i].ScannedAt.After(scans[j].ScannedAt)
	})
	return scans, nil
}

// Ping checks the database file is usable
func (b *BoltDB) Ping(ctx context.Context) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(itemsBucketName)) == nil {
			return fmt.Errorf("bucket %s missing", itemsBucketName)
		}
		return nil
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
