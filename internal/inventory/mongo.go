package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB implements the DB interface using MongoDB
type MongoDB struct {
	client *mongo.Client
	items  *mongo.Collection
	scans  *mongo.Collection
}

// NewMongoDB connects to uri and prepares the inventory collections
func NewMongoDB(ctx context.Context, uri, database string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	db := client.Database(database)
	m := &MongoDB{
		client: client,
		items:  db.Collection(itemsBucketName),
		scans:  db.Collection(scansBucketName),
	}

	indexes := []struct {
		coll *mongo.Collection
		keys bson.D
	}{
		{m.items, bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
		{m.items, bson.D{{Key: "expiration_date", Value: 1}}},
		{m.scans, bson.D{{Key: "user_id", Value: 1}, {Key: "scanned_at", Value: -1}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: idx.keys}); err != nil {
			slog.Warn("Failed to create mongodb index", "collection", idx.coll.Name(), "error", err)
		}
	}

	slog.Info("Connected to MongoDB", "database", database)
	return m, nil
}

func itemQuery(f ItemFilter) bson.M {
	query := bson.M{}
	if f.UserID != "" {
		query["user_id"] = f.UserID
	}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.ExpiresFrom != nil || f.ExpiresBefore != nil {
		bounds := bson.M{"$ne": nil}
		if f.ExpiresFrom != nil {
			bounds["$gte"] = *f.ExpiresFrom
		}
		if f.ExpiresBefore != nil {
			bounds["$lt"] = *f.ExpiresBefore
		}
		query["expiration_date"] = bounds
	}
	return query
}

// SaveItems inserts new items
func (m *MongoDB) SaveItems(ctx context.Context, items []*InventoryItem) error {
	if len(items) == 0 {
		return nil
	}
	docs := make([]interface{}, len(items))
	for i, item := range items {
		docs[i] = item
	}
	if _, err := m.items.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("inserting items: %w", err)
	}
	return nil
}

// GetItem retrieves an item by ID
func (m *MongoDB) GetItem(ctx context.Context, id string) (*InventoryItem, error) {
	var item InventoryItem
	err := m.items.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return &item, nil
}

// UpdateItemStatus sets status and updated_at only
func (m *MongoDB) UpdateItemStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error {
	update := bson.M{"$set": bson.M{"status": status, "updated_at": updatedAt}}
	res, err := m.items.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("updating item status: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return nil
}

// FindItems queries items, newest detections first
func (m *MongoDB) FindItems(ctx context.Context, filter ItemFilter) ([]*InventoryItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "detected_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := m.items.Find(ctx, itemQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("finding items: %w", err)
	}
	items := make([]*InventoryItem, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decoding items: %w", err)
	}
	return items, nil
}

// CountItems counts a user's items
func (m *MongoDB) CountItems(ctx context.Context, userID string, status Status) (int, error) {
	n, err := m.items.CountDocuments(ctx, itemQuery(ItemFilter{UserID: userID, Status: status}))
	if err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return int(n), nil
}

// SaveScan inserts a scan record
func (m *MongoDB) SaveScan(ctx context.Context, scan *ScanRecord) error {
	if _, err := m.scans.InsertOne(ctx, scan); err != nil {
		return fmt.Errorf("inserting scan: %w", err)
	}
	return nil
}

// FindScans returns a user's recent scans
func (m *MongoDB) FindScans(ctx context.Context, userID string, since time.Time) ([]*ScanRecord, error) {
	query := bson.M{"user_id": userID, "scanned_at": bson.M{"$gte": since}}
	opts := options.Find().SetSort(bson.D{{Key: "scanned_at", Value: -1}})

	cursor, err := m.scans.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("finding scans: %w", err)
	}
	scans := make([]*ScanRecord, 0)
	if err := cursor.All(ctx, &scans); err != nil {
		return nil, fmt.Errorf("decoding scans: %w", err)
	}
	return scans, nil
}

// Ping checks the server connection
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close disconnects the client
func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
