package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/tractrelay/domain/entities"
	"github.com/satriahrh/tractrelay/domain/repositories"
)

// CaptureCollection is the collection holding archived captures
const CaptureCollection = "captures"

// CaptureRepository implements CaptureArchive using MongoDB
type CaptureRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.CaptureArchive = (*CaptureRepository)(nil)

// NewCaptureRepository creates a new MongoDB capture repository and ensures
// its indexes.
func NewCaptureRepository(ctx context.Context, db *mongo.Database, logger *zap.Logger) (*CaptureRepository, error) {
	collection := db.Collection(CaptureCollection)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "started_at", Value: -1}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create capture indexes: %w", err)
	}

	return &CaptureRepository{
		collection: collection,
		logger:     logger.With(zap.String("component", "mongo-archive")),
	}, nil
}

// Save implements repositories.CaptureArchive
func (r *CaptureRepository) Save(ctx context.Context, record *entities.CaptureRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if record.SessionID == "" {
		return errors.New("session ID cannot be empty")
	}

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to save capture: %w", err)
	}

	r.logger.Debug("Capture archived",
		zap.String("sessionID", record.SessionID),
		zap.Int("frames", record.Frames))
	return nil
}

// GetBySessionID implements repositories.CaptureArchive
func (r *CaptureRepository) GetBySessionID(ctx context.Context, sessionID string) (*entities.CaptureRecord, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	var record entities.CaptureRecord
	err := r.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrCaptureNotFound
		}
		return nil, fmt.Errorf("failed to get capture %s: %w", sessionID, err)
	}

	return &record, nil
}

// List implements repositories.CaptureArchive. Payloads are not loaded.
func (r *CaptureRepository) List(ctx context.Context, limit int) ([]*entities.CaptureRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetProjection(bson.M{"payload": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*entities.CaptureRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode captures: %w", err)
	}
	return records, nil
}
