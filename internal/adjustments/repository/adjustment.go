package repository

import (
	"context"
	"errors"
	"fmt"
	"seatflow/pkg/config"
	"seatflow/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "ReservationAdjustments"
)

// document is the stored shape of one adjustment. Absent bounds are
// stored as missing fields, never as zero.
type document struct {
	Date          string    `bson:"date"`
	ReservationID string    `bson:"reservation_id"`
	StartMin      *int      `bson:"start_min,omitempty"`
	EndMin        *int      `bson:"end_min,omitempty"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func (d document) adjustment() model.DurationAdjustment {
	return model.DurationAdjustment{
		Start: model.FromPtr(d.StartMin),
		End:   model.FromPtr(d.EndMin),
	}
}

type AdjustmentRepository interface {
	GetOne(ctx context.Context, date, reservationID string) (*model.DurationAdjustment, error)
	GetByDate(ctx context.Context, date string) (model.AdjustmentMap, error)
	Upsert(ctx context.Context, date, reservationID string, patch model.DurationAdjustment) error
}

type mongoAdjustmentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAdjustmentRepository(cfg *config.Config) AdjustmentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAdjustmentRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoAdjustmentRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

// GetOne returns nil, nil when no adjustment is stored for the key.
func (r *mongoAdjustmentRepository) GetOne(ctx context.Context, date, reservationID string) (*model.DurationAdjustment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var doc document
	err := r.collection.FindOne(ctx, keyFilter(date, reservationID)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find adjustment: %w", err)
	}

	adj := doc.adjustment()
	return &adj, nil
}

func (r *mongoAdjustmentRepository) GetByDate(ctx context.Context, date string) (model.AdjustmentMap, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"date": date})
	if err != nil {
		return nil, fmt.Errorf("failed to find adjustments: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []document
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode adjustments: %w", err)
	}

	out := make(model.AdjustmentMap, len(docs))
	for _, d := range docs {
		out[d.ReservationID] = d.adjustment()
	}
	return out, nil
}

func (r *mongoAdjustmentRepository) Upsert(ctx context.Context, date, reservationID string, patch model.DurationAdjustment) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx,
		keyFilter(date, reservationID),
		upsertUpdate(patch, time.Now().UTC()),
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert adjustment: %w", err)
	}
	return nil
}

func keyFilter(date, reservationID string) bson.M {
	return bson.M{"date": date, "reservation_id": reservationID}
}

// upsertUpdate sets only the bounds present in patch so a partial write
// never clears the other bound.
func upsertUpdate(patch model.DurationAdjustment, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if v, ok := patch.Start.Get(); ok {
		set["start_min"] = v
	}
	if v, ok := patch.End.Get(); ok {
		set["end_min"] = v
	}
	return bson.M{"$set": set}
}
