package repository

import (
	"context"
	"errors"
	"fmt"
	reservationserrors "seatflow/internal/reservations/errors"
	"seatflow/pkg/config"
	"seatflow/pkg/model"
	"seatflow/pkg/sanitizer"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	RegularCollectionName = "Reservations"
	EventCollectionName   = "EventReservations"
)

// ReservationRepository reads both reservation collections and applies the
// lifecycle patches the scheduling engine is allowed to make.
type ReservationRepository interface {
	FindByDate(ctx context.Context, kind model.Kind, date string) ([]*model.Reservation, error)
	FindByID(ctx context.Context, kind model.Kind, id string) (*model.Reservation, error)
	Update(ctx context.Context, kind model.Kind, id string, patch model.ReservationPatch) error
}

type mongoReservationRepository struct {
	cfg         *config.Config
	collections map[model.Kind]*mongo.Collection
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg: cfg,
		collections: map[model.Kind]*mongo.Collection{
			model.KindRegular: db.Collection(RegularCollectionName),
			model.KindEvent:   db.Collection(EventCollectionName),
		},
	}
}

func (r *mongoReservationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoReservationRepository) collection(kind model.Kind) (*mongo.Collection, error) {
	c, ok := r.collections[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidKind, kind)
	}
	return c, nil
}

func (r *mongoReservationRepository) FindByDate(ctx context.Context, kind model.Kind, date string) ([]*model.Reservation, error) {
	coll, err := r.collection(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}})
	cursor, err := coll.Find(ctx, bson.M{"date": date, "is_deleted": bson.M{"$ne": true}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s reservations: %w", kind, err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode %s reservations: %w", kind, err)
	}

	for _, res := range reservations {
		normalize(res, kind)
	}
	return reservations, nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, kind model.Kind, id string) (*model.Reservation, error) {
	coll, err := r.collection(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var res model.Reservation
	err = coll.FindOne(ctx, bson.M{"_id": id}).Decode(&res)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find %s reservation: %w", kind, err)
	}

	normalize(&res, kind)
	return &res, nil
}

// normalize tags res with the collection it came from and cleans table ids
// so overlap checks compare like with like.
func normalize(res *model.Reservation, kind model.Kind) {
	res.Kind = kind
	res.TableIDs = sanitizer.NormalizeTableIDs(res.TableIDs)
}

func (r *mongoReservationRepository) Update(ctx context.Context, kind model.Kind, id string, patch model.ReservationPatch) error {
	coll, err := r.collection(kind)
	if err != nil {
		return err
	}
	if patch.Empty() {
		return reservationserrors.ErrEmptyPatch
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := coll.UpdateOne(ctx, bson.M{"_id": id}, patchUpdate(patch, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to update %s reservation: %w", kind, err)
	}
	if result.MatchedCount == 0 {
		return reservationserrors.ErrNotFound
	}
	return nil
}

func patchUpdate(patch model.ReservationPatch, now time.Time) bson.M {
	set := bson.M{"updated_at": now.Truncate(time.Millisecond)}
	if patch.Time != nil {
		set["time"] = *patch.Time
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.Cleared != nil {
		set["cleared"] = *patch.Cleared
	}
	return bson.M{"$set": set}
}
