// Package notify carries adjustment change notifications between service
// instances over Kafka so every instance can reconcile its local tier.
package notify

import (
	"context"
	"seatflow/internal/adjustments/store"
	"seatflow/pkg/kafka"
	"seatflow/pkg/logger"
	"sync"
)

const (
	SchemaVersion = "1"

	defaultBuffer = 256
)

type Event struct {
	Date           string   `json:"date"`
	ReservationIDs []string `json:"reservation_ids"`
	Origin         string   `json:"origin"`
}

type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type Source interface {
	Origin() string
	SubscribeAll(l store.Listener) func()
}

type Refresher interface {
	RefreshDate(ctx context.Context, date string) error
}

// Broadcaster forwards locally written changes to Kafka. Listener calls
// never block the writer: when the buffer is full the change is dropped
// and peers catch up on their next read.
type Broadcaster struct {
	pub    Publisher
	origin string
	log    *logger.Logger
	events chan store.Change

	unsubscribe func()
	once        sync.Once
}

func NewBroadcaster(pub Publisher, src Source, log *logger.Logger, buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	b := &Broadcaster{
		pub:    pub,
		origin: src.Origin(),
		log:    log,
		events: make(chan store.Change, buffer),
	}
	b.unsubscribe = src.SubscribeAll(b.enqueue)
	return b
}

func (b *Broadcaster) enqueue(c store.Change) {
	if c.Origin != b.origin {
		return
	}
	select {
	case b.events <- c:
	default:
		b.log.Warn("Adjustment broadcast buffer full, dropping change", "date", c.Date)
	}
}

// Run publishes queued changes until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-b.events:
			b.publish(ctx, c)
		}
	}
}

func (b *Broadcaster) publish(ctx context.Context, c store.Change) {
	msg, err := kafka.NewMessage().
		WithKey(c.Date).
		WithValue(Event(c)).
		WithEventType(store.EventName).
		WithSchemaVersion(SchemaVersion).
		WithSource(b.origin).
		Build()
	if err != nil {
		b.log.Error("Failed to build adjustment change message", "date", c.Date, "error", err)
		return
	}

	if err := b.pub.Publish(ctx, msg); err != nil {
		b.log.Warn("Failed to publish adjustment change", "date", c.Date, "error", err)
	}
}

func (b *Broadcaster) Stop() {
	b.once.Do(b.unsubscribe)
}

// Handler refreshes the local tier for dates changed by other instances.
func Handler(r Refresher, origin string, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		if t := msg.GetEventType(); t != "" && t != store.EventName {
			return nil
		}

		var evt Event
		if err := msg.DecodeValue(&evt); err != nil {
			return err
		}
		if evt.Origin == origin || evt.Date == "" {
			return nil
		}

		if err := r.RefreshDate(ctx, evt.Date); err != nil {
			return kafka.NewTransientError("failed to refresh adjustments for "+evt.Date, err)
		}
		log.Debug("Refreshed adjustments from peer change", "date", evt.Date, "origin", evt.Origin)
		return nil
	}
}
