package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"seatflow/internal/adjustments/store"
	"seatflow/pkg/kafka"
	"seatflow/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	origin   string
	listener store.Listener
}

func (f *fakeSource) Origin() string { return f.origin }

func (f *fakeSource) SubscribeAll(l store.Listener) func() {
	f.listener = l
	return func() { f.listener = nil }
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, msg kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakePublisher) published() []kafka.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.Message(nil), f.msgs...)
}

type fakeRefresher struct {
	dates []string
	err   error
}

func (f *fakeRefresher) RefreshDate(_ context.Context, date string) error {
	f.dates = append(f.dates, date)
	return f.err
}

func TestBroadcaster_PublishesLocalChangesOnly(t *testing.T) {
	src := &fakeSource{origin: "instance-a"}
	pub := &fakePublisher{}
	b := NewBroadcaster(pub, src, logger.Discard(), 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	src.listener(store.Change{Date: "2024-05-01", ReservationIDs: []string{"r1"}, Origin: "instance-a"})
	src.listener(store.Change{Date: "2024-05-01", ReservationIDs: []string{"r2"}, Origin: store.OriginRemote})

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	msg := pub.published()[0]
	assert.Equal(t, "2024-05-01", msg.Key)
	assert.Equal(t, store.EventName, msg.GetEventType())
	assert.Equal(t, "instance-a", msg.GetSource())

	var evt Event
	require.NoError(t, msg.DecodeValue(&evt))
	assert.Equal(t, Event{Date: "2024-05-01", ReservationIDs: []string{"r1"}, Origin: "instance-a"}, evt)

	b.Stop()
	assert.Nil(t, src.listener)
}

func TestBroadcaster_DropsWhenFull(t *testing.T) {
	src := &fakeSource{origin: "a"}
	b := NewBroadcaster(&fakePublisher{}, src, logger.Discard(), 1)

	src.listener(store.Change{Date: "2024-05-01", Origin: "a"})
	src.listener(store.Change{Date: "2024-05-02", Origin: "a"})

	assert.Len(t, b.events, 1)
}

func buildMessage(t *testing.T, evt Event) kafka.Message {
	t.Helper()
	msg, err := kafka.NewMessage().
		WithKey(evt.Date).
		WithValue(evt).
		WithEventType(store.EventName).
		Build()
	require.NoError(t, err)
	return msg
}

func TestHandler(t *testing.T) {
	t.Run("refreshes peer dates", func(t *testing.T) {
		r := &fakeRefresher{}
		h := Handler(r, "instance-a", logger.Discard())

		require.NoError(t, h(context.Background(), buildMessage(t, Event{Date: "2024-05-01", Origin: "instance-b"})))
		assert.Equal(t, []string{"2024-05-01"}, r.dates)
	})

	t.Run("ignores own echoes", func(t *testing.T) {
		r := &fakeRefresher{}
		h := Handler(r, "instance-a", logger.Discard())

		require.NoError(t, h(context.Background(), buildMessage(t, Event{Date: "2024-05-01", Origin: "instance-a"})))
		assert.Empty(t, r.dates)
	})

	t.Run("refresh failure is transient", func(t *testing.T) {
		r := &fakeRefresher{err: errors.New("mongo down")}
		h := Handler(r, "instance-a", logger.Discard())

		err := h(context.Background(), buildMessage(t, Event{Date: "2024-05-01", Origin: "instance-b"}))
		assert.Equal(t, kafka.ErrorTypeTransient, kafka.ClassifyError(err))
	})

	t.Run("undecodable payload is permanent", func(t *testing.T) {
		h := Handler(&fakeRefresher{}, "instance-a", logger.Discard())

		err := h(context.Background(), kafka.Message{Value: []byte("{"), Headers: map[string]string{}})
		assert.Equal(t, kafka.ErrorTypePermanent, kafka.ClassifyError(err))
	})
}
