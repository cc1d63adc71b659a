package lifecycle

import (
	"context"
	"errors"
	"fmt"
	reservationserrors "seatflow/internal/reservations/errors"
	"seatflow/pkg/logger"
	"seatflow/pkg/model"
	"sync"
	"time"
)

const (
	DefaultCountdownInterval = time.Second
	DefaultStatusInterval    = 30 * time.Second
)

type ReservationReader interface {
	FindByID(ctx context.Context, kind model.Kind, id string) (*model.Reservation, error)
}

// Clock returns the current instant. Tests substitute a fixed clock.
type Clock func() time.Time

// ExpireFunc is called once each time a tracked seating expires.
type ExpireFunc func(m *Machine)

type TrackerOptions struct {
	CountdownInterval time.Duration
	StatusInterval    time.Duration
	Clock             Clock
	OnExpire          ExpireFunc
}

type key struct {
	kind model.Kind
	id   string
}

type tracked struct {
	machine *Machine
	cancel  context.CancelFunc
	done    chan struct{}
}

// Tracker owns one machine and one countdown per seated reservation.
type Tracker struct {
	deps   Deps
	reader ReservationReader
	opts   TrackerOptions
	log    *logger.Logger

	mu      sync.Mutex
	entries map[key]*tracked
	wg      sync.WaitGroup
	closed  bool
}

func NewTracker(deps Deps, reader ReservationReader, opts TrackerOptions) *Tracker {
	if opts.CountdownInterval <= 0 {
		opts.CountdownInterval = DefaultCountdownInterval
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = DefaultStatusInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Tracker{
		deps:    deps,
		reader:  reader,
		opts:    opts,
		log:     deps.Log,
		entries: make(map[key]*tracked),
	}
}

// Now returns the tracker's notion of the current instant.
func (t *Tracker) Now() time.Time {
	return t.opts.Clock()
}

// Seat starts tracking a reservation that is currently seated. Seating an
// already tracked reservation returns the existing machine.
func (t *Tracker) Seat(ctx context.Context, kind model.Kind, id string) (*Machine, error) {
	if existing, ok := t.Get(kind, id); ok {
		return existing, nil
	}

	res, err := t.reader.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !res.Seated() {
		return nil, fmt.Errorf("%w: %s has status %s", ErrNotSeated, id, res.Status)
	}
	return t.Track(*res), nil
}

// Track registers an already loaded seated reservation.
func (t *Tracker) Track(res model.Reservation) *Machine {
	k := key{kind: res.Kind, id: res.ID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.entries[k]; ok {
		return entry.machine
	}

	m := NewMachine(res, t.deps)
	if t.closed {
		return m
	}

	ctx, cancel := context.WithCancel(context.Background())
	entry := &tracked{machine: m, cancel: cancel, done: make(chan struct{})}
	t.entries[k] = entry

	t.wg.Add(1)
	go t.countdown(ctx, k, entry)

	t.log.Info("Tracking seated reservation",
		"reservation_id", res.ID,
		"kind", res.Kind,
		"end", m.Window().End,
	)
	return m
}

func (t *Tracker) Get(kind model.Kind, id string) (*Machine, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[key{kind: kind, id: id}]
	if !ok {
		return nil, false
	}
	return entry.machine, true
}

// Seated lists every tracked machine.
func (t *Tracker) Seated() []*Machine {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Machine, 0, len(t.entries))
	for _, entry := range t.entries {
		out = append(out, entry.machine)
	}
	return out
}

// Release stops the countdown of a reservation and forgets it.
func (t *Tracker) Release(kind model.Kind, id string) {
	k := key{kind: kind, id: id}

	t.mu.Lock()
	entry, ok := t.entries[k]
	if ok {
		delete(t.entries, k)
	}
	t.mu.Unlock()

	if ok {
		entry.cancel()
	}
}

// Stop cancels every countdown and waits for them to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.closed = true
	for k, entry := range t.entries {
		entry.cancel()
		delete(t.entries, k)
	}
	t.mu.Unlock()

	t.wg.Wait()
}

func (t *Tracker) countdown(ctx context.Context, k key, entry *tracked) {
	defer t.wg.Done()
	defer close(entry.done)

	ticker := time.NewTicker(t.opts.CountdownInterval)
	defer ticker.Stop()
	status := time.NewTicker(t.opts.StatusInterval)
	defer status.Stop()

	m := entry.machine
	previous := m.State()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			state := m.Tick(t.opts.Clock())
			if state == StateCleared {
				t.Release(k.kind, k.id)
				return
			}
			if state == StateExpired && previous != StateExpired && t.opts.OnExpire != nil {
				t.opts.OnExpire(m)
			}
			previous = state

		case <-status.C:
			if t.stillSeated(ctx, k) {
				continue
			}
			t.log.Info("Reservation left seated state, stopping countdown",
				"reservation_id", k.id,
				"kind", k.kind,
			)
			t.Release(k.kind, k.id)
			return
		}
	}
}

// stillSeated re-reads the record. Transient read failures keep the
// countdown alive; a vanished record does not.
func (t *Tracker) stillSeated(ctx context.Context, k key) bool {
	res, err := t.reader.FindByID(ctx, k.kind, k.id)
	if errors.Is(err, reservationserrors.ErrNotFound) {
		return false
	}
	if err != nil {
		if ctx.Err() == nil {
			t.log.Warn("Failed to re-check reservation status",
				"reservation_id", k.id,
				"kind", k.kind,
				"error", err,
			)
		}
		return true
	}
	return res.Seated()
}
