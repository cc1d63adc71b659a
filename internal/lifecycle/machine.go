// Package lifecycle drives a seated reservation through its countdown,
// expiry and the clear-or-extend decision.
package lifecycle

import (
	"context"
	"errors"
	"seatflow/internal/occupancy"
	"seatflow/internal/scheduling"
	"seatflow/pkg/daytime"
	"seatflow/pkg/logger"
	"seatflow/pkg/model"
	"sync"
	"time"
)

type State string

const (
	StateSeated  State = "seated"
	StateExpired State = "expired"
	StateCleared State = "cleared"
)

const DefaultExtensionStep = 15

var (
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	ErrNotSeated         = errors.New("reservation is not seated")
)

type AdjustmentStore interface {
	Peek(date, reservationID string) (model.DurationAdjustment, bool)
	Set(ctx context.Context, date, reservationID string, patch model.DurationAdjustment) model.DurationAdjustment
}

type ConflictDetector interface {
	Detect(ctx context.Context, ext scheduling.Extension) ([]scheduling.Candidate, error)
}

type CascadeShifter interface {
	Apply(ctx context.Context, date string, newEnd int, candidates []scheduling.Candidate) scheduling.CascadeResult
}

type ReservationUpdater interface {
	Update(ctx context.Context, kind model.Kind, id string, patch model.ReservationPatch) error
}

// ClearFunc tears down a seated event reservation.
type ClearFunc func(ctx context.Context, res *model.Reservation) error

// Deps are the collaborators shared by every machine.
type Deps struct {
	Adjustments   AdjustmentStore
	Detector      ConflictDetector
	Shifter       CascadeShifter
	Reservations  ReservationUpdater
	ClearEvent    ClearFunc
	Location      *time.Location
	ExtensionStep int
	Log           *logger.Logger
}

func (d Deps) step() int {
	if d.ExtensionStep <= 0 {
		return DefaultExtensionStep
	}
	return d.ExtensionStep
}

func (d Deps) location() *time.Location {
	if d.Location == nil {
		return time.Local
	}
	return d.Location
}

type ExtendResult struct {
	PreviousEnd int                      `json:"previous_end"`
	ExtendedEnd int                      `json:"extended_end"`
	Window      occupancy.Window         `json:"window"`
	Cascade     scheduling.CascadeResult `json:"cascade"`
}

// Machine holds the lifecycle of one seated reservation. It is safe for
// concurrent use; transitions are serialized.
type Machine struct {
	deps  Deps
	mu    sync.Mutex
	res   model.Reservation
	state State
}

func NewMachine(res model.Reservation, deps Deps) *Machine {
	return &Machine{deps: deps, res: res, state: StateSeated}
}

func (m *Machine) Reservation() model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.res
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Window is the effective occupancy window, derived on every call.
func (m *Machine) Window() occupancy.Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.window()
}

func (m *Machine) window() occupancy.Window {
	adj, _ := m.deps.Adjustments.Peek(m.res.Date, m.res.ID)
	return occupancy.Resolve(&m.res, adj)
}

// Remaining is the time left until the window ends, negative once past.
func (m *Machine) Remaining(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining(now)
}

func (m *Machine) remaining(now time.Time) time.Duration {
	end, err := daytime.Instant(m.res.Date, m.window().End, m.deps.location())
	if err != nil {
		nowMin := daytime.MinuteOfOperatingDay(m.res.Date, now, m.deps.location())
		return time.Duration(m.window().End-nowMin) * time.Minute
	}
	return end.Sub(now)
}

// Tick moves a seated reservation to expired once its window has elapsed
// and returns the resulting state.
func (m *Machine) Tick(now time.Time) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateSeated && m.remaining(now) <= 0 {
		m.state = StateExpired
		m.deps.Log.Info("Seated reservation expired",
			"reservation_id", m.res.ID,
			"date", m.res.Date,
			"end", m.window().End,
		)
	}
	return m.state
}

// Clear ends an expired seating. Regular reservations are marked arrived
// and cleared; event reservations go through the ClearEvent hook when set.
func (m *Machine) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateExpired {
		return ErrInvalidTransition
	}

	var err error
	if m.res.Kind == model.KindEvent && m.deps.ClearEvent != nil {
		err = m.deps.ClearEvent(ctx, &m.res)
	} else {
		err = m.deps.Reservations.Update(ctx, m.res.Kind, m.res.ID, clearedPatch())
	}
	if err != nil {
		m.deps.Log.Error("Failed to clear reservation",
			"reservation_id", m.res.ID,
			"kind", m.res.Kind,
			"error", err,
		)
		return err
	}

	m.res = clearedPatch().Apply(m.res)
	m.state = StateCleared
	m.deps.Log.Info("Reservation cleared", "reservation_id", m.res.ID, "kind", m.res.Kind)
	return nil
}

func clearedPatch() model.ReservationPatch {
	status := model.StatusArrived
	cleared := true
	return model.ReservationPatch{Status: &status, Cleared: &cleared}
}

// Extend keeps an expired party seated for another step from now. Pending
// reservations on the same tables that would start inside the claimed time
// are pushed back first, then the new end is stored and the countdown
// resumes.
func (m *Machine) Extend(ctx context.Context, now time.Time) (ExtendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateExpired {
		return ExtendResult{}, ErrInvalidTransition
	}

	date, id := m.res.Date, m.res.ID
	nowMin := daytime.MinuteOfOperatingDay(date, now, m.deps.location())
	extendedEnd := min(daytime.MaxMinutes, nowMin+m.deps.step())

	adj, _ := m.deps.Adjustments.Peek(date, id)
	previousEnd := adj.End.OrElse(nowMin)

	result := ExtendResult{PreviousEnd: previousEnd, ExtendedEnd: extendedEnd}

	candidates, err := m.deps.Detector.Detect(ctx, scheduling.Extension{
		ReservationID: id,
		Date:          date,
		TableIDs:      m.res.TableIDs,
		PreviousEnd:   previousEnd,
		NewEnd:        extendedEnd,
	})
	if err != nil {
		m.deps.Log.Warn("Conflict detection failed, extending without cascade",
			"reservation_id", id,
			"date", date,
			"error", err,
		)
	}
	if len(candidates) > 0 {
		result.Cascade = m.deps.Shifter.Apply(ctx, date, extendedEnd, candidates)
	}

	m.deps.Adjustments.Set(ctx, date, id, model.DurationAdjustment{End: model.Some(extendedEnd)})
	m.state = StateSeated
	result.Window = m.window()

	m.deps.Log.Info("Seated reservation extended",
		"reservation_id", id,
		"date", date,
		"previous_end", previousEnd,
		"extended_end", extendedEnd,
		"shifted", len(result.Cascade.Shifts),
	)
	return result, nil
}
