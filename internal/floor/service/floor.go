package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"seatflow/internal/adjustments/validator"
	"seatflow/internal/lifecycle"
	"seatflow/internal/occupancy"
	reservationserrors "seatflow/internal/reservations/errors"
	"seatflow/internal/scheduling"
	"seatflow/pkg/config"
	"seatflow/pkg/daytime"
	apperrors "seatflow/pkg/errors"
	"seatflow/pkg/model"
	"sync"
	"time"
)

type ReservationSource interface {
	FindByDate(ctx context.Context, kind model.Kind, date string) ([]*model.Reservation, error)
}

type AdjustmentStore interface {
	Get(ctx context.Context, date, reservationID string) (model.DurationAdjustment, bool)
	Snapshot(date string) model.AdjustmentMap
	Set(ctx context.Context, date, reservationID string, patch model.DurationAdjustment) model.DurationAdjustment
	RefreshDate(ctx context.Context, date string) error
}

type Tracker interface {
	Seat(ctx context.Context, kind model.Kind, id string) (*lifecycle.Machine, error)
	Track(res model.Reservation) *lifecycle.Machine
	Get(kind model.Kind, id string) (*lifecycle.Machine, bool)
	Release(kind model.Kind, id string)
	Now() time.Time
}

type ConflictDetector interface {
	Detect(ctx context.Context, ext scheduling.Extension) ([]scheduling.Candidate, error)
}

type CascadeShifter interface {
	Apply(ctx context.Context, date string, newEnd int, candidates []scheduling.Candidate) scheduling.CascadeResult
}

// minBlockMinutes is the shortest window a manual resize may leave.
const minBlockMinutes = 15

type DayView struct {
	Date    string             `json:"date"`
	Today   string             `json:"today"`
	Entries []scheduling.Entry `json:"entries"`
}

type AdjustmentView struct {
	Date          string                    `json:"date"`
	ReservationID string                    `json:"reservation_id"`
	Adjustment    model.DurationAdjustment  `json:"adjustment"`
	Found         bool                      `json:"found"`
	Cascade       *scheduling.CascadeResult `json:"cascade,omitempty"`
}

type CountdownView struct {
	ReservationID    string          `json:"reservation_id"`
	Kind             model.Kind      `json:"kind"`
	Date             string          `json:"date"`
	State            lifecycle.State `json:"state"`
	RemainingSeconds int64           `json:"remaining_seconds"`
	Start            int             `json:"start"`
	End              int             `json:"end"`
}

type ExtendView struct {
	Countdown CountdownView          `json:"countdown"`
	Result    lifecycle.ExtendResult `json:"result"`
}

type FloorService interface {
	DayView(ctx context.Context, date string) (*DayView, error)
	GetAdjustment(ctx context.Context, date, id string) (*AdjustmentView, error)
	PatchAdjustment(ctx context.Context, date, id string, patch *model.DurationAdjustment) (*AdjustmentView, error)
	Seat(ctx context.Context, kind model.Kind, id string) (*CountdownView, error)
	Countdown(ctx context.Context, kind model.Kind, id string) (*CountdownView, error)
	Extend(ctx context.Context, kind model.Kind, id string) (*ExtendView, error)
	Clear(ctx context.Context, kind model.Kind, id string) error
	Resume(ctx context.Context) (int, error)
}

var kinds = []model.Kind{model.KindRegular, model.KindEvent}

type floorService struct {
	reservations ReservationSource
	adjustments  AdjustmentStore
	tracker      Tracker
	detector     ConflictDetector
	shifter      CascadeShifter
	validator    *validator.AdjustmentValidator
	cfg          *config.Config
}

func NewFloorService(
	reservations ReservationSource,
	adjustments AdjustmentStore,
	tracker Tracker,
	detector ConflictDetector,
	shifter CascadeShifter,
	validator *validator.AdjustmentValidator,
	cfg *config.Config,
) FloorService {
	return &floorService{
		reservations: reservations,
		adjustments:  adjustments,
		tracker:      tracker,
		detector:     detector,
		shifter:      shifter,
		validator:    validator,
		cfg:          cfg,
	}
}

func (s *floorService) location() *time.Location {
	if s.cfg.Location == nil {
		return time.Local
	}
	return s.cfg.Location
}

func (s *floorService) today() string {
	return daytime.DateKey(s.tracker.Now().In(s.location()))
}

// DayView lists the reservations occupying date, including those of the
// previous date whose window runs past midnight. Adjustments come from the
// local cache; the remote copy is pulled in the background.
func (s *floorService) DayView(ctx context.Context, date string) (*DayView, error) {
	previousDate := daytime.PrevDate(date)

	var (
		wg                sync.WaitGroup
		current, previous []*model.Reservation
		errCurrent        error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		current, errCurrent = s.loadDate(ctx, date)
	}()
	go func() {
		defer wg.Done()
		var err error
		previous, err = s.loadDate(ctx, previousDate)
		if err != nil {
			s.cfg.Log.Warn("Previous day unavailable, spillover omitted",
				"date", date,
				"previous_date", previousDate,
				"error", err,
			)
		}
	}()
	wg.Wait()

	if errCurrent != nil {
		s.cfg.Log.Error("Failed to load reservations", "date", date, "error", errCurrent)
		return nil, apperrors.Internal("Failed to retrieve reservations", errCurrent)
	}

	s.refreshInBackground(ctx, date, previousDate)

	today := s.today()
	entries := scheduling.Classify(scheduling.DayInput{
		Date:                date,
		Today:               today,
		Current:             current,
		Previous:            previous,
		CurrentAdjustments:  s.adjustments.Snapshot(date),
		PreviousAdjustments: s.adjustments.Snapshot(previousDate),
	})
	if entries == nil {
		entries = []scheduling.Entry{}
	}

	return &DayView{Date: date, Today: today, Entries: entries}, nil
}

// loadDate reads both collections; one failing collection fails the date.
func (s *floorService) loadDate(ctx context.Context, date string) ([]*model.Reservation, error) {
	var out []*model.Reservation
	for _, kind := range kinds {
		reservations, err := s.reservations.FindByDate(ctx, kind, date)
		if err != nil {
			return nil, err
		}
		for _, res := range reservations {
			if res.Kind == "" {
				res.Kind = kind
			}
		}
		out = append(out, reservations...)
	}
	return out, nil
}

func (s *floorService) refreshInBackground(ctx context.Context, dates ...string) {
	timeout := s.cfg.RemoteSyncTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		for _, date := range dates {
			refreshCtx, cancel := context.WithTimeout(bg, timeout)
			if err := s.adjustments.RefreshDate(refreshCtx, date); err != nil {
				s.cfg.Log.Warn("Background adjustment refresh failed", "date", date, "error", err)
			}
			cancel()
		}
	}()
}

func (s *floorService) GetAdjustment(ctx context.Context, date, id string) (*AdjustmentView, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	adj, found := s.adjustments.Get(ctx, date, id)
	return &AdjustmentView{Date: date, ReservationID: id, Adjustment: adj, Found: found}, nil
}

// PatchAdjustment resizes a reservation on its operating date and stores
// the resulting window as a full {start, end} pair. Growing a seated
// party's end shifts the bookings it runs into, as Extend does.
func (s *floorService) PatchAdjustment(ctx context.Context, date, id string, patch *model.DurationAdjustment) (*AdjustmentView, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	if err := s.validator.Validate(patch); err != nil {
		s.cfg.Log.Warn("Adjustment validation failed", "date", date, "reservation_id", id, "error", err)
		return nil, validationError("Invalid adjustment", err)
	}

	res, dayReservations, err := s.findOnDate(ctx, date, id)
	if err != nil {
		return nil, err
	}

	adjustments := s.adjustments.Snapshot(date)
	before := occupancy.Resolve(res, adjustments[id])
	after := occupancy.Resolve(res, adjustments[id].Merge(*patch))
	if after.End <= after.Start {
		return nil, invertedWindowError(after)
	}

	if patch.End.IsSet() {
		end, err := s.boundEnd(res, after, nextStart(res, before.End, dayReservations, adjustments))
		if err != nil {
			return nil, err
		}
		after.End = end
	}

	var cascade *scheduling.CascadeResult
	if res.Seated() && after.End > before.End {
		cascade = s.shiftConflicts(ctx, res, before.End, after.End)
	}

	merged := s.adjustments.Set(ctx, date, id, model.DurationAdjustment{
		Start: model.Some(after.Start),
		End:   model.Some(after.End),
	})
	s.cfg.Log.Info("Adjustment patched",
		"date", date,
		"reservation_id", id,
		"start", after.Start,
		"end", after.End,
		"previous_end", before.End,
	)
	return &AdjustmentView{Date: date, ReservationID: id, Adjustment: merged, Found: true, Cascade: cascade}, nil
}

// boundEnd clamps a requested end between its lower bound (start plus the
// smallest block, and now for a seated party) and upper (midnight or the
// next booking).
func (s *floorService) boundEnd(res *model.Reservation, w occupancy.Window, next int) (int, error) {
	upper := daytime.DayMinutes
	if !res.Seated() {
		upper = min(upper, next)
	}

	lower := w.Start + minBlockMinutes
	if res.Seated() {
		nowMin := daytime.MinuteOfOperatingDay(res.Date, s.tracker.Now(), s.location())
		if nowMin >= upper {
			return 0, apperrors.Conflict("Seated reservation cannot end before the current time")
		}
		lower = max(lower, nowMin)
	}

	end := min(upper, max(lower, w.End))
	if end <= w.Start {
		return 0, apperrors.Conflict("Reservation cannot be resized past the next booking on its tables")
	}
	return end, nil
}

// nextStart is the earliest start among the other visible bookings sharing
// a table with res that begin at or after end, or midnight if none do.
func nextStart(res *model.Reservation, end int, day []*model.Reservation, adjustments model.AdjustmentMap) int {
	next := daytime.DayMinutes
	for _, other := range day {
		if other.ID == res.ID || !other.Visible() || !other.SharesTable(res.TableIDs) {
			continue
		}
		start := occupancy.Resolve(other, adjustments[other.ID]).Start
		if start >= end && start < next {
			next = start
		}
	}
	return next
}

func (s *floorService) shiftConflicts(ctx context.Context, res *model.Reservation, previousEnd, newEnd int) *scheduling.CascadeResult {
	candidates, err := s.detector.Detect(ctx, scheduling.Extension{
		ReservationID: res.ID,
		Date:          res.Date,
		TableIDs:      res.TableIDs,
		PreviousEnd:   previousEnd,
		NewEnd:        newEnd,
	})
	if err != nil {
		s.cfg.Log.Warn("Conflict detection failed, resizing without cascade",
			"reservation_id", res.ID,
			"date", res.Date,
			"error", err,
		)
	}
	if len(candidates) == 0 {
		return nil
	}

	result := s.shifter.Apply(ctx, res.Date, newEnd, candidates)
	if failed := result.Failed(); len(failed) > 0 {
		s.cfg.Log.Warn("Cascade finished with failed record updates",
			"reservation_id", res.ID,
			"failed", len(failed),
			"shifted", len(result.Shifts),
		)
	}
	return &result
}

func (s *floorService) findOnDate(ctx context.Context, date, id string) (*model.Reservation, []*model.Reservation, error) {
	day, err := s.loadDate(ctx, date)
	if err != nil {
		s.cfg.Log.Error("Failed to load reservations", "date", date, "error", err)
		return nil, nil, apperrors.Internal("Failed to retrieve reservations", err)
	}
	for _, res := range day {
		if res.ID == id {
			return res, day, nil
		}
	}
	return nil, nil, apperrors.NotFoundWithID("Reservation", id)
}

func invertedWindowError(w occupancy.Window) error {
	return apperrors.Validation("Invalid adjustment", map[string]any{
		"end": fmt.Sprintf("end %s must be after start %s", daytime.MinutesToTime(w.End), daytime.MinutesToTime(w.Start)),
	})
}

func (s *floorService) Seat(ctx context.Context, kind model.Kind, id string) (*CountdownView, error) {
	if err := s.validator.ValidateKind(kind); err != nil {
		return nil, validationError("Invalid reservation kind", err)
	}

	m, err := s.tracker.Seat(ctx, kind, id)
	if err != nil {
		switch {
		case errors.Is(err, reservationserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Reservation", id)
		case errors.Is(err, lifecycle.ErrNotSeated):
			return nil, apperrors.Conflict("Reservation is not seated")
		}
		s.cfg.Log.Error("Failed to seat reservation", "reservation_id", id, "kind", kind, "error", err)
		return nil, apperrors.Internal("Failed to load reservation", err)
	}

	view := s.countdownView(m, s.tracker.Now())
	return &view, nil
}

func (s *floorService) Countdown(_ context.Context, kind model.Kind, id string) (*CountdownView, error) {
	m, err := s.machine(kind, id)
	if err != nil {
		return nil, err
	}
	now := s.tracker.Now()
	m.Tick(now)
	view := s.countdownView(m, now)
	return &view, nil
}

func (s *floorService) Extend(ctx context.Context, kind model.Kind, id string) (*ExtendView, error) {
	m, err := s.machine(kind, id)
	if err != nil {
		return nil, err
	}

	now := s.tracker.Now()
	m.Tick(now)
	result, err := m.Extend(ctx, now)
	if err != nil {
		if errors.Is(err, lifecycle.ErrInvalidTransition) {
			return nil, apperrors.InvalidTransition("extend", string(m.State()))
		}
		return nil, apperrors.Internal("Failed to extend reservation", err)
	}

	if failed := result.Cascade.Failed(); len(failed) > 0 {
		s.cfg.Log.Warn("Cascade finished with failed record updates",
			"reservation_id", id,
			"failed", len(failed),
			"shifted", len(result.Cascade.Shifts),
		)
	}

	return &ExtendView{Countdown: s.countdownView(m, now), Result: result}, nil
}

func (s *floorService) Clear(ctx context.Context, kind model.Kind, id string) error {
	m, err := s.machine(kind, id)
	if err != nil {
		return err
	}

	m.Tick(s.tracker.Now())
	if err := m.Clear(ctx); err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrInvalidTransition):
			return apperrors.InvalidTransition("clear", string(m.State()))
		case errors.Is(err, reservationserrors.ErrNotFound):
			s.tracker.Release(kind, id)
			return apperrors.NotFoundWithID("Reservation", id)
		}
		return apperrors.Internal("Failed to clear reservation", err)
	}

	s.tracker.Release(kind, id)
	return nil
}

// Resume re-tracks every reservation still seated on today's or
// yesterday's operating date, so countdowns survive a restart.
func (s *floorService) Resume(ctx context.Context) (int, error) {
	today := s.today()
	resumed := 0
	var errs []error

	for _, date := range []string{daytime.PrevDate(today), today} {
		for _, kind := range kinds {
			reservations, err := s.reservations.FindByDate(ctx, kind, date)
			if err != nil {
				errs = append(errs, err)
				s.cfg.Log.Warn("Failed to load reservations for resume", "date", date, "kind", kind, "error", err)
				continue
			}
			for _, res := range reservations {
				if res.Kind == "" {
					res.Kind = kind
				}
				if !res.Seated() {
					continue
				}
				s.tracker.Track(*res)
				resumed++
			}
		}
	}

	s.cfg.Log.Info("Resumed seated reservations", "count", resumed, "today", today)
	if resumed == 0 && len(errs) > 0 {
		return 0, apperrors.Internal("Failed to resume seated reservations", errors.Join(errs...))
	}
	return resumed, nil
}

func (s *floorService) machine(kind model.Kind, id string) (*lifecycle.Machine, error) {
	if err := s.validator.ValidateKind(kind); err != nil {
		return nil, validationError("Invalid reservation kind", err)
	}
	m, ok := s.tracker.Get(kind, id)
	if !ok {
		return nil, apperrors.NotFoundWithID("Seated reservation", id)
	}
	return m, nil
}

func (s *floorService) countdownView(m *lifecycle.Machine, now time.Time) CountdownView {
	res := m.Reservation()
	window := m.Window()
	remaining := m.Remaining(now)
	return CountdownView{
		ReservationID:    res.ID,
		Kind:             res.Kind,
		Date:             res.Date,
		State:            m.State(),
		RemainingSeconds: int64(math.Ceil(remaining.Seconds())),
		Start:            window.Start,
		End:              window.End,
	}
}

func validationError(message string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
