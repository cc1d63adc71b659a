package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"seatflow/internal/adjustments/validator"
	"seatflow/internal/lifecycle"
	reservationserrors "seatflow/internal/reservations/errors"
	"seatflow/internal/scheduling"
	"seatflow/pkg/config"
	apperrors "seatflow/pkg/errors"
	"seatflow/pkg/logger"
	"seatflow/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dateKind struct {
	date string
	kind model.Kind
}

type fakeReservations struct {
	mu      sync.Mutex
	records map[dateKind][]*model.Reservation
	errs    map[string]error
	updates map[string]model.ReservationPatch
}

func newFakeReservations() *fakeReservations {
	return &fakeReservations{
		records: map[dateKind][]*model.Reservation{},
		errs:    map[string]error{},
		updates: map[string]model.ReservationPatch{},
	}
}

func (f *fakeReservations) add(res *model.Reservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := dateKind{date: res.Date, kind: res.Kind}
	f.records[k] = append(f.records[k], res)
}

func (f *fakeReservations) FindByDate(_ context.Context, kind model.Kind, date string) ([]*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[date]; err != nil {
		return nil, err
	}
	var out []*model.Reservation
	for _, r := range f.records[dateKind{date: date, kind: kind}] {
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeReservations) FindByID(_ context.Context, kind model.Kind, id string) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, list := range f.records {
		if k.kind != kind {
			continue
		}
		for _, r := range list {
			if r.ID == id {
				copied := *r
				return &copied, nil
			}
		}
	}
	return nil, reservationserrors.ErrNotFound
}

func (f *fakeReservations) Update(_ context.Context, _ model.Kind, id string, patch model.ReservationPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = patch
	return nil
}

type fakeStore struct {
	mu        sync.Mutex
	maps      map[string]model.AdjustmentMap
	refreshed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{maps: map[string]model.AdjustmentMap{}}
}

func (f *fakeStore) Get(_ context.Context, date, id string) (model.DurationAdjustment, bool) {
	return f.Peek(date, id)
}

func (f *fakeStore) Peek(date, id string) (model.DurationAdjustment, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	adj, ok := f.maps[date][id]
	return adj, ok
}

func (f *fakeStore) Snapshot(date string) model.AdjustmentMap {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maps[date].Clone()
}

func (f *fakeStore) Set(_ context.Context, date, id string, patch model.DurationAdjustment) model.DurationAdjustment {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.maps[date] == nil {
		f.maps[date] = model.AdjustmentMap{}
	}
	merged := f.maps[date][id].Merge(patch)
	f.maps[date][id] = merged
	return merged
}

func (f *fakeStore) RefreshDate(_ context.Context, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, date)
	return nil
}

type fixture struct {
	svc     FloorService
	res     *fakeReservations
	store   *fakeStore
	tracker *lifecycle.Tracker
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	log := logger.Discard()
	res := newFakeReservations()
	store := newFakeStore()

	detector := scheduling.NewDetector(res, store, log)
	shifter := scheduling.NewShifter(res, store, log)
	deps := lifecycle.Deps{
		Adjustments:   store,
		Detector:      detector,
		Shifter:       shifter,
		Reservations:  res,
		Location:      time.UTC,
		ExtensionStep: 15,
		Log:           log,
	}
	tracker := lifecycle.NewTracker(deps, res, lifecycle.TrackerOptions{
		CountdownInterval: time.Hour,
		StatusInterval:    time.Hour,
		Clock:             func() time.Time { return now },
	})
	t.Cleanup(tracker.Stop)

	cfg := &config.Config{Log: log, Location: time.UTC, RemoteSyncTimeout: time.Second}
	svc := NewFloorService(res, store, tracker, detector, shifter, validator.NewAdjustmentValidator(log), cfg)
	return &fixture{svc: svc, res: res, store: store, tracker: tracker}
}

func reservation(id, date, clock string, party int, status model.Status, tables ...string) *model.Reservation {
	return &model.Reservation{
		ID:        id,
		Kind:      model.KindRegular,
		Date:      date,
		Time:      clock,
		PartySize: party,
		TableIDs:  tables,
		Status:    status,
	}
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T", err)
	return appErr.Code
}

func TestDayView_IncludesSpilloverFromPreviousDay(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 2, 0, 5, 0, 0, time.UTC))
	f.res.add(reservation("late", "2024-05-01", "23:00", 2, model.StatusConfirmed, "T1"))
	f.res.add(reservation("lunch", "2024-05-02", "12:00", 2, model.StatusWaiting, "T2"))
	f.store.Set(context.Background(), "2024-05-01", "late", model.DurationAdjustment{End: model.Some(1450)})

	view, err := f.svc.DayView(context.Background(), "2024-05-02")
	require.NoError(t, err)

	assert.Equal(t, "2024-05-02", view.Today)
	require.Len(t, view.Entries, 2)
	assert.Equal(t, "late", view.Entries[0].Reservation.ID)
	assert.True(t, view.Entries[0].Spillover)
	assert.Equal(t, "2024-05-01", view.Entries[0].SourceDate)
	assert.Equal(t, "lunch", view.Entries[1].Reservation.ID)

	previous, err := f.svc.DayView(context.Background(), "2024-05-01")
	require.NoError(t, err)
	assert.Empty(t, previous.Entries)
}

func TestDayView_PreviousDayFailureKeepsCurrent(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC))
	f.res.add(reservation("lunch", "2024-05-02", "12:00", 2, model.StatusWaiting, "T2"))
	f.res.errs["2024-05-01"] = errors.New("connection reset")

	view, err := f.svc.DayView(context.Background(), "2024-05-02")
	require.NoError(t, err)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, "lunch", view.Entries[0].Reservation.ID)
}

func TestDayView_CurrentDayFailure(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC))
	f.res.errs["2024-05-02"] = errors.New("connection reset")

	_, err := f.svc.DayView(context.Background(), "2024-05-02")
	assert.Equal(t, apperrors.CodeInternal, appCode(t, err))
}

func TestPatchAdjustment(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	f.res.add(reservation("r1", "2024-05-01", "20:00", 2, model.StatusConfirmed, "T1"))

	_, err := f.svc.PatchAdjustment(context.Background(), "2024-05-01", "r1", &model.DurationAdjustment{})
	assert.Equal(t, apperrors.CodeValidation, appCode(t, err))

	_, err = f.svc.PatchAdjustment(context.Background(), "2024-05-01", "r1", &model.DurationAdjustment{
		Start: model.Some(1200), End: model.Some(1100),
	})
	assert.Equal(t, apperrors.CodeValidation, appCode(t, err))

	_, err = f.svc.PatchAdjustment(context.Background(), "2024-05-01", "missing", &model.DurationAdjustment{End: model.Some(1300)})
	assert.Equal(t, apperrors.CodeNotFound, appCode(t, err))

	view, err := f.svc.PatchAdjustment(context.Background(), "2024-05-01", "r1", &model.DurationAdjustment{End: model.Some(1300)})
	require.NoError(t, err)
	assert.Equal(t, model.Some(1200), view.Adjustment.Start)
	assert.Equal(t, model.Some(1300), view.Adjustment.End)
	assert.Nil(t, view.Cascade)

	got, err := f.svc.GetAdjustment(context.Background(), "2024-05-01", "r1")
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, model.Some(1300), got.Adjustment.End)
}

func TestPatchAdjustment_RejectsInvertedMergedWindow(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	f.res.add(reservation("r1", "2024-05-01", "21:00", 2, model.StatusConfirmed, "T1"))
	f.store.Set(context.Background(), "2024-05-01", "r1", model.DurationAdjustment{Start: model.Some(1300)})

	_, err := f.svc.PatchAdjustment(context.Background(), "2024-05-01", "r1", &model.DurationAdjustment{End: model.Some(1200)})
	assert.Equal(t, apperrors.CodeValidation, appCode(t, err))

	stored, _ := f.store.Peek("2024-05-01", "r1")
	assert.Equal(t, model.DurationAdjustment{Start: model.Some(1300)}, stored)
}

func TestPatchAdjustment_ClampsEnd(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	f.res.add(reservation("r1", "2024-05-01", "19:00", 2, model.StatusConfirmed, "T1"))
	f.res.add(reservation("r2", "2024-05-01", "20:30", 2, model.StatusWaiting, "T1"))
	f.res.add(reservation("r3", "2024-05-01", "20:10", 2, model.StatusWaiting, "T9"))
	f.res.add(reservation("r4", "2024-05-01", "23:00", 2, model.StatusConfirmed, "T4"))

	view, err := f.svc.PatchAdjustment(context.Background(), "2024-05-01", "r1", &model.DurationAdjustment{End: model.Some(1320)})
	require.NoError(t, err)
	assert.Equal(t, model.Some(1230), view.Adjustment.End, "held at the next booking on the same table")
	assert.Nil(t, view.Cascade)
	assert.Empty(t, f.res.updates)

	view, err = f.svc.PatchAdjustment(context.Background(), "2024-05-01", "r4", &model.DurationAdjustment{End: model.Some(1500)})
	require.NoError(t, err)
	assert.Equal(t, model.Some(1440), view.Adjustment.End, "held at midnight")

	view, err = f.svc.PatchAdjustment(context.Background(), "2024-05-01", "r4", &model.DurationAdjustment{End: model.Some(1385)})
	require.NoError(t, err)
	assert.Equal(t, model.Some(1395), view.Adjustment.End, "at least the smallest block after start")
}

func TestPatchAdjustment_SeatedCascades(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 1, 20, 30, 0, 0, time.UTC))
	f.res.add(reservation("r1", "2024-05-01", "19:00", 4, model.StatusArrived, "T1"))
	f.res.add(reservation("r2", "2024-05-01", "21:10", 2, model.StatusWaiting, "T1"))
	f.res.add(reservation("r3", "2024-05-01", "22:00", 2, model.StatusWaiting, "T1"))

	view, err := f.svc.PatchAdjustment(context.Background(), "2024-05-01", "r1", &model.DurationAdjustment{End: model.Some(1290)})
	require.NoError(t, err)
	assert.Equal(t, model.Some(1140), view.Adjustment.Start)
	assert.Equal(t, model.Some(1290), view.Adjustment.End)

	require.NotNil(t, view.Cascade)
	require.Len(t, view.Cascade.Shifts, 1)
	shift := view.Cascade.Shifts[0]
	assert.Equal(t, "r2", shift.Reservation.ID)
	assert.Equal(t, "21:30", shift.Reservation.Time)
	assert.Equal(t, 1290, shift.To.Start)
	assert.Equal(t, 1350, shift.To.End)
	assert.Equal(t, "21:30", *f.res.updates["r2"].Time)

	moved, _ := f.store.Peek("2024-05-01", "r2")
	assert.Equal(t, model.DurationAdjustment{Start: model.Some(1290), End: model.Some(1350)}, moved)
}

func TestPatchAdjustment_SeatedCannotEndBeforeNow(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 1, 20, 30, 0, 0, time.UTC))
	f.res.add(reservation("r1", "2024-05-01", "19:00", 4, model.StatusArrived, "T1"))

	view, err := f.svc.PatchAdjustment(context.Background(), "2024-05-01", "r1", &model.DurationAdjustment{End: model.Some(1200)})
	require.NoError(t, err)
	assert.Equal(t, model.Some(1230), view.Adjustment.End)
	assert.Nil(t, view.Cascade)

	late := newFixture(t, time.Date(2024, 5, 2, 0, 20, 0, 0, time.UTC))
	late.res.add(reservation("r1", "2024-05-01", "19:00", 4, model.StatusArrived, "T1"))

	_, err = late.svc.PatchAdjustment(context.Background(), "2024-05-01", "r1", &model.DurationAdjustment{End: model.Some(1300)})
	assert.Equal(t, apperrors.CodeConflict, appCode(t, err))
}

func TestSeat_Errors(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 1, 19, 30, 0, 0, time.UTC))
	f.res.add(reservation("waiting", "2024-05-01", "19:00", 2, model.StatusWaiting, "T1"))

	_, err := f.svc.Seat(context.Background(), "walk-in", "waiting")
	assert.Equal(t, apperrors.CodeValidation, appCode(t, err))

	_, err = f.svc.Seat(context.Background(), model.KindRegular, "missing")
	assert.Equal(t, apperrors.CodeNotFound, appCode(t, err))

	_, err = f.svc.Seat(context.Background(), model.KindRegular, "waiting")
	assert.Equal(t, apperrors.CodeConflict, appCode(t, err))

	_, err = f.svc.Countdown(context.Background(), model.KindRegular, "waiting")
	assert.Equal(t, apperrors.CodeNotFound, appCode(t, err))
}

func TestSeatExtendFlow(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 1, 21, 5, 0, 0, time.UTC))
	f.res.add(reservation("r1", "2024-05-01", "19:00", 4, model.StatusArrived, "T1"))
	f.res.add(reservation("r2", "2024-05-01", "21:10", 2, model.StatusWaiting, "T1"))

	seated, err := f.svc.Seat(context.Background(), model.KindRegular, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1260, seated.End)

	countdown, err := f.svc.Countdown(context.Background(), model.KindRegular, "r1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateExpired, countdown.State)
	assert.Equal(t, int64(-300), countdown.RemainingSeconds)

	extended, err := f.svc.Extend(context.Background(), model.KindRegular, "r1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateSeated, extended.Countdown.State)
	assert.Equal(t, 1280, extended.Countdown.End)
	assert.Equal(t, int64(900), extended.Countdown.RemainingSeconds)
	require.Len(t, extended.Result.Cascade.Shifts, 1)
	assert.Equal(t, "21:20", extended.Result.Cascade.Shifts[0].Reservation.Time)

	_, err = f.svc.Extend(context.Background(), model.KindRegular, "r1")
	assert.Equal(t, apperrors.CodeInvalidTransition, appCode(t, err))
}

func TestClear(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 1, 21, 5, 0, 0, time.UTC))
	f.res.add(reservation("r1", "2024-05-01", "19:00", 4, model.StatusArrived, "T1"))
	f.res.add(reservation("r3", "2024-05-01", "21:00", 4, model.StatusArrived, "T3"))

	_, err := f.svc.Seat(context.Background(), model.KindRegular, "r3")
	require.NoError(t, err)
	err = f.svc.Clear(context.Background(), model.KindRegular, "r3")
	assert.Equal(t, apperrors.CodeInvalidTransition, appCode(t, err))

	_, err = f.svc.Seat(context.Background(), model.KindRegular, "r1")
	require.NoError(t, err)
	require.NoError(t, f.svc.Clear(context.Background(), model.KindRegular, "r1"))

	_, tracked := f.tracker.Get(model.KindRegular, "r1")
	assert.False(t, tracked)
	assert.True(t, *f.res.updates["r1"].Cleared)
}

func TestResume(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 2, 0, 30, 0, 0, time.UTC))
	f.res.add(reservation("late", "2024-05-01", "23:30", 2, model.StatusArrived, "T1"))
	f.res.add(reservation("waiting", "2024-05-02", "12:00", 2, model.StatusWaiting, "T2"))
	ev := reservation("gala", "2024-05-02", "00:00", 6, model.StatusArrived, "T5")
	ev.Kind = model.KindEvent
	f.res.add(ev)

	count, err := f.svc.Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, ok := f.tracker.Get(model.KindRegular, "late")
	assert.True(t, ok)
	_, ok = f.tracker.Get(model.KindEvent, "gala")
	assert.True(t, ok)
}
