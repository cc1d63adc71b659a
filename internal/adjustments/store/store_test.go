package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"seatflow/internal/adjustments/cache"
	badgerdb "seatflow/pkg/db/badger"
	"seatflow/pkg/logger"
	"seatflow/pkg/model"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upsertCall struct {
	date  string
	id    string
	patch model.DurationAdjustment
}

type fakeRemote struct {
	mu      sync.Mutex
	upserts []upsertCall

	getOneFunc    func(ctx context.Context, date, id string) (*model.DurationAdjustment, error)
	getByDateFunc func(ctx context.Context, date string) (model.AdjustmentMap, error)
	upsertFunc    func(ctx context.Context, date, id string, patch model.DurationAdjustment) error
}

func (f *fakeRemote) GetOne(ctx context.Context, date, id string) (*model.DurationAdjustment, error) {
	if f.getOneFunc != nil {
		return f.getOneFunc(ctx, date, id)
	}
	return nil, nil
}

func (f *fakeRemote) GetByDate(ctx context.Context, date string) (model.AdjustmentMap, error) {
	if f.getByDateFunc != nil {
		return f.getByDateFunc(ctx, date)
	}
	return model.AdjustmentMap{}, nil
}

func (f *fakeRemote) Upsert(ctx context.Context, date, id string, patch model.DurationAdjustment) error {
	f.mu.Lock()
	f.upserts = append(f.upserts, upsertCall{date: date, id: id, patch: patch})
	f.mu.Unlock()
	if f.upsertFunc != nil {
		return f.upsertFunc(ctx, date, id, patch)
	}
	return nil
}

func (f *fakeRemote) calls() []upsertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upsertCall(nil), f.upserts...)
}

func newStore(t *testing.T, remote *fakeRemote) *Store {
	t.Helper()
	db, err := badgerdb.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logger.Discard()
	s := New(cache.NewBadgerCache(db.DB, log), remote, log, Options{Origin: "instance-a"})
	t.Cleanup(s.Wait)
	return s
}

func TestSet_VisibleSynchronouslyAndMerged(t *testing.T) {
	remote := &fakeRemote{}
	s := newStore(t, remote)
	ctx := context.Background()

	s.Set(ctx, "2024-05-01", "r1", model.DurationAdjustment{End: model.Some(1280)})
	merged := s.Set(ctx, "2024-05-01", "r1", model.DurationAdjustment{Start: model.Some(1200)})

	want := model.DurationAdjustment{Start: model.Some(1200), End: model.Some(1280)}
	assert.Equal(t, want, merged)

	got, ok := s.Peek("2024-05-01", "r1")
	require.True(t, ok)
	assert.Equal(t, want, got)

	s.Wait()
	calls := remote.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, model.DurationAdjustment{End: model.Some(1280)}, calls[0].patch)
	assert.Equal(t, model.DurationAdjustment{Start: model.Some(1200)}, calls[1].patch)
}

func TestSet_OverStoredNull(t *testing.T) {
	db, err := badgerdb.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set(cache.Key("2024-05-01"), []byte("null"))
	}))

	log := logger.Discard()
	remote := &fakeRemote{
		getByDateFunc: func(context.Context, string) (model.AdjustmentMap, error) {
			return model.AdjustmentMap{"r2": {End: model.Some(1300)}}, nil
		},
	}
	s := New(cache.NewBadgerCache(db.DB, log), remote, log, Options{Origin: "instance-a"})
	t.Cleanup(s.Wait)

	var merged model.DurationAdjustment
	require.NotPanics(t, func() {
		merged = s.Set(context.Background(), "2024-05-01", "r1", model.DurationAdjustment{End: model.Some(1280)})
	})
	assert.Equal(t, model.DurationAdjustment{End: model.Some(1280)}, merged)

	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set(cache.Key("2024-05-02"), []byte("null"))
	}))
	require.NotPanics(t, func() {
		require.NoError(t, s.RefreshDate(context.Background(), "2024-05-02"))
	})
	got, ok := s.Peek("2024-05-02", "r2")
	require.True(t, ok)
	assert.Equal(t, model.Some(1300), got.End)
}

func TestSet_RemoteFailureKeepsLocal(t *testing.T) {
	remote := &fakeRemote{
		upsertFunc: func(context.Context, string, string, model.DurationAdjustment) error {
			return errors.New("network unreachable")
		},
	}
	s := newStore(t, remote)

	s.Set(context.Background(), "2024-05-01", "r2", model.DurationAdjustment{Start: model.Some(1280), End: model.Some(1340)})
	s.Wait()

	got, ok := s.Peek("2024-05-01", "r2")
	require.True(t, ok)
	assert.Equal(t, model.Some(1280), got.Start)
	assert.Equal(t, model.Some(1340), got.End)
}

func TestSet_NotifiesDateSubscribers(t *testing.T) {
	s := newStore(t, &fakeRemote{})

	var mu sync.Mutex
	var onDate, onOther, onAll []Change
	record := func(dst *[]Change) Listener {
		return func(c Change) {
			mu.Lock()
			defer mu.Unlock()
			*dst = append(*dst, c)
		}
	}

	unsubscribe := s.Subscribe("2024-05-01", record(&onDate))
	s.Subscribe("2024-05-02", record(&onOther))
	s.SubscribeAll(record(&onAll))

	s.Set(context.Background(), "2024-05-01", "r1", model.DurationAdjustment{End: model.Some(1280)})

	require.Len(t, onDate, 1)
	assert.Equal(t, Change{Date: "2024-05-01", ReservationIDs: []string{"r1"}, Origin: "instance-a"}, onDate[0])
	assert.Empty(t, onOther)
	assert.Len(t, onAll, 1)

	unsubscribe()
	s.Set(context.Background(), "2024-05-01", "r1", model.DurationAdjustment{End: model.Some(1295)})

	assert.Len(t, onDate, 1)
	assert.Len(t, onAll, 2)
}

func TestRefresh_RemoteSupersedesLocal(t *testing.T) {
	remote := &fakeRemote{
		getOneFunc: func(_ context.Context, date, id string) (*model.DurationAdjustment, error) {
			adj := model.DurationAdjustment{End: model.Some(1300)}
			return &adj, nil
		},
	}
	s := newStore(t, remote)
	s.Set(context.Background(), "2024-05-01", "r1", model.DurationAdjustment{End: model.Some(1280)})
	s.Wait()

	var changes []Change
	s.Subscribe("2024-05-01", func(c Change) { changes = append(changes, c) })

	require.NoError(t, s.Refresh(context.Background(), "2024-05-01", "r1"))

	got, _ := s.Peek("2024-05-01", "r1")
	assert.Equal(t, model.Some(1300), got.End)
	require.Len(t, changes, 1)
	assert.Equal(t, OriginRemote, changes[0].Origin)

	require.NoError(t, s.Refresh(context.Background(), "2024-05-01", "r1"))
	assert.Len(t, changes, 1, "unchanged value must not notify again")
}

func TestRefresh_MissingRemoteKeepsLocal(t *testing.T) {
	s := newStore(t, &fakeRemote{})
	s.Set(context.Background(), "2024-05-01", "r1", model.DurationAdjustment{End: model.Some(1280)})
	s.Wait()

	require.NoError(t, s.Refresh(context.Background(), "2024-05-01", "r1"))

	got, _ := s.Peek("2024-05-01", "r1")
	assert.Equal(t, model.Some(1280), got.End)
}

func TestRefresh_ErrorKeepsLocal(t *testing.T) {
	remote := &fakeRemote{
		getOneFunc: func(context.Context, string, string) (*model.DurationAdjustment, error) {
			return nil, errors.New("timeout")
		},
	}
	s := newStore(t, remote)
	s.Set(context.Background(), "2024-05-01", "r1", model.DurationAdjustment{End: model.Some(1280)})
	s.Wait()

	assert.Error(t, s.Refresh(context.Background(), "2024-05-01", "r1"))

	got, _ := s.Peek("2024-05-01", "r1")
	assert.Equal(t, model.Some(1280), got.End)
}

func TestRefresh_SkipsKeyWithInFlightWrite(t *testing.T) {
	release := make(chan struct{})
	remote := &fakeRemote{
		upsertFunc: func(context.Context, string, string, model.DurationAdjustment) error {
			<-release
			return nil
		},
		getOneFunc: func(context.Context, string, string) (*model.DurationAdjustment, error) {
			stale := model.DurationAdjustment{End: model.Some(1260)}
			return &stale, nil
		},
	}
	s := newStore(t, remote)

	s.Set(context.Background(), "2024-05-01", "r1", model.DurationAdjustment{End: model.Some(1280)})
	require.NoError(t, s.Refresh(context.Background(), "2024-05-01", "r1"))

	got, _ := s.Peek("2024-05-01", "r1")
	assert.Equal(t, model.Some(1280), got.End)

	close(release)
	s.Wait()
}

func TestGet_ReadsLocalThenRefreshes(t *testing.T) {
	remote := &fakeRemote{
		getOneFunc: func(context.Context, string, string) (*model.DurationAdjustment, error) {
			adj := model.DurationAdjustment{Start: model.Some(1190), End: model.Some(1310)}
			return &adj, nil
		},
	}
	s := newStore(t, remote)

	_, ok := s.Get(context.Background(), "2024-05-01", "r9")
	assert.False(t, ok)

	s.Wait()

	got, ok := s.Peek("2024-05-01", "r9")
	require.True(t, ok)
	assert.Equal(t, model.Some(1190), got.Start)
	assert.Equal(t, model.Some(1310), got.End)
}

func TestRefreshDate(t *testing.T) {
	remote := &fakeRemote{
		getByDateFunc: func(_ context.Context, date string) (model.AdjustmentMap, error) {
			return model.AdjustmentMap{
				"r1": {End: model.Some(1300)},
				"r2": {Start: model.Some(1300), End: model.Some(1360)},
			}, nil
		},
	}
	s := newStore(t, remote)
	s.Set(context.Background(), "2024-05-01", "r3", model.DurationAdjustment{End: model.Some(1100)})
	s.Wait()

	var changes []Change
	s.Subscribe("2024-05-01", func(c Change) { changes = append(changes, c) })

	require.NoError(t, s.RefreshDate(context.Background(), "2024-05-01"))

	snap := s.Snapshot("2024-05-01")
	assert.Len(t, snap, 3)
	assert.Equal(t, model.Some(1100), snap["r3"].End)
	require.Len(t, changes, 1)
	assert.ElementsMatch(t, []string{"r1", "r2"}, changes[0].ReservationIDs)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newStore(t, &fakeRemote{})
	s.Set(context.Background(), "2024-05-01", "r1", model.DurationAdjustment{End: model.Some(1280)})

	snap := s.Snapshot("2024-05-01")
	snap["r1"] = model.DurationAdjustment{}

	got, _ := s.Peek("2024-05-01", "r1")
	assert.Equal(t, model.Some(1280), got.End)
}
