// Package store is the two-tier adjustment store. The local cache is
// authoritative for the running process and is written synchronously; the
// remote store is mirrored in the background and reconciled on read, where
// the most recent successful remote read wins.
package store

import (
	"context"
	"seatflow/pkg/logger"
	"seatflow/pkg/model"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventName identifies adjustment change notifications wherever they leave
// the process.
const EventName = "duration-adjustments-changed"

// OriginRemote marks changes produced by remote reconciliation rather than
// by a local write.
const OriginRemote = "remote"

const defaultRemoteTimeout = 5 * time.Second

type LocalCache interface {
	Load(date string) model.AdjustmentMap
	Save(date string, m model.AdjustmentMap) error
}

type RemoteStore interface {
	GetOne(ctx context.Context, date, reservationID string) (*model.DurationAdjustment, error)
	GetByDate(ctx context.Context, date string) (model.AdjustmentMap, error)
	Upsert(ctx context.Context, date, reservationID string, patch model.DurationAdjustment) error
}

// Change is delivered to listeners after the local map for Date changed.
type Change struct {
	Date           string   `json:"date"`
	ReservationIDs []string `json:"reservation_ids"`
	Origin         string   `json:"origin"`
}

type Listener func(Change)

type Options struct {
	// RemoteTimeout bounds each background remote call.
	RemoteTimeout time.Duration
	// Origin tags local writes; a random id is used when empty.
	Origin string
}

type entryKey struct {
	date string
	id   string
}

type Store struct {
	local         LocalCache
	remote        RemoteStore
	log           *logger.Logger
	remoteTimeout time.Duration
	origin        string

	mu       sync.Mutex
	pending  map[entryKey]int
	versions map[entryKey]uint64

	subMu  sync.RWMutex
	nextID int
	byDate map[string]map[int]Listener
	all    map[int]Listener

	wg sync.WaitGroup
}

func New(local LocalCache, remote RemoteStore, log *logger.Logger, opts Options) *Store {
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = defaultRemoteTimeout
	}
	if opts.Origin == "" {
		opts.Origin = uuid.NewString()
	}
	return &Store{
		local:         local,
		remote:        remote,
		log:           log,
		remoteTimeout: opts.RemoteTimeout,
		origin:        opts.Origin,
		pending:       make(map[entryKey]int),
		versions:      make(map[entryKey]uint64),
		byDate:        make(map[string]map[int]Listener),
		all:           make(map[int]Listener),
	}
}

// Origin is the tag carried by changes that this store wrote locally.
func (s *Store) Origin() string {
	return s.origin
}

// Get returns the locally known adjustment and schedules a background
// refresh of the key from the remote store.
func (s *Store) Get(ctx context.Context, date, reservationID string) (model.DurationAdjustment, bool) {
	adj, ok := s.Peek(date, reservationID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.remoteTimeout)
		defer cancel()
		_ = s.Refresh(rctx, date, reservationID)
	}()

	return adj, ok
}

// Peek reads the local tier only.
func (s *Store) Peek(date, reservationID string) (model.DurationAdjustment, bool) {
	adj, ok := s.local.Load(date)[reservationID]
	return adj, ok
}

// Snapshot returns a copy of the local map for date.
func (s *Store) Snapshot(date string) model.AdjustmentMap {
	return s.local.Load(date)
}

// Set merges patch into the local record for (date, reservationID),
// persists the date's map, notifies listeners and mirrors the patch to the
// remote store in the background. The merged value is returned. A remote
// failure is logged and leaves the local value in place.
func (s *Store) Set(ctx context.Context, date, reservationID string, patch model.DurationAdjustment) model.DurationAdjustment {
	key := entryKey{date: date, id: reservationID}

	s.mu.Lock()
	m := s.local.Load(date)
	merged := m[reservationID].Merge(patch)
	m[reservationID] = merged
	if err := s.local.Save(date, m); err != nil {
		s.log.Error("Failed to persist adjustment locally",
			"date", date,
			"reservation_id", reservationID,
			"error", err,
		)
	}
	s.pending[key]++
	s.versions[key]++
	s.mu.Unlock()

	s.notify(Change{Date: date, ReservationIDs: []string{reservationID}, Origin: s.origin})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(key)

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.remoteTimeout)
		defer cancel()

		if err := s.remote.Upsert(rctx, date, reservationID, patch); err != nil {
			s.log.Warn("Failed to mirror adjustment to remote store",
				"date", date,
				"reservation_id", reservationID,
				"error", err,
			)
		}
	}()

	return merged
}

func (s *Store) release(key entryKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[key] <= 1 {
		delete(s.pending, key)
		return
	}
	s.pending[key]--
}

// Refresh pulls one key from the remote store and, when the remote holds a
// value, replaces the local one. Keys written locally while the fetch was
// in flight, or still being mirrored, keep their local value.
func (s *Store) Refresh(ctx context.Context, date, reservationID string) error {
	key := entryKey{date: date, id: reservationID}
	version := s.version(key)

	remote, err := s.remote.GetOne(ctx, date, reservationID)
	if err != nil {
		s.log.Warn("Failed to fetch adjustment from remote store",
			"date", date,
			"reservation_id", reservationID,
			"error", err,
		)
		return err
	}
	if remote == nil {
		return nil
	}

	changed := s.apply(date, model.AdjustmentMap{reservationID: *remote}, map[entryKey]uint64{key: version})
	if len(changed) > 0 {
		s.notify(Change{Date: date, ReservationIDs: changed, Origin: OriginRemote})
	}
	return nil
}

// RefreshDate reconciles every remote adjustment of date into the local map.
func (s *Store) RefreshDate(ctx context.Context, date string) error {
	versions := s.dateVersions(date)

	remote, err := s.remote.GetByDate(ctx, date)
	if err != nil {
		s.log.Warn("Failed to fetch adjustments from remote store", "date", date, "error", err)
		return err
	}

	changed := s.apply(date, remote, versions)
	if len(changed) > 0 {
		s.notify(Change{Date: date, ReservationIDs: changed, Origin: OriginRemote})
	}
	return nil
}

func (s *Store) version(key entryKey) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[key]
}

func (s *Store) dateVersions(date string) map[entryKey]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[entryKey]uint64)
	for k, v := range s.versions {
		if k.date == date {
			out[k] = v
		}
	}
	return out
}

// apply writes remote values into the local map and returns the ids whose
// local value actually changed.
func (s *Store) apply(date string, remote model.AdjustmentMap, seen map[entryKey]uint64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.local.Load(date)
	var changed []string
	for id, adj := range remote {
		key := entryKey{date: date, id: id}
		if s.pending[key] > 0 || s.versions[key] != seen[key] {
			continue
		}
		if cur, ok := m[id]; ok && cur == adj {
			continue
		}
		m[id] = adj
		changed = append(changed, id)
	}
	if len(changed) == 0 {
		return nil
	}

	if err := s.local.Save(date, m); err != nil {
		s.log.Error("Failed to persist refreshed adjustments locally", "date", date, "error", err)
	}
	return changed
}

// Subscribe registers l for changes on date and returns its cancel func.
func (s *Store) Subscribe(date string, l Listener) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	if s.byDate[date] == nil {
		s.byDate[date] = make(map[int]Listener)
	}
	s.byDate[date][id] = l

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.byDate[date], id)
		if len(s.byDate[date]) == 0 {
			delete(s.byDate, date)
		}
	}
}

// SubscribeAll registers l for changes on every date.
func (s *Store) SubscribeAll(l Listener) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	s.all[id] = l

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.all, id)
	}
}

func (s *Store) notify(c Change) {
	s.subMu.RLock()
	listeners := make([]Listener, 0, len(s.byDate[c.Date])+len(s.all))
	for _, l := range s.byDate[c.Date] {
		listeners = append(listeners, l)
	}
	for _, l := range s.all {
		listeners = append(listeners, l)
	}
	s.subMu.RUnlock()

	for _, l := range listeners {
		l(c)
	}
}

// Wait blocks until every background remote call has finished.
func (s *Store) Wait() {
	s.wg.Wait()
}
