// Package badger opens the embedded key-value store that backs the
// device-local tier of the adjustment store.
package badger

import (
	"errors"
	"fmt"
	"os"
	"seatflow/pkg/logger"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const defaultGCDiscardRatio = 0.5

type Config struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	GCInterval time.Duration
	Log        *logger.Logger
}

// badgerLogger routes badger's printf-style logging into the service logger.
type badgerLogger struct {
	log *logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

type DB struct {
	*badger.DB
	log      *logger.Logger
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Log != nil {
		opts = opts.WithLogger(&badgerLogger{log: cfg.Log})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	wrapped := &DB{DB: db, log: cfg.Log}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		wrapped.stop = make(chan struct{})
		wrapped.done = make(chan struct{})
		go wrapped.runGC(cfg.GCInterval)
	}

	return wrapped, nil
}

func OpenInMemory() (*DB, error) {
	return Open(Config{InMemory: true})
}

func (d *DB) runGC(interval time.Duration) {
	defer close(d.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			err := d.RunValueLogGC(defaultGCDiscardRatio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && d.log != nil {
				d.log.Warn("badger value log GC failed", "error", err)
			}
		}
	}
}

// Close stops the GC loop, if any, and closes the database.
func (d *DB) Close() error {
	if d.stop != nil {
		d.stopOnce.Do(func() {
			close(d.stop)
			<-d.done
		})
	}
	return d.DB.Close()
}
