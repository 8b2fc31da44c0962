// Package kv wraps an embedded badger database with JSON values, tuple keys
// and prefix listing.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/magnolia-blog/magnolia/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a key does not exist or has expired
	ErrNotFound = errors.New("key not found")
	// ErrInvalidKey is returned for empty keys or segments containing a zero byte
	ErrInvalidKey = errors.New("invalid key")
)

const maxConflictRetries = 3

// Config holds configuration for a Store
type Config struct {
	// Path is the directory for badger files. Ignored when InMemory is true.
	Path       string
	InMemory   bool
	SyncWrites bool
	// GCInterval is how often to run value log GC. Zero disables it.
	GCInterval     time.Duration
	GCDiscardRatio float64
}

// ConfigFrom converts the application settings
func ConfigFrom(c *config.KVConfig) Config {
	return Config{
		Path:           c.Path,
		InMemory:       c.InMemory,
		SyncWrites:     c.SyncWrites,
		GCInterval:     c.GCIntervalDuration(),
		GCDiscardRatio: c.GCDiscardRatio,
	}
}

// Store is a badger database with JSON-encoded values
type Store struct {
	db     *badger.DB
	gc     *GCRunner
	logger *zap.Logger
}

// zapBadgerLogger adapts zap to badger's Logger interface
type zapBadgerLogger struct {
	s *zap.SugaredLogger
}

func (l zapBadgerLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l zapBadgerLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l zapBadgerLogger) Infof(format string, args ...interface{})    { l.s.Debugf(format, args...) }
func (l zapBadgerLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }

// Open opens the store, creating the directory if needed, and starts
// value log GC for persistent stores.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(zapBadgerLogger{s: logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	s := &Store{db: db, logger: logger}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := NewGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, logger)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create GC runner: %w", err)
		}
		runner.Start()
		s.gc = runner
	}

	logger.Info("Key-value store opened",
		zap.String("path", cfg.Path),
		zap.Bool("in_memory", cfg.InMemory),
	)
	return s, nil
}

// OpenInMemory opens a throwaway store, used by tests and previews
func OpenInMemory(logger *zap.Logger) (*Store, error) {
	return Open(Config{InMemory: true}, logger)
}

// Close stops GC and closes the database
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.Stop()
		s.gc = nil
	}
	return s.db.Close()
}

// Ping checks that the database accepts reads
func (s *Store) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("store is closed")
	}
	return s.View(ctx, func(*Txn) error { return nil })
}

// Update runs fn in a read-write transaction and commits it. Conflicting
// transactions are retried, so fn must not have side effects outside txn.
func (s *Store) Update(ctx context.Context, fn func(txn *Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = s.update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.logger.Debug("transaction conflict, retrying", zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", maxConflictRetries, err)
}

func (s *Store) update(fn func(txn *Txn) error) error {
	btxn := s.db.NewTransaction(true)
	defer btxn.Discard()

	if err := fn(&Txn{txn: btxn}); err != nil {
		return err
	}
	return btxn.Commit()
}

// View runs fn in a read-only transaction
func (s *Store) View(ctx context.Context, fn func(txn *Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	btxn := s.db.NewTransaction(false)
	defer btxn.Discard()
	return fn(&Txn{txn: btxn})
}

// Get decodes the value stored at key into out
func (s *Store) Get(ctx context.Context, key Key, out any) error {
	return s.View(ctx, func(txn *Txn) error {
		return txn.Get(key, out)
	})
}

// Set stores value at key. A positive ttl expires the entry.
func (s *Store) Set(ctx context.Context, key Key, value any, ttl time.Duration) error {
	return s.Update(ctx, func(txn *Txn) error {
		return txn.Set(key, value, ttl)
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key Key) error {
	return s.Update(ctx, func(txn *Txn) error {
		return txn.Delete(key)
	})
}

// List returns the entries under prefix
func (s *Store) List(ctx context.Context, prefix Key, opts ListOptions) ([]Entry, error) {
	var entries []Entry
	err := s.View(ctx, func(txn *Txn) error {
		var err error
		entries, err = txn.List(prefix, opts)
		return err
	})
	return entries, err
}

// Count returns the number of keys under prefix
func (s *Store) Count(ctx context.Context, prefix Key) (int, error) {
	var n int
	err := s.View(ctx, func(txn *Txn) error {
		var err error
		n, err = txn.Count(prefix)
		return err
	})
	return n, err
}

func encode(value any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	return b, nil
}
