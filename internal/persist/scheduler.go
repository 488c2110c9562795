package persist

import (
	"context"
	"time"

	"go.uber.org/zap"

	"waview/internal/state"
)

// Document keys: the main state record and the independent alias record.
const (
	DocState     = "state"
	DocOverrides = "overrides"
)

// Scheduler periodically snapshots the state store into the document table,
// off the render/input loop so a slow disk never blocks interactivity.
type Scheduler struct {
	db       *DB
	store    *state.Store
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewScheduler creates a snapshot scheduler.
func NewScheduler(db *DB, store *state.Store, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Scheduler{
		db:       db,
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Restore loads both documents into the store, once, synchronously. Corrupt
// or absent documents silently yield empty initial state.
func (s *Scheduler) Restore() {
	if blob, err := s.db.GetDocument(DocState); err != nil {
		s.logger.Warn("state document unreadable, starting empty", zap.Error(err))
	} else {
		s.store.Restore(blob)
	}
	if blob, err := s.db.GetDocument(DocOverrides); err != nil {
		s.logger.Warn("overrides document unreadable, starting empty", zap.Error(err))
	} else {
		s.store.RestoreOverrides(blob)
	}
}

// Start begins the snapshot ticker.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.SnapshotNow()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the ticker and takes one final snapshot so a clean shutdown
// never loses the last interval.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.SnapshotNow()
}

// SnapshotNow writes both documents wholesale. Failures are swallowed.
func (s *Scheduler) SnapshotNow() {
	if blob, err := s.store.Snapshot(); err == nil {
		if err := s.db.PutDocument(DocState, blob); err != nil {
			s.logger.Debug("state snapshot failed", zap.Error(err))
		}
	}
	if blob, err := s.store.OverridesSnapshot(); err == nil {
		if err := s.db.PutDocument(DocOverrides, blob); err != nil {
			s.logger.Debug("overrides snapshot failed", zap.Error(err))
		}
	}
}
