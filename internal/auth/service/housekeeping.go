package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tinmegali/authserver/internal/auth/store"
)

// HousekeepingService periodically deletes expired authorization codes and
// refresh rotation records so the store does not grow without bound.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		Now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the store is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

// run is the main background worker loop.
func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup performs one purge pass and returns the number of rows removed.
// Each deletion is independent; a failure in one does not stop the other.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	now := s.Now()
	var total int64

	if n, err := s.Store.AuthorizationCodes().DeleteExpiredAuthorizationCodes(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired authorization codes", "error", err)
	} else {
		s.Logger.Debug("deleted expired authorization codes", "count", n)
		total += n
	}

	if n, err := s.Store.RefreshRotations().DeleteExpiredRefreshRotations(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired refresh rotations", "error", err)
	} else {
		s.Logger.Debug("deleted expired refresh rotations", "count", n)
		total += n
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted", total)
	return total
}
