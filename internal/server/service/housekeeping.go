package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/halcyonlabs/vaultgate/internal/server/store"
)

// DefaultEnrollmentTTL bounds how long a pending MFA enrollment may sit
// unconfirmed before housekeeping discards its candidate secret.
const DefaultEnrollmentTTL = 15 * time.Minute

// HousekeepingService periodically cleans up expired database records
// to prevent unbounded growth of sessions and abandoned MFA enrollments.
type HousekeepingService struct {
	Store         store.Store
	Logger        *slog.Logger
	Interval      time.Duration
	EnrollmentTTL time.Duration

	// Now defaults to time.Now; tests substitute a fixed clock.
	Now func() time.Time

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 5 minutes.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &HousekeepingService{
		Store:         store,
		Logger:        logger,
		Interval:      interval,
		EnrollmentTTL: DefaultEnrollmentTTL,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

func (s *HousekeepingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
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
	s.Cleanup()

	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup performs a single sweep of expired records. Each sweep is
// independent - a failure in one won't stop the others.
func (s *HousekeepingService) Cleanup() {
	ctx := context.Background()
	now := s.now()
	s.Logger.Debug("starting housekeeping cleanup")

	if err := s.Store.Sessions().DeleteExpired(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired sessions", "error", err)
	}

	if err := s.Store.Accounts().ExpirePendingEnrollments(ctx, now.Add(-s.EnrollmentTTL)); err != nil {
		s.Logger.Error("failed to expire stale MFA enrollments", "error", err)
	}

	s.Logger.Debug("housekeeping cleanup completed")
}
