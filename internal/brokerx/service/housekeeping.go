package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
)

// DefaultSessionRetention is how long dead sessions are kept before they
// are deleted.
const DefaultSessionRetention = 7 * 24 * time.Hour

// HousekeepingService periodically expires stale challenges and contact
// codes and deletes long dead sessions. Expiry is always evaluated lazily
// on use as well; this only keeps the tables tidy.
type HousekeepingService struct {
	*Runtime

	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService defaults the interval to an hour and the
// retention to DefaultSessionRetention.
func NewHousekeepingService(rt *Runtime, st store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = DefaultSessionRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HousekeepingService{
		Runtime:   rt,
		Store:     st,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs a sweep now and then every Interval until Stop.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-flight sweep has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// SweepResult counts what one sweep touched.
type SweepResult struct {
	ExpiredChallenges int64
	ExpiredCodes      int64
	DeletedSessions   int64
}

// Sweep runs each cleanup once. A failing step is logged and does not stop
// the others.
func (s *HousekeepingService) Sweep(ctx context.Context) SweepResult {
	now := s.now()
	var res SweepResult
	var err error

	if res.ExpiredChallenges, err = s.Store.MFA().ExpireStaleChallenges(ctx, now); err != nil {
		s.Logger.Error("failed to expire mfa challenges", "error", err)
	}
	if res.ExpiredCodes, err = s.Store.Clients().ExpireStaleCodes(ctx, now); err != nil {
		s.Logger.Error("failed to expire contact codes", "error", err)
	}
	if res.DeletedSessions, err = s.Store.Sessions().DeleteDeadSessions(ctx, now.Add(-s.Retention)); err != nil {
		s.Logger.Error("failed to delete dead sessions", "error", err)
	}

	s.Logger.Info("housekeeping sweep completed",
		"expired_challenges", res.ExpiredChallenges,
		"expired_codes", res.ExpiredCodes,
		"deleted_sessions", res.DeletedSessions,
	)
	return res
}
