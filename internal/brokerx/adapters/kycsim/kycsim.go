// Package kycsim stands in for an identity verification provider. Every
// submission is decided after a fixed delay and the result is pushed back
// through an outcome callback, the way a provider webhook would.
package kycsim

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/pkg/slogx"
)

const (
	DefaultDelay = 2 * time.Second
	DefaultLevel = "Basic"
)

// OutcomeFunc applies a decided verification to a client.
type OutcomeFunc func(ctx context.Context, clientID string, status domain.KYCStatus, level string) error

// DecideFunc picks the outcome for a client. The default verifies everyone.
type DecideFunc func(clientID string) domain.KYCStatus

type Simulator struct {
	Delay   time.Duration
	Level   string
	Decide  DecideFunc
	Outcome OutcomeFunc

	mu      sync.Mutex
	cases   map[string]domain.KYCStatus
	timers  map[string]*time.Timer
	pending sync.WaitGroup
	closed  bool
}

func New(delay time.Duration, outcome OutcomeFunc) *Simulator {
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Simulator{Delay: delay, Level: DefaultLevel, Outcome: outcome}
}

// Submit registers the case and schedules its decision. Submitting the
// same case twice doesn't schedule a second decision.
func (s *Simulator) Submit(ctx context.Context, clientID, kycID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cases == nil {
		s.cases = make(map[string]domain.KYCStatus)
		s.timers = make(map[string]*time.Timer)
	}
	if s.closed {
		return nil
	}
	if _, ok := s.cases[kycID]; ok {
		return nil
	}
	s.cases[kycID] = domain.KYCPending

	log := slogx.FromContext(ctx).With(slog.String("client_id", clientID), slog.String("kyc_id", kycID))
	log.Info("kyc case submitted", "delay", s.Delay)

	s.pending.Add(1)
	s.timers[kycID] = time.AfterFunc(s.Delay, func() {
		defer s.pending.Done()
		s.decide(slogx.WithContext(context.Background(), log), clientID, kycID)
	})
	return nil
}

func (s *Simulator) decide(ctx context.Context, clientID, kycID string) {
	status := domain.KYCVerified
	if s.Decide != nil {
		status = s.Decide(clientID)
	}

	s.mu.Lock()
	s.cases[kycID] = status
	delete(s.timers, kycID)
	s.mu.Unlock()

	if s.Outcome == nil {
		return
	}
	if err := s.Outcome(ctx, clientID, status, s.Level); err != nil {
		slogx.FromContext(ctx).Error("kyc outcome not applied", "status", status, "err", err)
		return
	}
	slogx.FromContext(ctx).Info("kyc case decided", "status", status)
}

// Status reports the provider's view of a case. Unknown cases are Pending.
func (s *Simulator) Status(_ context.Context, kycID string) (domain.KYCStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.cases[kycID]; ok {
		return st, nil
	}
	return domain.KYCPending, nil
}

// Close cancels undecided cases and waits for running decisions.
func (s *Simulator) Close() {
	s.mu.Lock()
	s.closed = true
	for id, t := range s.timers {
		if t.Stop() {
			s.pending.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.pending.Wait()
}
