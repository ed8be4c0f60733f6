// Package paysim stands in for the payment processor. Each deposit
// request is acknowledged at once and settled a little later by calling
// the service's own settlement webhook.
package paysim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/service"
	"github.com/aussiebroadwan/brokerx/pkg/brokersdk"
	"github.com/aussiebroadwan/brokerx/pkg/cryptox"
	"github.com/aussiebroadwan/brokerx/pkg/slogx"
	"github.com/google/uuid"
)

const (
	DefaultDelay   = time.Second
	webhookTimeout = 10 * time.Second
)

// DeliverFunc posts a settlement callback.
type DeliverFunc func(ctx context.Context, req brokersdk.WebhookRequest) error

// DecideFunc picks the settlement status for an instruction.
type DecideFunc func(service.DepositInstruction) string

type Simulator struct {
	Delay   time.Duration
	Secret  string
	Decide  DecideFunc
	Deliver DeliverFunc

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending sync.WaitGroup
	closed  bool
}

// New settles through the webhook at baseURL. An empty secret sends
// unsigned callbacks.
func New(baseURL, secret string, delay time.Duration) *Simulator {
	client := brokersdk.NewSDKClient(baseURL)
	return &Simulator{
		Delay:  delay,
		Secret: secret,
		Deliver: func(ctx context.Context, req brokersdk.WebhookRequest) error {
			_, err := client.SendWebhook(ctx, req)
			return err
		},
	}
}

// RequestDeposit accepts the instruction and schedules its callback.
func (s *Simulator) RequestDeposit(ctx context.Context, in service.DepositInstruction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("payment simulator is shut down")
	}
	if s.timers == nil {
		s.timers = make(map[string]*time.Timer)
	}
	if _, ok := s.timers[in.PaymentTxID]; ok {
		return nil
	}

	ref := uuid.NewString()
	log := slogx.FromContext(ctx).With(slog.String("payment_tx_id", in.PaymentTxID), slog.String("provider_ref", ref))
	log.Info("deposit accepted by processor", "amount", in.Amount.String(), "currency", in.Currency)

	delay := s.Delay
	if delay < 0 {
		delay = DefaultDelay
	}
	s.pending.Add(1)
	s.timers[in.PaymentTxID] = time.AfterFunc(delay, func() {
		defer s.pending.Done()
		s.settle(slogx.WithContext(context.Background(), log), in, ref)
	})
	return nil
}

func (s *Simulator) settle(ctx context.Context, in service.DepositInstruction, ref string) {
	s.mu.Lock()
	delete(s.timers, in.PaymentTxID)
	s.mu.Unlock()

	status := string(domain.PayTxSettled)
	if s.Decide != nil {
		status = s.Decide(in)
	}
	req := brokersdk.WebhookRequest{PaymentTxID: in.PaymentTxID, Status: status, ProviderRef: ref}
	if s.Secret != "" {
		req.Signature = cryptox.SignPayload(s.Secret, service.SettlementMessage(req.PaymentTxID, req.Status))
	}

	ctx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()
	if err := s.Deliver(ctx, req); err != nil {
		slogx.FromContext(ctx).Error("settlement webhook failed", "status", status, "err", err)
		return
	}
	slogx.FromContext(ctx).Info("settlement webhook delivered", "status", status)
}

// Close drops callbacks not yet due and waits for in-flight ones.
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
