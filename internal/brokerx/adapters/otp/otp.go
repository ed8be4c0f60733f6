// Package otp delivers one-time codes. Nothing here talks to a real email
// or SMS gateway: codes go to the log and to an in-memory outbox that the
// dev endpoint reads back.
package otp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/service"
	"github.com/aussiebroadwan/brokerx/pkg/slogx"
)

// LogDispatcher writes a line per code. The code itself is only logged
// when Reveal is set, which the app does outside production.
type LogDispatcher struct {
	Reveal bool
}

func (d LogDispatcher) Send(ctx context.Context, msg service.OTPMessage) error {
	attrs := []any{
		slog.String("client_id", msg.ClientID),
		slog.String("code_id", msg.CodeID),
		slog.String("channel", string(msg.Channel)),
		slog.String("destination", msg.Destination),
	}
	if d.Reveal {
		attrs = append(attrs, slog.String("code", msg.Code))
	}
	slogx.FromContext(ctx).Info("one-time code dispatched", attrs...)
	return nil
}

// DefaultOutboxSize is how many messages are kept per client.
const DefaultOutboxSize = 20

// Sent is a dispatched message with its send time.
type Sent struct {
	service.OTPMessage
	SentAt time.Time
}

// Outbox keeps the last few messages sent to each client.
type Outbox struct {
	mu    sync.RWMutex
	byID  map[string][]Sent
	limit int
	now   func() time.Time
}

// NewOutbox keeps up to limit messages per client; limit <= 0 uses
// DefaultOutboxSize. A nil clock uses time.Now.
func NewOutbox(limit int, now func() time.Time) *Outbox {
	if limit <= 0 {
		limit = DefaultOutboxSize
	}
	if now == nil {
		now = time.Now
	}
	return &Outbox{byID: make(map[string][]Sent), limit: limit, now: now}
}

func (o *Outbox) Send(_ context.Context, msg service.OTPMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	msgs := append(o.byID[msg.ClientID], Sent{OTPMessage: msg, SentAt: o.now().UTC()})
	if len(msgs) > o.limit {
		msgs = msgs[len(msgs)-o.limit:]
	}
	o.byID[msg.ClientID] = msgs
	return nil
}

// Messages returns what was sent to clientID, oldest first.
func (o *Outbox) Messages(clientID string) []Sent {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]Sent(nil), o.byID[clientID]...)
}

// Multi sends to every dispatcher and joins their errors.
type Multi []service.OTPDispatcher

func (m Multi) Send(ctx context.Context, msg service.OTPMessage) error {
	var errs []error
	for _, d := range m {
		if err := d.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
