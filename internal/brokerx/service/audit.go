package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
	"github.com/aussiebroadwan/brokerx/pkg/slogx"
)

// DefaultAuditBuffer is the queue length used when none is given.
const DefaultAuditBuffer = 1024

// Event is an audit record before its payload is serialized.
type Event struct {
	ID        string
	Type      string
	Actor     string
	AccountID string
	Payload   any
	At        time.Time
}

type namedSink struct {
	name string
	sink AuditSink
}

type queued struct {
	ev  Event
	log *slog.Logger
}

// Auditor fans audit events out to its sinks on a single worker. Emit
// never blocks: when the buffer is full the event is dropped and counted.
type Auditor struct {
	sinks   []namedSink
	queue   chan queued
	metrics *Metrics
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAuditor starts the worker. Close must be called to drain it.
func NewAuditor(logger *slog.Logger, m *Metrics, buffer int) *Auditor {
	if buffer <= 0 {
		buffer = DefaultAuditBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Auditor{
		queue:   make(chan queued, buffer),
		metrics: m,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// AddSink registers a sink. Call before the first Emit.
func (a *Auditor) AddSink(name string, s AuditSink) {
	a.sinks = append(a.sinks, namedSink{name: name, sink: s})
}

// Emit queues ev. It reports false when the event was dropped.
func (a *Auditor) Emit(ctx context.Context, ev Event) bool {
	if a == nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return false
	}

	log := slogx.FromContext(ctx)
	select {
	case a.queue <- queued{ev: ev, log: log}:
		return true
	default:
		a.metrics.auditDropped()
		log.Warn("audit buffer full, event dropped", "type", ev.Type, "actor", ev.Actor)
		return false
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to
// end.
func (a *Auditor) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Auditor) run() {
	defer close(a.done)
	for q := range a.queue {
		a.write(q)
	}
}

func (a *Auditor) write(q queued) {
	payload, err := json.Marshal(q.ev.Payload)
	if err != nil {
		q.log.Error("audit payload not serializable", "type", q.ev.Type, "err", err)
		payload = []byte("null")
	}
	rec := domain.AuditEvent{
		ID:        q.ev.ID,
		Type:      q.ev.Type,
		Actor:     q.ev.Actor,
		AccountID: q.ev.AccountID,
		Payload:   payload,
		CreatedAt: q.ev.At.UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, s := range a.sinks {
		err := s.sink.Write(ctx, rec)
		a.metrics.auditWritten(s.name, err)
		if err != nil {
			q.log.Error("audit sink write failed", "sink", s.name, "type", rec.Type, "err", err)
		}
	}
}

// StoreSink writes events to the audit_events table.
type StoreSink struct {
	Store store.Store
}

func (s StoreSink) Write(ctx context.Context, ev domain.AuditEvent) error {
	return s.Store.Audit().AppendEvent(ctx, ev)
}
