package service

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/pkg/idx"
)

// Runtime is the shared plumbing every service leans on: time, ids,
// randomness, per-entity locks, background tasks, audit and metrics.
// All fields are optional; a nil Runtime behaves like the zero value.
type Runtime struct {
	Clock   func() time.Time
	IDs     *idx.Generator
	Entropy io.Reader

	Locks   *KeyedMutex
	Tasks   *TaskGroup
	Audit   *Auditor
	Metrics *Metrics
}

// NewRuntime returns a Runtime on the wall clock and crypto/rand with its
// own lock table.
func NewRuntime() *Runtime {
	return &Runtime{
		Clock:   time.Now,
		IDs:     idx.Default(),
		Entropy: rand.Reader,
		Locks:   NewKeyedMutex(),
	}
}

func (r *Runtime) now() time.Time {
	if r == nil || r.Clock == nil {
		return time.Now().UTC()
	}
	return r.Clock().UTC()
}

func (r *Runtime) newID() string {
	if r == nil || r.IDs == nil {
		return idx.New().String()
	}
	return r.IDs.New().String()
}

func (r *Runtime) entropy() io.Reader {
	if r == nil || r.Entropy == nil {
		return rand.Reader
	}
	return r.Entropy
}

func (r *Runtime) lock(key string) (unlock func()) {
	if r == nil || r.Locks == nil {
		return func() {}
	}
	return r.Locks.Lock(key)
}

func (r *Runtime) metrics() *Metrics {
	if r == nil {
		return nil
	}
	return r.Metrics
}

// emit queues an audit event. The payload is marshalled here so a bad
// payload is logged by the auditor, never returned to the caller.
func (r *Runtime) emit(ctx context.Context, eventType, actor, accountID string, payload any) {
	if r == nil || r.Audit == nil {
		return
	}
	r.Audit.Emit(ctx, Event{
		ID:        r.newID(),
		Type:      eventType,
		Actor:     actor,
		AccountID: accountID,
		Payload:   payload,
		At:        r.now(),
	})
}

// detach runs fn in the background, outliving the request that started it.
// Without a task group it runs on a bare goroutine.
func (r *Runtime) detach(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if r != nil && r.Tasks != nil {
		r.Tasks.Go(ctx, name, fn)
		return
	}
	go runTask(ctx, name, fn)
}

func clientLockKey(id string) string  { return "client:" + id }
func accountLockKey(id string) string { return "acct:" + id }
func payTxLockKey(id string) string   { return "paytx:" + id }
func challengeLockKey(id string) string {
	return "mfa:" + id
}

// actorFor names the end user in audit events.
func actorFor(c *domain.Client) string {
	if c == nil {
		return domain.ActorSystem
	}
	return domain.ActorUser(c.Email())
}
