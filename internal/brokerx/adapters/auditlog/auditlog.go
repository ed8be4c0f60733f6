// Package auditlog writes audit events as JSON lines to daily rotated files.
package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

const (
	DefaultMaxAge       = 30 * 24 * time.Hour
	DefaultRotationTime = 24 * time.Hour
)

// line is the on-disk shape of one event.
type line struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     string          `json:"actor"`
	AccountID string          `json:"accountId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Sink appends events to w, one JSON object per line.
type Sink struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

func NewSink(w io.Writer) *Sink {
	return &Sink{w: w, enc: json.NewEncoder(w)}
}

// Open writes to dir/audit.YYYYMMDD.jsonl with an audit.jsonl link to the
// current file. Files older than maxAge are removed.
func Open(dir string, maxAge time.Duration) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("audit log dir: %w", err)
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	w, err := rotatelogs.New(
		filepath.Join(dir, "audit.%Y%m%d.jsonl"),
		rotatelogs.WithLinkName(filepath.Join(dir, "audit.jsonl")),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(DefaultRotationTime),
		rotatelogs.WithClock(rotatelogs.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	return NewSink(w), nil
}

func (s *Sink) Write(_ context.Context, ev domain.AuditEvent) error {
	payload := ev.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(line{
		ID:        ev.ID,
		Type:      ev.Type,
		Actor:     ev.Actor,
		AccountID: ev.AccountID,
		Payload:   payload,
		CreatedAt: ev.CreatedAt,
	})
}

// Close closes the underlying writer when it is closable.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
