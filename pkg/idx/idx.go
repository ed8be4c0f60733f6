// Package idx mints the ULID identifiers used for every stored entity.
// ULIDs sort by creation time, which keeps ledger and session listings in
// insertion order without a separate sequence column.
package idx

import (
	"crypto/rand"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a canonical 26 character ULID string.
type ID string

// ErrInvalid reports a malformed ULID string.
var ErrInvalid = errors.New("idx: invalid ulid")

// Generator mints monotonic ULIDs. It is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	clock   func() time.Time
}

// NewGenerator reads entropy from r and time from clock. Nil arguments
// fall back to crypto/rand and time.Now.
func NewGenerator(r io.Reader, clock func() time.Time) *Generator {
	if r == nil {
		r = rand.Reader
	}
	if clock == nil {
		clock = time.Now
	}
	return &Generator{entropy: ulid.Monotonic(r, 0), clock: clock}
}

// New returns an ID stamped with the generator's clock.
func (g *Generator) New() ID { return g.NewAt(g.clock()) }

// NewAt returns an ID stamped with t.
func (g *Generator) NewAt(t time.Time) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ID(ulid.MustNew(ulid.Timestamp(t.UTC()), g.entropy).String())
}

var defaultGenerator = sync.OnceValue(func() *Generator { return NewGenerator(nil, nil) })

// Default returns the process wide generator.
func Default() *Generator { return defaultGenerator() }

// New mints an ID from the default generator.
func New() ID { return Default().New() }

// NewAt mints an ID stamped with t from the default generator.
func NewAt(t time.Time) ID { return Default().NewAt(t) }

// Parse validates s as a ULID. Surrounding whitespace is ignored.
func Parse(s string) (ID, error) {
	u, err := ulid.ParseStrict(strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalid
	}
	return ID(u.String()), nil
}

func (id ID) String() string { return string(id) }

// IsZero reports whether id is empty.
func (id ID) IsZero() bool { return id == "" }

// Time is the millisecond timestamp embedded in id, or the zero time when
// id doesn't parse.
func (id ID) Time() time.Time {
	u, err := ulid.ParseStrict(string(id))
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time()).UTC()
}
