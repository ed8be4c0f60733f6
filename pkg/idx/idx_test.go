package idx_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/brokerx/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := idx.New()
	require.NotEmpty(t, id.String())

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
	require.False(t, id.IsZero())
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "not-a-ulid", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z"} {
		_, err := idx.Parse(in)
		require.ErrorIs(t, err, idx.ErrInvalid, "input %q", in)
	}
}

func TestOrdering(t *testing.T) {
	a := idx.NewAt(time.Unix(1, 0).UTC())
	b := idx.NewAt(time.Unix(2, 0).UTC())

	require.Less(t, a.String(), b.String())
}

func TestTimeExtraction(t *testing.T) {
	tm := time.Unix(1700000000, 0).UTC()
	id := idx.NewAt(tm)

	require.WithinDuration(t, tm, id.Time(), time.Millisecond)
}

func TestGeneratorIsDeterministic(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return fixed }

	g1 := idx.NewGenerator(bytes.NewReader(bytes.Repeat([]byte{7}, 64)), clock)
	g2 := idx.NewGenerator(bytes.NewReader(bytes.Repeat([]byte{7}, 64)), clock)

	require.Equal(t, g1.New(), g2.New())
	require.Equal(t, fixed, g1.New().Time())
}

func TestGeneratorMonotonicWithinSameMillisecond(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	g := idx.NewGenerator(nil, func() time.Time { return fixed })

	prev := g.New()
	for range 50 {
		next := g.New()
		require.Less(t, prev.String(), next.String())
		prev = next
	}
}

func TestParseNormalizes(t *testing.T) {
	id := idx.NewAt(time.Unix(1700000000, 0))

	parsed, err := idx.Parse("  " + strings.ToLower(id.String()) + "\n")
	require.NoError(t, err)
	require.Equal(t, id, parsed)
	require.True(t, idx.ID("").Time().IsZero())
}
