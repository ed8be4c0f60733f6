package otp_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/adapters/otp"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/service"
	"github.com/aussiebroadwan/brokerx/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func msg(client, code string) service.OTPMessage {
	return service.OTPMessage{ClientID: client, CodeID: "id-" + code, Channel: domain.ChannelEmail, Destination: "a@b.com", Code: code}
}

func TestOutbox(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	box := otp.NewOutbox(2, func() time.Time { return at })
	ctx := context.Background()

	require.NoError(t, box.Send(ctx, msg("c1", "111111")))
	require.NoError(t, box.Send(ctx, msg("c1", "222222")))
	require.NoError(t, box.Send(ctx, msg("c1", "333333")))
	require.NoError(t, box.Send(ctx, msg("c2", "444444")))

	got := box.Messages("c1")
	require.Len(t, got, 2)
	require.Equal(t, "222222", got[0].Code)
	require.Equal(t, "333333", got[1].Code)
	require.Equal(t, at, got[1].SentAt)
	require.Empty(t, box.Messages("nobody"))
}

func TestLogDispatcher(t *testing.T) {
	for _, tc := range []struct {
		name   string
		reveal bool
	}{
		{"hidden", false},
		{"revealed", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			ctx := slogx.WithContext(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

			require.NoError(t, otp.LogDispatcher{Reveal: tc.reveal}.Send(ctx, msg("c1", "987654")))
			require.Contains(t, buf.String(), `"code_id":"id-987654"`)
			require.Equal(t, tc.reveal, bytes.Contains(buf.Bytes(), []byte(`"code":"987654"`)))
		})
	}
}

type failing struct{}

func (failing) Send(context.Context, service.OTPMessage) error { return errors.New("gateway down") }

func TestMulti(t *testing.T) {
	box := otp.NewOutbox(0, nil)
	err := otp.Multi{failing{}, box}.Send(context.Background(), msg("c1", "123123"))
	require.ErrorContains(t, err, "gateway down")
	require.Len(t, box.Messages("c1"), 1, "later dispatchers still run")
}
