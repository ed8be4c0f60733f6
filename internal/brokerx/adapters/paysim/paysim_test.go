package paysim_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/adapters/paysim"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/service"
	"github.com/aussiebroadwan/brokerx/pkg/brokersdk"
	"github.com/aussiebroadwan/brokerx/pkg/cryptox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func instruction(id string) service.DepositInstruction {
	return service.DepositInstruction{PaymentTxID: id, AccountID: "acct-1", Amount: decimal.NewFromInt(100), Currency: "USD"}
}

func TestSimulator_PostsSignedWebhook(t *testing.T) {
	var (
		mu  sync.Mutex
		got []brokersdk.WebhookRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payments/webhook", r.URL.Path)
		var req brokersdk.WebhookRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		got = append(got, req)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(brokersdk.WebhookResponse{PaymentTxID: req.PaymentTxID, Status: req.Status})
	}))
	t.Cleanup(srv.Close)

	sim := paysim.New(srv.URL, "s3cret", 5*time.Millisecond)
	t.Cleanup(sim.Close)

	require.NoError(t, sim.RequestDeposit(context.Background(), instruction("tx-1")))
	require.NoError(t, sim.RequestDeposit(context.Background(), instruction("tx-1")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	req := got[0]
	require.Equal(t, "tx-1", req.PaymentTxID)
	require.Equal(t, "Settled", req.Status)
	require.True(t, cryptox.VerifySignature("s3cret", service.SettlementMessage("tx-1", "Settled"), req.Signature))
	_, err := uuid.Parse(req.ProviderRef)
	require.NoError(t, err)
}

func TestSimulator_UnsignedAndDecided(t *testing.T) {
	delivered := make(chan brokersdk.WebhookRequest, 1)
	sim := &paysim.Simulator{
		Decide: func(service.DepositInstruction) string { return "Failed" },
		Deliver: func(_ context.Context, req brokersdk.WebhookRequest) error {
			delivered <- req
			return nil
		},
	}
	t.Cleanup(sim.Close)

	require.NoError(t, sim.RequestDeposit(context.Background(), instruction("tx-2")))
	select {
	case req := <-delivered:
		require.Equal(t, "Failed", req.Status)
		require.Empty(t, req.Signature)
	case <-time.After(time.Second):
		t.Fatal("no webhook delivered")
	}
}

func TestSimulator_RefusesAfterClose(t *testing.T) {
	sim := paysim.New("http://127.0.0.1:0", "", time.Hour)
	require.NoError(t, sim.RequestDeposit(context.Background(), instruction("tx-3")))
	sim.Close()
	require.Error(t, sim.RequestDeposit(context.Background(), instruction("tx-4")))
}
