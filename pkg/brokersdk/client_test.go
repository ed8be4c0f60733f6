package brokersdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/brokerx/pkg/brokersdk"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSignup_SendsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/signup", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req brokersdk.SignupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "a@b.com", req.Email)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(brokersdk.SignupResponse{ClientID: "c1", AccountID: "a1", Status: "Pending"})
	}))
	defer srv.Close()

	c := brokersdk.NewSDKClient(srv.URL + "/")
	resp, err := c.Signup(context.Background(), brokersdk.SignupRequest{Email: "a@b.com", FullName: "A", Password: "password"})
	require.NoError(t, err)
	require.Equal(t, "c1", resp.ClientID)
	require.Equal(t, "Pending", resp.Status)
}

func TestAPIErrorParsing(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"typed", http.StatusConflict, `{"error":"code_expired","error_description":"verification code has expired"}`, brokersdk.ErrorCodeCodeExpired},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`, brokersdk.ErrorCodeServerError},
		{"empty code", http.StatusBadRequest, `{"error":""}`, brokersdk.ErrorCodeServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := brokersdk.NewSDKClient(srv.URL).VerifyContactOTP(context.Background(), "c1", "123456")
			require.Error(t, err)
			require.True(t, brokersdk.IsCode(err, tt.wantCode), "got %v", err)
			require.Equal(t, tt.status, brokersdk.StatusCode(err))
		})
	}
}

func TestSessionDeposit_SetsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/accounts/acct%2F1/deposit", r.URL.EscapedPath())
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "k1", r.Header.Get("Idempotency-Key"))

		var req brokersdk.DepositRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.Amount.Equal(decimal.RequireFromString("100.00")))

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"paymentTxId":"tx1","status":"Pending","newCashBalance":"0"}`))
	}))
	defer srv.Close()

	s := brokersdk.NewSDKClient(srv.URL).NewSession("tok")
	resp, err := s.Deposit(context.Background(), "acct/1", brokersdk.DepositRequest{
		Amount:         decimal.RequireFromString("100.00"),
		Currency:       "USD",
		IdempotencyKey: "k1",
	})
	require.NoError(t, err)
	require.Equal(t, "tx1", resp.PaymentTxID)
	require.True(t, resp.NewCashBalance.IsZero())
}

func TestSessionLogout_ExpectsNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_token","error_description":"session has been revoked"}`))
	}))
	defer srv.Close()

	err := brokersdk.NewSDKClient(srv.URL).NewSession("tok").Logout(context.Background())
	require.True(t, brokersdk.IsCode(err, brokersdk.ErrorCodeInvalidToken))
}

func TestDevOTPLatest(t *testing.T) {
	var r brokersdk.DevOTPResponse
	require.Empty(t, r.Latest().Code)

	r.Messages = []brokersdk.OTPMessage{{Code: "111111"}, {Code: "222222"}}
	require.Equal(t, "222222", r.Latest().Code)
}
