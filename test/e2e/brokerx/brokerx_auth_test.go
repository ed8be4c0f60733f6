package brokerx_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/brokerx/pkg/brokersdk"
	"github.com/stretchr/testify/require"
)

func TestAuth_WrongPassword(t *testing.T) {
	client := setupClient(t)
	email := uniqueEmail("wrongpw")
	signupAndVerify(t, client, email)

	_, err := client.Login(t.Context(), email, "not-the-password")
	assertErrorCode(t, err, http.StatusUnauthorized, brokersdk.ErrorCodeInvalidCredentials)

	_, err = client.Login(t.Context(), uniqueEmail("ghost"), testPassword)
	assertErrorCode(t, err, http.StatusUnauthorized, brokersdk.ErrorCodeInvalidCredentials)
}

func TestAuth_RenewAndLogout(t *testing.T) {
	for _, tokenType := range []string{"jwt", "opaque"} {
		t.Run(tokenType, func(t *testing.T) {
			client := brokersdk.NewSDKClient(setupContainer(t, map[string]string{"BROKERX_SESSION_TOKEN_TYPE": tokenType}))
			ctx := t.Context()
			email := uniqueEmail("session")
			signupAndVerify(t, client, email)

			resp, err := client.Login(ctx, email, testPassword)
			require.NoError(t, err)
			require.NotNil(t, resp.ExpiresAt)
			sess := client.NewSession(resp.Token)

			renewed, err := sess.Renew(ctx)
			require.NoError(t, err)
			require.Equal(t, resp.SessionID, renewed.SessionID)
			require.False(t, renewed.ExpiresAt.Before(*resp.ExpiresAt), "Renew must not shorten the session")

			require.NoError(t, sess.Logout(ctx))

			_, err = sess.Me(ctx)
			require.Error(t, err, "Logged out token must be rejected")
			require.Equal(t, http.StatusUnauthorized, brokersdk.StatusCode(err))
		})
	}
}

func TestAuth_MissingToken(t *testing.T) {
	client := setupClient(t)

	_, err := client.NewSession("").Me(t.Context())
	assertErrorCode(t, err, http.StatusUnauthorized, brokersdk.ErrorCodeInvalidToken)

	_, err = client.NewSession("garbage.token.value").Me(t.Context())
	require.Equal(t, http.StatusUnauthorized, brokersdk.StatusCode(err))
}

// TestRateLimit_Login verifies the strict login limit with production
// defaults: five attempts per minute per IP.
func TestRateLimit_Login(t *testing.T) {
	client := brokersdk.NewSDKClient(setupContainer(t, map[string]string{
		"RATELIMIT_STRICT_REQUESTS":   "",
		"RATELIMIT_STRICT_WINDOW_SEC": "",
		"RATELIMIT_STRICT_BURST":      "",
	}))

	var lastErr error
	for i := range 6 {
		_, err := client.Login(t.Context(), "nobody@example.com", "wrong-password")
		if i < 5 {
			require.Error(t, err)
			require.NotEqual(t, http.StatusTooManyRequests, brokersdk.StatusCode(err), "Should not be rate limited yet (request %d)", i+1)
			continue
		}
		lastErr = err
	}

	assertErrorCode(t, lastErr, http.StatusTooManyRequests, brokersdk.ErrorCodeRateLimited)
}
