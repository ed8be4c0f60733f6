package httpx

import (
	"net/http"
	"slices"
	"strings"

	"github.com/aussiebroadwan/brokerx/pkg/slogx"
)

// RequireAnyScope lets the request through when the session was granted
// at least one of required. It must run after AuthnMiddleware.
func RequireAnyScope(required ...string) Middleware {
	challenge := `Bearer error="insufficient_scope", scope="` + strings.Join(required, " ") + `"`
	desc := "requires scope: " + strings.Join(required, " or ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			granted := scopesFromCtx(r.Context())
			if slices.ContainsFunc(required, func(s string) bool { return slices.Contains(granted, s) }) {
				next.ServeHTTP(w, r)
				return
			}

			clientID, _ := ClientIDFromContext(r.Context())
			slogx.FromContext(r.Context()).Info("scope check failed",
				"client_id", clientID, "required", required, "granted", granted)
			w.Header().Set("WWW-Authenticate", challenge)
			WriteError(w, http.StatusForbidden, "insufficient_scope", desc)
		})
	}
}
