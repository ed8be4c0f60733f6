package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/pkg/brokersdk"
	"github.com/aussiebroadwan/brokerx/pkg/httpx"
	"github.com/aussiebroadwan/brokerx/pkg/idx"
	"github.com/aussiebroadwan/brokerx/pkg/slogx"
)

// statusFor maps a domain error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// writeServiceError renders a service failure. Domain errors carry their
// own code and message; anything else is logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeOf(err)
	status := statusFor(err)
	if code == "" || status == http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, brokersdk.ErrorCodeServerError, "internal server error")
		return
	}
	httpx.WriteError(w, status, code, err.Error())
}

func writeBadRequest(w http.ResponseWriter, desc string) {
	httpx.WriteError(w, http.StatusBadRequest, brokersdk.ErrorCodeInvalidRequest, desc)
}

func writeUnauthenticated(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusUnauthorized, brokersdk.ErrorCodeInvalidToken, "missing or invalid session")
}

// pathID reads a ULID route wildcard. Anything that isn't one can't name a
// stored row, so it is reported as notFound without a lookup.
func pathID(r *http.Request, name string, notFound error) (string, error) {
	id, err := idx.Parse(r.PathValue(name))
	if err != nil {
		return "", notFound
	}
	return id.String(), nil
}
