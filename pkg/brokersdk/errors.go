package brokersdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in the "error" field of a failed response.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeInsufficientScope  = "insufficient_scope"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeConflict           = "conflict"
	ErrorCodeRateLimited        = "rate_limit_exceeded"
	ErrorCodeServerError        = "server_error"

	ErrorCodeCodeExpired        = "code_expired"
	ErrorCodeInvalidCode        = "invalid_code"
	ErrorCodeNoActiveCode       = "no_active_code"
	ErrorCodeTooManyAttempts    = "too_many_attempts"
	ErrorCodeEmailTaken         = "email_taken"
	ErrorCodeClientRejected     = "client_rejected"
	ErrorCodeAlreadySettled     = "already_settled"
	ErrorCodeAlreadyFailed      = "already_failed"
	ErrorCodeAccountNotActive   = "account_not_active"
	ErrorCodeKeyReused          = "idempotency_key_reused"
	ErrorCodeChallengeExpired   = "challenge_expired"
	ErrorCodeUnknownTransaction = "unknown_transaction"
)

// APIError is a failed API call. The server writes it as
// {"error": Code, "error_description": Description}.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// IsCode reports whether err is an *APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// StatusCode returns the HTTP status of an *APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// parseErrorResponse turns a non-success response body into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
