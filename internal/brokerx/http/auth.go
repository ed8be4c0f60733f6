package http

import (
	"net/http"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/service"
	"github.com/aussiebroadwan/brokerx/pkg/brokersdk"
	"github.com/aussiebroadwan/brokerx/pkg/httpx"
)

// AuthHandler handles login, MFA challenges and session lifecycle.
type AuthHandler struct {
	AuthService *service.AuthService
}

func loginResponse(res *service.LoginResult) brokersdk.LoginResponse {
	out := brokersdk.LoginResponse{
		ClientID:    res.ClientID,
		MFARequired: res.MFARequired,
		Token:       res.Token,
	}
	if res.Challenge != nil {
		out.ChallengeID = res.Challenge.ID
	}
	if res.Session != nil {
		out.SessionID = res.Session.ID
		exp := res.Session.ExpiresAt
		out.ExpiresAt = &exp
	}
	return out
}

// HandleLogin handles POST /v1/auth/login
//
//	@Summary		Log in
//	@Description	Checks email and password. Returns a session token, or a challenge id when the client has an active MFA policy.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		brokersdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	brokersdk.LoginResponse
//	@Failure		400		{object}	httpx.ErrorBody	"Malformed request"
//	@Failure		401		{object}	httpx.ErrorBody	"Invalid credentials"
//	@Failure		429		{object}	httpx.ErrorBody	"Rate limit exceeded"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req brokersdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	res, err := h.AuthService.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		IP:       httpx.IPKeyExtractor(r),
		Device:   r.UserAgent(),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse(res))
}

// HandleVerifyMFA handles POST /v1/auth/mfa/verify
//
//	@Summary		Answer an MFA challenge
//	@Description	Submits the code for a pending login challenge and returns a session token on success.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		brokersdk.VerifyMFARequest	true	"Challenge answer"
//	@Success		200		{object}	brokersdk.LoginResponse
//	@Failure		400		{object}	httpx.ErrorBody	"Empty or wrong code"
//	@Failure		404		{object}	httpx.ErrorBody	"Unknown challenge"
//	@Failure		409		{object}	httpx.ErrorBody	"Challenge expired or already used"
//	@Router			/v1/auth/mfa/verify [post].
func (h *AuthHandler) HandleVerifyMFA(w http.ResponseWriter, r *http.Request) {
	var req brokersdk.VerifyMFARequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	res, err := h.AuthService.VerifyMFA(r.Context(), service.VerifyMFAInput{
		ClientID:    req.ClientID,
		ChallengeID: req.ChallengeID,
		Code:        req.Code,
		IP:          httpx.IPKeyExtractor(r),
		Device:      r.UserAgent(),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse(res))
}

// HandleRenew handles POST /v1/auth/renew
//
//	@Summary		Renew session
//	@Description	Extends the current session by the session TTL. The bearer token is unchanged.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	brokersdk.SessionResponse
//	@Failure		401	{object}	httpx.ErrorBody	"Missing, revoked or expired session"
//	@Router			/v1/auth/renew [post].
func (h *AuthHandler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	sid, ok := httpx.SessionIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	sess, err := h.AuthService.Renew(r.Context(), sid)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, brokersdk.SessionResponse{
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
	})
}

// HandleLogout handles POST /v1/auth/logout
//
//	@Summary		Log out
//	@Description	Revokes the current session. The token is rejected afterwards.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	httpx.ErrorBody	"Missing or invalid session"
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sid, ok := httpx.SessionIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	if err := h.AuthService.Logout(r.Context(), sid); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
