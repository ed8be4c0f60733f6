package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/service"
	"github.com/aussiebroadwan/brokerx/pkg/brokersdk"
	"github.com/aussiebroadwan/brokerx/pkg/httpx"
)

const birthDateLayout = "2006-01-02"

// SignupHandler handles registration and contact verification.
type SignupHandler struct {
	SignupService *service.SignupService
}

// HandleSignup handles POST /v1/signup
//
//	@Summary		Sign up
//	@Description	Creates a Pending client with a first account and empty wallet, sends an email code and submits KYC.
//	@Tags			Signup
//	@Accept			json
//	@Produce		json
//	@Param			request	body		brokersdk.SignupRequest	true	"Signup details"
//	@Success		201		{object}	brokersdk.SignupResponse
//	@Failure		400		{object}	httpx.ErrorBody	"Invalid email, password, currency or birth date"
//	@Failure		409		{object}	httpx.ErrorBody	"Email already registered"
//	@Failure		429		{object}	httpx.ErrorBody	"Rate limit exceeded"
//	@Router			/v1/signup [post].
func (h *SignupHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req brokersdk.SignupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	in := service.SignupInput{
		Email:    req.Email,
		Phone:    req.Phone,
		FullName: req.FullName,
		Password: req.Password,
		Currency: req.Currency,
	}
	if req.BirthDate != "" {
		bd, err := time.Parse(birthDateLayout, req.BirthDate)
		if err != nil {
			writeBadRequest(w, "birthDate must be YYYY-MM-DD")
			return
		}
		in.BirthDate = &bd
	}

	res, err := h.SignupService.Signup(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, brokersdk.SignupResponse{
		ClientID:  res.Client.ID(),
		AccountID: res.Account.ID,
		Status:    string(res.Client.Status()),
	})
}

// HandleResend handles POST /v1/signup/{clientId}/otp/resend
//
//	@Summary		Resend contact code
//	@Description	Issues a fresh contact code on Email (default) or Sms. Earlier codes stop being the latest.
//	@Tags			Signup
//	@Accept			json
//	@Produce		json
//	@Param			clientId	path		string						true	"Client ID"
//	@Param			request		body		brokersdk.ResendOTPRequest	false	"Channel"
//	@Success		200			{object}	brokersdk.ResendOTPResponse
//	@Failure		400			{object}	httpx.ErrorBody	"Unknown channel or no phone on file"
//	@Failure		404			{object}	httpx.ErrorBody	"Client not found"
//	@Failure		409			{object}	httpx.ErrorBody	"Contact already verified or client rejected"
//	@Router			/v1/signup/{clientId}/otp/resend [post].
func (h *SignupHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	var req brokersdk.ResendOTPRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
	}

	clientID, err := pathID(r, "clientId", domain.ErrClientNotFound)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	code, err := h.SignupService.ResendContactOTP(r.Context(), clientID, req.Channel)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, brokersdk.ResendOTPResponse{
		CodeID:    code.ID,
		Channel:   string(code.Channel),
		ExpiresAt: code.ExpiresAt,
	})
}

// HandleVerify handles POST /v1/signup/{clientId}/otp/verify
//
//	@Summary		Verify contact code
//	@Description	Checks the latest contact code. The client becomes Active once KYC is also verified.
//	@Tags			Signup
//	@Accept			json
//	@Produce		json
//	@Param			clientId	path		string						true	"Client ID"
//	@Param			request		body		brokersdk.VerifyOTPRequest	true	"Code"
//	@Success		200			{object}	brokersdk.VerifyOTPResponse
//	@Failure		400			{object}	httpx.ErrorBody	"Empty, wrong or expired code"
//	@Failure		404			{object}	httpx.ErrorBody	"Client not found"
//	@Failure		409			{object}	httpx.ErrorBody	"No active code or too many attempts"
//	@Router			/v1/signup/{clientId}/otp/verify [post].
func (h *SignupHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req brokersdk.VerifyOTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	clientID, err := pathID(r, "clientId", domain.ErrClientNotFound)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := h.SignupService.VerifyContactOTP(r.Context(), clientID, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, brokersdk.VerifyOTPResponse{
		ClientID:  res.Client.ID(),
		Status:    string(res.Client.Status()),
		Activated: res.Activated,
	})
}
