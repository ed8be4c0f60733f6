package http

import (
	"net/http"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/service"
	"github.com/aussiebroadwan/brokerx/pkg/brokersdk"
	"github.com/aussiebroadwan/brokerx/pkg/httpx"
)

// ProfileHandler serves the authenticated client's own profile.
type ProfileHandler struct {
	AccountService *service.AccountService
}

// ServeHTTP handles GET /v1/me
//
//	@Summary		Current client
//	@Description	Returns the client's profile, KYC state and every account with its wallet balance.
//	@Tags			Profile
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	brokersdk.MeResponse
//	@Failure		401	{object}	httpx.ErrorBody	"Invalid or missing session token"
//	@Failure		403	{object}	httpx.ErrorBody	"Missing profile:read scope"
//	@Router			/v1/me [get].
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID, ok := httpx.ClientIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	ov, err := h.AccountService.Overview(r.Context(), clientID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	c := ov.Client
	resp := brokersdk.MeResponse{
		ClientID: c.ID(),
		Email:    c.Email(),
		FullName: c.FullName(),
		Phone:    c.Phone(),
		Status:   string(c.Status()),
		Accounts: make([]brokersdk.AccountView, 0, len(ov.Accounts)),
	}
	if kyc, ok := c.KYC(); ok {
		resp.KYCStatus = string(kyc.Status)
		resp.KYCLevel = kyc.Level
	}
	for _, a := range ov.Accounts {
		resp.Accounts = append(resp.Accounts, brokersdk.AccountView{
			AccountID: a.Account.ID,
			Number:    a.Account.Number,
			Status:    string(a.Account.Status),
			Currency:  a.Wallet.Currency,
			Balance:   a.Wallet.Balance,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// MFAHandler manages the authenticated client's MFA policy.
type MFAHandler struct {
	MFAService *service.MFAService
}

// HandleGet handles GET /v1/me/mfa
//
//	@Summary		Get MFA policy
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	brokersdk.MFAPolicyResponse
//	@Failure		401	{object}	httpx.ErrorBody	"Invalid or missing session token"
//	@Failure		404	{object}	httpx.ErrorBody	"No MFA policy configured"
//	@Router			/v1/me/mfa [get].
func (h *MFAHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	clientID, ok := httpx.ClientIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	p, err := h.MFAService.GetPolicy(r.Context(), clientID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, brokersdk.MFAPolicyResponse{Type: string(p.Type), Active: p.Active})
}

// HandlePut handles PUT /v1/me/mfa
//
//	@Summary		Set MFA policy
//	@Description	Creates or changes the MFA policy. Choosing Totp mints a secret whose otpauth URL is returned once.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		brokersdk.SetMFARequest	true	"Policy"
//	@Success		200		{object}	brokersdk.MFAPolicyResponse
//	@Failure		400		{object}	httpx.ErrorBody	"Unknown MFA type"
//	@Failure		401		{object}	httpx.ErrorBody	"Invalid or missing session token"
//	@Failure		403		{object}	httpx.ErrorBody	"Missing mfa:write scope"
//	@Router			/v1/me/mfa [put].
func (h *MFAHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	clientID, ok := httpx.ClientIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req brokersdk.SetMFARequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	res, err := h.MFAService.SetPolicy(r.Context(), clientID, req.Type, req.Active)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, brokersdk.MFAPolicyResponse{
		Type:       string(res.Policy.Type),
		Active:     res.Policy.Active,
		OtpauthURL: res.OtpauthURL,
	})
}

// HandleDelete handles DELETE /v1/me/mfa
//
//	@Summary		Remove MFA policy
//	@Tags			MFA
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	httpx.ErrorBody	"Invalid or missing session token"
//	@Failure		404	{object}	httpx.ErrorBody	"No MFA policy configured"
//	@Router			/v1/me/mfa [delete].
func (h *MFAHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	clientID, ok := httpx.ClientIDFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	if err := h.MFAService.DisablePolicy(r.Context(), clientID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
