package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/service"
	"github.com/aussiebroadwan/brokerx/pkg/brokersdk"
	"github.com/aussiebroadwan/brokerx/pkg/httpx"
)

// IdempotencyKeyHeader overrides the body's idempotencyKey when present.
const IdempotencyKeyHeader = "Idempotency-Key"

// maxLedgerLimit caps the ledger page size.
const maxLedgerLimit = 500

// FundsHandler handles deposits and ledger reads on the caller's accounts.
type FundsHandler struct {
	AccountService *service.AccountService
	DepositService *service.DepositService
}

func depositResponse(res *service.DepositResult) brokersdk.DepositResponse {
	return brokersdk.DepositResponse{
		PaymentTxID:    res.Tx.ID,
		Status:         string(res.Tx.Status),
		NewCashBalance: res.Balance,
		FailureReason:  res.Tx.FailureReason,
	}
}

// HandleDeposit handles POST /v1/accounts/{accountId}/deposit
//
//	@Summary		Request a deposit
//	@Description	Opens a Pending payment transaction and asks the processor to settle it. Reusing an idempotency key returns the original transaction's current state.
//	@Tags			Funds
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			accountId		path		string						true	"Account ID"
//	@Param			Idempotency-Key	header		string						false	"Idempotency key, overrides the body field"
//	@Param			request			body		brokersdk.DepositRequest	true	"Amount and currency"
//	@Success		202				{object}	brokersdk.DepositResponse
//	@Failure		400				{object}	httpx.ErrorBody	"Invalid amount or currency, or missing key"
//	@Failure		401				{object}	httpx.ErrorBody	"Invalid or missing session token"
//	@Failure		404				{object}	httpx.ErrorBody	"Account not found"
//	@Failure		409				{object}	httpx.ErrorBody	"Account not active, currency mismatch or key reused"
//	@Router			/v1/accounts/{accountId}/deposit [post].
func (h *FundsHandler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID, ok := httpx.ClientIDFromContext(ctx)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req brokersdk.DepositRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	key := req.IdempotencyKey
	if hk := r.Header.Get(IdempotencyKeyHeader); hk != "" {
		key = hk
	}

	accountID, err := pathID(r, "accountId", domain.ErrAccountNotFound)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	acct, err := h.AccountService.OwnedAccount(ctx, clientID, accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := h.DepositService.RequestDeposit(ctx, service.DepositInput{
		AccountID:      acct.ID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		IdempotencyKey: key,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, depositResponse(res))
}

// HandleLedger handles GET /v1/accounts/{accountId}/ledger
//
//	@Summary		Account ledger
//	@Description	Lists the account's journal entries, newest first.
//	@Tags			Funds
//	@Security		BearerAuth
//	@Produce		json
//	@Param			accountId	path		string	true	"Account ID"
//	@Param			limit		query		int		false	"Maximum entries (default and cap 500)"
//	@Success		200			{object}	brokersdk.LedgerResponse
//	@Failure		400			{object}	httpx.ErrorBody	"Invalid limit"
//	@Failure		401			{object}	httpx.ErrorBody	"Invalid or missing session token"
//	@Failure		404			{object}	httpx.ErrorBody	"Account not found"
//	@Router			/v1/accounts/{accountId}/ledger [get].
func (h *FundsHandler) HandleLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID, ok := httpx.ClientIDFromContext(ctx)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	limit := maxLedgerLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLedgerLimit)
	}

	accountID, err := pathID(r, "accountId", domain.ErrAccountNotFound)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	acct, err := h.AccountService.OwnedAccount(ctx, clientID, accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	entries, err := h.AccountService.Ledger(ctx, acct.ID, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := brokersdk.LedgerResponse{
		AccountID: acct.ID,
		Entries:   make([]brokersdk.LedgerEntryView, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, brokersdk.LedgerEntryView{
			ID:        e.ID,
			Amount:    e.Amount,
			Currency:  e.Currency,
			Kind:      string(e.Kind),
			RefType:   string(e.RefType),
			RefID:     e.RefID,
			Memo:      e.Memo,
			CreatedAt: e.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// WebhookHandler receives settlement callbacks from the payment processor.
type WebhookHandler struct {
	DepositService *service.DepositService
}

// ServeHTTP handles POST /v1/payments/webhook
//
//	@Summary		Payment settlement callback
//	@Description	Applies the processor's outcome for a payment transaction. Settled credits the wallet exactly once; any other status fails the transaction.
//	@Description	When a webhook secret is configured the signature must be hex HMAC-SHA256 of "paymentTxId|status".
//	@Tags			Funds
//	@Accept			json
//	@Produce		json
//	@Param			request	body		brokersdk.WebhookRequest	true	"Settlement"
//	@Success		200		{object}	brokersdk.WebhookResponse
//	@Failure		400		{object}	httpx.ErrorBody	"Missing status"
//	@Failure		401		{object}	httpx.ErrorBody	"Bad signature"
//	@Failure		404		{object}	httpx.ErrorBody	"Unknown transaction"
//	@Failure		409		{object}	httpx.ErrorBody	"Opposite outcome already recorded"
//	@Router			/v1/payments/webhook [post].
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req brokersdk.WebhookRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	res, err := h.DepositService.HandleSettlement(r.Context(), service.SettlementInput{
		PaymentTxID: req.PaymentTxID,
		Status:      req.Status,
		Signature:   req.Signature,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, brokersdk.WebhookResponse{
		PaymentTxID: res.Tx.ID,
		Status:      string(res.Tx.Status),
	})
}
