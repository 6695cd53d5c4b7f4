// Package handler exposes the ledger over HTTP.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/ledger"
	"custodia/internal/ledger/models"
	"custodia/internal/ledger/ports"
	"custodia/internal/ledger/validation"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/platform/middleware/request"
	"custodia/pkg/requestcontext"
)

// EngineDialer builds an external-engine client for an endpoint URL. The
// handler stays unaware of the wire protocol engines speak.
type EngineDialer func(endpoint string) (ports.ExternalEngine, error)

type Handler struct {
	ledger     *ledger.Ledger
	auditStore audit.Store
	dialEngine EngineDialer
	logger     *slog.Logger
}

type Option func(*Handler)

func WithAuditStore(store audit.Store) Option {
	return func(h *Handler) {
		h.auditStore = store
	}
}

func WithEngineDialer(dial EngineDialer) Option {
	return func(h *Handler) {
		h.dialEngine = dial
	}
}

func New(l *ledger.Ledger, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		ledger:     l,
		logger:     logger,
		dialEngine: validation.DialHTTPEngine,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the ledger routes. Authentication middleware is applied by
// the caller; every mutating route expects a caller in the request context.
func (h *Handler) Register(r chi.Router) {
	r.Get("/token", h.handleGetToken)
	r.Post("/token/name", h.handleSetName)
	r.Post("/token/symbol", h.handleSetSymbol)

	r.Get("/accounts/{address}", h.handleGetAccount)
	r.Get("/accounts/{owner}/allowances/{spender}", h.handleGetAllowance)

	r.Post("/transfers", h.handleTransfer)
	r.Post("/transfers/from", h.handleTransferFrom)
	r.Post("/transfers/batch", h.handleBatchTransfer)
	r.Post("/transfers/forced", h.handleForcedTransfer)
	r.Post("/approvals", h.handleApprove)

	r.Post("/mint", h.handleMint)
	r.Post("/mint/batch", h.handleBatchMint)
	r.Post("/burn", h.handleBurn)
	r.Post("/burn/batch", h.handleBatchBurn)
	r.Post("/burn/forced", h.handleForcedBurn)

	r.Get("/lifecycle", h.handleGetLifecycle)
	r.Post("/lifecycle/pause", h.handlePause)
	r.Post("/lifecycle/unpause", h.handleUnpause)
	r.Post("/lifecycle/deactivate", h.handleDeactivate)

	r.Post("/enforcement/addresses", h.handleFreezeAddress)
	r.Post("/enforcement/addresses/batch", h.handleBatchFreezeAddress)
	r.Post("/enforcement/tokens/freeze", h.handleFreezeTokens)
	r.Post("/enforcement/tokens/unfreeze", h.handleUnfreezeTokens)

	r.Get("/roles/{role}/{address}", h.handleGetRole)
	r.Post("/roles/grant", h.handleGrantRole)
	r.Post("/roles/revoke", h.handleRevokeRole)
	r.Post("/roles/renounce", h.handleRenounceRole)

	r.Post("/restrictions/check", h.handleCheckRestriction)
	r.Get("/restrictions/{code}/message", h.handleRestrictionMessage)
	r.Post("/engines", h.handleSetEngine)

	r.Get("/audit/accounts/{address}", h.handleAuditByAccount)
}

// caller returns the authenticated caller, failing the request when the auth
// middleware did not run.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (id.Address, bool) {
	caller := requestcontext.Caller(r.Context())
	if caller.IsZero() {
		h.logger.ErrorContext(r.Context(), "caller missing from context despite auth middleware",
			"request_id", request.GetRequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.Address{}, false
	}
	return caller, true
}

func (h *Handler) urlAddr(w http.ResponseWriter, r *http.Request, param string) (id.Address, bool) {
	addr, err := id.ParseAddress(chi.URLParam(r, param))
	if err != nil {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "%s: %s", param, err.Error()))
		return id.Address{}, false
	}
	return addr, true
}

// writeResult reports an operation outcome: 204 on success, mapped error
// otherwise. Mutations deliberately return no body; state is read back
// through the query endpoints.
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, op string, err error) {
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.logger.WarnContext(r.Context(), "ledger operation failed",
		"request_id", request.GetRequestID(r.Context()),
		"operation", op,
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}

// -----------------------------------------------------------------------------
// Token
// -----------------------------------------------------------------------------

func (h *Handler) handleGetToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, err := h.ledger.Name(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	symbol, err := h.ledger.Symbol(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	supply, err := h.ledger.TotalSupply(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	state, err := h.ledger.State(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		Name:        name,
		Symbol:      symbol,
		Decimals:    h.ledger.Decimals(),
		TotalSupply: supply.String(),
		State:       state.String(),
	})
}

func (h *Handler) handleSetName(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[metadataRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "set_name", h.ledger.SetName(r.Context(), caller, req.Value))
}

func (h *Handler) handleSetSymbol(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[metadataRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "set_symbol", h.ledger.SetSymbol(r.Context(), caller, req.Value))
}

// -----------------------------------------------------------------------------
// Accounts
// -----------------------------------------------------------------------------

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr, ok := h.urlAddr(w, r, "address")
	if !ok {
		return
	}
	balance, err := h.ledger.BalanceOf(ctx, addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	active, err := h.ledger.ActiveBalanceOf(ctx, addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	frozenTokens, err := h.ledger.FrozenTokens(ctx, addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	frozen, err := h.ledger.IsFrozen(ctx, addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, accountResponse{
		Address:       addr.String(),
		Balance:       balance.String(),
		ActiveBalance: active.String(),
		FrozenTokens:  frozenTokens.String(),
		Frozen:        frozen,
	})
}

func (h *Handler) handleGetAllowance(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.urlAddr(w, r, "owner")
	if !ok {
		return
	}
	spender, ok := h.urlAddr(w, r, "spender")
	if !ok {
		return
	}
	allowance, err := h.ledger.Allowance(r.Context(), owner, spender)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, allowanceResponse{
		Owner:     owner.String(),
		Spender:   spender.String(),
		Allowance: allowance.String(),
	})
}

// -----------------------------------------------------------------------------
// Transfers
// -----------------------------------------------------------------------------

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[transferRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "transfer", h.ledger.Transfer(r.Context(), caller, req.to, req.amount))
}

func (h *Handler) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[transferFromRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "transfer_from", h.ledger.TransferFrom(r.Context(), caller, req.from, req.to, req.amount))
}

func (h *Handler) handleBatchTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[batchTransferRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "batch_transfer", h.ledger.BatchTransfer(r.Context(), caller, req.recipients, req.amounts))
}

func (h *Handler) handleForcedTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[transferFromRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "forced_transfer", h.ledger.ForcedTransfer(r.Context(), caller, req.from, req.to, req.amount))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[approveRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "approve", h.ledger.Approve(r.Context(), caller, req.spender, req.amount))
}

// -----------------------------------------------------------------------------
// Issuance
// -----------------------------------------------------------------------------

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[mintRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "mint", h.ledger.Mint(r.Context(), caller, req.to, req.amount))
}

func (h *Handler) handleBatchMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[batchTransferRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "batch_mint", h.ledger.BatchMint(r.Context(), caller, req.recipients, req.amounts))
}

func (h *Handler) handleBurn(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[burnRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "burn", h.ledger.Burn(r.Context(), caller, req.from, req.amount))
}

func (h *Handler) handleBatchBurn(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[batchBurnRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "batch_burn", h.ledger.BatchBurn(r.Context(), caller, req.holders, req.amounts))
}

func (h *Handler) handleForcedBurn(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[burnRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "forced_burn", h.ledger.ForcedBurn(r.Context(), caller, req.from, req.amount))
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

func (h *Handler) handleGetLifecycle(w http.ResponseWriter, r *http.Request) {
	state, err := h.ledger.State(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lifecycleResponse{State: state.String()})
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	h.writeResult(w, r, "pause", h.ledger.Pause(r.Context(), caller))
}

func (h *Handler) handleUnpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	h.writeResult(w, r, "unpause", h.ledger.Unpause(r.Context(), caller))
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	h.writeResult(w, r, "deactivate", h.ledger.Deactivate(r.Context(), caller))
}

// -----------------------------------------------------------------------------
// Enforcement
// -----------------------------------------------------------------------------

func (h *Handler) handleFreezeAddress(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[freezeAddressRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "freeze_address", h.ledger.SetAddressFrozen(r.Context(), caller, req.account, req.Frozen))
}

func (h *Handler) handleBatchFreezeAddress(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[batchFreezeAddressRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "batch_freeze_address", h.ledger.BatchSetAddressFrozen(r.Context(), caller, req.accounts, req.Frozen))
}

func (h *Handler) handleFreezeTokens(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[freezeTokensRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "freeze_tokens", h.ledger.FreezePartialTokens(r.Context(), caller, req.account, req.amount))
}

func (h *Handler) handleUnfreezeTokens(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[freezeTokensRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "unfreeze_tokens", h.ledger.UnfreezePartialTokens(r.Context(), caller, req.account, req.amount))
}

// -----------------------------------------------------------------------------
// Roles
// -----------------------------------------------------------------------------

func (h *Handler) handleGetRole(w http.ResponseWriter, r *http.Request) {
	role, err := id.ParseRoleID(chi.URLParam(r, "role"))
	if err != nil {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "role: %s", err.Error()))
		return
	}
	addr, ok := h.urlAddr(w, r, "address")
	if !ok {
		return
	}
	held, err := h.ledger.HasRole(r.Context(), role, addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, roleResponse{
		Role:    role.String(),
		Account: addr.String(),
		Held:    held,
	})
}

func (h *Handler) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[roleRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "grant_role", h.ledger.GrantRole(r.Context(), caller, req.role, req.account))
}

func (h *Handler) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[roleRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "revoke_role", h.ledger.RevokeRole(r.Context(), caller, req.role, req.account))
}

func (h *Handler) handleRenounceRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[roleRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	h.writeResult(w, r, "renounce_role", h.ledger.RenounceRole(r.Context(), caller, req.role, req.account))
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

func (h *Handler) handleCheckRestriction(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[restrictionCheckRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}
	code, err := h.ledger.DetectTransferRestriction(r.Context(), req.from, req.to, req.amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK,
		newRestrictionResponse(code, h.ledger.MessageForCode(r.Context(), code)))
}

func (h *Handler) handleRestrictionMessage(w http.ResponseWriter, r *http.Request) {
	raw, err := strconv.ParseUint(chi.URLParam(r, "code"), 10, 8)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "code must be an unsigned 8-bit integer"))
		return
	}
	code := models.RestrictionCode(raw)
	httputil.WriteJSON(w, http.StatusOK,
		newRestrictionResponse(code, h.ledger.MessageForCode(r.Context(), code)))
}

func (h *Handler) handleSetEngine(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[setEngineRequest](w, r, h.logger, r.Context(), request.GetRequestID(r.Context()))
	if !ok {
		return
	}

	var client ports.ExternalEngine
	if req.Endpoint != "" {
		var err error
		client, err = h.dialEngine(req.Endpoint)
		if err != nil {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "endpoint: %s", err.Error()))
			return
		}
	}
	h.writeResult(w, r, "set_engine",
		h.ledger.SetEngine(r.Context(), caller, validation.EngineKind(req.Kind), req.Handle, client))
}

// -----------------------------------------------------------------------------
// Audit
// -----------------------------------------------------------------------------

func (h *Handler) handleAuditByAccount(w http.ResponseWriter, r *http.Request) {
	if h.auditStore == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "audit queries are not enabled"))
		return
	}
	addr, ok := h.urlAddr(w, r, "address")
	if !ok {
		return
	}
	events, err := h.auditStore.ListByAccount(r.Context(), addr)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
		return
	}

	out := make([]auditEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, auditEventResponse{
			Category:  string(event.Category),
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
			Actor:     addrOrEmpty(event.Actor),
			Action:    event.Action,
			From:      addrOrEmpty(event.From),
			To:        addrOrEmpty(event.To),
			Amount:    event.Amount,
			Role:      event.Role,
			Code:      event.Code,
			Reason:    event.Reason,
			RequestID: event.RequestID,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
