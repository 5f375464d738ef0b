package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
	"github.com/nileshk07/paygrid/internal/service"
)

// WalletHandler exposes wallet balances, manual funds movements and the
// ledger read side.
type WalletHandler struct {
	ledger *service.LedgerService
	query  *service.LedgerQueryService
}

func NewWalletHandler(ledger *service.LedgerService, query *service.LedgerQueryService) *WalletHandler {
	return &WalletHandler{ledger: ledger, query: query}
}

// GetWallet handles GET /v1/wallets/{id}. Users may read their own wallet;
// the platform may read any.
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	actorID, isPlatform, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	userID, ok := parseURLID(w, r, "id")
	if !ok {
		return
	}
	if !isPlatform && userID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	wallet, err := h.ledger.Wallet(r.Context(), userID)
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("get wallet failed", zap.Error(err), zap.String("user_id", userID.String()))
		RespondError(w, r, http.StatusInternalServerError, "wallet/read-failed", "Failed to get wallet")
		return
	}

	RespondJSON(w, http.StatusOK, wallet)
}

type fundsRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	ReferenceID string `json:"reference_id"`
}

func (req fundsRequest) validate(w http.ResponseWriter, r *http.Request) bool {
	if req.Amount <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "amount must be greater than zero")
		return false
	}
	if req.ReferenceID == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-reference", "reference_id is required")
		return false
	}
	return true
}

// Credit handles POST /v1/wallets/{id}/credit (platform only).
func (h *WalletHandler) Credit(w http.ResponseWriter, r *http.Request) {
	h.applyFunds(w, r, h.ledger.Credit)
}

// Debit handles POST /v1/wallets/{id}/debit (platform only).
func (h *WalletHandler) Debit(w http.ResponseWriter, r *http.Request) {
	h.applyFunds(w, r, h.ledger.Debit)
}

// Refund handles POST /v1/wallets/{id}/refund (platform only).
func (h *WalletHandler) Refund(w http.ResponseWriter, r *http.Request) {
	h.applyFunds(w, r, h.ledger.Refund)
}

type fundsOp func(ctx context.Context, userID uuid.UUID, amount int64, description, refID string) (*models.LedgerEntry, error)

func (h *WalletHandler) applyFunds(w http.ResponseWriter, r *http.Request, op fundsOp) {
	userID, ok := parseURLID(w, r, "id")
	if !ok {
		return
	}

	var req fundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if !req.validate(w, r) {
		return
	}

	entry, err := op(r.Context(), userID, req.Amount, req.Description, req.ReferenceID)
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("wallet funds operation failed", zap.Error(err), zap.String("user_id", userID.String()))
		RespondError(w, r, http.StatusInternalServerError, "wallet/operation-failed", "Wallet operation failed")
		return
	}

	RespondJSON(w, http.StatusCreated, entry)
}

// Transfer handles POST /v1/transfers.
func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	actorID, isPlatform, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		FromUserID  string `json:"from_user_id"`
		ToUserID    string `json:"to_user_id"`
		Amount      int64  `json:"amount"`
		Description string `json:"description"`
		ReferenceID string `json:"reference_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	fromID, err := uuid.Parse(req.FromUserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid from_user_id")
		return
	}
	toID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid to_user_id")
		return
	}
	if !isPlatform && fromID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}
	if req.Amount <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "amount must be greater than zero")
		return
	}
	if req.ReferenceID == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-reference", "reference_id is required")
		return
	}

	out, in, err := h.ledger.Transfer(r.Context(), fromID, toID, req.Amount, req.Description, req.ReferenceID)
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("transfer failed", zap.Error(err), zap.String("reference_id", req.ReferenceID))
		RespondError(w, r, http.StatusInternalServerError, "transfer/failed", "Transfer failed")
		return
	}

	RespondJSON(w, http.StatusCreated, map[string]any{
		"debit_entry":  out,
		"credit_entry": in,
	})
}

// Ledger handles GET /v1/wallets/{id}/ledger with type/from/to filters and
// page/page_size pagination.
func (h *WalletHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	req, ok := h.ledgerQueryRequest(w, r)
	if !ok {
		return
	}

	result, err := h.query.Query(r.Context(), *req)
	if err != nil {
		zap.L().Error("ledger query failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "ledger/query-failed", "Failed to query ledger")
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// ExportLedger handles GET /v1/wallets/{id}/ledger/export, streaming CSV.
func (h *WalletHandler) ExportLedger(w http.ResponseWriter, r *http.Request) {
	req, ok := h.ledgerQueryRequest(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger.csv"`)
	if err := h.query.ExportCSV(r.Context(), w, *req); err != nil {
		zap.L().Error("ledger export failed", zap.Error(err))
	}
}

func (h *WalletHandler) ledgerQueryRequest(w http.ResponseWriter, r *http.Request) (*service.QueryRequest, bool) {
	actorID, isPlatform, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return nil, false
	}
	userID, ok := parseURLID(w, r, "id")
	if !ok {
		return nil, false
	}
	if !isPlatform && userID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return nil, false
	}

	req := &service.QueryRequest{UserID: &userID}

	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		entryType := domain.EntryType(v)
		if !entryType.Valid() {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-type", "Unknown entry type")
			return nil, false
		}
		req.Type = &entryType
	}
	if v := q.Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-from", "from must be RFC 3339")
			return nil, false
		}
		req.From = &from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-to", "to must be RFC 3339")
			return nil, false
		}
		req.To = &to
	}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	return req, true
}
