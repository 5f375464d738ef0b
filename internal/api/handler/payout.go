package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nileshk07/paygrid/internal/models"
	"github.com/nileshk07/paygrid/internal/service"
)

// PayoutHandler handles HTTP requests for payouts.
type PayoutHandler struct {
	payoutSvc *service.PayoutService
}

// NewPayoutHandler creates a new PayoutHandler instance.
func NewPayoutHandler(payoutSvc *service.PayoutService) *PayoutHandler {
	return &PayoutHandler{payoutSvc: payoutSvc}
}

// CreatePayoutRequest represents the request body for creating a payout.
type CreatePayoutRequest struct {
	UserID    string `json:"user_id"`
	GatewayID string `json:"gateway_id"`
	Amount    int64  `json:"amount"`
}

// CreatePayout handles POST /v1/payouts.
// The Idempotency-Key doubles as the payout reference: funds are held
// exactly once per key. Returns 202 Accepted; the worker finishes the job.
func (h *PayoutHandler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	actorID, isPlatform, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		RespondError(w, r, http.StatusBadRequest, "idempotency/missing-key", "Idempotency-Key header is required")
		return
	}

	var req CreatePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Amount <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "Amount must be greater than zero")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid user_id")
		return
	}
	gatewayID, err := uuid.Parse(req.GatewayID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-gateway-id", "Invalid gateway_id")
		return
	}
	if !isPlatform && userID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	payout, err := h.payoutSvc.RequestPayout(r.Context(), service.RequestPayoutInput{
		UserID:      userID,
		GatewayID:   gatewayID,
		Amount:      req.Amount,
		ReferenceID: idempotencyKey,
	})
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("create payout failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "payout/create-failed", "Failed to create payout")
		return
	}

	RespondJSON(w, http.StatusAccepted, payout)
}

// GetPayout handles GET /v1/payouts/{id}.
// It returns the current status of a payout.
func (h *PayoutHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	actorID, isPlatform, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	payoutID, ok := parseURLID(w, r, "id")
	if !ok {
		return
	}

	payout, err := h.payoutSvc.GetPayout(r.Context(), payoutID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			RespondError(w, r, http.StatusNotFound, "payout/not-found", "Payout not found")
			return
		}
		zap.L().Error("get payout failed", zap.Error(err), zap.String("payout_id", payoutID.String()))
		RespondError(w, r, http.StatusInternalServerError, "payout/read-failed", "Failed to get payout")
		return
	}
	if !isPlatform && payout.UserID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	RespondJSON(w, http.StatusOK, payout)
}
