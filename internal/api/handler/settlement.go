package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nileshk07/paygrid/internal/service"
)

// SettlementHandler ingests confirmed payin transactions and settles them
// into the wallet ledger.
type SettlementHandler struct {
	svc *service.SettlementService
}

func NewSettlementHandler(svc *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{svc: svc}
}

type settlePayinRequest struct {
	GatewayID string `json:"gateway_id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

// SettlePayin handles POST /v1/settlements/payin (platform only). Replaying
// the same reference returns the original split without moving funds again.
func (h *SettlementHandler) SettlePayin(w http.ResponseWriter, r *http.Request) {
	var req settlePayinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Amount <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "amount must be greater than zero")
		return
	}
	if req.Reference == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-reference", "reference is required")
		return
	}
	gatewayID, err := uuid.Parse(req.GatewayID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-gateway-id", "Invalid gateway_id")
		return
	}
	channelID, err := uuid.Parse(req.ChannelID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-channel-id", "Invalid channel_id")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid user_id")
		return
	}

	result, err := h.svc.SettlePayin(r.Context(), service.PayinSettlement{
		GatewayID:   gatewayID,
		ChannelID:   channelID,
		OwnerUserID: userID,
		Amount:      req.Amount,
		Reference:   req.Reference,
	})
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("payin settlement failed", zap.Error(err), zap.String("reference", req.Reference))
		RespondError(w, r, http.StatusInternalServerError, "settlement/failed", "Failed to settle payin")
		return
	}

	RespondJSON(w, http.StatusCreated, result)
}
