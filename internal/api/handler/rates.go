package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
	"github.com/nileshk07/paygrid/internal/service"
)

// RateHandler administers commission rates and payout fee tables.
type RateHandler struct {
	rates *service.RateService
	fees  *service.FeeService
}

func NewRateHandler(rates *service.RateService, fees *service.FeeService) *RateHandler {
	return &RateHandler{rates: rates, fees: fees}
}

type setRateRequest struct {
	Rate string `json:"rate"`
}

func (req setRateRequest) parse(w http.ResponseWriter, r *http.Request) (decimal.Decimal, bool) {
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-rate", "rate must be a decimal string")
		return decimal.Zero, false
	}
	if rate.IsNegative() {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-rate", "rate must not be negative")
		return decimal.Zero, false
	}
	return rate, true
}

// SetSchemaRate handles PUT /v1/schemas/{id}/channels/{channelID}/rate.
func (h *RateHandler) SetSchemaRate(w http.ResponseWriter, r *http.Request) {
	schemaID, ok := parseURLID(w, r, "id")
	if !ok {
		return
	}
	channelID, ok := parseURLID(w, r, "channelID")
	if !ok {
		return
	}

	var req setRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	rate, ok := req.parse(w, r)
	if !ok {
		return
	}

	if err := h.rates.SetSchemaChannelRate(r.Context(), schemaID, channelID, rate); err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("set schema rate failed", zap.Error(err), zap.String("schema_id", schemaID.String()))
		RespondError(w, r, http.StatusInternalServerError, "rate/write-failed", "Failed to set schema rate")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{
		"schema_id":  schemaID.String(),
		"channel_id": channelID.String(),
		"rate":       rate.String(),
	})
}

// SetUserOverride handles PUT /v1/users/{id}/channels/{channelID}/rate.
func (h *RateHandler) SetUserOverride(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseURLID(w, r, "id")
	if !ok {
		return
	}
	channelID, ok := parseURLID(w, r, "channelID")
	if !ok {
		return
	}

	var req setRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	rate, ok := req.parse(w, r)
	if !ok {
		return
	}

	if err := h.rates.SetUserChannelOverride(r.Context(), userID, channelID, rate); err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("set user override failed", zap.Error(err), zap.String("user_id", userID.String()))
		RespondError(w, r, http.StatusInternalServerError, "rate/write-failed", "Failed to set user override")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{
		"user_id":    userID.String(),
		"channel_id": channelID.String(),
		"rate":       rate.String(),
	})
}

// ResolveRate handles GET /v1/users/{id}/channels/{channelID}/rate.
// Query params: gateway_id (required), direction (default PAYIN).
func (h *RateHandler) ResolveRate(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseURLID(w, r, "id")
	if !ok {
		return
	}
	channelID, ok := parseURLID(w, r, "channelID")
	if !ok {
		return
	}
	gatewayID, ok := parseQueryID(w, r, "gateway_id")
	if !ok {
		return
	}
	direction := domain.DirectionPayin
	if v := r.URL.Query().Get("direction"); v != "" {
		direction = domain.Direction(v)
		if direction != domain.DirectionPayin && direction != domain.DirectionPayout {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-direction", "direction must be PAYIN or PAYOUT")
			return
		}
	}

	rate, err := h.rates.Resolve(r.Context(), gatewayID, channelID, userID, direction)
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("rate resolution failed", zap.Error(err), zap.String("user_id", userID.String()))
		RespondError(w, r, http.StatusInternalServerError, "rate/resolve-failed", "Failed to resolve rate")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{
		"user_id":    userID.String(),
		"channel_id": channelID.String(),
		"rate":       rate.String(),
	})
}

type slabPayload struct {
	MinAmount int64  `json:"min_amount"`
	MaxAmount *int64 `json:"max_amount,omitempty"`
	Fee       int64  `json:"fee"`
}

// SetPayoutSlabs handles PUT /v1/gateways/{id}/payout-slabs, replacing the
// whole table at once so the contiguity checks see the final state.
func (h *RateHandler) SetPayoutSlabs(w http.ResponseWriter, r *http.Request) {
	gatewayID, ok := parseURLID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Slabs []slabPayload `json:"slabs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if len(req.Slabs) == 0 {
		RespondError(w, r, http.StatusBadRequest, "request/missing-slabs", "slabs is required")
		return
	}

	slabs := make([]models.PayoutSlab, 0, len(req.Slabs))
	for _, s := range req.Slabs {
		slabs = append(slabs, models.PayoutSlab{
			GatewayID: gatewayID,
			MinAmount: s.MinAmount,
			MaxAmount: s.MaxAmount,
			Fee:       s.Fee,
		})
	}

	if err := h.fees.SetPayoutSlabs(r.Context(), gatewayID, slabs); err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		RespondError(w, r, http.StatusBadRequest, "fee/invalid-slabs", err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"gateway_id": gatewayID.String(),
		"count":      len(slabs),
	})
}

// ComputeFee handles GET /v1/gateways/{id}/payout-fee?amount=N.
func (h *RateHandler) ComputeFee(w http.ResponseWriter, r *http.Request) {
	gatewayID, ok := parseURLID(w, r, "id")
	if !ok {
		return
	}
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil || amount <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "amount must be a positive integer")
		return
	}

	fee, err := h.fees.ComputeFee(r.Context(), gatewayID, amount)
	if err != nil {
		if status, pType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("compute fee failed", zap.Error(err), zap.String("gateway_id", gatewayID.String()))
		RespondError(w, r, http.StatusInternalServerError, "fee/compute-failed", "Failed to compute fee")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]int64{"amount": amount, "fee": fee})
}
