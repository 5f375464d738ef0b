package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
	"github.com/nileshk07/paygrid/internal/service"
)

// CatalogHandler administers the rate catalog: users, gateways, channels
// and rate schemas.
type CatalogHandler struct {
	store  service.RateStore
	ledger *service.LedgerService
}

func NewCatalogHandler(store service.RateStore, ledger *service.LedgerService) *CatalogHandler {
	return &CatalogHandler{store: store, ledger: ledger}
}

// CreateUser handles POST /v1/users. Creating a user also opens their
// wallet so every hierarchy member can hold funds from day one.
func (h *CatalogHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string  `json:"username"`
		Role     string  `json:"role"`
		ParentID *string `json:"parent_id,omitempty"`
		SchemaID *string `json:"schema_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Username == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-username", "username is required")
		return
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-role", "Unknown role")
		return
	}

	user := &models.User{ID: uuid.New(), Username: req.Username, Role: role}

	if req.ParentID != nil {
		parentID, err := uuid.Parse(*req.ParentID)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-parent-id", "Invalid parent_id")
			return
		}
		parent, err := h.store.User(r.Context(), parentID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				RespondError(w, r, http.StatusBadRequest, "user/parent-not-found", "Parent user not found")
				return
			}
			RespondError(w, r, http.StatusInternalServerError, "user/create-failed", "Failed to create user")
			return
		}
		if !parent.Role.SeniorTo(role) {
			RespondError(w, r, http.StatusUnprocessableEntity, "user/parent-not-senior", "Parent role must be senior to the new user's role")
			return
		}
		user.ParentID = &parentID
	} else if role != domain.RolePlatform {
		RespondError(w, r, http.StatusBadRequest, "request/missing-parent-id", "parent_id is required for non-platform users")
		return
	}

	if req.SchemaID != nil {
		schemaID, err := uuid.Parse(*req.SchemaID)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-schema-id", "Invalid schema_id")
			return
		}
		schema, err := h.store.Schema(r.Context(), schemaID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				RespondError(w, r, http.StatusBadRequest, "schema/not-found", "Rate schema not found")
				return
			}
			RespondError(w, r, http.StatusInternalServerError, "user/create-failed", "Failed to create user")
			return
		}
		if !schema.AppliesTo(role) {
			RespondError(w, r, http.StatusUnprocessableEntity, "schema/role-mismatch", "Schema does not cover the user's role")
			return
		}
		user.SchemaID = &schemaID
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("create user failed", zap.Error(err), zap.String("username", req.Username))
		RespondError(w, r, http.StatusInternalServerError, "user/create-failed", "Failed to create user")
		return
	}

	if _, err := h.ledger.OpenWallet(r.Context(), user.ID); err != nil {
		zap.L().Error("open wallet for new user failed", zap.Error(err), zap.String("user_id", user.ID.String()))
		RespondError(w, r, http.StatusInternalServerError, "wallet/open-failed", "Failed to open wallet")
		return
	}

	RespondJSON(w, http.StatusCreated, user)
}

// CreateGateway handles POST /v1/gateways.
func (h *CatalogHandler) CreateGateway(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		BasePayinRate string `json:"base_payin_rate"`
		ChargeType    string `json:"charge_type"`
		PayoutPercent string `json:"payout_percent,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Name == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-name", "name is required")
		return
	}
	baseRate, err := decimal.NewFromString(req.BasePayinRate)
	if err != nil || baseRate.IsNegative() {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-rate", "base_payin_rate must be a non-negative decimal")
		return
	}

	chargeType := domain.ChargeType(req.ChargeType)
	if chargeType != domain.ChargePercentage && chargeType != domain.ChargeSlab {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-charge-type", "charge_type must be PERCENTAGE or SLAB")
		return
	}
	percent := decimal.Zero
	if req.PayoutPercent != "" {
		if percent, err = decimal.NewFromString(req.PayoutPercent); err != nil || percent.IsNegative() {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-percent", "payout_percent must be a non-negative decimal")
			return
		}
	}

	gw := &models.Gateway{
		ID:            uuid.New(),
		Name:          req.Name,
		BasePayinRate: baseRate,
		PayoutCharge:  models.PayoutCharge{Type: chargeType, Percent: percent},
	}
	if err := h.store.CreateGateway(r.Context(), gw); err != nil {
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("create gateway failed", zap.Error(err), zap.String("name", req.Name))
		RespondError(w, r, http.StatusInternalServerError, "gateway/create-failed", "Failed to create gateway")
		return
	}

	RespondJSON(w, http.StatusCreated, gw)
}

// CreateChannel handles POST /v1/gateways/{id}/channels.
func (h *CatalogHandler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	gatewayID, ok := parseURLID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Name      string `json:"name"`
		Direction string `json:"direction"`
		BaseCost  string `json:"base_cost"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Name == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-name", "name is required")
		return
	}
	direction := domain.Direction(req.Direction)
	if direction != domain.DirectionPayin && direction != domain.DirectionPayout {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-direction", "direction must be PAYIN or PAYOUT")
		return
	}
	baseCost, err := decimal.NewFromString(req.BaseCost)
	if err != nil || baseCost.IsNegative() {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-rate", "base_cost must be a non-negative decimal")
		return
	}

	if _, err := h.store.Gateway(r.Context(), gatewayID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			RespondError(w, r, http.StatusNotFound, "gateway/not-found", "Gateway not found")
			return
		}
		RespondError(w, r, http.StatusInternalServerError, "channel/create-failed", "Failed to create channel")
		return
	}

	ch := &models.Channel{
		ID:        uuid.New(),
		GatewayID: gatewayID,
		Name:      req.Name,
		Direction: direction,
		BaseCost:  baseCost,
	}
	if err := h.store.CreateChannel(r.Context(), ch); err != nil {
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("create channel failed", zap.Error(err), zap.String("name", req.Name))
		RespondError(w, r, http.StatusInternalServerError, "channel/create-failed", "Failed to create channel")
		return
	}

	RespondJSON(w, http.StatusCreated, ch)
}

// CreateSchema handles POST /v1/schemas.
func (h *CatalogHandler) CreateSchema(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string   `json:"name"`
		Roles     []string `json:"roles"`
		IsDefault bool     `json:"is_default"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Name == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-name", "name is required")
		return
	}
	if len(req.Roles) == 0 {
		RespondError(w, r, http.StatusBadRequest, "request/missing-roles", "roles is required")
		return
	}
	roles := make([]domain.Role, 0, len(req.Roles))
	for _, raw := range req.Roles {
		role, ok := domain.ParseRole(raw)
		if !ok {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-role", "Unknown role: "+raw)
			return
		}
		roles = append(roles, role)
	}

	schema := &models.RateSchema{
		ID:        uuid.New(),
		Name:      req.Name,
		Roles:     roles,
		IsDefault: req.IsDefault,
	}
	if err := h.store.CreateSchema(r.Context(), schema); err != nil {
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("create schema failed", zap.Error(err), zap.String("name", req.Name))
		RespondError(w, r, http.StatusInternalServerError, "schema/create-failed", "Failed to create schema")
		return
	}

	RespondJSON(w, http.StatusCreated, schema)
}
