package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nileshk07/paygrid/internal/api/middleware"
	"github.com/nileshk07/paygrid/internal/api/problem"
	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

func parseURLID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid "+param+" in URL")
		return uuid.Nil, false
	}
	return id, true
}

func parseQueryID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.URL.Query().Get(param))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", param+" query parameter must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func requestActor(r *http.Request) (uuid.UUID, bool, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, false, errors.New("missing user in auth context")
	}

	actorID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, false, errors.New("invalid user_id in auth context")
	}

	isPlatform := middleware.UserRoleFromContext(r.Context()) == domain.RolePlatform.String()
	return actorID, isPlatform, nil
}

// mapServiceError translates domain sentinels and typed errors into
// problem responses. Returns false when the error is unrecognized.
func mapServiceError(err error) (status int, problemType, message string, ok bool) {
	var floorErr *models.RateBelowFloorError
	var spreadErr *models.NegativeSpreadError
	var hierErr *models.HierarchyError
	switch {
	case errors.Is(err, models.ErrWalletNotFound):
		return http.StatusNotFound, "wallet/not-found", "wallet not found", true
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "resource/not-found", "resource not found", true
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusBadRequest, "wallet/insufficient-funds", err.Error(), true
	case errors.Is(err, models.ErrInsufficientHold):
		return http.StatusBadRequest, "wallet/insufficient-hold", err.Error(), true
	case errors.Is(err, models.ErrSameAccount):
		return http.StatusBadRequest, "transfer/same-account", err.Error(), true
	case errors.Is(err, models.ErrReferenceConflict):
		return http.StatusConflict, "ledger/reference-conflict", err.Error(), true
	case errors.Is(err, models.ErrNoRateConfigured):
		return http.StatusUnprocessableEntity, "rate/not-configured", err.Error(), true
	case errors.Is(err, models.ErrNoSlabMatch):
		return http.StatusUnprocessableEntity, "fee/no-slab-match", err.Error(), true
	case errors.As(err, &floorErr):
		return http.StatusUnprocessableEntity, "rate/below-floor", floorErr.Error(), true
	case errors.As(err, &spreadErr):
		return http.StatusUnprocessableEntity, "commission/negative-spread", spreadErr.Error(), true
	case errors.As(err, &hierErr):
		return http.StatusUnprocessableEntity, "commission/broken-hierarchy", hierErr.Error(), true
	}
	return 0, "", "", false
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
