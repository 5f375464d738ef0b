package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/nileshk07/paygrid/internal/service"
)

// ReconciliationHandler triggers an on-demand ledger integrity sweep.
type ReconciliationHandler struct {
	svc *service.ReconciliationService
}

func NewReconciliationHandler(svc *service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{svc: svc}
}

// Run handles POST /v1/reconciliation/run (platform only).
func (h *ReconciliationHandler) Run(w http.ResponseWriter, r *http.Request) {
	findings, err := h.svc.ReconcileAll(r.Context())
	if err != nil {
		zap.L().Error("reconciliation run failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "reconciliation/failed", "Reconciliation run failed")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"balanced":   len(findings) == 0,
		"imbalances": findings,
	})
}
