package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/partnerlink/platform/internal/auth"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/partnerlink/platform/internal/handler"
	"github.com/partnerlink/platform/internal/lifecycle"
	"github.com/shopspring/decimal"
)

// CommissionAdminHandler handles the commission lifecycle commands.
type CommissionAdminHandler struct {
	lifecycle *lifecycle.Manager
}

// NewCommissionAdminHandler creates a CommissionAdminHandler.
func NewCommissionAdminHandler(lc *lifecycle.Manager) *CommissionAdminHandler {
	return &CommissionAdminHandler{lifecycle: lc}
}

// Confirm handles POST /admin/commissions/{id}/confirm.
func (h *CommissionAdminHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid commission id"))
		return
	}

	comm, err := h.lifecycle.ConfirmCommission(r.Context(), id)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, comm)
}

// Cancel handles POST /admin/commissions/{id}/cancel.
func (h *CommissionAdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid commission id"))
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	actor := auth.ScopeFromContext(r.Context()).Subject
	comm, err := h.lifecycle.CancelCommission(r.Context(), id, body.Reason, actor)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, comm)
}

// Adjust handles POST /admin/commissions/{id}/adjust.
func (h *CommissionAdminHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid commission id"))
		return
	}

	var body struct {
		NewAmount decimal.Decimal `json:"new_amount"`
		Reason    string          `json:"reason"`
	}
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	actor := auth.ScopeFromContext(r.Context()).Subject
	comm, err := h.lifecycle.AdjustCommission(r.Context(), id, body.NewAmount, body.Reason, actor)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, comm)
}

// Pay handles POST /admin/commissions/{id}/pay.
func (h *CommissionAdminHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid commission id"))
		return
	}

	var body struct {
		Method    string `json:"method"`
		Reference string `json:"reference"`
	}
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	comm, err := h.lifecycle.PayCommission(r.Context(), id, body.Method, body.Reference)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, comm)
}
