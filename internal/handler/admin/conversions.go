package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/partnerlink/platform/internal/auth"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/partnerlink/platform/internal/handler"
	"github.com/partnerlink/platform/internal/lifecycle"
	"github.com/partnerlink/platform/internal/service"
	"github.com/shopspring/decimal"
)

// ConversionAdminHandler handles the conversion lifecycle commands.
type ConversionAdminHandler struct {
	lifecycle   *lifecycle.Manager
	attribution *service.AttributionService
}

// NewConversionAdminHandler creates a ConversionAdminHandler.
func NewConversionAdminHandler(lc *lifecycle.Manager, attribution *service.AttributionService) *ConversionAdminHandler {
	return &ConversionAdminHandler{lifecycle: lc, attribution: attribution}
}

// Confirm handles POST /admin/conversions/{id}/confirm.
func (h *ConversionAdminHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid conversion id"))
		return
	}

	conv, err := h.lifecycle.ConfirmConversion(r.Context(), id)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, conv)
}

// Cancel handles POST /admin/conversions/{id}/cancel.
func (h *ConversionAdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid conversion id"))
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
	conv, err := h.lifecycle.CancelConversion(r.Context(), id, body.Reason, actor)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, conv)
}

// Refund handles POST /admin/conversions/{id}/refund.
func (h *ConversionAdminHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid conversion id"))
		return
	}

	var body struct {
		Amount   decimal.Decimal `json:"amount"`
		Quantity int             `json:"quantity"`
		Reason   string          `json:"reason"`
	}
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	conv, err := h.lifecycle.RefundConversion(r.Context(), id, lifecycle.RefundParams{
		Amount:   body.Amount,
		Quantity: body.Quantity,
		Reason:   body.Reason,
		Actor:    auth.ScopeFromContext(r.Context()).Subject,
	})
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, conv)
}

// Attribute handles POST /admin/conversions/{id}/attribute — manual
// binding of a conversion to an explicit click.
func (h *ConversionAdminHandler) Attribute(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid conversion id"))
		return
	}

	var body struct {
		ClickID uuid.UUID `json:"click_id"`
	}
	if err := handler.DecodeJSON(r, &body); err != nil || body.ClickID == uuid.Nil {
		handler.RespondError(w, domain.ErrValidation("click_id is required"))
		return
	}

	result, err := h.attribution.Attribute(r.Context(), id, body.ClickID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, result)
}
