package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/partnerlink/platform/internal/auth"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/partnerlink/platform/internal/service"
)

// ConversionHandler handles conversion ingestion and queries.
type ConversionHandler struct {
	attribution *service.AttributionService
	stats       *service.StatsService
}

// NewConversionHandler creates a ConversionHandler.
func NewConversionHandler(attribution *service.AttributionService, stats *service.StatsService) *ConversionHandler {
	return &ConversionHandler{attribution: attribution, stats: stats}
}

// RecordConversion handles POST /tracking/conversions — the order
// subsystem's ingress. Admin scope only.
func (h *ConversionHandler) RecordConversion(w http.ResponseWriter, r *http.Request) {
	var ev service.OrderEvent
	if err := DecodeJSON(r, &ev); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	result, err := h.attribution.RecordConversion(r.Context(), ev)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, result)
}

// GetConversions handles GET /tracking/conversions.
func (h *ConversionHandler) GetConversions(w http.ResponseWriter, r *http.Request) {
	f := domain.ConversionFilters{
		PartnerID:     queryUUID(r, "partner_id"),
		OrderID:       r.URL.Query().Get("order_id"),
		ReferralCode:  r.URL.Query().Get("referral_code"),
		DateFrom:      queryTime(r, "date_from"),
		DateTo:        queryTime(r, "date_to"),
		MinAmount:     queryDecimal(r, "min_amount"),
		MaxAmount:     queryDecimal(r, "max_amount"),
		IsNewCustomer: queryBool(r, "is_new_customer"),
		SortBy:        r.URL.Query().Get("sort_by"),
		SortOrder:     r.URL.Query().Get("sort_order"),
		Pagination:    queryPagination(r),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.ConversionStatus(raw)
		f.Status = &status
	}
	if raw := r.URL.Query().Get("conversion_type"); raw != "" {
		ct := domain.ConversionType(raw)
		f.Type = &ct
	}

	result, err := h.attribution.GetConversions(r.Context(), auth.ScopeFromContext(r.Context()), f)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// GetConversion handles GET /tracking/conversions/{id}.
func (h *ConversionHandler) GetConversion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid conversion id"))
		return
	}

	conv, err := h.attribution.GetConversion(r.Context(), auth.ScopeFromContext(r.Context()), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, conv)
}

// GetConversionStats handles GET /tracking/conversions/stats.
func (h *ConversionHandler) GetConversionStats(w http.ResponseWriter, r *http.Request) {
	scope := auth.ScopeFromContext(r.Context())

	var partnerID uuid.UUID
	if id := queryUUID(r, "partner_id"); id != nil {
		partnerID = *id
	} else if !scope.All {
		partnerID = scope.PartnerID
	} else {
		RespondError(w, domain.ErrValidation("partner_id is required"))
		return
	}

	stats, err := h.stats.ConversionStats(r.Context(), scope, partnerID,
		queryTime(r, "date_from"), queryTime(r, "date_to"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, stats)
}
