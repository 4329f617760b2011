package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/partnerlink/platform/internal/auth"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/partnerlink/platform/internal/service"
)

// CommissionHandler handles commission queries.
type CommissionHandler struct {
	commissions *service.CommissionService
	stats       *service.StatsService
}

// NewCommissionHandler creates a CommissionHandler.
func NewCommissionHandler(commissions *service.CommissionService, stats *service.StatsService) *CommissionHandler {
	return &CommissionHandler{commissions: commissions, stats: stats}
}

// GetCommissions handles GET /commissions.
func (h *CommissionHandler) GetCommissions(w http.ResponseWriter, r *http.Request) {
	f := domain.CommissionFilters{
		PartnerID:  queryUUID(r, "partner_id"),
		DateFrom:   queryTime(r, "date_from"),
		DateTo:     queryTime(r, "date_to"),
		MinAmount:  queryDecimal(r, "min_amount"),
		MaxAmount:  queryDecimal(r, "max_amount"),
		SortBy:     r.URL.Query().Get("sort_by"),
		SortOrder:  r.URL.Query().Get("sort_order"),
		Pagination: queryPagination(r),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.CommissionStatus(raw)
		f.Status = &status
	}

	result, err := h.commissions.GetCommissions(r.Context(), auth.ScopeFromContext(r.Context()), f)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// GetCommission handles GET /commissions/{id}.
func (h *CommissionHandler) GetCommission(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid commission id"))
		return
	}

	comm, err := h.commissions.GetCommission(r.Context(), auth.ScopeFromContext(r.Context()), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, comm)
}

// GetAdjustments handles GET /commissions/{id}/adjustments.
func (h *CommissionHandler) GetAdjustments(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid commission id"))
		return
	}

	adjs, err := h.commissions.GetAdjustments(r.Context(), auth.ScopeFromContext(r.Context()), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	if adjs == nil {
		adjs = []domain.Adjustment{}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"adjustments": adjs})
}

// GetCommissionStats handles GET /commissions/stats.
func (h *CommissionHandler) GetCommissionStats(w http.ResponseWriter, r *http.Request) {
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

	stats, err := h.stats.CommissionStats(r.Context(), scope, partnerID,
		queryTime(r, "date_from"), queryTime(r, "date_to"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, stats)
}

// GetTopPartners handles GET /commissions/top-partners. Admin only;
// the route is mounted behind the admin middleware.
func (h *CommissionHandler) GetTopPartners(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}

	rows, err := h.stats.TopPartners(r.Context(),
		queryTime(r, "date_from"), queryTime(r, "date_to"), limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"partners": rows})
}
