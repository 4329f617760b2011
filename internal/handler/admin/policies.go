package admin

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/partnerlink/platform/internal/handler"
	"github.com/partnerlink/platform/internal/service"
)

// PolicyAdminHandler handles commission policy management.
type PolicyAdminHandler struct {
	policies *service.PolicyService
}

// NewPolicyAdminHandler creates a PolicyAdminHandler.
func NewPolicyAdminHandler(policies *service.PolicyService) *PolicyAdminHandler {
	return &PolicyAdminHandler{policies: policies}
}

// Upsert handles POST /admin/policies. A body with an id replaces that
// policy; without one a new policy is created.
func (h *PolicyAdminHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var p domain.CommissionPolicy
	if err := handler.DecodeJSON(r, &p); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	stored, err := h.policies.Upsert(r.Context(), &p)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, stored)
}

// List handles GET /admin/policies.
func (h *PolicyAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.PolicyFilters{
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	if n, err := strconv.Atoi(q.Get("page")); err == nil {
		f.Page = n
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = n
	}
	if raw := q.Get("policy_type"); raw != "" {
		pt := domain.PolicyType(raw)
		f.PolicyType = &pt
	}
	if raw := q.Get("partner_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			f.PartnerID = &id
		}
	}
	if raw := q.Get("product_id"); raw != "" {
		f.ProductID = &raw
	}
	if raw := q.Get("category_id"); raw != "" {
		f.CategoryID = &raw
	}
	switch q.Get("is_active") {
	case "true":
		b := true
		f.IsActive = &b
	case "false":
		b := false
		f.IsActive = &b
	}

	result, err := h.policies.List(r.Context(), f)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, result)
}

// Get handles GET /admin/policies/{id}.
func (h *PolicyAdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid policy id"))
		return
	}

	p, err := h.policies.Get(r.Context(), id)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, p)
}
