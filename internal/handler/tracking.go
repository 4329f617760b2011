package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/partnerlink/platform/internal/auth"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/partnerlink/platform/internal/service"
)

// TrackingHandler handles click ingestion and click queries.
type TrackingHandler struct {
	tracking *service.TrackingService
}

// NewTrackingHandler creates a TrackingHandler.
func NewTrackingHandler(tracking *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{tracking: tracking}
}

// RecordClick handles POST /track/click. Public: the endpoint sits
// behind referral links, so there is no bearer token. UTM fields may
// arrive in the body or the query string; the body wins.
func (h *TrackingHandler) RecordClick(w http.ResponseWriter, r *http.Request) {
	// An empty body is fine; referral links often carry everything in
	// the query string.
	var input service.RecordClickInput
	if err := DecodeJSON(r, &input); err != nil && !errors.Is(err, io.EOF) {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	q := r.URL.Query()
	if input.ReferralCode == "" {
		input.ReferralCode = q.Get("ref")
	}
	if input.SessionID == "" {
		input.SessionID = q.Get("session_id")
	}
	if input.Fingerprint == "" {
		input.Fingerprint = q.Get("fingerprint")
	}
	if input.ProductID == "" {
		input.ProductID = q.Get("product_id")
	}
	if input.Campaign == "" {
		input.Campaign = q.Get("utm_campaign")
	}
	if input.Medium == "" {
		input.Medium = q.Get("utm_medium")
	}
	if input.Source == "" {
		input.Source = q.Get("utm_source")
	}

	input.IPAddress = clientIP(r)
	input.UserAgent = r.UserAgent()
	input.Referer = r.Referer()

	click, err := h.tracking.RecordClick(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, click)
}

// GetClicks handles GET /tracking/clicks.
func (h *TrackingHandler) GetClicks(w http.ResponseWriter, r *http.Request) {
	f := domain.ClickFilters{
		PartnerID:    queryUUID(r, "partner_id"),
		ReferralCode: r.URL.Query().Get("referral_code"),
		HasConverted: queryBool(r, "has_converted"),
		DateFrom:     queryTime(r, "date_from"),
		DateTo:       queryTime(r, "date_to"),
		SortBy:       r.URL.Query().Get("sort_by"),
		SortOrder:    r.URL.Query().Get("sort_order"),
		Pagination:   queryPagination(r),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.ClickStatus(raw)
		f.Status = &status
	}

	result, err := h.tracking.GetClicks(r.Context(), auth.ScopeFromContext(r.Context()), f)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// GetClick handles GET /tracking/clicks/{id}.
func (h *TrackingHandler) GetClick(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid click id"))
		return
	}

	click, err := h.tracking.GetClick(r.Context(), auth.ScopeFromContext(r.Context()), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, click)
}

// GetClickStats handles GET /tracking/clicks/stats.
func (h *TrackingHandler) GetClickStats(w http.ResponseWriter, r *http.Request) {
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

	stats, err := h.tracking.GetClickStats(r.Context(), scope, partnerID,
		queryTime(r, "date_from"), queryTime(r, "date_to"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, stats)
}
