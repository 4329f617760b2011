package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/shopspring/decimal"
)

// Query-string parsing helpers shared by the list endpoints. Bad values
// are ignored rather than rejected; the repositories enforce the sort
// allow-lists and limit bounds.

func queryPagination(r *http.Request) domain.Pagination {
	var p domain.Pagination
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		p.Page = n
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		p.Limit = n
	}
	return p
}

func queryTime(r *http.Request, key string) *time.Time {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t
	}
	return nil
}

func queryUUID(r *http.Request, key string) *uuid.UUID {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	if id, err := uuid.Parse(raw); err == nil {
		return &id
	}
	return nil
}

func queryDecimal(r *http.Request, key string) *decimal.Decimal {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	if d, err := decimal.NewFromString(raw); err == nil {
		return &d
	}
	return nil
}

func queryBool(r *http.Request, key string) *bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "true", "1":
		b := true
		return &b
	case "false", "0":
		b := false
		return &b
	}
	return nil
}

func queryString(r *http.Request, key string) *string {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	return &raw
}

// clientIP extracts the originating IP, trusting the first
// X-Forwarded-For entry when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}
	return host
}
