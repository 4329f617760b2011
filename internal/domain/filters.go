package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Pagination is the shared page/limit pair. Zero values fall back to
// the first page with the default limit.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize returns the SQL offset and a bounded limit.
func (p Pagination) Normalize() (offset, limit int) {
	limit = p.Limit
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit, limit
}

// PagedResult wraps a page of rows with the unpaged total.
type PagedResult[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// ClickFilters narrows click list queries.
type ClickFilters struct {
	PartnerID    *uuid.UUID
	ReferralCode string
	Status       *ClickStatus
	DateFrom     *time.Time
	DateTo       *time.Time
	HasConverted *bool
	SortBy       string
	SortOrder    string
	Pagination
}

// ConversionFilters narrows conversion list queries.
type ConversionFilters struct {
	PartnerID     *uuid.UUID
	OrderID       string
	ReferralCode  string
	Status        *ConversionStatus
	Type          *ConversionType
	DateFrom      *time.Time
	DateTo        *time.Time
	MinAmount     *decimal.Decimal
	MaxAmount     *decimal.Decimal
	IsNewCustomer *bool
	SortBy        string
	SortOrder     string
	Pagination
}

// CommissionFilters narrows commission list queries.
type CommissionFilters struct {
	PartnerID *uuid.UUID
	Status    *CommissionStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	SortBy    string
	SortOrder string
	Pagination
}

// PolicyFilters narrows policy list queries.
type PolicyFilters struct {
	PolicyType *PolicyType
	PartnerID  *uuid.UUID
	ProductID  *string
	CategoryID *string
	IsActive   *bool
	SortBy     string
	SortOrder  string
	Pagination
}
