//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/partnerlink/platform/test/integration/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type conversionResult struct {
	Conversion struct {
		ID             uuid.UUID       `json:"id"`
		OrderID        string          `json:"order_id"`
		ClickID        *uuid.UUID      `json:"click_id"`
		PartnerID      *uuid.UUID      `json:"partner_id"`
		Status         string          `json:"status"`
		GrossAmount    decimal.Decimal `json:"gross_amount"`
		RefundedAmount decimal.Decimal `json:"refunded_amount"`
		Currency       string          `json:"currency"`
	} `json:"conversion"`
	Commission *struct {
		ID               uuid.UUID       `json:"id"`
		ConversionID     uuid.UUID       `json:"conversion_id"`
		PartnerID        uuid.UUID       `json:"partner_id"`
		CalculatedAmount decimal.Decimal `json:"calculated_amount"`
		CurrentAmount    decimal.Decimal `json:"current_amount"`
		Currency         string          `json:"currency"`
		Status           string          `json:"status"`
	} `json:"commission"`
	CommissionError string `json:"commission_error"`
}

func postConversion(t *testing.T, env *testutil.TestEnv, body map[string]interface{}) conversionResult {
	t.Helper()
	resp := env.AuthPOST("/tracking/conversions", body, env.AdminToken())
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result conversionResult
	testutil.DecodeJSON(t, resp, &result)
	return result
}

// ─── Last-Touch Attribution ─────────────────────────────────────────────────

func TestAttribution_ClickToCommission(t *testing.T) {
	env := testutil.NewTestEnv(t)
	partnerID := env.SeedPartner("Acme Media", "acme-attr")
	env.SeedGlobalRatePolicy("0.1")

	clickID := env.RecordClick("acme-attr", map[string]interface{}{
		"session_id":  "sess-1",
		"fingerprint": "fp-1",
	})

	result := postConversion(t, env, map[string]interface{}{
		"order_id":        "order-1001",
		"referral_code":   "acme-attr",
		"session_id":      "sess-1",
		"amount":          "100.00",
		"currency":        "KRW",
		"conversion_type": "sale",
	})

	require.NotNil(t, result.Conversion.ClickID)
	assert.Equal(t, clickID, *result.Conversion.ClickID)
	require.NotNil(t, result.Conversion.PartnerID)
	assert.Equal(t, partnerID, *result.Conversion.PartnerID)
	assert.Equal(t, "pending", result.Conversion.Status)
	assert.Equal(t, "100", result.Conversion.GrossAmount.String())

	// 10% of 100 KRW, rounded at the whole-unit minor unit.
	require.NotNil(t, result.Commission)
	assert.Equal(t, "10", result.Commission.CurrentAmount.String())
	assert.Equal(t, "KRW", result.Commission.Currency)
	assert.Equal(t, "pending", result.Commission.Status)
	assert.Empty(t, result.CommissionError)
}

func TestAttribution_ClickOutsideWindowUnattributed(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("Acme Media", "acme-old")
	env.SeedGlobalRatePolicy("0.1")

	clickID := env.RecordClick("acme-old", nil)
	env.BackdateClick(clickID, 31*24*time.Hour) // window is 30 days

	result := postConversion(t, env, map[string]interface{}{
		"order_id":        "order-1002",
		"referral_code":   "acme-old",
		"amount":          "50.00",
		"currency":        "USD",
		"conversion_type": "sale",
	})

	assert.Nil(t, result.Conversion.ClickID)
	// Partner still resolved from the code for reporting.
	assert.NotNil(t, result.Conversion.PartnerID)
	assert.Nil(t, result.Commission)
	assert.Empty(t, result.CommissionError)
}

func TestAttribution_LastTouchWins(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("Acme Media", "acme-last")
	env.SeedGlobalRatePolicy("0.1")

	older := env.RecordClick("acme-last", nil)
	env.BackdateClick(older, 48*time.Hour)
	newer := env.RecordClick("acme-last", nil)

	result := postConversion(t, env, map[string]interface{}{
		"order_id":        "order-1003",
		"referral_code":   "acme-last",
		"amount":          "10.00",
		"currency":        "USD",
		"conversion_type": "sale",
	})

	require.NotNil(t, result.Conversion.ClickID)
	assert.Equal(t, newer, *result.Conversion.ClickID)
}

func TestAttribution_SessionMatchPreferred(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("Acme Media", "acme-sess")
	env.SeedGlobalRatePolicy("0.1")

	matching := env.RecordClick("acme-sess", map[string]interface{}{"session_id": "sess-match"})
	env.BackdateClick(matching, time.Hour)
	env.RecordClick("acme-sess", nil) // newer, but no session match

	result := postConversion(t, env, map[string]interface{}{
		"order_id":        "order-1004",
		"referral_code":   "acme-sess",
		"session_id":      "sess-match",
		"amount":          "10.00",
		"currency":        "USD",
		"conversion_type": "sale",
	})

	require.NotNil(t, result.Conversion.ClickID)
	assert.Equal(t, matching, *result.Conversion.ClickID)
}

func TestAttribution_NoPolicyKeepsConversion(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("Acme Media", "acme-nopol")

	env.RecordClick("acme-nopol", nil)

	result := postConversion(t, env, map[string]interface{}{
		"order_id":        "order-1005",
		"referral_code":   "acme-nopol",
		"amount":          "10.00",
		"currency":        "USD",
		"conversion_type": "sale",
	})

	require.NotNil(t, result.Conversion.ClickID)
	assert.Nil(t, result.Commission)
	assert.Contains(t, result.CommissionError, "no commission policy")
}

func TestAttribution_DuplicateOrderRejected(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("Acme Media", "acme-dup-ord")
	env.SeedGlobalRatePolicy("0.1")

	body := map[string]interface{}{
		"order_id":        "order-1006",
		"referral_code":   "acme-dup-ord",
		"amount":          "10.00",
		"currency":        "USD",
		"conversion_type": "sale",
	}
	postConversion(t, env, body)

	resp := env.AuthPOST("/tracking/conversions", body, env.AdminToken())
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	testutil.AssertErrorCode(t, resp, "ALREADY_PROCESSED")
}

func TestAttribution_ConcurrentOrdersOneClaims(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("Acme Media", "acme-race")
	env.SeedGlobalRatePolicy("0.1")

	env.RecordClick("acme-race", nil)

	const workers = 4
	results := make([]conversionResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := env.AuthPOST("/tracking/conversions", map[string]interface{}{
				"order_id":        fmt.Sprintf("order-race-%d", i),
				"referral_code":   "acme-race",
				"amount":          "10.00",
				"currency":        "USD",
				"conversion_type": "sale",
			}, env.AdminToken())
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusCreated {
				testutil.DecodeJSON(t, resp, &results[i])
			}
		}(i)
	}
	wg.Wait()

	attributed := 0
	for _, r := range results {
		if r.Conversion.ClickID != nil {
			attributed++
		}
	}
	assert.Equal(t, 1, attributed, "exactly one order may claim the click")
}

func TestAttribution_NoReferralCodeUnattributed(t *testing.T) {
	env := testutil.NewTestEnv(t)

	result := postConversion(t, env, map[string]interface{}{
		"order_id":        "order-1007",
		"amount":          "25.00",
		"currency":        "EUR",
		"conversion_type": "signup",
	})

	assert.Nil(t, result.Conversion.ClickID)
	assert.Nil(t, result.Conversion.PartnerID)
	assert.Nil(t, result.Commission)
}

func TestAttribution_ValidationErrors(t *testing.T) {
	env := testutil.NewTestEnv(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing order id", map[string]interface{}{
			"amount": "10.00", "currency": "USD", "conversion_type": "sale"}},
		{"zero amount", map[string]interface{}{
			"order_id": "o1", "amount": "0", "currency": "USD", "conversion_type": "sale"}},
		{"bad currency", map[string]interface{}{
			"order_id": "o2", "amount": "10.00", "currency": "usd", "conversion_type": "sale"}},
		{"bad type", map[string]interface{}{
			"order_id": "o3", "amount": "10.00", "currency": "USD", "conversion_type": "purchase"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.AuthPOST("/tracking/conversions", tt.body, env.AdminToken())
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

// ─── Manual Attribution ─────────────────────────────────────────────────────

func TestAttribution_ManualBind(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("Acme Media", "acme-manual")
	env.SeedGlobalRatePolicy("0.1")

	clickID := env.RecordClick("acme-manual", nil)

	// Recorded without a referral code: unattributed.
	created := postConversion(t, env, map[string]interface{}{
		"order_id":        "order-1008",
		"amount":          "100.00",
		"currency":        "USD",
		"conversion_type": "sale",
	})
	require.Nil(t, created.Conversion.ClickID)

	resp := env.AuthPOST("/admin/conversions/"+created.Conversion.ID.String()+"/attribute",
		map[string]interface{}{"click_id": clickID}, env.AdminToken())
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result conversionResult
	testutil.DecodeJSON(t, resp, &result)
	require.NotNil(t, result.Conversion.ClickID)
	assert.Equal(t, clickID, *result.Conversion.ClickID)
	require.NotNil(t, result.Commission)
	assert.True(t, result.Commission.CurrentAmount.Equal(decimal.RequireFromString("10.00")),
		"got %s", result.Commission.CurrentAmount)
}

func TestAttribution_ManualBindClaimedClickRejected(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("Acme Media", "acme-claimed")
	env.SeedGlobalRatePolicy("0.1")

	env.RecordClick("acme-claimed", nil)

	// First conversion claims the click.
	first := postConversion(t, env, map[string]interface{}{
		"order_id":        "order-1009",
		"referral_code":   "acme-claimed",
		"amount":          "10.00",
		"currency":        "USD",
		"conversion_type": "sale",
	})
	require.NotNil(t, first.Conversion.ClickID)

	second := postConversion(t, env, map[string]interface{}{
		"order_id":        "order-1010",
		"amount":          "10.00",
		"currency":        "USD",
		"conversion_type": "sale",
	})

	resp := env.AuthPOST("/admin/conversions/"+second.Conversion.ID.String()+"/attribute",
		map[string]interface{}{"click_id": *first.Conversion.ClickID}, env.AdminToken())
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ─── Conversion Queries ─────────────────────────────────────────────────────

func TestConversions_PartnerScoped(t *testing.T) {
	env := testutil.NewTestEnv(t)
	mine := env.SeedPartner("Mine", "conv-mine")
	env.SeedPartner("Theirs", "conv-theirs")
	env.SeedGlobalRatePolicy("0.1")

	env.RecordClick("conv-mine", nil)
	env.RecordClick("conv-theirs", nil)

	postConversion(t, env, map[string]interface{}{
		"order_id": "order-m1", "referral_code": "conv-mine",
		"amount": "10.00", "currency": "USD", "conversion_type": "sale"})
	postConversion(t, env, map[string]interface{}{
		"order_id": "order-t1", "referral_code": "conv-theirs",
		"amount": "10.00", "currency": "USD", "conversion_type": "sale"})

	resp := env.AuthGET("/tracking/conversions", env.PartnerToken(mine))
	defer resp.Body.Close()

	var page struct {
		Items []struct {
			OrderID string `json:"order_id"`
		} `json:"items"`
		Total int `json:"total"`
	}
	testutil.DecodeJSON(t, resp, &page)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "order-m1", page.Items[0].OrderID)
}

func TestConversionStats_Aggregates(t *testing.T) {
	env := testutil.NewTestEnv(t)
	partnerID := env.SeedPartner("Acme", "conv-stats")
	env.SeedGlobalRatePolicy("0.1")

	env.RecordClick("conv-stats", nil)
	postConversion(t, env, map[string]interface{}{
		"order_id": "order-s1", "referral_code": "conv-stats",
		"amount": "100.00", "currency": "USD", "conversion_type": "sale"})
	postConversion(t, env, map[string]interface{}{
		"order_id": "order-s2", "referral_code": "conv-stats",
		"amount": "50.00", "currency": "USD", "conversion_type": "sale"})

	resp := env.AuthGET(fmt.Sprintf("/tracking/conversions/stats?partner_id=%s", partnerID), env.AdminToken())
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats struct {
		Total        int             `json:"total"`
		Pending      int             `json:"pending"`
		Unattributed int             `json:"unattributed"`
		GrossSum     decimal.Decimal `json:"gross_sum"`
	}
	testutil.DecodeJSON(t, resp, &stats)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Unattributed)
	assert.True(t, stats.GrossSum.Equal(decimal.RequireFromString("150")), "got %s", stats.GrossSum)
}
