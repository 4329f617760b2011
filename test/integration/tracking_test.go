//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/partnerlink/platform/internal/infra"
	"github.com/partnerlink/platform/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Click Ingestion ────────────────────────────────────────────────────────

func TestClick_RecordedValid(t *testing.T) {
	env := testutil.NewTestEnv(t)
	partnerID := env.SeedPartner("Acme Media", "acme-2026")

	resp := env.POST("/track/click", map[string]interface{}{
		"referral_code": "acme-2026",
		"session_id":    "sess-1",
		"fingerprint":   "fp-1",
		"utm_campaign":  "spring",
	}, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var click struct {
		ID           uuid.UUID  `json:"id"`
		PartnerID    *uuid.UUID `json:"partner_id"`
		ReferralCode string     `json:"referral_code"`
		Status       string     `json:"status"`
		Campaign     string     `json:"campaign"`
		HasConverted bool       `json:"has_converted"`
	}
	testutil.DecodeJSON(t, resp, &click)
	assert.Equal(t, "valid", click.Status)
	assert.Equal(t, "acme-2026", click.ReferralCode)
	require.NotNil(t, click.PartnerID)
	assert.Equal(t, partnerID, *click.PartnerID)
	assert.Equal(t, "spring", click.Campaign)
	assert.False(t, click.HasConverted)
}

func TestClick_UnknownCodeStillRecorded(t *testing.T) {
	env := testutil.NewTestEnv(t)

	resp := env.POST("/track/click", map[string]interface{}{
		"referral_code": "nobody-owns-this",
	}, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var click struct {
		PartnerID *uuid.UUID `json:"partner_id"`
		Status    string     `json:"status"`
	}
	testutil.DecodeJSON(t, resp, &click)
	assert.Equal(t, "valid", click.Status)
	assert.Nil(t, click.PartnerID)
}

func TestClick_MissingCodeRejected(t *testing.T) {
	env := testutil.NewTestEnv(t)

	resp := env.POST("/track/click", map[string]interface{}{}, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClick_QueryParamsAccepted(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("Acme Media", "acme-qp")

	resp := env.POST("/track/click?ref=acme-qp&utm_source=newsletter", nil, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var click struct {
		ReferralCode string `json:"referral_code"`
		Source       string `json:"source"`
	}
	testutil.DecodeJSON(t, resp, &click)
	assert.Equal(t, "acme-qp", click.ReferralCode)
	assert.Equal(t, "newsletter", click.Source)
}

func TestClick_QueryFingerprintDeduplicated(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("Acme Media", "acme-qfp")

	first := env.POST("/track/click?ref=acme-qfp&fingerprint=qs-device&session_id=qs-sess", nil, "")
	defer first.Body.Close()

	require.Equal(t, http.StatusCreated, first.StatusCode)
	var click struct {
		Status      string `json:"status"`
		Fingerprint string `json:"fingerprint"`
		SessionID   string `json:"session_id"`
	}
	testutil.DecodeJSON(t, first, &click)
	assert.Equal(t, "valid", click.Status)
	assert.Equal(t, "qs-device", click.Fingerprint)
	assert.Equal(t, "qs-sess", click.SessionID)

	second := env.POST("/track/click?ref=acme-qfp&fingerprint=qs-device", nil, "")
	defer second.Body.Close()

	testutil.DecodeJSON(t, second, &click)
	assert.Equal(t, "duplicate", click.Status)
}

func TestClick_DuplicateFingerprint(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("Acme Media", "acme-dup")

	body := map[string]interface{}{
		"referral_code": "acme-dup",
		"fingerprint":   "same-device",
	}
	first := env.POST("/track/click", body, "")
	first.Body.Close()

	second := env.POST("/track/click", body, "")
	defer second.Body.Close()

	require.Equal(t, http.StatusCreated, second.StatusCode)

	var click struct {
		Status string `json:"status"`
	}
	testutil.DecodeJSON(t, second, &click)
	assert.Equal(t, "duplicate", click.Status)
}

func TestClick_DifferentFingerprintsNotDuplicates(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("Acme Media", "acme-fp2")

	for i, fp := range []string{"device-a", "device-b"} {
		resp := env.POST("/track/click", map[string]interface{}{
			"referral_code": "acme-fp2",
			"fingerprint":   fp,
		}, "")

		var click struct {
			Status string `json:"status"`
		}
		testutil.DecodeJSON(t, resp, &click)
		assert.Equal(t, "valid", click.Status, "click %d", i)
	}
}

func TestClick_RateLimited(t *testing.T) {
	env := testutil.NewTestEnvWithConfig(t, func(cfg *infra.Config) {
		cfg.ClickRateLimit = 3
		cfg.ClickRateWindow = time.Minute
	})
	env.SeedPartner("Acme Media", "acme-rl")

	var statuses []string
	for i := 0; i < 5; i++ {
		resp := env.POST("/track/click", map[string]interface{}{
			"referral_code": "acme-rl",
		}, "")

		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var click struct {
			Status        string `json:"status"`
			InvalidReason string `json:"invalid_reason"`
		}
		testutil.DecodeJSON(t, resp, &click)
		statuses = append(statuses, click.Status)
		if click.Status == "invalid" {
			assert.Contains(t, click.InvalidReason, "rate limit exceeded")
		}
	}

	assert.Equal(t, []string{"valid", "valid", "valid", "invalid", "invalid"}, statuses)
}

func TestClick_FingerprintRateLimitedAcrossIPs(t *testing.T) {
	env := testutil.NewTestEnvWithConfig(t, func(cfg *infra.Config) {
		cfg.ClickRateLimit = 3
		cfg.ClickRateWindow = time.Minute
	})

	// Rotating source IPs with a fixed fingerprint; distinct referral
	// codes keep the dedup check out of the picture.
	var statuses []string
	for i := 0; i < 5; i++ {
		body, err := json.Marshal(map[string]interface{}{
			"referral_code": fmt.Sprintf("fp-rl-%d", i),
			"fingerprint":   "one-device",
		})
		require.NoError(t, err)

		resp := env.RawPOST("/track/click", body, map[string]string{
			"Content-Type":    "application/json",
			"X-Forwarded-For": fmt.Sprintf("198.51.100.%d", i+1),
		})

		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var click struct {
			Status        string `json:"status"`
			InvalidReason string `json:"invalid_reason"`
		}
		testutil.DecodeJSON(t, resp, &click)
		statuses = append(statuses, click.Status)
		if click.Status == "invalid" {
			assert.Contains(t, click.InvalidReason, "rate limit exceeded")
		}
	}

	assert.Equal(t, []string{"valid", "valid", "valid", "invalid", "invalid"}, statuses)
}

func TestClick_ConcurrentDuplicatesOneValid(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("Acme Media", "acme-race")

	const clients = 4
	var (
		mu     sync.Mutex
		counts = map[string]int{}
		wg     sync.WaitGroup
	)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := env.POST("/track/click", map[string]interface{}{
				"referral_code": "acme-race",
				"fingerprint":   "raced-device",
			}, "")
			defer resp.Body.Close()

			var click struct {
				Status string `json:"status"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&click); err != nil {
				return
			}
			mu.Lock()
			counts[click.Status]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, counts["valid"])
	assert.Equal(t, clients-1, counts["duplicate"])
}

// ─── Click Queries ──────────────────────────────────────────────────────────

func TestClicks_PartnerSeesOnlyOwn(t *testing.T) {
	env := testutil.NewTestEnv(t)
	mine := env.SeedPartner("Mine", "code-mine")
	env.SeedPartner("Theirs", "code-theirs")

	env.RecordClick("code-mine", nil)
	env.RecordClick("code-theirs", nil)

	resp := env.AuthGET("/tracking/clicks", env.PartnerToken(mine))
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Items []struct {
			PartnerID *uuid.UUID `json:"partner_id"`
		} `json:"items"`
		Total int `json:"total"`
	}
	testutil.DecodeJSON(t, resp, &page)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, mine, *page.Items[0].PartnerID)
}

func TestClicks_AdminSeesAll(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("A", "code-a")
	env.SeedPartner("B", "code-b")
	env.RecordClick("code-a", nil)
	env.RecordClick("code-b", nil)

	resp := env.AuthGET("/tracking/clicks", env.AdminToken())
	defer resp.Body.Close()

	var page struct {
		Total int `json:"total"`
	}
	testutil.DecodeJSON(t, resp, &page)
	assert.Equal(t, 2, page.Total)
}

func TestClicks_FilterByStatus(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("Acme", "code-st")

	env.RecordClick("code-st", map[string]interface{}{"fingerprint": "fp-x"})
	env.RecordClick("code-st", map[string]interface{}{"fingerprint": "fp-x"}) // duplicate

	resp := env.AuthGET("/tracking/clicks?status=duplicate", env.AdminToken())
	defer resp.Body.Close()

	var page struct {
		Total int `json:"total"`
	}
	testutil.DecodeJSON(t, resp, &page)
	assert.Equal(t, 1, page.Total)
}

func TestClickStats_Counts(t *testing.T) {
	env := testutil.NewTestEnv(t)
	partnerID := env.SeedPartner("Acme", "code-stats")

	env.RecordClick("code-stats", map[string]interface{}{"fingerprint": "fp-1"})
	env.RecordClick("code-stats", map[string]interface{}{"fingerprint": "fp-1"}) // duplicate
	env.RecordClick("code-stats", map[string]interface{}{"fingerprint": "fp-2"})

	resp := env.AuthGET(fmt.Sprintf("/tracking/clicks/stats?partner_id=%s", partnerID), env.AdminToken())
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats struct {
		Total     int `json:"total"`
		Valid     int `json:"valid"`
		Duplicate int `json:"duplicate"`
	}
	testutil.DecodeJSON(t, resp, &stats)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Valid)
	assert.Equal(t, 1, stats.Duplicate)
}

func TestClick_GetByID_ScopeEnforced(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedPartner("Owner", "code-owner")
	other := env.SeedPartner("Other", "code-other")

	clickID := env.RecordClick("code-owner", nil)

	resp := env.AuthGET("/tracking/clicks/"+clickID.String(), env.PartnerToken(other))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
