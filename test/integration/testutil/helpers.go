//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/partnerlink/platform/internal/auth"
)

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	resp, err := http.Get(env.Server.URL + path)
	if err != nil {
		env.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// POST performs a POST request with optional auth token.
func (env *TestEnv) POST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("POST %s: encode: %v", path, err)
		}
	}
	req, err := http.NewRequest("POST", env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("POST %s: new request: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest("GET", env.Server.URL+path, nil)
	if err != nil {
		env.t.Fatalf("AuthGET %s: new request: %v", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("AuthGET %s: %v", path, err)
	}
	return resp
}

// AuthPOST performs an authenticated POST request.
func (env *TestEnv) AuthPOST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.POST(path, body, token)
}

// RawPOST performs a POST request with raw bytes and custom headers.
func (env *TestEnv) RawPOST(path string, body []byte, headers map[string]string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest("POST", env.Server.URL+path, bytes.NewReader(body))
	if err != nil {
		env.t.Fatalf("RawPOST %s: new request: %v", path, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("RawPOST %s: %v", path, err)
	}
	return resp
}

// OPTIONS performs an OPTIONS request.
func (env *TestEnv) OPTIONS(path string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest("OPTIONS", env.Server.URL+path, nil)
	if err != nil {
		env.t.Fatalf("OPTIONS %s: new request: %v", path, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("OPTIONS %s: %v", path, err)
	}
	return resp
}

// AdminToken generates a JWT for the admin realm.
func (env *TestEnv) AdminToken() string {
	env.t.Helper()
	token, err := env.JWTMgr.GenerateToken(auth.RealmAdmin, uuid.New(), "", "")
	if err != nil {
		env.t.Fatalf("AdminToken: %v", err)
	}
	return token
}

// PartnerToken generates a JWT scoped to the given partner.
func (env *TestEnv) PartnerToken(partnerID uuid.UUID) string {
	env.t.Helper()
	token, err := env.JWTMgr.GenerateToken(auth.RealmPartner, partnerID, partnerID.String(), "active")
	if err != nil {
		env.t.Fatalf("PartnerToken: %v", err)
	}
	return token
}

// SeedPartner inserts a partner row and returns its ID.
func (env *TestEnv) SeedPartner(name, referralCode string) uuid.UUID {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	partnerID := uuid.New()
	_, err := env.Pool.Exec(ctx, `
		INSERT INTO partners (id, name, referral_code, status)
		VALUES ($1, $2, $3, 'active')`, partnerID, name, referralCode)
	if err != nil {
		env.t.Fatalf("SeedPartner: %v", err)
	}
	return partnerID
}

// SeedGlobalRatePolicy creates an active global rate policy via the
// admin API and returns its ID.
func (env *TestEnv) SeedGlobalRatePolicy(rate string) uuid.UUID {
	env.t.Helper()
	resp := env.AuthPOST("/admin/policies", map[string]interface{}{
		"policy_type":     "global",
		"commission_type": "rate",
		"rate":            rate,
		"is_active":       true,
	}, env.AdminToken())
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		env.t.Fatalf("SeedGlobalRatePolicy: expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		env.t.Fatalf("SeedGlobalRatePolicy: decode: %v", err)
	}
	return result.ID
}

// RecordClick posts a click through the public tracking endpoint and
// returns the created click's ID.
func (env *TestEnv) RecordClick(referralCode string, extra map[string]interface{}) uuid.UUID {
	env.t.Helper()
	body := map[string]interface{}{"referral_code": referralCode}
	for k, v := range extra {
		body[k] = v
	}

	resp := env.POST("/track/click", body, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("RecordClick: expected 201, got %d", resp.StatusCode)
	}

	var result struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		env.t.Fatalf("RecordClick: decode: %v", err)
	}
	return result.ID
}

// BackdateClick moves a click's created_at into the past, for
// attribution window tests.
func (env *TestEnv) BackdateClick(clickID uuid.UUID, age time.Duration) {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := env.Pool.Exec(ctx,
		"UPDATE clicks SET created_at = now() - $2::interval WHERE id = $1",
		clickID, fmt.Sprintf("%d seconds", int(age.Seconds())))
	if err != nil {
		env.t.Fatalf("BackdateClick: %v", err)
	}
}

// FakeUUID returns a random UUID string for test placeholders.
func FakeUUID() string {
	return uuid.New().String()
}
