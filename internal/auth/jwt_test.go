package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTManager() *JWTManager {
	return NewJWTManager("test-secret-key", 8*time.Hour, 12*time.Hour)
}

func TestGenerateAndValidateAdminToken(t *testing.T) {
	mgr := newTestJWTManager()
	adminID := uuid.New()

	token, err := mgr.GenerateToken(RealmAdmin, adminID, "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := mgr.ValidateTokenForRealm(token, RealmAdmin)
	require.NoError(t, err)
	assert.Equal(t, adminID.String(), claims.Subject)
	assert.Equal(t, RealmAdmin, claims.Realm)
}

func TestGenerateAndValidatePartnerToken(t *testing.T) {
	mgr := newTestJWTManager()
	partnerID := uuid.New()

	token, err := mgr.GenerateToken(RealmPartner, partnerID, partnerID.String(), "active")
	require.NoError(t, err)

	claims, err := mgr.ValidateTokenForRealm(token, RealmPartner)
	require.NoError(t, err)
	assert.Equal(t, RealmPartner, claims.Realm)
	assert.Equal(t, partnerID.String(), claims.PartnerID)
	assert.Equal(t, "active", claims.Status)
}

func TestRealmMismatchRejected(t *testing.T) {
	mgr := newTestJWTManager()
	partnerID := uuid.New()

	token, err := mgr.GenerateToken(RealmPartner, partnerID, partnerID.String(), "active")
	require.NoError(t, err)

	_, err = mgr.ValidateTokenForRealm(token, RealmAdmin)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected realm admin")
}

func TestInvalidSecretRejected(t *testing.T) {
	mgr1 := NewJWTManager("secret-1", 8*time.Hour, 12*time.Hour)
	mgr2 := NewJWTManager("secret-2", 8*time.Hour, 12*time.Hour)

	token, err := mgr1.GenerateToken(RealmAdmin, uuid.New(), "", "")
	require.NoError(t, err)

	_, err = mgr2.ValidateToken(token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	mgr := NewJWTManager("secret", 1*time.Millisecond, 1*time.Millisecond)

	token, err := mgr.GenerateToken(RealmAdmin, uuid.New(), "", "")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = mgr.ValidateToken(token)
	assert.Error(t, err)
}

func TestResolveScope(t *testing.T) {
	t.Run("admin sees everything", func(t *testing.T) {
		scope, err := resolveScope(&Claims{Realm: RealmAdmin})
		require.NoError(t, err)
		assert.True(t, scope.All)
	})

	t.Run("partner pinned to own id", func(t *testing.T) {
		partnerID := uuid.New()
		scope, err := resolveScope(&Claims{Realm: RealmPartner, PartnerID: partnerID.String(), Status: "active"})
		require.NoError(t, err)
		assert.False(t, scope.All)
		assert.Equal(t, partnerID, scope.PartnerID)
	})

	t.Run("suspended partner rejected", func(t *testing.T) {
		_, err := resolveScope(&Claims{Realm: RealmPartner, PartnerID: uuid.New().String(), Status: "suspended"})
		assert.Error(t, err)
	})

	t.Run("partner token without partner id rejected", func(t *testing.T) {
		_, err := resolveScope(&Claims{Realm: RealmPartner})
		assert.Error(t, err)
	})
}
