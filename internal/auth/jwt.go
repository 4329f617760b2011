package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Realm identifies the JWT authentication realm.
type Realm string

const (
	RealmAdmin   Realm = "admin"
	RealmPartner Realm = "partner"
)

// Claims holds the custom JWT claims for both realms. Partner tokens
// carry the partner id; admin tokens see everything.
type Claims struct {
	jwt.RegisteredClaims
	Realm     Realm  `json:"realm"`
	PartnerID string `json:"partner_id,omitempty"`
	Status    string `json:"status,omitempty"` // partner realm: active, suspended
}

// JWTManager validates tokens for both realms. Issuance lives in the
// external auth service; GenerateToken exists for the test suite and
// local tooling, signing with the same shared secret.
type JWTManager struct {
	secret        []byte
	adminExpiry   time.Duration
	partnerExpiry time.Duration
}

// NewJWTManager creates a JWT manager with realm-specific expiry durations.
func NewJWTManager(secret string, adminExpiry, partnerExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:        []byte(secret),
		adminExpiry:   adminExpiry,
		partnerExpiry: partnerExpiry,
	}
}

// GenerateToken creates a signed JWT for the given realm and subject.
func (m *JWTManager) GenerateToken(realm Realm, subjectID uuid.UUID, partnerID, status string) (string, error) {
	var expiry time.Duration
	switch realm {
	case RealmAdmin:
		expiry = m.adminExpiry
	case RealmPartner:
		expiry = m.partnerExpiry
	default:
		return "", fmt.Errorf("unknown realm: %s", realm)
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			ID:        uuid.New().String(),
		},
		Realm:     realm,
		PartnerID: partnerID,
		Status:    status,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates a JWT, returning claims if valid.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// ValidateTokenForRealm validates a token and ensures it belongs to the expected realm.
func (m *JWTManager) ValidateTokenForRealm(tokenString string, expectedRealm Realm) (*Claims, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Realm != expectedRealm {
		return nil, fmt.Errorf("expected realm %s, got %s", expectedRealm, claims.Realm)
	}
	return claims, nil
}
