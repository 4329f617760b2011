package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/partnerlink/platform/internal/domain"
)

type contextKey string

const (
	claimsKey contextKey = "auth_claims"
	scopeKey  contextKey = "auth_scope"
)

// ClaimsFromContext extracts JWT claims from request context.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

// ScopeFromContext extracts the resolved caller scope from request
// context. Handlers pass it to every query; the zero value allows
// nothing.
func ScopeFromContext(ctx context.Context) domain.CallerScope {
	scope, _ := ctx.Value(scopeKey).(domain.CallerScope)
	return scope
}

// AuthenticateAdmin returns middleware that validates admin JWT tokens.
func AuthenticateAdmin(jwtMgr *JWTManager) func(http.Handler) http.Handler {
	return authenticate(jwtMgr, RealmAdmin)
}

// AuthenticatePartner returns middleware that validates partner JWT
// tokens and checks for suspension.
func AuthenticatePartner(jwtMgr *JWTManager) func(http.Handler) http.Handler {
	return authenticate(jwtMgr, RealmPartner)
}

// AuthenticateAny returns middleware that accepts either realm, for the
// read endpoints shared by admins and partners.
func AuthenticateAny(jwtMgr *JWTManager) func(http.Handler) http.Handler {
	return authenticate(jwtMgr, "")
}

func authenticate(jwtMgr *JWTManager, realm Realm) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := extractAndValidate(r, jwtMgr, realm)
			if err != nil {
				http.Error(w, `{"code":"UNAUTHORIZED","message":"`+err.Error()+`"}`, http.StatusUnauthorized)
				return
			}

			scope, err := resolveScope(claims)
			if err != nil {
				http.Error(w, `{"code":"FORBIDDEN","message":"`+err.Error()+`"}`, http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, scopeKey, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveScope maps validated claims onto the caller scope the core
// consumes. Auth decisions end here; services only see the scope.
func resolveScope(claims *Claims) (domain.CallerScope, error) {
	switch claims.Realm {
	case RealmAdmin:
		return domain.AdminScope(claims.Subject), nil
	case RealmPartner:
		if claims.Status == "suspended" {
			return domain.CallerScope{}, fmt.Errorf("partner account suspended")
		}
		partnerID, err := uuid.Parse(claims.PartnerID)
		if err != nil {
			return domain.CallerScope{}, fmt.Errorf("token carries no partner id")
		}
		return domain.PartnerScope(partnerID, claims.Subject), nil
	default:
		return domain.CallerScope{}, fmt.Errorf("unknown realm %q", claims.Realm)
	}
}

func extractAndValidate(r *http.Request, jwtMgr *JWTManager, realm Realm) (*Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil, fmt.Errorf("invalid Authorization format")
	}

	if realm == "" {
		return jwtMgr.ValidateToken(parts[1])
	}
	return jwtMgr.ValidateTokenForRealm(parts[1], realm)
}
