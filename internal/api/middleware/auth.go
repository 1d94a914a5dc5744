package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/api/models"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/auth"
)

// staffClaimsKey is the context key for the authenticated staff claims.
type staffClaimsKey struct{}

// Auth creates authentication middleware that validates staff JWT bearer
// tokens.
func Auth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract bearer token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			// Check for Bearer prefix (case-insensitive)
			const bearerPrefix = "Bearer "
			if len(authHeader) < len(bearerPrefix) ||
				!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				writeUnauthorized(w, r, "invalid authorization header format")
				return
			}

			tokenString := authHeader[len(bearerPrefix):]
			if tokenString == "" {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			// Validate the token
			claims, err := jwtService.ValidateAccessToken(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrAccessTokenExpired):
					writeUnauthorized(w, r, "access token has expired")
				case errors.Is(err, auth.ErrInvalidAccessToken):
					writeUnauthorized(w, r, "invalid access token")
				default:
					writeUnauthorized(w, r, "authentication failed")
				}
				return
			}

			// Add staff claims to context
			ctx := context.WithValue(r.Context(), staffClaimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole creates middleware that rejects authenticated staff whose role
// is not in the allowed set. It must run after Auth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetStaffRole(r.Context())
			if _, ok := allowed[role]; !ok {
				traceID := GetRequestID(r.Context())
				problem := models.NewForbidden(traceID, "insufficient role for this operation")
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeUnauthorized writes a 401 Unauthorized response.
// This is implemented directly here to avoid import cycle with response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := GetRequestID(r.Context())
	problem := models.NewUnauthorized(traceID, detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetStaffID retrieves the authenticated staff member's ID from the context.
// Returns an empty string if not authenticated.
func GetStaffID(ctx context.Context) string {
	if claims, ok := ctx.Value(staffClaimsKey{}).(*auth.StaffClaims); ok {
		return claims.StaffID
	}
	return ""
}

// GetStaffRole retrieves the authenticated staff member's role from the
// context. Returns an empty string if not authenticated.
func GetStaffRole(ctx context.Context) string {
	if claims, ok := ctx.Value(staffClaimsKey{}).(*auth.StaffClaims); ok {
		return claims.Role
	}
	return ""
}
