package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/api/middleware"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/auth"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-signing-key-with-enough-entropy",
		Issuer:     "legalops-test",
		Audience:   "legalops-api",
	})
}

func TestAuth_ValidToken(t *testing.T) {
	jwtService := newTestJWTService()
	token, _, err := jwtService.GenerateAccessToken("stf_123", auth.RoleAgent)
	require.NoError(t, err)

	var gotStaffID, gotRole string
	handler := middleware.Auth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStaffID = middleware.GetStaffID(r.Context())
		gotRole = middleware.GetStaffRole(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/dsr/requests", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stf_123", gotStaffID)
	assert.Equal(t, auth.RoleAgent, gotRole)
}

func TestAuth_Rejections(t *testing.T) {
	jwtService := newTestJWTService()
	handler := middleware.Auth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantDetail string
	}{
		{"missing header", "", "missing authorization header"},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "invalid authorization header format"},
		{"empty bearer", "Bearer ", "missing bearer token"},
		{"garbage token", "Bearer not.a.token", "invalid access token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/admin/dsr/requests", http.NoBody)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.wantDetail)
		})
	}
}

func TestAuth_RejectsTokenFromOtherService(t *testing.T) {
	other := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "a-completely-different-signing-key",
		Issuer:     "legalops-test",
		Audience:   "legalops-api",
	})
	token, _, err := other.GenerateAccessToken("stf_123", auth.RoleAgent)
	require.NoError(t, err)

	handler := middleware.Auth(newTestJWTService())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/dsr/requests", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	jwtService := newTestJWTService()
	protected := middleware.Auth(jwtService)(
		middleware.RequireRole(auth.RoleAdmin, auth.RoleDPO)(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		),
	)

	tests := []struct {
		role     string
		wantCode int
	}{
		{auth.RoleAdmin, http.StatusOK},
		{auth.RoleDPO, http.StatusOK},
		{auth.RoleAgent, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			token, _, err := jwtService.GenerateAccessToken("stf_123", tt.role)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/v1/admin/dsr/requests/dsr_1/erasure", http.NoBody)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), "insufficient role")
			}
		})
	}
}
