package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/auth"
)

// =============================================================================
// TOKENS
// =============================================================================

func TestIssueAndParse_RoundTrip(t *testing.T) {
	svc := auth.NewService("test-secret", time.Hour)

	token, err := svc.Issue("emp-1", "employee")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", claims.EmployeeID)
	assert.Equal(t, "employee", claims.Role)
	assert.False(t, claims.IsAdmin())
}

func TestParse_WrongSecret_Rejected(t *testing.T) {
	token, err := auth.NewService("secret-a", time.Hour).Issue("emp-1", "employee")
	require.NoError(t, err)

	_, err = auth.NewService("secret-b", time.Hour).Parse(token)
	assert.Error(t, err)
}

func TestParse_Expired_Rejected(t *testing.T) {
	svc := auth.NewService("test-secret", -time.Minute)

	token, err := svc.Issue("emp-1", "employee")
	require.NoError(t, err)

	_, err = svc.Parse(token)
	assert.Error(t, err)
}

func TestParse_Garbage_Rejected(t *testing.T) {
	svc := auth.NewService("test-secret", time.Hour)

	_, err := svc.Parse("not-a-token")
	assert.Error(t, err)
}

func TestClaims_IsAdmin(t *testing.T) {
	svc := auth.NewService("test-secret", time.Hour)

	token, err := svc.Issue("admin-1", "admin")
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
}

// =============================================================================
// PASSWORDS
// =============================================================================

func TestPassword_HashAndCheck(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.True(t, auth.CheckPassword(hash, "hunter2"))
	assert.False(t, auth.CheckPassword(hash, "hunter3"))
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func okHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		require.True(t, ok, "claims must be in context behind middleware")
		w.Write([]byte(claims.EmployeeID))
	})
}

func TestMiddleware_ValidToken_InjectsClaims(t *testing.T) {
	svc := auth.NewService("test-secret", time.Hour)
	token, err := svc.Issue("emp-1", "employee")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	svc.Middleware(okHandler(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "emp-1", rec.Body.String())
}

func TestMiddleware_MissingHeader_Unauthorized(t *testing.T) {
	svc := auth.NewService("test-secret", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	svc.Middleware(okHandler(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_BadToken_Unauthorized(t *testing.T) {
	svc := auth.NewService("test-secret", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()

	svc.Middleware(okHandler(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin_EmployeeToken_Forbidden(t *testing.T) {
	svc := auth.NewService("test-secret", time.Hour)
	token, err := svc.Issue("emp-1", "employee")
	require.NoError(t, err)

	handler := svc.Middleware(auth.RequireAdmin(okHandler(t)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAdmin_AdminToken_Allowed(t *testing.T) {
	svc := auth.NewService("test-secret", time.Hour)
	token, err := svc.Issue("admin-1", "admin")
	require.NoError(t, err)

	handler := svc.Middleware(auth.RequireAdmin(okHandler(t)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
