package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igmrrf/bugrelay-sub004/pkg/auth"
	"github.com/igmrrf/bugrelay-sub004/pkg/httputil"
	"github.com/igmrrf/bugrelay-sub004/pkg/observability"
	"github.com/igmrrf/bugrelay-sub004/pkg/revocation"
)

const guardTestSecret = "guard-test-secret-key-32-bytes-x"

// memLedger is an in-memory ledger; failWith forces the unavailable path.
type memLedger struct {
	mu       sync.Mutex
	revoked  map[string]bool
	failWith error
}

func newMemLedger() *memLedger {
	return &memLedger{revoked: make(map[string]bool)}
}

func (m *memLedger) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = true
	return nil
}

func (m *memLedger) Burn(ctx context.Context, jti, userID string, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked[jti] {
		return false, nil
	}
	m.revoked[jti] = true
	return true, nil
}

func (m *memLedger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	return m.revoked[jti], nil
}

func (m *memLedger) RevokeAllForUser(ctx context.Context, userID string, window time.Duration) error {
	return nil
}

func (m *memLedger) IsUserRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	return false, nil
}

func newTestGuard(t *testing.T) (*Guard, *auth.Service, *memLedger) {
	t.Helper()

	issuer, err := auth.NewIssuer(guardTestSecret, 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)

	ledger := newMemLedger()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	service := auth.NewService(issuer, auth.NewPasswordHasher(), ledger, logger, nil)

	return NewGuard(service, logger), service, ledger
}

func okHandler(claims **auth.Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims != nil {
			*claims = ClaimsFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env httputil.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

func TestRequireAuth_BearerHeader(t *testing.T) {
	guard, service, _ := newTestGuard(t)

	access, _, err := service.IssueForCredentials("u1", "dev@example.com", false)
	require.NoError(t, err)

	var claims *auth.Claims
	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	guard.RequireAuth(okHandler(&claims)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "u1", claims.UserID)
}

func TestRequireAuth_CookieFallback(t *testing.T) {
	guard, service, _ := newTestGuard(t)

	access, _, err := service.IssueForCredentials("u1", "dev@example.com", false)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: access})
	rec := httptest.NewRecorder()
	guard.RequireAuth(okHandler(nil)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	guard, _, _ := newTestGuard(t)

	rec := httptest.NewRecorder()
	guard.RequireAuth(okHandler(nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "MISSING_TOKEN", errorCode(t, rec))
}

func TestRequireAuth_MalformedToken(t *testing.T) {
	guard, _, _ := newTestGuard(t)

	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	guard.RequireAuth(okHandler(nil)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, rec))
}

func TestRequireAuth_RevokedToken(t *testing.T) {
	guard, service, _ := newTestGuard(t)

	access, _, err := service.IssueForCredentials("u1", "dev@example.com", false)
	require.NoError(t, err)
	require.NoError(t, service.Revoke(context.Background(), access))

	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	guard.RequireAuth(okHandler(nil)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", errorCode(t, rec))
}

func TestRequireAuth_RefreshTokenRejected(t *testing.T) {
	guard, service, _ := newTestGuard(t)

	_, refresh, err := service.IssueForCredentials("u1", "dev@example.com", false)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.Header.Set("Authorization", "Bearer "+refresh)
	rec := httptest.NewRecorder()
	guard.RequireAuth(okHandler(nil)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, rec))
}

func TestRequireAuth_StoreOutageAnswers503(t *testing.T) {
	guard, service, ledger := newTestGuard(t)

	access, _, err := service.IssueForCredentials("u1", "dev@example.com", false)
	require.NoError(t, err)

	ledger.failWith = revocation.ErrUnavailable

	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	guard.RequireAuth(okHandler(nil)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "AUTH_BACKEND_UNAVAILABLE", errorCode(t, rec))
}

func TestRequireAdmin(t *testing.T) {
	guard, service, _ := newTestGuard(t)

	adminAccess, _, err := service.IssueForCredentials("admin", "root@example.com", true)
	require.NoError(t, err)
	userAccess, _, err := service.IssueForCredentials("u1", "dev@example.com", false)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.Header.Set("Authorization", "Bearer "+adminAccess)
	rec := httptest.NewRecorder()
	guard.RequireAdmin(okHandler(nil)).ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)

	r = httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.Header.Set("Authorization", "Bearer "+userAccess)
	rec = httptest.NewRecorder()
	guard.RequireAdmin(okHandler(nil)).ServeHTTP(rec, r)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ADMIN_REQUIRED", errorCode(t, rec))
}

func TestClaimsFromContext_Unguarded(t *testing.T) {
	assert.Nil(t, ClaimsFromContext(context.Background()))
}
