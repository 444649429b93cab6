package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MirseoDB/mirseodb/internal/engine"
	"github.com/MirseoDB/mirseodb/pkg/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Data.Dir = dir
	cfg.RestAPI.APIToken = ""
	cfg.RateLimit.Enabled = false

	eng, err := engine.CreateDatabase(dir, "testdb", engine.DefaultOptions())
	require.NoError(t, err)

	srv, err := NewServer(eng, cfg)
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// completeSetup walks the bootstrap flow with 2FA skipped.
func completeSetup(t *testing.T, srv *Server) {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/setup/init", map[string]any{"admin_email": "admin@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, srv, http.MethodPost, "/setup/complete", map[string]any{
		"admin_email": "admin@example.com",
		"skip_2fa":    true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

// totpCode computes the RFC 6238 code for a base32 secret at now.
func totpCode(t *testing.T, secret string) string {
	t.Helper()
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	require.NoError(t, err)

	counter := uint64(time.Now().Unix()) / 30
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)
	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)
	offset := sum[len(sum)-1] & 0x0f
	code := (binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff) % 1000000
	return fmt.Sprintf("%06d", code)
}

func TestHealthAndTime(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = doJSON(t, srv, http.MethodGet, "/time", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w), "unix")
}

func TestQueryBeforeSetupIs503(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "SELECT * FROM t"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSetupFlow(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/setup/status", nil)
	assert.Equal(t, false, decode(t, w)["setup_completed"])

	// Init requires a plausible email.
	w = doJSON(t, srv, http.MethodPost, "/setup/init", map[string]any{"admin_email": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/setup/init", map[string]any{"admin_email": "admin@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	secret, _ := resp["secret"].(string)
	require.NotEmpty(t, secret)

	// Complete with a real TOTP code for the enrolled admin.
	w = doJSON(t, srv, http.MethodPost, "/setup/complete", map[string]any{
		"admin_email": "admin@example.com",
		"totp_token":  totpCode(t, secret),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, srv, http.MethodGet, "/setup/status", nil)
	status := decode(t, w)
	assert.Equal(t, true, status["setup_completed"])
	assert.Equal(t, "admin@example.com", status["admin_email"])

	// Re-running setup fails.
	w = doJSON(t, srv, http.MethodPost, "/setup/init", map[string]any{"admin_email": "admin@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryLifecycle(t *testing.T) {
	srv := newTestServer(t)
	completeSetup(t, srv)

	w := doJSON(t, srv, http.MethodPost, "/query", map[string]any{
		"sql": "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR NOT NULL)",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, srv, http.MethodPost, "/query", map[string]any{
		"sql": "INSERT INTO users (id, name) VALUES (1, 'Alice')",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, srv, http.MethodGet, "/query?sql=SELECT+*+FROM+users", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(1), resp["row_count"])
	rows := resp["rows"].([]any)
	row := rows[0].(map[string]any)
	assert.Equal(t, "Alice", row["NAME"])
}

func TestQueryRawSQLBody(t *testing.T) {
	srv := newTestServer(t)
	completeSetup(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader("CREATE TABLE t (a INT)"))
	req.Header.Set("Content-Type", "application/sql")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestQueryErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)
	completeSetup(t, srv)

	// Parse error -> 400.
	w := doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "FROB all the things"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing table -> 404.
	w = doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "SELECT * FROM ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Duplicate PK -> 409.
	doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR NOT NULL)"})
	doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "INSERT INTO users (id, name) VALUES (1, 'A')"})
	w = doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "INSERT INTO users (id, name) VALUES (1, 'B')"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDangerousStatementRequires2FA(t *testing.T) {
	srv := newTestServer(t)
	completeSetup(t, srv)

	doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "CREATE TABLE t (a INT)"})
	doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "INSERT INTO t (a) VALUES (1)"})

	// DELETE without WHERE is gated.
	w := doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "DELETE FROM t"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	resp := decode(t, w)
	assert.Equal(t, true, resp["requires_2fa"])

	// Enroll the instance identity, then retry with a valid code.
	w = doJSON(t, srv, http.MethodPost, "/2fa/setup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	secret := decode(t, w)["secret"].(string)

	w = doJSON(t, srv, http.MethodPost, "/query", map[string]any{
		"sql":       "DELETE FROM t",
		"authtoken": totpCode(t, secret),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Rows are gone.
	w = doJSON(t, srv, http.MethodGet, "/query?sql=SELECT+*+FROM+t", nil)
	assert.Equal(t, float64(0), decode(t, w)["row_count"])

	// A garbage token is rejected.
	doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "INSERT INTO t (a) VALUES (2)"})
	w = doJSON(t, srv, http.MethodPost, "/query", map[string]any{
		"sql":       "DELETE FROM t",
		"authtoken": "000000",
	})
	// One-in-a-million chance this matches the rolling code; accept 403.
	if w.Code != http.StatusOK {
		assert.Equal(t, http.StatusForbidden, w.Code)
	}
}

func TestSQLInjectionSanitizer(t *testing.T) {
	srv := newTestServer(t)
	completeSetup(t, srv)

	doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "CREATE TABLE t (a INT)"})
	doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "INSERT INTO t (a) VALUES (1)"})

	w := doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "SELECT * FROM t WHERE a=1 OR 1=1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, true, resp["sanitized"])
	assert.Equal(t, float64(1), resp["row_count"], "tautology removed, predicate a=1 kept")
}

func TestSanitizerDisabled(t *testing.T) {
	srv := newTestServer(t)
	srv.settings.SQLInjectionProtect = false
	completeSetup(t, srv)

	doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "CREATE TABLE t (a INT)"})

	// With protection off the raw tautology reaches the parser, which
	// rejects the dangling OR.
	w := doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "SELECT * FROM t WHERE a=1 OR 1=1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPermissionDeniedForRestrictedRole(t *testing.T) {
	srv := newTestServer(t)
	completeSetup(t, srv)

	doJSON(t, srv, http.MethodPost, "/query", map[string]any{"sql": "CREATE TABLE t (a INT)"})

	require.NoError(t, srv.authConfig.AddUser(srv.config.Data.Dir, "reader@example.com", "user"))

	// user role may SELECT...
	w := doJSON(t, srv, http.MethodPost, "/query", map[string]any{
		"sql":   "SELECT * FROM t",
		"email": "reader@example.com",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// ...but not DROP.
	w = doJSON(t, srv, http.MethodPost, "/query", map[string]any{
		"sql":   "DROP TABLE t",
		"email": "reader@example.com",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotEqual(t, true, decode(t, w)["requires_2fa"])
}

func TestBearerTokenAuth(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Data.Dir = dir
	cfg.RestAPI.APIToken = "sekrit"
	cfg.RateLimit.Enabled = false

	eng, err := engine.CreateDatabase(dir, "testdb", engine.DefaultOptions())
	require.NoError(t, err)
	srv, err := NewServer(eng, cfg)
	require.NoError(t, err)

	// Health is exempt.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Query without the token is rejected.
	req = httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"sql":"SELECT 1"}`))
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// With the bearer token it reaches the setup gate instead.
	req = httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"sql":"SELECT 1"}`))
	req.Header.Set("Authorization", "Bearer sekrit")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// The body's auth_token field works too.
	req = httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"sql":"SELECT 1","auth_token":"sekrit"}`))
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// Non-query routes still demand the header.
	req = httptest.NewRequest(http.MethodPost, "/2fa/setup", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTwoFactorEndpoints(t *testing.T) {
	srv := newTestServer(t)

	// QR before enrollment fails.
	w := doJSON(t, srv, http.MethodGet, "/2fa/qr", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/2fa/setup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	secret := decode(t, w)["secret"].(string)
	require.NotEmpty(t, secret)

	w = doJSON(t, srv, http.MethodGet, "/2fa/qr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["qr_ascii"])

	// Verify a real code and a bogus one.
	w = doJSON(t, srv, http.MethodPost, "/2fa/verify", map[string]any{"totp_token": totpCode(t, secret)})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["valid"])

	w = doJSON(t, srv, http.MethodPost, "/2fa/verify", map[string]any{"totp_token": "abcdef"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestSanitizeSQLPatterns(t *testing.T) {
	cases := []struct {
		in        string
		sanitized bool
	}{
		{"SELECT * FROM t WHERE a=1 OR 1=1", true},
		{"SELECT * FROM t WHERE name='x' or '1'='1'", true},
		{"SELECT * FROM t WHERE a=1", false},
		{"SELECT * FROM orders", false},
	}
	for _, c := range cases {
		_, changed := SanitizeSQL(c.in)
		assert.Equal(t, c.sanitized, changed, c.in)
	}
}
