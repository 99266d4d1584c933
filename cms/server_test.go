package cms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gagglehome/backend/models"
	"github.com/gagglehome/backend/util/cliutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := cliutil.SetupDatabase("sqlite://:memory:", 1)
	require.NoError(t, err)

	s, err := NewServer(db, Config{
		JWTSigningKey: []byte("test-signing-key"),
		MediaDir:      t.TempDir(),
		PublicURL:     "https://example.com",
	})
	require.NoError(t, err)
	return s
}

// createUser inserts a user directly and returns a bearer token for it.
func createUser(t *testing.T, s *Server, handle string, admin bool) (*models.User, string) {
	t.Helper()

	hashed, err := encodePassword("password1234")
	require.NoError(t, err)

	u := models.User{
		Handle:   handle,
		Email:    handle + "@example.com",
		Password: hashed,
		Admin:    admin,
	}
	require.NoError(t, s.db.Create(&u).Error)

	tok, err := s.createAuthTokenForUser(&u)
	require.NoError(t, err)
	return &u, tok
}

func doRequest(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, "GET", "/_health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeJSON[GenericStatus](t, rec)
	assert.Equal(t, "ok", out.Status)
}

func TestHealthDatabases(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, "GET", "/_health/databases", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeJSON[map[string]any](t, rec)
	assert.Equal(t, "ok", out["status"])
	checks := out["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["database"])
	assert.NotContains(t, checks, "redis")
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, "POST", "/api/v1/signup", "", map[string]any{
		"first_name": "Greta",
		"last_name":  "Goose",
		"email":      "Greta@Example.com",
		"password":   "honk-honk-honk",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decodeJSON[map[string]any](t, rec)
	assert.Equal(t, true, out["success"])
	assert.NotEmpty(t, out["token"])

	user := out["user"].(map[string]any)
	assert.Equal(t, "greta@example.com", user["email"])
	assert.Equal(t, false, user["is_staff"])

	// signup lowercases the email and reuses it as the login handle
	rec = doRequest(t, s, "POST", "/api/v1/login", "", map[string]any{
		"username": "greta@example.com",
		"password": "honk-honk-honk",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, s, "POST", "/api/v1/login", "", map[string]any{
		"username": "greta@example.com",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignupValidation(t *testing.T) {
	s := newTestServer(t)

	for name, body := range map[string]map[string]any{
		"missing fields": {"email": "a@b.com", "password": "longenough"},
		"bad email":      {"first_name": "A", "last_name": "B", "email": "not-an-email", "password": "longenough"},
		"short password": {"first_name": "A", "last_name": "B", "email": "a@b.com", "password": "short"},
	} {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(t, s, "POST", "/api/v1/signup", "", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	s := newTestServer(t)

	body := map[string]any{
		"first_name": "Greta",
		"last_name":  "Goose",
		"email":      "greta@example.com",
		"password":   "honk-honk-honk",
	}
	rec := doRequest(t, s, "POST", "/api/v1/signup", "", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, "POST", "/api/v1/signup", "", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthStatus(t *testing.T) {
	s := newTestServer(t)
	_, tok := createUser(t, s, "admin", true)

	rec := doRequest(t, s, "GET", "/api/v1/auth_status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeJSON[map[string]any](t, rec)
	assert.Equal(t, false, out["authenticated"])

	rec = doRequest(t, s, "GET", "/api/v1/auth_status", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out = decodeJSON[map[string]any](t, rec)
	assert.Equal(t, true, out["authenticated"])
	assert.Equal(t, "admin", out["user"].(map[string]any)["username"])
}

func TestAuthRejectsBadTokens(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, "GET", "/api/v1/auth_status", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("GET", "/api/v1/auth_status", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusUnauthorized, rec2.Code)
}

func TestStaffRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	_, userTok := createUser(t, s, "reader", false)

	for _, tc := range []struct {
		method, path string
	}{
		{"POST", "/api/v1/blog/posts"},
		{"GET", "/api/v1/blog/posts/drafts"},
		{"GET", "/api/v1/blog/posts/all"},
		{"POST", "/api/v1/blog/categories"},
		{"GET", "/api/v1/blog/images"},
	} {
		t.Run(fmt.Sprintf("%s %s", tc.method, tc.path), func(t *testing.T) {
			rec := doRequest(t, s, tc.method, tc.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			rec = doRequest(t, s, tc.method, tc.path, userTok, nil)
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}
}
