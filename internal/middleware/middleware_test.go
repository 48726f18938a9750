package middleware_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytesecuritas/sensi-back/internal/authz"
	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/metrics"
	"github.com/bytesecuritas/sensi-back/internal/middleware"
	"github.com/bytesecuritas/sensi-back/internal/models"
	"github.com/bytesecuritas/sensi-back/internal/repository/memory"
	"github.com/bytesecuritas/sensi-back/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errs.Unauthenticated(), http.StatusUnauthorized},
		{errs.Forbidden(errs.ReasonNotOwner, "no"), http.StatusForbidden},
		{errs.NotFound("user", "1"), http.StatusNotFound},
		{errs.Conflict("dup"), http.StatusConflict},
		{errs.Invalid("email", "bad"), http.StatusBadRequest},
		{errs.Invariant("last admin"), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", errs.NotFound("organisation", "2")), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, middleware.StatusOf(tc.err), tc.err.Error())
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	router := gin.New()
	router.GET("/boom", func(c *gin.Context) {
		middleware.WriteError(c, zerolog.Nop(), errors.New("connection refused to 10.0.0.3"))
	})
	router.GET("/field", func(c *gin.Context) {
		middleware.WriteError(c, zerolog.Nop(), errs.Invalid("age", "age must not be negative"))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal_server_error"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/field", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bad_request", body["error"])
	assert.Equal(t, "validation", body["reason"])
	assert.Equal(t, "age", body["field"])
}

func newGuardedRouter(t *testing.T, policies authz.PolicyTable, m *metrics.Metrics, outer ...gin.HandlerFunc) (*gin.Engine, *security.TokenIssuer) {
	t.Helper()

	tokens, err := security.NewTokenIssuer("access", "refresh")
	require.NoError(t, err)
	store := memory.NewStore()
	engine := authz.NewEngine(store, store, zerolog.Nop())

	router := gin.New()
	router.Use(outer...)
	guarded := router.Group("")
	guarded.Use(
		middleware.Auth(tokens, zerolog.Nop()),
		middleware.Authorize(policies, engine, m, zerolog.Nop()),
	)
	handler := func(c *gin.Context) {
		caller := middleware.CallerFrom(c)
		c.JSON(http.StatusOK, gin.H{"subject": caller.SubjectID})
	}
	guarded.GET("/users/:id", handler)
	guarded.GET("/unlisted", handler)
	return router, tokens
}

func bearer(t *testing.T, tokens *security.TokenIssuer, subject string, role models.UserRole) string {
	t.Helper()
	pair, err := tokens.Issue(security.Identity{SubjectID: subject, Email: subject + "@sensi.test", Role: string(role)})
	require.NoError(t, err)
	return "Bearer " + pair.AccessToken
}

func get(router http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthRejectsMissingAndMalformedTokens(t *testing.T) {
	router, tokens := newGuardedRouter(t, authz.DefaultPolicies(), nil)

	for _, auth := range []string{"", "Token abc", "Bearer not-a-jwt"} {
		rec := get(router, "/users/u1", auth)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, auth)
		assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
	}

	pair, err := tokens.Issue(security.Identity{SubjectID: "u1", Role: "user"})
	require.NoError(t, err)
	rec := get(router, "/users/u1", "Bearer "+pair.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthorizeAppliesRoutePolicy(t *testing.T) {
	m := metrics.New()
	router, tokens := newGuardedRouter(t, authz.DefaultPolicies(), m)

	rec := get(router, "/users/u1", bearer(t, tokens, "u1", models.UserRoleUser))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"subject":"u1"}`, rec.Body.String())

	rec = get(router, "/users/u2", bearer(t, tokens, "u1", models.UserRoleUser))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = get(router, "/users/u2", bearer(t, tokens, "a1", models.UserRoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(router, "/users/u2", bearer(t, tokens, "x1", models.UserRole("auditor")))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = get(m.Handler(), "/metrics", "")
	assert.Contains(t, rec.Body.String(), `sensi_authorization_decisions_total{reason="not_owner",result="denied"} 1`)
	assert.Contains(t, rec.Body.String(), `sensi_authorization_decisions_total{reason="",result="allowed"} 2`)
}

func TestAuthorizeFailsClosedWithoutPolicy(t *testing.T) {
	router, tokens := newGuardedRouter(t, authz.DefaultPolicies(), nil)

	rec := get(router, "/unlisted", bearer(t, tokens, "root", models.UserRoleSuperAdmin))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestIDKeepsWellFormedInboundID(t *testing.T) {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, middleware.RequestIDFrom(c)) })

	cases := map[string]bool{
		"gw-7f3a:1.2_x":          true,
		"":                       false,
		"has space":              false,
		"<script>":               false,
		strings.Repeat("a", 129): false,
	}

	for inbound, kept := range cases {
		req := httptest.NewRequest(http.MethodGet, "/id", nil)
		if inbound != "" {
			req.Header.Set("X-Request-Id", inbound)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		id := rec.Header().Get("X-Request-Id")
		assert.Equal(t, id, rec.Body.String(), inbound)
		if kept {
			assert.Equal(t, inbound, id)
		} else {
			assert.NotEqual(t, inbound, id)
			_, err := uuid.Parse(id)
			assert.NoError(t, err, inbound)
		}
	}
}

func TestRecoveryRendersInternalError(t *testing.T) {
	var buf bytes.Buffer
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Recovery(zerolog.New(&buf)))
	router.GET("/panic", func(*gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))
	assert.JSONEq(t, `{"error":"internal_server_error"}`, rec.Body.String())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "panic recovered: boom", entry["error"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.NotEmpty(t, entry["stack"])
}

func TestLoggerTagsCallerAndDenialReason(t *testing.T) {
	var buf bytes.Buffer
	router, tokens := newGuardedRouter(t, authz.DefaultPolicies(), nil,
		middleware.RequestID(), middleware.Logger(zerolog.New(&buf)))

	lastEntry := func() map[string]any {
		t.Helper()
		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		var entry map[string]any
		require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
		return entry
	}

	get(router, "/users/u1", bearer(t, tokens, "u1", models.UserRoleUser))
	entry := lastEntry()
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "u1", entry["subject_id"])
	assert.Equal(t, "user", entry["role"])
	assert.Equal(t, "/users/:id", entry["route"])
	assert.NotContains(t, entry, "reason")

	get(router, "/users/u2", bearer(t, tokens, "u1", models.UserRoleUser))
	entry = lastEntry()
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, float64(http.StatusForbidden), entry["status"])
	assert.Equal(t, "not_owner", entry["reason"])

	get(router, "/users/u1", "")
	entry = lastEntry()
	assert.NotContains(t, entry, "subject_id")
	assert.Equal(t, float64(http.StatusUnauthorized), entry["status"])
}

func TestCORSPreflight(t *testing.T) {
	router := gin.New()
	router.Use(middleware.CORS([]string{"https://app.sensi.test/"}, authz.DefaultPolicies()))
	router.GET("/users", func(c *gin.Context) { c.Status(http.StatusOK) })

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/users", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := preflight("https://app.sensi.test")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.sensi.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "DELETE, GET, OPTIONS, PATCH, POST, PUT", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = preflight("https://evil.test")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Origin", "https://app.sensi.test")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "X-Request-Id", rec.Header().Get("Access-Control-Expose-Headers"))

	req = httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
