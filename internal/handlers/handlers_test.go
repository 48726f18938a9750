package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytesecuritas/sensi-back/internal/authz"
	"github.com/bytesecuritas/sensi-back/internal/config"
	"github.com/bytesecuritas/sensi-back/internal/handlers"
	"github.com/bytesecuritas/sensi-back/internal/metrics"
	"github.com/bytesecuritas/sensi-back/internal/models"
	"github.com/bytesecuritas/sensi-back/internal/repository/memory"
	"github.com/bytesecuritas/sensi-back/internal/security"
	"github.com/bytesecuritas/sensi-back/internal/server"
	"github.com/bytesecuritas/sensi-back/internal/service"
)

type api struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
	tokens  *security.TokenIssuer
	metrics *metrics.Metrics
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	tokens, err := security.NewTokenIssuer("access-secret", "refresh-secret")
	require.NoError(t, err)

	log := zerolog.Nop()
	m := metrics.New()
	engine := authz.NewEngine(store, store, log)
	auth := service.NewAuthService(store, store, tokens, nil, m, log)

	_, err = auth.BootstrapSuperadmin(context.Background(), service.RegisterInput{
		Email: "root@sensi.test", Password: "rootpassword", Nom: "Root", Prenom: "Admin",
	})
	require.NoError(t, err)

	set := handlers.NewHandlerSet(log, handlers.Dependencies{
		Auth:          auth,
		Users:         service.NewUserService(store, log),
		Organisations: service.NewOrganisationService(store, log),
		Learning:      service.NewLearningService(store, store, engine, log),
		Tokens:        tokens,
		Engine:        engine,
		Metrics:       m,
		Environment:   "test",
	})

	return &api{
		t:       t,
		handler: server.NewEngine(&config.AppConfig{Environment: "test"}, log, m, set),
		store:   store,
		tokens:  tokens,
		metrics: m,
	}
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *api) login(email, password string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(a.t, rec)["access_token"].(string)
}

func (a *api) register(token string, body gin.H) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/auth/register", token, body)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(a.t, rec)["id"].(string)
}

func TestAcmeScenario(t *testing.T) {
	a := newAPI(t)
	root := a.login("root@sensi.test", "rootpassword")

	rec := a.do(http.MethodPost, "/organisations", root, gin.H{"nom": "Acme", "type": "entreprise", "code_pays": "fr"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	org := decode(t, rec)
	acmeID := org["id"].(string)
	assert.Equal(t, "FR", org["code_pays"])

	rec = a.do(http.MethodPost, "/auth/register", root, gin.H{
		"email": "a@acme.test", "password": "password123", "nom": "Admin", "prenom": "Acme",
		"age": 40, "role": "admin", "organisation_id": acmeID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")
	adminID := decode(t, rec)["id"].(string)

	admin := a.login("a@acme.test", "password123")

	rec = a.do(http.MethodPost, "/auth/register", admin, gin.H{
		"email": "b@acme.test", "password": "password123", "nom": "B", "prenom": "B",
		"age": 30, "role": "admin", "organisation_id": acmeID,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "admin_cannot_create_peer", decode(t, rec)["reason"])

	userID := a.register(admin, gin.H{
		"email": "u@acme.test", "password": "password123", "nom": "U", "prenom": "U",
		"age": 25, "role": "user", "organisation_id": acmeID,
	})
	user := a.login("u@acme.test", "password123")

	rec = a.do(http.MethodGet, "/users/"+adminID, user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not_owner", decode(t, rec)["reason"])

	rec = a.do(http.MethodGet, "/users/"+userID, user, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodPost, "/auth/register", user, gin.H{
		"email": "x@acme.test", "password": "password123", "nom": "X", "prenom": "X",
		"age": 20, "role": "user", "organisation_id": acmeID,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "role_not_permitted", decode(t, rec)["reason"])

	rec = a.do(http.MethodDelete, "/organisations/"+acmeID, root, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invariant_violation", decode(t, rec)["reason"])

	rec = a.do(http.MethodGet, "/organisations/"+acmeID+"/stats", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)
	assert.EqualValues(t, 2, stats["total_users"])
	assert.EqualValues(t, 1, stats["admins"])
}

func TestRegisterValidation(t *testing.T) {
	a := newAPI(t)
	root := a.login("root@sensi.test", "rootpassword")

	rec := a.do(http.MethodPost, "/auth/register", root, gin.H{
		"email": "nobody@sensi.test", "password": "password123", "nom": "N", "prenom": "N",
		"age": 20, "role": "user",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "organisation_id", decode(t, rec)["field"])

	rec = a.do(http.MethodPost, "/auth/register", root, gin.H{
		"email": "root@sensi.test", "password": "password123", "nom": "N", "prenom": "N",
		"age": 20, "role": "superadmin",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/auth/register", root, gin.H{
		"email": "short@sensi.test", "password": "short", "nom": "N", "prenom": "N",
		"age": 20, "role": "superadmin",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password", decode(t, rec)["field"])
}

func TestAuthenticationFailures(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]any{"error": "unauthorized"}, decode(t, rec))

	rec = a.do(http.MethodPost, "/auth/login", "", gin.H{"email": "root@sensi.test", "password": "wrongpassword"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = a.do(http.MethodPost, "/auth/login", "", gin.H{"email": "ghost@sensi.test", "password": "wrongpassword"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, "/auth/login", "", gin.H{"email": "root@sensi.test", "password": "rootpassword"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	refresh := body["refresh_token"].(string)

	rec = a.do(http.MethodGet, "/auth/profile", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	access := decode(t, rec)["access_token"].(string)

	rec = a.do(http.MethodGet, "/auth/profile", access, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": access})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	a := newAPI(t)

	for name, body := range map[string]gin.H{
		"missing email":  {"password": "rootpassword"},
		"not an email":   {"email": "root", "password": "rootpassword"},
		"short password": {"email": "root@sensi.test", "password": "root"},
		"empty password": {"email": "root@sensi.test", "password": ""},
	} {
		rec := a.do(http.MethodPost, "/auth/login", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.Equal(t, "body", decode(t, rec)["field"], name)
	}
}

func TestPasswordChangeIsSelfOnly(t *testing.T) {
	a := newAPI(t)
	root := a.login("root@sensi.test", "rootpassword")

	rec := a.do(http.MethodPost, "/organisations", root, gin.H{"nom": "Acme", "code_pays": "FR"})
	require.Equal(t, http.StatusCreated, rec.Code)
	acmeID := decode(t, rec)["id"].(string)

	a.register(root, gin.H{
		"email": "a@acme.test", "password": "password123", "nom": "A", "prenom": "A",
		"age": 40, "role": "admin", "organisation_id": acmeID,
	})
	userID := a.register(root, gin.H{
		"email": "u@acme.test", "password": "password123", "nom": "U", "prenom": "U",
		"age": 20, "role": "user", "organisation_id": acmeID,
	})
	admin := a.login("a@acme.test", "password123")
	user := a.login("u@acme.test", "password123")

	path := "/users/" + userID + "/password"
	rec = a.do(http.MethodPut, path, admin, gin.H{"current_password": "password123", "new_password": "newpassword1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPut, path, user, gin.H{"current_password": "wrongpassword", "new_password": "newpassword1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPut, path, user, gin.H{"current_password": "password123", "new_password": "newpassword1"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	a.login("u@acme.test", "newpassword1")
}

func TestSelfUpdateCannotEscalate(t *testing.T) {
	a := newAPI(t)
	root := a.login("root@sensi.test", "rootpassword")

	rec := a.do(http.MethodPost, "/organisations", root, gin.H{"nom": "Acme", "code_pays": "FR"})
	require.Equal(t, http.StatusCreated, rec.Code)
	acmeID := decode(t, rec)["id"].(string)

	userID := a.register(root, gin.H{
		"email": "u@acme.test", "password": "password123", "nom": "U", "prenom": "U",
		"age": 20, "role": "user", "organisation_id": acmeID,
	})
	user := a.login("u@acme.test", "password123")

	rec = a.do(http.MethodPut, "/users/"+userID, user, gin.H{"role": "superadmin"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPut, "/users/"+userID, user, gin.H{"prenom": "Ursula", "age": 21})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Ursula", body["prenom"])
	assert.Equal(t, "user", body["role"])

	rec = a.do(http.MethodGet, "/users", user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodDelete, "/users/"+userID, user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodDelete, "/users/"+userID, root, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(http.MethodGet, "/users/"+userID, root, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrganisationScopedRoutes(t *testing.T) {
	a := newAPI(t)
	root := a.login("root@sensi.test", "rootpassword")

	ids := map[string]string{}
	for _, name := range []string{"Acme", "Globex"} {
		rec := a.do(http.MethodPost, "/organisations", root, gin.H{"nom": name, "code_pays": "FR"})
		require.Equal(t, http.StatusCreated, rec.Code)
		ids[name] = decode(t, rec)["id"].(string)
	}

	a.register(root, gin.H{
		"email": "a@acme.test", "password": "password123", "nom": "A", "prenom": "A",
		"age": 40, "role": "admin", "organisation_id": ids["Acme"],
	})
	userID := a.register(root, gin.H{
		"email": "u@acme.test", "password": "password123", "nom": "U", "prenom": "U",
		"age": 20, "role": "user", "organisation_id": ids["Acme"],
	})
	admin := a.login("a@acme.test", "password123")

	rec := a.do(http.MethodGet, "/organisations/"+ids["Acme"]+"/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 2)

	rec = a.do(http.MethodGet, "/organisations/"+ids["Globex"]+"/users", admin, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodGet, "/organisations", admin, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodDelete, "/organisations/"+ids["Acme"]+"/users/"+userID, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(http.MethodPatch, "/organisations/"+ids["Globex"], root, gin.H{"date_creation": "2999-01-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "date_creation", decode(t, rec)["field"])

	rec = a.do(http.MethodDelete, "/organisations/"+ids["Globex"], root, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLearningAccess(t *testing.T) {
	a := newAPI(t)
	root := a.login("root@sensi.test", "rootpassword")
	a.store.PutLearningPath(models.LearningPath{ID: "p1", Title: "Phishing", TargetAudience: models.TargetAudienceTous})
	a.store.PutLearningPath(models.LearningPath{ID: "p2", Title: "Passwords", TargetAudience: models.TargetAudienceTous})

	rec := a.do(http.MethodPost, "/organisations", root, gin.H{"nom": "Acme", "code_pays": "FR"})
	require.Equal(t, http.StatusCreated, rec.Code)
	acmeID := decode(t, rec)["id"].(string)

	a.register(root, gin.H{
		"email": "u@acme.test", "password": "password123", "nom": "U", "prenom": "U",
		"age": 20, "role": "user", "organisation_id": acmeID,
	})
	user := a.login("u@acme.test", "password123")

	assoc := "/learning/organisations/" + acmeID + "/parcours/p1"
	rec = a.do(http.MethodPost, assoc, user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(http.MethodPost, assoc, root, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = a.do(http.MethodPost, assoc, root, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = a.do(http.MethodPost, "/learning/organisations/"+acmeID+"/parcours/missing", root, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodGet, "/learning/access/check/p1", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["has_access"])

	rec = a.do(http.MethodGet, "/learning/access/check/p2", user, nil)
	assert.Equal(t, false, decode(t, rec)["has_access"])

	rec = a.do(http.MethodGet, "/learning/access/check/p1", root, nil)
	assert.Equal(t, false, decode(t, rec)["has_access"])

	rec = a.do(http.MethodGet, "/learning/parcours/user/available", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 1)

	rec = a.do(http.MethodGet, "/learning/parcours/user/available", root, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodDelete, assoc, root, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(http.MethodGet, "/learning/access/check/p1", user, nil)
	assert.Equal(t, false, decode(t, rec)["has_access"])
}

func TestProfileStats(t *testing.T) {
	a := newAPI(t)
	root := a.login("root@sensi.test", "rootpassword")

	rec := a.do(http.MethodGet, "/auth/profile", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rootID := decode(t, rec)["user"].(map[string]any)["id"].(string)

	a.store.RecordProgress(rootID, models.PathProgress{LearningPathID: "p1", Title: "Phishing", ModulesTotal: 2, ModulesCompleted: 2, TimeSpentMinutes: 30})
	a.store.RecordProgress(rootID, models.PathProgress{LearningPathID: "p2", Title: "Passwords", ModulesTotal: 3, ModulesCompleted: 1, TimeSpentMinutes: 15})
	a.store.AwardCertificate(rootID)

	rec = a.do(http.MethodGet, "/auth/profile", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)["stats"].(map[string]any)
	assert.EqualValues(t, 2, stats["total_paths"])
	assert.EqualValues(t, 1, stats["completed_paths"])
	assert.EqualValues(t, 45, stats["total_time_minutes"])
	assert.EqualValues(t, 1, stats["certificates"])
}

func TestHealthAndMetrics(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	a.login("root@sensi.test", "rootpassword")

	rec = a.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sensi_login_attempts_total")
}

func TestHealthReportsFailingCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	set := handlers.NewHandlerSet(zerolog.Nop(), handlers.Dependencies{
		HealthChecks: []handlers.HealthCheck{{
			Name: "database",
			Ping: func(context.Context) error { return assert.AnError },
		}},
	})
	router := gin.New()
	router.GET("/healthz", set.Health)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"database": "error"}, body["checks"])
}
