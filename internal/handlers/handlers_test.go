package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ataryouth/internal/config"
	"ataryouth/internal/media/imaging"
	"ataryouth/internal/middleware"
	"ataryouth/internal/models"
	"ataryouth/internal/repository/repotest"
	"ataryouth/internal/security"
	"ataryouth/internal/service"
	"ataryouth/internal/storage"
	"ataryouth/internal/tasks"
	"ataryouth/internal/validation"
)

var registerRulesOnce sync.Once

type testEnv struct {
	router *gin.Engine
	users  *repotest.Users
	tokens *security.TokenIssuer
	cfg    *config.AppConfig
}

func newTestEnv(t *testing.T, health HealthChecks) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registerRulesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		require.True(t, ok)
		require.NoError(t, validation.RegisterRules(v))
	})

	cfg := &config.AppConfig{
		Environment: "test",
		HTTP:        config.HTTPConfig{MaxUploadBytes: 5 << 20},
		Storage:     config.StorageConfig{TmpDir: t.TempDir()},
		Auth:        config.AuthConfig{RegistrationStatus: "active"},
	}

	store, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "uploads"), "/uploads")
	require.NoError(t, err)
	users := repotest.NewUsers()
	tokens := security.NewTokenIssuer("handler-secret", time.Hour)
	resolver := service.NewPhotoResolver(store)
	pipeline := imaging.NewPipeline(store, zerolog.Nop())

	services := Services{
		Auth:     service.NewAuthService(users, security.NewPasswordHasher(bcrypt.MinCost), tokens, nil, resolver, cfg.Auth, zerolog.Nop()),
		Profiles: service.NewProfileService(users, pipeline, tasks.NewDispatcher(nil, pipeline, zerolog.Nop()), resolver, cfg.HTTP.MaxUploadBytes, zerolog.Nop()),
		Admin: service.NewAdminService(users, repotest.NewStats(models.DashboardStats{
			Users: models.UserStats{Total: 1, Active: 1},
		}), zerolog.Nop()),
	}

	h := NewHandlerSet(zerolog.Nop(), cfg, services, health)
	router := gin.New()
	router.Use(middleware.Recovery(zerolog.Nop()))
	h.Register(router.Group("/api"))
	router.NoRoute(h.NotFound)

	return &testEnv{router: router, users: users, tokens: tokens, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
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
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.serve(t, req)
}

func (e *testEnv) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func registration(email, phone string) map[string]string {
	return map[string]string{
		"email":         email,
		"phone":         phone,
		"password":      "secret123",
		"full_name":     "Nyandeng Akol",
		"gender":        "female",
		"date_of_birth": "2000-05-06",
		"county":        "Juba",
		"payam":         "Munuki",
	}
}

// member registers an account and returns its id and a fresh token.
func (e *testEnv) member(t *testing.T, email, phone string, role models.UserRole) (string, string) {
	t.Helper()
	w, _ := e.do(t, http.MethodPost, "/api/auth/register", "", registration(email, phone))
	require.Equal(t, http.StatusCreated, w.Code)

	user, err := e.users.FindByLogin(context.Background(), strings.ToLower(email))
	require.NoError(t, err)
	if role != models.UserRoleUser {
		u, p, _ := e.users.Record(user.ID)
		u.Role = role
		e.users.Put(u, p)
	}

	w, body := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code, body)
	return user.ID, body["token"].(string)
}

func TestRegisterLoginAndMe(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})

	w, body := env.do(t, http.MethodPost, "/api/auth/register", "", registration("Nyandeng@AtarYouth.org", "+211911111111"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "/login", body["redirect"])

	w, body = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "nyandeng@atarYouth.org",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	token := body["token"].(string)
	user := body["user"].(map[string]any)
	assert.Equal(t, "Nyandeng", user["firstName"])
	assert.Equal(t, "user", user["role"])

	w, body = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := body["user"].(map[string]any)
	assert.Equal(t, "nyandeng@ataryouth.org", me["email"])
	assert.Equal(t, "+211911111111", me["phone"])
	profile := me["profile"].(map[string]any)
	assert.Equal(t, "Nyandeng Akol", profile["fullName"])
	assert.Equal(t, "2000-05-06", profile["dateOfBirth"])
	assert.Contains(t, profile["profilePhotoUrl"], "ui-avatars.com")
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})

	bad := registration("a@ataryouth.org", "+2549123")
	w, body := env.do(t, http.MethodPost, "/api/auth/register", "", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Valid South Sudan phone required (+211XXXXXXXXX)", body["message"])

	bad = registration("a@ataryouth.org", "+211911111111")
	bad["password"] = "short"
	w, body = env.do(t, http.MethodPost, "/api/auth/register", "", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Password must be at least 6 characters", body["message"])

	bad = registration("a@ataryouth.org", "+211911111111")
	bad["date_of_birth"] = "06/05/2000"
	w, _ = env.do(t, http.MethodPost, "/api/auth/register", "", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, env.users.Writes)
}

func TestRegisterDuplicateIsBadRequest(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	env.member(t, "first@ataryouth.org", "+211911111111", models.UserRoleUser)

	w, body := env.do(t, http.MethodPost, "/api/auth/register", "", registration("FIRST@ataryouth.org", "+211922222222"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email or phone already registered", body["message"])

	w, _ = env.do(t, http.MethodPost, "/api/auth/register", "", registration("second@ataryouth.org", "+211911111111"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	id, _ := env.member(t, "m@ataryouth.org", "+211911111111", models.UserRoleUser)

	w, body := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "m@ataryouth.org", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", body["message"])

	w, body = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ghost@ataryouth.org", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", body["message"])

	w, _ = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "m@ataryouth.org"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	u, p, _ := env.users.Record(id)
	u.Status = models.UserStatusInactive
	env.users.Put(u, p)
	w, _ = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "+211911111111", "password": "secret123"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

var protectedRoutes = []struct{ method, path string }{
	{http.MethodGet, "/api/auth/me"},
	{http.MethodPut, "/api/auth/profile"},
	{http.MethodPut, "/api/auth/password"},
	{http.MethodGet, "/api/admin/dashboard/stats"},
	{http.MethodGet, "/api/admin/users"},
	{http.MethodPut, "/api/admin/users/someone/status"},
}

func tamper(token string) string {
	i := strings.LastIndex(token, ".") + 5
	replacement := byte('A')
	if token[i] == 'A' {
		replacement = 'B'
	}
	return token[:i] + string(replacement) + token[i+1:]
}

func TestTamperedTokenRejectedOnEveryProtectedRoute(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	token, _, err := env.tokens.Issue(security.Identity{UserID: "admin-1", Email: "a@ataryouth.org", Role: "admin"}, 0)
	require.NoError(t, err)
	forged := tamper(token)
	require.NotEqual(t, token, forged)

	for _, route := range protectedRoutes {
		w, body := env.do(t, route.method, route.path, forged, map[string]string{})
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
		assert.Equal(t, false, body["success"], route.path)

		w, _ = env.do(t, route.method, route.path, "", map[string]string{})
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
	}
}

func TestMemberForbiddenOnAdminRoutes(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	_, token := env.member(t, "m@ataryouth.org", "+211911111111", models.UserRoleUser)

	for _, route := range protectedRoutes[3:] {
		w, _ := env.do(t, route.method, route.path, token, map[string]string{"status": "active"})
		assert.Equal(t, http.StatusForbidden, w.Code, route.path)
	}
}

func TestAdminRoutesNeedLiveAccount(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	ghost, _, err := env.tokens.Issue(security.Identity{UserID: "deleted-admin", Email: "gone@ataryouth.org", Role: "admin"}, 0)
	require.NoError(t, err)

	for _, route := range protectedRoutes[3:] {
		w, body := env.do(t, route.method, route.path, ghost, map[string]string{"status": "active"})
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
		assert.Equal(t, "Account no longer exists", body["message"], route.path)
	}

	w, _ := env.do(t, http.MethodGet, "/api/auth/me", ghost, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	id, token := env.member(t, "admin@ataryouth.org", "+211900000000", models.UserRoleAdmin)
	u, p, _ := env.users.Record(id)
	u.Role = models.UserRoleUser
	env.users.Put(u, p)

	w, _ = env.do(t, http.MethodGet, "/api/admin/users", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "demoted admin keeps an admin-role token")
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	_, adminToken := env.member(t, "admin@ataryouth.org", "+211900000000", models.UserRoleAdmin)
	memberID, _ := env.member(t, "m@ataryouth.org", "+211911111111", models.UserRoleUser)

	w, body := env.do(t, http.MethodGet, "/api/admin/dashboard/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["users"].(map[string]any)["total_users"])
	assert.Equal(t, float64(1), stats["users"].(map[string]any)["active_users"])

	w, body = env.do(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["users"], 2)
	assert.Equal(t, float64(2), body["total"])

	w, body = env.do(t, http.MethodGet, "/api/admin/users?page=1&perPage=1", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["users"], 1)
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, float64(1), body["perPage"])

	w, _ = env.do(t, http.MethodGet, "/api/admin/users?page=zero", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	path := "/api/admin/users/" + memberID + "/status"
	w, body = env.do(t, http.MethodPut, path, adminToken, map[string]string{"status": "banned"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid status", body["message"])
	assert.Empty(t, env.users.Logs)

	w, body = env.do(t, http.MethodPut, path, adminToken, map[string]string{"status": "inactive"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User deactivated successfully", body["message"])
	require.Len(t, env.users.Logs, 1)

	w, _ = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "m@ataryouth.org", "password": "secret123"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = env.do(t, http.MethodPut, "/api/admin/users/missing/status", adminToken, map[string]string{"status": "active"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPasswordChangeRevokesEarlierTokens(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	id, _ := env.member(t, "m@ataryouth.org", "+211911111111", models.UserRoleUser)

	old, _, err := env.tokens.Issue(security.Identity{UserID: id, Email: "m@ataryouth.org", Role: "user"}, 0)
	require.NoError(t, err)

	w, body := env.do(t, http.MethodPut, "/api/auth/password", old, map[string]string{
		"currentPassword": "secret123",
		"newPassword":     "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "New password must be different from current password", body["message"])

	w, _ = env.do(t, http.MethodPut, "/api/auth/password", old, map[string]string{
		"currentPassword": "wrong-one",
		"newPassword":     "another-secret",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Token iat has second precision; move past it so the cut-off is later.
	time.Sleep(1100 * time.Millisecond)
	w, _ = env.do(t, http.MethodPut, "/api/auth/password", old, map[string]string{
		"currentPassword": "secret123",
		"newPassword":     "another-secret",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/auth/me", old, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "m@ataryouth.org", "password": "another-secret"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateProfileMultipartWithBadPhoto(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	_, token := env.member(t, "m@ataryouth.org", "+211911111111", models.UserRoleUser)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"full_name":     "Nyandeng Akol Deng",
		"gender":        "female",
		"date_of_birth": "2000-05-06",
		"county":        "Bor",
		"payam":         "Kolnyang",
		"bio":           "Volunteer",
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("profilePhoto", "me.gif")
	require.NoError(t, err)
	_, err = fw.Write([]byte("GIF89a definitely not accepted"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/auth/profile", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w, body := env.serve(t, req)

	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, "rejected", body["photoStatus"])
	assert.NotEmpty(t, body["warning"])
	profile := body["user"].(map[string]any)["profile"].(map[string]any)
	assert.Equal(t, "Bor", profile["county"])
	assert.Equal(t, "Volunteer", profile["bio"])

	entries, err := os.ReadDir(env.cfg.Storage.TmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "upload temp file removed")
}

func TestUpdateProfileJSON(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	_, token := env.member(t, "m@ataryouth.org", "+211911111111", models.UserRoleUser)
	env.member(t, "other@ataryouth.org", "+211922222222", models.UserRoleUser)

	update := map[string]string{
		"full_name":     "Nyandeng Akol",
		"gender":        "female",
		"date_of_birth": "2000-05-06",
		"county":        "Juba",
		"payam":         "Munuki",
		"phone":         "+211922222222",
	}
	w, body := env.do(t, http.MethodPut, "/api/auth/profile", token, update)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Email or phone already in use by another account", body["message"])

	update["phone"] = "0912345678"
	w, _ = env.do(t, http.MethodPut, "/api/auth/profile", token, update)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	update["phone"] = "+211933333333"
	w, body = env.do(t, http.MethodPut, "/api/auth/profile", token, update)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "skipped", body["photoStatus"])
	assert.Equal(t, "+211933333333", body["user"].(map[string]any)["phone"])
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	env := newTestEnv(t, HealthChecks{Database: ok, Storage: ok})
	w, body := env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Connected", body["database"])
	assert.Equal(t, "disabled", body["cache"])
	assert.Equal(t, "ok", body["storage"])
	assert.Equal(t, "test", body["environment"])

	env = newTestEnv(t, HealthChecks{Database: down, Cache: down})
	w, body = env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "error", body["cache"])
	assert.Nil(t, body["error"], "details hidden outside development")
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	w, body := env.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Route not found", body["message"])
}
