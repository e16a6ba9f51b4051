package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/orchid-auth/internal/api/http/handlers"
	"github.com/spec-kit/orchid-auth/internal/auth"
	"github.com/spec-kit/orchid-auth/internal/config"
	"github.com/spec-kit/orchid-auth/internal/events"
	"github.com/spec-kit/orchid-auth/internal/observability"
	"github.com/spec-kit/orchid-auth/internal/persistence"
	"github.com/spec-kit/orchid-auth/internal/repository/memory"
	"github.com/spec-kit/orchid-auth/internal/service"
)

const testSecret = "router-test-secret"

type testServer struct {
	app     *fiber.App
	metrics *observability.Metrics
	store   *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithPolicy(t, auth.DefaultPolicy())
}

func newStrictTestServer(t *testing.T) *testServer {
	t.Helper()
	policy, err := auth.LoadPolicyFile(filepath.Join("..", "..", "..", "configs", "policy.strict.yaml"))
	require.NoError(t, err)
	return newTestServerWithPolicy(t, policy)
}

func newTestServerWithPolicy(t *testing.T, policy auth.Policy) *testServer {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.SeedRoles(context.Background(), "USER", "ADMIN"))

	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: testSecret, AccessTokenTTLMinutes: 60, BcryptCost: 4}}
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		AccountRepo: store.Accounts(),
		RoleRepo:    store.Roles(),
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	gate, err := auth.NewGate(policy, logger)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("orchid-auth", "test", &persistence.Postgres{}, nil),
		Auth:   handlers.NewAuthHandler(authService),
		Roles:  handlers.NewRoleHandler(service.NewRoleService(store.Roles(), dispatcher, logger)),
		AuthMiddleware: auth.NewAuthMiddleware(
			authService.TokenCodec(),
			auth.NewPrincipalResolver(store.Accounts(), time.Second),
			logger,
			auth.WithRecorder(metrics),
		),
		Gate: gate,
	})
	return &testServer{app: app, metrics: metrics, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) register(t *testing.T, email, name string) {
	t.Helper()
	status, body := s.do(t, fiber.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "secret", "accountName": name,
	})
	require.Equal(t, fiber.StatusCreated, status, body)
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	status, body := s.do(t, fiber.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "secret"})
	require.Equal(t, fiber.StatusOK, status, body)
	return body["token"].(string)
}

func TestLoginFlow(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice@x.com", "alice")

	status, body := s.do(t, fiber.MethodPost, "/auth/login", "", map[string]string{"email": "alice@x.com", "password": "secret"})
	require.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "USER", body["role"])
	assert.Equal(t, "alice", body["accountName"])
	assert.Equal(t, true, body["isActive"])
	assert.Equal(t, []any{"ROLE_USER"}, body["authorities"])
	assert.Equal(t, "Login successful", body["message"])
	assert.NotEmpty(t, body["expiresAt"])

	status, body = s.do(t, fiber.MethodPost, "/auth/login", "", map[string]string{"email": "alice@x.com", "password": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Login failed", body["error"])

	status, body = s.do(t, fiber.MethodPost, "/auth/login", "", map[string]string{"email": "ghost@x.com", "password": "secret"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "User not found", body["error"])
}

func TestMe(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice@x.com", "alice")
	token := s.login(t, "alice@x.com")

	status, body := s.do(t, fiber.MethodGet, "/auth/me", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alice@x.com", body["email"])
	assert.Equal(t, "USER", body["role"])
	assert.Equal(t, []any{"ROLE_USER"}, body["authorities"])

	expiredAt := func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := auth.NewTokenCodec(testSecret, time.Hour, auth.WithClock(expiredAt)).Issue("alice@x.com")
	require.NoError(t, err)

	statusExpired, bodyExpired := s.do(t, fiber.MethodGet, "/auth/me", expired, nil)
	assert.Equal(t, fiber.StatusUnauthorized, statusExpired)

	statusGarbage, bodyGarbage := s.do(t, fiber.MethodGet, "/auth/me", "garbage", nil)
	statusNone, bodyNone := s.do(t, fiber.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, statusNone, statusGarbage)
	assert.Equal(t, statusNone, statusExpired)
	assert.Equal(t, bodyNone, bodyGarbage)
	assert.Equal(t, bodyNone, bodyExpired)

	outcomes := s.metrics.Snapshot().AuthOutcomes
	assert.EqualValues(t, 1, outcomes[auth.OutcomeAuthenticated])
	assert.EqualValues(t, 2, outcomes[auth.OutcomeTokenInvalid])
}

func TestRegisterErrors(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice@x.com", "alice")

	status, body := s.do(t, fiber.MethodPost, "/auth/register", "", map[string]string{
		"email": "alice@x.com", "password": "other", "accountName": "alice-2",
	})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "User already exists", body["error"])

	status, body = s.do(t, fiber.MethodPost, "/auth/register", "", map[string]string{"email": "bob@x.com", "password": "secret"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid input", body["error"])
	assert.Equal(t, "Account name is required", body["message"])

	status, _ = s.do(t, fiber.MethodPost, "/auth/register", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestValidateEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice@x.com", "alice")
	token := s.login(t, "alice@x.com")

	status, body := s.do(t, fiber.MethodPost, "/auth/validate", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "alice@x.com", body["email"])
	assert.Equal(t, "USER", body["role"])

	status, body = s.do(t, fiber.MethodPost, "/auth/validate", "  "+token, nil)
	assert.Equal(t, fiber.StatusOK, status, "extra spaces after the scheme are accepted as by the middleware")
	assert.Equal(t, true, body["valid"])

	status, _ = s.do(t, fiber.MethodGet, "/auth/me", "  "+token, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, body = s.do(t, fiber.MethodPost, "/auth/validate", "tampered", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "Invalid token", body["message"])

	status, _ = s.do(t, fiber.MethodPost, "/auth/validate", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestDefaultPolicyLeavesDiagnosticsOpen(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodGet, "/auth/test-admin", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Admin access granted", body["message"])

	status, body = s.do(t, fiber.MethodGet, "/auth/test-auth", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "", body["user"])

	status, _ = s.do(t, fiber.MethodGet, "/AUTH/Me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestGateAppliesToCaseVariantPaths(t *testing.T) {
	s := newStrictTestServer(t)
	s.register(t, "alice@x.com", "alice")
	token := s.login(t, "alice@x.com")

	for _, path := range []string{"/auth/test-admin", "/auth/TEST-ADMIN", "/Auth/Test-Admin/"} {
		status, _ := s.do(t, fiber.MethodGet, path, token, nil)
		assert.Equal(t, fiber.StatusForbidden, status, path)
	}
	for _, path := range []string{"/auth/test-user", "/AUTH/Test-User"} {
		status, _ := s.do(t, fiber.MethodGet, path, "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, status, path)
	}
	status, _ := s.do(t, fiber.MethodPost, "/AUTH/ROLES", token, map[string]string{"roleName": "STAFF"})
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestRoleGatesFollowCurrentRole(t *testing.T) {
	s := newStrictTestServer(t)
	s.register(t, "alice@x.com", "alice")
	token := s.login(t, "alice@x.com")

	status, _ := s.do(t, fiber.MethodGet, "/auth/test-user", token, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, body := s.do(t, fiber.MethodGet, "/auth/test-admin", token, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Forbidden", body["error"])

	status, _ = s.do(t, fiber.MethodGet, "/auth/test-admin", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = s.do(t, fiber.MethodPut, "/auth/users/1/role", token, map[string]int{"roleId": 2})
	assert.Equal(t, fiber.StatusForbidden, status, "role assignment is admin only")

	ctx := context.Background()
	admin, err := s.store.Roles().GetByName(ctx, "ADMIN")
	require.NoError(t, err)
	_, err = s.store.Accounts().UpdateRole(ctx, 1, admin)
	require.NoError(t, err)

	status, body = s.do(t, fiber.MethodGet, "/auth/test-admin", token, nil)
	assert.Equal(t, fiber.StatusOK, status, "the old token carries the new role")
	assert.Equal(t, "Admin access granted", body["message"])

	status, body = s.do(t, fiber.MethodGet, "/auth/test-auth", token, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alice@x.com", body["user"])
	assert.Equal(t, []any{"ROLE_ADMIN"}, body["authorities"])
}

func TestUpdateUserRoleEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice@x.com", "alice")

	status, body := s.do(t, fiber.MethodPut, "/auth/users/1/role", "", map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Role ID is required", body["message"])

	status, body = s.do(t, fiber.MethodPut, "/auth/users/1/role", "", map[string]int{"roleId": 77})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Role not found", body["error"])
	assert.Equal(t, "Role with ID 77 not found", body["message"])

	status, body = s.do(t, fiber.MethodPut, "/auth/users/9/role", "", map[string]int{"roleId": 1})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "User not found", body["error"])

	status, _ = s.do(t, fiber.MethodPut, "/auth/users/abc/role", "", map[string]int{"roleId": 1})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = s.do(t, fiber.MethodPut, "/auth/users/1/role", "", map[string]int{"roleId": 2})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "ADMIN", body["role"])
	assert.Equal(t, "User role updated successfully", body["message"])
}

func TestRoleEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodPost, "/auth/roles", "", map[string]string{"roleName": "STAFF"})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "Role created successfully", body["message"])
	assert.Equal(t, "STAFF", body["roleName"])
	id := int(body["roleId"].(float64))
	assert.Equal(t, 3, id)

	status, body = s.do(t, fiber.MethodPost, "/auth/roles", "", map[string]string{"roleName": "STAFF"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "Role with name 'STAFF' already exists", body["message"])

	status, body = s.do(t, fiber.MethodPost, "/auth/roles", "", map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Role name is required", body["message"])

	status, body = s.do(t, fiber.MethodPut, "/auth/roles/3", "", map[string]string{"roleName": "SUPPORT"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "SUPPORT", body["roleName"])

	status, body = s.do(t, fiber.MethodGet, "/auth/roles/3", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "SUPPORT", body["roleName"])

	req := httptest.NewRequest(fiber.MethodGet, "/auth/roles", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	var roles []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&roles))
	require.Len(t, roles, 3)
	assert.Equal(t, "USER", roles[0]["roleName"])

	status, _ = s.do(t, fiber.MethodDelete, "/auth/roles/3", "", nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	status, body = s.do(t, fiber.MethodDelete, "/auth/roles/3", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Role not found", body["error"])
}

func TestHealthAndRouting(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"postgres": "skipped", "redis": "skipped"}, body["dependencies"])

	status, body = s.do(t, fiber.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
}
