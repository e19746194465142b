package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/crm-console/internal/api/http"
	"github.com/spec-kit/crm-console/internal/api/http/handlers"
	"github.com/spec-kit/crm-console/internal/auth"
	"github.com/spec-kit/crm-console/internal/config"
	"github.com/spec-kit/crm-console/internal/domain"
	"github.com/spec-kit/crm-console/internal/events"
	"github.com/spec-kit/crm-console/internal/localstate"
	"github.com/spec-kit/crm-console/internal/observability"
	"github.com/spec-kit/crm-console/internal/service"
	"github.com/spec-kit/crm-console/internal/upstream"
	"github.com/spec-kit/crm-console/internal/upstream/upstreamtest"
	"github.com/spec-kit/crm-console/pkg/util/sealbox"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	app     *fiber.App
	backend *upstreamtest.Backend
	tokens  *auth.TokenManager
	token   string
}

func newTestServer(t *testing.T, checks map[string]handlers.Pinger) *testServer {
	t.Helper()
	backend := upstreamtest.New(t)
	state := localstate.NewMemoryBackend()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	factory := &service.ShellFactory{
		Upstream:   upstream.New(backend.Config(), nil, metrics, logger),
		Roles:      service.NewRoleRegistry(state, dispatcher, logger),
		LocalState: state,
		Box:        sealbox.New("test-secret"),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Feeds: config.FeedConfig{
			ConversationsInterval: 10 * time.Millisecond,
			ScheduledInterval:     time.Hour,
		},
	}
	sessions := service.NewSessionRegistry(factory.New, 0, logger)
	t.Cleanup(sessions.Close)

	tokens := auth.NewTokenManager("test-secret", 60)
	token, _, err := tokens.GenerateToken("user-1", domain.RoleAdmin, "acme")
	require.NoError(t, err)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("crm-console", "test", checks),
		Settings:       handlers.NewSettingsHandler(sessions),
		Team:           handlers.NewTeamHandler(sessions),
		Roles:          handlers.NewRolesHandler(sessions),
		Integrations:   handlers.NewIntegrationsHandler(sessions),
		Drafts:         handlers.NewDraftsHandler(service.NewDraftService(state)),
		Feeds:          handlers.NewFeedsHandler(sessions),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
	})

	return &testServer{app: app, backend: backend, tokens: tokens, token: token}
}

func (s *testServer) tokenFor(t *testing.T, subject string) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(subject, domain.RoleAdmin, "acme")
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) (int, envelope) {
	t.Helper()
	return s.doAs(t, s.token, method, path, body, headers...)
}

func (s *testServer) doAs(t *testing.T, token, method, path string, body any, headers ...string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/settings/state", nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestUnknownRouteRendersEnvelope(t *testing.T) {
	srv := newTestServer(t, nil)

	status, env := srv.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	srv := newTestServer(t, map[string]handlers.Pinger{
		"redis":    fakePinger{},
		"postgres": fakePinger{err: errors.New("connection refused")},
	})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	live, err := srv.app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, live.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.do(t, http.MethodGet, "/settings/state", nil)

	resp, err := srv.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "crm_console_http_requests_total")
}

func TestDestructiveRoutesNeedConfirmation(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.backend.SeedMember(domain.TeamMember{ID: "m-1", FirstName: "Jane", LastName: "Doe", Email: "jane@acme.com", Role: "Sales Rep"})
	srv.backend.SeedIntegration(service.IntegrationTwilio, domain.IntegrationSettings{AccountID: "AC123", IsVerified: true})

	status, env := srv.do(t, http.MethodDelete, "/settings/team/members/m-1", nil)
	assert.Equal(t, http.StatusPreconditionRequired, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFIRMATION_REQUIRED", env.Error.Code)
	assert.Zero(t, srv.backend.Calls(upstreamtest.RouteDeleteMember))

	status, _ = srv.do(t, http.MethodDelete, "/settings/integrations/twilio", nil)
	assert.Equal(t, http.StatusPreconditionRequired, status)
	assert.Zero(t, srv.backend.Calls(upstreamtest.RouteDeleteIntegration))

	status, _ = srv.do(t, http.MethodDelete, "/settings/team/members/m-1", nil, handlers.ConfirmHeader, "true")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, srv.backend.Calls(upstreamtest.RouteDeleteMember))
	assert.Empty(t, srv.backend.Members())

	status, _ = srv.do(t, http.MethodDelete, "/settings/integrations/twilio?confirm=true", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, srv.backend.Calls(upstreamtest.RouteDeleteIntegration))
}

func TestSubmitCredentialsOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	accountID := "AC" + strings.Repeat("a1", 16)
	authToken := strings.Repeat("b2", 16)

	before := srv.backend.TotalCalls()
	status, env := srv.do(t, http.MethodPost, "/settings/integrations/twilio/credentials", map[string]string{
		"account_sid": accountID + "x",
		"auth_token":  authToken,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Equal(t, before, srv.backend.TotalCalls())

	status, env = srv.do(t, http.MethodPost, "/settings/integrations/twilio/credentials", map[string]string{
		"account_sid": accountID,
		"auth_token":  authToken,
	})
	require.Equal(t, http.StatusOK, status)
	var view domain.Integration
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, domain.IntegrationConnected, view.Status)
	assert.Equal(t, 1, srv.backend.Calls(upstreamtest.RouteSyncNumbers))

	status, env = srv.do(t, http.MethodGet, "/settings/integrations/twilio/resources", nil)
	require.Equal(t, http.StatusOK, status)
	var numbers []domain.PhoneNumber
	require.NoError(t, json.Unmarshal(env.Data, &numbers))
	assert.Len(t, numbers, 2)
}

func TestUnknownIntegrationIsNotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	status, env := srv.do(t, http.MethodGet, "/settings/integrations/slack", nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestCustomRoleLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)

	status, _ := srv.do(t, http.MethodPost, "/settings/roles", map[string]string{"name": "Growth Lead"})
	require.Equal(t, http.StatusCreated, status)

	status, env := srv.do(t, http.MethodGet, "/settings/roles?q=growth", nil)
	require.Equal(t, http.StatusOK, status)
	var listed struct {
		Roles []domain.Role `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed.Roles, 1)
	assert.True(t, listed.Roles[0].Custom)

	status, _ = srv.do(t, http.MethodDelete, "/settings/roles/Growth%20Lead", nil)
	assert.Equal(t, http.StatusPreconditionRequired, status)

	status, env = srv.do(t, http.MethodDelete, "/settings/roles/Growth%20Lead?confirm=true", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	for _, r := range listed.Roles {
		assert.NotEqual(t, "Growth Lead", r.Name)
	}
}

func TestInviteMemberOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)

	status, env := srv.do(t, http.MethodPost, "/settings/team/members", map[string]string{
		"name": "Jane <b>Doe</b>", "email": "jane@acme.com", "role": "Sales Rep",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "last_name", env.Error.Details["field"])
	assert.Zero(t, srv.backend.Calls(upstreamtest.RouteInvite))

	status, env = srv.do(t, http.MethodPost, "/settings/team/members", map[string]string{
		"name": "Jane Doe", "email": "jane@acme.com", "role": "Sales Rep",
	})
	require.Equal(t, http.StatusCreated, status)
	var result service.InviteResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, upstreamtest.DefaultPassword, result.DefaultPassword)
	assert.Equal(t, "jane@acme.com", result.Member.Email)
}

func TestDraftValidationOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)

	status, env := srv.do(t, http.MethodPut, "/settings/drafts/company", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	status, _ = srv.do(t, http.MethodPut, "/settings/drafts/company", map[string]string{"name": "Acme", "email": "ops@acme.com"})
	require.Equal(t, http.StatusOK, status)

	status, env = srv.do(t, http.MethodGet, "/settings/drafts/company", nil)
	require.Equal(t, http.StatusOK, status)
	var draft domain.CompanyInfoDraft
	require.NoError(t, json.Unmarshal(env.Data, &draft))
	assert.Equal(t, "Acme", draft.Name)
}

func TestTabActivationOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)

	status, _ := srv.do(t, http.MethodPost, "/settings/tabs/roles", nil)
	require.Equal(t, http.StatusOK, status)

	status, env := srv.do(t, http.MethodGet, "/settings/state", nil)
	require.Equal(t, http.StatusOK, status)
	var state struct {
		ActiveTab string `json:"active_tab"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.Equal(t, "roles", state.ActiveTab)
}

func TestFeedsOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)

	status, env := srv.do(t, http.MethodGet, "/feeds/conversations?refresh=true", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, env.Data)

	status, _ = srv.do(t, http.MethodGet, "/feeds/scheduled-messages", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Eventually(t, func() bool {
		return srv.backend.Calls(upstreamtest.RouteScheduled) >= 1
	}, time.Second, 10*time.Millisecond)
}

type shellState struct {
	ActiveTab string   `json:"active_tab"`
	Modals    []string `json:"modals"`
}

func (s *testServer) state(t *testing.T, token string) shellState {
	t.Helper()
	status, env := s.doAs(t, token, http.MethodGet, "/settings/state", nil)
	require.Equal(t, http.StatusOK, status)
	var state shellState
	require.NoError(t, json.Unmarshal(env.Data, &state))
	return state
}

func TestShellStateSurvivesLaterRequests(t *testing.T) {
	srv := newTestServer(t, nil)

	status, _ := srv.do(t, http.MethodPost, "/settings/tabs/roles", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = srv.do(t, http.MethodPost, "/settings/modals/add-role", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = srv.do(t, http.MethodGet, "/settings/drafts/billing", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = srv.do(t, http.MethodPost, "/settings/modals/edit-member", nil)
	require.Equal(t, http.StatusOK, status)

	state := srv.state(t, srv.token)
	assert.Equal(t, "roles", state.ActiveTab)
	assert.Equal(t, []string{"edit-member", "add-role"}, state.Modals)

	status, _ = srv.do(t, http.MethodDelete, "/settings/modals/add-role", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"edit-member"}, srv.state(t, srv.token).Modals)
}

func TestSessionsAreIsolatedPerCaller(t *testing.T) {
	srv := newTestServer(t, nil)
	tokenA := srv.tokenFor(t, "user-a")
	tokenB := srv.tokenFor(t, "user-b")

	status, _ := srv.doAs(t, tokenA, http.MethodPost, "/settings/tabs/roles", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = srv.doAs(t, tokenB, http.MethodPost, "/settings/modals/add-member", nil)
	require.Equal(t, http.StatusOK, status)

	a := srv.state(t, tokenA)
	assert.Equal(t, "roles", a.ActiveTab)
	assert.Empty(t, a.Modals)

	b := srv.state(t, tokenB)
	assert.Equal(t, "team", b.ActiveTab)
	assert.Equal(t, []string{"add-member"}, b.Modals)
}

func TestBackgroundPollsKeepTheCallersToken(t *testing.T) {
	srv := newTestServer(t, nil)
	tokenA := srv.tokenFor(t, "user-a")
	tokenB := srv.tokenFor(t, "user-b")

	status, _ := srv.doAs(t, tokenA, http.MethodPost, "/settings/tabs/roles", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = srv.doAs(t, tokenA, http.MethodGet, "/feeds/conversations", nil)
	require.Equal(t, http.StatusOK, status)

	for i := 0; i < 3; i++ {
		status, _ = srv.doAs(t, tokenB, http.MethodGet, "/settings/drafts/company", nil)
		require.Equal(t, http.StatusOK, status)
	}

	before := srv.backend.Calls(upstreamtest.RouteConversations)
	require.Eventually(t, func() bool {
		return srv.backend.Calls(upstreamtest.RouteConversations) >= before+3
	}, 2*time.Second, 10*time.Millisecond)

	tokens := srv.backend.Tokens(upstreamtest.RouteConversations)
	require.NotEmpty(t, tokens)
	for _, sent := range tokens {
		assert.Equal(t, tokenA, sent)
	}

	// the same caller still reaches the same shell
	assert.Equal(t, "roles", srv.state(t, tokenA).ActiveTab)
}
