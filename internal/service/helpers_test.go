package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-console/internal/auth"
	"github.com/spec-kit/crm-console/internal/config"
	"github.com/spec-kit/crm-console/internal/domain"
	"github.com/spec-kit/crm-console/internal/events"
	"github.com/spec-kit/crm-console/internal/localstate"
	"github.com/spec-kit/crm-console/internal/upstream"
	"github.com/spec-kit/crm-console/internal/upstream/upstreamtest"
	apperrors "github.com/spec-kit/crm-console/pkg/util/errorutil"
	"github.com/spec-kit/crm-console/pkg/util/sealbox"
)

var (
	validAccountID = "AC" + strings.Repeat("a1", 16)
	validAuthToken = strings.Repeat("b2", 16)
)

func adminPrincipal() *auth.Principal {
	return &auth.Principal{Subject: "user-1", Role: domain.RoleAdmin, CompanyID: "acme", Token: "test-token"}
}

type harness struct {
	backend *upstreamtest.Backend
	state   *localstate.MemoryBackend
	factory *ShellFactory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := upstreamtest.New(t)
	state := localstate.NewMemoryBackend()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	return &harness{
		backend: backend,
		state:   state,
		factory: &ShellFactory{
			Upstream:   upstream.New(backend.Config(), nil, nil, zap.NewNop()),
			Roles:      NewRoleRegistry(state, dispatcher, zap.NewNop()),
			LocalState: state,
			Box:        sealbox.New("test-secret"),
			Dispatcher: dispatcher,
			Logger:     zap.NewNop(),
			Feeds:      config.FeedConfig{ConversationsInterval: 0, ScheduledInterval: 0},
		},
	}
}

func (h *harness) shell(t *testing.T) *SettingsShell {
	t.Helper()
	shell := h.factory.New(adminPrincipal())
	t.Cleanup(shell.Close)
	return shell
}

func requireCode(t *testing.T, err error, code string) *apperrors.DomainError {
	t.Helper()
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	require.Equal(t, code, de.Code, "error: %v", err)
	return de
}
