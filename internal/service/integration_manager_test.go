package service

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-console/internal/domain"
	"github.com/spec-kit/crm-console/internal/localstate"
	"github.com/spec-kit/crm-console/internal/upstream/upstreamtest"
	apperrors "github.com/spec-kit/crm-console/pkg/util/errorutil"
	"github.com/spec-kit/crm-console/pkg/util/sealbox"
)

func newTwilio(t *testing.T) (*ConnectionManager, *upstreamtest.Backend, *localstate.MemoryBackend) {
	t.Helper()
	backend := upstreamtest.New(t)
	state := localstate.NewMemoryBackend()
	spec, ok := LookupIntegration(IntegrationTwilio)
	require.True(t, ok)
	m := NewConnectionManager(spec, ConnectionDeps{
		API:    backend.Client(),
		Drafts: state,
		Box:    sealbox.New("test-secret"),
		Logger: zap.NewNop(),
	})
	return m, backend, state
}

func TestCatalog(t *testing.T) {
	require.Len(t, Catalog(), 1)
	_, ok := LookupIntegration("sendgrid")
	assert.False(t, ok)
}

func TestSubmitCredentialsFormatGate(t *testing.T) {
	tests := []struct {
		name      string
		accountID string
		authToken string
		field     string
	}{
		{"account too short", validAccountID[:33], validAuthToken, "account_sid"},
		{"account too long", validAccountID + "x", validAuthToken, "account_sid"},
		{"wrong prefix", "AB" + validAccountID[2:], validAuthToken, "account_sid"},
		{"lowercase prefix", "ac" + validAccountID[2:], validAuthToken, "account_sid"},
		{"account symbols", "AC" + strings.Repeat("-", 32), validAuthToken, "account_sid"},
		{"missing account", "", validAuthToken, "account_sid"},
		{"token too short", validAccountID, validAuthToken[:31], "auth_token"},
		{"token symbols", validAccountID, strings.Repeat("_", 32), "auth_token"},
		{"missing token", validAccountID, "", "auth_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, backend, _ := newTwilio(t)
			_, err := m.SubmitCredentials(context.Background(), "user-1", tt.accountID, tt.authToken)
			de := requireCode(t, err, apperrors.CodeValidation)
			assert.Equal(t, tt.field, de.Details["field"])
			assert.Equal(t, 0, backend.TotalCalls())
		})
	}
}

func TestSubmitCredentialsConnectsAndSyncsOnce(t *testing.T) {
	m, backend, _ := newTwilio(t)

	view, err := m.SubmitCredentials(context.Background(), "user-1", validAccountID, validAuthToken)
	require.NoError(t, err)
	assert.Equal(t, domain.IntegrationConnected, view.Status)
	assert.Equal(t, domain.StateConnected, view.State)
	require.NotNil(t, view.Details)
	assert.Equal(t, 2, view.Details.ResourceCount)
	assert.True(t, strings.HasPrefix(view.Details.AccountIDHint, "AC**"))
	assert.NotContains(t, view.Details.AccountIDHint, validAccountID[2:30])
	assert.Equal(t, 1, backend.Calls(upstreamtest.RouteSyncNumbers))
}

func TestSubmitCredentialsTwiceUpdates(t *testing.T) {
	m, backend, _ := newTwilio(t)
	ctx := context.Background()

	_, err := m.SubmitCredentials(ctx, "user-1", validAccountID, validAuthToken)
	require.NoError(t, err)
	view, err := m.SubmitCredentials(ctx, "user-1", validAccountID, validAuthToken)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.Integrations())
	assert.Equal(t, 2, backend.Calls(upstreamtest.RouteCreateIntegration))
	assert.Equal(t, 1, backend.Calls(upstreamtest.RouteUpdateIntegration))
	assert.Equal(t, domain.IntegrationConnected, view.Status)
}

func TestSubmitCredentialsSyncFailureIsSwallowed(t *testing.T) {
	m, backend, _ := newTwilio(t)
	backend.Fail(upstreamtest.RouteSyncNumbers, http.StatusBadGateway, "provider unavailable")

	view, err := m.SubmitCredentials(context.Background(), "user-1", validAccountID, validAuthToken)
	require.NoError(t, err)
	assert.Equal(t, domain.IntegrationConnected, view.Status)
	assert.Equal(t, 0, view.Details.ResourceCount)
	assert.Equal(t, 1, backend.Calls(upstreamtest.RouteSyncNumbers))
}

func TestSubmitCredentialsBackendRejection(t *testing.T) {
	m, backend, _ := newTwilio(t)
	backend.Fail(upstreamtest.RouteCreateIntegration, http.StatusBadRequest, "Invalid Twilio credentials")

	view, err := m.SubmitCredentials(context.Background(), "user-1", validAccountID, validAuthToken)
	de := requireCode(t, err, apperrors.CodeBackend)
	assert.Equal(t, "Invalid Twilio credentials", de.Message)
	assert.Equal(t, domain.IntegrationDisconnected, view.Status)
	assert.Equal(t, 0, backend.Calls(upstreamtest.RouteSyncNumbers))
}

func TestStatusReconciliation(t *testing.T) {
	m, backend, _ := newTwilio(t)
	ctx := context.Background()

	view, err := m.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.IntegrationDisconnected, view.Status)
	assert.Nil(t, view.Details)

	_, err = m.SubmitCredentials(ctx, "user-1", validAccountID, validAuthToken)
	require.NoError(t, err)
	view, err = m.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.IntegrationConnected, view.Status)

	view, err = m.Disconnect(ctx, Confirmed(true))
	require.NoError(t, err)
	assert.Equal(t, domain.IntegrationDisconnected, view.Status)
	assert.Equal(t, domain.StateDisconnected, view.State)
	assert.Nil(t, view.Details)

	view, err = m.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.IntegrationDisconnected, view.Status)
	assert.Equal(t, 0, backend.Integrations())
}

func TestDisconnectRequiresConfirmation(t *testing.T) {
	m, backend, _ := newTwilio(t)
	backend.SeedIntegration(IntegrationTwilio, domain.IntegrationSettings{AccountID: validAccountID})
	_, err := m.Refresh(context.Background())
	require.NoError(t, err)

	view, err := m.Disconnect(context.Background(), Confirmed(false))
	requireCode(t, err, apperrors.CodeConfirmationRequired)
	assert.Equal(t, domain.StateConnected, view.State)
	assert.Equal(t, 0, backend.Calls(upstreamtest.RouteDeleteIntegration))
}

func TestDisconnectFailureRestoresState(t *testing.T) {
	m, backend, _ := newTwilio(t)
	backend.SeedIntegration(IntegrationTwilio, domain.IntegrationSettings{AccountID: validAccountID})
	_, err := m.Refresh(context.Background())
	require.NoError(t, err)
	backend.Fail(upstreamtest.RouteDeleteIntegration, http.StatusConflict, "Scheduled messages still pending")

	view, err := m.Disconnect(context.Background(), Confirmed(true))
	de := requireCode(t, err, apperrors.CodeBackend)
	assert.Equal(t, "Scheduled messages still pending", de.Message)
	assert.Equal(t, domain.StateConnected, view.State)
	assert.Equal(t, domain.IntegrationConnected, view.Status)
	assert.NotNil(t, view.Details)
}

func TestConnectFlowDrafts(t *testing.T) {
	m, backend, state := newTwilio(t)
	ctx := context.Background()

	draft, err := m.OpenConnectFlow(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.CredentialDraft{}, draft)
	assert.Equal(t, domain.StateConnecting, m.View().State)

	require.NoError(t, m.SaveDraft(ctx, "user-1", domain.CredentialDraft{AccountID: validAccountID, AuthToken: validAuthToken}))
	rec, err := state.Load(ctx, "user-1:integration_draft:twilio")
	require.NoError(t, err)
	assert.NotContains(t, string(rec.Data), validAuthToken)
	assert.Contains(t, string(rec.Data), validAccountID)

	assert.Equal(t, domain.StateDisconnected, m.CancelConnectFlow().State)

	draft, err = m.OpenConnectFlow(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, validAuthToken, draft.AuthToken)
	assert.Equal(t, 0, backend.TotalCalls())

	_, err = m.SubmitCredentials(ctx, "user-1", draft.AccountID, draft.AuthToken)
	require.NoError(t, err)
	draft, err = m.OpenConnectFlow(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, draft.AccountID)
}

func TestDraftSealedWithOtherSecretDropsToken(t *testing.T) {
	m, _, state := newTwilio(t)
	ctx := context.Background()
	require.NoError(t, m.SaveDraft(ctx, "user-1", domain.CredentialDraft{AccountID: validAccountID, AuthToken: validAuthToken}))

	spec, _ := LookupIntegration(IntegrationTwilio)
	other := NewConnectionManager(spec, ConnectionDeps{API: nil, Drafts: state, Box: sealbox.New("rotated")})
	draft, err := other.OpenConnectFlow(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, validAccountID, draft.AccountID)
	assert.Empty(t, draft.AuthToken)
}

func TestRefreshKeepsConnectingState(t *testing.T) {
	m, backend, _ := newTwilio(t)
	backend.SeedIntegration(IntegrationTwilio, domain.IntegrationSettings{AccountID: validAccountID})

	_, err := m.OpenConnectFlow(context.Background(), "user-1")
	require.NoError(t, err)
	view, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateConnecting, view.State)
	assert.Equal(t, domain.IntegrationConnected, view.Status)

	assert.Equal(t, domain.StateConnected, m.CancelConnectFlow().State)
}

func TestSyncDependentResourcesIsIdempotent(t *testing.T) {
	m, backend, _ := newTwilio(t)
	backend.SeedIntegration(IntegrationTwilio, domain.IntegrationSettings{AccountID: validAccountID})
	ctx := context.Background()

	added, err := m.SyncDependentResources(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = m.SyncDependentResources(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	numbers, err := m.Resources(ctx)
	require.NoError(t, err)
	assert.Len(t, numbers, 2)
}
