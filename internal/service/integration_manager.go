package service

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-console/internal/domain"
	"github.com/spec-kit/crm-console/internal/events"
	"github.com/spec-kit/crm-console/internal/localstate"
	"github.com/spec-kit/crm-console/internal/upstream"
	apperrors "github.com/spec-kit/crm-console/pkg/util/errorutil"
	"github.com/spec-kit/crm-console/pkg/util/sealbox"
)

// IntegrationTwilio is the SMS provider integration.
const IntegrationTwilio = "twilio"

// IntegrationSpec describes one entry of the integration catalog.
type IntegrationSpec struct {
	Name        string
	Description string
	Validate    func(accountID, authToken string) error
}

var catalog = []IntegrationSpec{
	{
		Name:        IntegrationTwilio,
		Description: "Send and schedule SMS through your Twilio account.",
		Validate:    validateTwilioCredentials,
	},
}

// Catalog lists the supported integrations.
func Catalog() []IntegrationSpec {
	return append([]IntegrationSpec(nil), catalog...)
}

// LookupIntegration finds a catalog entry by name.
func LookupIntegration(name string) (IntegrationSpec, bool) {
	for _, spec := range catalog {
		if spec.Name == name {
			return spec, true
		}
	}
	return IntegrationSpec{}, false
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func validateTwilioCredentials(accountID, authToken string) error {
	switch {
	case accountID == "":
		return apperrors.NewFieldError("account_sid", "Account SID is required.")
	case len(accountID) != 34:
		return apperrors.NewFieldError("account_sid", "Account SID must be exactly 34 characters.")
	case !strings.HasPrefix(accountID, "AC"):
		return apperrors.NewFieldError("account_sid", "Account SID must start with AC.")
	case !isAlphanumeric(accountID[2:]):
		return apperrors.NewFieldError("account_sid", "Account SID may only contain letters and numbers.")
	}
	switch {
	case authToken == "":
		return apperrors.NewFieldError("auth_token", "Auth token is required.")
	case len(authToken) != 32:
		return apperrors.NewFieldError("auth_token", "Auth token must be exactly 32 characters.")
	case !isAlphanumeric(authToken):
		return apperrors.NewFieldError("auth_token", "Auth token may only contain letters and numbers.")
	}
	return nil
}

// sealedDraft is the stored form of a credential draft; the token never leaves the box in clear.
type sealedDraft struct {
	AccountID   string `json:"account_id"`
	SealedToken string `json:"sealed_token,omitempty"`
}

var credentialDraftSchema = localstate.Schema{Version: 1}

// ConnectionManager drives the connect/disconnect lifecycle of one integration.
// Connection status is only ever derived from a backend read.
type ConnectionManager struct {
	spec       IntegrationSpec
	api        IntegrationAPI
	drafts     *localstate.Repository[sealedDraft]
	box        *sealbox.Box
	dispatcher events.Dispatcher
	logger     *zap.Logger
	actor      events.Actor

	mu      sync.Mutex
	state   domain.ConnectionState
	prev    domain.ConnectionState
	status  domain.IntegrationStatus
	details *domain.IntegrationDetails
}

// ConnectionDeps groups the collaborators of a ConnectionManager.
type ConnectionDeps struct {
	API        IntegrationAPI
	Drafts     localstate.Backend
	Box        *sealbox.Box
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Actor      events.Actor
}

// NewConnectionManager starts in the disconnected state until the first Refresh.
func NewConnectionManager(spec IntegrationSpec, deps ConnectionDeps) *ConnectionManager {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionManager{
		spec:       spec,
		api:        deps.API,
		drafts:     localstate.NewRepository[sealedDraft](deps.Drafts, "integration_draft:"+spec.Name, credentialDraftSchema),
		box:        deps.Box,
		dispatcher: deps.Dispatcher,
		logger:     logger.With(zap.String("integration", spec.Name)),
		actor:      deps.Actor,
		state:      domain.StateDisconnected,
		prev:       domain.StateDisconnected,
		status:     domain.IntegrationDisconnected,
	}
}

// Name returns the integration name.
func (m *ConnectionManager) Name() string {
	return m.spec.Name
}

// View returns the current integration snapshot.
func (m *ConnectionManager) View() domain.Integration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

func (m *ConnectionManager) viewLocked() domain.Integration {
	view := domain.Integration{
		Name:        m.spec.Name,
		Description: m.spec.Description,
		Status:      m.status,
		State:       m.state,
	}
	if m.details != nil {
		d := *m.details
		view.Details = &d
	}
	return view
}

// Refresh re-derives the status from the backend. A missing credential record means disconnected.
func (m *ConnectionManager) Refresh(ctx context.Context) (domain.Integration, error) {
	settings, err := m.api.GetIntegrationSettings(ctx, m.spec.Name)
	if err != nil && !upstream.IsNotFound(err) {
		return m.View(), backendError(err, "Failed to load integration settings.")
	}

	var details *domain.IntegrationDetails
	if err == nil {
		details = &domain.IntegrationDetails{
			AccountIDHint: maskAccountID(settings.AccountID),
			Verified:      settings.IsVerified,
			UpdatedAt:     settings.UpdatedAt,
		}
		numbers, listErr := m.api.ListPhoneNumbers(ctx, m.spec.Name)
		if listErr != nil {
			m.logger.Warn("listing dependent resources failed", zap.Error(listErr))
		} else {
			details.ResourceCount = len(numbers)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	derived := domain.StateDisconnected
	m.status = domain.IntegrationDisconnected
	if details != nil {
		derived = domain.StateConnected
		m.status = domain.IntegrationConnected
	}
	m.details = details
	if m.state == domain.StateConnecting {
		m.prev = derived
	} else {
		m.state = derived
	}
	return m.viewLocked(), nil
}

// OpenConnectFlow enters the connecting state and returns any cached draft.
func (m *ConnectionManager) OpenConnectFlow(ctx context.Context, namespace string) (domain.CredentialDraft, error) {
	draft, err := m.loadDraft(ctx, namespace)
	if err != nil {
		return domain.CredentialDraft{}, err
	}

	m.mu.Lock()
	if m.state != domain.StateConnecting {
		m.prev = m.state
		m.state = domain.StateConnecting
	}
	m.mu.Unlock()
	return draft, nil
}

// CancelConnectFlow leaves the connecting state without touching the backend.
func (m *ConnectionManager) CancelConnectFlow() domain.Integration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == domain.StateConnecting {
		m.state = m.prev
	}
	return m.viewLocked()
}

// SaveDraft caches unsubmitted credentials with the token sealed.
func (m *ConnectionManager) SaveDraft(ctx context.Context, namespace string, draft domain.CredentialDraft) error {
	stored := sealedDraft{AccountID: strings.TrimSpace(draft.AccountID)}
	if token := strings.TrimSpace(draft.AuthToken); token != "" {
		sealed, err := m.box.Seal([]byte(token))
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		stored.SealedToken = sealed
	}
	if err := m.drafts.Set(ctx, namespace, stored); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (m *ConnectionManager) loadDraft(ctx context.Context, namespace string) (domain.CredentialDraft, error) {
	stored, err := m.drafts.Get(ctx, namespace)
	if err != nil {
		return domain.CredentialDraft{}, apperrors.NewInternalError(err)
	}
	draft := domain.CredentialDraft{AccountID: stored.AccountID}
	if stored.SealedToken != "" {
		token, err := m.box.Open(stored.SealedToken)
		if err != nil {
			// written under another secret; the account id is still useful
			m.logger.Warn("discarding unreadable draft token", zap.Error(err))
		} else {
			draft.AuthToken = string(token)
		}
	}
	return draft, nil
}

// SubmitCredentials validates, stores (create or update) and then syncs dependent
// resources once. Invalid input never reaches the backend.
func (m *ConnectionManager) SubmitCredentials(ctx context.Context, namespace, accountID, authToken string) (domain.Integration, error) {
	accountID, authToken = strings.TrimSpace(accountID), strings.TrimSpace(authToken)
	if err := m.spec.Validate(accountID, authToken); err != nil {
		return m.View(), err
	}

	creds := upstream.Credentials{AccountID: accountID, AuthToken: authToken}
	err := m.api.CreateIntegrationSettings(ctx, m.spec.Name, creds)
	if upErr, ok := upstream.AsError(err); ok && strings.Contains(upErr.Detail, "already exist") {
		err = m.api.UpdateIntegrationSettings(ctx, m.spec.Name, creds)
	}
	if err != nil {
		return m.View(), backendError(err, "Failed to save integration credentials.")
	}

	if err := m.drafts.Delete(ctx, namespace); err != nil {
		m.logger.Warn("clearing credential draft failed", zap.Error(err))
	}

	m.mu.Lock()
	m.state = domain.StateConnected
	m.prev = domain.StateConnected
	m.status = domain.IntegrationConnected
	m.mu.Unlock()
	m.publish(ctx, events.EventIntegrationConnected, events.IntegrationPayload{Integration: m.spec.Name})

	if _, err := m.SyncDependentResources(ctx); err != nil {
		m.logger.Warn("dependent resource sync failed after connect", zap.Error(err))
	}

	view, err := m.Refresh(ctx)
	if err != nil {
		m.logger.Warn("refresh after connect failed", zap.Error(err))
	}
	return view, nil
}

// Disconnect deletes the stored credentials once confirmed. On failure the prior state is kept.
func (m *ConnectionManager) Disconnect(ctx context.Context, confirmer Confirmer) (domain.Integration, error) {
	if err := confirm(ctx, confirmer, "disconnect integration"); err != nil {
		return m.View(), err
	}

	m.mu.Lock()
	prior := m.state
	m.state = domain.StateDisconnecting
	m.mu.Unlock()

	if err := m.api.DeleteIntegrationSettings(ctx, m.spec.Name); err != nil {
		m.mu.Lock()
		m.state = prior
		m.mu.Unlock()
		return m.View(), backendError(err, "Failed to disconnect integration.")
	}

	m.mu.Lock()
	m.state = domain.StateDisconnected
	m.prev = domain.StateDisconnected
	m.status = domain.IntegrationDisconnected
	m.details = nil
	m.mu.Unlock()
	m.publish(ctx, events.EventIntegrationDisconnected, events.IntegrationPayload{Integration: m.spec.Name})

	view, err := m.Refresh(ctx)
	if err != nil {
		m.logger.Warn("refresh after disconnect failed", zap.Error(err))
	}
	return view, nil
}

// SyncDependentResources pulls phone numbers from the provider. It is idempotent and
// returns how many were added.
func (m *ConnectionManager) SyncDependentResources(ctx context.Context) (int, error) {
	added, err := m.api.SyncPhoneNumbers(ctx, m.spec.Name)
	if err != nil {
		m.publish(ctx, events.EventIntegrationSyncFailed, events.IntegrationPayload{Integration: m.spec.Name, Error: err.Error()})
		return 0, backendError(err, "Failed to sync phone numbers.")
	}
	m.publish(ctx, events.EventIntegrationSynced, events.IntegrationPayload{Integration: m.spec.Name, Added: added})
	return added, nil
}

// Resources lists the synced phone numbers.
func (m *ConnectionManager) Resources(ctx context.Context) ([]domain.PhoneNumber, error) {
	numbers, err := m.api.ListPhoneNumbers(ctx, m.spec.Name)
	if err != nil {
		return nil, backendError(err, "Failed to load phone numbers.")
	}
	if numbers == nil {
		numbers = []domain.PhoneNumber{}
	}
	return numbers, nil
}

func (m *ConnectionManager) publish(ctx context.Context, eventType events.EventType, payload events.IntegrationPayload) {
	if m.dispatcher == nil {
		return
	}
	_ = m.dispatcher.Publish(ctx, events.Event{Type: eventType, Actor: m.actor, Payload: payload})
}

func maskAccountID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[:2] + strings.Repeat("*", len(id)-6) + id[len(id)-4:]
}
