package service

import (
	"context"
	"net/url"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-console/internal/auth"
	"github.com/spec-kit/crm-console/internal/domain"
	apperrors "github.com/spec-kit/crm-console/pkg/util/errorutil"
)

// Tab is a section of the settings screen.
type Tab string

const (
	TabTeam         Tab = "team"
	TabRoles        Tab = "roles"
	TabIntegrations Tab = "integrations"
)

// Modal is a dialog the settings screen can show.
type Modal string

const (
	ModalAddMember              Modal = "add-member"
	ModalEditMember             Modal = "edit-member"
	ModalAddRole                Modal = "add-role"
	ModalIntegrationCredentials Modal = "integration-credentials"
)

var (
	tabs   = []Tab{TabTeam, TabRoles, TabIntegrations}
	modals = []Modal{ModalAddMember, ModalEditMember, ModalAddRole, ModalIntegrationCredentials}
)

// Activation is the outcome of switching tabs. Query replaces the current URL query
// without pushing a history entry.
type Activation struct {
	Tab        Tab    `json:"tab"`
	Query      string `json:"query"`
	Replace    bool   `json:"replace"`
	Superseded bool   `json:"superseded,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// ShellState is the visible state of the settings screen.
type ShellState struct {
	ActiveTab Tab     `json:"active_tab"`
	Query     string  `json:"query"`
	Modals    []Modal `json:"modals"`
	View      any     `json:"view,omitempty"`
}

// SettingsShell is one caller's settings screen: the active tab, open modals and the
// components behind each tab.
type SettingsShell struct {
	principal     *auth.Principal
	team          *TeamDirectory
	roles         *RoleRegistry
	integrations  map[string]*ConnectionManager
	scheduled     *Feed[domain.ScheduledMessage]
	conversations *Feed[domain.Conversation]
	logger        *zap.Logger

	feedCtx    context.Context
	feedCancel context.CancelFunc
	unwatch    func()

	mu         sync.Mutex
	active     Tab
	generation uint64
	view       any
	open       map[Modal]bool
	lastSeen   time.Time
}

// ShellParts are the per-caller components a shell is assembled from.
type ShellParts struct {
	Team          *TeamDirectory
	Roles         *RoleRegistry
	Integrations  []*ConnectionManager
	Scheduled     *Feed[domain.ScheduledMessage]
	Conversations *Feed[domain.Conversation]
	Logger        *zap.Logger
}

// NewSettingsShell opens on the team tab with no modals.
func NewSettingsShell(p *auth.Principal, parts ShellParts) *SettingsShell {
	logger := parts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	integrations := make(map[string]*ConnectionManager, len(parts.Integrations))
	for _, m := range parts.Integrations {
		integrations[m.Name()] = m
	}
	feedCtx, cancel := context.WithCancel(context.Background())
	s := &SettingsShell{
		principal:     p,
		team:          parts.Team,
		roles:         parts.Roles,
		integrations:  integrations,
		scheduled:     parts.Scheduled,
		conversations: parts.Conversations,
		logger:        logger.With(zap.String("subject", p.Subject)),
		feedCtx:       feedCtx,
		feedCancel:    cancel,
		active:        TabTeam,
		open:          make(map[Modal]bool),
		lastSeen:      time.Now(),
		unwatch:       func() {},
	}
	if s.roles != nil {
		s.unwatch = s.roles.OnChange(s.rolesChanged)
	}
	return s
}

// rolesChanged keeps the role picker current when the caller's custom roles are
// written, including by another session of the same caller.
func (s *SettingsShell) rolesChanged(namespace string, custom []string) {
	if namespace != s.principal.Namespace() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == TabRoles {
		s.view = assignable(custom)
	}
}

// Principal returns the caller the shell belongs to.
func (s *SettingsShell) Principal() *auth.Principal {
	return s.principal
}

// Team returns the team member directory.
func (s *SettingsShell) Team() *TeamDirectory {
	return s.team
}

// Roles returns the role registry.
func (s *SettingsShell) Roles() *RoleRegistry {
	return s.roles
}

// Integration returns the connection manager for name.
func (s *SettingsShell) Integration(name string) (*ConnectionManager, error) {
	m, ok := s.integrations[name]
	if !ok {
		return nil, apperrors.NewNotFound("integration", map[string]any{"integration": name})
	}
	return m, nil
}

// Integrations returns every integration view in catalog order.
func (s *SettingsShell) Integrations() []domain.Integration {
	views := make([]domain.Integration, 0, len(s.integrations))
	for _, spec := range catalog {
		if m, ok := s.integrations[spec.Name]; ok {
			views = append(views, m.View())
		}
	}
	return views
}

// Touch records activity for idle eviction.
func (s *SettingsShell) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen is the time of the last recorded activity.
func (s *SettingsShell) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// State returns the active tab, open modals and the last applied tab data.
func (s *SettingsShell) State() ShellState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ShellState{
		ActiveTab: s.active,
		Query:     tabQuery(s.active),
		Modals:    s.openModalsLocked(),
		View:      s.view,
	}
}

func tabQuery(tab Tab) string {
	return url.Values{"tab": {string(tab)}}.Encode()
}

// Activate switches to tab and runs exactly one fetch for it. If another activation
// starts before the fetch returns, this result is discarded and marked Superseded.
func (s *SettingsShell) Activate(ctx context.Context, tab Tab) (Activation, error) {
	i := slices.Index(tabs, tab)
	if i < 0 {
		return Activation{}, apperrors.NewValidationError("Unknown settings tab.", map[string]any{"tab": string(tab)})
	}
	// keep the package constant, never the caller's string
	tab = tabs[i]

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.active = tab
	s.mu.Unlock()

	data, err := s.fetch(ctx, tab)

	s.mu.Lock()
	defer s.mu.Unlock()
	activation := Activation{Tab: tab, Query: tabQuery(tab), Replace: true}
	if gen != s.generation {
		activation.Superseded = true
		s.logger.Debug("discarding superseded tab fetch", zap.String("tab", string(tab)))
		return activation, nil
	}
	if err != nil {
		return activation, err
	}
	s.view = data
	activation.Data = data
	return activation, nil
}

func (s *SettingsShell) fetch(ctx context.Context, tab Tab) (any, error) {
	switch tab {
	case TabTeam:
		return s.team.List(ctx, s.principal)
	case TabRoles:
		return s.roles.Assignable(ctx, s.principal.Namespace())
	default:
		views := make([]domain.Integration, 0, len(s.integrations))
		for _, spec := range catalog {
			m, ok := s.integrations[spec.Name]
			if !ok {
				continue
			}
			view, err := m.Refresh(ctx)
			if err != nil {
				return nil, err
			}
			views = append(views, view)
		}
		return views, nil
	}
}

// OpenModal shows a dialog.
func (s *SettingsShell) OpenModal(modal Modal) error {
	i := slices.Index(modals, modal)
	if i < 0 {
		return apperrors.NewValidationError("Unknown modal.", map[string]any{"modal": string(modal)})
	}
	s.mu.Lock()
	s.open[modals[i]] = true
	s.mu.Unlock()
	return nil
}

// CloseModal hides a dialog; closing a closed dialog is a no-op.
func (s *SettingsShell) CloseModal(modal Modal) {
	s.mu.Lock()
	delete(s.open, modal)
	s.mu.Unlock()
}

// Modals lists open dialogs in a stable order.
func (s *SettingsShell) Modals() []Modal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openModalsLocked()
}

func (s *SettingsShell) openModalsLocked() []Modal {
	open := make([]Modal, 0, len(s.open))
	for _, m := range modals {
		if s.open[m] {
			open = append(open, m)
		}
	}
	return open
}

// CreateMember invites a member and closes the add-member dialog on success.
func (s *SettingsShell) CreateMember(ctx context.Context, in MemberInput) (*InviteResult, error) {
	result, err := s.team.Create(ctx, s.principal, in)
	if err != nil {
		return nil, err
	}
	s.CloseModal(ModalAddMember)
	return result, nil
}

// UpdateMember saves a member and closes the edit-member dialog on success.
func (s *SettingsShell) UpdateMember(ctx context.Context, id string, in MemberInput) ([]domain.TeamMember, error) {
	members, err := s.team.Update(ctx, s.principal, id, in)
	if err != nil {
		return nil, err
	}
	s.CloseModal(ModalEditMember)
	return members, nil
}

// AddRole adds a custom role and closes the add-role dialog on success.
func (s *SettingsShell) AddRole(ctx context.Context, name string) (domain.Role, error) {
	role, err := s.roles.AddCustomRole(ctx, s.principal.Namespace(), name)
	if err != nil {
		return role, err
	}
	s.CloseModal(ModalAddRole)
	return role, nil
}

// OpenConnectFlow starts connecting an integration and shows the credentials dialog.
func (s *SettingsShell) OpenConnectFlow(ctx context.Context, name string) (domain.CredentialDraft, error) {
	m, err := s.Integration(name)
	if err != nil {
		return domain.CredentialDraft{}, err
	}
	draft, err := m.OpenConnectFlow(ctx, s.principal.Namespace())
	if err != nil {
		return draft, err
	}
	s.mu.Lock()
	s.open[ModalIntegrationCredentials] = true
	s.mu.Unlock()
	return draft, nil
}

// CancelConnectFlow abandons the connect flow and hides the credentials dialog.
func (s *SettingsShell) CancelConnectFlow(name string) (domain.Integration, error) {
	m, err := s.Integration(name)
	if err != nil {
		return domain.Integration{}, err
	}
	s.CloseModal(ModalIntegrationCredentials)
	return m.CancelConnectFlow(), nil
}

// SubmitCredentials connects an integration and hides the credentials dialog on success.
func (s *SettingsShell) SubmitCredentials(ctx context.Context, name, accountID, authToken string) (domain.Integration, error) {
	m, err := s.Integration(name)
	if err != nil {
		return domain.Integration{}, err
	}
	view, err := m.SubmitCredentials(ctx, s.principal.Namespace(), accountID, authToken)
	if err != nil {
		return view, err
	}
	s.CloseModal(ModalIntegrationCredentials)
	return view, nil
}

// ScheduledMessages starts the scheduled SMS feed on first use and returns it.
func (s *SettingsShell) ScheduledMessages() *Feed[domain.ScheduledMessage] {
	s.scheduled.Start(s.feedCtx)
	return s.scheduled
}

// Conversations starts the conversation feed on first use and returns it.
func (s *SettingsShell) Conversations() *Feed[domain.Conversation] {
	s.conversations.Start(s.feedCtx)
	return s.conversations
}

// Close stops both feeds and cancels their in-flight polls.
func (s *SettingsShell) Close() {
	s.unwatch()
	s.feedCancel()
	s.scheduled.Stop()
	s.conversations.Stop()
}
