package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-console/internal/auth"
	"github.com/spec-kit/crm-console/internal/config"
	"github.com/spec-kit/crm-console/internal/events"
	"github.com/spec-kit/crm-console/internal/localstate"
	"github.com/spec-kit/crm-console/internal/observability"
	"github.com/spec-kit/crm-console/internal/upstream"
	"github.com/spec-kit/crm-console/pkg/util/sealbox"
)

// ShellFactory assembles a caller's settings shell around shared infrastructure.
type ShellFactory struct {
	Upstream   *upstream.Client
	Roles      *RoleRegistry
	LocalState localstate.Backend
	Box        *sealbox.Box
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Team       config.TeamConfig
	Feeds      config.FeedConfig
}

// New builds a shell whose backend calls carry the caller's token.
func (f *ShellFactory) New(p *auth.Principal) *SettingsShell {
	client := f.Upstream.WithToken(p.Token)
	actor := events.Actor{Subject: p.Subject, CompanyID: p.CompanyID}

	managers := make([]*ConnectionManager, 0, len(catalog))
	for _, spec := range catalog {
		managers = append(managers, NewConnectionManager(spec, ConnectionDeps{
			API:        client,
			Drafts:     f.LocalState,
			Box:        f.Box,
			Dispatcher: f.Dispatcher,
			Logger:     f.Logger,
			Actor:      actor,
		}))
	}

	return NewSettingsShell(p, ShellParts{
		Team:          NewTeamDirectory(client, f.Dispatcher, f.Logger, f.Team.RefetchDelay),
		Roles:         f.Roles,
		Integrations:  managers,
		Scheduled:     NewScheduledMessagesFeed(client, f.Feeds.ScheduledInterval, f.Logger, f.Metrics),
		Conversations: NewConversationFeed(client, f.Feeds.ConversationsInterval, f.Logger, f.Metrics),
		Logger:        f.Logger,
	})
}

type session struct {
	shell *SettingsShell
	token string
}

// SessionRegistry keeps one settings shell per caller subject.
type SessionRegistry struct {
	build   func(*auth.Principal) *SettingsShell
	idleTTL time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionRegistry builds shells lazily with build.
func NewSessionRegistry(build func(*auth.Principal) *SettingsShell, idleTTL time.Duration, logger *zap.Logger) *SessionRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRegistry{
		build:    build,
		idleTTL:  idleTTL,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// Get returns the caller's shell. A new token replaces the shell so backend calls
// never use a stale credential.
func (r *SessionRegistry) Get(p *auth.Principal) *SettingsShell {
	r.mu.Lock()
	existing, ok := r.sessions[p.Subject]
	if ok && existing.token == p.Token {
		r.mu.Unlock()
		existing.shell.Touch()
		return existing.shell
	}
	shell := r.build(p)
	r.sessions[p.Subject] = &session{shell: shell, token: p.Token}
	r.mu.Unlock()

	if ok {
		existing.shell.Close()
		r.logger.Debug("replaced session after token change", zap.String("subject", p.Subject))
	}
	return shell
}

// Len reports how many sessions are open.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle since before now minus the idle TTL and returns how many it closed.
func (r *SessionRegistry) Sweep(now time.Time) int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*SettingsShell
	for subject, s := range r.sessions {
		if s.shell.LastSeen().Before(cutoff) {
			idle = append(idle, s.shell)
			delete(r.sessions, subject)
		}
	}
	r.mu.Unlock()

	for _, shell := range idle {
		shell.Close()
	}
	if len(idle) > 0 {
		r.logger.Info("evicted idle sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// RunJanitor sweeps on every interval until ctx is done.
func (r *SessionRegistry) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// Close closes every session.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.shell.Close()
	}
}
