// Package upstreamtest runs an in-memory CRM backend for tests.
package upstreamtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-console/internal/config"
	"github.com/spec-kit/crm-console/internal/domain"
	"github.com/spec-kit/crm-console/internal/upstream"
)

// DefaultPassword is issued for every invited member.
const DefaultPassword = "Welcome-2024!"

// Route keys accepted by Calls and Fail.
const (
	RouteProfile           = "GET /api/users/me"
	RouteListAll           = "GET /api/team-members"
	RouteListCompany       = "GET /api/companies/{company}/team-members"
	RouteInvite            = "POST /api/team-members/invite"
	RouteUpdateMember      = "PUT /api/team-members/{id}"
	RouteDeleteMember      = "DELETE /api/team-members/{id}"
	RouteGetIntegration    = "GET /api/integrations/{name}/settings"
	RouteCreateIntegration = "POST /api/integrations/{name}/settings"
	RouteUpdateIntegration = "PUT /api/integrations/{name}/settings"
	RouteDeleteIntegration = "DELETE /api/integrations/{name}/settings"
	RouteSyncNumbers       = "POST /api/integrations/{name}/phone-numbers/sync"
	RouteListNumbers       = "GET /api/integrations/{name}/phone-numbers"
	RouteScheduled         = "GET /api/sms/scheduled"
	RouteConversations     = "GET /api/chat/conversations"
)

type failure struct {
	status int
	detail string
}

// Backend is a fake CRM backend. Zero state: one company "acme", no members,
// no integrations, two provider phone numbers waiting to be synced.
type Backend struct {
	mu            sync.Mutex
	server        *httptest.Server
	profile       domain.Profile
	members       []domain.TeamMember
	integrations  map[string]domain.IntegrationSettings
	providerPool  []domain.PhoneNumber
	synced        map[string][]domain.PhoneNumber
	scheduled     []domain.ScheduledMessage
	conversations []domain.Conversation
	calls         map[string]int
	tokens        map[string][]string
	failures      map[string][]failure
	hold          map[string]chan struct{}
}

// New starts the fake backend and closes it when the test ends.
func New(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		profile: domain.Profile{
			ID: "user-1", Email: "owner@acme.com", FirstName: "Olive", LastName: "Owner",
			Role: domain.RoleAdmin, CompanyID: "acme",
		},
		integrations: map[string]domain.IntegrationSettings{},
		providerPool: []domain.PhoneNumber{
			{ID: "pn-1", Number: "+15550000001", FriendlyName: "Main line", Capabilities: []string{"sms", "voice"}},
			{ID: "pn-2", Number: "+15550000002", FriendlyName: "Support", Capabilities: []string{"sms"}},
		},
		synced:   map[string][]domain.PhoneNumber{},
		calls:    map[string]int{},
		tokens:   map[string][]string{},
		failures: map[string][]failure{},
		hold:     map[string]chan struct{}{},
	}

	mux := http.NewServeMux()
	b.route(mux, RouteProfile, b.getProfile)
	b.route(mux, RouteListAll, b.listAll)
	b.route(mux, RouteListCompany, b.listCompany)
	b.route(mux, RouteInvite, b.invite)
	b.route(mux, RouteUpdateMember, b.updateMember)
	b.route(mux, RouteDeleteMember, b.deleteMember)
	b.route(mux, RouteGetIntegration, b.getIntegration)
	b.route(mux, RouteCreateIntegration, b.createIntegration)
	b.route(mux, RouteUpdateIntegration, b.updateIntegration)
	b.route(mux, RouteDeleteIntegration, b.deleteIntegration)
	b.route(mux, RouteSyncNumbers, b.syncNumbers)
	b.route(mux, RouteListNumbers, b.listNumbers)
	b.route(mux, RouteScheduled, b.listScheduled)
	b.route(mux, RouteConversations, b.listConversations)

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

// URL is the base URL of the fake backend.
func (b *Backend) URL() string {
	return b.server.URL
}

// Client returns an upstream client bound to the fake backend and a caller token.
func (b *Backend) Client() *upstream.Client {
	cfg := config.UpstreamConfig{BaseURL: b.server.URL, TimeoutSeconds: 5, BreakerFailures: 1000, BreakerOpenSeconds: 1}
	return upstream.New(cfg, nil, nil, zap.NewNop()).WithToken("test-token")
}

// Config returns upstream settings pointing at the fake backend.
func (b *Backend) Config() config.UpstreamConfig {
	return config.UpstreamConfig{BaseURL: b.server.URL, TimeoutSeconds: 5, BreakerFailures: 1000, BreakerOpenSeconds: 1}
}

// SetProfile replaces the caller profile.
func (b *Backend) SetProfile(p domain.Profile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profile = p
}

// SeedMember stores a member directly.
func (b *Backend) SeedMember(m domain.TeamMember) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.members = append(b.members, m)
}

// SeedIntegration stores credentials directly.
func (b *Backend) SeedIntegration(name string, s domain.IntegrationSettings) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.integrations[name] = s
}

// SetScheduled replaces the scheduled SMS list.
func (b *Backend) SetScheduled(items []domain.ScheduledMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scheduled = items
}

// SetConversations replaces the conversation list.
func (b *Backend) SetConversations(items []domain.Conversation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations = items
}

// Members returns the stored members.
func (b *Backend) Members() []domain.TeamMember {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.TeamMember(nil), b.members...)
}

// Integrations returns how many credential records exist.
func (b *Backend) Integrations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.integrations)
}

// Fail makes the next call to route answer status with detail.
func (b *Backend) Fail(route string, status int, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = append(b.failures[route], failure{status: status, detail: detail})
}

// Hold blocks calls to route until the returned release func is called.
func (b *Backend) Hold(route string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.hold[route] = ch
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.hold, route)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Calls counts requests that reached route.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// Tokens lists the bearer token of every request that reached route, oldest first.
func (b *Backend) Tokens(route string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.tokens[route]...)
}

// TotalCalls counts every request.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.calls {
		total += n
	}
	return total
}

func (b *Backend) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[pattern]++
		b.tokens[pattern] = append(b.tokens[pattern], strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		hold := b.hold[pattern]
		var fail *failure
		if queued := b.failures[pattern]; len(queued) > 0 {
			fail = &queued[0]
			b.failures[pattern] = queued[1:]
		}
		b.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if fail != nil {
			writeDetail(w, fail.status, fail.detail)
			return
		}
		h(w, r)
	})
}

func (b *Backend) getProfile(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.profile)
}

func (b *Backend) listAll(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, nonNil(b.members))
}

func (b *Backend) listCompany(w http.ResponseWriter, r *http.Request) {
	company := r.PathValue("company")
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []domain.TeamMember{}
	for _, m := range b.members {
		if m.CompanyID == company {
			out = append(out, m)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) invite(w http.ResponseWriter, r *http.Request) {
	var req upstream.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.members {
		if strings.EqualFold(m.Email, req.Email) {
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
	}
	company := req.CompanyID
	if company == "" {
		company = b.profile.CompanyID
	}
	member := domain.TeamMember{
		ID:        uuid.NewString(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      req.Role,
		Status:    domain.MemberStatusInvited,
		CompanyID: company,
		CreatedAt: time.Now().UTC(),
	}
	b.members = append(b.members, member)
	writeJSON(w, http.StatusCreated, upstream.InviteResponse{Member: member, DefaultPassword: DefaultPassword})
}

func (b *Backend) updateMember(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req upstream.MemberUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := -1
	for i, m := range b.members {
		if m.ID == id {
			idx = i
		} else if strings.EqualFold(m.Email, req.Email) {
			writeDetail(w, http.StatusBadRequest, "Email already exists")
			return
		}
	}
	if idx < 0 {
		writeDetail(w, http.StatusNotFound, "Team member not found")
		return
	}
	m := b.members[idx]
	m.FirstName, m.LastName, m.Email, m.Role = req.FirstName, req.LastName, req.Email, req.Role
	b.members[idx] = m
	writeJSON(w, http.StatusOK, m)
}

func (b *Backend) deleteMember(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, m := range b.members {
		if m.ID == id {
			b.members = append(b.members[:i], b.members[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Team member not found")
}

func (b *Backend) getIntegration(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.integrations[r.PathValue("name")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Settings not found")
		return
	}
	s.AuthToken = ""
	writeJSON(w, http.StatusOK, s)
}

func (b *Backend) createIntegration(w http.ResponseWriter, r *http.Request) {
	var creds upstream.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	name := r.PathValue("name")
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.integrations[name]; ok {
		writeDetail(w, http.StatusBadRequest, "Settings already exist for this company")
		return
	}
	now := time.Now().UTC()
	b.integrations[name] = domain.IntegrationSettings{
		AccountID: creds.AccountID, AuthToken: creds.AuthToken, IsVerified: true, CreatedAt: now, UpdatedAt: now,
	}
	w.WriteHeader(http.StatusCreated)
}

func (b *Backend) updateIntegration(w http.ResponseWriter, r *http.Request) {
	var creds upstream.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	name := r.PathValue("name")
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.integrations[name]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Settings not found")
		return
	}
	s.AccountID, s.AuthToken, s.UpdatedAt = creds.AccountID, creds.AuthToken, time.Now().UTC()
	b.integrations[name] = s
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) deleteIntegration(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.integrations[name]; !ok {
		writeDetail(w, http.StatusNotFound, "Settings not found")
		return
	}
	delete(b.integrations, name)
	delete(b.synced, name)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) syncNumbers(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.integrations[name]; !ok {
		writeDetail(w, http.StatusBadRequest, "Integration is not configured")
		return
	}
	added := len(b.providerPool) - len(b.synced[name])
	b.synced[name] = append([]domain.PhoneNumber(nil), b.providerPool...)
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (b *Backend) listNumbers(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, nonNil(b.synced[r.PathValue("name")]))
}

func (b *Backend) listScheduled(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, nonNil(b.scheduled))
}

func (b *Backend) listConversations(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, nonNil(b.conversations))
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return append([]T(nil), items...)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
