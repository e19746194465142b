package upstream

import (
	"context"
	"net/http"
	"net/url"

	"github.com/spec-kit/crm-console/internal/domain"
)

// InviteRequest is the invite/create team member payload.
type InviteRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id,omitempty"`
}

// InviteResponse carries the created member and the backend-issued password.
type InviteResponse struct {
	Member          domain.TeamMember `json:"member"`
	DefaultPassword string            `json:"default_password"`
}

// MemberUpdate is the full-record replacement sent on update.
type MemberUpdate struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// Credentials is the integration credential payload.
type Credentials struct {
	AccountID string `json:"account_sid"`
	AuthToken string `json:"auth_token"`
}

type syncResponse struct {
	Added int `json:"added"`
}

// GetProfile returns the caller's own profile.
func (c *Client) GetProfile(ctx context.Context) (*domain.Profile, error) {
	var profile domain.Profile
	if err := c.do(ctx, "get_profile", http.MethodGet, "/api/users/me", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListTeamMembers lists members across every company.
func (c *Client) ListTeamMembers(ctx context.Context) ([]domain.TeamMember, error) {
	var members []domain.TeamMember
	if err := c.do(ctx, "list_members", http.MethodGet, "/api/team-members", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// ListCompanyTeamMembers lists the members of one company.
func (c *Client) ListCompanyTeamMembers(ctx context.Context, companyID string) ([]domain.TeamMember, error) {
	var members []domain.TeamMember
	path := "/api/companies/" + url.PathEscape(companyID) + "/team-members"
	if err := c.do(ctx, "list_company_members", http.MethodGet, path, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// InviteTeamMember creates a member and returns the issued default password.
func (c *Client) InviteTeamMember(ctx context.Context, req InviteRequest) (*InviteResponse, error) {
	var resp InviteResponse
	if err := c.do(ctx, "invite_member", http.MethodPost, "/api/team-members/invite", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateTeamMember replaces a member record.
func (c *Client) UpdateTeamMember(ctx context.Context, id string, req MemberUpdate) (*domain.TeamMember, error) {
	var member domain.TeamMember
	if err := c.do(ctx, "update_member", http.MethodPut, "/api/team-members/"+url.PathEscape(id), req, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

// DeleteTeamMember hard-deletes a member.
func (c *Client) DeleteTeamMember(ctx context.Context, id string) error {
	return c.do(ctx, "delete_member", http.MethodDelete, "/api/team-members/"+url.PathEscape(id), nil, nil)
}

func integrationPath(name, suffix string) string {
	return "/api/integrations/" + url.PathEscape(name) + suffix
}

// GetIntegrationSettings returns the stored credential record; 404 when none exists.
func (c *Client) GetIntegrationSettings(ctx context.Context, name string) (*domain.IntegrationSettings, error) {
	var settings domain.IntegrationSettings
	if err := c.do(ctx, "get_integration", http.MethodGet, integrationPath(name, "/settings"), nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// CreateIntegrationSettings stores new credentials.
func (c *Client) CreateIntegrationSettings(ctx context.Context, name string, creds Credentials) error {
	return c.do(ctx, "create_integration", http.MethodPost, integrationPath(name, "/settings"), creds, nil)
}

// UpdateIntegrationSettings replaces stored credentials.
func (c *Client) UpdateIntegrationSettings(ctx context.Context, name string, creds Credentials) error {
	return c.do(ctx, "update_integration", http.MethodPut, integrationPath(name, "/settings"), creds, nil)
}

// DeleteIntegrationSettings removes stored credentials.
func (c *Client) DeleteIntegrationSettings(ctx context.Context, name string) error {
	return c.do(ctx, "delete_integration", http.MethodDelete, integrationPath(name, "/settings"), nil, nil)
}

// SyncPhoneNumbers pulls phone numbers from the provider and returns how many were added.
func (c *Client) SyncPhoneNumbers(ctx context.Context, name string) (int, error) {
	var resp syncResponse
	if err := c.do(ctx, "sync_phone_numbers", http.MethodPost, integrationPath(name, "/phone-numbers/sync"), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Added, nil
}

// ListPhoneNumbers lists the synced phone numbers.
func (c *Client) ListPhoneNumbers(ctx context.Context, name string) ([]domain.PhoneNumber, error) {
	var numbers []domain.PhoneNumber
	if err := c.do(ctx, "list_phone_numbers", http.MethodGet, integrationPath(name, "/phone-numbers"), nil, &numbers); err != nil {
		return nil, err
	}
	return numbers, nil
}

// ListScheduledMessages lists queued SMS.
func (c *Client) ListScheduledMessages(ctx context.Context) ([]domain.ScheduledMessage, error) {
	var messages []domain.ScheduledMessage
	if err := c.do(ctx, "list_scheduled_sms", http.MethodGet, "/api/sms/scheduled", nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// ListConversations lists chat threads.
func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	if err := c.do(ctx, "list_conversations", http.MethodGet, "/api/chat/conversations", nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}
