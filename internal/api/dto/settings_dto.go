package dto

import (
	"github.com/spec-kit/crm-console/internal/domain"
	"github.com/spec-kit/crm-console/internal/service"
)

// MemberRequest is the add/edit team member form. Either name or first/last name is sent.
type MemberRequest struct {
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// ToInput converts the request into service input.
func (r MemberRequest) ToInput() service.MemberInput {
	return service.MemberInput{
		Name:      r.Name,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Role:      r.Role,
	}
}

// RoleRequest creates a custom role.
type RoleRequest struct {
	Name string `json:"name"`
}

// CredentialsRequest carries integration credentials, submitted or drafted.
type CredentialsRequest struct {
	AccountID string `json:"account_sid"`
	AuthToken string `json:"auth_token"`
}

// ToDraft converts the request into a credential draft.
func (r CredentialsRequest) ToDraft() domain.CredentialDraft {
	return domain.CredentialDraft{AccountID: r.AccountID, AuthToken: r.AuthToken}
}

// CredentialDraftResponse prefills the credentials form for the draft's owner.
type CredentialDraftResponse struct {
	AccountID string `json:"account_sid"`
	AuthToken string `json:"auth_token,omitempty"`
}

// NewCredentialDraftResponse converts a cached draft.
func NewCredentialDraftResponse(d domain.CredentialDraft) CredentialDraftResponse {
	return CredentialDraftResponse{AccountID: d.AccountID, AuthToken: d.AuthToken}
}

// SyncResponse reports a dependent resource sync.
type SyncResponse struct {
	Added int `json:"added"`
}

// RoleListResponse lists roles for the picker.
type RoleListResponse struct {
	Roles []domain.Role `json:"roles"`
}
