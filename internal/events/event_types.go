package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRoleAdded               EventType = "role.added"
	EventRoleDeleted             EventType = "role.deleted"
	EventMemberInvited           EventType = "member.invited"
	EventMemberUpdated           EventType = "member.updated"
	EventMemberDeleted           EventType = "member.deleted"
	EventIntegrationConnected    EventType = "integration.connected"
	EventIntegrationDisconnected EventType = "integration.disconnected"
	EventIntegrationSynced       EventType = "integration.synced"
	EventIntegrationSyncFailed   EventType = "integration.sync_failed"
)

// Actor identifies the caller that triggered an event.
type Actor struct {
	Subject   string `json:"subject"`
	CompanyID string `json:"company_id,omitempty"`
}

// Event represents a settings change emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RolePayload names the custom role that changed.
type RolePayload struct {
	Role string `json:"role"`
}

// MemberPayload describes a team member change.
type MemberPayload struct {
	MemberID string `json:"member_id"`
	Email    string `json:"email"`
	Role     string `json:"role,omitempty"`
}

// IntegrationPayload describes an integration state change.
type IntegrationPayload struct {
	Integration string `json:"integration"`
	Added       int    `json:"added,omitempty"`
	Error       string `json:"error,omitempty"`
}
