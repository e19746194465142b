package domain

import "time"

// IntegrationStatus is derived from the backend's stored credentials.
type IntegrationStatus string

const (
	IntegrationConnected    IntegrationStatus = "connected"
	IntegrationDisconnected IntegrationStatus = "disconnected"
)

// ConnectionState is the local lifecycle of the connect/disconnect flow.
type ConnectionState string

const (
	StateDisconnected  ConnectionState = "disconnected"
	StateConnecting    ConnectionState = "connecting"
	StateConnected     ConnectionState = "connected"
	StateDisconnecting ConnectionState = "disconnecting"
)

// Integration is one third-party credential set of the current company.
type Integration struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Status      IntegrationStatus   `json:"status"`
	State       ConnectionState     `json:"state"`
	Details     *IntegrationDetails `json:"details,omitempty"`
}

// IntegrationDetails only exists while connected.
type IntegrationDetails struct {
	AccountIDHint string    `json:"account_id_hint"`
	Verified      bool      `json:"verified"`
	ResourceCount int       `json:"resource_count"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// IntegrationSettings is the backend's credential record.
type IntegrationSettings struct {
	AccountID  string    `json:"account_sid"`
	AuthToken  string    `json:"auth_token,omitempty"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// PhoneNumber is a dependent resource synced from the SMS provider.
type PhoneNumber struct {
	ID           string   `json:"id"`
	Number       string   `json:"phone_number"`
	FriendlyName string   `json:"friendly_name"`
	Capabilities []string `json:"capabilities"`
}

// CredentialDraft is a locally cached, not yet submitted credential form.
type CredentialDraft struct {
	AccountID string `json:"account_id"`
	AuthToken string `json:"auth_token"`
}
