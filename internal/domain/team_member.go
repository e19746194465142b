package domain

import "time"

// MemberStatus is the account state reported by the backend.
type MemberStatus string

const (
	MemberStatusActive  MemberStatus = "active"
	MemberStatusInvited MemberStatus = "invited"
	MemberStatusPending MemberStatus = "pending"
)

// TeamMember is a user account scoped to a company.
type TeamMember struct {
	ID        string       `json:"id"`
	FirstName string       `json:"first_name"`
	LastName  string       `json:"last_name"`
	Email     string       `json:"email"`
	Role      string       `json:"role"`
	Status    MemberStatus `json:"status"`
	CompanyID string       `json:"company_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// FullName joins first and last name.
func (m TeamMember) FullName() string {
	switch {
	case m.FirstName == "":
		return m.LastName
	case m.LastName == "":
		return m.FirstName
	}
	return m.FirstName + " " + m.LastName
}

// Profile is the caller's own account, used to resolve company scope.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id"`
}
