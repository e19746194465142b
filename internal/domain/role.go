package domain

import "strings"

// Role is an assignable permission label. Custom roles are defined by the caller and
// layered on top of the built-in set.
type Role struct {
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
}

// Built-in role names.
const (
	RoleSalesManager = "Sales Manager"
	RoleSalesRep     = "Sales Rep"
	RoleRegularUser  = "Regular User"
	RoleSupport      = "Support"
	RoleAdmin        = "Admin"
	RoleSuperAdmin   = "Super Admin"
)

// BuiltinRoles lists the built-in roles offered by the role picker, in display order.
// Admin and Super Admin are recognised values but never assignable from the picker.
func BuiltinRoles() []string {
	return []string{RoleSalesManager, RoleSalesRep, RoleRegularUser, RoleSupport}
}

// IsSuperAdmin reports whether role names the cross-company administrator.
// Spelling varies between tokens ("super_admin", "Super Admin", "superadmin").
func IsSuperAdmin(role string) bool {
	return normalizeRole(role) == "superadmin"
}

// IsAdmin reports whether role is a company or super administrator.
func IsAdmin(role string) bool {
	n := normalizeRole(role)
	return n == "admin" || n == "superadmin"
}

func normalizeRole(role string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(role)))
}
