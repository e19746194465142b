package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "github.com/spec-kit/crm-console/pkg/util/errorutil"
)

const (
	maxNameLength  = 50
	maxEmailLength = 255
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	markupPattern = regexp.MustCompile(`<[^>]*>`)
	namePattern   = regexp.MustCompile(`^[\p{L}\p{M}' -]+$`)
)

// MemberInput is a create or update form. Either Name or FirstName/LastName is set;
// Name is split on its first space.
type MemberInput struct {
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

type memberFields struct {
	firstName string
	lastName  string
	email     string
	role      string
}

func (in MemberInput) fields() memberFields {
	f := memberFields{
		firstName: strings.TrimSpace(in.FirstName),
		lastName:  strings.TrimSpace(in.LastName),
		email:     strings.TrimSpace(in.Email),
		role:      strings.TrimSpace(in.Role),
	}
	if f.firstName == "" && f.lastName == "" {
		name := strings.TrimSpace(in.Name)
		if first, last, ok := strings.Cut(name, " "); ok {
			f.firstName, f.lastName = first, strings.TrimSpace(last)
		} else {
			f.firstName = name
		}
	}
	return f
}

// validateMember checks a member form in a fixed order: required, email format,
// markup, length, then charset. The first failure wins.
func validateMember(f memberFields) error {
	switch {
	case f.firstName == "":
		return apperrors.NewFieldError("first_name", "Name is required.")
	case f.email == "":
		return apperrors.NewFieldError("email", "Email is required.")
	case f.role == "":
		return apperrors.NewFieldError("role", "Role is required.")
	}

	if !emailPattern.MatchString(f.email) {
		return apperrors.NewFieldError("email", "Please enter a valid email address.")
	}

	names := []struct{ field, value string }{
		{"first_name", f.firstName},
		{"last_name", f.lastName},
	}
	for _, n := range names {
		if markupPattern.MatchString(n.value) {
			return apperrors.NewFieldError(n.field, "HTML or script content is not allowed.")
		}
	}

	for _, n := range names {
		if utf8.RuneCountInString(n.value) > maxNameLength {
			return apperrors.NewFieldError(n.field, "Name must be 50 characters or fewer.")
		}
	}
	if utf8.RuneCountInString(f.email) > maxEmailLength {
		return apperrors.NewFieldError("email", "Email must be 255 characters or fewer.")
	}

	for _, n := range names {
		if n.value != "" && !namePattern.MatchString(n.value) {
			return apperrors.NewFieldError(n.field, "Name may only contain letters, spaces, hyphens and apostrophes.")
		}
	}
	return nil
}
