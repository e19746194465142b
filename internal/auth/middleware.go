package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/spec-kit/crm-console/internal/domain"
	apperrors "github.com/spec-kit/crm-console/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. Token is forwarded to the backend
// unchanged; Role and CompanyID only drive UI affordances.
type Principal struct {
	Subject   string
	Role      string
	CompanyID string
	Token     string
}

// IsSuperAdmin reports whether the caller sees team members across companies.
func (p *Principal) IsSuperAdmin() bool {
	return p != nil && domain.IsSuperAdmin(p.Role)
}

// Namespace keys the caller's local state.
func (p *Principal) Namespace() string {
	return p.Subject
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return apperrors.NewUnauthorized("invalid authorization header")
	}
	// Header bytes belong to fasthttp and are reused once the request ends; the token
	// outlives it in the caller's session.
	token := utils.CopyString(strings.TrimSpace(parts[1]))

	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey, &Principal{
		Subject:   claims.Subject,
		Role:      claims.Role,
		CompanyID: claims.CompanyID,
		Token:     token,
	})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
