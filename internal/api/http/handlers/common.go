package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-console/internal/auth"
	"github.com/spec-kit/crm-console/internal/service"
	apperrors "github.com/spec-kit/crm-console/pkg/util/errorutil"
)

// ConfirmHeader confirms a destructive request, as does ?confirm=true.
const ConfirmHeader = "X-Confirm"

func confirmation(c *fiber.Ctx) service.Confirmer {
	ok := strings.EqualFold(c.Query("confirm"), "true") || strings.EqualFold(c.Get(ConfirmHeader), "true")
	return service.Confirmed(ok)
}

func principal(c *fiber.Ctx) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return p, nil
}

func currentShell(c *fiber.Ctx, sessions *service.SessionRegistry) (*service.SettingsShell, error) {
	p, err := principal(c)
	if err != nil {
		return nil, err
	}
	return sessions.Get(p), nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func respond(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{"data": data})
}
