package handlers

import (
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-console/internal/api/dto"
	"github.com/spec-kit/crm-console/internal/service"
	apperrors "github.com/spec-kit/crm-console/pkg/util/errorutil"
)

// RolesHandler exposes the role registry.
type RolesHandler struct {
	sessions *service.SessionRegistry
}

// NewRolesHandler constructs handler.
func NewRolesHandler(sessions *service.SessionRegistry) *RolesHandler {
	return &RolesHandler{sessions: sessions}
}

// List handles GET /settings/roles?q=.
func (h *RolesHandler) List(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	roles, err := shell.Roles().Search(c.UserContext(), shell.Principal().Namespace(), c.Query("q"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.RoleListResponse{Roles: roles})
}

// Create handles POST /settings/roles.
func (h *RolesHandler) Create(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	var req dto.RoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	role, err := shell.AddRole(c.UserContext(), req.Name)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, role)
}

// Delete handles DELETE /settings/roles/:name.
func (h *RolesHandler) Delete(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return apperrors.NewValidationError("invalid role name", nil)
	}
	ns := shell.Principal().Namespace()
	if err := shell.Roles().DeleteCustomRole(c.UserContext(), ns, name, confirmation(c)); err != nil {
		return err
	}
	roles, err := shell.Roles().Assignable(c.UserContext(), ns)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.RoleListResponse{Roles: roles})
}
