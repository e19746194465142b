package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-console/internal/api/dto"
	"github.com/spec-kit/crm-console/internal/service"
)

// TeamHandler exposes the team member directory.
type TeamHandler struct {
	sessions *service.SessionRegistry
}

// NewTeamHandler constructs handler.
func NewTeamHandler(sessions *service.SessionRegistry) *TeamHandler {
	return &TeamHandler{sessions: sessions}
}

// List handles GET /settings/team/members.
func (h *TeamHandler) List(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	members, err := shell.Team().List(c.UserContext(), shell.Principal())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, members)
}

// Create handles POST /settings/team/members.
func (h *TeamHandler) Create(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	var req dto.MemberRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := shell.CreateMember(c.UserContext(), req.ToInput())
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, result)
}

// Update handles PUT /settings/team/members/:id.
func (h *TeamHandler) Update(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	var req dto.MemberRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	members, err := shell.UpdateMember(c.UserContext(), c.Params("id"), req.ToInput())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, members)
}

// Delete handles DELETE /settings/team/members/:id.
func (h *TeamHandler) Delete(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	if err := shell.Team().Delete(c.UserContext(), shell.Principal(), c.Params("id"), confirmation(c)); err != nil {
		return err
	}
	return respond(c, http.StatusOK, shell.Team().Members())
}
