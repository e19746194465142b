package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/spec-kit/crm-console/internal/service"
)

// SettingsHandler exposes the settings shell: tabs and modals.
type SettingsHandler struct {
	sessions *service.SessionRegistry
}

// NewSettingsHandler constructs handler.
func NewSettingsHandler(sessions *service.SessionRegistry) *SettingsHandler {
	return &SettingsHandler{sessions: sessions}
}

// State handles GET /settings/state.
func (h *SettingsHandler) State(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, shell.State())
}

// ActivateTab handles POST /settings/tabs/:tab.
func (h *SettingsHandler) ActivateTab(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	activation, err := shell.Activate(c.UserContext(), service.Tab(utils.CopyString(c.Params("tab"))))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, activation)
}

// OpenModal handles POST /settings/modals/:name.
func (h *SettingsHandler) OpenModal(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	if err := shell.OpenModal(service.Modal(utils.CopyString(c.Params("name")))); err != nil {
		return err
	}
	return respond(c, http.StatusOK, fiber.Map{"modals": shell.Modals()})
}

// CloseModal handles DELETE /settings/modals/:name.
func (h *SettingsHandler) CloseModal(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	shell.CloseModal(service.Modal(utils.CopyString(c.Params("name"))))
	return respond(c, http.StatusOK, fiber.Map{"modals": shell.Modals()})
}
