package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-console/internal/api/dto"
	"github.com/spec-kit/crm-console/internal/service"
)

// IntegrationsHandler exposes integration connection managers.
type IntegrationsHandler struct {
	sessions *service.SessionRegistry
}

// NewIntegrationsHandler constructs handler.
func NewIntegrationsHandler(sessions *service.SessionRegistry) *IntegrationsHandler {
	return &IntegrationsHandler{sessions: sessions}
}

func (h *IntegrationsHandler) manager(c *fiber.Ctx) (*service.SettingsShell, *service.ConnectionManager, error) {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return nil, nil, err
	}
	m, err := shell.Integration(c.Params("name"))
	if err != nil {
		return nil, nil, err
	}
	return shell, m, nil
}

// Get handles GET /settings/integrations/:name and re-derives status from the backend.
func (h *IntegrationsHandler) Get(c *fiber.Ctx) error {
	_, m, err := h.manager(c)
	if err != nil {
		return err
	}
	view, err := m.Refresh(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, view)
}

// OpenConnect handles POST /settings/integrations/:name/connect.
func (h *IntegrationsHandler) OpenConnect(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	draft, err := shell.OpenConnectFlow(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewCredentialDraftResponse(draft))
}

// CancelConnect handles DELETE /settings/integrations/:name/connect.
func (h *IntegrationsHandler) CancelConnect(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	view, err := shell.CancelConnectFlow(c.Params("name"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, view)
}

// SaveDraft handles PUT /settings/integrations/:name/draft.
func (h *IntegrationsHandler) SaveDraft(c *fiber.Ctx) error {
	shell, m, err := h.manager(c)
	if err != nil {
		return err
	}
	var req dto.CredentialsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := m.SaveDraft(c.UserContext(), shell.Principal().Namespace(), req.ToDraft()); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Submit handles POST /settings/integrations/:name/credentials.
func (h *IntegrationsHandler) Submit(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	var req dto.CredentialsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	view, err := shell.SubmitCredentials(c.UserContext(), c.Params("name"), req.AccountID, req.AuthToken)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, view)
}

// Disconnect handles DELETE /settings/integrations/:name.
func (h *IntegrationsHandler) Disconnect(c *fiber.Ctx) error {
	_, m, err := h.manager(c)
	if err != nil {
		return err
	}
	view, err := m.Disconnect(c.UserContext(), confirmation(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, view)
}

// Sync handles POST /settings/integrations/:name/sync.
func (h *IntegrationsHandler) Sync(c *fiber.Ctx) error {
	_, m, err := h.manager(c)
	if err != nil {
		return err
	}
	added, err := m.SyncDependentResources(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.SyncResponse{Added: added})
}

// Resources handles GET /settings/integrations/:name/resources.
func (h *IntegrationsHandler) Resources(c *fiber.Ctx) error {
	_, m, err := h.manager(c)
	if err != nil {
		return err
	}
	numbers, err := m.Resources(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, numbers)
}
