package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-console/internal/service"
)

// FeedsHandler serves the polled SMS and conversation feeds.
type FeedsHandler struct {
	sessions *service.SessionRegistry
}

// NewFeedsHandler constructs handler.
func NewFeedsHandler(sessions *service.SessionRegistry) *FeedsHandler {
	return &FeedsHandler{sessions: sessions}
}

// ScheduledMessages handles GET /feeds/scheduled-messages. ?refresh=true requests an
// immediate poll; the response still carries the current snapshot.
func (h *FeedsHandler) ScheduledMessages(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	feed := shell.ScheduledMessages()
	if c.QueryBool("refresh") {
		feed.Refresh()
	}
	return respond(c, http.StatusOK, feed.Snapshot())
}

// Conversations handles GET /feeds/conversations.
func (h *FeedsHandler) Conversations(c *fiber.Ctx) error {
	shell, err := currentShell(c, h.sessions)
	if err != nil {
		return err
	}
	feed := shell.Conversations()
	if c.QueryBool("refresh") {
		feed.Refresh()
	}
	return respond(c, http.StatusOK, feed.Snapshot())
}
