package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-console/internal/domain"
	"github.com/spec-kit/crm-console/internal/service"
)

// DraftsHandler caches the company and billing forms.
type DraftsHandler struct {
	drafts *service.DraftService
}

// NewDraftsHandler constructs handler.
func NewDraftsHandler(drafts *service.DraftService) *DraftsHandler {
	return &DraftsHandler{drafts: drafts}
}

// GetCompany handles GET /settings/drafts/company.
func (h *DraftsHandler) GetCompany(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	draft, err := h.drafts.CompanyInfo(c.UserContext(), p.Namespace())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, draft)
}

// PutCompany handles PUT /settings/drafts/company.
func (h *DraftsHandler) PutCompany(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var draft domain.CompanyInfoDraft
	if err := parseBody(c, &draft); err != nil {
		return err
	}
	if err := h.drafts.SaveCompanyInfo(c.UserContext(), p.Namespace(), draft); err != nil {
		return err
	}
	return respond(c, http.StatusOK, draft)
}

// GetBilling handles GET /settings/drafts/billing.
func (h *DraftsHandler) GetBilling(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	draft, err := h.drafts.BillingInfo(c.UserContext(), p.Namespace())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, draft)
}

// PutBilling handles PUT /settings/drafts/billing.
func (h *DraftsHandler) PutBilling(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var draft domain.BillingInfoDraft
	if err := parseBody(c, &draft); err != nil {
		return err
	}
	if err := h.drafts.SaveBillingInfo(c.UserContext(), p.Namespace(), draft); err != nil {
		return err
	}
	return respond(c, http.StatusOK, draft)
}
