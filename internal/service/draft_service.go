package service

import (
	"context"
	"errors"

	"github.com/spec-kit/crm-console/internal/domain"
	"github.com/spec-kit/crm-console/internal/localstate"
	"github.com/spec-kit/crm-console/pkg/validator"
	apperrors "github.com/spec-kit/crm-console/pkg/util/errorutil"
)

// DraftService caches unsaved company and billing forms per caller.
type DraftService struct {
	company *localstate.Repository[domain.CompanyInfoDraft]
	billing *localstate.Repository[domain.BillingInfoDraft]
}

// NewDraftService binds both drafts to backend.
func NewDraftService(backend localstate.Backend) *DraftService {
	schema := localstate.Schema{Version: 1}
	return &DraftService{
		company: localstate.NewRepository[domain.CompanyInfoDraft](backend, "company_info_draft", schema),
		billing: localstate.NewRepository[domain.BillingInfoDraft](backend, "billing_info_draft", schema),
	}
}

// CompanyInfo returns the cached company form, empty when none was saved.
func (s *DraftService) CompanyInfo(ctx context.Context, namespace string) (domain.CompanyInfoDraft, error) {
	draft, err := s.company.Get(ctx, namespace)
	if err != nil {
		return draft, apperrors.NewInternalError(err)
	}
	return draft, nil
}

// SaveCompanyInfo validates and caches the company form.
func (s *DraftService) SaveCompanyInfo(ctx context.Context, namespace string, draft domain.CompanyInfoDraft) error {
	if err := validateDraft(draft); err != nil {
		return err
	}
	if err := s.company.Set(ctx, namespace, draft); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// BillingInfo returns the cached billing form.
func (s *DraftService) BillingInfo(ctx context.Context, namespace string) (domain.BillingInfoDraft, error) {
	draft, err := s.billing.Get(ctx, namespace)
	if err != nil {
		return draft, apperrors.NewInternalError(err)
	}
	return draft, nil
}

// SaveBillingInfo validates and caches the billing form.
func (s *DraftService) SaveBillingInfo(ctx context.Context, namespace string, draft domain.BillingInfoDraft) error {
	if err := validateDraft(draft); err != nil {
		return err
	}
	if err := s.billing.Set(ctx, namespace, draft); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func validateDraft(draft any) error {
	err := validator.Struct(draft)
	if err == nil {
		return nil
	}
	var fields validator.FieldErrors
	if errors.As(err, &fields) {
		return apperrors.NewValidationError("Please correct the highlighted fields.", map[string]any{"fields": fields})
	}
	return apperrors.NewInternalError(err)
}
