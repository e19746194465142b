package service

import (
	"context"
	"errors"

	"github.com/spec-kit/crm-console/internal/domain"
	"github.com/spec-kit/crm-console/internal/upstream"
	apperrors "github.com/spec-kit/crm-console/pkg/util/errorutil"
)

// TeamAPI is the slice of the CRM backend used by the team member directory.
type TeamAPI interface {
	GetProfile(ctx context.Context) (*domain.Profile, error)
	ListTeamMembers(ctx context.Context) ([]domain.TeamMember, error)
	ListCompanyTeamMembers(ctx context.Context, companyID string) ([]domain.TeamMember, error)
	InviteTeamMember(ctx context.Context, req upstream.InviteRequest) (*upstream.InviteResponse, error)
	UpdateTeamMember(ctx context.Context, id string, req upstream.MemberUpdate) (*domain.TeamMember, error)
	DeleteTeamMember(ctx context.Context, id string) error
}

// IntegrationAPI is the slice of the CRM backend used by connection managers.
type IntegrationAPI interface {
	GetIntegrationSettings(ctx context.Context, name string) (*domain.IntegrationSettings, error)
	CreateIntegrationSettings(ctx context.Context, name string, creds upstream.Credentials) error
	UpdateIntegrationSettings(ctx context.Context, name string, creds upstream.Credentials) error
	DeleteIntegrationSettings(ctx context.Context, name string) error
	SyncPhoneNumbers(ctx context.Context, name string) (int, error)
	ListPhoneNumbers(ctx context.Context, name string) ([]domain.PhoneNumber, error)
}

// FeedAPI is the slice of the CRM backend polled by feeds.
type FeedAPI interface {
	ListScheduledMessages(ctx context.Context) ([]domain.ScheduledMessage, error)
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
}

// Confirmer approves destructive actions before anything is changed.
type Confirmer interface {
	Confirm(ctx context.Context, action string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, action string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, action string) bool {
	return f(ctx, action)
}

// Confirmed returns a Confirmer with a fixed answer, as carried by an HTTP request.
func Confirmed(ok bool) Confirmer {
	return ConfirmFunc(func(context.Context, string) bool { return ok })
}

func confirm(ctx context.Context, c Confirmer, action string) error {
	if c == nil || !c.Confirm(ctx, action) {
		return apperrors.NewConfirmationRequired(action)
	}
	return nil
}

// backendError converts an upstream failure into a DomainError. The backend detail is
// used verbatim when present, fallback otherwise.
func backendError(err error, fallback string) error {
	if err == nil {
		return nil
	}
	if upErr, ok := upstream.AsError(err); ok {
		msg := upErr.Detail
		if msg == "" {
			msg = fallback
		}
		return apperrors.NewBackendError(msg, upErr.Status)
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewNetworkError(err)
	}
	return apperrors.NewInternalError(err)
}
