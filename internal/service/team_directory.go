package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-console/internal/auth"
	"github.com/spec-kit/crm-console/internal/domain"
	"github.com/spec-kit/crm-console/internal/events"
	"github.com/spec-kit/crm-console/internal/upstream"
	apperrors "github.com/spec-kit/crm-console/pkg/util/errorutil"
)

// InviteResult is returned once a member was created.
type InviteResult struct {
	Member          domain.TeamMember   `json:"member"`
	DefaultPassword string              `json:"default_password"`
	Members         []domain.TeamMember `json:"members"`
}

// TeamDirectory lists and mutates a company's team members and keeps the last listing.
type TeamDirectory struct {
	api          TeamAPI
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	refetchDelay time.Duration

	mu      sync.RWMutex
	members []domain.TeamMember
}

// NewTeamDirectory constructs the directory. refetchDelay is waited between a
// successful invite and the follow-up listing.
func NewTeamDirectory(api TeamAPI, dispatcher events.Dispatcher, logger *zap.Logger, refetchDelay time.Duration) *TeamDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeamDirectory{
		api:          api,
		dispatcher:   dispatcher,
		logger:       logger,
		refetchDelay: refetchDelay,
	}
}

// Members returns a copy of the last listing.
func (d *TeamDirectory) Members() []domain.TeamMember {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.TeamMember{}, d.members...)
}

// List fetches the members visible to the caller and replaces the local listing.
// Super admins see every company; everyone else is scoped by their profile's company.
func (d *TeamDirectory) List(ctx context.Context, p *auth.Principal) ([]domain.TeamMember, error) {
	var (
		members []domain.TeamMember
		err     error
	)
	if p.IsSuperAdmin() {
		members, err = d.api.ListTeamMembers(ctx)
	} else {
		var profile *domain.Profile
		profile, err = d.api.GetProfile(ctx)
		if err != nil {
			return nil, apperrors.NewAuthError("Unable to load your profile.", err)
		}
		if strings.TrimSpace(profile.CompanyID) == "" {
			return nil, apperrors.NewConfigError("Your account is not linked to a company.")
		}
		members, err = d.api.ListCompanyTeamMembers(ctx, profile.CompanyID)
	}
	if err != nil {
		return nil, backendError(err, "Failed to load team members.")
	}

	if members == nil {
		members = []domain.TeamMember{}
	}
	d.mu.Lock()
	d.members = members
	d.mu.Unlock()
	return append([]domain.TeamMember{}, members...), nil
}

// Create invites a new member. Input is validated before any backend call.
func (d *TeamDirectory) Create(ctx context.Context, p *auth.Principal, in MemberInput) (*InviteResult, error) {
	f := in.fields()
	if err := validateMember(f); err != nil {
		return nil, err
	}

	resp, err := d.api.InviteTeamMember(ctx, upstream.InviteRequest{
		FirstName: f.firstName,
		LastName:  f.lastName,
		Email:     f.email,
		Role:      f.role,
		CompanyID: p.CompanyID,
	})
	if err != nil {
		return nil, mapCreateError(err)
	}

	d.publish(ctx, p, events.EventMemberInvited, resp.Member)
	d.logger.Info("team member invited", zap.String("member_id", resp.Member.ID), zap.String("role", resp.Member.Role))

	result := &InviteResult{Member: resp.Member, DefaultPassword: resp.DefaultPassword}

	// the backend's listing trails the invite
	if d.refetchDelay > 0 {
		timer := time.NewTimer(d.refetchDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.Members = d.withMember(resp.Member)
			return result, nil
		case <-timer.C:
		}
	}

	members, err := d.List(ctx, p)
	if err != nil {
		d.logger.Warn("refetch after invite failed", zap.Error(err))
		members = d.withMember(resp.Member)
	}
	result.Members = members
	return result, nil
}

// Update replaces a member record and refetches the listing.
func (d *TeamDirectory) Update(ctx context.Context, p *auth.Principal, id string, in MemberInput) ([]domain.TeamMember, error) {
	f := in.fields()
	if err := validateMember(f); err != nil {
		return nil, err
	}

	updated, err := d.api.UpdateTeamMember(ctx, id, upstream.MemberUpdate{
		FirstName: f.firstName,
		LastName:  f.lastName,
		Email:     f.email,
		Role:      f.role,
	})
	if err != nil {
		return nil, mapUpdateError(err)
	}

	d.publish(ctx, p, events.EventMemberUpdated, *updated)

	members, err := d.List(ctx, p)
	if err != nil {
		d.logger.Warn("refetch after update failed", zap.Error(err))
		return d.withMember(*updated), nil
	}
	return members, nil
}

// Delete hard-deletes a member once confirmed and drops it from the local listing.
func (d *TeamDirectory) Delete(ctx context.Context, p *auth.Principal, id string, confirmer Confirmer) error {
	if err := confirm(ctx, confirmer, "delete team member"); err != nil {
		return err
	}
	if err := d.api.DeleteTeamMember(ctx, id); err != nil {
		return backendError(err, "Failed to delete team member.")
	}

	d.mu.Lock()
	removed := domain.TeamMember{ID: id}
	kept := d.members[:0]
	for _, m := range d.members {
		if m.ID == id {
			removed = m
			continue
		}
		kept = append(kept, m)
	}
	d.members = kept
	d.mu.Unlock()

	d.publish(ctx, p, events.EventMemberDeleted, removed)
	return nil
}

// withMember upserts m into the local listing and returns a copy.
func (d *TeamDirectory) withMember(m domain.TeamMember) []domain.TeamMember {
	d.mu.Lock()
	defer d.mu.Unlock()
	replaced := false
	for i := range d.members {
		if d.members[i].ID == m.ID {
			d.members[i] = m
			replaced = true
		}
	}
	if !replaced {
		d.members = append(d.members, m)
	}
	return append([]domain.TeamMember{}, d.members...)
}

func (d *TeamDirectory) publish(ctx context.Context, p *auth.Principal, eventType events.EventType, m domain.TeamMember) {
	if d.dispatcher == nil {
		return
	}
	_ = d.dispatcher.Publish(ctx, events.Event{
		Type:    eventType,
		Actor:   events.Actor{Subject: p.Subject, CompanyID: p.CompanyID},
		Payload: events.MemberPayload{MemberID: m.ID, Email: m.Email, Role: m.Role},
	})
}

func mapCreateError(err error) error {
	upErr, ok := upstream.AsError(err)
	if !ok {
		return backendError(err, "Failed to create team member.")
	}
	detail := upErr.Detail
	switch {
	case strings.Contains(detail, "already registered"):
		return apperrors.NewConflict("A team member with this email is already registered.", map[string]any{"field": "email"})
	case strings.Contains(detail, "exceed"):
		return apperrors.NewValidationError(detail, map[string]any{"reason": "length"})
	case strings.Contains(detail, "Script") || strings.Contains(detail, "HTML"):
		return apperrors.NewValidationError(detail, map[string]any{"reason": "markup"})
	case strings.Contains(detail, "empty"):
		return apperrors.NewValidationError(detail, map[string]any{"reason": "required"})
	}
	return backendError(err, "Failed to create team member.")
}

func mapUpdateError(err error) error {
	if upErr, ok := upstream.AsError(err); ok && strings.Contains(upErr.Detail, "already") {
		return apperrors.NewConflict("This email is already in use by another team member.", map[string]any{"field": "email"})
	}
	return backendError(err, "Failed to update team member.")
}
