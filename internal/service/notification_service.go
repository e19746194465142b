package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-console/internal/events"
)

// NotificationService writes an audit trail of settings changes.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventRoleAdded, n.handleRoleChanged)
	n.dispatcher.Subscribe(events.EventRoleDeleted, n.handleRoleChanged)
	n.dispatcher.Subscribe(events.EventMemberInvited, n.handleMemberChanged)
	n.dispatcher.Subscribe(events.EventMemberUpdated, n.handleMemberChanged)
	n.dispatcher.Subscribe(events.EventMemberDeleted, n.handleMemberChanged)
	n.dispatcher.Subscribe(events.EventIntegrationConnected, n.handleIntegrationChanged)
	n.dispatcher.Subscribe(events.EventIntegrationDisconnected, n.handleIntegrationChanged)
	n.dispatcher.Subscribe(events.EventIntegrationSynced, n.handleIntegrationChanged)
	n.dispatcher.Subscribe(events.EventIntegrationSyncFailed, n.handleSyncFailed)
}

func (n *NotificationService) fields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("subject", event.Actor.Subject),
		zap.String("company_id", event.Actor.CompanyID),
	}
}

func (n *NotificationService) handleRoleChanged(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.RolePayload)
	n.logger.Info("custom role changed", append(n.fields(event), zap.String("role", payload.Role))...)
	return nil
}

func (n *NotificationService) handleMemberChanged(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.MemberPayload)
	n.logger.Info("team member changed", append(n.fields(event),
		zap.String("member_id", payload.MemberID),
		zap.String("role", payload.Role))...)
	return nil
}

func (n *NotificationService) handleIntegrationChanged(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.IntegrationPayload)
	n.logger.Info("integration changed", append(n.fields(event),
		zap.String("integration", payload.Integration),
		zap.Int("added", payload.Added))...)
	return nil
}

func (n *NotificationService) handleSyncFailed(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.IntegrationPayload)
	n.logger.Warn("integration sync failed", append(n.fields(event),
		zap.String("integration", payload.Integration),
		zap.String("error", payload.Error))...)
	return nil
}
