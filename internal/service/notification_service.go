package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/routing-engine/internal/config"
	"github.com/spec-kit/routing-engine/internal/events"
)

// NotificationService logs routing events and forwards them to the webhook stub.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger.With(zap.String("component", "notifications")),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketPushed, n.handleTicketMoved)
	n.dispatcher.Subscribe(events.EventTicketGrabbed, n.handleTicketMoved)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketMoved)
	n.dispatcher.Subscribe(events.EventTicketCompleted, n.handleTicketCompleted)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("tag", event.TicketTag), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketMoved(ctx context.Context, event events.Event) error {
	n.logger.Debug("TicketMoved",
		zap.String("event_type", string(event.Type)),
		zap.String("tag", event.TicketTag),
		zap.String("actor", event.Actor),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketCompleted(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCompleted", zap.String("tag", event.TicketTag), zap.String("actor", event.Actor))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("tag", event.TicketTag),
		zap.String("event_type", string(event.Type)))
}
