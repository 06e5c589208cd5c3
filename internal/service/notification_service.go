package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/config"
	"github.com/spec-kit/repair-desk/internal/events"
)

// NotificationService emits notifications for ticket changes.
type NotificationService struct {
	feed   events.Feed
	logger *zap.Logger
	cfg    config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(feed events.Feed, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		feed:   feed,
		logger: logger,
		cfg:    cfg,
	}
}

// Run consumes the change feed until ctx is done or the subscription fails.
// Feed delivery coalesces bursts, so events of a burst may be dropped.
func (n *NotificationService) Run(ctx context.Context) error {
	if n.feed == nil {
		return nil
	}
	feed, errs, err := n.feed.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return err
		case event, ok := <-feed:
			if !ok {
				return nil
			}
			n.Handle(ctx, event)
		}
	}
}

// Handle dispatches a single event.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) {
	switch event.Type {
	case events.EventTicketCreated:
		n.handleTicketCreated(ctx, event)
	case events.EventTicketUpdated:
		n.handleTicketUpdated(ctx, event)
	default:
		n.logger.Debug("ignoring event", zap.String("event_type", string(event.Type)))
	}
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) {
	n.logger.Info("TicketCreated", zap.String("ticket_key", event.TicketKey), zap.String("ticket_id", event.TicketID))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
}

func (n *NotificationService) handleTicketUpdated(ctx context.Context, event events.Event) {
	n.logger.Info("TicketUpdated", zap.String("ticket_key", event.TicketKey), zap.String("ticket_id", event.TicketID))
	n.sendWebhookNotificationStub(ctx, event)
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
