package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/rental-portal/internal/config"
	"github.com/spec-kit/rental-portal/internal/events"
	"github.com/spec-kit/rental-portal/internal/mail"
	"github.com/spec-kit/rental-portal/internal/observability"
)

// NotificationService turns session events into mail, audit logs and counters.
type NotificationService struct {
	dispatcher events.Dispatcher
	mailer     mail.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.MailConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, mailer mail.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg config.MailConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		mailer:     mailer,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventMagicLinkIssued, n.handleMagicLinkIssued)
	n.dispatcher.Subscribe(events.EventCustomerLoggedIn, n.handleCustomerLoggedIn)
	n.dispatcher.Subscribe(events.EventSessionRefreshed, n.handleSessionRefreshed)
	n.dispatcher.Subscribe(events.EventCustomerLoggedOut, n.handleCustomerLoggedOut)
}

func (n *NotificationService) handleMagicLinkIssued(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MagicLinkIssuedPayload)
	if !ok {
		n.logger.Warn("MagicLinkIssued with unexpected payload", zap.String("event_id", event.ID))
		return nil
	}

	link := n.loginLink(payload.Token)
	subject := "Your rental portal login link"
	html := fmt.Sprintf(
		"<p>Click to sign in to the rental portal:</p><p><a href=%q>Sign in</a></p><p>The link works once and expires in 15 minutes.</p>",
		link,
	)
	text := fmt.Sprintf("Sign in to the rental portal: %s (single use, expires in 15 minutes)", link)

	if err := n.mailer.Send(ctx, payload.Email, subject, html, text); err != nil {
		// Delivery problems stay internal; the customer already received
		// the anti-enumeration success response.
		n.logger.Warn("magic link mail not delivered",
			zap.String("customer_id", event.CustomerID),
			zap.Error(err))
		return nil
	}

	n.logger.Info("magic link mail dispatched", zap.String("customer_id", event.CustomerID))
	return nil
}

func (n *NotificationService) handleCustomerLoggedIn(_ context.Context, event events.Event) error {
	if payload, ok := event.Payload.(events.CustomerLoggedInPayload); ok {
		n.metrics.RecordLogin(payload.Method)
	}
	n.logger.Info("CustomerLoggedIn", zap.String("customer_id", event.CustomerID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleSessionRefreshed(_ context.Context, event events.Event) error {
	n.logger.Info("SessionRefreshed", zap.String("customer_id", event.CustomerID))
	return nil
}

func (n *NotificationService) handleCustomerLoggedOut(_ context.Context, event events.Event) error {
	n.logger.Info("CustomerLoggedOut", zap.String("customer_id", event.CustomerID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) loginLink(token string) string {
	base := strings.TrimRight(n.cfg.LinkBaseURL, "/")
	return fmt.Sprintf("%s/login/magic?token=%s", base, url.QueryEscape(token))
}
