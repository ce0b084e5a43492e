package mail

import (
	"context"
	"errors"
	"strings"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/rental-portal/internal/config"
)

// ErrDisabled is returned when no mail provider is configured.
var ErrDisabled = errors.New("mail: dispatcher disabled")

// Dispatcher delivers portal mail. Session flows treat delivery as
// fire-and-forget: failures are logged by the subscriber, never surfaced to
// the customer.
type Dispatcher interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

type resendDispatcher struct {
	client *resend.Client
	from   string
}

type disabledDispatcher struct{}

// New returns a Resend-backed dispatcher, or an inert one when no API key is
// configured so local runs work without a mail account.
func New(cfg config.MailConfig, logger *zap.Logger) Dispatcher {
	if strings.TrimSpace(cfg.ResendAPIKey) == "" {
		logger.Warn("mail dispatcher disabled; magic-link mail will not be delivered")
		return &disabledDispatcher{}
	}
	return &resendDispatcher{
		client: resend.NewClient(cfg.ResendAPIKey),
		from:   cfg.From,
	}
}

func (d *resendDispatcher) Send(_ context.Context, to, subject, html, text string) error {
	_, err := d.client.Emails.Send(&resend.SendEmailRequest{
		From:    d.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
		Text:    text,
	})
	return err
}

func (d *disabledDispatcher) Send(_ context.Context, _, _, _, _ string) error {
	return ErrDisabled
}
