package magiclink

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/rental-portal/internal/directory"
	"github.com/spec-kit/rental-portal/internal/events"
	"github.com/spec-kit/rental-portal/internal/store"
	"github.com/spec-kit/rental-portal/pkg/util/errorutil"
)

const (
	// Link lifetime is part of the login contract, not a tuning knob.
	linkTTL = 15 * time.Minute

	// 32 random bytes, well past the 128-bit floor for unguessable tokens.
	tokenBytes = 32
)

// Service issues and redeems single-use magic-link tokens. A token maps to an
// email address only; resolving the customer behind it is the caller's job.
type Service struct {
	sessions   store.SessionStore
	directory  directory.Client
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewService builds a magic-link service.
func NewService(sessions store.SessionStore, dir directory.Client, dispatcher events.Dispatcher, logger *zap.Logger) *Service {
	return &Service{
		sessions:   sessions,
		directory:  dir,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Send issues a login link for the email when the directory knows it. Unknown
// emails return nil with no stored token and no mail: the response must be
// indistinguishable from the known case, so enumeration attempts learn
// nothing. The miss is logged internally.
func (s *Service) Send(ctx context.Context, email string) error {
	customer, err := s.directory.FindCustomerByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			s.logger.Info("magic link requested for unknown email", zap.String("email", email))
			return nil
		}
		if errors.Is(err, directory.ErrUnavailable) {
			return errorutil.NewServiceUnavailable(err)
		}
		return errorutil.NewInternalError(err)
	}

	token, err := generateToken()
	if err != nil {
		return errorutil.NewInternalError(err)
	}

	expiresAt := time.Now().Add(linkTTL)
	if err := s.sessions.SaveMagicLink(ctx, token, store.MagicLink{Email: customer.Email, ExpiresAt: expiresAt}); err != nil {
		return errorutil.NewInternalError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventMagicLinkIssued,
		CustomerID: customer.ID,
		Payload: events.MagicLinkIssuedPayload{
			Email:     customer.Email,
			Name:      customer.FullName(),
			Token:     token,
			ExpiresAt: expiresAt,
		},
	})

	s.logger.Info("magic link issued", zap.String("customer_id", customer.ID))
	return nil
}

// Redeem consumes a token and returns the email it was issued for. The store
// removal happens before any success is reported, so a second redemption of
// the same token always fails.
func (s *Service) Redeem(ctx context.Context, token string) (string, error) {
	link, ok, err := s.sessions.TakeMagicLink(ctx, token)
	if err != nil {
		return "", errorutil.NewInternalError(err)
	}
	if !ok {
		return "", errorutil.NewInvalidMagicLink()
	}
	if link.Expired(time.Now()) {
		return "", errorutil.NewExpiredMagicLink()
	}
	return link.Email, nil
}

func generateToken() (string, error) {
	buffer := make([]byte, tokenBytes)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

func (s *Service) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
