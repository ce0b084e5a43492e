package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/rental-portal/internal/directory"
	"github.com/spec-kit/rental-portal/internal/domain"
	"github.com/spec-kit/rental-portal/internal/events"
	"github.com/spec-kit/rental-portal/internal/magiclink"
	"github.com/spec-kit/rental-portal/internal/token"
	"github.com/spec-kit/rental-portal/pkg/util/errorutil"
)

// Login is the outcome of a successful authentication. Bookings are loaded
// for the booking-number flow only; the magic-link flow returns them nil.
type Login struct {
	Customer *domain.Customer
	Bookings []domain.Booking
	Tokens   *domain.TokenPair
}

// Service is the facade the HTTP layer talks to. It orchestrates the
// verifier, the magic-link service and the token service; it owns no session
// state of its own.
type Service struct {
	verifier   *directory.Verifier
	directory  directory.Client
	magicLinks *magiclink.Service
	tokens     *token.Service
	dispatcher events.Dispatcher
}

// Dependencies encapsulates what the facade orchestrates.
type Dependencies struct {
	Verifier   *directory.Verifier
	Directory  directory.Client
	MagicLinks *magiclink.Service
	Tokens     *token.Service
	Dispatcher events.Dispatcher
}

// NewService builds the facade.
func NewService(deps Dependencies) *Service {
	return &Service{
		verifier:   deps.Verifier,
		directory:  deps.Directory,
		magicLinks: deps.MagicLinks,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
	}
}

// LoginWithBooking authenticates a customer by proving they know the email a
// booking was made under, then issues a token pair and loads their bookings.
func (s *Service) LoginWithBooking(ctx context.Context, bookingNumber, email string) (*Login, error) {
	booking, err := s.verifier.VerifyBooking(ctx, bookingNumber, email)
	if err != nil {
		return nil, err
	}

	customer, err := s.directory.FindCustomerByID(ctx, booking.CustomerID)
	if err != nil {
		return nil, directoryFailure(err)
	}

	bookings, err := s.directory.ListBookingsByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, directoryFailure(err)
	}

	tokens, err := s.tokens.Issue(ctx, customer)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventCustomerLoggedIn,
		CustomerID: customer.ID,
		Payload: events.CustomerLoggedInPayload{
			Email:         customer.Email,
			Method:        events.LoginMethodBooking,
			BookingNumber: booking.Number,
		},
	})

	return &Login{Customer: customer, Bookings: bookings, Tokens: tokens}, nil
}

// SendMagicLink requests a login link for the email. The response shape is
// identical whether or not the email is known.
func (s *Service) SendMagicLink(ctx context.Context, email string) error {
	return s.magicLinks.Send(ctx, email)
}

// VerifyMagicLink redeems a link token and converges on the same issuance
// path as LoginWithBooking.
func (s *Service) VerifyMagicLink(ctx context.Context, linkToken string) (*Login, error) {
	email, err := s.magicLinks.Redeem(ctx, linkToken)
	if err != nil {
		return nil, err
	}

	customer, err := s.directory.FindCustomerByEmail(ctx, email)
	if err != nil {
		return nil, directoryFailure(err)
	}

	tokens, err := s.tokens.Issue(ctx, customer)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventCustomerLoggedIn,
		CustomerID: customer.ID,
		Payload: events.CustomerLoggedInPayload{
			Email:  customer.Email,
			Method: events.LoginMethodMagicLink,
		},
	})

	return &Login{Customer: customer, Tokens: tokens}, nil
}

// Refresh exchanges a whitelisted refresh token for a new pair. On failure
// the session is over; the caller re-authenticates from scratch.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	pair, customer, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventSessionRefreshed,
		CustomerID: customer.ID,
	})
	return pair, nil
}

// Logout revokes the presented access token, and the refresh token when one
// accompanies it. Terminal for those tokens; other pairs stay live.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	customerID := ""
	if claims, err := s.tokens.VerifyAccess(ctx, accessToken); err == nil {
		customerID = claims.CustomerID
	}

	if err := s.tokens.Revoke(ctx, accessToken, refreshToken); err != nil {
		return err
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventCustomerLoggedOut,
		CustomerID: customerID,
		Payload: events.CustomerLoggedOutPayload{
			RefreshRevoked: refreshToken != "",
		},
	})
	return nil
}

// WhoAmI answers from the token's own claims without a directory call, so
// profile edits show up at next login rather than immediately.
func (s *Service) WhoAmI(ctx context.Context, accessToken string) (*domain.Principal, error) {
	claims, err := s.tokens.VerifyAccess(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return claims.Principal(), nil
}

// directoryFailure maps raw directory errors for lookups that run after the
// caller's identity is already established.
func directoryFailure(err error) error {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		return errorutil.NewCustomerNotFound()
	case errors.Is(err, directory.ErrUnavailable):
		return errorutil.NewServiceUnavailable(err)
	default:
		return errorutil.NewInternalError(err)
	}
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
