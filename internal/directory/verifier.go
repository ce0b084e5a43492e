package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/rental-portal/internal/cache"
	"github.com/spec-kit/rental-portal/internal/domain"
	"github.com/spec-kit/rental-portal/pkg/util/errorutil"
)

// Verifier confirms that a claimed booking number belongs to an email
// address. Booking lookups are cached; customer loads go to the directory
// every time so the email comparison sees current data.
type Verifier struct {
	client   Client
	bookings *cache.Cache[*domain.Booking]
}

// NewVerifier returns a Verifier reading through the given cache.
func NewVerifier(client Client, bookings *cache.Cache[*domain.Booking]) *Verifier {
	return &Verifier{client: client, bookings: bookings}
}

// VerifyBooking returns the booking only when the directory's customer record
// for it carries the supplied email (compared case-insensitively). Unknown
// bookings, unknown customers and mismatched emails all collapse into
// InvalidCredentials; directory outages stay distinct as ServiceUnavailable
// so the caller can present a retry.
func (v *Verifier) VerifyBooking(ctx context.Context, number, email string) (*domain.Booking, error) {
	booking, err := v.bookings.GetOrSet(bookingCacheKey(number), func() (*domain.Booking, error) {
		return v.client.FindBookingByNumber(ctx, number)
	})
	if err != nil {
		return nil, credentialFailure(err)
	}

	customer, err := v.client.FindCustomerByID(ctx, booking.CustomerID)
	if err != nil {
		return nil, credentialFailure(err)
	}

	if !strings.EqualFold(customer.Email, email) {
		return nil, errorutil.NewInvalidCredentials()
	}
	return booking, nil
}

func bookingCacheKey(number string) string {
	return "booking:" + number
}

// credentialFailure maps directory errors for the login path: a missing
// record proves nothing about ownership, so it reads as bad credentials, not
// as a lookup detail worth exposing.
func credentialFailure(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return errorutil.NewInvalidCredentials()
	case errors.Is(err, ErrUnavailable):
		return errorutil.NewServiceUnavailable(err)
	default:
		return errorutil.NewInternalError(err)
	}
}
