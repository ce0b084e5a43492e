package dto

import (
	"time"

	"github.com/spec-kit/rental-portal/internal/domain"
)

// LoginRequest payload for booking-number login.
type LoginRequest struct {
	BookingNumber string `json:"booking_number" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
}

// MagicLinkRequest payload for requesting a login link by mail.
type MagicLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyMagicLinkRequest payload for redeeming a mailed link token.
type VerifyMagicLinkRequest struct {
	Token string `json:"token" validate:"required"`
}

// RefreshRequest payload for rotating a session.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest payload. The refresh token is optional; the access token
// comes from the Authorization header.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"omitempty"`
}

// CustomerResponse mirrors the directory's customer record.
type CustomerResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
}

// BookingResponse summarizes a rental booking for the session payload.
type BookingResponse struct {
	ID            string               `json:"id"`
	BookingNumber string               `json:"booking_number"`
	VehicleModel  string               `json:"vehicle_model"`
	Status        domain.BookingStatus `json:"status"`
	StartsAt      time.Time            `json:"starts_at"`
	EndsAt        time.Time            `json:"ends_at"`
}

// TokenResponse carries a freshly issued token pair.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// SessionResponse is the full login result. Bookings are present for the
// booking-number flow and omitted for magic-link logins.
type SessionResponse struct {
	Customer CustomerResponse  `json:"customer"`
	Bookings []BookingResponse `json:"bookings,omitempty"`
	Tokens   TokenResponse     `json:"tokens"`
}

// PrincipalResponse answers the who-am-I endpoint from token claims.
type PrincipalResponse struct {
	CustomerID string `json:"customer_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
}
