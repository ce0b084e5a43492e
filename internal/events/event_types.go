package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventMagicLinkIssued   EventType = "magic_link_issued"
	EventCustomerLoggedIn  EventType = "customer_logged_in"
	EventSessionRefreshed  EventType = "session_refreshed"
	EventCustomerLoggedOut EventType = "customer_logged_out"
)

// Event represents a session event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	CustomerID string      `json:"customer_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// MagicLinkIssuedPayload carries what the mail handler needs to build and
// address the login link. The token rides the event only; it is never logged.
type MagicLinkIssuedPayload struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CustomerLoggedInPayload payload.
type CustomerLoggedInPayload struct {
	Email         string `json:"email"`
	Method        string `json:"method"`
	BookingNumber string `json:"booking_number,omitempty"`
}

// Login methods recorded on customer_logged_in events.
const (
	LoginMethodBooking   = "booking"
	LoginMethodMagicLink = "magic_link"
)

// CustomerLoggedOutPayload payload.
type CustomerLoggedOutPayload struct {
	RefreshRevoked bool `json:"refresh_revoked"`
}
