package domain

import "time"

// BookingStatus represents lifecycle states for a rental booking.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusActive    BookingStatus = "ACTIVE"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Booking is the directory's record for a rental booking, read-through only.
type Booking struct {
	ID           string
	Number       string
	CustomerID   string
	VehicleModel string
	Status       BookingStatus
	StartsAt     time.Time
	EndsAt       time.Time
}
