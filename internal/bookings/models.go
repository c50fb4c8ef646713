package bookings

import (
	"errors"

	"staybook/internal/reservations"
)

// Booking-attempt outcomes reported to callers
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomUnavailable    = errors.New("room unavailable for the requested dates")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrNotFound           = errors.New("reservation not found")
	ErrInvalidState       = errors.New("reservation cannot change state")
	ErrInvalidRequest     = errors.New("invalid booking request")
	ErrServiceUnavailable = errors.New("booking service unavailable")
)

// State is where a booking attempt ended up
type State string

const (
	StateRequested  State = "REQUESTED"
	StateHeld       State = "HELD"
	StateConfirmed  State = "CONFIRMED"
	StateRolledBack State = "ROLLED_BACK"
)

// BookingRequest is one guest's attempt to reserve a room
type BookingRequest struct {
	RoomID       string
	Stay         reservations.DateRange
	GuestID      string
	PaymentToken string
}

// BookingResult describes the attempt's final state. On a rolled back
// attempt it carries the released reservation alongside ErrPaymentFailed.
type BookingResult struct {
	Reservation  reservations.Reservation
	State        State
	SettlementID string
	Amount       float64
}
