package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventReservationConfirmed EventType = "reservation.confirmed"
	EventReservationReleased  EventType = "reservation.released"
	EventReservationExpired   EventType = "reservation.expired"
)

func IsValidEventType(t EventType) bool {
	switch t {
	case EventReservationConfirmed, EventReservationReleased, EventReservationExpired:
		return true
	default:
		return false
	}
}

// BookingEvent is published whenever a reservation reaches a settled outcome
type BookingEvent struct {
	ID            uuid.UUID `json:"id"`
	Type          EventType `json:"type"`
	ReservationID string    `json:"reservation_id"`
	RoomID        string    `json:"room_id"`
	GuestID       string    `json:"guest_id"`
	CheckIn       string    `json:"check_in"`
	CheckOut      string    `json:"check_out"`
	Amount        float64   `json:"amount,omitempty"`
	SettlementID  string    `json:"settlement_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewBookingEvent stamps a fresh id and time on an event
func NewBookingEvent(eventType EventType, reservationID, roomID, guestID string) *BookingEvent {
	return &BookingEvent{
		ID:            uuid.New(),
		Type:          eventType,
		ReservationID: reservationID,
		RoomID:        roomID,
		GuestID:       guestID,
		OccurredAt:    time.Now().UTC(),
	}
}

func (e *BookingEvent) WithStay(checkIn, checkOut string) *BookingEvent {
	e.CheckIn = checkIn
	e.CheckOut = checkOut
	return e
}

func (e *BookingEvent) WithSettlement(settlementID string, amount float64) *BookingEvent {
	e.SettlementID = settlementID
	e.Amount = amount
	return e
}

// GetPartitionKey keeps every event for a room on one partition, in order
func (e *BookingEvent) GetPartitionKey() string {
	return e.RoomID
}

func (e *BookingEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(data []byte) (*BookingEvent, error) {
	var e BookingEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
