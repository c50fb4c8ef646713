package bookings

import (
	"time"

	"staybook/internal/payments"
	"staybook/internal/reservations"
)

type ReservationResponse struct {
	ID            string     `json:"id"`
	RoomID        string     `json:"room_id"`
	GuestID       string     `json:"guest_id"`
	CheckIn       string     `json:"check_in"`
	CheckOut      string     `json:"check_out"`
	Nights        int        `json:"nights"`
	Status        string     `json:"status"`
	Amount        float64    `json:"amount"`
	SettlementID  string     `json:"settlement_id,omitempty"`
	HoldExpiresAt time.Time  `json:"hold_expires_at"`
	CreatedAt     time.Time  `json:"created_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	ReleasedAt    *time.Time `json:"released_at,omitempty"`
	ExpiredAt     *time.Time `json:"expired_at,omitempty"`
}

type BookingResponse struct {
	State        State               `json:"state"`
	Reservation  ReservationResponse `json:"reservation"`
	SettlementID string              `json:"settlement_id,omitempty"`
	Amount       float64             `json:"amount"`
}

type SettlementResponse struct {
	ID            string    `json:"id"`
	ReservationID string    `json:"reservation_id"`
	GuestID       string    `json:"guest_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type SweepResponse struct {
	Expired int       `json:"expired"`
	SweptAt time.Time `json:"swept_at"`
}

func ToReservationResponse(r reservations.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:            r.ID,
		RoomID:        r.RoomID,
		GuestID:       r.GuestID,
		CheckIn:       r.CheckIn.Format(reservations.DateLayout),
		CheckOut:      r.CheckOut.Format(reservations.DateLayout),
		Nights:        r.Range().Nights(),
		Status:        string(r.Status),
		Amount:        r.Amount,
		SettlementID:  r.SettlementID,
		HoldExpiresAt: r.HoldExpiresAt,
		CreatedAt:     r.CreatedAt,
		ConfirmedAt:   r.ConfirmedAt,
		ReleasedAt:    r.ReleasedAt,
		ExpiredAt:     r.ExpiredAt,
	}
}

func ToReservationResponses(rs []reservations.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, ToReservationResponse(r))
	}
	return out
}

func ToSettlementResponses(settlements []payments.Settlement) []SettlementResponse {
	out := make([]SettlementResponse, 0, len(settlements))
	for _, s := range settlements {
		out = append(out, SettlementResponse{
			ID:            s.ID,
			ReservationID: s.ReservationID,
			GuestID:       s.GuestID,
			Amount:        s.Amount,
			Currency:      s.Currency,
			Status:        s.Status,
			Reason:        s.FailureReason,
			CreatedAt:     s.CreatedAt,
			UpdatedAt:     s.UpdatedAt,
		})
	}
	return out
}

func ToBookingResponse(result *BookingResult) BookingResponse {
	return BookingResponse{
		State:        result.State,
		Reservation:  ToReservationResponse(result.Reservation),
		SettlementID: result.SettlementID,
		Amount:       result.Amount,
	}
}
