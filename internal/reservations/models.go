package reservations

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire format for check-in and check-out dates
const DateLayout = "2006-01-02"

var ErrInvalidRange = errors.New("check-out must be after check-in")

// DateRange is a half-open span of civil dates [CheckIn, CheckOut).
// Both ends are normalised to UTC midnight.
type DateRange struct {
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
}

// NewDateRange truncates both ends to their UTC date and validates order
func NewDateRange(checkIn, checkOut time.Time) (DateRange, error) {
	r := DateRange{CheckIn: civil(checkIn), CheckOut: civil(checkOut)}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// ParseDateRange parses two YYYY-MM-DD dates
func ParseDateRange(checkIn, checkOut string) (DateRange, error) {
	in, err := time.Parse(DateLayout, checkIn)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid check_in %q: %w", checkIn, err)
	}
	out, err := time.Parse(DateLayout, checkOut)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid check_out %q: %w", checkOut, err)
	}
	return NewDateRange(in, out)
}

// MustDateRange is ParseDateRange for fixtures; it panics on bad input.
func MustDateRange(checkIn, checkOut string) DateRange {
	r, err := ParseDateRange(checkIn, checkOut)
	if err != nil {
		panic(err)
	}
	return r
}

func (r DateRange) Validate() error {
	if r.CheckIn.IsZero() || r.CheckOut.IsZero() || !r.CheckIn.Before(r.CheckOut) {
		return ErrInvalidRange
	}
	return nil
}

// Nights is the number of nights between check-in and check-out
func (r DateRange) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
}

// Overlaps reports whether [a,b) and [c,d) share at least one night: a < d && c < b
func (r DateRange) Overlaps(o DateRange) bool {
	return r.CheckIn.Before(o.CheckOut) && o.CheckIn.Before(r.CheckOut)
}

func (r DateRange) String() string {
	return r.CheckIn.Format(DateLayout) + ".." + r.CheckOut.Format(DateLayout)
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Status is the lifecycle state of a reservation
type Status string

const (
	StatusHeld      Status = "held"
	StatusConfirmed Status = "confirmed"
	StatusReleased  Status = "released"
	StatusExpired   Status = "expired"
)

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusReleased || s == StatusExpired
}

// Reservation is one booking attempt on a room for a date range
type Reservation struct {
	ID            string     `gorm:"type:varchar(64);primaryKey" json:"id"`
	RoomID        string     `gorm:"type:varchar(64);not null;index:idx_reservations_room_range,priority:1" json:"room_id"`
	GuestID       string     `gorm:"type:varchar(128);not null;index" json:"guest_id"`
	CheckIn       time.Time  `gorm:"type:date;not null;index:idx_reservations_room_range,priority:2" json:"check_in"`
	CheckOut      time.Time  `gorm:"type:date;not null;index:idx_reservations_room_range,priority:3" json:"check_out"`
	Status        Status     `gorm:"type:varchar(20);not null;default:'held';index" json:"status"`
	Amount        float64    `gorm:"type:decimal(10,2);not null;default:0" json:"amount"`
	SettlementID  string     `gorm:"type:varchar(128)" json:"settlement_id,omitempty"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	HoldExpiresAt time.Time  `gorm:"not null;index" json:"hold_expires_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	ReleasedAt    *time.Time `json:"released_at,omitempty"`
	ExpiredAt     *time.Time `json:"expired_at,omitempty"`
}

func (Reservation) TableName() string {
	return "reservations"
}

// Range returns the reservation's stay
func (r Reservation) Range() DateRange {
	return DateRange{CheckIn: r.CheckIn, CheckOut: r.CheckOut}
}

// HoldElapsed reports whether a held reservation has passed its expiry at now
func (r Reservation) HoldElapsed(now time.Time) bool {
	return r.Status == StatusHeld && !r.HoldExpiresAt.After(now)
}

// Blocks reports whether the reservation occupies its range at now.
// Held reservations past expiry no longer block even before the sweep runs.
func (r Reservation) Blocks(now time.Time) bool {
	switch r.Status {
	case StatusConfirmed:
		return true
	case StatusHeld:
		return r.HoldExpiresAt.After(now)
	default:
		return false
	}
}

// SettlementProof is the record of a successful payment that confirms a hold
type SettlementProof struct {
	ID     string
	Amount float64
}
