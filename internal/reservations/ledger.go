package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("reservation not found")
	ErrConflict     = errors.New("room already reserved for overlapping dates")
	ErrInvalidState = errors.New("invalid reservation state transition")
	ErrUnavailable  = errors.New("reservation storage unavailable")

	ErrInvalidRequest = errors.New("invalid hold request")
)

// Ledger records holds and their outcomes. Every mutation is atomic with
// respect to other mutations on the same room id; reads see a point-in-time
// view and never block writers.
type Ledger interface {
	// CreateHold inserts a held reservation expiring at now+ttl, or fails
	// with ErrConflict if an active reservation overlaps the range.
	CreateHold(ctx context.Context, roomID string, stay DateRange, guestID string, ttl time.Duration) (Reservation, error)
	// Confirm moves a live hold to confirmed, recording the settlement.
	Confirm(ctx context.Context, reservationID string, proof SettlementProof) (Reservation, error)
	// Release moves held or confirmed to released. Terminal reservations are
	// returned unchanged.
	Release(ctx context.Context, reservationID string) (Reservation, error)
	// SweepExpired expires every hold whose expiry is <= now and returns the
	// reservations it transitioned.
	SweepExpired(ctx context.Context, now time.Time) ([]Reservation, error)

	Get(ctx context.Context, reservationID string) (Reservation, error)
	ListByGuest(ctx context.Context, guestID string) ([]Reservation, error)
	// ActiveOverlapping reports, for each given room, whether an active
	// reservation overlaps stay at now. Rooms with no overlap are absent.
	ActiveOverlapping(ctx context.Context, roomIDs []string, stay DateRange, now time.Time) (map[string]bool, error)
	// ActiveForRoom lists active reservations on roomID overlapping stay at now,
	// ordered by check-in.
	ActiveForRoom(ctx context.Context, roomID string, stay DateRange, now time.Time) ([]Reservation, error)
	// SetExpiryObserver registers the callback told about holds that
	// CreateHold or Confirm expired in passing.
	SetExpiryObserver(observer ExpiryObserver)
}

// ExpiryObserver receives holds expired outside SweepExpired, after the
// transition is durable.
type ExpiryObserver func(ctx context.Context, expired []Reservation)

func notifyExpired(ctx context.Context, observer ExpiryObserver, expired []Reservation) {
	if observer == nil || len(expired) == 0 {
		return
	}
	observer(ctx, expired)
}

// Expirer is anything that can run a sweep pass
type Expirer interface {
	SweepExpired(ctx context.Context, now time.Time) ([]Reservation, error)
}

func validateHold(roomID string, stay DateRange, guestID string, ttl time.Duration) error {
	if roomID == "" {
		return fmt.Errorf("%w: room id is required", ErrInvalidRequest)
	}
	if guestID == "" {
		return fmt.Errorf("%w: guest id is required", ErrInvalidRequest)
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: hold ttl must be positive", ErrInvalidRequest)
	}
	return stay.Validate()
}

// IsTaxonomy reports whether err is one of the ledger's structured outcomes
// rather than a storage fault
func IsTaxonomy(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidRequest)
}
