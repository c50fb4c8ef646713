package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/internal/reservations"
	"staybook/internal/rooms"
	"staybook/internal/shared/clock"
	"staybook/pkg/logger"
)

// Inventory is the read side of the room store
type Inventory interface {
	GetRoom(ctx context.Context, id string) (*rooms.Room, error)
	ListRooms(ctx context.Context, filter rooms.Filter) ([]rooms.Room, error)
}

// Calendar is the read side of the reservation ledger
type Calendar interface {
	ActiveOverlapping(ctx context.Context, roomIDs []string, stay reservations.DateRange, now time.Time) (map[string]bool, error)
	ActiveForRoom(ctx context.Context, roomID string, stay reservations.DateRange, now time.Time) ([]reservations.Reservation, error)
}

// Service answers read-only availability questions. Results are a snapshot:
// a room reported free may be held by someone else before the caller books.
type Service interface {
	Search(ctx context.Context, filter rooms.Filter, stay reservations.DateRange) ([]rooms.Room, error)
	Availability(ctx context.Context, roomID string, horizon reservations.DateRange) ([]AvailabilityWindow, error)
}

type service struct {
	inventory Inventory
	calendar  Calendar
	clock     clock.Clock
	logger    *logger.Logger
}

func NewService(inventory Inventory, calendar Calendar, clk clock.Clock) Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &service{
		inventory: inventory,
		calendar:  calendar,
		clock:     clk,
		logger:    logger.GetDefault(),
	}
}

// Search lists active rooms matching filter with no held or confirmed
// reservation overlapping stay
func (s *service) Search(ctx context.Context, filter rooms.Filter, stay reservations.DateRange) ([]rooms.Room, error) {
	if err := validateHorizon(stay); err != nil {
		return nil, err
	}

	candidates, err := s.inventory.ListRooms(ctx, filter)
	if err != nil {
		if errors.Is(err, rooms.ErrInvalidFilter) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		return nil, s.unavailable(ctx, "Room listing failed", err)
	}

	ids := make([]string, 0, len(candidates))
	for _, r := range candidates {
		if r.Active {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return []rooms.Room{}, nil
	}

	busy, err := s.calendar.ActiveOverlapping(ctx, ids, stay, s.clock.Now())
	if err != nil {
		return nil, s.unavailable(ctx, "Ledger snapshot failed", err)
	}

	result := make([]rooms.Room, 0, len(ids))
	for _, r := range candidates {
		if r.Active && !busy[r.ID] {
			result = append(result, r)
		}
	}
	return result, nil
}

// Availability returns the maximal free windows of roomID inside horizon,
// ordered by check-in. An inactive room has none.
func (s *service) Availability(ctx context.Context, roomID string, horizon reservations.DateRange) ([]AvailabilityWindow, error) {
	if err := validateHorizon(horizon); err != nil {
		return nil, err
	}

	room, err := s.inventory.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
		}
		return nil, s.unavailable(ctx, "Room lookup failed", err)
	}
	if !room.Active {
		return []AvailabilityWindow{}, nil
	}

	busy, err := s.calendar.ActiveForRoom(ctx, room.ID, horizon, s.clock.Now())
	if err != nil {
		return nil, s.unavailable(ctx, "Ledger snapshot failed", err)
	}

	return freeWindows(room.ID, horizon, busy), nil
}

// freeWindows subtracts busy stays from horizon. busy must be ordered by
// check-in; entries may touch or overlap each other.
func freeWindows(roomID string, horizon reservations.DateRange, busy []reservations.Reservation) []AvailabilityWindow {
	windows := []AvailabilityWindow{}
	cursor := horizon.CheckIn

	for _, r := range busy {
		start := maxTime(r.CheckIn, horizon.CheckIn)
		end := minTime(r.CheckOut, horizon.CheckOut)
		if !start.Before(end) {
			continue
		}
		if cursor.Before(start) {
			windows = append(windows, AvailabilityWindow{
				RoomID: roomID,
				Stay:   reservations.DateRange{CheckIn: cursor, CheckOut: start},
			})
		}
		cursor = maxTime(cursor, end)
	}

	if cursor.Before(horizon.CheckOut) {
		windows = append(windows, AvailabilityWindow{
			RoomID: roomID,
			Stay:   reservations.DateRange{CheckIn: cursor, CheckOut: horizon.CheckOut},
		})
	}
	return windows
}

func validateHorizon(r reservations.DateRange) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if r.Nights() > MaxHorizonNights {
		return fmt.Errorf("%w: range exceeds %d nights", ErrInvalidQuery, MaxHorizonNights)
	}
	return nil
}

func (s *service) unavailable(ctx context.Context, msg string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.ErrorWithContext(ctx, msg, err, nil)
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
