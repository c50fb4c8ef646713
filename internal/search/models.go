package search

import (
	"errors"
	"time"

	"staybook/internal/reservations"
	"staybook/internal/rooms"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrInvalidQuery       = errors.New("invalid search query")
	ErrServiceUnavailable = errors.New("search temporarily unavailable")
)

// MaxHorizonNights bounds a single availability or search query
const MaxHorizonNights = 366

// AvailabilityWindow is a maximal run of free nights on one room
type AvailabilityWindow struct {
	RoomID string
	Stay   reservations.DateRange
}

// SearchQuery is the query string for GET /search
type SearchQuery struct {
	rooms.RoomListQuery
	CheckIn  string `form:"check_in" binding:"required,datetime=2006-01-02"`
	CheckOut string `form:"check_out" binding:"required,datetime=2006-01-02"`
}

// HorizonQuery is the query string for GET /rooms/:id/availability
type HorizonQuery struct {
	CheckIn  string `form:"check_in" binding:"required,datetime=2006-01-02"`
	CheckOut string `form:"check_out" binding:"required,datetime=2006-01-02"`
}

type WindowResponse struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Nights   int    `json:"nights"`
}

type AvailabilityResponse struct {
	RoomID   string           `json:"room_id"`
	CheckIn  string           `json:"check_in"`
	CheckOut string           `json:"check_out"`
	Windows  []WindowResponse `json:"windows"`
}

type SearchResponse struct {
	CheckIn  string       `json:"check_in"`
	CheckOut string       `json:"check_out"`
	Nights   int          `json:"nights"`
	Rooms    []rooms.Room `json:"rooms"`
	// Snapshot time; a listed room can still be taken before it is held
	AsOf time.Time `json:"as_of"`
}

func ToAvailabilityResponse(roomID string, horizon reservations.DateRange, windows []AvailabilityWindow) AvailabilityResponse {
	out := AvailabilityResponse{
		RoomID:   roomID,
		CheckIn:  horizon.CheckIn.Format(reservations.DateLayout),
		CheckOut: horizon.CheckOut.Format(reservations.DateLayout),
		Windows:  make([]WindowResponse, 0, len(windows)),
	}
	for _, w := range windows {
		out.Windows = append(out.Windows, WindowResponse{
			CheckIn:  w.Stay.CheckIn.Format(reservations.DateLayout),
			CheckOut: w.Stay.CheckOut.Format(reservations.DateLayout),
			Nights:   w.Stay.Nights(),
		})
	}
	return out
}
