package rooms

import (
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type RoomType string

const (
	RoomTypeSingle RoomType = "single"
	RoomTypeDouble RoomType = "double"
	RoomTypeSuite  RoomType = "suite"
	RoomTypeDeluxe RoomType = "deluxe"
)

func IsValidRoomType(t string) bool {
	switch RoomType(t) {
	case RoomTypeSingle, RoomTypeDouble, RoomTypeSuite, RoomTypeDeluxe:
		return true
	default:
		return false
	}
}

// Room holds a room's static attributes. Availability lives in the reservation ledger.
type Room struct {
	ID           string         `json:"id" gorm:"type:varchar(64);primaryKey" validate:"required,max=64"`
	Name         string         `json:"name" gorm:"not null;size:255" validate:"required,max=255"`
	Type         RoomType       `json:"type" gorm:"type:varchar(20);not null;index" validate:"required,oneof=single double suite deluxe"`
	NightlyPrice float64        `json:"nightly_price" gorm:"type:decimal(10,2);not null;check:nightly_price > 0;index" validate:"gt=0"`
	Capacity     int            `json:"capacity" gorm:"not null;check:capacity > 0" validate:"gt=0"`
	Description  string         `json:"description" gorm:"type:text" validate:"max=2000"`
	Amenities    pq.StringArray `json:"amenities" gorm:"type:text[];not null" validate:"dive,required,max=100"`
	Images       pq.StringArray `json:"images" gorm:"type:text[];not null" validate:"dive,required,max=500"`
	Active       bool           `json:"active" gorm:"not null"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (Room) TableName() string {
	return "rooms"
}

// normalize gives empty sets a stable non-nil form so stored and returned rooms compare equal
func (r *Room) normalize() {
	if r.Amenities == nil {
		r.Amenities = pq.StringArray{}
	}
	if r.Images == nil {
		r.Images = pq.StringArray{}
	}
}

func (r Room) clone() Room {
	c := r
	c.Amenities = append(pq.StringArray{}, r.Amenities...)
	c.Images = append(pq.StringArray{}, r.Images...)
	return c
}

var ErrInvalidFilter = errors.New("invalid room filter")

// Filter narrows a room listing. Nil options are ignored; price bounds are inclusive.
type Filter struct {
	Type        *RoomType
	MinPrice    *float64
	MaxPrice    *float64
	MinCapacity *int
}

func (f Filter) Validate() error {
	if f.Type != nil && !IsValidRoomType(string(*f.Type)) {
		return fmt.Errorf("%w: unknown room type %q", ErrInvalidFilter, *f.Type)
	}
	if f.MinPrice != nil && *f.MinPrice < 0 {
		return fmt.Errorf("%w: min_price must not be negative", ErrInvalidFilter)
	}
	if f.MaxPrice != nil && *f.MaxPrice < 0 {
		return fmt.Errorf("%w: max_price must not be negative", ErrInvalidFilter)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return fmt.Errorf("%w: min_price exceeds max_price", ErrInvalidFilter)
	}
	if f.MinCapacity != nil && *f.MinCapacity < 1 {
		return fmt.Errorf("%w: min_capacity must be at least 1", ErrInvalidFilter)
	}
	return nil
}

// Matches applies the filter to a single room
func (f Filter) Matches(r Room) bool {
	if f.Type != nil && r.Type != *f.Type {
		return false
	}
	if f.MinPrice != nil && r.NightlyPrice < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && r.NightlyPrice > *f.MaxPrice {
		return false
	}
	if f.MinCapacity != nil && r.Capacity < *f.MinCapacity {
		return false
	}
	return true
}

// RoomListQuery is the query string accepted by room listing and search
type RoomListQuery struct {
	Type        string   `form:"type" binding:"omitempty,oneof=single double suite deluxe"`
	MinPrice    *float64 `form:"min_price" binding:"omitempty,min=0"`
	MaxPrice    *float64 `form:"max_price" binding:"omitempty,min=0"`
	MinCapacity *int     `form:"min_capacity" binding:"omitempty,min=1"`
}

func (q RoomListQuery) Filter() Filter {
	f := Filter{MinPrice: q.MinPrice, MaxPrice: q.MaxPrice, MinCapacity: q.MinCapacity}
	if q.Type != "" {
		t := RoomType(q.Type)
		f.Type = &t
	}
	return f
}

// UpsertRoomRequest is the admin payload for PUT /admin/rooms/:id
type UpsertRoomRequest struct {
	Name         string   `json:"name" binding:"required,max=255"`
	Type         string   `json:"type" binding:"required,oneof=single double suite deluxe"`
	NightlyPrice float64  `json:"nightly_price" binding:"required,gt=0"`
	Capacity     int      `json:"capacity" binding:"required,gt=0"`
	Description  string   `json:"description" binding:"max=2000"`
	Amenities    []string `json:"amenities"`
	Images       []string `json:"images"`
	Active       *bool    `json:"active"`
}

func (r UpsertRoomRequest) ToRoom(id string) Room {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return Room{
		ID:           id,
		Name:         r.Name,
		Type:         RoomType(r.Type),
		NightlyPrice: r.NightlyPrice,
		Capacity:     r.Capacity,
		Description:  r.Description,
		Amenities:    pq.StringArray(r.Amenities),
		Images:       pq.StringArray(r.Images),
		Active:       active,
	}
}
