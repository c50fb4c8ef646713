package rooms

import (
	"context"
	"errors"
	"sort"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrRoomNotFound = errors.New("room not found")

type Repository interface {
	GetByID(ctx context.Context, id string) (*Room, error)
	List(ctx context.Context, filter Filter) ([]Room, error)
	Upsert(ctx context.Context, room *Room) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id string) (*Room, error) {
	var room Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	room.normalize()
	return &room, nil
}

func (r *repository) List(ctx context.Context, filter Filter) ([]Room, error) {
	db := r.db.WithContext(ctx).Model(&Room{})

	if filter.Type != nil {
		db = db.Where("type = ?", *filter.Type)
	}
	if filter.MinPrice != nil {
		db = db.Where("nightly_price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		db = db.Where("nightly_price <= ?", *filter.MaxPrice)
	}
	if filter.MinCapacity != nil {
		db = db.Where("capacity >= ?", *filter.MinCapacity)
	}

	rooms := []Room{}
	if err := db.Order("nightly_price ASC, id ASC").Find(&rooms).Error; err != nil {
		return nil, err
	}
	for i := range rooms {
		rooms[i].normalize()
	}
	return rooms, nil
}

// Upsert creates the room or replaces every mutable column of an existing one
func (r *repository) Upsert(ctx context.Context, room *Room) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "type", "nightly_price", "capacity", "description",
			"amenities", "images", "active", "updated_at",
		}),
	}).Create(room).Error
}

// memoryRepository keeps rooms in process; used by the memory storage driver and tests
type memoryRepository struct {
	mu    sync.RWMutex
	rooms map[string]Room
}

func NewMemoryRepository() Repository {
	return &memoryRepository{rooms: make(map[string]Room)}
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	c := room.clone()
	return &c, nil
}

func (r *memoryRepository) List(ctx context.Context, filter Filter) ([]Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []Room{}
	for _, room := range r.rooms {
		if filter.Matches(room) {
			result = append(result, room.clone())
		}
	}
	sortRooms(result)
	return result, nil
}

func (r *memoryRepository) Upsert(ctx context.Context, room *Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms[room.ID] = room.clone()
	return nil
}

// sortRooms orders by nightly price then id
func sortRooms(rs []Room) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].NightlyPrice != rs[j].NightlyPrice {
			return rs[i].NightlyPrice < rs[j].NightlyPrice
		}
		return rs[i].ID < rs[j].ID
	})
}
