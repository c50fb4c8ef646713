package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/internal/shared/constants"
	"staybook/pkg/cache"
	"staybook/pkg/logger"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidRoom      = errors.New("invalid room")
	ErrNotAuthorized    = errors.New("administrative capability required")
	ErrStoreUnavailable = errors.New("room store unavailable")
)

// AdminCapability authorises inventory edits. The zero value grants nothing;
// only the HTTP layer mints one, after the caller's ADMIN role is verified.
type AdminCapability struct {
	adminID string
}

func GrantAdmin(adminID string) AdminCapability {
	return AdminCapability{adminID: adminID}
}

func (c AdminCapability) Valid() bool {
	return c.adminID != ""
}

func (c AdminCapability) AdminID() string {
	return c.adminID
}

type Service interface {
	GetRoom(ctx context.Context, id string) (*Room, error)
	ListRooms(ctx context.Context, filter Filter) ([]Room, error)
	UpsertRoom(ctx context.Context, capability AdminCapability, room Room) (*Room, error)
	SetCacheService(cacheService cache.Service)
}

type service struct {
	repo         Repository
	validate     *validator.Validate
	cacheService cache.Service
	logger       *logger.Logger
	now          func() time.Time
}

func NewService(repo Repository) Service {
	return &service{
		repo:     repo,
		validate: validator.New(),
		logger:   logger.GetDefault(),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// SetCacheService sets the cache service for dependency injection
func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

func (s *service) GetRoom(ctx context.Context, id string) (*Room, error) {
	cacheKey := constants.BuildRoomDetailKey(id)
	var cached Room
	if s.getCache(ctx, cacheKey, &cached) {
		cached.normalize()
		return &cached, nil
	}

	room, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err)
	}

	s.setCache(ctx, cacheKey, room, constants.TTL_ROOM_DETAIL)
	return room, nil
}

func (s *service) ListRooms(ctx context.Context, filter Filter) ([]Room, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var typeKey string
	if filter.Type != nil {
		typeKey = string(*filter.Type)
	}
	cacheKey := constants.BuildRoomListKey(typeKey, filter.MinPrice, filter.MaxPrice, filter.MinCapacity)
	var cached []Room
	if s.getCache(ctx, cacheKey, &cached) {
		for i := range cached {
			cached[i].normalize()
		}
		return cached, nil
	}

	rooms, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, s.storeError(err)
	}

	s.setCache(ctx, cacheKey, rooms, constants.TTL_ROOMS_LIST)
	return rooms, nil
}

func (s *service) UpsertRoom(ctx context.Context, capability AdminCapability, room Room) (*Room, error) {
	if !capability.Valid() {
		return nil, ErrNotAuthorized
	}
	room.normalize()
	if err := s.validate.Struct(room); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoom, err)
	}

	now := s.now()
	room.CreatedAt = now
	room.UpdatedAt = now
	existing, err := s.repo.GetByID(ctx, room.ID)
	switch {
	case err == nil:
		room.CreatedAt = existing.CreatedAt
	case !errors.Is(err, ErrRoomNotFound):
		return nil, s.storeError(err)
	}

	if err := s.repo.Upsert(ctx, &room); err != nil {
		return nil, s.storeError(err)
	}

	s.deleteCache(ctx, constants.BuildRoomDetailKey(room.ID))
	s.deleteCachePattern(ctx, constants.PATTERN_INVALIDATE_ROOM_LISTS)

	s.logger.InfoWithContext(ctx, "Room Upserted", map[string]interface{}{
		"room_id":  room.ID,
		"admin_id": capability.AdminID(),
		"active":   room.Active,
	})

	saved := room.clone()
	return &saved, nil
}

func (s *service) storeError(err error) error {
	if errors.Is(err, ErrRoomNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Cache helper methods. A cache failure never fails the request.

func (s *service) getCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cacheService == nil {
		return false
	}
	err := s.cacheService.Get(ctx, key, dest)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.ErrorWithContext(ctx, "Room cache read failed", err, map[string]interface{}{"key": key})
	}
	return err == nil
}

func (s *service) setCache(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.Set(ctx, key, value, ttl); err != nil {
		s.logger.ErrorWithContext(ctx, "Room cache write failed", err, map[string]interface{}{"key": key})
	}
}

func (s *service) deleteCache(ctx context.Context, key string) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.Delete(ctx, key); err != nil {
		s.logger.ErrorWithContext(ctx, "Room cache invalidation failed", err, map[string]interface{}{"key": key})
	}
}

func (s *service) deleteCachePattern(ctx context.Context, pattern string) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.DeletePattern(ctx, pattern); err != nil {
		s.logger.ErrorWithContext(ctx, "Room cache invalidation failed", err, map[string]interface{}{"pattern": pattern})
	}
}
