package payments

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

var ErrSettlementNotFound = errors.New("settlement not found")

// Repository stores settlement records
type Repository interface {
	Create(ctx context.Context, settlement *Settlement) error
	MarkRefundRequired(ctx context.Context, id string, reason string) error
	GetByReservation(ctx context.Context, reservationID string) (*Settlement, error)
	ListRefundRequired(ctx context.Context) ([]Settlement, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, settlement *Settlement) error {
	return r.db.WithContext(ctx).Create(settlement).Error
}

func (r *repository) MarkRefundRequired(ctx context.Context, id string, reason string) error {
	result := r.db.WithContext(ctx).Model(&Settlement{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         StatusRefundRequired,
			"failure_reason": reason,
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSettlementNotFound
	}
	return nil
}

func (r *repository) GetByReservation(ctx context.Context, reservationID string) (*Settlement, error) {
	var settlement Settlement
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("created_at DESC").
		First(&settlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettlementNotFound
		}
		return nil, err
	}
	return &settlement, nil
}

func (r *repository) ListRefundRequired(ctx context.Context) ([]Settlement, error) {
	settlements := []Settlement{}
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusRefundRequired).
		Order("created_at ASC").
		Find(&settlements).Error
	return settlements, err
}

type memoryRepository struct {
	mu          sync.RWMutex
	settlements map[string]Settlement
}

func NewMemoryRepository() Repository {
	return &memoryRepository{settlements: make(map[string]Settlement)}
}

func (r *memoryRepository) Create(ctx context.Context, settlement *Settlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.settlements[settlement.ID]; exists {
		return gorm.ErrDuplicatedKey
	}
	now := time.Now().UTC()
	if settlement.CreatedAt.IsZero() {
		settlement.CreatedAt = now
	}
	settlement.UpdatedAt = now
	r.settlements[settlement.ID] = *settlement
	return nil
}

func (r *memoryRepository) MarkRefundRequired(ctx context.Context, id string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.settlements[id]
	if !ok {
		return ErrSettlementNotFound
	}
	s.MarkRefundRequired(reason)
	r.settlements[id] = s
	return nil
}

func (r *memoryRepository) GetByReservation(ctx context.Context, reservationID string) (*Settlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *Settlement
	for _, s := range r.settlements {
		if s.ReservationID != reservationID {
			continue
		}
		if found == nil || s.CreatedAt.After(found.CreatedAt) {
			c := s
			found = &c
		}
	}
	if found == nil {
		return nil, ErrSettlementNotFound
	}
	return found, nil
}

func (r *memoryRepository) ListRefundRequired(ctx context.Context) ([]Settlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []Settlement{}
	for _, s := range r.settlements {
		if s.NeedsRefund() {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
