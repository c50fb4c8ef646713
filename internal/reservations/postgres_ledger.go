package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/internal/shared/clock"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

// roomLock maps onto the rooms table so a transaction can take the
// room-scoped row lock without depending on the inventory package.
type roomLock struct {
	ID string
}

func (roomLock) TableName() string {
	return "rooms"
}

type postgresLedger struct {
	db       *gorm.DB
	clock    clock.Clock
	observer ExpiryObserver
}

// NewPostgresLedger creates a Ledger backed by PostgreSQL
func NewPostgresLedger(db *gorm.DB, clk clock.Clock) Ledger {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &postgresLedger{db: db, clock: clk}
}

func (l *postgresLedger) SetExpiryObserver(observer ExpiryObserver) {
	l.observer = observer
}

// withRoomLock runs fn in a transaction holding FOR UPDATE on the room row
func (l *postgresLedger) withRoomLock(ctx context.Context, roomID string, fn func(tx *gorm.DB, now time.Time) error) error {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room roomLock
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", roomID).
			First(&room).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("room %s: %w", roomID, ErrNotFound)
			}
			return err
		}
		return fn(tx, l.clock.Now())
	})
	return translateError(err)
}

func (l *postgresLedger) CreateHold(ctx context.Context, roomID string, stay DateRange, guestID string, ttl time.Duration) (Reservation, error) {
	if err := validateHold(roomID, stay, guestID, ttl); err != nil {
		return Reservation{}, err
	}

	var hold Reservation
	var lapsed []Reservation
	err := l.withRoomLock(ctx, roomID, func(tx *gorm.DB, now time.Time) error {
		// Elapsed holds must leave the exclusion constraint before the insert
		var err error
		if lapsed, err = expireDue(tx, roomID, now); err != nil {
			return err
		}

		var blocking Reservation
		err = tx.Where("room_id = ? AND status IN ? AND check_in < ? AND check_out > ?",
			roomID, []Status{StatusHeld, StatusConfirmed}, stay.CheckOut, stay.CheckIn).
			Order("check_in").
			First(&blocking).Error
		if err == nil {
			return fmt.Errorf("%w: reservation %s holds %s", ErrConflict, blocking.ID, blocking.Range())
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hold = Reservation{
			ID:            uuid.NewString(),
			RoomID:        roomID,
			GuestID:       guestID,
			CheckIn:       stay.CheckIn,
			CheckOut:      stay.CheckOut,
			Status:        StatusHeld,
			CreatedAt:     now,
			HoldExpiresAt: now.Add(ttl),
		}
		return tx.Create(&hold).Error
	})
	if err != nil {
		return Reservation{}, err
	}
	notifyExpired(ctx, l.observer, lapsed)
	return hold, nil
}

func (l *postgresLedger) Confirm(ctx context.Context, reservationID string, proof SettlementProof) (Reservation, error) {
	if proof.ID == "" {
		return Reservation{}, fmt.Errorf("%w: settlement id is required", ErrInvalidState)
	}

	var outcome error
	res, err := l.mutate(ctx, reservationID, func(tx *gorm.DB, r *Reservation, now time.Time) error {
		if r.HoldElapsed(now) {
			outcome = fmt.Errorf("%w: hold expired at %s", ErrInvalidState, r.HoldExpiresAt.Format(time.RFC3339))
			r.Status = StatusExpired
			r.ExpiredAt = &now
			return tx.Model(r).Updates(map[string]interface{}{"status": r.Status, "expired_at": now}).Error
		}
		if r.Status != StatusHeld {
			return fmt.Errorf("%w: reservation is %s", ErrInvalidState, r.Status)
		}
		r.Status = StatusConfirmed
		r.SettlementID = proof.ID
		r.Amount = proof.Amount
		r.ConfirmedAt = &now
		return tx.Model(r).Updates(map[string]interface{}{
			"status":        r.Status,
			"settlement_id": r.SettlementID,
			"amount":        r.Amount,
			"confirmed_at":  now,
		}).Error
	})
	if err != nil {
		return Reservation{}, err
	}
	if outcome != nil {
		notifyExpired(ctx, l.observer, []Reservation{res})
		return res, outcome
	}
	return res, nil
}

func (l *postgresLedger) Release(ctx context.Context, reservationID string) (Reservation, error) {
	return l.mutate(ctx, reservationID, func(tx *gorm.DB, r *Reservation, now time.Time) error {
		if r.Status.IsTerminal() {
			return nil
		}
		r.Status = StatusReleased
		r.ReleasedAt = &now
		return tx.Model(r).Updates(map[string]interface{}{"status": r.Status, "released_at": now}).Error
	})
}

// mutate locks the reservation's room, re-reads the row and applies fn
func (l *postgresLedger) mutate(ctx context.Context, reservationID string, fn func(tx *gorm.DB, r *Reservation, now time.Time) error) (Reservation, error) {
	current, err := l.Get(ctx, reservationID)
	if err != nil {
		return Reservation{}, err
	}

	var res Reservation
	err = l.withRoomLock(ctx, current.RoomID, func(tx *gorm.DB, now time.Time) error {
		if err := tx.Where("id = ?", reservationID).First(&res).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return fn(tx, &res, now)
	})
	if err != nil {
		return Reservation{}, err
	}
	return res, nil
}

func (l *postgresLedger) SweepExpired(ctx context.Context, now time.Time) ([]Reservation, error) {
	var roomIDs []string
	if err := l.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("status = ? AND hold_expires_at <= ?", StatusHeld, now).
		Distinct().
		Pluck("room_id", &roomIDs).Error; err != nil {
		return nil, translateError(err)
	}

	var expired []Reservation
	for _, roomID := range roomIDs {
		err := l.withRoomLock(ctx, roomID, func(tx *gorm.DB, _ time.Time) error {
			due, err := expireDue(tx, roomID, now)
			if err != nil {
				return err
			}
			expired = append(expired, due...)
			return nil
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			return expired, err
		}
	}
	return expired, nil
}

// expireDue moves the room's holds elapsed at now to expired inside tx
func expireDue(tx *gorm.DB, roomID string, now time.Time) ([]Reservation, error) {
	var due []Reservation
	if err := tx.Where("room_id = ? AND status = ? AND hold_expires_at <= ?", roomID, StatusHeld, now).
		Find(&due).Error; err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}
	ids := make([]string, len(due))
	for i := range due {
		ids[i] = due[i].ID
	}
	if err := tx.Model(&Reservation{}).
		Where("id IN ? AND status = ?", ids, StatusHeld).
		Updates(map[string]interface{}{"status": StatusExpired, "expired_at": now}).Error; err != nil {
		return nil, err
	}
	for i := range due {
		due[i].Status = StatusExpired
		due[i].ExpiredAt = &now
	}
	return due, nil
}

func (l *postgresLedger) Get(ctx context.Context, reservationID string) (Reservation, error) {
	var res Reservation
	if err := l.db.WithContext(ctx).Where("id = ?", reservationID).First(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Reservation{}, ErrNotFound
		}
		return Reservation{}, translateError(err)
	}
	return res, nil
}

func (l *postgresLedger) ListByGuest(ctx context.Context, guestID string) ([]Reservation, error) {
	result := []Reservation{}
	if err := l.db.WithContext(ctx).
		Where("guest_id = ?", guestID).
		Order("created_at DESC, id").
		Find(&result).Error; err != nil {
		return nil, translateError(err)
	}
	return result, nil
}

func (l *postgresLedger) activeQuery(ctx context.Context, stay DateRange, now time.Time) *gorm.DB {
	return l.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("check_in < ? AND check_out > ?", stay.CheckOut, stay.CheckIn).
		Where("(status = ? OR (status = ? AND hold_expires_at > ?))", StatusConfirmed, StatusHeld, now)
}

func (l *postgresLedger) ActiveOverlapping(ctx context.Context, roomIDs []string, stay DateRange, now time.Time) (map[string]bool, error) {
	busy := make(map[string]bool)
	if len(roomIDs) == 0 {
		return busy, nil
	}
	var ids []string
	if err := l.activeQuery(ctx, stay, now).
		Where("room_id IN ?", roomIDs).
		Distinct().
		Pluck("room_id", &ids).Error; err != nil {
		return nil, translateError(err)
	}
	for _, id := range ids {
		busy[id] = true
	}
	return busy, nil
}

func (l *postgresLedger) ActiveForRoom(ctx context.Context, roomID string, stay DateRange, now time.Time) ([]Reservation, error) {
	result := []Reservation{}
	if err := l.activeQuery(ctx, stay, now).
		Where("room_id = ?", roomID).
		Order("check_in").
		Find(&result).Error; err != nil {
		return nil, translateError(err)
	}
	return result, nil
}

// translateError keeps taxonomy errors, maps constraint violations to
// ErrConflict and everything else to ErrUnavailable
func translateError(err error) error {
	if err == nil || IsTaxonomy(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation, pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
