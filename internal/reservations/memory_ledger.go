package reservations

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"staybook/internal/shared/clock"

	"github.com/google/uuid"
)

// roomBook holds one room's reservations. Writers serialise on mu and
// publish a fresh slice; readers load the current slice without locking.
type roomBook struct {
	mu   sync.Mutex
	snap atomic.Pointer[[]Reservation]
}

func (b *roomBook) load() []Reservation {
	if p := b.snap.Load(); p != nil {
		return *p
	}
	return nil
}

func (b *roomBook) publish(rs []Reservation) {
	b.snap.Store(&rs)
}

// MemoryLedger is an in-process Ledger
type MemoryLedger struct {
	clock    clock.Clock
	rooms    sync.Map // room id -> *roomBook
	index    sync.Map // reservation id -> room id
	observer ExpiryObserver
}

// NewMemoryLedger creates an empty in-process ledger
func NewMemoryLedger(clk clock.Clock) *MemoryLedger {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &MemoryLedger{clock: clk}
}

func (l *MemoryLedger) SetExpiryObserver(observer ExpiryObserver) {
	l.observer = observer
}

func (l *MemoryLedger) book(roomID string) *roomBook {
	if b, ok := l.rooms.Load(roomID); ok {
		return b.(*roomBook)
	}
	b, _ := l.rooms.LoadOrStore(roomID, &roomBook{})
	return b.(*roomBook)
}

func (l *MemoryLedger) CreateHold(ctx context.Context, roomID string, stay DateRange, guestID string, ttl time.Duration) (Reservation, error) {
	if err := validateHold(roomID, stay, guestID, ttl); err != nil {
		return Reservation{}, err
	}
	if err := ctx.Err(); err != nil {
		return Reservation{}, err
	}

	hold, lapsed, err := l.insertHold(roomID, stay, guestID, ttl)
	if err != nil {
		return Reservation{}, err
	}
	notifyExpired(ctx, l.observer, lapsed)
	return hold, nil
}

// insertHold appends a hold under the room lock and returns the elapsed
// holds it expired on the way.
func (l *MemoryLedger) insertHold(roomID string, stay DateRange, guestID string, ttl time.Duration) (Reservation, []Reservation, error) {
	b := l.book(roomID)
	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.clock.Now()
	current := b.load()
	next := make([]Reservation, 0, len(current)+1)
	var lapsed []Reservation
	for _, r := range current {
		if r.HoldElapsed(now) {
			r = markExpired(r, now)
			lapsed = append(lapsed, r)
		}
		if r.Blocks(now) && r.Range().Overlaps(stay) {
			return Reservation{}, nil, fmt.Errorf("%w: reservation %s holds %s", ErrConflict, r.ID, r.Range())
		}
		next = append(next, r)
	}

	hold := Reservation{
		ID:            uuid.NewString(),
		RoomID:        roomID,
		GuestID:       guestID,
		CheckIn:       stay.CheckIn,
		CheckOut:      stay.CheckOut,
		Status:        StatusHeld,
		CreatedAt:     now,
		HoldExpiresAt: now.Add(ttl),
	}
	next = append(next, hold)
	b.publish(next)
	l.index.Store(hold.ID, roomID)
	return hold, lapsed, nil
}

func (l *MemoryLedger) Confirm(ctx context.Context, reservationID string, proof SettlementProof) (Reservation, error) {
	if proof.ID == "" {
		return Reservation{}, fmt.Errorf("%w: settlement id is required", ErrInvalidState)
	}

	var outcome error
	res, err := l.mutate(ctx, reservationID, func(r Reservation, now time.Time) (Reservation, error) {
		if r.HoldElapsed(now) {
			outcome = fmt.Errorf("%w: hold expired at %s", ErrInvalidState, r.HoldExpiresAt.Format(time.RFC3339))
			return markExpired(r, now), nil
		}
		if r.Status != StatusHeld {
			return r, fmt.Errorf("%w: reservation is %s", ErrInvalidState, r.Status)
		}
		r.Status = StatusConfirmed
		r.SettlementID = proof.ID
		r.Amount = proof.Amount
		r.ConfirmedAt = &now
		return r, nil
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

func (l *MemoryLedger) Release(ctx context.Context, reservationID string) (Reservation, error) {
	return l.mutate(ctx, reservationID, func(r Reservation, now time.Time) (Reservation, error) {
		if r.Status.IsTerminal() {
			return r, nil
		}
		r.Status = StatusReleased
		r.ReleasedAt = &now
		return r, nil
	})
}

// mutate applies fn to one reservation under its room's lock
func (l *MemoryLedger) mutate(ctx context.Context, reservationID string, fn func(Reservation, time.Time) (Reservation, error)) (Reservation, error) {
	if err := ctx.Err(); err != nil {
		return Reservation{}, err
	}
	roomID, ok := l.index.Load(reservationID)
	if !ok {
		return Reservation{}, ErrNotFound
	}

	b := l.book(roomID.(string))
	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.clock.Now()
	current := b.load()
	for i, r := range current {
		if r.ID != reservationID {
			continue
		}
		updated, err := fn(r, now)
		if err != nil {
			return Reservation{}, err
		}
		if updated != r {
			next := make([]Reservation, len(current))
			copy(next, current)
			next[i] = updated
			b.publish(next)
		}
		return updated, nil
	}
	return Reservation{}, ErrNotFound
}

func (l *MemoryLedger) SweepExpired(ctx context.Context, now time.Time) ([]Reservation, error) {
	var expired []Reservation
	var err error
	l.rooms.Range(func(_, v any) bool {
		if err = ctx.Err(); err != nil {
			return false
		}
		b := v.(*roomBook)
		b.mu.Lock()
		current := b.load()
		var next []Reservation
		for i, r := range current {
			if !r.HoldElapsed(now) {
				continue
			}
			if next == nil {
				next = make([]Reservation, len(current))
				copy(next, current)
			}
			next[i] = markExpired(r, now)
			expired = append(expired, next[i])
		}
		if next != nil {
			b.publish(next)
		}
		b.mu.Unlock()
		return true
	})
	return expired, err
}

func (l *MemoryLedger) Get(ctx context.Context, reservationID string) (Reservation, error) {
	roomID, ok := l.index.Load(reservationID)
	if !ok {
		return Reservation{}, ErrNotFound
	}
	for _, r := range l.book(roomID.(string)).load() {
		if r.ID == reservationID {
			return r, nil
		}
	}
	return Reservation{}, ErrNotFound
}

func (l *MemoryLedger) ListByGuest(ctx context.Context, guestID string) ([]Reservation, error) {
	result := []Reservation{}
	l.rooms.Range(func(_, v any) bool {
		for _, r := range v.(*roomBook).load() {
			if r.GuestID == guestID {
				result = append(result, r)
			}
		}
		return true
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (l *MemoryLedger) ActiveOverlapping(ctx context.Context, roomIDs []string, stay DateRange, now time.Time) (map[string]bool, error) {
	busy := make(map[string]bool)
	for _, id := range roomIDs {
		v, ok := l.rooms.Load(id)
		if !ok {
			continue
		}
		for _, r := range v.(*roomBook).load() {
			if r.Blocks(now) && r.Range().Overlaps(stay) {
				busy[id] = true
				break
			}
		}
	}
	return busy, nil
}

func (l *MemoryLedger) ActiveForRoom(ctx context.Context, roomID string, stay DateRange, now time.Time) ([]Reservation, error) {
	result := []Reservation{}
	v, ok := l.rooms.Load(roomID)
	if !ok {
		return result, nil
	}
	for _, r := range v.(*roomBook).load() {
		if r.Blocks(now) && r.Range().Overlaps(stay) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CheckIn.Before(result[j].CheckIn)
	})
	return result, nil
}

func markExpired(r Reservation, now time.Time) Reservation {
	r.Status = StatusExpired
	r.ExpiredAt = &now
	return r
}

var _ Ledger = (*MemoryLedger)(nil)
