package reservations_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"staybook/internal/reservations"
	"staybook/internal/shared/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const holdTTL = 15 * time.Minute

var ledgerEpoch = time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

// ledgerFactory builds a fresh ledger in which rooms R1 and R2 exist
type ledgerFactory func(t *testing.T, clk clock.Clock) reservations.Ledger

func runLedgerContract(t *testing.T, newLedger ledgerFactory) {
	t.Run("scenario from overlapping guests", func(t *testing.T) {
		ctx := context.Background()
		clk := clock.NewManual(ledgerEpoch)
		ledger := newLedger(t, clk)

		g1, err := ledger.CreateHold(ctx, "R1", reservations.MustDateRange("2024-06-01", "2024-06-03"), "G1", holdTTL)
		require.NoError(t, err)
		assert.Equal(t, reservations.StatusHeld, g1.Status)
		assert.Equal(t, ledgerEpoch.Add(holdTTL), g1.HoldExpiresAt)

		_, err = ledger.CreateHold(ctx, "R1", reservations.MustDateRange("2024-06-02", "2024-06-04"), "G2", holdTTL)
		require.ErrorIs(t, err, reservations.ErrConflict)

		confirmed, err := ledger.Confirm(ctx, g1.ID, reservations.SettlementProof{ID: "set_1", Amount: 200})
		require.NoError(t, err)
		assert.Equal(t, reservations.StatusConfirmed, confirmed.Status)
		assert.Equal(t, "set_1", confirmed.SettlementID)
		require.NotNil(t, confirmed.ConfirmedAt)

		g2, err := ledger.CreateHold(ctx, "R1", reservations.MustDateRange("2024-06-03", "2024-06-05"), "G2", holdTTL)
		require.NoError(t, err)
		assert.Equal(t, reservations.StatusHeld, g2.Status)
	})

	t.Run("holds on different rooms do not conflict", func(t *testing.T) {
		ctx := context.Background()
		ledger := newLedger(t, clock.NewManual(ledgerEpoch))
		stay := reservations.MustDateRange("2024-06-01", "2024-06-03")

		_, err := ledger.CreateHold(ctx, "R1", stay, "G1", holdTTL)
		require.NoError(t, err)
		_, err = ledger.CreateHold(ctx, "R2", stay, "G2", holdTTL)
		require.NoError(t, err)
	})

	t.Run("concurrent overlapping holds admit exactly one", func(t *testing.T) {
		ctx := context.Background()
		ledger := newLedger(t, clock.NewManual(ledgerEpoch))

		const attempts = 20
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			won       int
			conflicts int
			other     []error
		)
		start := make(chan struct{})
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				// Every range covers 2024-06-10
				stay := reservations.MustDateRange("2024-06-09", "2024-06-11")
				if i%2 == 1 {
					stay = reservations.MustDateRange("2024-06-10", "2024-06-12")
				}
				_, err := ledger.CreateHold(ctx, "R1", stay, "guest", holdTTL)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					won++
				case errors.Is(err, reservations.ErrConflict):
					conflicts++
				default:
					other = append(other, err)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		require.Empty(t, other)
		assert.Equal(t, 1, won)
		assert.Equal(t, attempts-1, conflicts)
	})

	t.Run("concurrent disjoint holds all succeed", func(t *testing.T) {
		ctx := context.Background()
		ledger := newLedger(t, clock.NewManual(ledgerEpoch))
		base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

		var wg sync.WaitGroup
		errs := make([]error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				stay, err := reservations.NewDateRange(base.AddDate(0, 0, i), base.AddDate(0, 0, i+1))
				if err != nil {
					errs[i] = err
					return
				}
				_, errs[i] = ledger.CreateHold(ctx, "R1", stay, "guest", holdTTL)
			}(i)
		}
		wg.Wait()
		for i, err := range errs {
			assert.NoError(t, err, "night %d", i)
		}
	})

	t.Run("sweep expires stale holds and is idempotent", func(t *testing.T) {
		ctx := context.Background()
		clk := clock.NewManual(ledgerEpoch)
		ledger := newLedger(t, clk)
		stay := reservations.MustDateRange("2024-06-01", "2024-06-03")

		hold, err := ledger.CreateHold(ctx, "R1", stay, "G1", holdTTL)
		require.NoError(t, err)

		sweepAt := ledgerEpoch.Add(holdTTL + time.Minute)
		clk.Set(sweepAt)

		expired, err := ledger.SweepExpired(ctx, sweepAt)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, hold.ID, expired[0].ID)
		assert.Equal(t, reservations.StatusExpired, expired[0].Status)

		again, err := ledger.SweepExpired(ctx, sweepAt)
		require.NoError(t, err)
		assert.Empty(t, again)

		got, err := ledger.Get(ctx, hold.ID)
		require.NoError(t, err)
		assert.Equal(t, reservations.StatusExpired, got.Status)
		require.NotNil(t, got.ExpiredAt)

		_, err = ledger.CreateHold(ctx, "R1", stay, "G2", holdTTL)
		require.NoError(t, err)
	})

	t.Run("sweep leaves live holds and confirmations alone", func(t *testing.T) {
		ctx := context.Background()
		clk := clock.NewManual(ledgerEpoch)
		ledger := newLedger(t, clk)

		confirmedHold, err := ledger.CreateHold(ctx, "R1", reservations.MustDateRange("2024-06-01", "2024-06-03"), "G1", holdTTL)
		require.NoError(t, err)
		_, err = ledger.Confirm(ctx, confirmedHold.ID, reservations.SettlementProof{ID: "set_1", Amount: 10})
		require.NoError(t, err)

		_, err = ledger.CreateHold(ctx, "R2", reservations.MustDateRange("2024-06-01", "2024-06-03"), "G2", time.Hour)
		require.NoError(t, err)

		expired, err := ledger.SweepExpired(ctx, ledgerEpoch.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Empty(t, expired)
	})

	t.Run("elapsed holds stop blocking before any sweep", func(t *testing.T) {
		ctx := context.Background()
		clk := clock.NewManual(ledgerEpoch)
		ledger := newLedger(t, clk)
		stay := reservations.MustDateRange("2024-06-01", "2024-06-03")

		stale, err := ledger.CreateHold(ctx, "R1", stay, "G1", holdTTL)
		require.NoError(t, err)

		clk.Advance(holdTTL)
		_, err = ledger.CreateHold(ctx, "R1", stay, "G2", holdTTL)
		require.NoError(t, err)

		got, err := ledger.Get(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, reservations.StatusExpired, got.Status)
	})

	t.Run("confirm after expiry fails and expires the hold", func(t *testing.T) {
		ctx := context.Background()
		clk := clock.NewManual(ledgerEpoch)
		ledger := newLedger(t, clk)

		hold, err := ledger.CreateHold(ctx, "R1", reservations.MustDateRange("2024-06-01", "2024-06-03"), "G1", holdTTL)
		require.NoError(t, err)

		clk.Advance(holdTTL)
		_, err = ledger.Confirm(ctx, hold.ID, reservations.SettlementProof{ID: "set_late", Amount: 10})
		require.ErrorIs(t, err, reservations.ErrInvalidState)

		got, err := ledger.Get(ctx, hold.ID)
		require.NoError(t, err)
		assert.Equal(t, reservations.StatusExpired, got.Status)
		assert.Empty(t, got.SettlementID)

		// A sweep after the losing confirm has nothing left to do
		expired, err := ledger.SweepExpired(ctx, clk.Now())
		require.NoError(t, err)
		assert.Empty(t, expired)
	})

	t.Run("expiries outside the sweep reach the observer", func(t *testing.T) {
		ctx := context.Background()
		clk := clock.NewManual(ledgerEpoch)
		ledger := newLedger(t, clk)

		var (
			mu       sync.Mutex
			observed []string
		)
		ledger.SetExpiryObserver(func(_ context.Context, expired []reservations.Reservation) {
			mu.Lock()
			defer mu.Unlock()
			for _, r := range expired {
				assert.Equal(t, reservations.StatusExpired, r.Status)
				observed = append(observed, r.ID)
			}
		})

		stale, err := ledger.CreateHold(ctx, "R1", reservations.MustDateRange("2024-06-01", "2024-06-03"), "G1", holdTTL)
		require.NoError(t, err)
		late, err := ledger.CreateHold(ctx, "R2", reservations.MustDateRange("2024-06-01", "2024-06-03"), "G2", holdTTL)
		require.NoError(t, err)
		clk.Advance(holdTTL)

		// A conflicting attempt commits nothing, so nothing is reported
		_, err = ledger.CreateHold(ctx, "R1", reservations.MustDateRange("2024-06-05", "2024-06-07"), "G3", holdTTL)
		require.NoError(t, err)
		_, err = ledger.CreateHold(ctx, "R1", reservations.MustDateRange("2024-06-06", "2024-06-08"), "G4", holdTTL)
		require.ErrorIs(t, err, reservations.ErrConflict)

		_, err = ledger.Confirm(ctx, late.ID, reservations.SettlementProof{ID: "set_late", Amount: 10})
		require.ErrorIs(t, err, reservations.ErrInvalidState)

		mu.Lock()
		assert.Equal(t, []string{stale.ID, late.ID}, observed)
		mu.Unlock()

		// Already reported holds are not handed to the sweep again
		expired, err := ledger.SweepExpired(ctx, clk.Now())
		require.NoError(t, err)
		assert.Empty(t, expired)
	})

	t.Run("confirm wins when it lands before the sweep", func(t *testing.T) {
		ctx := context.Background()
		clk := clock.NewManual(ledgerEpoch)
		ledger := newLedger(t, clk)

		hold, err := ledger.CreateHold(ctx, "R1", reservations.MustDateRange("2024-06-01", "2024-06-03"), "G1", holdTTL)
		require.NoError(t, err)

		clk.Advance(holdTTL - time.Second)
		_, err = ledger.Confirm(ctx, hold.ID, reservations.SettlementProof{ID: "set_1", Amount: 10})
		require.NoError(t, err)

		expired, err := ledger.SweepExpired(ctx, ledgerEpoch.Add(holdTTL))
		require.NoError(t, err)
		assert.Empty(t, expired)

		got, err := ledger.Get(ctx, hold.ID)
		require.NoError(t, err)
		assert.Equal(t, reservations.StatusConfirmed, got.Status)
	})

	t.Run("confirm requires a settlement and a live hold", func(t *testing.T) {
		ctx := context.Background()
		ledger := newLedger(t, clock.NewManual(ledgerEpoch))

		hold, err := ledger.CreateHold(ctx, "R1", reservations.MustDateRange("2024-06-01", "2024-06-03"), "G1", holdTTL)
		require.NoError(t, err)

		_, err = ledger.Confirm(ctx, hold.ID, reservations.SettlementProof{})
		require.ErrorIs(t, err, reservations.ErrInvalidState)

		_, err = ledger.Release(ctx, hold.ID)
		require.NoError(t, err)

		_, err = ledger.Confirm(ctx, hold.ID, reservations.SettlementProof{ID: "set_1", Amount: 10})
		require.ErrorIs(t, err, reservations.ErrInvalidState)

		_, err = ledger.Confirm(ctx, "missing", reservations.SettlementProof{ID: "set_1", Amount: 10})
		require.ErrorIs(t, err, reservations.ErrNotFound)
	})

	t.Run("release is idempotent and frees the range", func(t *testing.T) {
		ctx := context.Background()
		ledger := newLedger(t, clock.NewManual(ledgerEpoch))
		stay := reservations.MustDateRange("2024-06-01", "2024-06-03")

		hold, err := ledger.CreateHold(ctx, "R1", stay, "G1", holdTTL)
		require.NoError(t, err)

		first, err := ledger.Release(ctx, hold.ID)
		require.NoError(t, err)
		assert.Equal(t, reservations.StatusReleased, first.Status)

		second, err := ledger.Release(ctx, hold.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Status, second.Status)
		require.NotNil(t, second.ReleasedAt)
		assert.True(t, first.ReleasedAt.Equal(*second.ReleasedAt))

		_, err = ledger.CreateHold(ctx, "R1", stay, "G2", holdTTL)
		require.NoError(t, err)

		_, err = ledger.Release(ctx, "missing")
		require.ErrorIs(t, err, reservations.ErrNotFound)
	})

	t.Run("confirmed reservations can be released by cancellation", func(t *testing.T) {
		ctx := context.Background()
		ledger := newLedger(t, clock.NewManual(ledgerEpoch))

		hold, err := ledger.CreateHold(ctx, "R1", reservations.MustDateRange("2024-06-01", "2024-06-03"), "G1", holdTTL)
		require.NoError(t, err)
		_, err = ledger.Confirm(ctx, hold.ID, reservations.SettlementProof{ID: "set_1", Amount: 10})
		require.NoError(t, err)

		released, err := ledger.Release(ctx, hold.ID)
		require.NoError(t, err)
		assert.Equal(t, reservations.StatusReleased, released.Status)
		assert.Equal(t, "set_1", released.SettlementID)
	})

	t.Run("rejects malformed holds", func(t *testing.T) {
		ctx := context.Background()
		ledger := newLedger(t, clock.NewManual(ledgerEpoch))
		stay := reservations.MustDateRange("2024-06-01", "2024-06-03")

		_, err := ledger.CreateHold(ctx, "R1", stay, "", holdTTL)
		assert.ErrorIs(t, err, reservations.ErrInvalidRequest)
		_, err = ledger.CreateHold(ctx, "R1", stay, "G1", 0)
		assert.ErrorIs(t, err, reservations.ErrInvalidRequest)
		_, err = ledger.CreateHold(ctx, "R1", reservations.DateRange{}, "G1", holdTTL)
		assert.ErrorIs(t, err, reservations.ErrInvalidRange)
	})

	t.Run("snapshot reads", func(t *testing.T) {
		ctx := context.Background()
		clk := clock.NewManual(ledgerEpoch)
		ledger := newLedger(t, clk)

		a, err := ledger.CreateHold(ctx, "R1", reservations.MustDateRange("2024-06-05", "2024-06-07"), "G1", holdTTL)
		require.NoError(t, err)
		b, err := ledger.CreateHold(ctx, "R1", reservations.MustDateRange("2024-06-01", "2024-06-03"), "G1", holdTTL)
		require.NoError(t, err)
		_, err = ledger.CreateHold(ctx, "R2", reservations.MustDateRange("2024-06-20", "2024-06-21"), "G2", holdTTL)
		require.NoError(t, err)

		june := reservations.MustDateRange("2024-06-01", "2024-06-10")
		busy, err := ledger.ActiveOverlapping(ctx, []string{"R1", "R2"}, june, clk.Now())
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"R1": true}, busy)

		active, err := ledger.ActiveForRoom(ctx, "R1", june, clk.Now())
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, b.ID, active[0].ID, "ordered by check-in")
		assert.Equal(t, a.ID, active[1].ID)

		// Past expiry nothing is active even though no sweep ran
		later := clk.Now().Add(holdTTL)
		busy, err = ledger.ActiveOverlapping(ctx, []string{"R1", "R2"}, june, later)
		require.NoError(t, err)
		assert.Empty(t, busy)

		mine, err := ledger.ListByGuest(ctx, "G1")
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		none, err := ledger.ListByGuest(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)

		_, err = ledger.Get(ctx, "missing")
		assert.ErrorIs(t, err, reservations.ErrNotFound)
	})
}
