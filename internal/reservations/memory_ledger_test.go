package reservations_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"staybook/internal/reservations"
	"staybook/internal/shared/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerContract(t *testing.T) {
	runLedgerContract(t, func(t *testing.T, clk clock.Clock) reservations.Ledger {
		return reservations.NewMemoryLedger(clk)
	})
}

func TestMemoryLedgerReadsDuringWrites(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(ledgerEpoch)
	ledger := reservations.NewMemoryLedger(clk)
	horizon := reservations.MustDateRange("2024-08-01", "2024-09-01")
	base := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			active, err := ledger.ActiveForRoom(ctx, "R1", horizon, clk.Now())
			if !assert.NoError(t, err) {
				return
			}
			// Whatever snapshot we see must itself be overlap-free
			for i := 1; i < len(active); i++ {
				assert.False(t, active[i-1].Range().Overlaps(active[i].Range()))
			}
		}
	}()

	for i := 0; i < 31; i++ {
		stay, err := reservations.NewDateRange(base.AddDate(0, 0, i), base.AddDate(0, 0, i+1))
		require.NoError(t, err)
		_, err = ledger.CreateHold(ctx, "R1", stay, "guest", holdTTL)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	active, err := ledger.ActiveForRoom(ctx, "R1", horizon, clk.Now())
	require.NoError(t, err)
	assert.Len(t, active, 31)
}

func TestMemoryLedgerHonoursCancelledContext(t *testing.T) {
	ledger := reservations.NewMemoryLedger(clock.NewManual(ledgerEpoch))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ledger.CreateHold(ctx, "R1", reservations.MustDateRange("2024-06-01", "2024-06-02"), "G1", holdTTL)
	assert.ErrorIs(t, err, context.Canceled)
}
