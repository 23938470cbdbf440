package stock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu         sync.Mutex
	quantities map[int64]float64

	// forceConflicts makes that many CompareAndSwap calls lose.
	forceConflicts int
}

func newMemoryStore(quantities map[int64]float64) *memoryStore {
	qs := make(map[int64]float64, len(quantities))
	for id, qty := range quantities {
		qs[id] = qty
	}
	return &memoryStore{quantities: qs}
}

func (s *memoryStore) GetQuantity(ctx context.Context, id int64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qty, ok := s.quantities[id]
	if !ok {
		return 0, ErrNotFound
	}
	return qty, nil
}

func (s *memoryStore) CompareAndSwapQuantity(ctx context.Context, id int64, expected, next float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forceConflicts > 0 {
		s.forceConflicts--
		return false, nil
	}
	qty, ok := s.quantities[id]
	if !ok || qty != expected {
		return false, nil
	}
	s.quantities[id] = next
	return true, nil
}

func (s *memoryStore) snapshot() map[int64]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]float64, len(s.quantities))
	for id, qty := range s.quantities {
		out[id] = qty
	}
	return out
}

func newTestLedger(store QuantityStore) *Ledger {
	return NewLedger(store, nil, nil, LedgerConfig{MaxAttempts: 5, Backoff: time.Millisecond})
}

func TestReserveDeductsEveryItem(t *testing.T) {
	store := newMemoryStore(map[int64]float64{1: 50, 2: 8})
	ledger := newTestLedger(store)

	err := ledger.Reserve(context.Background(), Demand{
		1: {Name: "Coffee beans", Unit: "kg", Qty: 0.2},
		2: {Name: "Milk", Unit: "l", Qty: 3},
	})
	require.NoError(t, err)
	require.InDelta(t, 49.8, store.snapshot()[1], 1e-9)
	require.InDelta(t, 5, store.snapshot()[2], 1e-9)
}

func TestReserveInsufficiencyReportsEveryShortItem(t *testing.T) {
	store := newMemoryStore(map[int64]float64{1: 5, 2: 100, 3: 1})
	ledger := newTestLedger(store)

	err := ledger.Reserve(context.Background(), Demand{
		1: {Name: "Flour", Unit: "kg", Qty: 10},
		2: {Name: "Sugar", Unit: "kg", Qty: 4},
		3: {Name: "Yeast", Unit: "g", Qty: 2},
	})

	var insufficient *InsufficiencyError
	require.ErrorAs(t, err, &insufficient)
	require.Len(t, insufficient.Shortfalls, 2)

	byID := make(map[int64]Shortfall)
	for _, s := range insufficient.Shortfalls {
		byID[s.StockItemID] = s
	}
	require.Equal(t, Shortfall{StockItemID: 1, Name: "Flour", Available: 5, Needed: 10}, byID[1])
	require.Equal(t, Shortfall{StockItemID: 3, Name: "Yeast", Available: 1, Needed: 2}, byID[3])

	// validation failed, so nothing may have been decremented
	require.Equal(t, map[int64]float64{1: 5, 2: 100, 3: 1}, store.snapshot())
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	store := newMemoryStore(map[int64]float64{1: 50, 2: 12.5})
	ledger := newTestLedger(store)
	demand := Demand{
		1: {Name: "Beans", Unit: "kg", Qty: 7.25},
		2: {Name: "Milk", Unit: "l", Qty: 12.5},
	}

	require.NoError(t, ledger.Reserve(context.Background(), demand))
	require.NoError(t, ledger.Release(context.Background(), demand))
	require.Equal(t, map[int64]float64{1: 50, 2: 12.5}, store.snapshot())
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	store := newMemoryStore(map[int64]float64{1: 50})
	ledger := newTestLedger(store)
	demand := Demand{1: {Name: "Beans", Unit: "kg", Qty: 30}}

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- ledger.Reserve(context.Background(), demand)
		}()
	}
	wg.Wait()
	close(results)

	var committed, insufficient int
	for err := range results {
		var shortErr *InsufficiencyError
		switch {
		case err == nil:
			committed++
		case errors.As(err, &shortErr):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, committed)
	require.Equal(t, 1, insufficient)
	require.InDelta(t, 20, store.snapshot()[1], 1e-9)
}

func TestManyConcurrentReservationsKeepQuantityNonNegative(t *testing.T) {
	store := newMemoryStore(map[int64]float64{1: 100})
	ledger := NewLedger(store, nil, nil, LedgerConfig{MaxAttempts: 20, Backoff: time.Microsecond})
	demand := Demand{1: {Name: "Beans", Unit: "kg", Qty: 9}}

	const workers = 25
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- ledger.Reserve(context.Background(), demand)
		}()
	}
	wg.Wait()
	close(results)

	var committed int
	for err := range results {
		if err == nil {
			committed++
		}
	}
	final := store.snapshot()[1]
	require.InDelta(t, 100-9*float64(committed), final, 1e-9)
	require.GreaterOrEqual(t, final, 0.0)
}

func TestReserveContentionSurfacesAfterRetryBudget(t *testing.T) {
	store := newMemoryStore(map[int64]float64{1: 50})
	store.forceConflicts = 1000
	ledger := NewLedger(store, nil, nil, LedgerConfig{MaxAttempts: 3, Backoff: time.Microsecond})

	err := ledger.Reserve(context.Background(), Demand{1: {Name: "Beans", Qty: 1}})
	require.ErrorIs(t, err, ErrContention)
}

func TestReleaseSkipsMissingItems(t *testing.T) {
	store := newMemoryStore(map[int64]float64{1: 10})
	ledger := newTestLedger(store)

	err := ledger.Release(context.Background(), Demand{
		1:  {Name: "Beans", Qty: 2},
		99: {Name: "Deleted item", Qty: 5},
	})
	require.NoError(t, err)
	require.InDelta(t, 12, store.snapshot()[1], 1e-9)
}

func TestReleaseContentionSurfacesAfterRetryBudget(t *testing.T) {
	store := newMemoryStore(map[int64]float64{1: 10})
	store.forceConflicts = 1000
	ledger := NewLedger(store, nil, nil, LedgerConfig{MaxAttempts: 3, Backoff: time.Microsecond})

	err := ledger.Release(context.Background(), Demand{1: {Name: "Beans", Qty: 2}})
	require.ErrorIs(t, err, ErrContention)
}

func TestConcurrentReleasesAllApply(t *testing.T) {
	store := newMemoryStore(map[int64]float64{1: 0})
	ledger := NewLedger(store, nil, nil, LedgerConfig{MaxAttempts: 50, Backoff: time.Microsecond})

	const workers = 10
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ledger.Release(context.Background(), Demand{1: {Name: "Beans", Qty: 3}})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.InDelta(t, 30, store.snapshot()[1], 1e-9)
}
