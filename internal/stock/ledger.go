package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/larder-pos/larder/internal/observability"
)

// QuantityStore is the minimal stock access the Ledger needs. The
// postgres Repository satisfies it; tests substitute an in-memory fake.
type QuantityStore interface {
	GetQuantity(ctx context.Context, id int64) (float64, error)
	CompareAndSwapQuantity(ctx context.Context, id int64, expected, next float64) (bool, error)
}

// Ledger owns every mutation of quantity_available that results from
// order activity. Reserve decrements a whole Demand atomically or not at
// all; Release adds quantities back. Conflicting reservations are
// resolved by compare-and-swap with bounded retries, so reservations
// touching disjoint items never serialise behind each other.
type Ledger struct {
	store       QuantityStore
	logger      *slog.Logger
	metrics     *observability.Metrics
	maxAttempts int
	backoff     time.Duration
}

// LedgerConfig groups optional tuning knobs for the ledger.
type LedgerConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

// NewLedger builds a Ledger.
func NewLedger(store QuantityStore, logger *slog.Logger, metrics *observability.Metrics, cfg LedgerConfig) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Millisecond
	}
	return &Ledger{
		store:       store,
		logger:      logger,
		metrics:     metrics,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
	}
}

// Reserve decrements every item in demand by its required quantity, or
// none of them. Validation precedes mutation: if any item is short the
// whole operation aborts with an InsufficiencyError listing every short
// item. A lost compare-and-swap rolls back whatever was applied and
// retries the whole reservation; exhausting the retry budget surfaces
// ErrContention.
func (l *Ledger) Reserve(ctx context.Context, demand Demand) error {
	if len(demand) == 0 {
		return nil
	}
	ids := sortedIDs(demand)

	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := l.wait(ctx, attempt); err != nil {
				return err
			}
		}

		observed := make(map[int64]float64, len(ids))
		var shortfalls []Shortfall
		for _, id := range ids {
			line := demand[id]
			qty, err := l.store.GetQuantity(ctx, id)
			if err != nil {
				return fmt.Errorf("read quantity for item %d: %w", id, err)
			}
			observed[id] = qty
			if qty < line.Qty {
				shortfalls = append(shortfalls, Shortfall{
					StockItemID: id,
					Name:        line.Name,
					Available:   qty,
					Needed:      line.Qty,
				})
			}
		}
		if len(shortfalls) > 0 {
			l.metrics.ReservationObserved("insufficient")
			return &InsufficiencyError{Shortfalls: shortfalls}
		}

		applied := make([]int64, 0, len(ids))
		conflicted := false
		for _, id := range ids {
			line := demand[id]
			ok, err := l.store.CompareAndSwapQuantity(ctx, id, observed[id], observed[id]-line.Qty)
			if err != nil {
				if rbErr := l.returnItems(context.WithoutCancel(ctx), demand, applied); rbErr != nil {
					return errors.Join(fmt.Errorf("apply reservation for item %d: %w", id, err), rbErr)
				}
				return fmt.Errorf("apply reservation for item %d: %w", id, err)
			}
			if !ok {
				conflicted = true
				break
			}
			applied = append(applied, id)
		}
		if !conflicted {
			l.metrics.ReservationObserved("committed")
			return nil
		}

		// Another reservation won the race. Undo the partial
		// application before retrying against fresh quantities.
		if err := l.returnItems(context.WithoutCancel(ctx), demand, applied); err != nil {
			return err
		}
		l.logger.Debug("reservation conflict, retrying", slog.Int("attempt", attempt+1))
	}

	l.metrics.ReservationObserved("contended")
	return ErrContention
}

// Release adds the given quantities back unconditionally. Increments
// commute, so concurrent releases on the same item both succeed; each
// item retries its compare-and-swap with the same bounded backoff as
// Reserve, surfacing ErrContention once the budget is spent. Items that
// no longer exist are skipped with a warning, since a deleted stock
// item simply cannot receive its return.
func (l *Ledger) Release(ctx context.Context, demand Demand) error {
	return l.returnItems(ctx, demand, sortedIDs(demand))
}

func (l *Ledger) returnItems(ctx context.Context, demand Demand, ids []int64) error {
	for _, id := range ids {
		line := demand[id]
		if err := l.returnItem(ctx, id, line.Qty); err != nil {
			if errors.Is(err, ErrNotFound) {
				l.logger.Warn("stock item missing on release, skipping",
					slog.Int64("stock_item_id", id),
					slog.Float64("qty", line.Qty))
				continue
			}
			return fmt.Errorf("release item %d: %w", id, err)
		}
	}
	return nil
}

func (l *Ledger) returnItem(ctx context.Context, id int64, qty float64) error {
	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := l.wait(ctx, attempt); err != nil {
				return err
			}
		}
		current, err := l.store.GetQuantity(ctx, id)
		if err != nil {
			return err
		}
		ok, err := l.store.CompareAndSwapQuantity(ctx, id, current, current+qty)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrContention
}

func (l *Ledger) wait(ctx context.Context, attempt int) error {
	delay := l.backoff << (attempt - 1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func sortedIDs(demand Demand) []int64 {
	ids := make([]int64, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
