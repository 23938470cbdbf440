package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/larder-pos/larder/internal/catalog"
	"github.com/larder-pos/larder/internal/shared"
	"github.com/larder-pos/larder/internal/stock"
)

// ProductGateway resolves products with their ingredient lists.
type ProductGateway interface {
	Get(ctx context.Context, id int64) (catalog.Product, error)
}

// StockLedger is the reservation and release engine the service drives.
type StockLedger interface {
	Reserve(ctx context.Context, demand stock.Demand) error
	Release(ctx context.Context, demand stock.Demand) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// TaskEnqueuer schedules background follow-ups after order activity.
type TaskEnqueuer interface {
	EnqueueLowStockScan(ctx context.Context) error
}

// Service coordinates order placement, discard and deletion.
type Service struct {
	repo        Repository
	catalog     ProductGateway
	ledger      StockLedger
	idempotency *shared.IdempotencyStore
	audit       AuditPort
	tasks       TaskEnqueuer
	logger      *slog.Logger
}

// NewService builds Service. idempotency, audit and tasks may be nil.
func NewService(repo Repository, gateway ProductGateway, ledger StockLedger, idem *shared.IdempotencyStore, audit AuditPort, tasks TaskEnqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		catalog:     gateway,
		ledger:      ledger,
		idempotency: idem,
		audit:       audit,
		tasks:       tasks,
		logger:      logger,
	}
}

// LineRequest is a requested (product, quantity) pair.
type LineRequest struct {
	ProductID int64
	Quantity  int64
}

// PlaceRequest carries the input of Place. IdempotencyKey is optional;
// when set, a duplicate placement with the same key is rejected.
type PlaceRequest struct {
	Lines          []LineRequest
	IdempotencyKey string
}

// Place resolves the requested products, aggregates their ingredient
// demand, reserves it atomically and persists the order as completed.
// A failed reservation leaves every stock quantity exactly as it was.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (Order, error) {
	if len(req.Lines) == 0 {
		return Order{}, fmt.Errorf("%w: order must have at least one line", ErrInvalidRequest)
	}
	for _, line := range req.Lines {
		if line.ProductID <= 0 {
			return Order{}, fmt.Errorf("%w: invalid product id %d", ErrInvalidRequest, line.ProductID)
		}
		if line.Quantity < 1 {
			return Order{}, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidRequest)
		}
	}

	resolved := make([]resolvedLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		product, err := s.catalog.Get(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return Order{}, fmt.Errorf("%w: %d", ErrProductNotFound, line.ProductID)
			}
			return Order{}, fmt.Errorf("resolve product %d: %w", line.ProductID, err)
		}
		resolved = append(resolved, resolvedLine{Product: product, Quantity: line.Quantity})
	}

	demand, err := aggregateDemand(resolved)
	if err != nil {
		return Order{}, err
	}

	insertedKey := false
	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, req.IdempotencyKey, "orders"); err != nil {
			return Order{}, err
		}
		insertedKey = true
	}

	if err := s.ledger.Reserve(ctx, demand); err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(context.WithoutCancel(ctx), req.IdempotencyKey)
		}
		return Order{}, err
	}

	order := Order{Status: StatusCompleted, DateCreated: time.Now().UTC()}
	for _, line := range req.Lines {
		order.Lines = append(order.Lines, Line{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	created, err := s.repo.Create(ctx, order)
	if err != nil {
		// Stock is already taken; the compensating release must run
		// even if the caller has gone away.
		releaseCtx := context.WithoutCancel(ctx)
		if relErr := s.ledger.Release(releaseCtx, demand); relErr != nil {
			s.logger.Error("compensating release failed, stock and orders diverged",
				slog.Any("persist_error", err),
				slog.Any("release_error", relErr))
			return Order{}, fmt.Errorf("%w (persist: %v, release: %v)", ErrInconsistent, err, relErr)
		}
		if insertedKey {
			_ = s.idempotency.Delete(releaseCtx, req.IdempotencyKey)
		}
		return Order{}, fmt.Errorf("persist order: %w", err)
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "orders:place",
			Entity:   "order",
			EntityID: fmt.Sprintf("%d", created.ID),
			Meta:     map[string]any{"lines": len(created.Lines)},
		})
	}
	if s.tasks != nil {
		if err := s.tasks.EnqueueLowStockScan(ctx); err != nil {
			s.logger.Warn("enqueue low stock scan", slog.Any("error", err))
		}
	}
	return created, nil
}

// Discard returns an order's ingredient demand to stock and flips it to
// discarded. Lines whose product or stock items no longer resolve are
// skipped rather than failing the whole reversal; aborting would leave
// the order stuck completed and its stock sequestered forever.
func (s *Service) Discard(ctx context.Context, id int64) (Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if order.Status == StatusDiscarded {
		return Order{}, ErrAlreadyDiscarded
	}

	resolved := make([]resolvedLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		product, err := s.catalog.Get(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				s.logger.Warn("product missing, skipping line on reversal",
					slog.Int64("order_id", id),
					slog.Int64("product_id", line.ProductID))
				continue
			}
			return Order{}, fmt.Errorf("resolve product %d: %w", line.ProductID, err)
		}
		resolved = append(resolved, resolvedLine{Product: product, Quantity: line.Quantity})
	}

	demand := aggregateTolerant(s.logger, resolved)

	// Claim the transition before touching stock: the conditional update
	// admits exactly one of any concurrent discards, so the release
	// below runs at most once per order.
	updated, err := s.repo.MarkDiscarded(ctx, id)
	if err != nil {
		return Order{}, err
	}

	// The claim is durable; the release must run even if the caller has
	// gone away.
	releaseCtx := context.WithoutCancel(ctx)
	if err := s.ledger.Release(releaseCtx, demand); err != nil {
		s.logger.Error("release after discard failed, stock and orders diverged",
			slog.Int64("order_id", id),
			slog.Any("release_error", err))
		return Order{}, fmt.Errorf("%w (order %d discarded, release: %v)", ErrInconsistent, id, err)
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "orders:discard",
			Entity:   "order",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"items_returned": len(demand)},
		})
	}
	return updated, nil
}

// Delete removes an order record. Only discarded orders may be deleted,
// so stock can never be lost through deletion of a still-active order.
func (s *Service) Delete(ctx context.Context, id int64) error {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if order.Status != StatusDiscarded {
		return ErrNotDiscarded
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Order, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	if id <= 0 {
		return Order{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}
