package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/larder-pos/larder/internal/observability"
)

// LowStockScanner walks stock items and reports those at or below the
// configured threshold. It is invoked on a cron schedule and again after
// every completed order.
type LowStockScanner struct {
	pool      *pgxpool.Pool
	threshold float64
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewLowStockScanner constructs a scanner.
func NewLowStockScanner(pool *pgxpool.Pool, threshold float64, logger *slog.Logger, metrics *observability.Metrics) *LowStockScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockScanner{pool: pool, threshold: threshold, logger: logger, metrics: metrics}
}

// Handle processes TaskLowStockScan tasks.
func (s *LowStockScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, quantity_available, unit
		FROM stock_items
		WHERE quantity_available <= $1
		ORDER BY quantity_available ASC`, s.threshold)
	if err != nil {
		s.metrics.JobObserved(TaskLowStockScan, "error")
		return fmt.Errorf("jobs: low stock scan query: %w", err)
	}
	defer rows.Close()

	var flagged int
	for rows.Next() {
		var (
			id       int64
			name     string
			quantity float64
			unit     string
		)
		if err := rows.Scan(&id, &name, &quantity, &unit); err != nil {
			s.metrics.JobObserved(TaskLowStockScan, "error")
			return fmt.Errorf("jobs: low stock scan row: %w", err)
		}
		flagged++
		s.logger.Warn("stock running low",
			slog.Int64("stock_item_id", id),
			slog.String("name", name),
			slog.Float64("quantity_available", quantity),
			slog.String("unit", unit),
			slog.Float64("threshold", s.threshold))
	}
	if err := rows.Err(); err != nil {
		s.metrics.JobObserved(TaskLowStockScan, "error")
		return fmt.Errorf("jobs: low stock scan rows: %w", err)
	}

	s.metrics.JobObserved(TaskLowStockScan, "ok")
	s.logger.Info("low stock scan complete", slog.Int("flagged", flagged))
	return nil
}
