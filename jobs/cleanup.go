package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/larder-pos/larder/internal/observability"
	"github.com/larder-pos/larder/internal/shared"
)

// IdempotencyCleaner prunes idempotency keys older than the task's window.
type IdempotencyCleaner struct {
	store   *shared.IdempotencyStore
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewIdempotencyCleaner constructs a cleaner.
func NewIdempotencyCleaner(store *shared.IdempotencyStore, logger *slog.Logger, metrics *observability.Metrics) *IdempotencyCleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleaner{store: store, logger: logger, metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (c *IdempotencyCleaner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OlderThan <= 0 {
		payload.OlderThan = 24 * time.Hour
	}
	if err := c.store.Cleanup(ctx, payload.OlderThan); err != nil {
		c.metrics.JobObserved(TaskIdempotencyCleanup, "error")
		return fmt.Errorf("jobs: idempotency cleanup: %w", err)
	}
	c.metrics.JobObserved(TaskIdempotencyCleanup, "ok")
	c.logger.Info("idempotency cleanup complete", slog.Duration("older_than", payload.OlderThan))
	return nil
}
