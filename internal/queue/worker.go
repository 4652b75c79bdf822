package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

func (j *Queue) HandleSyncMetricsTask(ctx context.Context, task *asynq.Task) error {
	var payload SyncMetricsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decoding %s payload: %v: %w", TaskTypeSyncMetrics, err, asynq.SkipRetry)
	}
	if payload.UserID == "" {
		return fmt.Errorf("%s payload has no user: %w", TaskTypeSyncMetrics, asynq.SkipRetry)
	}

	result, err := j.ms.Sync(ctx, payload.UserID)
	if err != nil {
		return err
	}

	slog.Info("metrics sync finished",
		"user_id", payload.UserID,
		"updated", result.Updated,
		"rate_limited", len(result.RateLimited))
	return nil
}
