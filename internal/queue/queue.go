package queue

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// A second sync for the same owner is rejected while one is queued and for
// syncUniqueFor after it completes.
const syncUniqueFor = time.Hour

func EnqueueSync(asynqClient *asynq.Client, payload SyncMetricsPayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeSyncMetrics, taskPayload)

	_, err = asynqClient.Enqueue(task,
		asynq.TaskID(TaskTypeSyncMetrics+":"+payload.UserID),
		asynq.MaxRetry(3),
		asynq.Retention(syncUniqueFor),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		slog.Info("metrics sync already queued", "user_id", payload.UserID)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("metrics sync queued", "user_id", payload.UserID)
	return nil
}
