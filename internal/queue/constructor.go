package queue

import (
	"github.com/maheshrc27/crosspost/internal/service"
)

type Queue struct {
	ms service.MetricsSyncer
}

func NewQueue(ms service.MetricsSyncer) *Queue {
	return &Queue{
		ms: ms,
	}
}

const TaskTypeSyncMetrics = "metrics:sync"

type SyncMetricsPayload struct {
	UserID string `json:"user_id"`
}
