package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/crosspost/internal/queue"
)

type ownerLister interface {
	ListOwnersWithRemoteID(ctx context.Context) ([]string, error)
}

// enqueueFunc matches queue.EnqueueSync bound to a client.
type enqueueFunc func(payload queue.SyncMetricsPayload) error

// MetricsSyncJob queues one metrics sync per owner with published posts.
type MetricsSyncJob struct {
	posts   ownerLister
	enqueue enqueueFunc
}

func NewMetricsSyncJob(posts ownerLister, enqueue enqueueFunc) *MetricsSyncJob {
	return &MetricsSyncJob{posts: posts, enqueue: enqueue}
}

func (j *MetricsSyncJob) EnqueueAll(ctx context.Context) (int, error) {
	owners, err := j.posts.ListOwnersWithRemoteID(ctx)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	queued := 0
	for _, owner := range owners {
		if err := j.enqueue(queue.SyncMetricsPayload{UserID: owner}); err != nil {
			slog.Info("unable to queue metrics sync", "user_id", owner, "error", err)
			continue
		}
		queued++
	}
	return queued, nil
}

func (j *MetricsSyncJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := j.EnqueueAll(ctx)
	if err != nil {
		return
	}
	slog.Info("metrics sync queued", "owners", n)
}
