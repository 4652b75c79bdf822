package job

import (
	"context"
	"log/slog"

	"github.com/maheshrc27/crosspost/internal/service"
)

type ScheduleSweepJob struct {
	st service.ScheduleTrigger
}

func NewScheduleSweepJob(st service.ScheduleTrigger) *ScheduleSweepJob {
	return &ScheduleSweepJob{st: st}
}

func (j *ScheduleSweepJob) Run() {
	// No deadline: every adapter call is bounded on its own and a publish
	// must reach a terminal status.
	result, err := j.st.Sweep(context.Background())
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if result.Processed > 0 {
		slog.Info("scheduled sweep finished", "processed", result.Processed, "failed", result.Failed)
	}
}
