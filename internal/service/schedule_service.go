package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/crosspost/internal/lock"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const sweepLockKey = "lock:schedule-sweep"

// ScheduleTrigger publishes scheduled posts whose time has come. Each call is
// one bounded, sequential pass.
type ScheduleTrigger interface {
	Sweep(ctx context.Context) (*transfer.SweepResult, error)
}

type scheduleTrigger struct {
	posts       repository.PostRepository
	coordinator PublishCoordinator
	locker      *lock.Locker
	batch       int
	now         func() time.Time
}

func NewScheduleTrigger(posts repository.PostRepository, coordinator PublishCoordinator, locker *lock.Locker, batch int) ScheduleTrigger {
	return &scheduleTrigger{
		posts:       posts,
		coordinator: coordinator,
		locker:      locker,
		batch:       batch,
		now:         time.Now,
	}
}

func (s *scheduleTrigger) Sweep(ctx context.Context) (*transfer.SweepResult, error) {
	runID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	log := slog.With("run_id", runID)

	result := &transfer.SweepResult{}

	release, err := s.locker.Acquire(ctx, sweepLockKey)
	if errors.Is(err, lock.ErrNotAcquired) {
		log.Info("schedule sweep already running")
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquiring sweep lock: %w", err)
	}
	defer release()

	due, err := s.posts.ListDue(ctx, s.now(), s.batch)
	if err != nil {
		return nil, fmt.Errorf("listing due posts: %w", err)
	}

	for _, post := range due {
		result.Processed++

		if field := post.MissingField(); field != "" {
			s.fail(ctx, log, post.ID, models.PostError{
				Message: fmt.Sprintf("scheduled post is missing required field %q", field),
				Kind:    string(KindValidation),
			})
			result.Failed++
			continue
		}

		err := s.publish(ctx, post)
		if errors.Is(err, ErrPublishInProgress) {
			log.Info("scheduled post already publishing", "post_id", post.ID)
			continue
		}
		if err != nil {
			s.fail(ctx, log, post.ID, models.PostError{Message: err.Error(), Kind: string(KindOf(err))})
			result.Failed++
			continue
		}
		log.Info("scheduled post handled", "post_id", post.ID)
	}

	log.Info("schedule sweep finished", "processed", result.Processed, "failed", result.Failed)
	return result, nil
}

// publish turns a panic anywhere on the publish path into an error so the
// rest of the batch still runs.
func (s *scheduleTrigger) publish(ctx context.Context, post *models.Post) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("publish panicked: %v", r)
		}
	}()

	_, err = s.coordinator.PublishPost(ctx, post, nil)
	return err
}

func (s *scheduleTrigger) fail(ctx context.Context, log *slog.Logger, postID string, postErr models.PostError) {
	log.Warn("scheduled post failed", "post_id", postID, "error", postErr.Message)
	if err := s.posts.MarkFailed(context.WithoutCancel(ctx), postID, postErr); err != nil {
		log.Error("marking post failed", "post_id", postID, "error", err)
	}
}
