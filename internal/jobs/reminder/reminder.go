package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/brokerreviews/internal/domain/model"
	"github.com/ivankudzin/brokerreviews/internal/metrics"
)

type pendingLister interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]model.Review, error)
}

type announcer interface {
	Announce(ctx context.Context, review model.Review) error
}

// Job re-announces reviews that have waited for a decision longer than the configured age.
type Job struct {
	store     pendingLister
	announcer announcer
	after     time.Duration
	batch     int
	now       func() time.Time
	logger    *zap.Logger
}

func New(store pendingLister, announcer announcer, after time.Duration, batch int, logger *zap.Logger) *Job {
	if after <= 0 {
		after = 24 * time.Hour
	}
	if batch <= 0 {
		batch = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		store:     store,
		announcer: announcer,
		after:     after,
		batch:     batch,
		now:       time.Now,
		logger:    logger,
	}
}

// Run performs one pass. A failed announcement is logged and the pass continues; the review stays
// stale and is retried on the next pass.
func (j *Job) Run(ctx context.Context) error {
	if j.store == nil || j.announcer == nil {
		return nil
	}

	cutoff := j.now().Add(-j.after)
	reviews, err := j.store.ListStalePending(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list stale pending reviews: %w", err)
	}

	reminded := 0
	for _, review := range reviews {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.announcer.Announce(ctx, review); err != nil {
			j.logger.Warn("pending review reminder failed", zap.Int64("review_id", review.ID), zap.Error(err))
			continue
		}
		reminded++
	}

	if reminded > 0 {
		metrics.RemindersSent.Add(float64(reminded))
		j.logger.Info("pending review reminders sent", zap.Int("count", reminded), zap.Int("stale", len(reviews)))
	}
	return nil
}

// Loop runs the job immediately and then every interval until ctx is done.
func (j *Job) Loop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}

	if err := j.Run(ctx); err != nil {
		j.logger.Warn("pending review reminder pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("pending review reminder pass failed", zap.Error(err))
			}
		}
	}
}
