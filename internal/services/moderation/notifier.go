package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/ivankudzin/brokerreviews/internal/domain/model"
	"github.com/ivankudzin/brokerreviews/internal/infra/telegram"
	"github.com/ivankudzin/brokerreviews/internal/metrics"
	"github.com/ivankudzin/brokerreviews/internal/pkg/markdown"
)

const defaultAnnounceWindow = 4 * time.Second

// Notifier registers submitted reviews and announces them to the moderation channel. The
// channel client never retries; temporary delivery errors are retried here with backoff.
type Notifier struct {
	store      StateStore
	channel    Channel
	logger     *zap.Logger
	maxElapsed time.Duration
	now        func() time.Time
	newBackOff func() backoff.BackOff
}

func NewNotifier(store StateStore, channel Channel, logger *zap.Logger, maxElapsed time.Duration) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxElapsed <= 0 {
		maxElapsed = defaultAnnounceWindow
	}

	n := &Notifier{
		store:      store,
		channel:    channel,
		logger:     logger,
		maxElapsed: maxElapsed,
		now:        time.Now,
	}
	n.newBackOff = n.defaultBackOff
	return n
}

func (n *Notifier) defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = n.maxElapsed
	return b
}

// Submit stores a new pending review and announces it. Re-submitting a known id returns the
// stored review with created=false and sends nothing. An announce failure is returned with the
// stored review; the reminder job picks the review up later.
func (n *Notifier) Submit(ctx context.Context, review model.Review) (model.Review, bool, error) {
	if n.store == nil {
		return model.Review{}, false, ErrStoreNotConfigured
	}

	stored, created, err := n.store.Register(ctx, review)
	if err != nil {
		return model.Review{}, false, err
	}
	if !created {
		return stored, false, nil
	}

	if err := n.Announce(ctx, stored); err != nil {
		return stored, true, err
	}
	return stored, true, nil
}

func (n *Notifier) Announce(ctx context.Context, review model.Review) error {
	if n.channel == nil {
		return telegram.ErrNotInitialized
	}

	text := FormatReview(review)
	if err := markdown.Validate(text); err != nil {
		metrics.InvalidMarkup.Inc()
		n.logger.Error("rendered review is not valid markdownv2", zap.Int64("review_id", review.ID), zap.Error(err))
		return fmt.Errorf("render review %d: %w", review.ID, err)
	}

	// No attempt starts after the window closes, so Submit returns within maxElapsed plus one
	// provider request.
	retryCtx, cancel := context.WithTimeout(ctx, n.maxElapsed)
	defer cancel()

	send := func() error {
		_, err := n.channel.Send(retryCtx, text)
		if err == nil {
			return nil
		}

		var delivery *telegram.DeliveryError
		if !errors.As(err, &delivery) || !delivery.Temporary() {
			return backoff.Permanent(err)
		}
		if delivery.RetryAfter > 0 {
			if delivery.RetryAfter > n.maxElapsed {
				return backoff.Permanent(err)
			}
			if waitErr := sleepContext(retryCtx, delivery.RetryAfter); waitErr != nil {
				return backoff.Permanent(err)
			}
		}
		return err
	}

	err := backoff.RetryNotify(send, backoff.WithContext(n.newBackOff(), retryCtx), func(err error, wait time.Duration) {
		n.logger.Warn("announce review failed, retrying",
			zap.Int64("review_id", review.ID),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	metrics.ChannelSends.WithLabelValues("announcement", metrics.SendResult(err)).Inc()
	if err != nil {
		return fmt.Errorf("announce review %d: %w", review.ID, err)
	}

	if err := n.store.MarkNotified(ctx, review.ID, n.now().UTC()); err != nil {
		n.logger.Warn("mark review notified failed", zap.Int64("review_id", review.ID), zap.Error(err))
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
