// Package memory holds process-local stores used when Postgres or Redis are not configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ivankudzin/brokerreviews/internal/domain/enums"
	"github.com/ivankudzin/brokerreviews/internal/domain/model"
)

type reviewRecord struct {
	mu     sync.Mutex
	review model.Review
}

// ReviewStore keeps reviews in an arena indexed by id. Each record carries its own mutex, so
// transitions on different reviews never contend and transitions on the same review serialize.
type ReviewStore struct {
	records *xsync.MapOf[int64, *reviewRecord]
	now     func() time.Time
}

func NewReviewStore() *ReviewStore {
	return &ReviewStore{
		records: xsync.NewMapOf[int64, *reviewRecord](),
		now:     time.Now,
	}
}

func (s *ReviewStore) Register(_ context.Context, review model.Review) (model.Review, bool, error) {
	if err := review.Validate(); err != nil {
		return model.Review{}, false, err
	}

	review.State = enums.ReviewStatePending
	review.DecidedAt = nil
	review.DecidedBy = ""
	review.NotifiedAt = nil
	if review.SubmittedAt.IsZero() {
		review.SubmittedAt = s.now().UTC()
	}

	record, loaded := s.records.LoadOrStore(review.ID, &reviewRecord{review: review})
	if !loaded {
		return review, true, nil
	}

	record.mu.Lock()
	defer record.mu.Unlock()
	return record.review, false, nil
}

func (s *ReviewStore) Transition(_ context.Context, reviewID int64, target enums.ReviewState, issuer string) (model.TransitionOutcome, error) {
	if !target.Terminal() {
		return model.TransitionOutcome{}, fmt.Errorf("%w: target %q", model.ErrInvalidTransition, target)
	}

	record, ok := s.records.Load(reviewID)
	if !ok {
		return model.TransitionOutcome{}, model.ErrReviewNotFound
	}

	record.mu.Lock()
	defer record.mu.Unlock()

	if record.review.State.Terminal() {
		return model.TransitionOutcome{Applied: false, State: record.review.State, Review: record.review}, nil
	}

	decidedAt := s.now().UTC()
	record.review.State = target
	record.review.DecidedAt = &decidedAt
	record.review.DecidedBy = strings.TrimSpace(issuer)

	return model.TransitionOutcome{Applied: true, State: target, Review: record.review}, nil
}

func (s *ReviewStore) Lookup(_ context.Context, reviewID int64) (model.Review, error) {
	record, ok := s.records.Load(reviewID)
	if !ok {
		return model.Review{}, model.ErrReviewNotFound
	}

	record.mu.Lock()
	defer record.mu.Unlock()
	return record.review, nil
}

func (s *ReviewStore) ListStalePending(_ context.Context, cutoff time.Time, limit int) ([]model.Review, error) {
	if limit <= 0 {
		limit = 10
	}

	var out []model.Review
	s.records.Range(func(_ int64, record *reviewRecord) bool {
		record.mu.Lock()
		review := record.review
		record.mu.Unlock()

		if review.State != enums.ReviewStatePending {
			return true
		}
		last := review.SubmittedAt
		if review.NotifiedAt != nil {
			last = *review.NotifiedAt
		}
		if last.Before(cutoff) {
			out = append(out, review)
		}
		return true
	})

	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (s *ReviewStore) MarkNotified(_ context.Context, reviewID int64, at time.Time) error {
	record, ok := s.records.Load(reviewID)
	if !ok {
		return model.ErrReviewNotFound
	}

	record.mu.Lock()
	defer record.mu.Unlock()
	notifiedAt := at.UTC()
	record.review.NotifiedAt = &notifiedAt
	return nil
}
