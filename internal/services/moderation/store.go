package moderation

import (
	"context"
	"time"

	"github.com/ivankudzin/brokerreviews/internal/domain/enums"
	"github.com/ivankudzin/brokerreviews/internal/domain/model"
	"github.com/ivankudzin/brokerreviews/internal/infra/telegram"
)

// StateStore is implemented by the Postgres and in-memory review stores. Transition must be a
// compare-and-set: of any number of concurrent calls for one review, exactly one is Applied.
type StateStore interface {
	Register(ctx context.Context, review model.Review) (model.Review, bool, error)
	Transition(ctx context.Context, reviewID int64, target enums.ReviewState, issuer string) (model.TransitionOutcome, error)
	Lookup(ctx context.Context, reviewID int64) (model.Review, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]model.Review, error)
	MarkNotified(ctx context.Context, reviewID int64, at time.Time) error
}

type Channel interface {
	Send(ctx context.Context, text string) (telegram.MessageID, error)
}

type DecisionPublisher interface {
	PublishDecision(ctx context.Context, review model.Review) error
}
