package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ivankudzin/brokerreviews/internal/domain/enums"
)

const (
	MinRating = 0
	MaxRating = 5

	MaxReviewLinkLength = 1024
)

type Review struct {
	ID          int64             `json:"id"`
	BrokerName  string            `json:"broker_name"`
	Author      string            `json:"author"`
	Excerpt     string            `json:"excerpt"`
	ReviewLink  string            `json:"review_link"`
	Rating      float64           `json:"rating"`
	State       enums.ReviewState `json:"state"`
	SubmittedAt time.Time         `json:"submitted_at"`
	DecidedAt   *time.Time        `json:"decided_at,omitempty"`
	DecidedBy   string            `json:"decided_by,omitempty"`
	NotifiedAt  *time.Time        `json:"notified_at,omitempty"`
}

func (r Review) Decided() bool {
	return r.State.Terminal()
}

// Validate checks the fields the upstream content system must provide.
func (r Review) Validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidReview)
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		return fmt.Errorf("%w: rating %.2f out of range", ErrInvalidReview, r.Rating)
	}
	if strings.TrimSpace(r.BrokerName) == "" {
		return fmt.Errorf("%w: broker name is required", ErrInvalidReview)
	}
	if utf8.RuneCountInString(r.ReviewLink) > MaxReviewLinkLength {
		return fmt.Errorf("%w: review link longer than %d characters", ErrInvalidReview, MaxReviewLinkLength)
	}
	return nil
}

// TransitionOutcome is the result of a compare-and-set on a review's state. When Applied is
// false the review was already decided and State holds the existing terminal state.
type TransitionOutcome struct {
	Applied bool
	State   enums.ReviewState
	Review  Review
}
