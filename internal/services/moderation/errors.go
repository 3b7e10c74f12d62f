package moderation

import (
	"errors"
	"fmt"

	"github.com/ivankudzin/brokerreviews/internal/domain/model"
)

var ErrStoreNotConfigured = errors.New("review state store is not configured")

// UnknownReviewError is returned when a command names a review id the store does not hold.
type UnknownReviewError struct {
	ReviewID int64
}

func (e *UnknownReviewError) Error() string {
	return fmt.Sprintf("unknown review %d", e.ReviewID)
}

func (e *UnknownReviewError) Is(target error) bool {
	return target == model.ErrReviewNotFound
}
