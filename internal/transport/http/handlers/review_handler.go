package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/brokerreviews/internal/domain/model"
	"github.com/ivankudzin/brokerreviews/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/brokerreviews/internal/transport/http/errors"
)

type ReviewSubmitter interface {
	Submit(ctx context.Context, review model.Review) (model.Review, bool, error)
}

type ReviewLookup interface {
	Lookup(ctx context.Context, reviewID int64) (model.Review, error)
}

type ReviewHandler struct {
	submitter ReviewSubmitter
	lookup    ReviewLookup
	logger    *zap.Logger
}

func NewReviewHandler(submitter ReviewSubmitter, lookup ReviewLookup, logger *zap.Logger) *ReviewHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewHandler{submitter: submitter, lookup: lookup, logger: logger}
}

// Submit registers a review for moderation. The review is stored even when the channel
// announcement fails; that case answers 202 with notified=false.
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.submitter == nil {
		writeInternal(w, "MODERATION_UNAVAILABLE", "moderation service is unavailable")
		return
	}

	var req dto.SubmitReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	review := model.Review{
		ID:         req.ID,
		BrokerName: req.BrokerName,
		Author:     req.Author,
		Excerpt:    req.Excerpt,
		ReviewLink: req.ReviewLink,
		Rating:     req.Rating,
	}
	if req.SubmittedAt != nil {
		review.SubmittedAt = req.SubmittedAt.UTC()
	}

	stored, created, err := h.submitter.Submit(r.Context(), review)
	switch {
	case errors.Is(err, model.ErrInvalidReview):
		writeBadRequest(w, "VALIDATION_ERROR", err.Error())
		return
	case err != nil && stored.ID == 0:
		h.logger.Error("submit review failed", zap.Int64("review_id", req.ID), zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	case err != nil:
		h.logger.Warn("review stored but not announced", zap.Int64("review_id", stored.ID), zap.Error(err))
		httperrors.Write(w, http.StatusAccepted, dto.SubmitReviewResponse{
			Review:  toReviewResponse(stored),
			Created: created,
		})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httperrors.Write(w, status, dto.SubmitReviewResponse{
		Review:   toReviewResponse(stored),
		Created:  created,
		Notified: created,
	})
}

func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.lookup == nil {
		writeInternal(w, "MODERATION_UNAVAILABLE", "moderation service is unavailable")
		return
	}

	reviewID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || reviewID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "review id must be a positive integer")
		return
	}

	review, err := h.lookup.Lookup(r.Context(), reviewID)
	if errors.Is(err, model.ErrReviewNotFound) {
		writeNotFound(w, "REVIEW_NOT_FOUND", "review not found")
		return
	}
	if err != nil {
		h.logger.Error("lookup review failed", zap.Int64("review_id", reviewID), zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, toReviewResponse(review))
}

func toReviewResponse(review model.Review) dto.ReviewResponse {
	return dto.ReviewResponse{
		ID:          review.ID,
		BrokerName:  review.BrokerName,
		Author:      review.Author,
		Excerpt:     review.Excerpt,
		ReviewLink:  review.ReviewLink,
		Rating:      review.Rating,
		State:       string(review.State),
		SubmittedAt: review.SubmittedAt,
		DecidedAt:   review.DecidedAt,
		DecidedBy:   review.DecidedBy,
		NotifiedAt:  review.NotifiedAt,
	}
}
