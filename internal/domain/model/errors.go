package model

import "errors"

var (
	ErrReviewNotFound    = errors.New("review not found")
	ErrInvalidTransition = errors.New("invalid review transition")
	ErrInvalidReview     = errors.New("invalid review")
)
