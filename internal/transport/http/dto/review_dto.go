package dto

import "time"

type SubmitReviewRequest struct {
	ID          int64      `json:"id"`
	BrokerName  string     `json:"broker_name"`
	Author      string     `json:"author"`
	Excerpt     string     `json:"excerpt"`
	ReviewLink  string     `json:"review_link"`
	Rating      float64    `json:"rating"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

type ReviewResponse struct {
	ID          int64      `json:"id"`
	BrokerName  string     `json:"broker_name"`
	Author      string     `json:"author"`
	Excerpt     string     `json:"excerpt"`
	ReviewLink  string     `json:"review_link"`
	Rating      float64    `json:"rating"`
	State       string     `json:"state"`
	SubmittedAt time.Time  `json:"submitted_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	DecidedBy   string     `json:"decided_by,omitempty"`
	NotifiedAt  *time.Time `json:"notified_at,omitempty"`
}

type SubmitReviewResponse struct {
	Review   ReviewResponse `json:"review"`
	Created  bool           `json:"created"`
	Notified bool           `json:"notified"`
}
