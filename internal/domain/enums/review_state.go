package enums

import "strings"

type ReviewState string

const (
	ReviewStatePending   ReviewState = "PENDING"
	ReviewStatePublished ReviewState = "PUBLISHED"
	ReviewStateRejected  ReviewState = "REJECTED"
)

func (s ReviewState) Valid() bool {
	switch s {
	case ReviewStatePending, ReviewStatePublished, ReviewStateRejected:
		return true
	default:
		return false
	}
}

// Terminal states accept no further transition.
func (s ReviewState) Terminal() bool {
	return s == ReviewStatePublished || s == ReviewStateRejected
}

func ParseReviewState(raw string) (ReviewState, bool) {
	state := ReviewState(strings.ToUpper(strings.TrimSpace(raw)))
	return state, state.Valid()
}
