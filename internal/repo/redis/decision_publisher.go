package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/brokerreviews/internal/domain/model"
)

type DecisionEvent struct {
	EventID   string    `json:"event_id"`
	ReviewID  int64     `json:"review_id"`
	State     string    `json:"state"`
	DecidedBy string    `json:"decided_by"`
	DecidedAt time.Time `json:"decided_at"`
}

// DecisionPublisher tells the content system about applied decisions over Redis pub/sub.
type DecisionPublisher struct {
	client  *goredis.Client
	channel string
}

func NewDecisionPublisher(client *goredis.Client, channel string) *DecisionPublisher {
	if strings.TrimSpace(channel) == "" {
		channel = "reviews:decisions"
	}
	return &DecisionPublisher{client: client, channel: channel}
}

func (p *DecisionPublisher) PublishDecision(ctx context.Context, review model.Review) error {
	if p.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	event := DecisionEvent{
		EventID:   uuid.NewString(),
		ReviewID:  review.ID,
		State:     string(review.State),
		DecidedBy: review.DecidedBy,
	}
	if review.DecidedAt != nil {
		event.DecidedAt = review.DecidedAt.UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal decision event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish decision event: %w", err)
	}

	return nil
}
