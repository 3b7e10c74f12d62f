package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const updatePrefix = "tg:update:"

// UpdateDedupRepo remembers processed Telegram update ids so redelivered webhooks are skipped.
type UpdateDedupRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewUpdateDedupRepo(client *goredis.Client, ttl time.Duration) *UpdateDedupRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &UpdateDedupRepo{client: client, ttl: ttl}
}

func (r *UpdateDedupRepo) MarkProcessed(ctx context.Context, updateID int64) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	first, err := r.client.SetNX(ctx, updatePrefix+strconv.FormatInt(updateID, 10), 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark telegram update processed: %w", err)
	}
	return first, nil
}
