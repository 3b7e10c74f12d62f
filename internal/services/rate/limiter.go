package rate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const commandWindow = time.Minute

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter caps how many moderation commands one issuer may send per minute.
// A zero limit disables the check.
type Limiter struct {
	store     WindowStore
	perMinute int
}

func NewLimiter(store WindowStore, perMinute int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}

	return &Limiter{
		store:     store,
		perMinute: perMinute,
	}
}

func (l *Limiter) AllowCommand(ctx context.Context, issuer string) (int64, bool, error) {
	if l == nil || l.perMinute == 0 {
		return 0, true, nil
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return 0, false, fmt.Errorf("issuer is required")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	count, ttl, err := l.store.IncrementWindow(ctx, commandKey(issuer), commandWindow)
	if err != nil {
		return 0, false, err
	}
	if count > int64(l.perMinute) {
		return ceilSeconds(ttl), false, nil
	}

	return 0, true, nil
}

func commandKey(issuer string) string {
	return "moderation:cmd:" + strings.ToLower(issuer)
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}
