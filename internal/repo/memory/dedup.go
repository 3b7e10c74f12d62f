package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultDedupCapacity = 10_000

// UpdateDedup remembers recently processed provider update ids for a bounded time.
type UpdateDedup struct {
	mu   sync.Mutex
	seen *expirable.LRU[int64, struct{}]
}

func NewUpdateDedup(capacity int, ttl time.Duration) *UpdateDedup {
	if capacity <= 0 {
		capacity = defaultDedupCapacity
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &UpdateDedup{
		seen: expirable.NewLRU[int64, struct{}](capacity, nil, ttl),
	}
}

// MarkProcessed records updateID and reports whether this is its first delivery.
func (d *UpdateDedup) MarkProcessed(_ context.Context, updateID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen.Get(updateID); ok {
		return false, nil
	}
	d.seen.Add(updateID, struct{}{})
	return true, nil
}
