package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache is the subset of LRUCache used by decorators.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	DeletePrefix(prefix string) int
	Size() int
}

var _ Cache[string] = (*LRUCache[string])(nil)

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically sweeps registered caches until its context ends.
type Janitor struct {
	caches []Cleaner
}

func NewJanitor(caches ...Cleaner) *Janitor {
	return &Janitor{caches: caches}
}

// Run blocks, sweeping every interval, and returns when ctx is done.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || len(j.caches) == 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			total := 0
			for _, c := range j.caches {
				total += c.CleanExpired()
			}
			if total > 0 {
				slog.DebugContext(ctx, "Expired cache entries removed", "count", total)
			}
		case <-ctx.Done():
			return
		}
	}
}
