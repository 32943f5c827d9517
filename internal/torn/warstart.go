package torn

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FetchRankedWarStart returns the start timestamp of the latest ranked war,
// or an error when no ranked war is listed.
func (c *Client) FetchRankedWarStart(ctx context.Context) (int64, error) {
	var payload struct {
		Wars struct {
			Ranked *struct {
				Start int64 `json:"start"`
			} `json:"ranked"`
		} `json:"wars"`
	}
	if err := c.get(ctx, "/faction/wars", nil, &payload); err != nil {
		return 0, err
	}
	if payload.Wars.Ranked == nil || payload.Wars.Ranked.Start <= 0 {
		return 0, fmt.Errorf("%w: no ranked war start found", ErrMalformed)
	}
	return payload.Wars.Ranked.Start, nil
}

// WarStartCache serves the ranked war start timestamp behind a short TTL so
// commands and the scan engine do not refetch it on every call.
type WarStartCache struct {
	client *Client
	ttl    time.Duration

	mu        sync.Mutex
	value     int64
	fetchedAt time.Time
	now       func() time.Time
}

// NewWarStartCache creates a war start cache with the given TTL
func NewWarStartCache(client *Client, ttl time.Duration) *WarStartCache {
	return &WarStartCache{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WarStart returns the cached ranked war start, refetching when stale
func (w *WarStartCache) WarStart(ctx context.Context) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.value > 0 && w.now().Sub(w.fetchedAt) <= w.ttl {
		return w.value, nil
	}

	start, err := w.client.FetchRankedWarStart(ctx)
	if err != nil {
		return 0, err
	}
	w.value = start
	w.fetchedAt = w.now()
	return start, nil
}
