// Package memory implements the sliding-window admission store as an
// in-process concurrent map. One mutex guards the whole map, which keeps the
// check-and-record step atomic per identifier: two concurrent callers can
// never both observe count < limit and both be admitted.
package memory

import (
	"context"
	"sync"
	"time"

	"aegis/internal/ratelimit/models"
	"aegis/pkg/requestcontext"
)

// InMemoryWindowStore implements WindowStore using an in-memory sliding log.
type InMemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
}

// slidingWindow tracks admission timestamps within the trailing window.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

// New creates a new in-memory window store.
func New() *InMemoryWindowStore {
	return &InMemoryWindowStore{windows: make(map[string]*slidingWindow)}
}

// Allow checks whether one admission is permitted for key and records it if
// so. Rejection has no side effect. The clock comes from the request context
// when present so all decisions within one request agree.
func (s *InMemoryWindowStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	sw := s.getOrCreate(key, window)
	sw.cleanup(now)

	if len(sw.timestamps) >= limit {
		resetAt := now.Add(window)
		if len(sw.timestamps) > 0 {
			resetAt = sw.timestamps[0].Add(window)
		}
		return &models.Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(resetAt, now),
		}, nil
	}

	sw.timestamps = append(sw.timestamps, now)
	return &models.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(window),
	}, nil
}

// Reset clears the window for a key.
func (s *InMemoryWindowStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// CurrentCount returns the number of admissions currently inside the window.
func (s *InMemoryWindowStore) CurrentCount(ctx context.Context, key string) (int, error) {
	now := requestcontext.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	sw := s.windows[key]
	if sw == nil {
		return 0, nil
	}
	sw.cleanup(now)
	return len(sw.timestamps), nil
}

// cleanup removes expired timestamps from a sliding window.
func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// getOrCreate must be called while holding s.mu.
func (s *InMemoryWindowStore) getOrCreate(key string, window time.Duration) *slidingWindow {
	if sw := s.windows[key]; sw != nil {
		return sw
	}
	sw := &slidingWindow{timestamps: []time.Time{}, window: window}
	s.windows[key] = sw
	return sw
}

func retryAfterSeconds(resetAt, now time.Time) int {
	secs := int(resetAt.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}
