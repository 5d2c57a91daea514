package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Budget tracks the primary GitHub request quota observed from response
// headers and blocks callers once it is exhausted until the reset time.
//
// A Retry-After header puts the budget into a cooldown during which no
// request is admitted.
type Budget struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	cooldown  time.Time
	probed    bool
	now       func() time.Time
	notifyCh  chan struct{}
}

// NewBudget starts with a conservative default quota; the first response
// replaces it with the real one.
func NewBudget() *Budget {
	return &Budget{
		remaining: 5000,
		reset:     time.Now().Add(time.Hour),
		now:       time.Now,
		notifyCh:  make(chan struct{}),
	}
}

func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Acquire takes one request from the budget, waiting if necessary.
func (b *Budget) Acquire(ctx context.Context) error {
	if ctx == nil {
		return errors.New("ratelimit: nil context")
	}
	if b == nil || b.now == nil || b.notifyCh == nil {
		return errors.New("ratelimit: budget not initialized (use NewBudget)")
	}

	for {
		b.mu.Lock()
		now := b.now()
		ch := b.notifyCh

		switch {
		case now.Before(b.cooldown):
			until := b.cooldown
			b.mu.Unlock()
			if err := waitUntil(ctx, until.Sub(now), ch); err != nil {
				return err
			}
		case b.remaining > 0:
			b.remaining--
			b.mu.Unlock()
			return nil
		case !now.Before(b.reset):
			// The window has reset but no response has refreshed the quota
			// yet: let exactly one probe through, then wait for an update.
			if !b.probed {
				b.probed = true
				b.mu.Unlock()
				return nil
			}
			b.mu.Unlock()
			if err := waitUntil(ctx, -1, ch); err != nil {
				return err
			}
		default:
			reset := b.reset
			b.mu.Unlock()
			if err := waitUntil(ctx, reset.Sub(now), ch); err != nil {
				return err
			}
		}
	}
}

// waitUntil blocks for d (forever if d < 0) or until ch is closed.
func waitUntil(ctx context.Context, d time.Duration, ch <-chan struct{}) error {
	if d < 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	case <-timer.C:
		return nil
	}
}

// Observe updates the budget from rate-limit response headers.
func (b *Budget) Observe(resp *http.Response) {
	if b == nil || resp == nil || b.now == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false

	if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
		until := b.now().Add(time.Duration(seconds) * time.Second)
		if until.After(b.cooldown) {
			b.cooldown = until
			changed = true
		}
	}

	if val, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining")); err == nil && val >= 0 && val != b.remaining {
		b.remaining = val
		changed = true
	}

	if val, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil && val > 0 {
		reset := time.Unix(val, 0)
		if !b.reset.Equal(reset) {
			b.reset = reset
			changed = true
		}
	}

	if changed {
		b.probed = false
		close(b.notifyCh)
		b.notifyCh = make(chan struct{})
	}
}
