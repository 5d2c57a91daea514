package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newFixedBudget(now time.Time, remaining int, reset time.Time) *Budget {
	b := NewBudget()
	b.now = func() time.Time { return now }
	b.remaining = remaining
	b.reset = reset
	return b
}

func headerResponse(kv ...string) *http.Response {
	resp := &http.Response{Header: make(http.Header)}
	for i := 0; i+1 < len(kv); i += 2 {
		resp.Header.Set(kv[i], kv[i+1])
	}
	return resp
}

func TestBudget(t *testing.T) {
	fixedNow := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("acquire decrements", func(t *testing.T) {
		b := newFixedBudget(fixedNow, 2, fixedNow.Add(time.Hour))
		if err := b.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		if got := b.Remaining(); got != 1 {
			t.Fatalf("expected 1 remaining, got %d", got)
		}
	})

	t.Run("observe sets remaining and reset", func(t *testing.T) {
		b := newFixedBudget(fixedNow, 5000, fixedNow.Add(time.Hour))
		b.Observe(headerResponse("X-RateLimit-Remaining", "10", "X-RateLimit-Reset", "1700000000"))

		if got := b.Remaining(); got != 10 {
			t.Fatalf("expected 10 remaining, got %d", got)
		}
		if !b.reset.Equal(time.Unix(1700000000, 0)) {
			t.Fatalf("unexpected reset %v", b.reset)
		}
	})

	t.Run("observe ignores invalid headers", func(t *testing.T) {
		b := newFixedBudget(fixedNow, 7, time.Unix(123, 0))
		b.Observe(headerResponse("X-RateLimit-Remaining", "nope", "X-RateLimit-Reset", "not-a-time"))

		if got := b.Remaining(); got != 7 {
			t.Fatalf("expected remaining to stay 7, got %d", got)
		}
		if !b.reset.Equal(time.Unix(123, 0)) {
			t.Fatalf("expected reset to stay, got %v", b.reset)
		}
	})

	t.Run("retry-after blocks until context deadline", func(t *testing.T) {
		b := newFixedBudget(fixedNow, 5000, fixedNow.Add(time.Hour))
		b.Observe(headerResponse("Retry-After", "60"))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := b.Acquire(ctx); err == nil {
			t.Fatalf("expected deadline exceeded during cooldown")
		}
	})

	t.Run("exhausted before reset blocks", func(t *testing.T) {
		b := newFixedBudget(fixedNow, 0, fixedNow.Add(time.Hour))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := b.Acquire(ctx); err == nil {
			t.Fatalf("expected deadline exceeded while exhausted")
		}
	})

	t.Run("after reset one probe is admitted", func(t *testing.T) {
		b := newFixedBudget(fixedNow, 0, fixedNow.Add(-time.Minute))
		if err := b.Acquire(context.Background()); err != nil {
			t.Fatalf("expected probe to be admitted: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := b.Acquire(ctx); err == nil {
			t.Fatalf("expected second acquire to wait for a refresh")
		}
	})

	t.Run("observe wakes blocked acquire", func(t *testing.T) {
		b := newFixedBudget(fixedNow, 0, fixedNow.Add(time.Hour))

		done := make(chan error, 1)
		go func() { done <- b.Acquire(context.Background()) }()

		time.Sleep(10 * time.Millisecond)
		b.Observe(headerResponse("X-RateLimit-Remaining", "3"))

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Acquire failed: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatalf("Acquire did not wake after Observe")
		}
	})

	t.Run("nil context errors", func(t *testing.T) {
		var nilCtx context.Context
		if err := NewBudget().Acquire(nilCtx); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestTransport_FeedsBudgetFromResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "42")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	budget := NewBudget()
	client := &http.Client{Transport: &Transport{Budget: budget}}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = resp.Body.Close()

	if got := budget.Remaining(); got != 42 {
		t.Fatalf("expected budget to observe 42 remaining, got %d", got)
	}
}
