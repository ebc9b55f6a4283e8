package zotero

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBackoffHeaderDelaysNextRequest(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Backoff", "2")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }
	var slept time.Duration
	c.sleep = func(d time.Duration) {
		slept += d
		clock = clock.Add(d)
	}

	ctx := context.Background()
	if _, err := c.Items(ctx); err != nil {
		t.Fatalf("first Items: %v", err)
	}
	if slept != 0 {
		t.Fatalf("first call should not sleep, slept %v", slept)
	}
	if _, err := c.Items(ctx); err != nil {
		t.Fatalf("second Items: %v", err)
	}
	if slept != 2*time.Second {
		t.Errorf("second call slept %v, want 2s", slept)
	}

	// the window has passed; a third call goes straight through
	if _, err := c.Items(ctx); err != nil {
		t.Fatalf("third Items: %v", err)
	}
	if slept != 2*time.Second {
		t.Errorf("third call slept again, total %v", slept)
	}
}

func TestTooManyRequestsWithHintIsRecovered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1.5")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }
	c.sleep = func(d time.Duration) { clock = clock.Add(d) }

	if _, err := c.Items(context.Background()); err != nil {
		t.Fatalf("a 429 with a wait hint should be recovered, got %v", err)
	}
	remaining := c.backoffUntil.Sub(clock)
	if remaining != 1500*time.Millisecond {
		t.Errorf("armed backoff = %v, want 1.5s", remaining)
	}
}

func TestTooManyRequestsWithoutHintIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Items(context.Background())
	if !errors.Is(err, ErrTooManyRetries) {
		t.Errorf("got %v, want ErrTooManyRetries", err)
	}
}

func TestBackoffDuration(t *testing.T) {
	tests := []struct {
		backoff, retryAfter string
		want                time.Duration
	}{
		{"", "", 0},
		{"3", "", 3 * time.Second},
		{"", "10", 10 * time.Second},
		{"2", "10", 2 * time.Second}, // Backoff wins
		{"0.5", "", 500 * time.Millisecond},
		{"garbage", "", 0},
		{"-1", "", 0},
	}
	for _, tt := range tests {
		h := http.Header{}
		if tt.backoff != "" {
			h.Set("Backoff", tt.backoff)
		}
		if tt.retryAfter != "" {
			h.Set("Retry-After", tt.retryAfter)
		}
		if got := backoffDuration(h); got != tt.want {
			t.Errorf("backoffDuration(Backoff=%q, Retry-After=%q) = %v, want %v",
				tt.backoff, tt.retryAfter, got, tt.want)
		}
	}
}
