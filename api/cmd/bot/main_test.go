package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryDelayFromError(t *testing.T) {
	cases := []struct {
		err  error
		want time.Duration
	}{
		{nil, 0},
		{errors.New("Too Many Requests: retry after 7"), 7 * time.Second},
		{errors.New("too many requests"), 3 * time.Second},
		{timeoutErr{}, 2 * time.Second},
		{errors.New("connection reset"), time.Second},
	}
	for _, c := range cases {
		if got := retryDelayFromError(c.err); got != c.want {
			t.Errorf("retryDelayFromError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestClampDelay(t *testing.T) {
	if d := clampDelay(0, time.Second, 15*time.Second); d != time.Second {
		t.Fatalf("low clamp = %v", d)
	}
	if d := clampDelay(time.Minute, time.Second, 15*time.Second); d != 15*time.Second {
		t.Fatalf("high clamp = %v", d)
	}
}

func TestShortHash(t *testing.T) {
	a, b := shortHash("123:abc"), shortHash("123:abd")
	if len(a) != 16 || a == b || a != shortHash("123:abc") {
		t.Fatalf("hashes %q %q", a, b)
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleep(ctx, time.Hour) {
		t.Fatalf("sleep must stop on cancellation")
	}
}
