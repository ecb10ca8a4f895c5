package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllowsBurst(t *testing.T) {
	l := NewLimiter(1, 5)

	for i := 0; i < 5; i++ {
		if !l.Allow() {
			t.Fatalf("Expected burst message %d to be allowed", i)
		}
	}

	if l.Allow() {
		t.Error("Expected message beyond burst to be denied")
	}
}

func TestLimiterRefills(t *testing.T) {
	l := NewLimiter(1000, 5)

	for i := 0; i < 5; i++ {
		l.Allow()
	}
	if l.Allow() {
		t.Fatal("Expected bucket to be empty")
	}

	time.Sleep(20 * time.Millisecond)

	if !l.Allow() {
		t.Error("Expected tokens to refill over time")
	}
}
