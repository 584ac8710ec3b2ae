package throttle

import (
	"context"
	"testing"
	"time"
)

func TestAllowRespectsBurst(t *testing.T) {
	l := New(1, 2)
	if !l.Allow() {
		t.Fatal("first token should be immediately available")
	}
	if !l.Allow() {
		t.Fatal("second token (burst) should be immediately available")
	}
	if l.Allow() {
		t.Fatal("third token should not be available until refill")
	}
}

func TestWaitBlocksUntilTokenAvailable(t *testing.T) {
	l := New(1000, 1) // fast refill so the test doesn't sleep long
	ctx := context.Background()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	l := New(0.001, 1) // effectively never refills within the test window
	l.Allow()          // drain the single burst token

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected Wait to return an error once the context deadline passes")
	}
}
