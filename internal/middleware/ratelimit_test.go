package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterBuckets(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1", now) {
			t.Fatalf("request %d denied with tokens left", i+1)
		}
	}
	if rl.allow("10.0.0.1", now) {
		t.Fatal("request allowed from an empty bucket")
	}

	// Each client gets its own bucket.
	if !rl.allow("10.0.0.2", now) {
		t.Fatal("second client denied by first client's bucket")
	}

	// Elapsed intervals refill, capped at the bucket size.
	later := now.Add(5 * time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1", later) {
			t.Fatalf("request %d denied after refill", i+1)
		}
	}
	if rl.allow("10.0.0.1", later) {
		t.Fatal("refill exceeded the bucket cap")
	}
}
