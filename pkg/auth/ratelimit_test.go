package auth

import (
	"context"
	"testing"
	"time"
)

func fixedClock(t0 time.Time) (func() time.Time, func(time.Duration)) {
	now := t0
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestInProcessLimiter_Burst(t *testing.T) {
	l := NewInProcessLimiter(map[string]Limit{"admission": {RequestsPerMinute: 60, Burst: 2}}, Limit{})
	clock, advance := fixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	l.now = clock
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Check(ctx, nil, "admission", "vet-a")
		if err != nil || !d.Allowed {
			t.Fatalf("request %d: %+v %v", i, d, err)
		}
	}

	d, _ := l.Check(ctx, nil, "admission", "vet-a")
	if d.Allowed {
		t.Fatal("third request within the burst window was allowed")
	}
	if d.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want 1s", d.RetryAfter)
	}

	// A denied request does not consume a token.
	advance(time.Second)
	if d, _ := l.Check(ctx, nil, "admission", "vet-a"); !d.Allowed {
		t.Error("request after refill was denied")
	}
}

func TestInProcessLimiter_KeysAreIndependent(t *testing.T) {
	l := NewInProcessLimiter(map[string]Limit{"write": {RequestsPerMinute: 1}}, Limit{RequestsPerMinute: 1})
	clock, _ := fixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	l.now = clock
	ctx := context.Background()

	for _, call := range []struct{ limitType, caller string }{
		{"write", "vet-a"},
		{"write", "vet-b"},
		{"read", "vet-a"},
	} {
		if d, _ := l.Check(ctx, nil, call.limitType, call.caller); !d.Allowed {
			t.Errorf("%s/%s denied on first request", call.limitType, call.caller)
		}
	}
	if d, _ := l.Check(ctx, nil, "write", "vet-a"); d.Allowed {
		t.Error("second write by vet-a allowed")
	}
	if l.Len() != 3 {
		t.Errorf("Len = %d, want 3", l.Len())
	}
}

func TestInProcessLimiter_DisabledLimit(t *testing.T) {
	l := NewInProcessLimiter(map[string]Limit{"read": {}}, Limit{RequestsPerMinute: 1})
	for i := 0; i < 10; i++ {
		if d, _ := l.Check(context.Background(), nil, "read", "vet-a"); !d.Allowed {
			t.Fatalf("request %d denied by disabled limit", i)
		}
	}
	if l.Len() != 0 {
		t.Errorf("disabled limit created %d buckets", l.Len())
	}
}

func TestInProcessLimiter_EvictsIdleBuckets(t *testing.T) {
	l := NewInProcessLimiter(nil, Limit{RequestsPerMinute: 10})
	clock, advance := fixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	l.now = clock
	ctx := context.Background()

	l.Check(ctx, nil, "default", "vet-a")
	advance(DefaultIdleTimeout + time.Minute)
	l.Check(ctx, nil, "default", "vet-b")

	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1 after eviction", l.Len())
	}
}
