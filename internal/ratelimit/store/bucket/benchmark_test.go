package bucket

import (
	"context"
	"strconv"
	"testing"
	"time"
)

// A login burst from one address contends on a single window.
func BenchmarkAllowSingleKeyParallel(b *testing.B) {
	store := New()
	ctx := context.Background()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = store.Allow(ctx, "login:ip:203.0.113.7", 5, 15*time.Minute)
		}
	})
}

// Public tracking traffic spreads over many addresses.
func BenchmarkAllowManyKeys(b *testing.B) {
	store := New()
	ctx := context.Background()
	keys := make([]string, 4096)
	for i := range keys {
		keys[i] = "public-track:ip:198.51." + strconv.Itoa(i/256) + "." + strconv.Itoa(i%256)
	}

	for i := 0; b.Loop(); i++ {
		_, _ = store.Allow(ctx, keys[i%len(keys)], 30, time.Minute)
	}
}

func BenchmarkSweep(b *testing.B) {
	now := time.Now()
	store := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()
	for i := range 10_000 {
		_, _ = store.Allow(ctx, "k"+strconv.Itoa(i), 10, time.Minute)
	}

	for b.Loop() {
		store.Sweep(now.Add(30 * time.Second))
	}
}
