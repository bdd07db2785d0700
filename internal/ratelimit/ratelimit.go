package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/GoPolymarket/safegate/internal/pkg/metrics"
)

// Limiter is a multi-bucket sliding-window admission controller for the
// upstream exchange's self-enforced limits. Admission is delayed, never
// rejected: a caller that would exceed a window waits for the oldest
// in-window entry to expire and tries again. Construct one instance and
// pass it by handle; there is no package-level registry.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	max    int
	window time.Duration
	burst  int // optional higher ceiling, 0 when unset
	stamps []time.Time
}

func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Register declares a bucket. Re-registering a name replaces the previous
// configuration and clears its timestamp log.
func (l *Limiter) Register(name string, max int, window time.Duration) {
	l.RegisterBurst(name, max, window, 0)
}

// RegisterBurst declares a bucket with an additional burst ceiling above
// the sustained maximum.
func (l *Limiter) RegisterBurst(name string, max int, window time.Duration, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[name] = &bucket{max: max, window: window, burst: burst}
}

// Admit blocks until the named bucket has capacity, then records the
// admission. Returns early only when ctx is cancelled. Admitting against
// an unregistered bucket is a no-op.
func (l *Limiter) Admit(ctx context.Context, name string) error {
	start := time.Now()
	defer func() {
		metrics.RateLimitWait.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	for {
		wait, ok := l.tryAdmit(name)
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAdmit performs the prune-check-record sequence as one critical
// section. On refusal it returns the delay until the oldest in-window
// entry expires.
func (l *Limiter) tryAdmit(name string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[name]
	if !ok {
		return 0, true
	}

	now := l.now()
	b.prune(now)

	ceiling := b.max
	if b.burst > b.max {
		ceiling = b.burst
	}
	if len(b.stamps) < ceiling {
		b.stamps = append(b.stamps, now)
		return 0, true
	}

	wait := b.stamps[0].Add(b.window).Sub(now)
	if wait <= 0 {
		// the oldest entry expires this instant; retry immediately
		wait = time.Millisecond
	}
	return wait, false
}

// CurrentCount returns the number of admissions inside the current window
// without recording anything.
func (l *Limiter) CurrentCount(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[name]
	if !ok {
		return 0
	}
	b.prune(l.now())
	return len(b.stamps)
}

// Stamps returns a copy of the in-window admission timestamps, for
// diagnostics and tests.
func (l *Limiter) Stamps(name string) []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[name]
	if !ok {
		return nil
	}
	b.prune(l.now())
	out := make([]time.Time, len(b.stamps))
	copy(out, b.stamps)
	return out
}

func (b *bucket) prune(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.stamps) && !b.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.stamps = append(b.stamps[:0], b.stamps[i:]...)
	}
}
