// Package ratelimit provides the per-principal token bucket guarding job
// submission on the wire protocol.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// defaultMaxIdle is how long an unseen principal's bucket survives.
	defaultMaxIdle = 10 * time.Minute
	// defaultSweepInterval is how often idle buckets are reaped.
	defaultSweepInterval = 5 * time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per principal. Buckets start full, so a
// fresh principal gets a full burst of immediate admissions. Idle buckets
// are reaped in the background until Stop is called.
type Limiter struct {
	refill rate.Limit
	burst  int

	mu      sync.Mutex
	buckets map[string]*bucket

	maxIdle    time.Duration
	sweepEvery time.Duration
	done       chan struct{}
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// New creates a limiter refilling at requestsPerMinute/60 tokens per
// second with the given bucket capacity. A non-positive rate disables
// limiting.
func New(requestsPerMinute, burst int, logger *slog.Logger) *Limiter {
	return newLimiter(requestsPerMinute, burst, defaultMaxIdle, defaultSweepInterval, logger)
}

func newLimiter(requestsPerMinute, burst int, maxIdle, sweepEvery time.Duration, logger *slog.Logger) *Limiter {
	refill := rate.Inf
	if requestsPerMinute > 0 {
		refill = rate.Limit(float64(requestsPerMinute) / 60.0)
	}

	l := &Limiter{
		refill:     refill,
		burst:      burst,
		buckets:    make(map[string]*bucket),
		maxIdle:    maxIdle,
		sweepEvery: sweepEvery,
		done:       make(chan struct{}),
		logger:     logger,
	}

	l.wg.Add(1)
	go l.sweep()
	return l
}

// Allow reports whether the principal may proceed. When denied,
// retryAfter is the time until one token becomes available.
func (l *Limiter) Allow(principal string) (ok bool, retryAfter time.Duration) {
	lim := l.bucketFor(principal)

	r := lim.Reserve()
	if !r.OK() {
		return false, 0
	}
	delay := r.Delay()
	if delay == 0 {
		return true, 0
	}

	// Denied requests must not consume the reserved token.
	r.Cancel()
	return false, delay
}

// Len returns the number of tracked principals.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop terminates the background sweeper.
func (l *Limiter) Stop() {
	close(l.done)
	l.wg.Wait()
}

func (l *Limiter) bucketFor(principal string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[principal]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.refill, l.burst)}
		l.buckets[principal] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

func (l *Limiter) sweep() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-l.maxIdle)

			l.mu.Lock()
			var reaped int
			for principal, b := range l.buckets {
				if b.lastSeen.Before(cutoff) {
					delete(l.buckets, principal)
					reaped++
				}
			}
			remaining := len(l.buckets)
			l.mu.Unlock()

			if reaped > 0 {
				l.logger.Debug("reaped idle rate limit buckets",
					slog.Int("reaped", reaped),
					slog.Int("remaining", remaining))
			}
		}
	}
}
