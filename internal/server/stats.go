package server

import "sync"

// Counters tracks connection-scope totals served by status_request and
// mirrored into Prometheus. A single mutex is enough: every field is
// touched once or twice per connection.
type Counters struct {
	mu sync.Mutex

	totalConnections  int64
	activeConnections int64
	totalJobsReceived int64
	authFailures      int64
	rateLimitExceeded int64
	validationErrors  int64
}

// CounterSnapshot is a point-in-time copy of the counters.
type CounterSnapshot struct {
	TotalConnections  int64 `json:"total_connections"`
	ActiveConnections int64 `json:"active_connections"`
	TotalJobsReceived int64 `json:"total_jobs_received"`
	AuthFailures      int64 `json:"authentication_failures"`
	RateLimitExceeded int64 `json:"rate_limit_exceeded"`
	ValidationErrors  int64 `json:"validation_errors"`
}

func (c *Counters) connectionOpened() {
	c.mu.Lock()
	c.totalConnections++
	c.activeConnections++
	c.mu.Unlock()
}

func (c *Counters) connectionClosed() {
	c.mu.Lock()
	c.activeConnections--
	c.mu.Unlock()
}

func (c *Counters) jobReceived() {
	c.mu.Lock()
	c.totalJobsReceived++
	c.mu.Unlock()
}

func (c *Counters) authFailure() {
	c.mu.Lock()
	c.authFailures++
	c.mu.Unlock()
}

func (c *Counters) rateLimited() {
	c.mu.Lock()
	c.rateLimitExceeded++
	c.mu.Unlock()
}

func (c *Counters) validationError() {
	c.mu.Lock()
	c.validationErrors++
	c.mu.Unlock()
}

// Snapshot returns a copy of the current counter values.
func (c *Counters) Snapshot() CounterSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CounterSnapshot{
		TotalConnections:  c.totalConnections,
		ActiveConnections: c.activeConnections,
		TotalJobsReceived: c.totalJobsReceived,
		AuthFailures:      c.authFailures,
		RateLimitExceeded: c.rateLimitExceeded,
		ValidationErrors:  c.validationErrors,
	}
}
