package models

import (
	"time"
)

// DailyStats is the per-day aggregate row. One row per calendar date;
// upserts are idempotent within a day.
type DailyStats struct {
	Date                time.Time `json:"date" db:"date"`
	TotalJobs           int64     `json:"total_jobs" db:"total_jobs"`
	CompletedJobs       int64     `json:"completed_jobs" db:"completed_jobs"`
	FailedJobs          int64     `json:"failed_jobs" db:"failed_jobs"`
	CancelledJobs       int64     `json:"cancelled_jobs" db:"cancelled_jobs"`
	TotalPages          int64     `json:"total_pages" db:"total_pages"`
	AvgProcessingTimeMS float64   `json:"avg_processing_time_ms" db:"avg_processing_time_ms"`
	UptimeSeconds       int64     `json:"uptime_seconds" db:"uptime_seconds"`
}

// DailyStatsPatch carries the increments applied by a single upsert.
type DailyStatsPatch struct {
	TotalJobs        int64
	CompletedJobs    int64
	FailedJobs       int64
	CancelledJobs    int64
	TotalPages       int64
	ProcessingTimeMS *int64
	UptimeSeconds    *int64
}

// StatsSummary is the broker-wide aggregate served on the admin API and
// the wire status snapshot.
type StatsSummary struct {
	TotalJobs     int64 `json:"total_jobs"`
	PendingJobs   int64 `json:"pending_jobs"`
	PrintingJobs  int64 `json:"printing_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
	CancelledJobs int64 `json:"cancelled_jobs"`
	TotalPages    int64 `json:"total_pages"`
	TotalClients  int64 `json:"total_clients"`
	ActiveClients int64 `json:"active_clients"`
}
