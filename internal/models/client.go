package models

import (
	"time"
)

// Client represents a known print client, keyed by its self-reported
// client id. Rows are upserted on every submission and heartbeat.
type Client struct {
	ClientID   string    `json:"client_id" db:"client_id"`
	Hostname   *string   `json:"hostname,omitempty" db:"hostname"`
	IPAddress  *string   `json:"ip_address,omitempty" db:"ip_address"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	LastSeen   time.Time `json:"last_seen" db:"last_seen"`
	TotalJobs  int64     `json:"total_jobs" db:"total_jobs"`
	TotalPages int64     `json:"total_pages" db:"total_pages"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
