package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/Bidon15/printspool/internal/models"
	"github.com/Bidon15/printspool/internal/service"
)

// Login authenticates with username and password, returning a token.
func (c *Client) Login(ctx context.Context, username, password string) (*service.LoginResponse, error) {
	var resp service.LoginResponse
	err := c.Post(ctx, "/api/auth/login", service.LoginRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.Get(ctx, "/api/users/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns all accounts.
func (c *Client) ListUsers(ctx context.Context, activeOnly bool) ([]*models.User, error) {
	path := "/api/users"
	if activeOnly {
		path += "?active=true"
	}
	var users []*models.User
	if err := c.Get(ctx, path, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser creates an account.
func (c *Client) CreateUser(ctx context.Context, req service.CreateUserRequest) (*models.User, error) {
	var user models.User
	if err := c.Post(ctx, "/api/users", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return c.Delete(ctx, fmt.Sprintf("/api/users/%s", id))
}

// JobListOptions filter the job listing.
type JobListOptions struct {
	Status   string
	ClientID string
	UserName string
	Limit    int
}

// ListJobs returns jobs matching the options.
func (c *Client) ListJobs(ctx context.Context, opts JobListOptions) ([]*models.PrintJob, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.ClientID != "" {
		q.Set("client_id", opts.ClientID)
	}
	if opts.UserName != "" {
		q.Set("user_name", opts.UserName)
	}
	if opts.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	path := "/api/jobs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var jobs []*models.PrintJob
	if err := c.Get(ctx, path, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetJob returns one job by its wire-protocol job id.
func (c *Client) GetJob(ctx context.Context, jobID string) (*models.PrintJob, error) {
	var job models.PrintJob
	if err := c.Get(ctx, fmt.Sprintf("/api/jobs/%s", url.PathEscape(jobID)), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// CancelJob cancels a pending job.
func (c *Client) CancelJob(ctx context.Context, jobID string) (*models.PrintJob, error) {
	var job models.PrintJob
	if err := c.Post(ctx, fmt.Sprintf("/api/jobs/%s/cancel", url.PathEscape(jobID)), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// StatsSummary is the combined store-totals and live broker view.
type StatsSummary struct {
	Totals *models.StatsSummary `json:"totals"`
	Live   map[string]any       `json:"live"`
}

// Stats returns the broker statistics summary.
func (c *Client) Stats(ctx context.Context) (*StatsSummary, error) {
	var stats StatsSummary
	if err := c.Get(ctx, "/api/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// DailyStats returns per-day statistics rows.
func (c *Client) DailyStats(ctx context.Context, from, to string) ([]*models.DailyStats, error) {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}

	path := "/api/stats/daily"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var daily []*models.DailyStats
	if err := c.Get(ctx, path, &daily); err != nil {
		return nil, err
	}
	return daily, nil
}
