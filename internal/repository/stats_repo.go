package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Bidon15/printspool/internal/models"
)

// StatsRepository defines the interface for daily aggregate and summary
// queries.
type StatsRepository interface {
	UpsertDaily(ctx context.Context, date time.Time, patch models.DailyStatsPatch) error
	GetByDate(ctx context.Context, date time.Time) (*models.DailyStats, error)
	Range(ctx context.Context, from, to time.Time) ([]*models.DailyStats, error)
	Summary(ctx context.Context) (*models.StatsSummary, error)
	WithTx(tx pgx.Tx) StatsRepository
}

type statsRepo struct {
	db DB
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(db DB) StatsRepository {
	return &statsRepo{db: db}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *statsRepo) WithTx(tx pgx.Tx) StatsRepository {
	return &statsRepo{db: tx}
}

const statsColumns = `
	date, total_jobs, completed_jobs, failed_jobs, cancelled_jobs, total_pages, avg_processing_time_ms, uptime_seconds`

func scanDailyStats(row rowScanner) (*models.DailyStats, error) {
	var s models.DailyStats
	err := row.Scan(
		&s.Date,
		&s.TotalJobs,
		&s.CompletedJobs,
		&s.FailedJobs,
		&s.CancelledJobs,
		&s.TotalPages,
		&s.AvgProcessingTimeMS,
		&s.UptimeSeconds,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertDaily folds the patch into the row for the given calendar date,
// creating it on first touch. The processing time average is maintained
// as a running mean over completed jobs.
func (r *statsRepo) UpsertDaily(ctx context.Context, date time.Time, patch models.DailyStatsPatch) error {
	query := `
		INSERT INTO server_stats (
			date, total_jobs, completed_jobs, failed_jobs, cancelled_jobs, total_pages,
			avg_processing_time_ms, uptime_seconds
		)
		VALUES ($1::date, $2, $3, $4, $5, $6, COALESCE($7::double precision, 0), COALESCE($8, 0))
		ON CONFLICT (date) DO UPDATE SET
			total_jobs     = server_stats.total_jobs + EXCLUDED.total_jobs,
			completed_jobs = server_stats.completed_jobs + EXCLUDED.completed_jobs,
			failed_jobs    = server_stats.failed_jobs + EXCLUDED.failed_jobs,
			cancelled_jobs = server_stats.cancelled_jobs + EXCLUDED.cancelled_jobs,
			total_pages    = server_stats.total_pages + EXCLUDED.total_pages,
			avg_processing_time_ms = CASE
				WHEN $7::double precision IS NOT NULL
				     AND server_stats.completed_jobs + EXCLUDED.completed_jobs > 0
				THEN (server_stats.avg_processing_time_ms * server_stats.completed_jobs + $7)
				     / (server_stats.completed_jobs + EXCLUDED.completed_jobs)
				ELSE server_stats.avg_processing_time_ms
			END,
			uptime_seconds = COALESCE($8, server_stats.uptime_seconds)`

	_, err := r.db.Exec(ctx, query,
		date,
		patch.TotalJobs,
		patch.CompletedJobs,
		patch.FailedJobs,
		patch.CancelledJobs,
		patch.TotalPages,
		patch.ProcessingTimeMS,
		patch.UptimeSeconds,
	)
	return err
}

// GetByDate retrieves the aggregate row for a date, or nil when absent.
func (r *statsRepo) GetByDate(ctx context.Context, date time.Time) (*models.DailyStats, error) {
	query := `SELECT` + statsColumns + ` FROM server_stats WHERE date = $1::date`

	stats, err := scanDailyStats(r.db.QueryRow(ctx, query, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Range returns daily rows between from and to inclusive, oldest first.
func (r *statsRepo) Range(ctx context.Context, from, to time.Time) ([]*models.DailyStats, error) {
	query := `SELECT` + statsColumns + `
		FROM server_stats
		WHERE date >= $1::date AND date <= $2::date
		ORDER BY date ASC`

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.DailyStats
	for rows.Next() {
		stats, err := scanDailyStats(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stats)
	}
	return out, rows.Err()
}

// Summary aggregates broker-wide job, page, and client counts.
func (r *statsRepo) Summary(ctx context.Context) (*models.StatsSummary, error) {
	var s models.StatsSummary

	jobCounts := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'printing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM print_jobs`
	err := r.db.QueryRow(ctx, jobCounts).Scan(
		&s.TotalJobs,
		&s.PendingJobs,
		&s.PrintingJobs,
		&s.CompletedJobs,
		&s.FailedJobs,
		&s.CancelledJobs,
	)
	if err != nil {
		return nil, err
	}

	clientCounts := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active), COALESCE(SUM(total_pages), 0)
		FROM clients`
	err = r.db.QueryRow(ctx, clientCounts).Scan(&s.TotalClients, &s.ActiveClients, &s.TotalPages)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// Compile-time check to ensure statsRepo implements StatsRepository.
var _ StatsRepository = (*statsRepo)(nil)
