package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Bidon15/printspool/internal/models"
	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
)

// JobFilter narrows admin job listings. Zero values mean "no filter".
type JobFilter struct {
	Status   models.JobStatus
	ClientID string
	UserName string
	Limit    int
	Offset   int
}

// JobRepository defines the interface for print job persistence.
type JobRepository interface {
	Create(ctx context.Context, job *models.PrintJob) error
	GetByID(ctx context.Context, jobID string) (*models.PrintJob, error)
	Update(ctx context.Context, jobID string, patch models.JobPatch) error
	ListPending(ctx context.Context, limit int) ([]*models.PrintJob, error)
	NextPending(ctx context.Context) (*models.PrintJob, error)
	ListByStatus(ctx context.Context, status models.JobStatus, limit, offset int) ([]*models.PrintJob, error)
	ListByUser(ctx context.Context, userName string, limit int) ([]*models.PrintJob, error)
	ListRecent(ctx context.Context, limit int) ([]*models.PrintJob, error)
	List(ctx context.Context, filter JobFilter) ([]*models.PrintJob, error)
	CountByStatus(ctx context.Context, status models.JobStatus) (int64, error)
	CancelPending(ctx context.Context, jobID string) (bool, error)
	Delete(ctx context.Context, jobID string) error
	CleanupOld(ctx context.Context, olderThanDays int) (int64, error)
	WithTx(tx pgx.Tx) JobRepository
}

type jobRepo struct {
	db DB
}

// NewJobRepository creates a new job repository bound to the pool.
func NewJobRepository(db DB) JobRepository {
	return &jobRepo{db: db}
}

// WithTx returns a copy of the repository bound to the transaction.
func (r *jobRepo) WithTx(tx pgx.Tx) JobRepository {
	return &jobRepo{db: tx}
}

const jobColumns = `
	job_id, client_id, user_name, document_name, file_format, file_size_bytes, file_path,
	page_size, orientation, copies, color, duplex, quality,
	margin_top, margin_bottom, margin_left, margin_right,
	page_count, application, status, priority, queue_position, error_message,
	retry_count, max_retries, created_at, started_at, completed_at, updated_at, processing_time_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.PrintJob, error) {
	var job models.PrintJob
	var filePath, application, errorMessage *string
	err := row.Scan(
		&job.JobID,
		&job.ClientID,
		&job.UserName,
		&job.DocumentName,
		&job.FileFormat,
		&job.FileSizeBytes,
		&filePath,
		&job.PageSize,
		&job.Orientation,
		&job.Copies,
		&job.Color,
		&job.Duplex,
		&job.Quality,
		&job.Margins.Top,
		&job.Margins.Bottom,
		&job.Margins.Left,
		&job.Margins.Right,
		&job.PageCount,
		&application,
		&job.Status,
		&job.Priority,
		&job.QueuePosition,
		&errorMessage,
		&job.RetryCount,
		&job.MaxRetries,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&job.UpdatedAt,
		&job.ProcessingTimeMS,
	)
	if err != nil {
		return nil, err
	}
	if filePath != nil {
		job.FilePath = *filePath
	}
	if application != nil {
		job.Application = *application
	}
	job.ErrorMessage = errorMessage
	return &job, nil
}

func (r *jobRepo) queryJobs(ctx context.Context, query string, args ...any) ([]*models.PrintJob, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.PrintJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Create inserts a new job. A duplicate job_id yields ErrDuplicateJobID.
func (r *jobRepo) Create(ctx context.Context, job *models.PrintJob) error {
	query := `
		INSERT INTO print_jobs (
			job_id, client_id, user_name, document_name, file_format, file_size_bytes, file_path,
			page_size, orientation, copies, color, duplex, quality,
			margin_top, margin_bottom, margin_left, margin_right,
			page_count, application, status, priority, queue_position,
			retry_count, max_retries
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		RETURNING created_at, updated_at`

	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if job.Priority == 0 {
		job.Priority = models.DefaultPriority
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = models.DefaultMaxRetries
	}

	err := r.db.QueryRow(ctx, query,
		job.JobID,
		job.ClientID,
		job.UserName,
		job.DocumentName,
		job.FileFormat,
		job.FileSizeBytes,
		nullableString(job.FilePath),
		job.PageSize,
		job.Orientation,
		job.Copies,
		job.Color,
		job.Duplex,
		job.Quality,
		job.Margins.Top,
		job.Margins.Bottom,
		job.Margins.Left,
		job.Margins.Right,
		job.PageCount,
		nullableString(job.Application),
		job.Status,
		job.Priority,
		job.QueuePosition,
		job.RetryCount,
		job.MaxRetries,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if isUniqueViolation(err) {
		return brokererrors.ErrDuplicateJobID
	}
	return err
}

// GetByID retrieves a job by its id, or nil when absent.
func (r *jobRepo) GetByID(ctx context.Context, jobID string) (*models.PrintJob, error) {
	query := `SELECT` + jobColumns + ` FROM print_jobs WHERE job_id = $1`

	job, err := scanJob(r.db.QueryRow(ctx, query, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Update applies a partial update to the job's mutable fields.
func (r *jobRepo) Update(ctx context.Context, jobID string, patch models.JobPatch) error {
	sets := []string{"updated_at = now()"}
	args := []any{jobID}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Priority != nil {
		add("priority", *patch.Priority)
	}
	if patch.QueuePosition != nil {
		add("queue_position", *patch.QueuePosition)
	}
	if patch.ErrorMessage != nil {
		add("error_message", nullableString(*patch.ErrorMessage))
	}
	if patch.RetryCount != nil {
		add("retry_count", *patch.RetryCount)
	}
	if patch.FilePath != nil {
		add("file_path", *patch.FilePath)
	}
	if patch.StartedAt != nil {
		add("started_at", *patch.StartedAt)
	}
	if patch.CompletedAt != nil {
		add("completed_at", *patch.CompletedAt)
	}
	if patch.ProcessingTimeMS != nil {
		add("processing_time_ms", *patch.ProcessingTimeMS)
	}

	query := fmt.Sprintf("UPDATE print_jobs SET %s WHERE job_id = $1", strings.Join(sets, ", "))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CancelPending flips a job to cancelled if and only if it is still
// pending. Returns false when the job is absent or already past pending;
// the status guard is what makes admin cancellation race-safe against
// the dispatcher.
func (r *jobRepo) CancelPending(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE print_jobs
		SET status = 'cancelled', completed_at = now(), updated_at = now()
		WHERE job_id = $1 AND status = 'pending'`

	tag, err := r.db.Exec(ctx, query, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListPending returns pending jobs in dispatch order: most urgent
// priority first, oldest first within a priority.
func (r *jobRepo) ListPending(ctx context.Context, limit int) ([]*models.PrintJob, error) {
	query := `SELECT` + jobColumns + `
		FROM print_jobs
		WHERE status = 'pending'
		ORDER BY priority ASC, created_at ASC
		LIMIT $1`
	return r.queryJobs(ctx, query, limit)
}

// NextPending returns the next job in dispatch order, or nil.
func (r *jobRepo) NextPending(ctx context.Context) (*models.PrintJob, error) {
	jobs, err := r.ListPending(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

// ListByStatus returns jobs with the given status, newest first.
func (r *jobRepo) ListByStatus(ctx context.Context, status models.JobStatus, limit, offset int) ([]*models.PrintJob, error) {
	query := `SELECT` + jobColumns + `
		FROM print_jobs
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	return r.queryJobs(ctx, query, status, limit, offset)
}

// ListByUser returns a user's jobs, newest first.
func (r *jobRepo) ListByUser(ctx context.Context, userName string, limit int) ([]*models.PrintJob, error) {
	query := `SELECT` + jobColumns + `
		FROM print_jobs
		WHERE user_name = $1
		ORDER BY created_at DESC
		LIMIT $2`
	return r.queryJobs(ctx, query, userName, limit)
}

// ListRecent returns the most recently created jobs.
func (r *jobRepo) ListRecent(ctx context.Context, limit int) ([]*models.PrintJob, error) {
	query := `SELECT` + jobColumns + `
		FROM print_jobs
		ORDER BY created_at DESC
		LIMIT $1`
	return r.queryJobs(ctx, query, limit)
}

// List returns jobs matching the filter, newest first.
func (r *jobRepo) List(ctx context.Context, filter JobFilter) ([]*models.PrintJob, error) {
	var conds []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.Status != "" {
		add("status", filter.Status)
	}
	if filter.ClientID != "" {
		add("client_id", filter.ClientID)
	}
	if filter.UserName != "" {
		add("user_name", filter.UserName)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	limitClause := fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	offsetClause := fmt.Sprintf(" OFFSET $%d", len(args))

	query := `SELECT` + jobColumns + ` FROM print_jobs` + where +
		` ORDER BY created_at DESC` + limitClause + offsetClause
	return r.queryJobs(ctx, query, args...)
}

// CountByStatus returns the number of jobs with the given status.
func (r *jobRepo) CountByStatus(ctx context.Context, status models.JobStatus) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM print_jobs WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Delete permanently removes a job.
func (r *jobRepo) Delete(ctx context.Context, jobID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM print_jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CleanupOld deletes terminal jobs whose completion is older than the
// retention window and returns how many rows went away.
func (r *jobRepo) CleanupOld(ctx context.Context, olderThanDays int) (int64, error) {
	query := `
		DELETE FROM print_jobs
		WHERE status IN ('completed', 'failed', 'cancelled')
		  AND completed_at IS NOT NULL
		  AND completed_at < now() - make_interval(days => $1)`

	tag, err := r.db.Exec(ctx, query, olderThanDays)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time check to ensure jobRepo implements JobRepository.
var _ JobRepository = (*jobRepo)(nil)
