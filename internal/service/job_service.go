// Package service provides business logic implementations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Bidon15/printspool/internal/models"
	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
	"github.com/Bidon15/printspool/internal/queue"
	"github.com/Bidon15/printspool/internal/repository"
)

// SubmitJobRequest carries an already-validated job plus its decoded
// document bytes into admission.
type SubmitJobRequest struct {
	Job      *models.PrintJob
	Content  []byte
	RemoteIP string
	Hostname string
}

// JobService defines the interface for job admission and lifecycle
// operations.
type JobService interface {
	// Submit spools the document, upserts the client, persists the job
	// and enqueues it. On return the job carries its advisory queue
	// position.
	Submit(ctx context.Context, req SubmitJobRequest) (*models.PrintJob, error)

	Get(ctx context.Context, jobID string) (*models.PrintJob, error)
	List(ctx context.Context, filter repository.JobFilter) ([]*models.PrintJob, error)

	// Cancel moves a pending job to cancelled and removes its spool
	// file. Jobs past pending are not cancellable.
	Cancel(ctx context.Context, jobID string) (*models.PrintJob, error)

	// RestoreQueue re-enqueues pending jobs from the store, in dispatch
	// order. Returns the number restored.
	RestoreQueue(ctx context.Context, limit int) (int, error)

	// CleanupOld deletes finished jobs older than the retention window
	// and sweeps stale spool files. Returns the number of rows removed.
	CleanupOld(ctx context.Context, retentionDays int) (int64, error)
}

type jobService struct {
	jobRepo    repository.JobRepository
	clientRepo repository.ClientRepository
	statsRepo  repository.StatsRepository
	queue      *queue.Queue
	spoolDir   string
	logger     *slog.Logger
}

// NewJobService creates a job service. The spool directory is created if
// missing.
func NewJobService(
	jobRepo repository.JobRepository,
	clientRepo repository.ClientRepository,
	statsRepo repository.StatsRepository,
	q *queue.Queue,
	spoolDir string,
	logger *slog.Logger,
) (JobService, error) {
	if err := os.MkdirAll(spoolDir, 0o750); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}
	return &jobService{
		jobRepo:    jobRepo,
		clientRepo: clientRepo,
		statsRepo:  statsRepo,
		queue:      q,
		spoolDir:   spoolDir,
		logger:     logger,
	}, nil
}

// SpoolPath returns where a job's document lives on disk.
func SpoolPath(spoolDir string, job *models.PrintJob) string {
	return filepath.Join(spoolDir, job.JobID+"."+job.FileFormat.Extension())
}

func (s *jobService) Submit(ctx context.Context, req SubmitJobRequest) (*models.PrintJob, error) {
	job := req.Job

	// Refuse before the spool write so a duplicate cannot clobber the
	// original's file. The insert's unique constraint still backstops
	// concurrent submissions.
	existing, err := s.jobRepo.GetByID(ctx, job.JobID)
	if err != nil {
		return nil, fmt.Errorf("check job id: %w", err)
	}
	if existing != nil {
		return nil, brokererrors.ErrDuplicateJobID
	}

	path := SpoolPath(s.spoolDir, job)
	if err := os.WriteFile(path, req.Content, 0o600); err != nil {
		return nil, fmt.Errorf("write spool file: %w", err)
	}
	job.FilePath = path

	// Anything that fails after the spool write must not leave the file
	// behind.
	var ip, hostname *string
	if req.RemoteIP != "" {
		ip = &req.RemoteIP
	}
	if req.Hostname != "" {
		hostname = &req.Hostname
	}
	if _, err := s.clientRepo.Upsert(ctx, job.ClientID, ip, hostname); err != nil {
		s.removeSpoolFile(path)
		return nil, fmt.Errorf("upsert client: %w", err)
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		s.removeSpoolFile(path)
		if brokererrors.IsBrokerError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("persist job: %w", err)
	}

	pos := s.queue.Push(job)
	job.QueuePosition = &pos
	s.writeBackPositions(ctx)

	s.logger.Info("job admitted",
		slog.String("job_id", job.JobID),
		slog.String("client_id", job.ClientID),
		slog.Int("priority", job.Priority),
		slog.Int("queue_position", pos),
	)
	return job, nil
}

// writeBackPositions persists advisory queue positions. Failures are
// logged and ignored: positions are display-only.
func (s *jobService) writeBackPositions(ctx context.Context) {
	for _, p := range s.queue.Positions() {
		rank := p.Rank
		err := s.jobRepo.Update(ctx, p.JobID, models.JobPatch{QueuePosition: &rank})
		if err != nil {
			s.logger.Debug("queue position write-back failed",
				slog.String("job_id", p.JobID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *jobService) Get(ctx context.Context, jobID string) (*models.PrintJob, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, brokererrors.NewNotFoundError("Job")
	}
	return job, nil
}

func (s *jobService) List(ctx context.Context, filter repository.JobFilter) ([]*models.PrintJob, error) {
	jobs, err := s.jobRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

func (s *jobService) Cancel(ctx context.Context, jobID string) (*models.PrintJob, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Cancellable() {
		return nil, brokererrors.NewConflictError(
			fmt.Sprintf("job is %s; only pending jobs can be cancelled", job.Status),
		)
	}

	// The status guard loses gracefully if the dispatcher picked the job
	// up between the read above and here.
	cancelled, err := s.jobRepo.CancelPending(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("cancel job: %w", err)
	}
	if !cancelled {
		return nil, brokererrors.NewConflictError("job is no longer pending")
	}

	if job.FilePath != "" {
		s.removeSpoolFile(job.FilePath)
	}

	err = s.statsRepo.UpsertDaily(ctx, time.Now(), models.DailyStatsPatch{
		TotalJobs:     1,
		CancelledJobs: 1,
	})
	if err != nil {
		s.logger.Warn("cancelled stats bump failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("job cancelled", slog.String("job_id", jobID))
	return s.Get(ctx, jobID)
}

func (s *jobService) RestoreQueue(ctx context.Context, limit int) (int, error) {
	jobs, err := s.jobRepo.ListPending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}

	for _, job := range jobs {
		s.queue.Push(job)
	}
	if len(jobs) > 0 {
		s.writeBackPositions(ctx)
		s.logger.Info("restored pending jobs to queue", slog.Int("count", len(jobs)))
	}
	return len(jobs), nil
}

func (s *jobService) CleanupOld(ctx context.Context, retentionDays int) (int64, error) {
	removed, err := s.jobRepo.CleanupOld(ctx, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("cleanup old jobs: %w", err)
	}

	swept := s.sweepSpoolDir(retentionDays)
	if removed > 0 || swept > 0 {
		s.logger.Info("cleanup finished",
			slog.Int64("jobs_removed", removed),
			slog.Int("spool_files_removed", swept),
		)
	}
	return removed, nil
}

// sweepSpoolDir removes spool files older than the retention window.
// Completed jobs lose their file at dispatch time; this catches failed
// and orphaned ones.
func (s *jobService) sweepSpoolDir(retentionDays int) int {
	entries, err := os.ReadDir(s.spoolDir)
	if err != nil {
		s.logger.Warn("spool sweep failed", slog.String("error", err.Error()))
		return 0
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.spoolDir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed
}

func (s *jobService) removeSpoolFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("spool file removal failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
