// Package dispatcher drains the priority queue and drives jobs through
// the printer backend. A single worker preserves submission order within
// a priority level.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Bidon15/printspool/internal/metrics"
	"github.com/Bidon15/printspool/internal/models"
	"github.com/Bidon15/printspool/internal/printer"
	"github.com/Bidon15/printspool/internal/queue"
	"github.com/Bidon15/printspool/internal/repository"
)

const (
	defaultPollTimeout = time.Second
	defaultRetryDelay  = 5 * time.Second
)

// Config tunes the worker loop.
type Config struct {
	// PollTimeout bounds how long a queue pop blocks; it also bounds
	// shutdown latency.
	PollTimeout time.Duration
	// RetryDelay is the pause before a failed attempt is re-enqueued,
	// and the backoff when the backend is unavailable.
	RetryDelay time.Duration
}

// Dispatcher owns the worker goroutine.
type Dispatcher struct {
	queue    *queue.Queue
	jobs     repository.JobRepository
	clients  repository.ClientRepository
	stats    repository.StatsRepository
	txm      repository.TxManager
	printers *printer.Manager
	cfg      Config
	logger   *slog.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

// New creates a dispatcher. Zero Config fields fall back to defaults.
func New(
	q *queue.Queue,
	jobs repository.JobRepository,
	clients repository.ClientRepository,
	stats repository.StatsRepository,
	txm repository.TxManager,
	printers *printer.Manager,
	cfg Config,
	logger *slog.Logger,
) *Dispatcher {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Dispatcher{
		queue:    q,
		jobs:     jobs,
		clients:  clients,
		stats:    stats,
		txm:      txm,
		printers: printers,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start launches the worker. It returns immediately.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.running.Store(true)
	d.wg.Add(1)
	go d.run(ctx)
	d.logger.Info("dispatcher started",
		slog.Duration("poll_timeout", d.cfg.PollTimeout),
		slog.Duration("retry_delay", d.cfg.RetryDelay),
	)
}

// Stop halts the worker and waits for the in-flight job to finish its
// current step.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.running.Store(false)
	d.logger.Info("dispatcher stopped")
}

// Running reports whether the worker loop is alive.
func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok := d.queue.Pop(d.cfg.PollTimeout)
		metrics.QueueDepth.Set(float64(d.queue.Len()))
		if !ok {
			continue
		}
		d.process(ctx, job)
	}
}

func (d *Dispatcher) process(ctx context.Context, queued *models.PrintJob) {
	// The store is authoritative: the queued copy may predate a
	// cancellation or an admin edit.
	job, err := d.jobs.GetByID(ctx, queued.JobID)
	if err != nil {
		d.logger.Error("job reload failed",
			slog.String("job_id", queued.JobID),
			slog.String("error", err.Error()),
		)
		d.requeueAfterDelay(ctx, queued)
		return
	}
	if job == nil || job.Status != models.JobStatusPending {
		status := "missing"
		if job != nil {
			status = job.Status.String()
		}
		d.logger.Info("skipping job no longer pending",
			slog.String("job_id", queued.JobID),
			slog.String("status", status),
		)
		return
	}

	started := time.Now()
	printing := models.JobStatusPrinting
	err = d.jobs.Update(ctx, job.JobID, models.JobPatch{Status: &printing, StartedAt: &started})
	if err != nil {
		d.logger.Error("mark printing failed",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		d.requeueAfterDelay(ctx, job)
		return
	}

	if _, err := os.Stat(job.FilePath); err != nil {
		// No document, nothing to retry.
		d.fail(ctx, job, fmt.Sprintf("spool file unreadable: %v", err))
		return
	}

	d.logger.Info("printing job",
		slog.String("job_id", job.JobID),
		slog.String("document", job.DocumentName),
		slog.Int("copies", job.Copies),
		slog.Int("attempt", job.RetryCount+1),
	)

	err = d.printers.Submit(ctx, job.FilePath, job.Copies)
	if errors.Is(err, printer.ErrUnavailable) {
		d.logger.Warn("printer backend unavailable",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		// Not the job's fault: back to pending at the same priority,
		// retry budget untouched.
		d.returnToPending(ctx, job, nil)
		d.requeueAfterDelay(ctx, job)
		return
	}
	if err != nil {
		d.retry(ctx, job, err)
		return
	}

	d.complete(ctx, job, time.Since(started))
}

// retry sends a failed job around again with an urgency bump, or fails
// it once the retry budget is spent. A job is attempted at most
// max_retries+1 times, and the stored retry_count never exceeds
// max_retries.
func (d *Dispatcher) retry(ctx context.Context, job *models.PrintJob, cause error) {
	if job.RetryCount >= job.MaxRetries {
		d.fail(ctx, job, cause.Error())
		return
	}
	job.RetryCount++

	job.Priority = min(models.MaxPriority, job.Priority+1)
	msg := cause.Error()
	d.returnToPending(ctx, job, &msg)

	d.logger.Warn("print attempt failed, retrying",
		slog.String("job_id", job.JobID),
		slog.Int("retry_count", job.RetryCount),
		slog.Int("max_retries", job.MaxRetries),
		slog.Int("priority", job.Priority),
		slog.String("error", msg),
	)
	metrics.JobsRetried.Inc()
	d.requeueAfterDelay(ctx, job)
}

// returnToPending writes the job back to pending, carrying any retry
// bookkeeping mutated on the in-memory copy.
func (d *Dispatcher) returnToPending(ctx context.Context, job *models.PrintJob, errorMessage *string) {
	pending := models.JobStatusPending
	patch := models.JobPatch{
		Status:     &pending,
		RetryCount: &job.RetryCount,
		Priority:   &job.Priority,
	}
	if errorMessage != nil {
		patch.ErrorMessage = errorMessage
	}
	if err := d.jobs.Update(ctx, job.JobID, patch); err != nil {
		d.logger.Error("return to pending failed",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}
}

// requeueAfterDelay pushes the job back after the retry delay. On
// shutdown the push is skipped; the store still holds the job as
// pending, so boot restore picks it up.
func (d *Dispatcher) requeueAfterDelay(ctx context.Context, job *models.PrintJob) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(d.cfg.RetryDelay):
	}
	d.queue.Push(job)
}

// complete commits the success transaction: job row, client counters and
// the daily aggregate move together.
func (d *Dispatcher) complete(ctx context.Context, job *models.PrintJob, took time.Duration) {
	completedAt := time.Now()
	ms := took.Milliseconds()
	completed := models.JobStatusCompleted
	clearError := ""

	err := d.txm.WithinTx(ctx, func(tx pgx.Tx) error {
		err := d.jobs.WithTx(tx).Update(ctx, job.JobID, models.JobPatch{
			Status:           &completed,
			CompletedAt:      &completedAt,
			ProcessingTimeMS: &ms,
			ErrorMessage:     &clearError,
		})
		if err != nil {
			return fmt.Errorf("mark completed: %w", err)
		}

		err = d.clients.WithTx(tx).IncrementStats(ctx, job.ClientID, 1, int64(job.PageCount))
		if err != nil {
			return fmt.Errorf("client counters: %w", err)
		}

		err = d.stats.WithTx(tx).UpsertDaily(ctx, completedAt, models.DailyStatsPatch{
			TotalJobs:        1,
			CompletedJobs:    1,
			TotalPages:       int64(job.PageCount),
			ProcessingTimeMS: &ms,
		})
		if err != nil {
			return fmt.Errorf("daily stats: %w", err)
		}
		return nil
	})
	if err != nil {
		d.logger.Error("completion transaction failed",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := os.Remove(job.FilePath); err != nil && !os.IsNotExist(err) {
		d.logger.Warn("spool file removal failed",
			slog.String("job_id", job.JobID),
			slog.String("path", job.FilePath),
			slog.String("error", err.Error()),
		)
	}

	metrics.JobsCompleted.Inc()
	metrics.ProcessingDuration.Observe(took.Seconds())
	d.logger.Info("job completed",
		slog.String("job_id", job.JobID),
		slog.Int64("processing_time_ms", ms),
		slog.Int("pages", job.PageCount),
	)
}

// fail marks a job permanently failed. The spool file is kept for the
// retention sweep so operators can inspect it.
func (d *Dispatcher) fail(ctx context.Context, job *models.PrintJob, reason string) {
	failedAt := time.Now()
	failed := models.JobStatusFailed

	err := d.txm.WithinTx(ctx, func(tx pgx.Tx) error {
		err := d.jobs.WithTx(tx).Update(ctx, job.JobID, models.JobPatch{
			Status:       &failed,
			CompletedAt:  &failedAt,
			ErrorMessage: &reason,
			RetryCount:   &job.RetryCount,
		})
		if err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		err = d.stats.WithTx(tx).UpsertDaily(ctx, failedAt, models.DailyStatsPatch{
			TotalJobs:  1,
			FailedJobs: 1,
		})
		if err != nil {
			return fmt.Errorf("daily stats: %w", err)
		}
		return nil
	})
	if err != nil {
		d.logger.Error("failure transaction failed",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		return
	}

	metrics.JobsFailed.Inc()
	d.logger.Error("job failed permanently",
		slog.String("job_id", job.JobID),
		slog.Int("retry_count", job.RetryCount),
		slog.String("reason", reason),
	)
}
