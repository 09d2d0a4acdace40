package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Bidon15/printspool/internal/models"
	"github.com/Bidon15/printspool/internal/printer"
	"github.com/Bidon15/printspool/internal/queue"
	"github.com/Bidon15/printspool/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// --- Mocks ---

// mockTxManager runs the function without a real transaction; the mocks'
// WithTx return themselves.
type mockTxManager struct{}

func (mockTxManager) WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type mockJobRepo struct {
	mu                  sync.Mutex
	jobs                map[string]*models.PrintJob
	printingTransitions map[string]int
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{
		jobs:                make(map[string]*models.PrintJob),
		printingTransitions: make(map[string]int),
	}
}

func (m *mockJobRepo) put(job *models.PrintJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.JobID] = job
}

func (m *mockJobRepo) snapshot(jobID string) models.PrintJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[jobID]
}

func (m *mockJobRepo) attempts(jobID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.printingTransitions[jobID]
}

func (m *mockJobRepo) Create(ctx context.Context, job *models.PrintJob) error {
	m.put(job)
	return nil
}

func (m *mockJobRepo) GetByID(ctx context.Context, jobID string) (*models.PrintJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (m *mockJobRepo) Update(ctx context.Context, jobID string, patch models.JobPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return pgx.ErrNoRows
	}
	if patch.Status != nil {
		if *patch.Status == models.JobStatusPrinting {
			m.printingTransitions[jobID]++
		}
		job.Status = *patch.Status
	}
	if patch.Priority != nil {
		job.Priority = *patch.Priority
	}
	if patch.QueuePosition != nil {
		job.QueuePosition = patch.QueuePosition
	}
	if patch.ErrorMessage != nil {
		if *patch.ErrorMessage == "" {
			job.ErrorMessage = nil
		} else {
			msg := *patch.ErrorMessage
			job.ErrorMessage = &msg
		}
	}
	if patch.RetryCount != nil {
		job.RetryCount = *patch.RetryCount
	}
	if patch.FilePath != nil {
		job.FilePath = *patch.FilePath
	}
	if patch.StartedAt != nil {
		job.StartedAt = patch.StartedAt
	}
	if patch.CompletedAt != nil {
		job.CompletedAt = patch.CompletedAt
	}
	if patch.ProcessingTimeMS != nil {
		job.ProcessingTimeMS = patch.ProcessingTimeMS
	}
	job.UpdatedAt = time.Now()
	return nil
}

func (m *mockJobRepo) ListPending(ctx context.Context, limit int) ([]*models.PrintJob, error) {
	return nil, nil
}

func (m *mockJobRepo) NextPending(ctx context.Context) (*models.PrintJob, error) { return nil, nil }

func (m *mockJobRepo) ListByStatus(ctx context.Context, status models.JobStatus, limit, offset int) ([]*models.PrintJob, error) {
	return nil, nil
}

func (m *mockJobRepo) ListByUser(ctx context.Context, userName string, limit int) ([]*models.PrintJob, error) {
	return nil, nil
}

func (m *mockJobRepo) ListRecent(ctx context.Context, limit int) ([]*models.PrintJob, error) {
	return nil, nil
}

func (m *mockJobRepo) List(ctx context.Context, filter repository.JobFilter) ([]*models.PrintJob, error) {
	return nil, nil
}

func (m *mockJobRepo) CountByStatus(ctx context.Context, status models.JobStatus) (int64, error) {
	return 0, nil
}

func (m *mockJobRepo) CancelPending(ctx context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != models.JobStatusPending {
		return false, nil
	}
	job.Status = models.JobStatusCancelled
	return true, nil
}

func (m *mockJobRepo) Delete(ctx context.Context, jobID string) error { return nil }

func (m *mockJobRepo) CleanupOld(ctx context.Context, olderThanDays int) (int64, error) {
	return 0, nil
}

func (m *mockJobRepo) WithTx(tx pgx.Tx) repository.JobRepository { return m }

type mockClientRepo struct {
	mu         sync.Mutex
	totalJobs  map[string]int64
	totalPages map[string]int64
}

func newMockClientRepo() *mockClientRepo {
	return &mockClientRepo{
		totalJobs:  make(map[string]int64),
		totalPages: make(map[string]int64),
	}
}

func (m *mockClientRepo) Upsert(ctx context.Context, clientID string, ipAddress, hostname *string) (*models.Client, error) {
	return &models.Client{ClientID: clientID}, nil
}

func (m *mockClientRepo) Get(ctx context.Context, clientID string) (*models.Client, error) {
	return nil, nil
}

func (m *mockClientRepo) List(ctx context.Context) ([]*models.Client, error) { return nil, nil }

func (m *mockClientRepo) IncrementStats(ctx context.Context, clientID string, jobs, pages int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalJobs[clientID] += jobs
	m.totalPages[clientID] += pages
	return nil
}

func (m *mockClientRepo) WithTx(tx pgx.Tx) repository.ClientRepository { return m }

type mockStatsRepo struct {
	mu    sync.Mutex
	total models.DailyStats
}

func newMockStatsRepo() *mockStatsRepo { return &mockStatsRepo{} }

func (m *mockStatsRepo) UpsertDaily(ctx context.Context, date time.Time, patch models.DailyStatsPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total.TotalJobs += patch.TotalJobs
	m.total.CompletedJobs += patch.CompletedJobs
	m.total.FailedJobs += patch.FailedJobs
	m.total.CancelledJobs += patch.CancelledJobs
	m.total.TotalPages += patch.TotalPages
	return nil
}

func (m *mockStatsRepo) GetByDate(ctx context.Context, date time.Time) (*models.DailyStats, error) {
	return nil, nil
}

func (m *mockStatsRepo) Range(ctx context.Context, from, to time.Time) ([]*models.DailyStats, error) {
	return nil, nil
}

func (m *mockStatsRepo) Summary(ctx context.Context) (*models.StatsSummary, error) {
	return &models.StatsSummary{}, nil
}

func (m *mockStatsRepo) WithTx(tx pgx.Tx) repository.StatsRepository { return m }

func (m *mockStatsRepo) counts() models.DailyStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// --- Fixture ---

type fixture struct {
	q        *queue.Queue
	jobs     *mockJobRepo
	clients  *mockClientRepo
	stats    *mockStatsRepo
	backend  *printer.Mock
	d        *Dispatcher
	spoolDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	q := queue.New()
	t.Cleanup(q.Close)
	jobs := newMockJobRepo()
	clients := newMockClientRepo()
	stats := newMockStatsRepo()
	backend := printer.NewMock()
	mgr := printer.NewManager(backend, "mock-printer", testLogger())

	d := New(q, jobs, clients, stats, mockTxManager{}, mgr,
		Config{PollTimeout: 20 * time.Millisecond, RetryDelay: 10 * time.Millisecond},
		testLogger(),
	)

	return &fixture{
		q:        q,
		jobs:     jobs,
		clients:  clients,
		stats:    stats,
		backend:  backend,
		d:        d,
		spoolDir: t.TempDir(),
	}
}

// seedJob stores a pending job with a real spool file and enqueues it.
func (f *fixture) seedJob(t *testing.T, id string, maxRetries int) *models.PrintJob {
	t.Helper()

	path := filepath.Join(f.spoolDir, id+".pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatalf("write spool file: %v", err)
	}

	job := &models.PrintJob{
		JobID:      id,
		ClientID:   "client-001",
		UserName:   "alice",
		FileFormat: models.FileFormatPDF,
		FilePath:   path,
		Copies:     2,
		PageCount:  3,
		Status:     models.JobStatusPending,
		Priority:   models.DefaultPriority,
		MaxRetries: maxRetries,
	}
	f.jobs.put(job)
	f.q.Push(job)
	return job
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// --- Tests ---

func TestDispatcherCompletesJob(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, "job-ok", models.DefaultMaxRetries)

	f.d.Start(context.Background())
	waitFor(t, "job completion", func() bool {
		return f.jobs.snapshot("job-ok").Status == models.JobStatusCompleted
	})
	waitFor(t, "spool file removal", func() bool {
		_, err := os.Stat(job.FilePath)
		return os.IsNotExist(err)
	})
	f.d.Stop()

	got := f.jobs.snapshot("job-ok")
	if got.CompletedAt == nil || got.StartedAt == nil {
		t.Error("timestamps not recorded on completion")
	}
	if got.ProcessingTimeMS == nil {
		t.Error("processing time not recorded")
	}
	if got.ErrorMessage != nil {
		t.Errorf("error message = %v, want cleared", *got.ErrorMessage)
	}

	subs := f.backend.Submissions()
	if len(subs) != 1 {
		t.Fatalf("backend submissions = %d, want 1", len(subs))
	}
	if subs[0].Copies != 2 || subs[0].Path != job.FilePath {
		t.Errorf("submission = %+v", subs[0])
	}

	f.clients.mu.Lock()
	jobsN, pagesN := f.clients.totalJobs["client-001"], f.clients.totalPages["client-001"]
	f.clients.mu.Unlock()
	if jobsN != 1 || pagesN != 3 {
		t.Errorf("client counters = (%d jobs, %d pages), want (1, 3)", jobsN, pagesN)
	}

	daily := f.stats.counts()
	if daily.CompletedJobs != 1 || daily.TotalJobs != 1 || daily.TotalPages != 3 {
		t.Errorf("daily stats = %+v", daily)
	}
}

func TestDispatcherSkipsNonPendingJob(t *testing.T) {
	f := newFixture(t)

	// Stale queue entry: the store says cancelled by the time the worker
	// gets to it.
	job := f.seedJob(t, "job-cancelled", models.DefaultMaxRetries)
	f.jobs.mu.Lock()
	f.jobs.jobs["job-cancelled"].Status = models.JobStatusCancelled
	f.jobs.mu.Unlock()

	f.d.Start(context.Background())
	time.Sleep(150 * time.Millisecond)
	f.d.Stop()

	if n := len(f.backend.Submissions()); n != 0 {
		t.Errorf("backend submissions = %d, want 0", n)
	}
	got := f.jobs.snapshot("job-cancelled")
	if got.Status != models.JobStatusCancelled {
		t.Errorf("status = %v, want cancelled untouched", got.Status)
	}
	if f.jobs.attempts("job-cancelled") != 0 {
		t.Error("cancelled job was marked printing")
	}
	_ = job
}

func TestDispatcherRetryBound(t *testing.T) {
	f := newFixture(t)
	f.backend.FailSubmitWith(errors.New("paper jam"))
	f.seedJob(t, "job-jam", 2)

	f.d.Start(context.Background())
	waitFor(t, "permanent failure", func() bool {
		return f.jobs.snapshot("job-jam").Status == models.JobStatusFailed
	})
	f.d.Stop()

	// max_retries 2 allows exactly 3 printing transitions.
	if n := f.jobs.attempts("job-jam"); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}

	// The stored counter stops at the budget: 2 retries, never 3.
	got := f.jobs.snapshot("job-jam")
	if got.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2 (max_retries)", got.RetryCount)
	}
	if got.Priority != models.DefaultPriority+2 {
		t.Errorf("priority = %d, want %d after two bumps", got.Priority, models.DefaultPriority+2)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "paper jam") {
		t.Errorf("error message = %v, want the backend failure", got.ErrorMessage)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set on permanent failure")
	}

	daily := f.stats.counts()
	if daily.FailedJobs != 1 || daily.CompletedJobs != 0 {
		t.Errorf("daily stats = %+v", daily)
	}

	// Failed jobs keep their spool file for inspection.
	if _, err := os.Stat(got.FilePath); err != nil {
		t.Error("spool file removed on permanent failure")
	}
}

func TestDispatcherRetryPriorityCapped(t *testing.T) {
	f := newFixture(t)
	f.backend.FailSubmitWith(errors.New("out of toner"))
	job := f.seedJob(t, "job-cap", 3)
	job.Priority = models.MaxPriority
	f.jobs.put(job)

	f.d.Start(context.Background())
	waitFor(t, "permanent failure", func() bool {
		return f.jobs.snapshot("job-cap").Status == models.JobStatusFailed
	})
	f.d.Stop()

	if got := f.jobs.snapshot("job-cap"); got.Priority != models.MaxPriority {
		t.Errorf("priority = %d, want capped at %d", got.Priority, models.MaxPriority)
	}
}

func TestDispatcherBackendOutageDoesNotBurnRetries(t *testing.T) {
	f := newFixture(t)
	f.backend.SetUnavailable(true)
	f.seedJob(t, "job-outage", models.DefaultMaxRetries)

	f.d.Start(context.Background())

	// Let the worker cycle the job through the outage a few times.
	waitFor(t, "repeated outage attempts", func() bool {
		return f.jobs.attempts("job-outage") >= 3
	})
	got := f.jobs.snapshot("job-outage")
	if got.RetryCount != 0 {
		t.Errorf("retry count = %d during outage, want 0", got.RetryCount)
	}
	if got.Status == models.JobStatusFailed {
		t.Error("job failed during backend outage")
	}
	if got.Priority != models.DefaultPriority {
		t.Errorf("priority = %d during outage, want unchanged", got.Priority)
	}

	f.backend.SetUnavailable(false)
	waitFor(t, "completion after recovery", func() bool {
		return f.jobs.snapshot("job-outage").Status == models.JobStatusCompleted
	})
	f.d.Stop()

	if got := f.jobs.snapshot("job-outage"); got.RetryCount != 0 {
		t.Errorf("retry count = %d after recovery, want 0", got.RetryCount)
	}
	if n := len(f.backend.Submissions()); n != 1 {
		t.Errorf("recorded submissions = %d, want 1", n)
	}
}

func TestDispatcherMissingSpoolFileFailsPermanently(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, "job-ghost", models.DefaultMaxRetries)
	if err := os.Remove(job.FilePath); err != nil {
		t.Fatalf("remove spool file: %v", err)
	}

	f.d.Start(context.Background())
	waitFor(t, "permanent failure", func() bool {
		return f.jobs.snapshot("job-ghost").Status == models.JobStatusFailed
	})
	f.d.Stop()

	if n := f.jobs.attempts("job-ghost"); n != 1 {
		t.Errorf("attempts = %d, want 1 (no retries for a missing document)", n)
	}
	got := f.jobs.snapshot("job-ghost")
	if got.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", got.RetryCount)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "spool file") {
		t.Errorf("error message = %v, want spool file complaint", got.ErrorMessage)
	}
	if n := len(f.backend.Submissions()); n != 0 {
		t.Errorf("backend submissions = %d, want 0", n)
	}
}
