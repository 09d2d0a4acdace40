package printer

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Submission records one mock print request.
type Submission struct {
	Printer string
	Path    string
	Copies  int
	At      time.Time
}

// Mock is an in-process backend for tests and hosts without CUPS. It
// accepts everything unless told otherwise.
type Mock struct {
	mu          sync.Mutex
	printers    []string
	submissions []Submission
	submitErr   error
	unavailable bool
}

var _ Backend = (*Mock)(nil)

// NewMock creates a mock backend. With no arguments it exposes a single
// printer named "mock-printer".
func NewMock(printers ...string) *Mock {
	if len(printers) == 0 {
		printers = []string{"mock-printer"}
	}
	return &Mock{printers: printers}
}

func (m *Mock) Printers(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return nil, fmt.Errorf("%w: mock marked unavailable", ErrUnavailable)
	}
	out := make([]string, len(m.printers))
	copy(out, m.printers)
	return out, nil
}

func (m *Mock) Submit(ctx context.Context, printerName, path string, opts SubmitOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return fmt.Errorf("%w: mock marked unavailable", ErrUnavailable)
	}
	if m.submitErr != nil {
		return m.submitErr
	}

	copies := opts.Copies
	if copies < 1 {
		copies = 1
	}
	m.submissions = append(m.submissions, Submission{
		Printer: printerName,
		Path:    path,
		Copies:  copies,
		At:      time.Now(),
	})
	return nil
}

func (m *Mock) Status(ctx context.Context, printerName string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return Status{}, fmt.Errorf("%w: mock marked unavailable", ErrUnavailable)
	}
	return Status{Name: printerName, State: StateIdle, Accepting: true}, nil
}

// Submissions returns a copy of everything submitted so far.
func (m *Mock) Submissions() []Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Submission, len(m.submissions))
	copy(out, m.submissions)
	return out
}

// FailSubmitWith makes subsequent Submit calls return err. Pass nil to
// restore normal behavior.
func (m *Mock) FailSubmitWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitErr = err
}

// SetUnavailable toggles the backend-down mode.
func (m *Mock) SetUnavailable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = down
}
