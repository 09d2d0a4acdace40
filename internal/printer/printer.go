// Package printer abstracts the physical print backend. The broker talks
// to CUPS through lp/lpstat on Linux hosts and to an in-process mock
// everywhere else.
package printer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrUnavailable marks a backend that cannot take work right now (CUPS
// scheduler down, binaries missing). The dispatcher re-enqueues without
// burning a retry when it sees this.
var ErrUnavailable = errors.New("printer backend unavailable")

// Printer states as reported by Status.
const (
	StateIdle     = "idle"
	StatePrinting = "printing"
	StateStopped  = "stopped"
	StateUnknown  = "unknown"
)

// Status describes one printer.
type Status struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Accepting bool   `json:"accepting"`
	Jobs      int    `json:"jobs"`
}

// SubmitOptions carries per-submission settings.
type SubmitOptions struct {
	Copies int
}

// Backend is the minimal surface the dispatcher needs.
type Backend interface {
	Printers(ctx context.Context) ([]string, error)
	Submit(ctx context.Context, printerName, path string, opts SubmitOptions) error
	Status(ctx context.Context, printerName string) (Status, error)
}

// SelectBackend picks the backend at boot. use_mock forces the mock;
// otherwise CUPS is probed once and the mock is the fallback when the
// probe fails.
func SelectBackend(ctx context.Context, useMock bool, logger *slog.Logger) Backend {
	if useMock {
		logger.Info("using mock printer backend")
		return NewMock()
	}

	cups := NewCUPS(logger)
	if _, err := cups.Printers(ctx); err != nil {
		logger.Warn("CUPS probe failed, falling back to mock backend",
			slog.String("error", err.Error()),
		)
		return NewMock()
	}
	logger.Info("using CUPS printer backend")
	return cups
}

// Manager binds a backend to the printer the broker submits to. The name
// resolves lazily to the first discovered printer when unset.
type Manager struct {
	backend Backend
	logger  *slog.Logger

	mu   sync.RWMutex
	name string
}

// NewManager wraps backend. name may be empty, in which case the first
// discovered printer is used.
func NewManager(backend Backend, name string, logger *slog.Logger) *Manager {
	return &Manager{backend: backend, name: name, logger: logger}
}

// Backend exposes the underlying backend for status reporting.
func (m *Manager) Backend() Backend { return m.backend }

// Printer returns the currently selected printer name, resolving the
// default on first use.
func (m *Manager) Printer(ctx context.Context) (string, error) {
	m.mu.RLock()
	name := m.name
	m.mu.RUnlock()
	if name != "" {
		return name, nil
	}

	printers, err := m.backend.Printers(ctx)
	if err != nil {
		return "", err
	}
	if len(printers) == 0 {
		return "", fmt.Errorf("no printers available")
	}

	m.mu.Lock()
	if m.name == "" {
		m.name = printers[0]
		m.logger.Info("selected default printer", slog.String("printer", m.name))
	}
	name = m.name
	m.mu.Unlock()
	return name, nil
}

// SetPrinter switches the target printer. An unknown name is still set,
// with a warning: printers can appear after boot.
func (m *Manager) SetPrinter(ctx context.Context, name string) {
	printers, err := m.backend.Printers(ctx)
	if err == nil {
		known := false
		for _, p := range printers {
			if p == name {
				known = true
				break
			}
		}
		if !known {
			m.logger.Warn("printer not in discovered list",
				slog.String("printer", name),
				slog.Int("discovered", len(printers)),
			)
		}
	}

	m.mu.Lock()
	m.name = name
	m.mu.Unlock()
}

// Submit sends a spooled file to the selected printer.
func (m *Manager) Submit(ctx context.Context, path string, copies int) error {
	name, err := m.Printer(ctx)
	if err != nil {
		return err
	}
	return m.backend.Submit(ctx, name, path, SubmitOptions{Copies: copies})
}

// Status reports the selected printer's state.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	name, err := m.Printer(ctx)
	if err != nil {
		return Status{}, err
	}
	return m.backend.Status(ctx, name)
}
