package printer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// CUPS drives the local CUPS scheduler through the lp and lpstat
// command line tools.
type CUPS struct {
	logger *slog.Logger
}

var _ Backend = (*CUPS)(nil)

// NewCUPS creates a CUPS backend.
func NewCUPS(logger *slog.Logger) *CUPS {
	return &CUPS{logger: logger}
}

// Printers lists printer names known to the scheduler via `lpstat -a`.
func (c *CUPS) Printers(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "lpstat", "-a")
	if err != nil {
		return nil, err
	}
	return parsePrinterNames(out), nil
}

// Submit spools path to printerName via `lp`.
func (c *CUPS) Submit(ctx context.Context, printerName, path string, opts SubmitOptions) error {
	copies := opts.Copies
	if copies < 1 {
		copies = 1
	}

	out, err := c.run(ctx, "lp", "-d", printerName, "-n", strconv.Itoa(copies), "--", path)
	if err != nil {
		return fmt.Errorf("submit to %s: %w", printerName, err)
	}

	c.logger.Debug("lp accepted job",
		slog.String("printer", printerName),
		slog.String("output", strings.TrimSpace(out)),
	)
	return nil
}

// Status reports printer state from `lpstat -p`, acceptance from
// `lpstat -a` and queue depth from `lpstat -o`.
func (c *CUPS) Status(ctx context.Context, printerName string) (Status, error) {
	status := Status{Name: printerName, State: StateUnknown}

	stateOut, err := c.run(ctx, "lpstat", "-p", printerName)
	if err != nil {
		return status, err
	}
	status.State = parsePrinterState(stateOut)

	acceptOut, err := c.run(ctx, "lpstat", "-a", printerName)
	if err != nil {
		return status, err
	}
	status.Accepting = parseAccepting(acceptOut)

	jobsOut, err := c.run(ctx, "lpstat", "-o", printerName)
	if err != nil {
		return status, err
	}
	status.Jobs = countQueuedJobs(jobsOut)

	return status, nil
}

func (c *CUPS) run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s not installed", ErrUnavailable, name)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		if schedulerDown(msg) {
			return "", fmt.Errorf("%w: %s", ErrUnavailable, msg)
		}
		return "", fmt.Errorf("%s %s: %s", name, strings.Join(args, " "), msg)
	}
	return stdout.String(), nil
}

// schedulerDown recognizes lpstat/lp complaints that mean the CUPS
// scheduler itself is unreachable rather than the job being bad.
func schedulerDown(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "unable to connect") ||
		strings.Contains(lower, "scheduler is not running") ||
		strings.Contains(lower, "connection refused")
}

// parsePrinterNames extracts names from `lpstat -a` output, one printer
// per line with the name as the first field.
func parsePrinterNames(out string) []string {
	var names []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		names = append(names, fields[0])
	}
	return names
}

// parsePrinterState maps the first `lpstat -p` line to a state constant.
func parsePrinterState(out string) string {
	line := strings.ToLower(strings.SplitN(out, "\n", 2)[0])
	switch {
	case strings.Contains(line, "is idle"):
		return StateIdle
	case strings.Contains(line, "now printing"):
		return StatePrinting
	case strings.Contains(line, "disabled"):
		return StateStopped
	default:
		return StateUnknown
	}
}

func parseAccepting(out string) bool {
	line := strings.ToLower(strings.SplitN(out, "\n", 2)[0])
	return strings.Contains(line, "accepting requests") &&
		!strings.Contains(line, "not accepting")
}

func countQueuedJobs(out string) int {
	n := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
