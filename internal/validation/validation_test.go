package validation

import (
	"strings"
	"testing"

	"github.com/Bidon15/printspool/internal/models"
	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
	"github.com/Bidon15/printspool/internal/protocol"
)

func newTestValidator() *Validator {
	return NewValidator(1 << 20) // 1 MiB ceiling keeps size tests cheap
}

func assertValidationError(t *testing.T, err error, field string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	brokerErr, ok := err.(*brokererrors.BrokerError)
	if !ok {
		t.Fatalf("error type = %T, want *BrokerError", err)
	}
	if brokerErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %v, want VALIDATION_ERROR", brokerErr.Code)
	}
	details, ok := brokerErr.Details.(map[string]string)
	if !ok {
		t.Fatalf("Details type = %T, want map[string]string", brokerErr.Details)
	}
	if details["field"] != field {
		t.Errorf("field = %v, want %v", details["field"], field)
	}
}

func TestValidator_ValidateClientID(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name     string
		clientID string
		wantErr  bool
	}{
		{name: "simple", clientID: "client-01", wantErr: false},
		{name: "underscores", clientID: "office_printer_3", wantErr: false},
		{name: "max length", clientID: strings.Repeat("a", 100), wantErr: false},
		{name: "empty", clientID: "", wantErr: true},
		{name: "too long", clientID: strings.Repeat("a", 101), wantErr: true},
		{name: "spaces", clientID: "client 01", wantErr: true},
		{name: "dots", clientID: "client.01", wantErr: true},
		{name: "injection", clientID: "client;DROP TABLE", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateClientID(tt.clientID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateClientID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				assertValidationError(t, err, "client_id")
			}
		})
	}
}

func TestValidator_ValidateUsername(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{name: "simple", username: "alice", wantErr: false},
		{name: "dotted", username: "alice.smith", wantErr: false},
		{name: "minimum length", username: "abc", wantErr: false},
		{name: "too short", username: "ab", wantErr: true},
		{name: "too long", username: strings.Repeat("a", 51), wantErr: true},
		{name: "spaces", username: "alice smith", wantErr: true},
		{name: "unicode", username: "ålice", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidator_ValidateJobID(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name    string
		jobID   string
		wantErr bool
	}{
		{name: "simple", jobID: "job-2024-001", wantErr: false},
		{name: "underscores", jobID: "job_42_copy", wantErr: false},
		{name: "max length", jobID: strings.Repeat("x", 100), wantErr: false},
		{name: "empty", jobID: "", wantErr: true},
		{name: "too long", jobID: strings.Repeat("x", 101), wantErr: true},
		{name: "control characters", jobID: "job\x00id", wantErr: true},
		{name: "newline", jobID: "job\nid", wantErr: true},
		{name: "spaces", jobID: "job 42", wantErr: true},
		{name: "punctuation", jobID: "job#42", wantErr: true},
		{name: "dots", jobID: "job..42", wantErr: true},
		{name: "forward slash", jobID: "jobs/42", wantErr: true},
		{name: "backslash", jobID: `jobs\42`, wantErr: true},
		{name: "traversal", jobID: "../../../../tmp/evil", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateJobID(tt.jobID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateJobID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidator_SanitizeDocumentName(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "report.pdf", want: "report.pdf"},
		{name: "spaces kept", input: "Q3 report (final).pdf", want: "Q3 report (final).pdf"},
		{name: "unix path stripped", input: "/home/alice/report.pdf", want: "report.pdf"},
		{name: "windows path stripped", input: `C:\Users\alice\report.pdf`, want: "report.pdf"},
		{name: "disallowed filtered", input: "rep@ort!.pdf", want: "report.pdf"},
		{name: "traversal rejected", input: "../../etc/passwd", wantErr: true},
		{name: "hidden traversal rejected", input: "safe/../../etc/shadow", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "nothing valid", input: "@#$%^&*", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 256) + ".pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.SanitizeDocumentName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SanitizeDocumentName() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				assertValidationError(t, err, "document_name")
				return
			}
			if got != tt.want {
				t.Errorf("SanitizeDocumentName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidator_SanitizeDocumentName_WindowsPath(t *testing.T) {
	v := newTestValidator()

	// A backslash path with no traversal: only the final element survives.
	got, err := v.SanitizeDocumentName(`reports\2024\summary.pdf`)
	if err != nil {
		t.Fatalf("SanitizeDocumentName() error = %v", err)
	}
	if got != "summary.pdf" {
		t.Errorf("SanitizeDocumentName() = %q, want %q", got, "summary.pdf")
	}
}

func TestValidator_ValidateFileFormat(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name    string
		format  string
		want    models.FileFormat
		wantErr bool
	}{
		{name: "pdf", format: "pdf", want: models.FileFormatPDF},
		{name: "uppercase normalized", format: "PDF", want: models.FileFormatPDF},
		{name: "postscript", format: "postscript", want: models.FileFormatPostScript},
		{name: "ps", format: "ps", want: models.FileFormatPS},
		{name: "docx rejected", format: "docx", wantErr: true},
		{name: "empty rejected", format: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ValidateFileFormat(tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateFileFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ValidateFileFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidator_ValidateFileSize(t *testing.T) {
	v := newTestValidator()

	if err := v.ValidateFileSize(1 << 20); err != nil {
		t.Errorf("ValidateFileSize(at ceiling) error = %v", err)
	}
	if err := v.ValidateFileSize(1<<20 + 1); err == nil {
		t.Error("ValidateFileSize(over ceiling) expected error")
	}
	if err := v.ValidateFileSize(0); err == nil {
		t.Error("ValidateFileSize(0) expected error")
	}
}

func TestValidator_ValidatePrintJob(t *testing.T) {
	v := newTestValidator()

	payload := func() *protocol.PrintJobPayload {
		return &protocol.PrintJobPayload{
			JobID:      "job-001",
			ClientID:   "client-a",
			User:       "alice",
			FileFormat: "PDF",
			Metadata:   protocol.JobMetadata{DocumentName: "report.pdf", PageCount: 4},
		}
	}

	t.Run("normalizes and defaults", func(t *testing.T) {
		job, err := v.ValidatePrintJob(payload(), 2048)
		if err != nil {
			t.Fatalf("ValidatePrintJob() error = %v", err)
		}
		if job.FileFormat != models.FileFormatPDF {
			t.Errorf("FileFormat = %v, want %v", job.FileFormat, models.FileFormatPDF)
		}
		if job.Priority != models.DefaultPriority {
			t.Errorf("Priority = %v, want %v", job.Priority, models.DefaultPriority)
		}
		if job.PageSize != models.PageSizeA4 {
			t.Errorf("PageSize = %v, want %v", job.PageSize, models.PageSizeA4)
		}
		if job.Copies != 1 || !job.Color || job.Duplex {
			t.Errorf("parameter defaults = copies %d color %v duplex %v", job.Copies, job.Color, job.Duplex)
		}
		if job.Status != models.JobStatusPending {
			t.Errorf("Status = %v, want pending", job.Status)
		}
		if job.FileSizeBytes != 2048 {
			t.Errorf("FileSizeBytes = %v, want 2048", job.FileSizeBytes)
		}
	})

	t.Run("explicit parameters survive", func(t *testing.T) {
		p := payload()
		color := false
		p.Priority = 2
		p.Parameters = protocol.JobParameters{
			PageSize:    "Letter",
			Orientation: "landscape",
			Copies:      3,
			Color:       &color,
			Duplex:      true,
			Quality:     "high",
		}
		job, err := v.ValidatePrintJob(p, 100)
		if err != nil {
			t.Fatalf("ValidatePrintJob() error = %v", err)
		}
		if job.PageSize != models.PageSizeLetter || job.Orientation != models.OrientationLandscape {
			t.Errorf("page = %v/%v, want Letter/landscape", job.PageSize, job.Orientation)
		}
		if job.Copies != 3 || job.Color || !job.Duplex || job.Quality != models.QualityHigh {
			t.Errorf("options = copies %d color %v duplex %v quality %v", job.Copies, job.Color, job.Duplex, job.Quality)
		}
		if job.Priority != 2 {
			t.Errorf("Priority = %v, want 2", job.Priority)
		}
	})

	t.Run("rejections", func(t *testing.T) {
		cases := []struct {
			name   string
			mutate func(*protocol.PrintJobPayload)
			size   int64
			field  string
		}{
			{name: "bad client id", mutate: func(p *protocol.PrintJobPayload) { p.ClientID = "no spaces" }, size: 10, field: "client_id"},
			{name: "traversal job id", mutate: func(p *protocol.PrintJobPayload) { p.JobID = "../../../../tmp/evil" }, size: 10, field: "job_id"},
			{name: "bad format", mutate: func(p *protocol.PrintJobPayload) { p.FileFormat = "exe" }, size: 10, field: "file_format"},
			{name: "oversize", mutate: func(p *protocol.PrintJobPayload) {}, size: 2 << 20, field: "file_content"},
			{name: "traversal", mutate: func(p *protocol.PrintJobPayload) { p.Metadata.DocumentName = "../../etc/passwd" }, size: 10, field: "document_name"},
			{name: "priority out of range", mutate: func(p *protocol.PrintJobPayload) { p.Priority = 11 }, size: 10, field: "priority"},
			{name: "zero copies ok but negative rejected", mutate: func(p *protocol.PrintJobPayload) { p.Parameters.Copies = -1 }, size: 10, field: "copies"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				p := payload()
				tc.mutate(p)
				_, err := v.ValidatePrintJob(p, tc.size)
				assertValidationError(t, err, tc.field)
			})
		}
	})
}
