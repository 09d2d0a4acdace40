// Package validation enforces the input rules for print job submissions.
// Failures carry the offending field name; rejected input is never echoed
// back at full length.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Bidon15/printspool/internal/models"
	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
	"github.com/Bidon15/printspool/internal/protocol"
)

const (
	maxClientIDLen     = 100
	minUsernameLen     = 3
	maxUsernameLen     = 50
	maxJobIDLen        = 100
	maxDocumentNameLen = 255
)

var (
	clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	jobIDPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// documentNameAllowed is the character set a sanitized document name may
// contain.
func documentNameAllowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == ' ', r == '_', r == '.', r == '(', r == ')', r == '-':
		return true
	default:
		return false
	}
}

// Validator checks submission fields against the broker's input rules.
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a validator with the given document size ceiling
// in bytes.
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{maxFileSize: maxFileSize}
}

// MaxFileSize returns the configured document size ceiling.
func (v *Validator) MaxFileSize() int64 {
	return v.maxFileSize
}

// ValidateClientID checks a client identifier.
func (v *Validator) ValidateClientID(clientID string) error {
	if clientID == "" {
		return brokererrors.NewValidationError("client_id", "client_id is required")
	}
	if len(clientID) > maxClientIDLen {
		return brokererrors.NewValidationError("client_id", fmt.Sprintf("client_id exceeds %d characters", maxClientIDLen))
	}
	if !clientIDPattern.MatchString(clientID) {
		return brokererrors.NewValidationError("client_id", "client_id may only contain letters, digits, underscore, and hyphen")
	}
	return nil
}

// ValidateUsername checks a username.
func (v *Validator) ValidateUsername(username string) error {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return brokererrors.NewValidationError("user", fmt.Sprintf("username must be %d-%d characters", minUsernameLen, maxUsernameLen))
	}
	if !usernamePattern.MatchString(username) {
		return brokererrors.NewValidationError("user", "username may only contain letters, digits, dot, underscore, and hyphen")
	}
	return nil
}

// ValidateJobID checks a client-supplied job identifier. The id names the
// spool file, so the charset must leave no room for path separators or
// traversal sequences.
func (v *Validator) ValidateJobID(jobID string) error {
	if jobID == "" {
		return brokererrors.NewValidationError("job_id", "job_id is required")
	}
	if len(jobID) > maxJobIDLen {
		return brokererrors.NewValidationError("job_id", fmt.Sprintf("job_id exceeds %d characters", maxJobIDLen))
	}
	if !jobIDPattern.MatchString(jobID) {
		return brokererrors.NewValidationError("job_id", "job_id may only contain letters, digits, underscore, and hyphen")
	}
	return nil
}

// SanitizeDocumentName strips any path components and reduces the name to
// the allowed character set. Traversal attempts are rejected outright.
func (v *Validator) SanitizeDocumentName(name string) (string, error) {
	if name == "" {
		return "", brokererrors.NewValidationError("document_name", "document_name is required")
	}
	if strings.Contains(name, "..") {
		return "", brokererrors.NewValidationError("document_name", "document_name must not contain path traversal")
	}

	// Take the final path element regardless of separator convention.
	base := name
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}

	var b strings.Builder
	for _, r := range base {
		if documentNameAllowed(r) {
			b.WriteRune(r)
		}
	}
	sanitized := strings.TrimSpace(b.String())

	if sanitized == "" {
		return "", brokererrors.NewValidationError("document_name", "document_name has no valid characters")
	}
	if len(sanitized) > maxDocumentNameLen {
		return "", brokererrors.NewValidationError("document_name", fmt.Sprintf("document_name exceeds %d characters", maxDocumentNameLen))
	}
	return sanitized, nil
}

// ValidateFileFormat normalizes and checks a document format.
func (v *Validator) ValidateFileFormat(format string) (models.FileFormat, error) {
	f := models.FileFormat(strings.ToLower(strings.TrimSpace(format)))
	if !f.Valid() {
		return "", brokererrors.NewValidationError("file_format", "file_format must be one of: pdf, ps, postscript")
	}
	return f, nil
}

// ValidateFileSize checks the decoded document size.
func (v *Validator) ValidateFileSize(size int64) error {
	if size <= 0 {
		return brokererrors.NewValidationError("file_content", "document is empty")
	}
	if size > v.maxFileSize {
		return brokererrors.NewValidationError("file_content", fmt.Sprintf("document exceeds maximum size of %d bytes", v.maxFileSize))
	}
	return nil
}

// ValidatePriority checks a queue priority, applying the default when
// absent.
func (v *Validator) ValidatePriority(priority int) (int, error) {
	if priority == 0 {
		return models.DefaultPriority, nil
	}
	if priority < models.MinPriority || priority > models.MaxPriority {
		return 0, brokererrors.NewValidationError("priority", fmt.Sprintf("priority must be between %d and %d", models.MinPriority, models.MaxPriority))
	}
	return priority, nil
}

// applyParameters validates print options and writes them onto the job,
// filling defaults for absent fields.
func (v *Validator) applyParameters(job *models.PrintJob, p protocol.JobParameters) error {
	job.PageSize = models.PageSizeA4
	if p.PageSize != "" {
		job.PageSize = models.PageSize(p.PageSize)
		if !job.PageSize.Valid() {
			return brokererrors.NewValidationError("page_size", "page_size must be one of: A4, A3, A5, Letter, Legal")
		}
	}

	job.Orientation = models.OrientationPortrait
	if p.Orientation != "" {
		job.Orientation = models.Orientation(strings.ToLower(p.Orientation))
		if !job.Orientation.Valid() {
			return brokererrors.NewValidationError("orientation", "orientation must be portrait or landscape")
		}
	}

	job.Margins = models.DefaultMargins()
	if p.Margins != nil {
		if p.Margins.Top < 0 || p.Margins.Bottom < 0 || p.Margins.Left < 0 || p.Margins.Right < 0 {
			return brokererrors.NewValidationError("margins", "margins must be non-negative")
		}
		job.Margins = *p.Margins
	}

	job.Copies = models.DefaultCopies
	if p.Copies != 0 {
		if p.Copies < 1 {
			return brokererrors.NewValidationError("copies", "copies must be at least 1")
		}
		job.Copies = p.Copies
	}

	job.Color = true
	if p.Color != nil {
		job.Color = *p.Color
	}
	job.Duplex = p.Duplex

	job.Quality = models.QualityNormal
	if p.Quality != "" {
		job.Quality = models.Quality(strings.ToLower(p.Quality))
		if !job.Quality.Valid() {
			return brokererrors.NewValidationError("quality", "quality must be one of: draft, normal, high")
		}
	}
	return nil
}

// ValidatePrintJob runs the full gauntlet over a print_job payload and
// returns a normalized job ready for persistence. contentSize is the
// decoded document length; file path and timestamps are set by the caller.
func (v *Validator) ValidatePrintJob(p *protocol.PrintJobPayload, contentSize int64) (*models.PrintJob, error) {
	if err := v.ValidateJobID(p.JobID); err != nil {
		return nil, err
	}
	if err := v.ValidateClientID(p.ClientID); err != nil {
		return nil, err
	}
	if err := v.ValidateUsername(p.User); err != nil {
		return nil, err
	}

	format, err := v.ValidateFileFormat(p.FileFormat)
	if err != nil {
		return nil, err
	}
	if err := v.ValidateFileSize(contentSize); err != nil {
		return nil, err
	}

	docName, err := v.SanitizeDocumentName(p.Metadata.DocumentName)
	if err != nil {
		return nil, err
	}

	priority, err := v.ValidatePriority(p.Priority)
	if err != nil {
		return nil, err
	}

	if p.Metadata.PageCount < 0 {
		return nil, brokererrors.NewValidationError("page_count", "page_count must be non-negative")
	}

	job := &models.PrintJob{
		JobID:         p.JobID,
		ClientID:      p.ClientID,
		UserName:      p.User,
		DocumentName:  docName,
		FileFormat:    format,
		FileSizeBytes: contentSize,
		PageCount:     p.Metadata.PageCount,
		Application:   p.Metadata.Application,
		Status:        models.JobStatusPending,
		Priority:      priority,
		MaxRetries:    models.DefaultMaxRetries,
	}
	if err := v.applyParameters(job, p.Parameters); err != nil {
		return nil, err
	}
	return job, nil
}
