package models

import (
	"time"
)

// JobStatus represents the lifecycle state of a print job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusPrinting  JobStatus = "printing"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Valid returns true if the status is a known lifecycle state.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusPrinting, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions are possible.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s JobStatus) String() string {
	return string(s)
}

// FileFormat identifies a supported document format.
type FileFormat string

const (
	FileFormatPDF        FileFormat = "pdf"
	FileFormatPS         FileFormat = "ps"
	FileFormatPostScript FileFormat = "postscript"
)

// Valid returns true if the format is printable by the broker.
func (f FileFormat) Valid() bool {
	switch f {
	case FileFormatPDF, FileFormatPS, FileFormatPostScript:
		return true
	default:
		return false
	}
}

// Extension returns the spool file extension for the format.
func (f FileFormat) Extension() string {
	if f == FileFormatPostScript {
		return "ps"
	}
	return string(f)
}

// Orientation represents page orientation.
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// Valid returns true if the orientation is known.
func (o Orientation) Valid() bool {
	return o == OrientationPortrait || o == OrientationLandscape
}

// Quality represents print quality.
type Quality string

const (
	QualityDraft  Quality = "draft"
	QualityNormal Quality = "normal"
	QualityHigh   Quality = "high"
)

// Valid returns true if the quality level is known.
func (q Quality) Valid() bool {
	switch q {
	case QualityDraft, QualityNormal, QualityHigh:
		return true
	default:
		return false
	}
}

// PageSize represents a named paper size.
type PageSize string

const (
	PageSizeA4     PageSize = "A4"
	PageSizeA3     PageSize = "A3"
	PageSizeA5     PageSize = "A5"
	PageSizeLetter PageSize = "Letter"
	PageSizeLegal  PageSize = "Legal"
)

// Valid returns true if the page size is known.
func (p PageSize) Valid() bool {
	_, ok := pageDimensions[p]
	return ok
}

// Dimensions returns the page width and height in millimeters.
func (p PageSize) Dimensions() (width, height float64) {
	d := pageDimensions[p]
	return d[0], d[1]
}

var pageDimensions = map[PageSize][2]float64{
	PageSizeA4:     {210, 297},
	PageSizeA3:     {297, 420},
	PageSizeA5:     {148, 210},
	PageSizeLetter: {215.9, 279.4},
	PageSizeLegal:  {215.9, 355.6},
}

// Priority and retry bounds.
const (
	MinPriority     = 1
	MaxPriority     = 10
	DefaultPriority = 5

	DefaultCopies     = 1
	DefaultMaxRetries = 3
	DefaultMarginMM   = 10.0
)

// Margins holds page margins in millimeters.
type Margins struct {
	Top    float64 `json:"top" db:"margin_top"`
	Bottom float64 `json:"bottom" db:"margin_bottom"`
	Left   float64 `json:"left" db:"margin_left"`
	Right  float64 `json:"right" db:"margin_right"`
}

// DefaultMargins returns the standard 10mm margins.
func DefaultMargins() Margins {
	return Margins{Top: DefaultMarginMM, Bottom: DefaultMarginMM, Left: DefaultMarginMM, Right: DefaultMarginMM}
}

// PrintJob represents a spooled print job. job_id is client-supplied and
// unique across the broker's lifetime.
type PrintJob struct {
	JobID            string      `json:"job_id" db:"job_id"`
	ClientID         string      `json:"client_id" db:"client_id"`
	UserName         string      `json:"user_name" db:"user_name"`
	DocumentName     string      `json:"document_name" db:"document_name"`
	FileFormat       FileFormat  `json:"file_format" db:"file_format"`
	FileSizeBytes    int64       `json:"file_size_bytes" db:"file_size_bytes"`
	FilePath         string      `json:"file_path,omitempty" db:"file_path"`
	PageSize         PageSize    `json:"page_size" db:"page_size"`
	Orientation      Orientation `json:"orientation" db:"orientation"`
	Copies           int         `json:"copies" db:"copies"`
	Color            bool        `json:"color" db:"color"`
	Duplex           bool        `json:"duplex" db:"duplex"`
	Quality          Quality     `json:"quality" db:"quality"`
	Margins          Margins     `json:"margins"`
	PageCount        int         `json:"page_count" db:"page_count"`
	Application      string      `json:"application,omitempty" db:"application"`
	Status           JobStatus   `json:"status" db:"status"`
	Priority         int         `json:"priority" db:"priority"`
	QueuePosition    *int        `json:"queue_position,omitempty" db:"queue_position"`
	ErrorMessage     *string     `json:"error_message,omitempty" db:"error_message"`
	RetryCount       int         `json:"retry_count" db:"retry_count"`
	MaxRetries       int         `json:"max_retries" db:"max_retries"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	StartedAt        *time.Time  `json:"started_at,omitempty" db:"started_at"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
	ProcessingTimeMS *int64      `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
}

// Cancellable returns true if the job may still be cancelled.
func (j *PrintJob) Cancellable() bool {
	return j.Status == JobStatusPending
}

// JobPatch is a partial update applied to a stored job. Nil fields are
// left untouched.
type JobPatch struct {
	Status           *JobStatus
	Priority         *int
	QueuePosition    *int
	ErrorMessage     *string
	RetryCount       *int
	FilePath         *string
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ProcessingTimeMS *int64
}
