// Package protocol implements the broker wire protocol: length-prefixed
// JSON envelopes exchanged over a TLS connection.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Bidon15/printspool/internal/models"
)

// Version is the wire protocol version carried in every envelope.
const Version = "1.0"

// Message types.
const (
	TypePrintJob       = "print_job"
	TypeStatusRequest  = "status_request"
	TypeResponse       = "response"
	TypeAuthentication = "authentication"
	TypeHeartbeat      = "heartbeat"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Message is the wire envelope. Data is message-type specific and left
// raw until the handler knows what to decode it into.
type Message struct {
	Version     string            `json:"version"`
	MessageType string            `json:"message_type"`
	Timestamp   time.Time         `json:"timestamp"`
	Headers     map[string]string `json:"headers,omitempty"`
	Data        json.RawMessage   `json:"data,omitempty"`
}

// NewMessage builds an envelope of the given type around payload.
func NewMessage(messageType string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", messageType, err)
	}
	return &Message{
		Version:     Version,
		MessageType: messageType,
		Timestamp:   time.Now().UTC(),
		Data:        data,
	}, nil
}

// DecodeData unmarshals the message payload into v.
func (m *Message) DecodeData(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("message has no data payload")
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.MessageType, err)
	}
	return nil
}

// PrintJobPayload is the data section of a print_job message. Fields the
// broker normalizes (file_format, document_name) stay raw strings here.
type PrintJobPayload struct {
	JobID       string        `json:"job_id"`
	ClientID    string        `json:"client_id"`
	User        string        `json:"user"`
	FileFormat  string        `json:"file_format"`
	FileContent string        `json:"file_content"`
	Priority    int           `json:"priority,omitempty"`
	Parameters  JobParameters `json:"parameters"`
	Metadata    JobMetadata   `json:"metadata"`
}

// JobParameters carries print options. Pointer fields distinguish
// "absent, use default" from an explicit zero value.
type JobParameters struct {
	PageSize    string          `json:"page_size,omitempty"`
	Orientation string          `json:"orientation,omitempty"`
	Margins     *models.Margins `json:"margins,omitempty"`
	Copies      int             `json:"copies,omitempty"`
	Color       *bool           `json:"color,omitempty"`
	Duplex      bool            `json:"duplex,omitempty"`
	Quality     string          `json:"quality,omitempty"`
}

// JobMetadata carries document metadata.
type JobMetadata struct {
	DocumentName  string `json:"document_name"`
	PageCount     int    `json:"page_count,omitempty"`
	Application   string `json:"application,omitempty"`
	FileSizeBytes int64  `json:"file_size_bytes,omitempty"`
}

// HeartbeatPayload is the data section of a heartbeat message.
type HeartbeatPayload struct {
	ClientID string `json:"client_id"`
}

// ServerResponse is the data section of a response message acknowledging
// a request or reporting an error. ClientID rides on heartbeat replies;
// Stats carries the broker snapshot on status replies.
type ServerResponse struct {
	Status            string    `json:"status"`
	Message           string    `json:"message"`
	JobID             string    `json:"job_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	QueuePosition     *int      `json:"queue_position,omitempty"`
	ErrorCode         string    `json:"error_code,omitempty"`
	Field             string    `json:"field,omitempty"`
	RetryAfterSeconds *float64  `json:"retry_after_seconds,omitempty"`
	ClientID          string    `json:"client_id,omitempty"`
	Stats             any       `json:"stats,omitempty"`
}

// NewSuccessResponse builds a success acknowledgment.
func NewSuccessResponse(message, jobID string) *ServerResponse {
	return &ServerResponse{
		Status:    StatusSuccess,
		Message:   message,
		JobID:     jobID,
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorResponse builds an error acknowledgment with a wire error code.
func NewErrorResponse(errorCode, message, jobID string) *ServerResponse {
	return &ServerResponse{
		Status:    StatusError,
		Message:   message,
		JobID:     jobID,
		Timestamp: time.Now().UTC(),
		ErrorCode: errorCode,
	}
}
