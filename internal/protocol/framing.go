package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxMessageSize caps the declared frame length. Document payloads
// ride inside the JSON as base64, so the ceiling sits well above the
// 100 MiB document limit.
const DefaultMaxMessageSize = 200 << 20

// Framing failures. The connection handler maps all of these, and any
// underlying read error, to a FRAMING_ERROR response.
var (
	ErrMessageTooLarge = errors.New("declared message length exceeds maximum")
	ErrEmptyFrame      = errors.New("declared message length is zero")
	ErrTruncatedFrame  = errors.New("connection closed mid-frame")
)

// Codec reads and writes length-prefixed JSON envelopes: a 4-byte
// big-endian length followed by exactly that many bytes of UTF-8 JSON.
type Codec struct {
	// MaxMessageSize bounds the declared length of incoming frames.
	MaxMessageSize uint32
}

// NewCodec returns a codec with the default size ceiling.
func NewCodec() *Codec {
	return &Codec{MaxMessageSize: DefaultMaxMessageSize}
}

// Read consumes one frame from r and decodes the envelope. It loops until
// the full declared length is consumed, so chunked delivery is fine.
func (c *Codec) Read(r io.Reader) (*Message, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read frame header: %w", ErrTruncatedFrame)
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length == 0 {
		return nil, ErrEmptyFrame
	}
	if max := c.max(); length > max {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, length, max)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read frame body: %w", ErrTruncatedFrame)
		}
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &msg, nil
}

// Write encodes the envelope and writes the complete frame in a single
// Write call so concurrent writers never interleave frames.
func (c *Codec) Write(w io.Writer, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if max := c.max(); uint64(len(body)) > uint64(max) {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(body), max)
	}

	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(body)))
	copy(frame[4:], body)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (c *Codec) max() uint32 {
	if c.MaxMessageSize == 0 {
		return DefaultMaxMessageSize
	}
	return c.MaxMessageSize
}
