// Package wire is a client for the broker's length-prefixed JSON
// protocol, used by the submit, ping, and status commands.
package wire

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/Bidon15/printspool/internal/protocol"
)

// Config describes how to reach the wire listener.
type Config struct {
	Addr     string
	Token    string
	Timeout  time.Duration
	Insecure bool // plaintext TCP, development only

	// Mutual TLS material. CAFile verifies the server; CertFile and
	// KeyFile present a client identity when the broker demands one.
	CAFile   string
	CertFile string
	KeyFile  string
}

// Client holds a one-shot connection config. Each request dials a fresh
// connection, mirroring how printer clients talk to the broker.
type Client struct {
	cfg   Config
	codec *protocol.Codec
}

// NewClient creates a wire protocol client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, codec: protocol.NewCodec()}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: c.cfg.Timeout}

	if c.cfg.Insecure {
		return dialer.DialContext(ctx, "tcp", c.cfg.Addr)
	}

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if c.cfg.CAFile != "" {
		pem, err := os.ReadFile(c.cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", c.cfg.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	if c.cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.cfg.CertFile, c.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tls.DialWithDialer(dialer, "tcp", c.cfg.Addr, tlsCfg)
}

// Request sends one message and reads the broker's response.
func (c *Client) Request(ctx context.Context, messageType string, payload any) (*protocol.ServerResponse, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.Addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
	}

	msg, err := protocol.NewMessage(messageType, payload)
	if err != nil {
		return nil, err
	}
	msg.Headers = map[string]string{"Authorization": "Bearer " + c.cfg.Token}

	if err := c.codec.Write(conn, msg); err != nil {
		return nil, fmt.Errorf("send %s: %w", messageType, err)
	}

	reply, err := c.codec.Read(conn)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp protocol.ServerResponse
	if err := reply.DecodeData(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitJob sends a print_job message.
func (c *Client) SubmitJob(ctx context.Context, payload *protocol.PrintJobPayload) (*protocol.ServerResponse, error) {
	return c.Request(ctx, protocol.TypePrintJob, payload)
}

// Ping sends a heartbeat and returns the broker's acknowledgment.
func (c *Client) Ping(ctx context.Context, clientID string) (*protocol.ServerResponse, error) {
	return c.Request(ctx, protocol.TypeHeartbeat, protocol.HeartbeatPayload{ClientID: clientID})
}

// Status asks the broker for its status snapshot.
func (c *Client) Status(ctx context.Context) (*protocol.ServerResponse, error) {
	return c.Request(ctx, protocol.TypeStatusRequest, struct{}{})
}
