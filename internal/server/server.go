// Package server implements the broker's wire surface: the TLS listener
// and the per-connection request pipeline that authenticates, rate
// limits, validates, and admits print jobs.
package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Bidon15/printspool/internal/config"
	"github.com/Bidon15/printspool/internal/metrics"
)

// Server owns the wire listener and the handler it feeds.
type Server struct {
	cfg     config.ServerConfig
	handler *Handler
	logger  *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a wire server around handler.
func New(cfg config.ServerConfig, handler *Handler, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, handler: handler, logger: logger}
}

// TLSConfig builds the listener's TLS configuration from the security
// settings. TLS 1.2 is the floor; a configured CA bundle turns on mutual
// TLS.
func TLSConfig(sec config.SecurityConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(sec.CertFile, sec.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load server certificate: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}

	if sec.CAFile != "" {
		pem, err := os.ReadFile(sec.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("CA bundle %s contains no certificates", sec.CAFile)
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return tlsCfg, nil
}

// Listen binds the configured address. When tlsCfg is nil the listener is
// plaintext TCP, which is for development only.
func (s *Server) Listen(tlsCfg *tls.Config) error {
	addr := s.cfg.Addr()

	var (
		ln  net.Listener
		err error
	)
	if tlsCfg != nil {
		ln, err = tls.Listen("tcp", addr, tlsCfg)
	} else {
		s.logger.Warn("TLS disabled, wire listener is plaintext; do not run this in production")
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	s.listener = ln
	s.logger.Info("wire listener bound",
		slog.String("addr", addr),
		slog.Bool("tls", tlsCfg != nil),
		slog.Bool("mtls", tlsCfg != nil && tlsCfg.ClientAuth == tls.RequireAndVerifyClientCert),
	)
	return nil
}

// Serve accepts connections until Shutdown. Each connection gets its own
// goroutine; a failed TLS handshake surfaces as a read error inside the
// handler and never disturbs the accept loop.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server has no listener; call Listen first")
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if s.cfg.ConnectionTimeout > 0 {
		// One deadline for the whole request/response cycle: the wire
		// protocol is strictly one frame each way.
		_ = conn.SetDeadline(time.Now().Add(s.cfg.ConnectionTimeout))
	}

	metrics.ConnectionsTotal.Inc()
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	s.handler.Handle(ctx, conn)
}

// Shutdown stops accepting and waits for in-flight handlers up to the
// configured shutdown timeout.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.listener != nil {
		_ = s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-done:
		s.logger.Info("wire server drained")
	case <-time.After(timeout):
		s.logger.Warn("wire server shutdown timed out with connections in flight")
	}
}
