package server

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/Bidon15/printspool/internal/auth"
	"github.com/Bidon15/printspool/internal/metrics"
	"github.com/Bidon15/printspool/internal/models"
	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
	"github.com/Bidon15/printspool/internal/printer"
	"github.com/Bidon15/printspool/internal/protocol"
	"github.com/Bidon15/printspool/internal/queue"
	"github.com/Bidon15/printspool/internal/ratelimit"
	"github.com/Bidon15/printspool/internal/repository"
	"github.com/Bidon15/printspool/internal/service"
	"github.com/Bidon15/printspool/internal/validation"
)

// Deps collects everything the connection pipeline needs. All fields are
// required except DispatcherRunning, which defaults to "not running".
type Deps struct {
	Codec     *protocol.Codec
	Tokens    *auth.Manager
	Limiter   *ratelimit.Limiter
	Validator *validation.Validator
	Jobs      service.JobService
	JobRepo   repository.JobRepository
	Clients   repository.ClientRepository
	Queue     *queue.Queue
	Printers  *printer.Manager

	// DispatcherRunning reports worker liveness for status replies.
	DispatcherRunning func() bool
}

// Handler runs the request pipeline for one connection at a time: decode,
// authenticate, rate limit, validate, dispatch by message type, respond.
type Handler struct {
	deps      Deps
	counters  Counters
	startedAt time.Time
	logger    *slog.Logger
}

// NewHandler creates the connection handler.
func NewHandler(deps Deps, logger *slog.Logger) *Handler {
	if deps.DispatcherRunning == nil {
		deps.DispatcherRunning = func() bool { return false }
	}
	return &Handler{deps: deps, startedAt: time.Now(), logger: logger}
}

// Counters exposes the connection-scope counters for the admin surface.
func (h *Handler) Counters() *Counters {
	return &h.counters
}

// Handle serves exactly one request/response cycle on conn. It never
// panics: handler crashes are answered with SERVER_ERROR and logged.
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	h.counters.connectionOpened()
	defer h.counters.connectionClosed()

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("connection handler panic",
				slog.String("remote", conn.RemoteAddr().String()),
				slog.Any("panic", r),
			)
			h.respondError(conn, brokererrors.ErrServer, "")
		}
	}()

	msg, err := h.deps.Codec.Read(conn)
	if err != nil {
		// A client that connects and closes without a frame is routine;
		// anything else is a framing failure worth answering.
		if errors.Is(err, io.EOF) {
			return
		}
		h.logger.Warn("frame read failed",
			slog.String("remote", conn.RemoteAddr().String()),
			slog.String("error", err.Error()),
		)
		h.respondError(conn, brokererrors.ErrFraming, "")
		return
	}

	claims, err := h.authenticate(msg)
	if err != nil {
		h.counters.authFailure()
		metrics.AuthFailures.Inc()
		h.respondError(conn, err, "")
		return
	}

	if ok, retryAfter := h.deps.Limiter.Allow(claims.ClientID); !ok {
		h.counters.rateLimited()
		metrics.RateLimited.Inc()
		h.logger.Info("request rate limited",
			slog.String("principal", claims.ClientID),
			slog.Duration("retry_after", retryAfter),
		)
		resp := h.errorResponse(brokererrors.ErrRateLimited, "")
		seconds := retryAfter.Seconds()
		resp.RetryAfterSeconds = &seconds
		h.respond(conn, resp)
		return
	}

	switch msg.MessageType {
	case protocol.TypePrintJob:
		h.handlePrintJob(ctx, conn, msg, claims)
	case protocol.TypeStatusRequest, "status":
		h.handleStatus(ctx, conn)
	case protocol.TypeHeartbeat, "ping":
		h.handleHeartbeat(ctx, conn, msg, claims)
	default:
		h.respondError(conn, brokererrors.ErrUnsupportedMessageType, "")
	}
}

// authenticate extracts and verifies the bearer token from the envelope
// headers. Every failure collapses to UNAUTHORIZED on the wire.
func (h *Handler) authenticate(msg *protocol.Message) (*auth.Claims, error) {
	const prefix = "Bearer "

	header := msg.Headers["Authorization"]
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return nil, brokererrors.ErrUnauthorized
	}

	claims, err := h.deps.Tokens.ValidateToken(header[len(prefix):])
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (h *Handler) handlePrintJob(ctx context.Context, conn net.Conn, msg *protocol.Message, claims *auth.Claims) {
	var payload protocol.PrintJobPayload
	if err := msg.DecodeData(&payload); err != nil {
		h.counters.validationError()
		metrics.ValidationErrors.Inc()
		h.respondError(conn, brokererrors.ErrValidation.WithMessage("Malformed print_job payload"), "")
		return
	}

	content, err := base64.StdEncoding.DecodeString(payload.FileContent)
	if err != nil {
		h.counters.validationError()
		metrics.ValidationErrors.Inc()
		h.respondError(conn, brokererrors.NewValidationError("file_content", "file_content is not valid base64"), payload.JobID)
		return
	}

	job, err := h.deps.Validator.ValidatePrintJob(&payload, int64(len(content)))
	if err != nil {
		h.counters.validationError()
		metrics.ValidationErrors.Inc()
		h.respondError(conn, err, payload.JobID)
		return
	}

	job, err = h.deps.Jobs.Submit(ctx, service.SubmitJobRequest{
		Job:      job,
		Content:  content,
		RemoteIP: remoteIP(conn),
	})
	if err != nil {
		h.respondError(conn, err, payload.JobID)
		return
	}

	h.counters.jobReceived()
	metrics.JobsReceived.Inc()
	metrics.QueueDepth.Set(float64(h.deps.Queue.Len()))
	h.logger.Info("job accepted",
		slog.String("job_id", job.JobID),
		slog.String("principal", claims.ClientID),
		slog.String("document", job.DocumentName),
		slog.Int("priority", job.Priority),
	)

	resp := protocol.NewSuccessResponse("Job accepted", job.JobID)
	resp.QueuePosition = job.QueuePosition
	h.respond(conn, resp)
}

// StatusSnapshot is the broker state served on status requests.
type StatusSnapshot struct {
	ServerTime        time.Time        `json:"server_time"`
	UptimeSeconds     int64            `json:"uptime_seconds"`
	QueueDepth        int              `json:"queue_depth"`
	DispatcherRunning bool             `json:"dispatcher_running"`
	Printer           printer.Status   `json:"printer"`
	Jobs              map[string]int64 `json:"jobs"`
	Counters          CounterSnapshot  `json:"counters"`
}

// Snapshot assembles the current broker status. Store failures degrade to
// partial counts rather than failing the whole request.
func (h *Handler) Snapshot(ctx context.Context) StatusSnapshot {
	snap := StatusSnapshot{
		ServerTime:        time.Now().UTC(),
		UptimeSeconds:     int64(time.Since(h.startedAt).Seconds()),
		QueueDepth:        h.deps.Queue.Len(),
		DispatcherRunning: h.deps.DispatcherRunning(),
		Jobs:              make(map[string]int64),
		Counters:          h.counters.Snapshot(),
	}

	if status, err := h.deps.Printers.Status(ctx); err == nil {
		snap.Printer = status
	} else {
		snap.Printer = printer.Status{State: printer.StateUnknown}
	}

	for _, status := range []models.JobStatus{
		models.JobStatusPending,
		models.JobStatusPrinting,
		models.JobStatusCompleted,
		models.JobStatusFailed,
		models.JobStatusCancelled,
	} {
		count, err := h.deps.JobRepo.CountByStatus(ctx, status)
		if err != nil {
			h.logger.Warn("status count failed",
				slog.String("status", status.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		snap.Jobs[status.String()] = count
	}
	return snap
}

func (h *Handler) handleStatus(ctx context.Context, conn net.Conn) {
	resp := protocol.NewSuccessResponse("Broker status", "")
	resp.Stats = h.Snapshot(ctx)
	h.respond(conn, resp)
}

func (h *Handler) handleHeartbeat(ctx context.Context, conn net.Conn, msg *protocol.Message, claims *auth.Claims) {
	// The token decides whose last_seen this is. A payload client_id is
	// accepted only when it matches the claim.
	clientID := claims.ClientID

	var payload protocol.HeartbeatPayload
	if err := msg.DecodeData(&payload); err == nil && payload.ClientID != "" && payload.ClientID != clientID {
		h.respondError(conn, brokererrors.ErrForbidden, "")
		return
	}

	ip := remoteIP(conn)
	if _, err := h.deps.Clients.Upsert(ctx, clientID, &ip, nil); err != nil {
		h.logger.Warn("heartbeat client upsert failed",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
	}

	resp := protocol.NewSuccessResponse("pong", "")
	resp.ClientID = clientID
	h.respond(conn, resp)
}

// respond writes one response frame. Write failures are logged and
// swallowed: the connection is closing either way.
func (h *Handler) respond(conn net.Conn, resp *protocol.ServerResponse) {
	msg, err := protocol.NewMessage(protocol.TypeResponse, resp)
	if err != nil {
		h.logger.Error("response encode failed", slog.String("error", err.Error()))
		return
	}
	if err := h.deps.Codec.Write(conn, msg); err != nil {
		h.logger.Debug("response write failed",
			slog.String("remote", conn.RemoteAddr().String()),
			slog.String("error", err.Error()),
		)
	}
}

func (h *Handler) respondError(conn net.Conn, err error, jobID string) {
	h.respond(conn, h.errorResponse(err, jobID))
}

// errorResponse maps an error onto the wire vocabulary. Auth failures of
// every flavor collapse to UNAUTHORIZED so token state is not leaked;
// FORBIDDEN stays distinct because the principal is already
// authenticated. Unclassified errors are hidden behind SERVER_ERROR.
func (h *Handler) errorResponse(err error, jobID string) *protocol.ServerResponse {
	be := brokererrors.AsBrokerError(err)

	code := be.Code
	if be.Category == brokererrors.CategoryAuth && be.Code != brokererrors.ErrForbidden.Code {
		code = brokererrors.ErrUnauthorized.Code
	}

	resp := protocol.NewErrorResponse(code, be.Message, jobID)
	if details, ok := be.Details.(map[string]string); ok {
		resp.Field = details["field"]
	}
	return resp
}

// remoteIP strips the port from the peer address.
func remoteIP(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
