package api

import (
	"net/http"
	"time"

	"github.com/Bidon15/printspool/internal/models"
	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
	"github.com/Bidon15/printspool/internal/pkg/response"
	"github.com/Bidon15/printspool/internal/server"
	"github.com/Bidon15/printspool/internal/service"
)

// StatsHandler serves usage statistics and the live broker snapshot.
type StatsHandler struct {
	Stats service.StatsService
	Wire  *server.Handler
}

type summaryResponse struct {
	Totals *models.StatsSummary  `json:"totals"`
	Live   server.StatusSnapshot `json:"live"`
}

// Summary handles GET /api/stats: aggregated store totals plus the live
// in-process view of the wire server.
func (h *StatsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Stats.Summary(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, summaryResponse{
		Totals: totals,
		Live:   h.Wire.Snapshot(r.Context()),
	})
}

// Clients handles GET /api/stats/clients.
func (h *StatsHandler) Clients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Stats.Clients(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, clients)
}

// Daily handles GET /api/stats/daily. Defaults to the trailing 30 days.
func (h *StatsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			response.Error(w, brokererrors.NewValidationError("from", "expected YYYY-MM-DD"))
			return
		}
		from = t
	}
	if s := q.Get("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			response.Error(w, brokererrors.NewValidationError("to", "expected YYYY-MM-DD"))
			return
		}
		to = t
	}
	if to.Before(from) {
		response.Error(w, brokererrors.NewValidationError("to", "to must not precede from"))
		return
	}

	daily, err := h.Stats.Daily(r.Context(), from, to)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, daily)
}
