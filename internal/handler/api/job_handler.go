package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Bidon15/printspool/internal/middleware"
	"github.com/Bidon15/printspool/internal/models"
	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
	"github.com/Bidon15/printspool/internal/pkg/response"
	"github.com/Bidon15/printspool/internal/repository"
	"github.com/Bidon15/printspool/internal/service"
)

// JobHandler handles job inspection and cancellation.
type JobHandler struct {
	Jobs service.JobService
}

// List handles GET /api/jobs. Plain users only see their own jobs;
// admins and viewers may filter freely.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	q := r.URL.Query()

	filter := repository.JobFilter{
		ClientID: q.Get("client_id"),
		UserName: q.Get("user_name"),
		Limit:    50,
	}
	if s := q.Get("status"); s != "" {
		status := models.JobStatus(s)
		if !status.Valid() {
			response.Error(w, brokererrors.NewValidationError("status", "unknown job status"))
			return
		}
		filter.Status = status
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			response.Error(w, brokererrors.NewValidationError("limit", "limit must be between 1 and 500"))
			return
		}
		filter.Limit = n
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			response.Error(w, brokererrors.NewValidationError("offset", "offset must be non-negative"))
			return
		}
		filter.Offset = n
	}

	if !isReader(claims) {
		filter.UserName = claims.Username
	}

	jobs, err := h.Jobs.List(r.Context(), filter)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, jobs)
}

// Get handles GET /api/jobs/{jobID}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	jobID := chi.URLParam(r, "jobID")

	job, err := h.Jobs.Get(r.Context(), jobID)
	if err != nil {
		response.Error(w, err)
		return
	}

	if !isReader(claims) && job.UserName != claims.Username {
		response.Error(w, brokererrors.ErrForbidden)
		return
	}
	response.OK(w, job)
}

// Cancel handles POST /api/jobs/{jobID}/cancel.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.Jobs.Cancel(r.Context(), jobID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, job)
}
