package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/visagevault/internal/app"
	"github.com/kozaktomas/visagevault/internal/jobs"
	"github.com/rs/zerolog"
)

// JobsHandler handles scan start and job status endpoints.
type JobsHandler struct {
	app *app.App
	log zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(a *app.App, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{app: a, log: log}
}

// StartScan starts the scan named by {kind}. A scan of the same kind already
// running yields 409 with the running job.
func (h *JobsHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	kind, err := jobs.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.app.StartScan(kind)
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		respondJSON(w, http.StatusConflict, map[string]any{
			"error": err.Error(),
			"job":   job,
		})
		return
	}
	if err != nil {
		respondErr(w, err)
		return
	}
	h.log.Info().Str("kind", string(kind)).Str("job", job.ID).Msg("scan started")
	respondJSON(w, http.StatusAccepted, job)
}

// ActiveScan returns the running job of {kind}.
func (h *JobsHandler) ActiveScan(w http.ResponseWriter, r *http.Request) {
	kind, err := jobs.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	job := h.app.Jobs.Active(kind)
	if job == nil {
		respondError(w, http.StatusNotFound, "no "+kind.Label()+" running")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// List returns recent jobs, newest first.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.app.Jobs.List())
}

func (h *JobsHandler) lookup(w http.ResponseWriter, r *http.Request) *jobs.Job {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil
	}
	job := h.app.Jobs.Get(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}

// Get returns a job's status.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if job := h.lookup(w, r); job != nil {
		respondJSON(w, http.StatusOK, job)
	}
}

// Events streams a job's events over SSE until it finishes.
func (h *JobsHandler) Events(w http.ResponseWriter, r *http.Request) {
	if job := h.lookup(w, r); job != nil {
		streamSSEEvents(w, r, job, job.Snapshot())
	}
}

// Cancel cancels a running job.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}
