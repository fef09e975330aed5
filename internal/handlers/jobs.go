package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"classroom-backend/internal/logger"
	"classroom-backend/internal/middleware"
	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
)

type jobStore interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

type jobQueue interface {
	Enqueue(ctx context.Context, j *models.Job) error
}

type JobHandler struct {
	jobs  jobStore
	queue jobQueue
	log   *logger.Logger
}

func NewJobHandler(jobs jobStore, queue jobQueue, log *logger.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, queue: queue, log: log.With("handler", "jobs")}
}

// Create queues a generation request for the worker pool. Progress is pushed
// over the websocket.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.GenerationJobRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	kind, ok := models.ParseContentKind(req.Kind)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"kind": "is not a known content kind"}, r))
		return
	}

	if fields := missingJobFields(kind, req.Parameters, req.Inputs); len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	email := middleware.GetEmail(r.Context())
	payload, err := json.Marshal(models.GenerationRequest{
		Kind:       kind,
		Owner:      email,
		Parameters: req.Parameters,
		Inputs:     req.Inputs,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to encode job", r))
		return
	}

	job := &models.Job{
		OwnerEmail:  email,
		Kind:        kind,
		RequestJSON: payload,
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		h.log.Error("create job", "kind", kind, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.log.Error("enqueue job", "job_id", job.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to queue job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"job_id": job.ID})
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid job ID", r))
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if job.OwnerEmail != middleware.GetEmail(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// missingJobFields reports what a queued job could never be built without.
// Grading texts come from OCR, so grading checks its two inputs instead.
func missingJobFields(kind models.ContentKind, params map[string]string, inputs []models.RawInput) map[string]string {
	fields := map[string]string{}
	if kind == models.KindGrading {
		request := models.GenerationRequest{Inputs: inputs}
		for _, name := range []string{models.InputQuestion, models.InputAnswer} {
			if _, ok := request.Input(name); !ok {
				fields["inputs."+name] = "is required"
			}
		}
		return fields
	}
	for _, name := range pipeline.RequiredParameters(kind) {
		if strings.TrimSpace(params[name]) == "" {
			fields["parameters."+name] = "is required"
		}
	}
	return fields
}
