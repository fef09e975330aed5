package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"classroom-backend/internal/logger"
	"classroom-backend/internal/middleware"
	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
	"classroom-backend/internal/services"
)

type moduleRepository interface {
	ListByEmail(ctx context.Context, email string) ([]*models.CourseModule, error)
	GetForOwner(ctx context.Context, id uuid.UUID, email string) (*models.CourseModule, error)
	StartCourse(ctx context.Context, id uuid.UUID, email string, at time.Time) (*models.CourseModule, error)
	SaveChapterProgress(ctx context.Context, id uuid.UUID, email string, p models.ChapterProgress) (*models.CourseModule, error)
	EndCourse(ctx context.Context, id uuid.UUID, email string, at time.Time) (*models.CourseModule, error)
}

type referenceSource interface {
	ReferenceMaterial(ctx context.Context, url string) (string, error)
}

type ModuleHandler struct {
	runner     generationRunner
	repo       moduleRepository
	references referenceSource
	log        *logger.Logger
	now        func() time.Time
}

func NewModuleHandler(runner generationRunner, repo moduleRepository, references referenceSource, log *logger.Logger) *ModuleHandler {
	return &ModuleHandler{
		runner:     runner,
		repo:       repo,
		references: references,
		log:        log.With("handler", "module"),
		now:        time.Now,
	}
}

// Create generates a course module, optionally grounded on a video transcript.
func (h *ModuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateModuleRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	email := middleware.GetEmail(r.Context())
	if req.Email != "" && middleware.NormalizeEmail(req.Email) != email {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return
	}

	params := map[string]string{pipeline.ParamName: req.Name}
	if req.ReferenceURL != "" && h.references != nil {
		reference, err := h.references.ReferenceMaterial(r.Context(), req.ReferenceURL)
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			handleServiceError(w, r, verr)
			return
		case err != nil:
			// The module is still generated, just without the transcript.
			h.log.Warn("reference transcript unavailable", "url", req.ReferenceURL, "error", err)
		default:
			params[pipeline.ParamReference] = reference
		}
	}

	out := h.runner.Run(r.Context(), &models.GenerationRequest{
		Kind:       models.KindModule,
		Owner:      email,
		Parameters: params,
	})
	if !out.Succeeded() {
		writePipelineFailure(w, r, h.log, out)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Module created successfully",
		"id":      out.DocumentID,
		"module":  out.Content,
	})
}

func (h *ModuleHandler) List(w http.ResponseWriter, r *http.Request) {
	email, ok := requireOwner(w, r, chi.URLParam(r, "email"))
	if !ok {
		return
	}

	modules, err := h.repo.ListByEmail(r.Context(), email)
	if err != nil {
		h.log.Error("list modules", "email", email, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch modules", r))
		return
	}
	if modules == nil {
		modules = []*models.CourseModule{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"modules": modules})
}

func (h *ModuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, email, ok := h.moduleRoute(w, r)
	if !ok {
		return
	}
	module, err := h.repo.GetForOwner(r.Context(), id, email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, module)
}

// Start records when the learner opened the course; repeat calls keep the first time.
func (h *ModuleHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, email, ok := h.moduleRoute(w, r)
	if !ok {
		return
	}
	module, err := h.repo.StartCourse(r.Context(), id, email, h.now().UTC())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Course started", "module": module})
}

// Progress stores the submission for one chapter and marks it finished.
func (h *ModuleHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, email, ok := h.moduleRoute(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"index": "must be a chapter index"}, r))
		return
	}

	var submission json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	module, err := h.repo.GetForOwner(r.Context(), id, email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if index >= module.ChapterCount {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"index": "must be a chapter index"}, r))
		return
	}

	module, err = h.repo.SaveChapterProgress(r.Context(), id, email, models.ChapterProgress{
		ChapterIndex: index,
		Submission:   submission,
		ChapterEndAt: h.now().UTC(),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Progress saved", "module": module})
}

func (h *ModuleHandler) End(w http.ResponseWriter, r *http.Request) {
	id, email, ok := h.moduleRoute(w, r)
	if !ok {
		return
	}
	module, err := h.repo.EndCourse(r.Context(), id, email, h.now().UTC())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Course completed", "module": module})
}

// Certificate is only issued once the course has ended.
func (h *ModuleHandler) Certificate(w http.ResponseWriter, r *http.Request) {
	id, email, ok := h.moduleRoute(w, r)
	if !ok {
		return
	}
	module, err := h.repo.GetForOwner(r.Context(), id, email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if module.CourseEndAt == nil {
		handleServiceError(w, r, &services.NotFoundError{Message: "Course not completed yet"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"module_id":         module.ID,
		"name":              module.Name,
		"email":             module.Email,
		"chapters":          module.ChapterCount,
		"chapters_done":     len(module.Progress),
		"course_started_at": module.CourseStartedAt,
		"course_end_at":     module.CourseEndAt,
	})
}

func (h *ModuleHandler) moduleRoute(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	email, ok := requireOwner(w, r, chi.URLParam(r, "email"))
	if !ok {
		return uuid.Nil, "", false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid module ID", r))
		return uuid.Nil, "", false
	}
	return id, email, true
}
