package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"classroom-backend/internal/logger"
	"classroom-backend/internal/middleware"
	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
)

// generationRunner runs one request through the content pipeline.
type generationRunner interface {
	Run(ctx context.Context, req *models.GenerationRequest, opts ...pipeline.RunOption) *pipeline.Outcome
}

type classworkRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Classwork, error)
	ListByClass(ctx context.Context, classID string, kinds []models.ContentKind) ([]*models.Classwork, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ClassworkHandler struct {
	runner generationRunner
	repo   classworkRepository
	log    *logger.Logger
}

func NewClassworkHandler(runner generationRunner, repo classworkRepository, log *logger.Logger) *ClassworkHandler {
	return &ClassworkHandler{runner: runner, repo: repo, log: log.With("handler", "classwork")}
}

// Create generates a quiz when quizNo is present, otherwise an assignment.
func (h *ClassworkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateClassworkRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	params := map[string]string{
		pipeline.ParamSubject:        req.Subject,
		pipeline.ParamTopic:          req.Topic,
		pipeline.ParamTotalQuestions: strconv.Itoa(req.TotalQuestions),
		pipeline.ParamClassID:        strings.TrimSpace(req.ClassID),
		pipeline.ParamDate:           strings.TrimSpace(req.Date),
		pipeline.ParamTime:           strings.TrimSpace(req.Time),
		pipeline.ParamLevel:          strings.TrimSpace(req.Level.String()),
	}

	kind := models.KindAssignment
	if strings.TrimSpace(req.QuizNo.String()) != "" {
		kind = models.KindQuiz
		params[pipeline.ParamQuizNo] = req.QuizNo.String()
		params[pipeline.ParamExamDuration] = examDuration(req.Duration.String(), req.TimeUnit)
	} else {
		params[pipeline.ParamAssignmentNo] = req.AssignmentNo.String()
	}

	out := h.runner.Run(r.Context(), &models.GenerationRequest{
		Kind:       kind,
		Owner:      middleware.GetEmail(r.Context()),
		Parameters: params,
	})
	if !out.Succeeded() {
		writePipelineFailure(w, r, h.log, out)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Classwork Created",
		"id":        out.DocumentID,
		"classwork": out.Content,
	})
}

// List returns a class's classwork. quizNo and assignmentNo act as kind filters.
func (h *ClassworkHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	classID := strings.TrimSpace(q.Get("classId"))
	if classID == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"classId": "is required"}, r))
		return
	}

	var kinds []models.ContentKind
	if queryFlag(q.Get("quizNo")) {
		kinds = append(kinds, models.KindQuiz)
	}
	if queryFlag(q.Get("assignmentNo")) {
		kinds = append(kinds, models.KindAssignment)
	}
	if len(kinds) == 0 {
		kinds = []models.ContentKind{models.KindQuiz, models.KindAssignment}
	}

	items, err := h.repo.ListByClass(r.Context(), classID, kinds)
	if err != nil {
		h.log.Error("list classwork", "class_id", classID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch classwork", r))
		return
	}
	if items == nil {
		items = []*models.Classwork{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"classwork": items})
}

func (h *ClassworkHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid classwork ID", r))
		return
	}

	item, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *ClassworkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid classwork ID", r))
		return
	}

	item, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if item.CreatedBy != middleware.GetEmail(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Classwork deleted"})
}

func examDuration(duration, unit string) string {
	return strings.TrimSpace(strings.TrimSpace(duration) + " " + strings.TrimSpace(unit))
}

// queryFlag treats any value other than empty, "0" or "false" as set.
func queryFlag(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v != "" && v != "0" && v != "false"
}
