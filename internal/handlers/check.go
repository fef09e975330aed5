package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"classroom-backend/internal/logger"
	"classroom-backend/internal/middleware"
	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
	"classroom-backend/internal/services"
)

type checkedPaperRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.CheckedPaper, error)
	ListByChecker(ctx context.Context, email string) ([]*models.CheckedPaper, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type CheckHandler struct {
	runner generationRunner
	repo   checkedPaperRepository
	log    *logger.Logger
}

func NewCheckHandler(runner generationRunner, repo checkedPaperRepository, log *logger.Logger) *CheckHandler {
	return &CheckHandler{runner: runner, repo: repo, log: log.With("handler", "check")}
}

// Create grades a student's answer sheet against the question paper.
func (h *CheckHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CheckPaperRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	question, err := parseImageInput(models.InputQuestion, req.QuestionImg)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"questionImg": err.Error()}, r))
		return
	}
	answer, err := parseImageInput(models.InputAnswer, req.AnswerImg)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"answerImg": err.Error()}, r))
		return
	}

	out := h.runner.Run(r.Context(), &models.GenerationRequest{
		Kind:  models.KindGrading,
		Owner: middleware.GetEmail(r.Context()),
		Parameters: map[string]string{
			pipeline.ParamStudentName: req.StudentName,
			pipeline.ParamStudentID:   req.StudentID,
			pipeline.ParamSubject:     req.Subject,
		},
		Inputs: []models.RawInput{question, answer},
	})
	if !out.Succeeded() {
		writePipelineFailure(w, r, h.log, out)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Paper checked",
		"id":      out.DocumentID,
		"result":  out.Content,
	})
}

func (h *CheckHandler) List(w http.ResponseWriter, r *http.Request) {
	papers, err := h.repo.ListByChecker(r.Context(), middleware.GetEmail(r.Context()))
	if err != nil {
		h.log.Error("list checked papers", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch checked papers", r))
		return
	}
	if papers == nil {
		papers = []*models.CheckedPaper{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"papers": papers})
}

func (h *CheckHandler) Get(w http.ResponseWriter, r *http.Request) {
	paper, ok := h.ownedPaper(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

func (h *CheckHandler) Delete(w http.ResponseWriter, r *http.Request) {
	paper, ok := h.ownedPaper(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), paper.ID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Checked paper deleted"})
}

func (h *CheckHandler) ownedPaper(w http.ResponseWriter, r *http.Request) (*models.CheckedPaper, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid paper ID", r))
		return nil, false
	}

	paper, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}
	if paper.CheckedBy != middleware.GetEmail(r.Context()) {
		handleServiceError(w, r, &services.ForbiddenError{Message: "Access denied"})
		return nil, false
	}
	return paper, true
}

// parseImageInput accepts a data: URI, an http(s) URL or bare base64.
func parseImageInput(name, value string) (models.RawInput, error) {
	value = strings.TrimSpace(value)
	in := models.RawInput{Name: name}

	switch {
	case value == "":
		return in, fmt.Errorf("is required")

	case strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://"):
		in.URL = value
		return in, nil

	case strings.HasPrefix(value, "data:"):
		header, payload, found := strings.Cut(value, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return in, fmt.Errorf("must be a base64 data URI")
		}
		data, err := decodeBase64(payload)
		if err != nil {
			return in, fmt.Errorf("contains invalid base64")
		}
		in.Data = data
		in.MimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		return in, nil
	}

	data, err := decodeBase64(value)
	if err != nil {
		return in, fmt.Errorf("must be a URL, a data URI or base64 content")
	}
	in.Data = data
	in.MimeType = http.DetectContentType(data)
	return in, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
