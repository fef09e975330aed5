package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"classroom-backend/internal/logger"
	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
)

type presentationRepository interface {
	ListByEmail(ctx context.Context, email string) ([]*models.Presentation, error)
}

type PresentationHandler struct {
	runner generationRunner
	repo   presentationRepository
	log    *logger.Logger
}

func NewPresentationHandler(runner generationRunner, repo presentationRepository, log *logger.Logger) *PresentationHandler {
	return &PresentationHandler{runner: runner, repo: repo, log: log.With("handler", "presentation")}
}

func (h *PresentationHandler) Create(w http.ResponseWriter, r *http.Request) {
	email, ok := requireOwner(w, r, chi.URLParam(r, "email"))
	if !ok {
		return
	}

	var req models.GeneratePresentationRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	out := h.runner.Run(r.Context(), &models.GenerationRequest{
		Kind:  models.KindPresentation,
		Owner: email,
		Parameters: map[string]string{
			pipeline.ParamTopic:       req.Topic,
			pipeline.ParamTone:        req.Tone,
			pipeline.ParamPages:       strconv.Itoa(req.Pages),
			pipeline.ParamDescription: req.Description,
		},
	})
	if !out.Succeeded() {
		writePipelineFailure(w, r, h.log, out)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":      "Presentation created successfully",
		"id":           out.DocumentID,
		"presentation": out.Content,
	})
}

// List returns the caller's presentations, newest first.
func (h *PresentationHandler) List(w http.ResponseWriter, r *http.Request) {
	email, ok := requireOwner(w, r, chi.URLParam(r, "email"))
	if !ok {
		return
	}

	items, err := h.repo.ListByEmail(r.Context(), email)
	if err != nil {
		h.log.Error("list presentations", "email", email, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch presentations", r))
		return
	}
	if items == nil {
		items = []*models.Presentation{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"presentations": items})
}
