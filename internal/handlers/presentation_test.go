package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
)

type stubPresentationRepo struct {
	items []*models.Presentation
	asked string
}

func (s *stubPresentationRepo) ListByEmail(_ context.Context, email string) ([]*models.Presentation, error) {
	s.asked = email
	return s.items, nil
}

func TestPresentationHandler_Create(t *testing.T) {
	deck := &models.PresentationContent{Slides: []models.Slide{{Title: "Intro", Content: models.TextList{"Welcome"}}}}
	runner := &stubRunner{out: succeeded(deck, "pres-1")}
	h := NewPresentationHandler(runner, &stubPresentationRepo{}, testLogger())

	body := map[string]interface{}{"topic": "Photosynthesis", "tone": "friendly", "pages": 6, "description": "for grade 7"}
	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(t, http.MethodPost, "/presentation/"+callerEmail, body, callerEmail, map[string]string{"email": callerEmail}))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	out := decodeBody(t, rr)
	assert.Equal(t, "Presentation created successfully", out["message"])
	assert.Equal(t, "pres-1", out["id"])

	assert.Equal(t, models.KindPresentation, runner.lastReq.Kind)
	assert.Equal(t, "6", runner.lastReq.Param(pipeline.ParamPages))
	assert.Equal(t, "friendly", runner.lastReq.Param(pipeline.ParamTone))
}

func TestPresentationHandler_CreateForAnotherAccount(t *testing.T) {
	runner := &stubRunner{}
	h := NewPresentationHandler(runner, &stubPresentationRepo{}, testLogger())

	body := map[string]interface{}{"topic": "x", "tone": "y", "pages": 1}
	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(t, http.MethodPost, "/presentation/a@b.c", body, callerEmail, map[string]string{"email": "a@b.c"}))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Zero(t, runner.calls)
}

func TestPresentationHandler_CreateBlocked(t *testing.T) {
	h := NewPresentationHandler(&stubRunner{out: failed(pipeline.CodeUpstreamBlocked, "")}, &stubPresentationRepo{}, testLogger())

	body := map[string]interface{}{"topic": "x", "tone": "y", "pages": 1}
	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(t, http.MethodPost, "/presentation/x", body, callerEmail, map[string]string{"email": callerEmail}))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestPresentationHandler_List(t *testing.T) {
	repo := &stubPresentationRepo{items: []*models.Presentation{{Topic: "a"}, {Topic: "b"}}}
	h := NewPresentationHandler(&stubRunner{}, repo, testLogger())

	rr := httptest.NewRecorder()
	h.List(rr, newRequest(t, http.MethodGet, "/presentation/x", nil, callerEmail, map[string]string{"email": "TEACHER@school.edu"}))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, callerEmail, repo.asked)
	assert.Len(t, decodeBody(t, rr)["presentations"], 2)
}
