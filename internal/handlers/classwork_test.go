package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
)

type stubClassworkRepo struct {
	item      *models.Classwork
	listed    []models.ContentKind
	listClass string
	deleted   bool
}

func (s *stubClassworkRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Classwork, error) {
	if s.item == nil || s.item.ID != id {
		return nil, pgx.ErrNoRows
	}
	return s.item, nil
}

func (s *stubClassworkRepo) ListByClass(_ context.Context, classID string, kinds []models.ContentKind) ([]*models.Classwork, error) {
	s.listClass = classID
	s.listed = kinds
	return nil, nil
}

func (s *stubClassworkRepo) Delete(_ context.Context, _ uuid.UUID) error {
	s.deleted = true
	return nil
}

func quizBody() map[string]interface{} {
	return map[string]interface{}{
		"classId":        "abc123",
		"subject":        "Math",
		"quizNo":         4,
		"date":           "2024-05-01",
		"time":           "10:00",
		"duration":       "30",
		"timeUnit":       "minutes",
		"totalQuestions": 5,
		"level":          "easy",
		"topic":          "Algebra",
	}
}

func TestClassworkHandler_CreateQuiz(t *testing.T) {
	quiz := &models.QuizContent{QuizNo: "4", ClassID: "abc123", Topic: "Algebra"}
	runner := &stubRunner{out: succeeded(quiz, "cw-1")}
	h := NewClassworkHandler(runner, &stubClassworkRepo{}, testLogger())

	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(t, http.MethodPost, "/classwork", quizBody(), callerEmail, nil))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, "Classwork Created", body["message"])
	assert.Equal(t, "cw-1", body["id"])
	assert.NotNil(t, body["classwork"])

	req := runner.lastReq
	assert.Equal(t, models.KindQuiz, req.Kind)
	assert.Equal(t, callerEmail, req.Owner)
	assert.Equal(t, "30 minutes", req.Param(pipeline.ParamExamDuration))
	assert.Equal(t, "4", req.Param(pipeline.ParamQuizNo))
	assert.Equal(t, "5", req.Param(pipeline.ParamTotalQuestions))
	assert.Equal(t, "abc123", req.Param(pipeline.ParamClassID))
}

func TestClassworkHandler_CreateAssignmentWhenNoQuizNo(t *testing.T) {
	runner := &stubRunner{}
	h := NewClassworkHandler(runner, &stubClassworkRepo{}, testLogger())

	body := quizBody()
	delete(body, "quizNo")
	body["assignmentNo"] = "2"

	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(t, http.MethodPost, "/classwork", body, callerEmail, nil))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, models.KindAssignment, runner.lastReq.Kind)
	assert.Equal(t, "2", runner.lastReq.Param(pipeline.ParamAssignmentNo))
	assert.Empty(t, runner.lastReq.Param(pipeline.ParamExamDuration))
}

func TestClassworkHandler_CreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		patch func(map[string]interface{})
		field string
	}{
		{"missing topic", func(b map[string]interface{}) { delete(b, "topic") }, "topic"},
		{"missing class", func(b map[string]interface{}) { delete(b, "classId") }, "classId"},
		{"no number", func(b map[string]interface{}) { delete(b, "quizNo") }, "quizNo"},
		{"zero questions", func(b map[string]interface{}) { b["totalQuestions"] = 0 }, "totalQuestions"},
		{"missing date", func(b map[string]interface{}) { delete(b, "date") }, "date"},
		{"missing time", func(b map[string]interface{}) { delete(b, "time") }, "time"},
		{"missing level", func(b map[string]interface{}) { delete(b, "level") }, "level"},
		{"quiz without duration", func(b map[string]interface{}) { delete(b, "duration") }, "duration"},
		{"quiz without time unit", func(b map[string]interface{}) { delete(b, "timeUnit") }, "timeUnit"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := &stubRunner{}
			h := NewClassworkHandler(runner, &stubClassworkRepo{}, testLogger())
			body := quizBody()
			tc.patch(body)

			rr := httptest.NewRecorder()
			h.Create(rr, newRequest(t, http.MethodPost, "/classwork", body, callerEmail, nil))

			require.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, errorBody(t, rr).Fields, tc.field)
			assert.Zero(t, runner.calls)
		})
	}
}

func TestClassworkHandler_AssignmentNeedsNoDuration(t *testing.T) {
	runner := &stubRunner{}
	h := NewClassworkHandler(runner, &stubClassworkRepo{}, testLogger())

	body := quizBody()
	delete(body, "quizNo")
	delete(body, "duration")
	delete(body, "timeUnit")
	body["assignmentNo"] = "2"

	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(t, http.MethodPost, "/classwork", body, callerEmail, nil))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, models.KindAssignment, runner.lastReq.Kind)
}

func TestClassworkHandler_CreateTrimsClassID(t *testing.T) {
	runner := &stubRunner{}
	h := NewClassworkHandler(runner, &stubClassworkRepo{}, testLogger())

	body := quizBody()
	body["classId"] = "  abc123 "

	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(t, http.MethodPost, "/classwork", body, callerEmail, nil))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "abc123", runner.lastReq.Param(pipeline.ParamClassID))
}

func TestClassworkHandler_CreateMalformedBody(t *testing.T) {
	h := NewClassworkHandler(&stubRunner{}, &stubClassworkRepo{}, testLogger())
	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(t, http.MethodPost, "/classwork", "{not json", callerEmail, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestClassworkHandler_CreatePipelineFailure(t *testing.T) {
	runner := &stubRunner{out: failed(pipeline.CodeValidationFailure, pipeline.ReasonClassIDMismatch)}
	h := NewClassworkHandler(runner, &stubClassworkRepo{}, testLogger())

	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(t, http.MethodPost, "/classwork", quizBody(), callerEmail, nil))

	require.Equal(t, http.StatusBadGateway, rr.Code)
	apiErr := errorBody(t, rr)
	assert.Equal(t, "GENERATION_INVALID", apiErr.Code)
	assert.Equal(t, genericFailureMessage, apiErr.Message)
}

func TestClassworkHandler_ListRequiresClassID(t *testing.T) {
	repo := &stubClassworkRepo{}
	h := NewClassworkHandler(&stubRunner{}, repo, testLogger())

	rr := httptest.NewRecorder()
	h.List(rr, newRequest(t, http.MethodGet, "/classwork", nil, callerEmail, nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, errorBody(t, rr).Fields, "classId")
}

func TestClassworkHandler_ListKindFilters(t *testing.T) {
	tests := []struct {
		query string
		kinds []models.ContentKind
	}{
		{"?classId=abc", []models.ContentKind{models.KindQuiz, models.KindAssignment}},
		{"?classId=abc&quizNo=1", []models.ContentKind{models.KindQuiz}},
		{"?classId=abc&assignmentNo=true", []models.ContentKind{models.KindAssignment}},
		{"?classId=abc&quizNo=false", []models.ContentKind{models.KindQuiz, models.KindAssignment}},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			repo := &stubClassworkRepo{}
			h := NewClassworkHandler(&stubRunner{}, repo, testLogger())

			rr := httptest.NewRecorder()
			h.List(rr, newRequest(t, http.MethodGet, "/classwork"+tc.query, nil, callerEmail, nil))

			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "abc", repo.listClass)
			assert.Equal(t, tc.kinds, repo.listed)
			assert.Equal(t, []interface{}{}, decodeBody(t, rr)["classwork"])
		})
	}
}

func TestClassworkHandler_GetNotFound(t *testing.T) {
	h := NewClassworkHandler(&stubRunner{}, &stubClassworkRepo{}, testLogger())
	id := uuid.New().String()

	rr := httptest.NewRecorder()
	h.Get(rr, newRequest(t, http.MethodGet, "/classwork/"+id, nil, callerEmail, map[string]string{"id": id}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestClassworkHandler_DeleteOnlyByCreator(t *testing.T) {
	item := &models.Classwork{ID: uuid.New(), CreatedBy: callerEmail}
	repo := &stubClassworkRepo{item: item}
	h := NewClassworkHandler(&stubRunner{}, repo, testLogger())
	params := map[string]string{"id": item.ID.String()}

	rr := httptest.NewRecorder()
	h.Delete(rr, newRequest(t, http.MethodDelete, "/classwork/x", nil, "other@school.edu", params))
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, repo.deleted)

	rr = httptest.NewRecorder()
	h.Delete(rr, newRequest(t, http.MethodDelete, "/classwork/x", nil, callerEmail, params))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, repo.deleted)
}
