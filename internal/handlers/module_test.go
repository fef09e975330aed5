package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
	"classroom-backend/internal/services"
)

type stubModuleRepo struct {
	module   *models.CourseModule
	progress []models.ChapterProgress
	started  bool
	ended    bool
}

func (s *stubModuleRepo) ListByEmail(_ context.Context, _ string) ([]*models.CourseModule, error) {
	return nil, nil
}

func (s *stubModuleRepo) GetForOwner(_ context.Context, id uuid.UUID, email string) (*models.CourseModule, error) {
	if s.module == nil || s.module.ID != id || s.module.Email != email {
		return nil, pgx.ErrNoRows
	}
	return s.module, nil
}

func (s *stubModuleRepo) StartCourse(ctx context.Context, id uuid.UUID, email string, at time.Time) (*models.CourseModule, error) {
	m, err := s.GetForOwner(ctx, id, email)
	if err != nil {
		return nil, err
	}
	s.started = true
	if m.CourseStartedAt == nil {
		m.CourseStartedAt = &at
	}
	return m, nil
}

func (s *stubModuleRepo) SaveChapterProgress(ctx context.Context, id uuid.UUID, email string, p models.ChapterProgress) (*models.CourseModule, error) {
	m, err := s.GetForOwner(ctx, id, email)
	if err != nil {
		return nil, err
	}
	s.progress = append(s.progress, p)
	m.Progress = append(m.Progress, p)
	return m, nil
}

func (s *stubModuleRepo) EndCourse(ctx context.Context, id uuid.UUID, email string, at time.Time) (*models.CourseModule, error) {
	m, err := s.GetForOwner(ctx, id, email)
	if err != nil {
		return nil, err
	}
	s.ended = true
	m.CourseEndAt = &at
	return m, nil
}

type stubReferences struct {
	text string
	err  error
	url  string
}

func (s *stubReferences) ReferenceMaterial(_ context.Context, url string) (string, error) {
	s.url = url
	return s.text, s.err
}

func newModuleHandler(runner *stubRunner, repo *stubModuleRepo, refs *stubReferences) *ModuleHandler {
	h := NewModuleHandler(runner, repo, refs, testLogger())
	h.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func TestModuleHandler_CreateWithReference(t *testing.T) {
	module := &models.ModuleContent{Chapters: []models.Chapter{{Title: "Basics", Content: "..."}}}
	runner := &stubRunner{out: succeeded(module, "mod-1")}
	refs := &stubReferences{text: "transcript words"}
	h := newModuleHandler(runner, &stubModuleRepo{}, refs)

	body := map[string]string{"name": "Intro to Go", "referenceUrl": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}
	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(t, http.MethodPost, "/module", body, callerEmail, nil))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	out := decodeBody(t, rr)
	assert.Equal(t, "Module created successfully", out["message"])
	assert.Equal(t, "mod-1", out["id"])
	assert.Equal(t, "transcript words", runner.lastReq.Param(pipeline.ParamReference))
	assert.Equal(t, "Intro to Go", runner.lastReq.Param(pipeline.ParamName))
	assert.Equal(t, callerEmail, runner.lastReq.Owner)
}

func TestModuleHandler_CreateRejectsNonVideoReference(t *testing.T) {
	runner := &stubRunner{}
	refs := &stubReferences{err: &services.ValidationError{Fields: map[string]string{"referenceUrl": "must be a YouTube video link"}}}
	h := newModuleHandler(runner, &stubModuleRepo{}, refs)

	body := map[string]string{"name": "Go", "referenceUrl": "https://example.com/article"}
	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(t, http.MethodPost, "/module", body, callerEmail, nil))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, errorBody(t, rr).Fields, "referenceUrl")
	assert.Zero(t, runner.calls)
}

func TestModuleHandler_CreateWithoutTranscript(t *testing.T) {
	runner := &stubRunner{}
	refs := &stubReferences{err: errors.New("no subtitles")}
	h := newModuleHandler(runner, &stubModuleRepo{}, refs)

	body := map[string]string{"name": "Go", "referenceUrl": "https://youtu.be/dQw4w9WgXcQ"}
	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(t, http.MethodPost, "/module", body, callerEmail, nil))

	require.Equal(t, http.StatusCreated, rr.Code)
	_, hasRef := runner.lastReq.Parameters[pipeline.ParamReference]
	assert.False(t, hasRef)
}

func TestModuleHandler_CreateForAnotherEmail(t *testing.T) {
	runner := &stubRunner{}
	h := newModuleHandler(runner, &stubModuleRepo{}, &stubReferences{})

	body := map[string]string{"name": "Go", "email": "someone@else.edu"}
	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(t, http.MethodPost, "/module", body, callerEmail, nil))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Zero(t, runner.calls)
}

func TestModuleHandler_CourseLifecycle(t *testing.T) {
	module := &models.CourseModule{ID: uuid.New(), Email: callerEmail, Name: "Go", ChapterCount: 2}
	repo := &stubModuleRepo{module: module}
	h := newModuleHandler(&stubRunner{}, repo, &stubReferences{})
	params := func(extra ...string) map[string]string {
		p := map[string]string{"id": module.ID.String(), "email": callerEmail}
		if len(extra) == 2 {
			p[extra[0]] = extra[1]
		}
		return p
	}

	rr := httptest.NewRecorder()
	h.Certificate(rr, newRequest(t, http.MethodGet, "/certificate", nil, callerEmail, params()))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.Start(rr, newRequest(t, http.MethodPatch, "/specificModule", nil, callerEmail, params()))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, repo.started)

	rr = httptest.NewRecorder()
	h.Progress(rr, newRequest(t, http.MethodPatch, "/moduleProgress", map[string]int{"score": 3}, callerEmail, params("index", "1")))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, repo.progress, 1)
	assert.Equal(t, 1, repo.progress[0].ChapterIndex)
	assert.JSONEq(t, `{"score":3}`, string(repo.progress[0].Submission))

	rr = httptest.NewRecorder()
	h.End(rr, newRequest(t, http.MethodPatch, "/moduleEnd", nil, callerEmail, params()))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.Certificate(rr, newRequest(t, http.MethodGet, "/certificate", nil, callerEmail, params()))
	require.Equal(t, http.StatusOK, rr.Code)
	cert := decodeBody(t, rr)
	assert.Equal(t, "Go", cert["name"])
	assert.EqualValues(t, 1, cert["chapters_done"])
}

func TestModuleHandler_ProgressIndexMustBeAChapter(t *testing.T) {
	module := &models.CourseModule{ID: uuid.New(), Email: callerEmail, ChapterCount: 2}
	repo := &stubModuleRepo{module: module}
	h := newModuleHandler(&stubRunner{}, repo, &stubReferences{})

	for _, index := range []string{"2", "-1", "first"} {
		rr := httptest.NewRecorder()
		p := map[string]string{"id": module.ID.String(), "email": callerEmail, "index": index}
		h.Progress(rr, newRequest(t, http.MethodPatch, "/moduleProgress", nil, callerEmail, p))
		assert.Equal(t, http.StatusBadRequest, rr.Code, "index %s", index)
	}
	assert.Empty(t, repo.progress)
}

func TestModuleHandler_OtherAccountIsForbidden(t *testing.T) {
	module := &models.CourseModule{ID: uuid.New(), Email: callerEmail}
	h := newModuleHandler(&stubRunner{}, &stubModuleRepo{module: module}, &stubReferences{})

	rr := httptest.NewRecorder()
	p := map[string]string{"id": module.ID.String(), "email": callerEmail}
	h.Get(rr, newRequest(t, http.MethodGet, "/specificModule", nil, "student@school.edu", p))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
