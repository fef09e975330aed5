package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroom-backend/internal/logger"
	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
	"classroom-backend/internal/repository"
)

type fakeQueue struct {
	mu       sync.Mutex
	pending  chan *models.Job
	enqueued []*models.Job
	locked   map[string]bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{pending: make(chan *models.Job, 8), locked: map[string]bool{}}
}

func (q *fakeQueue) Enqueue(_ context.Context, job *models.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, job)
	return nil
}

func (q *fakeQueue) Pop(ctx context.Context, timeout time.Duration) (*models.Job, error) {
	select {
	case job := <-q.pending:
		return job, nil
	case <-ctx.Done():
		return nil, ErrQueueEmpty
	case <-time.After(timeout):
		return nil, ErrQueueEmpty
	}
}

func (q *fakeQueue) Lock(_ context.Context, job *models.Job) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := lockKey(job)
	if q.locked[key] {
		return false, nil
	}
	q.locked[key] = true
	return true, nil
}

func (q *fakeQueue) Unlock(_ context.Context, job *models.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.locked, lockKey(job))
	return nil
}

func (q *fakeQueue) requeued() []*models.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*models.Job(nil), q.enqueued...)
}

type stubGenerator struct {
	reply string
	err   error
}

func (g stubGenerator) Generate(context.Context, string, pipeline.GenerationOptions) (string, error) {
	return g.reply, g.err
}

type stubStore struct{ id string }

func (s stubStore) Save(context.Context, *models.GenerationRequest, models.GeneratedContent) (string, error) {
	return s.id, nil
}

const slidesReply = "```json\n[{\"title\":\"Intro\",\"content\":[\"Hot rock\"]}]\n```"

func newRunner(t *testing.T, gen stubGenerator, resultID string) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(gen, nil, stubStore{id: resultID}, pipeline.DefaultConfig())
	require.NoError(t, err)
	return p
}

type jobCall struct {
	op     string
	status string
	code   string
	retry  int
}

type fakeJobs struct {
	mu     sync.Mutex
	calls  []jobCall
	stages []string
	result uuid.UUID
}

func (f *fakeJobs) record(c jobCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeJobs) UpdateStatus(_ context.Context, _ uuid.UUID, status string) error {
	f.record(jobCall{op: "status", status: status})
	return nil
}

func (f *fakeJobs) UpdateStage(_ context.Context, _ uuid.UUID, stage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages = append(f.stages, stage)
	return nil
}

func (f *fakeJobs) Complete(_ context.Context, _ uuid.UUID, resultID uuid.UUID) error {
	f.result = resultID
	f.record(jobCall{op: "complete"})
	return nil
}

func (f *fakeJobs) UpdateError(_ context.Context, _ uuid.UUID, code, _ string, retryCount int) error {
	f.record(jobCall{op: "error", code: code, retry: retryCount})
	return nil
}

func (f *fakeJobs) lastStatus() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].op == "status" {
			return f.calls[i].status
		}
	}
	return ""
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []models.WSMessage
	to   []string
}

func (f *fakePublisher) Publish(_ context.Context, email string, msg models.WSMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	f.to = append(f.to, email)
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Type)
	}
	return out
}

func newJob(t *testing.T) *models.Job {
	t.Helper()
	payload, err := json.Marshal(models.GenerationRequest{
		Kind:       models.KindPresentation,
		Parameters: map[string]string{"topic": "Volcanoes", "tone": "fun", "pages": "3"},
	})
	require.NoError(t, err)
	return &models.Job{
		ID:          uuid.New(),
		OwnerEmail:  "teacher@school.edu",
		Kind:        models.KindPresentation,
		RequestJSON: payload,
		MaxRetries:  3,
	}
}

func newTestPool(q *fakeQueue, r runner, jobs *fakeJobs, pub *fakePublisher) *Pool {
	p := NewPool(q, r, jobs, pub, logger.Nop(), 1)
	p.backoff = func(int) time.Duration { return time.Millisecond }
	return p
}

func TestPool_ProcessSuccess(t *testing.T) {
	q, jobs, pub := newFakeQueue(), &fakeJobs{}, &fakePublisher{}
	resultID := uuid.New()
	p := newTestPool(q, newRunner(t, stubGenerator{reply: slidesReply}, resultID.String()), jobs, pub)

	job := newJob(t)
	p.process(context.Background(), job)

	assert.Equal(t, resultID, jobs.result)
	assert.Equal(t, []string{"prompting", "generating", "sanitizing", "parsing", "persisting", "done"}, jobs.stages)
	assert.Equal(t, []string{
		"status_update", "status_update", "status_update", "status_update", "status_update", "completed",
	}, pub.types())
	for _, to := range pub.to {
		assert.Equal(t, job.OwnerEmail, to)
	}

	first := pub.sent[0].Payload.(models.StatusUpdate)
	assert.Equal(t, job.ID, first.JobID)
	assert.Equal(t, pipeline.StatePrompting.Step(), first.Step)
	assert.Equal(t, "prompting", first.Stage)

	done := pub.sent[len(pub.sent)-1].Payload.(models.CompletedEvent)
	assert.Equal(t, resultID.String(), done.ResultID)
	assert.Equal(t, models.KindPresentation, done.ResultType)
	assert.Empty(t, q.requeued())
}

func TestPool_RetryableFailureIsRequeued(t *testing.T) {
	q, jobs, pub := newFakeQueue(), &fakeJobs{}, &fakePublisher{}
	p := newTestPool(q, newRunner(t, stubGenerator{reply: "Sorry, I can't help with that."}, ""), jobs, pub)

	job := newJob(t)
	p.process(context.Background(), job)
	p.Stop()

	assert.Equal(t, repository.JobPending, jobs.lastStatus())
	require.Len(t, q.requeued(), 1)
	assert.Equal(t, 1, q.requeued()[0].RetryCount)

	last := pub.sent[len(pub.sent)-1]
	require.Equal(t, "error", last.Type)
	event := last.Payload.(models.ErrorEvent)
	assert.True(t, event.WillRetry)
	assert.Equal(t, string(pipeline.CodeValidationFailure), event.ErrorCode)
	assert.Equal(t, failureMessage, event.ErrorMessage)
}

func TestPool_FailsAfterMaxRetries(t *testing.T) {
	q, jobs, pub := newFakeQueue(), &fakeJobs{}, &fakePublisher{}
	p := newTestPool(q, newRunner(t, stubGenerator{reply: "nope"}, ""), jobs, pub)

	job := newJob(t)
	job.RetryCount = 2
	p.process(context.Background(), job)
	p.Stop()

	assert.Equal(t, repository.JobFailed, jobs.lastStatus())
	assert.Empty(t, q.requeued())
	event := pub.sent[len(pub.sent)-1].Payload.(models.ErrorEvent)
	assert.False(t, event.WillRetry)
}

func TestPool_InvalidParametersAreNotRetried(t *testing.T) {
	q, jobs, pub := newFakeQueue(), &fakeJobs{}, &fakePublisher{}
	p := newTestPool(q, newRunner(t, stubGenerator{reply: slidesReply}, uuid.NewString()), jobs, pub)

	job := newJob(t)
	job.RequestJSON = []byte(`{"kind":"presentation","parameters":{"topic":"x"}}`)
	p.process(context.Background(), job)
	p.Stop()

	assert.Equal(t, repository.JobFailed, jobs.lastStatus())
	assert.Empty(t, q.requeued())
	event := pub.sent[len(pub.sent)-1].Payload.(models.ErrorEvent)
	assert.Equal(t, string(pipeline.CodeInvalidParameters), event.ErrorCode)
	assert.Equal(t, "missing-parameter:tone", event.ErrorMessage)
}

func TestPool_MalformedJobPayload(t *testing.T) {
	q, jobs, pub := newFakeQueue(), &fakeJobs{}, &fakePublisher{}
	p := newTestPool(q, newRunner(t, stubGenerator{}, ""), jobs, pub)

	job := newJob(t)
	job.RequestJSON = []byte(`{not json`)
	p.process(context.Background(), job)

	assert.Equal(t, repository.JobFailed, jobs.lastStatus())
	assert.Equal(t, []string{"error"}, pub.types())
}

func TestPool_StartConsumesQueue(t *testing.T) {
	q, jobs, pub := newFakeQueue(), &fakeJobs{}, &fakePublisher{}
	p := newTestPool(q, newRunner(t, stubGenerator{reply: slidesReply}, uuid.NewString()), jobs, pub)

	p.Start(context.Background())
	q.pending <- newJob(t)

	require.Eventually(t, func() bool {
		types := pub.types()
		return len(types) > 0 && types[len(types)-1] == "completed"
	}, 2*time.Second, 10*time.Millisecond)
	p.Stop()

	assert.Empty(t, q.locked)
}

func TestPool_UnparsableResultIDFailsWithoutRetry(t *testing.T) {
	q, jobs, pub := newFakeQueue(), &fakeJobs{}, &fakePublisher{}
	p := newTestPool(q, newRunner(t, stubGenerator{reply: slidesReply}, "doc-1"), jobs, pub)

	job := newJob(t)
	p.process(context.Background(), job)
	p.Stop()

	assert.Equal(t, repository.JobFailed, jobs.lastStatus())
	assert.Equal(t, uuid.Nil, jobs.result)
	for _, c := range jobs.calls {
		assert.NotEqual(t, "complete", c.op)
	}
	assert.Empty(t, q.requeued())

	event := pub.sent[len(pub.sent)-1].Payload.(models.ErrorEvent)
	assert.Equal(t, string(pipeline.CodePersistenceFailure), event.ErrorCode)
	assert.False(t, event.WillRetry)
}

func TestPool_RetryReleasesTheLockItTook(t *testing.T) {
	q, jobs, pub := newFakeQueue(), &fakeJobs{}, &fakePublisher{}
	p := newTestPool(q, newRunner(t, stubGenerator{reply: "not json"}, ""), jobs, pub)

	p.Start(context.Background())
	q.pending <- newJob(t)

	require.Eventually(t, func() bool { return len(q.requeued()) == 1 }, 2*time.Second, 10*time.Millisecond)
	p.Stop()

	assert.Equal(t, 1, q.requeued()[0].RetryCount)
	assert.Empty(t, q.locked)
}
