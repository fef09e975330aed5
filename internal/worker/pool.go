package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"classroom-backend/internal/logger"
	"classroom-backend/internal/models"
	"classroom-backend/internal/pipeline"
	"classroom-backend/internal/repository"
)

const (
	popTimeout     = 5 * time.Second
	failureMessage = "Something went wrong. Please try again."
)

var stepNames = map[pipeline.State]string{
	pipeline.StateExtracting: "Reading the uploaded papers",
	pipeline.StatePrompting:  "Preparing the request",
	pipeline.StateGenerating: "Generating content",
	pipeline.StateSanitizing: "Cleaning up the response",
	pipeline.StateParsing:    "Checking the result",
	pipeline.StatePersisting: "Saving",
}

type jobQueue interface {
	Enqueue(ctx context.Context, job *models.Job) error
	Pop(ctx context.Context, timeout time.Duration) (*models.Job, error)
	Lock(ctx context.Context, job *models.Job) (bool, error)
	Unlock(ctx context.Context, job *models.Job) error
}

type runner interface {
	Run(ctx context.Context, req *models.GenerationRequest, opts ...pipeline.RunOption) *pipeline.Outcome
}

type jobRepository interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateStage(ctx context.Context, id uuid.UUID, stage string) error
	Complete(ctx context.Context, id uuid.UUID, resultID uuid.UUID) error
	UpdateError(ctx context.Context, id uuid.UUID, code, errMsg string, retryCount int) error
}

type publisher interface {
	Publish(ctx context.Context, email string, msg models.WSMessage)
}

// Pool runs queued generation jobs through the pipeline and reports progress
// to the job owner.
type Pool struct {
	queue       jobQueue
	runner      runner
	jobs        jobRepository
	updates     publisher
	log         *logger.Logger
	workerCount int
	backoff     func(attempt int) time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewPool(queue jobQueue, r runner, jobs jobRepository, updates publisher, log *logger.Logger, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		queue:       queue,
		runner:      r,
		jobs:        jobs,
		updates:     updates,
		log:         log.With("component", "worker"),
		workerCount: workerCount,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt)) * time.Second
		},
	}
}

func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.log.Info("worker pool started", "workers", p.workerCount)
}

// Stop cancels in-flight runs and waits for every worker to return.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		if ctx.Err() != nil {
			p.log.Debug("worker shutting down", "worker", id)
			return
		}

		job, err := p.queue.Pop(ctx, popTimeout)
		if err != nil {
			if !errors.Is(err, ErrQueueEmpty) && ctx.Err() == nil {
				p.log.Warn("pop job", "worker", id, "error", err)
				time.Sleep(time.Second)
			}
			continue
		}

		locked, err := p.queue.Lock(ctx, job)
		if err != nil || !locked {
			continue
		}
		// process bumps RetryCount on failure; release the key that was taken.
		held := *job
		p.log.Info("processing job", "worker", id, "job_id", job.ID, "kind", job.Kind, "attempt", job.RetryCount+1)
		p.process(ctx, job)
		if err := p.queue.Unlock(context.Background(), &held); err != nil {
			p.log.Warn("release job lock", "job_id", job.ID, "error", err)
		}
	}
}

// process runs one delivery of a job to completion, failure or requeue.
func (p *Pool) process(ctx context.Context, job *models.Job) {
	var req models.GenerationRequest
	if err := json.Unmarshal(job.RequestJSON, &req); err != nil {
		p.log.Error("decode job request", "job_id", job.ID, "error", err)
		p.fail(ctx, job, &pipeline.Error{Code: pipeline.CodeInvalidParameters, Reason: "malformed-job", Err: err})
		return
	}
	req.Owner = job.OwnerEmail

	if err := p.jobs.UpdateStatus(ctx, job.ID, repository.JobProcessing); err != nil {
		p.log.Warn("mark job processing", "job_id", job.ID, "error", err)
	}

	observer := func(from, to pipeline.State) {
		if err := p.jobs.UpdateStage(ctx, job.ID, string(to)); err != nil {
			p.log.Warn("update job stage", "job_id", job.ID, "stage", to, "error", err)
		}
		if to.IsTerminal() {
			return
		}
		p.updates.Publish(ctx, job.OwnerEmail, models.WSMessage{
			Type: "status_update",
			Payload: models.StatusUpdate{
				JobID:    job.ID,
				Step:     to.Step(),
				StepName: stepNames[to],
				Stage:    string(to),
			},
		})
	}

	out := p.runner.Run(ctx, &req, pipeline.WithObserver(observer))
	if !out.Succeeded() {
		p.log.Warn("job run failed",
			"job_id", job.ID,
			"kind", job.Kind,
			"reason", out.Reason(),
			"state_trace", out.Trace,
			"error", out.Err,
		)
		p.fail(ctx, job, out.Err)
		return
	}
	p.succeed(ctx, job, out)
}

func (p *Pool) succeed(ctx context.Context, job *models.Job, out *pipeline.Outcome) {
	resultID, err := uuid.Parse(out.DocumentID)
	if err != nil {
		// The content is already stored; running again would store it twice.
		p.log.Error("result id is not a uuid", "job_id", job.ID, "result_id", out.DocumentID)
		p.settle(ctx, job, &pipeline.Error{Code: pipeline.CodePersistenceFailure, Reason: "invalid-result-id", Err: err}, false)
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := p.jobs.Complete(ctx, job.ID, resultID); err != nil {
		p.log.Error("complete job", "job_id", job.ID, "error", err)
	}

	p.updates.Publish(ctx, job.OwnerEmail, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			ResultID:   out.DocumentID,
			ResultType: out.Kind,
		},
	})
	p.log.Info("job completed", "job_id", job.ID, "result_id", out.DocumentID)
}

// fail requeues retryable failures with exponential backoff until MaxRetries
// is reached, then marks the job failed.
func (p *Pool) fail(ctx context.Context, job *models.Job, perr *pipeline.Error) {
	if perr == nil {
		perr = &pipeline.Error{Code: pipeline.CodePersistenceFailure, Reason: "no-result"}
	}
	shuttingDown := ctx.Err() != nil
	willRetry := perr.Retryable() && job.RetryCount+1 < job.MaxRetries && !shuttingDown
	p.settle(ctx, job, perr, willRetry)
}

// settle records one failed attempt, then requeues the job or marks it failed.
func (p *Pool) settle(ctx context.Context, job *models.Job, perr *pipeline.Error, willRetry bool) {
	stop := ctx.Done()
	ctx = context.WithoutCancel(ctx)
	message := failureMessage
	if perr.Code == pipeline.CodeInvalidParameters {
		message = perr.Reason
	}

	job.RetryCount++
	if err := p.jobs.UpdateError(ctx, job.ID, string(perr.Code), message, job.RetryCount); err != nil {
		p.log.Warn("record job error", "job_id", job.ID, "error", err)
	}

	p.updates.Publish(ctx, job.OwnerEmail, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    string(perr.Code),
			ErrorMessage: message,
			WillRetry:    willRetry,
		},
	})

	if !willRetry {
		if err := p.jobs.UpdateStatus(ctx, job.ID, repository.JobFailed); err != nil {
			p.log.Error("mark job failed", "job_id", job.ID, "error", err)
		}
		p.log.Warn("job failed permanently", "job_id", job.ID, "code", perr.Code, "attempts", job.RetryCount)
		return
	}

	if err := p.jobs.UpdateStatus(ctx, job.ID, repository.JobPending); err != nil {
		p.log.Warn("mark job pending", "job_id", job.ID, "error", err)
	}
	delay := p.backoff(job.RetryCount)
	p.log.Info("job requeued", "job_id", job.ID, "attempt", job.RetryCount, "backoff", delay)

	p.wg.Add(1)
	go func(retry models.Job) {
		defer p.wg.Done()
		select {
		case <-stop:
			return
		case <-time.After(delay):
		}
		if err := p.queue.Enqueue(context.Background(), &retry); err != nil {
			p.log.Error("requeue job", "job_id", retry.ID, "error", err)
		}
	}(*job)
}
