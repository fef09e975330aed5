package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"classroom-backend/internal/models"
)

// Generator sends one prompt to the text-generation service.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error)
}

// Extractor turns an image or document into plain text.
type Extractor interface {
	Extract(ctx context.Context, input models.RawInput) (string, error)
}

// Store persists validated content and returns its document id.
type Store interface {
	Save(ctx context.Context, req *models.GenerationRequest, content models.GeneratedContent) (string, error)
}

type Config struct {
	Options           GenerationOptions
	GenerationTimeout time.Duration
	OCRTimeout        time.Duration
	PersistTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Options:           DefaultGenerationOptions(),
		GenerationTimeout: 90 * time.Second,
		OCRTimeout:        60 * time.Second,
		PersistTimeout:    10 * time.Second,
	}
}

// Outcome is the single value a run reports to its caller.
type Outcome struct {
	Kind       models.ContentKind
	State      State
	Trace      []State
	Content    models.GeneratedContent
	DocumentID string
	Err        *Error
}

func (o *Outcome) Succeeded() bool {
	return o != nil && o.Err == nil && o.State == StateDone
}

// Reason is the failure reason, or the empty string on success.
func (o *Outcome) Reason() string {
	if o == nil || o.Err == nil {
		return ""
	}
	if o.Err.Reason != "" {
		return o.Err.Reason
	}
	return string(o.Err.Code)
}

// Pipeline runs generation requests end to end. It holds no per-run state
// and is safe for concurrent use.
type Pipeline struct {
	generator Generator
	extractor Extractor
	store     Store
	cfg       Config
}

func New(generator Generator, extractor Extractor, store Store, cfg Config) (*Pipeline, error) {
	if generator == nil || store == nil {
		return nil, fmt.Errorf("generator and store are required")
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generation options: %w", err)
	}
	def := DefaultConfig()
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = def.GenerationTimeout
	}
	if cfg.OCRTimeout <= 0 {
		cfg.OCRTimeout = def.OCRTimeout
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = def.PersistTimeout
	}
	return &Pipeline{generator: generator, extractor: extractor, store: store, cfg: cfg}, nil
}

type RunOption func(*runSettings)

type runSettings struct {
	observer Observer
}

// WithObserver reports every state transition of the run.
func WithObserver(o Observer) RunOption {
	return func(s *runSettings) { s.observer = o }
}

// Run executes one invocation from idle to done or failed.
func (p *Pipeline) Run(ctx context.Context, req *models.GenerationRequest, opts ...RunOption) *Outcome {
	var settings runSettings
	for _, o := range opts {
		o(&settings)
	}

	m := newMachine(settings.observer)
	out := &Outcome{}
	if req != nil {
		out.Kind = req.Kind
	}

	fail := func(err *Error) *Outcome {
		_ = m.advance(StateFailed)
		out.State, out.Trace, out.Err = m.state, m.trace, err
		return out
	}
	step := func(to State) *Error {
		if err := ctx.Err(); err != nil {
			return &Error{Code: CodeCanceled, Err: err}
		}
		if err := m.advance(to); err != nil {
			return &Error{Code: CodeInvalidParameters, Reason: "invalid-transition", Err: err}
		}
		return nil
	}

	if req == nil {
		return fail(invalidParameter("missing-request"))
	}
	if _, ok := shapes[req.Kind]; !ok {
		return fail(invalidParameter("unknown-kind:%s", req.Kind))
	}

	params := copyParams(req.Parameters)

	if req.Kind == models.KindGrading {
		if err := step(StateExtracting); err != nil {
			return fail(err)
		}
		question, answer, err := p.extractPaper(ctx, req)
		if err != nil {
			return fail(err)
		}
		params[ParamQuestionText] = question
		params[ParamAnswerText] = answer
	}

	if err := step(StatePrompting); err != nil {
		return fail(err)
	}
	prompt, err := BuildPrompt(req.Kind, params)
	if err != nil {
		return fail(asPipelineError(err, CodeInvalidParameters))
	}

	if err := step(StateGenerating); err != nil {
		return fail(err)
	}
	raw, gerr := p.generate(ctx, prompt)
	if gerr != nil {
		return fail(gerr)
	}

	if err := step(StateSanitizing); err != nil {
		return fail(err)
	}
	clean := Sanitize(raw)

	if err := step(StateParsing); err != nil {
		return fail(err)
	}
	content, err := Parse(req.Kind, clean, params)
	if err != nil {
		return fail(asPipelineError(err, CodeValidationFailure))
	}

	if err := step(StatePersisting); err != nil {
		return fail(err)
	}
	id, serr := p.persist(ctx, req, content)
	if serr != nil {
		return fail(serr)
	}

	_ = m.advance(StateDone)
	out.State, out.Trace = m.state, m.trace
	out.Content, out.DocumentID = content, id
	return out
}

// extractPaper runs both OCR calls concurrently; they read disjoint inputs
// and both texts are needed before prompting.
func (p *Pipeline) extractPaper(ctx context.Context, req *models.GenerationRequest) (string, string, *Error) {
	if p.extractor == nil {
		return "", "", &Error{Code: CodeOCRFailure, Reason: "extractor-unavailable"}
	}
	questionInput, ok := req.Input(models.InputQuestion)
	if !ok {
		return "", "", invalidParameter("missing-input:%s", models.InputQuestion)
	}
	answerInput, ok := req.Input(models.InputAnswer)
	if !ok {
		return "", "", invalidParameter("missing-input:%s", models.InputAnswer)
	}

	var question, answer string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := p.extractOne(gctx, questionInput)
		question = text
		return err
	})
	g.Go(func() error {
		text, err := p.extractOne(gctx, answerInput)
		answer = text
		return err
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return "", "", &Error{Code: CodeCanceled, Err: ctx.Err()}
		}
		return "", "", asPipelineError(err, CodeOCRFailure)
	}
	return question, answer, nil
}

func (p *Pipeline) extractOne(ctx context.Context, input models.RawInput) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.OCRTimeout)
	defer cancel()

	text, err := p.extractor.Extract(ctx, input)
	if err != nil {
		return "", &Error{Code: CodeOCRFailure, Reason: input.Name, Err: err}
	}
	return text, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string) (string, *Error) {
	gctx, cancel := context.WithTimeout(ctx, p.cfg.GenerationTimeout)
	defer cancel()

	text, err := p.generator.Generate(gctx, prompt, p.cfg.Options)
	if err == nil {
		return text, nil
	}
	switch {
	case ctx.Err() != nil:
		return "", &Error{Code: CodeCanceled, Err: ctx.Err()}
	case errors.Is(err, ErrUpstreamBlocked):
		return "", &Error{Code: CodeUpstreamBlocked, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return "", &Error{Code: CodeUpstreamUnavailable, Reason: "timeout", Err: err}
	default:
		return "", &Error{Code: CodeUpstreamUnavailable, Err: err}
	}
}

func (p *Pipeline) persist(ctx context.Context, req *models.GenerationRequest, content models.GeneratedContent) (string, *Error) {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.PersistTimeout)
	defer cancel()

	id, err := p.store.Save(sctx, req, content)
	if err != nil {
		return "", &Error{Code: CodePersistenceFailure, Err: err}
	}
	return id, nil
}

func asPipelineError(err error, fallback ErrorCode) *Error {
	if perr, ok := AsError(err); ok {
		return perr
	}
	return &Error{Code: fallback, Err: err}
}

func copyParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}
