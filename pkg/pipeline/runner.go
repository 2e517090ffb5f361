package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zen-systems/planwright/pkg/adapter"
	"github.com/zen-systems/planwright/pkg/config"
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("completion returned empty text")

// StageError reports the stage on which a run aborted.
type StageError struct {
	Stage   string
	Ordinal int
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s): %v", e.Ordinal, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Runner executes the stages of a pipeline in strict sequence.
type Runner struct {
	cfg       *config.Config
	completer adapter.Adapter
	stages    []StageSpec
	policy    ContextPolicy
	logger    *zap.Logger
	hook      func(*StageResult)
	now       func() time.Time
	sleep     sleepFunc
	newRunID  func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithStages replaces the profile's default stages.
func WithStages(stages []StageSpec) Option {
	return func(r *Runner) {
		r.stages = cloneStages(stages)
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStageHook registers a callback invoked after each stage is stored.
func WithStageHook(hook func(*StageResult)) Option {
	return func(r *Runner) {
		r.hook = hook
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSleep overrides the backoff sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithRunID overrides run ID generation.
func WithRunID(newRunID func() string) Option {
	return func(r *Runner) {
		if newRunID != nil {
			r.newRunID = newRunID
		}
	}
}

// NewRunner validates the configuration and stage list. A configuration
// error is reported here, before any stage can call the completer.
func NewRunner(cfg *config.Config, completer adapter.Adapter, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if completer == nil {
		return nil, fmt.Errorf("completion adapter is required")
	}

	r := &Runner{
		cfg:       cfg,
		completer: completer,
		policy:    PolicyFromConfig(cfg.Context),
		logger:    zap.NewNop(),
		now:       time.Now,
		sleep:     sleepWithContext,
		newRunID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.stages == nil {
		stages, err := DefaultStages(cfg.Profile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		r.stages = stages
	}
	if err := validateStages(r.stages); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	return r, nil
}

// Stages returns a copy of the stages the runner executes.
func (r *Runner) Stages() []StageSpec {
	return cloneStages(r.stages)
}

// Run executes every stage in order. On failure it returns the results of
// the stages that completed together with a *StageError; nothing is retried
// beyond the call policy and no later stage runs.
func (r *Runner) Run(ctx context.Context, topic string) (*RunOutputs, error) {
	if topic == "" {
		topic = r.cfg.Topic
	}

	outputs := NewRunOutputs(r.newRunID(), topic)
	outputs.Adapter = r.completer.Name()
	outputs.Model = r.cfg.Model
	outputs.Context = r.policy
	outputs.StartedAt = r.now()

	policy := &callPolicy{
		retry:   r.cfg.Retry,
		timeout: r.cfg.Timeout,
		tracker: newCostTracker(r.cfg.Pricing, r.cfg.MaxBudgetUSD),
		sleep:   r.sleep,
		logger:  r.logger,
	}

	log := r.logger.With(zap.String("run_id", outputs.RunID))
	log.Info("pipeline started",
		zap.String("topic", topic),
		zap.String("adapter", outputs.Adapter),
		zap.String("model", outputs.Model),
		zap.Stringer("context", r.policy),
		zap.Int("stages", len(r.stages)))

	for _, spec := range r.stages {
		if err := ctx.Err(); err != nil {
			return outputs, &StageError{Stage: spec.Name, Ordinal: spec.Ordinal, Err: err}
		}

		log.Info("stage started", zap.Int("ordinal", spec.Ordinal), zap.String("stage", spec.Name), zap.String("agent", spec.Agent))
		result, err := r.runStage(ctx, spec, outputs, policy)
		if err == nil {
			err = outputs.Add(result)
		}
		if err != nil {
			log.Error("stage failed", zap.String("stage", spec.Name), zap.Error(err))
			return outputs, &StageError{Stage: spec.Name, Ordinal: spec.Ordinal, Err: err}
		}

		log.Info("stage completed",
			zap.String("stage", spec.Name),
			zap.Int("chars", result.Artifact.Len()),
			zap.Int("total_tokens", result.Usage.TotalTokens),
			zap.Int("retries", result.Report.Retries),
			zap.Duration("duration", result.Duration))
		if r.hook != nil {
			r.hook(result)
		}
	}

	outputs.FinishedAt = r.now()
	log.Info("pipeline completed",
		zap.Int("total_tokens", outputs.TotalUsage.TotalTokens),
		zap.Duration("duration", outputs.FinishedAt.Sub(outputs.StartedAt)))
	return outputs, nil
}

func (r *Runner) runStage(ctx context.Context, spec StageSpec, outputs *RunOutputs, policy *callPolicy) (*StageResult, error) {
	start := r.now()

	data := promptData{Topic: outputs.Topic, Stages: map[string]string{}}
	role, err := renderTemplate(spec.Name+" role", spec.Role, data)
	if err != nil {
		return nil, fmt.Errorf("render role: %w", err)
	}

	for _, dep := range spec.DependsOn {
		prior, ok := outputs.Get(dep)
		if !ok {
			return nil, fmt.Errorf("dependency %s has no result", dep)
		}
		data.Stages[dep] = r.policy.Apply(prior.Text())
	}
	prompt, err := renderTemplate(spec.Name, spec.Template, data)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	req := adapter.Request{
		Model:       r.cfg.Model,
		System:      role,
		Prompt:      prompt,
		Temperature: spec.temperature(r.cfg.Temperature),
		MaxTokens:   r.cfg.MaxTokens,
	}
	resp, report, err := policy.call(ctx, r.completer, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Artifact.Content) == "" {
		return nil, ErrEmptyCompletion
	}

	art := resp.Artifact.ForStage(spec.Name)
	art.Prompt = prompt

	return &StageResult{
		Name:     spec.Name,
		Ordinal:  spec.Ordinal,
		Artifact: art,
		Usage:    report.Usage,
		Report:   report,
		Duration: r.now().Sub(start),
	}, nil
}
