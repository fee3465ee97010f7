package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/saasforge/backend/internal/domain/job"
	"go.uber.org/zap"
)

// Handler executes one workflow run. Work that must not repeat across
// retries belongs inside sc.Step calls.
type Handler func(sc *StepContext, event job.Event) error

// Workflow binds an event name to a handler. MaxConcurrency caps how many
// runs of this workflow execute at once across the engine; zero means
// unlimited.
type Workflow struct {
	Name           string
	MaxConcurrency int
	Handler        Handler
}

// EngineConfig holds the durable workflow engine configuration
type EngineConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// DefaultEngineConfig returns default configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PollInterval: 2 * time.Second,
		BatchSize:    20,
		MaxAttempts:  job.DefaultMaxAttempts,
	}
}

// Engine runs durable workflows. Emitted events become persisted runs; a
// poller claims due runs and executes their handlers. A run that fails is
// retried with backoff up to its attempt cap, resuming from its last
// completed step.
type Engine struct {
	repo     job.RunRepository
	config   EngineConfig
	logger   *zap.Logger
	registry map[string]Workflow
	slots    map[string]chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates an engine with an empty workflow registry
func NewEngine(repo job.RunRepository, config EngineConfig, logger *zap.Logger) *Engine {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultEngineConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultEngineConfig().BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultEngineConfig().MaxAttempts
	}
	return &Engine{
		repo:     repo,
		config:   config,
		logger:   logger,
		registry: make(map[string]Workflow),
		slots:    make(map[string]chan struct{}),
	}
}

// Register adds a workflow to the registry. Must be called before Start.
func (e *Engine) Register(w Workflow) {
	e.registry[w.Name] = w
	if w.MaxConcurrency > 0 {
		e.slots[w.Name] = make(chan struct{}, w.MaxConcurrency)
	}
}

// Emit persists a run for the event. Events with no registered workflow are
// dropped with a warning so emitters never fail on unknown names. A future
// event timestamp defers execution until that time.
func (e *Engine) Emit(ctx context.Context, event job.Event) error {
	if _, ok := e.registry[event.Name]; !ok {
		e.logger.Warn("no workflow registered for event, dropping",
			zap.String("event", event.Name))
		return nil
	}

	payload, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	run, err := job.NewRun(event.Name, payload, event.TS, e.config.MaxAttempts)
	if err != nil {
		return err
	}
	if err := e.repo.Save(ctx, run); err != nil {
		return fmt.Errorf("persist run: %w", err)
	}

	e.logger.Debug("emitted workflow run",
		zap.String("workflow", event.Name),
		zap.String("run_id", run.ID.String()),
		zap.Time("scheduled_for", run.ScheduledFor))
	return nil
}

// Start begins polling for due runs
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go e.pollLoop(ctx)

	e.logger.Info("workflow engine started",
		zap.Int("workflows", len(e.registry)),
		zap.Duration("poll_interval", e.config.PollInterval))
	return nil
}

// Stop cancels polling and waits for in-flight runs to finish
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("workflow engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) pollLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.dispatchDue(ctx)
		}
	}
}

// dispatchDue claims due runs and executes them, honoring per-workflow
// concurrency caps
func (e *Engine) dispatchDue(ctx context.Context) {
	runs, err := e.repo.ClaimDue(ctx, time.Now(), e.config.BatchSize)
	if err != nil {
		e.logger.Error("failed to claim due runs", zap.Error(err))
		return
	}

	for _, run := range runs {
		run := run
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if slot, ok := e.slots[run.WorkflowName]; ok {
				select {
				case slot <- struct{}{}:
					defer func() { <-slot }()
				case <-ctx.Done():
					// Put the run back so the next poll retries it
					run.Status = job.RunStatusPending
					run.Attempts--
					if err := e.repo.Save(context.Background(), run); err != nil {
						e.logger.Error("failed to requeue run", zap.Error(err))
					}
					return
				}
			}
			e.execute(ctx, run)
		}()
	}
}

// execute runs one claimed run to completion or failure
func (e *Engine) execute(ctx context.Context, run *job.Run) {
	workflow, ok := e.registry[run.WorkflowName]
	if !ok {
		// Registry changed between emit and execution
		run.MarkFailed("workflow not registered")
		if err := e.repo.Save(ctx, run); err != nil {
			e.logger.Error("failed to save run", zap.Error(err))
		}
		return
	}

	var data map[string]any
	if len(run.Payload) > 0 {
		if err := json.Unmarshal(run.Payload, &data); err != nil {
			run.MarkFailed(fmt.Sprintf("decode payload: %v", err))
			if saveErr := e.repo.Save(ctx, run); saveErr != nil {
				e.logger.Error("failed to save run", zap.Error(saveErr))
			}
			return
		}
	}

	sc, err := newStepContext(ctx, e.repo, run)
	if err != nil {
		e.logger.Error("failed to load step checkpoints",
			zap.String("run_id", run.ID.String()),
			zap.Error(err))
		run.MarkFailed(fmt.Sprintf("load checkpoints: %v", err))
		if saveErr := e.repo.Save(ctx, run); saveErr != nil {
			e.logger.Error("failed to save run", zap.Error(saveErr))
		}
		return
	}

	event := job.Event{Name: run.WorkflowName, Data: data}
	if err := workflow.Handler(sc, event); err != nil {
		run.MarkFailed(err.Error())
		if run.Status == job.RunStatusFailed {
			e.logger.Error("workflow run failed permanently",
				zap.String("workflow", run.WorkflowName),
				zap.String("run_id", run.ID.String()),
				zap.Int("attempts", run.Attempts),
				zap.Error(err))
		} else {
			e.logger.Warn("workflow run failed, will retry",
				zap.String("workflow", run.WorkflowName),
				zap.String("run_id", run.ID.String()),
				zap.Int("attempts", run.Attempts),
				zap.Time("next_attempt", run.ScheduledFor),
				zap.Error(err))
		}
	} else {
		run.MarkSucceeded()
		e.logger.Debug("workflow run succeeded",
			zap.String("workflow", run.WorkflowName),
			zap.String("run_id", run.ID.String()))
	}

	if err := e.repo.Save(ctx, run); err != nil {
		e.logger.Error("failed to save run outcome",
			zap.String("run_id", run.ID.String()),
			zap.Error(err))
	}
}
