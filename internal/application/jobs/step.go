package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/saasforge/backend/internal/domain/job"
)

// StepContext provides durable step execution within one workflow run.
// Each named step runs at most once per run: on a retry, steps that already
// checkpointed return their stored output without re-executing.
type StepContext struct {
	ctx       context.Context
	repo      job.RunRepository
	run       *job.Run
	completed map[string][]byte
}

func newStepContext(ctx context.Context, repo job.RunRepository, run *job.Run) (*StepContext, error) {
	completed := make(map[string][]byte)
	if run.Attempts > 1 {
		results, err := repo.FindStepResults(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			completed[r.StepName] = r.Output
		}
	}
	return &StepContext{ctx: ctx, repo: repo, run: run, completed: completed}, nil
}

// Context returns the run's context
func (s *StepContext) Context() context.Context {
	return s.ctx
}

// Step executes fn once per run. The returned bytes are checkpointed; a
// replayed step returns the checkpoint instead of calling fn again.
func (s *StepContext) Step(name string, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if output, ok := s.completed[name]; ok {
		return output, nil
	}

	output, err := fn(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", name, err)
	}

	result := job.NewStepResult(s.run.ID, name, output)
	if err := s.repo.SaveStepResult(s.ctx, result); err != nil {
		return nil, fmt.Errorf("checkpoint step %s: %w", name, err)
	}
	s.completed[name] = output
	return output, nil
}

// StepJSON is Step with JSON-encoded output
func (s *StepContext) StepJSON(name string, out any, fn func(ctx context.Context) (any, error)) error {
	data, err := s.Step(name, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
