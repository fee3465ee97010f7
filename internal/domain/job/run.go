package job

import (
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/shared"
)

// RunStatus represents the lifecycle state of a workflow run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Default retry configuration
const (
	DefaultMaxAttempts = 3
	baseBackoff        = time.Second
)

// Event triggers a workflow run. A future TS defers execution to that time;
// a zero TS means "now".
type Event struct {
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
	TS   time.Time      `json:"ts,omitempty"`
}

// Run is one durable execution of a named workflow. A run progresses through
// its steps strictly in order; completed step results are checkpointed so a
// retry resumes at the first incomplete step.
type Run struct {
	shared.BaseEntity
	WorkflowName string
	Payload      []byte
	Status       RunStatus
	Attempts     int
	MaxAttempts  int
	ScheduledFor time.Time
	LastError    string
	CompletedAt  *time.Time
}

// NewRun creates a pending run for a workflow
func NewRun(workflowName string, payload []byte, scheduledFor time.Time, maxAttempts int) (*Run, error) {
	if workflowName == "" {
		return nil, shared.NewDomainError("INVALID_WORKFLOW", "Workflow name cannot be empty")
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if scheduledFor.IsZero() {
		scheduledFor = time.Now()
	}
	return &Run{
		BaseEntity:   shared.NewBaseEntity(),
		WorkflowName: workflowName,
		Payload:      payload,
		Status:       RunStatusPending,
		MaxAttempts:  maxAttempts,
		ScheduledFor: scheduledFor,
	}, nil
}

// MarkRunning claims the run for execution and counts the attempt
func (r *Run) MarkRunning() error {
	if r.Status != RunStatusPending {
		return shared.NewDomainError("INVALID_STATE", "Only pending runs can start")
	}
	r.Status = RunStatusRunning
	r.Attempts++
	r.Touch()
	return nil
}

// MarkSucceeded completes the run
func (r *Run) MarkSucceeded() {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.CompletedAt = &now
	r.Touch()
}

// MarkFailed records a handler error. Below the attempt cap the run goes
// back to pending with an exponential-backoff schedule (1s, 2s, 4s, ...);
// at the cap it becomes terminally failed and must be surfaced to an
// operator.
func (r *Run) MarkFailed(errMsg string) {
	r.LastError = errMsg
	r.Touch()
	if r.Attempts >= r.MaxAttempts {
		now := time.Now()
		r.Status = RunStatusFailed
		r.CompletedAt = &now
		return
	}
	backoff := baseBackoff * time.Duration(1<<uint(r.Attempts-1))
	r.Status = RunStatusPending
	r.ScheduledFor = time.Now().Add(backoff)
}

// IsTerminal returns true once the run can no longer execute
func (r *Run) IsTerminal() bool {
	return r.Status == RunStatusSucceeded || r.Status == RunStatusFailed
}

// StepResult is the durable checkpoint of one completed step within a run
type StepResult struct {
	ID          uuid.UUID
	RunID       uuid.UUID
	StepName    string
	Output      []byte
	CompletedAt time.Time
}

// NewStepResult checkpoints a completed step
func NewStepResult(runID uuid.UUID, stepName string, output []byte) *StepResult {
	return &StepResult{
		ID:          uuid.New(),
		RunID:       runID,
		StepName:    stepName,
		Output:      output,
		CompletedAt: time.Now(),
	}
}
