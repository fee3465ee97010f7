package job

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunRepository persists workflow runs and their step checkpoints
type RunRepository interface {
	Save(ctx context.Context, run *Run) error
	FindByID(ctx context.Context, id uuid.UUID) (*Run, error)
	// ClaimDue atomically moves up to limit pending runs whose ScheduledFor
	// is at or before now into running state and returns them. Two pollers
	// never receive the same run.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Run, error)
	FindByStatus(ctx context.Context, status RunStatus, limit int) ([]*Run, error)

	SaveStepResult(ctx context.Context, result *StepResult) error
	FindStepResults(ctx context.Context, runID uuid.UUID) ([]*StepResult, error)
}
