package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/job"
)

// JobRunModel is the persistence model for the workflow Run domain entity
type JobRunModel struct {
	BaseModel
	WorkflowName string    `gorm:"type:varchar(255);not null;index"`
	Payload      []byte    `gorm:"type:bytea"`
	Status       string    `gorm:"type:varchar(32);not null;index:idx_job_status_scheduled,priority:1"`
	Attempts     int       `gorm:"not null;default:0"`
	MaxAttempts  int       `gorm:"not null"`
	ScheduledFor time.Time `gorm:"not null;index:idx_job_status_scheduled,priority:2"`
	LastError    string    `gorm:"type:text"`
	CompletedAt  *time.Time
}

// TableName specifies the table name
func (JobRunModel) TableName() string {
	return "job_runs"
}

// ToDomain converts the model to a domain entity
func (m *JobRunModel) ToDomain() *job.Run {
	return &job.Run{
		BaseEntity:   m.BaseModel.ToDomain(),
		WorkflowName: m.WorkflowName,
		Payload:      m.Payload,
		Status:       job.RunStatus(m.Status),
		Attempts:     m.Attempts,
		MaxAttempts:  m.MaxAttempts,
		ScheduledFor: m.ScheduledFor,
		LastError:    m.LastError,
		CompletedAt:  m.CompletedAt,
	}
}

// FromDomain populates the model from a domain entity
func (m *JobRunModel) FromDomain(r *job.Run) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.WorkflowName = r.WorkflowName
	m.Payload = r.Payload
	m.Status = string(r.Status)
	m.Attempts = r.Attempts
	m.MaxAttempts = r.MaxAttempts
	m.ScheduledFor = r.ScheduledFor
	m.LastError = r.LastError
	m.CompletedAt = r.CompletedAt
}

// JobStepResultModel is the persistence model for step checkpoints. One row
// per completed step per run; (run_id, step_name) is unique so a replayed
// step never double-checkpoints.
type JobStepResultModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	RunID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_step_run_name,priority:1"`
	StepName    string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_step_run_name,priority:2"`
	Output      []byte    `gorm:"type:bytea"`
	CompletedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name
func (JobStepResultModel) TableName() string {
	return "job_step_results"
}

// ToDomain converts the model to a domain entity
func (m *JobStepResultModel) ToDomain() *job.StepResult {
	return &job.StepResult{
		ID:          m.ID,
		RunID:       m.RunID,
		StepName:    m.StepName,
		Output:      m.Output,
		CompletedAt: m.CompletedAt,
	}
}

// FromDomain populates the model from a domain entity
func (m *JobStepResultModel) FromDomain(s *job.StepResult) {
	m.ID = s.ID
	m.RunID = s.RunID
	m.StepName = s.StepName
	m.Output = s.Output
	m.CompletedAt = s.CompletedAt
}
