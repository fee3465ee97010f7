package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named unit of scheduled work
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs the periodic maintenance jobs in-process. The same jobs
// remain reachable through the cron HTTP endpoints for deployments that
// prefer an external scheduler.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	jobs   []Job
}

// New creates a scheduler
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
}

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start schedules all jobs and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		job := job
		_, err := s.cron.AddFunc(job.Spec, func() {
			s.logger.Info("scheduled job starting", zap.String("job", job.Name))
			if err := job.Run(ctx); err != nil {
				s.logger.Error("scheduled job failed",
					zap.String("job", job.Name),
					zap.Error(err))
				return
			}
			s.logger.Info("scheduled job finished", zap.String("job", job.Name))
		})
		if err != nil {
			return err
		}
		s.logger.Info("scheduled job registered",
			zap.String("job", job.Name),
			zap.String("spec", job.Spec))
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for running jobs
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
