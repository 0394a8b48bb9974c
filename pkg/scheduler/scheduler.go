package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is a periodic background task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

type Scheduler struct {
	jobs []Job
}

func NewScheduler(jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs}
}

func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start runs every job on its own ticker and blocks until ctx is done and
// all running jobs have returned.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		if job.Interval <= 0 || job.Run == nil {
			logrus.WithField("job", job.Name).Warn("Skipping job without interval")
			continue
		}

		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	logrus.WithFields(logrus.Fields{
		"job":      job.Name,
		"interval": job.Interval.String(),
	}).Info("Scheduled job started")

	for {
		select {
		case <-ticker.C:
			job.Run(ctx)
		case <-ctx.Done():
			logrus.WithField("job", job.Name).Info("Scheduled job stopped")
			return
		}
	}
}
