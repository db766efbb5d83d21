package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SweepRunner is satisfied by OverdueSweeper.
type SweepRunner interface {
	Run(ctx context.Context) (SweepResult, error)
}

// SweepScheduler runs the overdue sweep on a cron schedule inside the server.
type SweepScheduler struct {
	runner   SweepRunner
	schedule string
	logger   *logrus.Logger
	timeout  time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewSweepScheduler constructs a SweepScheduler. schedule is a standard
// five-field cron expression.
func NewSweepScheduler(runner SweepRunner, schedule string, logger *logrus.Logger) *SweepScheduler {
	return &SweepScheduler{
		runner:   runner,
		schedule: schedule,
		logger:   logger,
		timeout:  10 * time.Minute,
	}
}

// Start registers the job and starts the cron loop.
func (s *SweepScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	schedule := strings.TrimSpace(s.schedule)
	if schedule == "" {
		schedule = "0 3 * * *"
	}

	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		s.logger.WithError(err).Error("failed to schedule overdue sweep")
		return err
	}

	s.cron.Start()
	s.running = true
	s.logger.WithField("schedule", schedule).Info("overdue sweep scheduler started")
	return nil
}

// Stop waits for a running job and stops the scheduler.
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.cron == nil {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("overdue sweep scheduler stopped")
}

func (s *SweepScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.WithError(err).Error("scheduled overdue sweep failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"updated_count": result.UpdatedCount,
		"errors":        len(result.Errors),
		"duration":      time.Since(start).String(),
	}).Info("scheduled overdue sweep completed")
}
