package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/bytesecuritas/sensi-back/internal/config"
)

// TaskCleanup asks the worker to sweep stale temporary uploads.
const TaskCleanup = "cleanup"

// Scheduler enqueues periodic maintenance tasks onto the worker stream.
type Scheduler struct {
	cron  *cron.Cron
	queue *redis.Client
	cfg   config.JobsConfig
	log   zerolog.Logger
	now   func() time.Time
}

func NewScheduler(queue *redis.Client, cfg config.JobsConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		queue: queue,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.CleanupSpec, s.enqueueCleanup); err != nil {
		return fmt.Errorf("schedule cleanup %q: %w", s.cfg.CleanupSpec, err)
	}

	s.cron.Start()
	s.log.Info().Str("spec", s.cfg.CleanupSpec).Str("stream", s.cfg.Stream).Msg("scheduler started")
	return nil
}

// Stop waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) enqueueCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.Enqueue(ctx, TaskCleanup); err != nil {
		s.log.Error().Err(err).Msg("enqueue cleanup failed")
	}
}

// Enqueue appends a task of the given type and returns its stream id.
func (s *Scheduler) Enqueue(ctx context.Context, taskType string) (string, error) {
	if s.queue == nil {
		return "", nil
	}
	id, err := s.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: s.cfg.Stream,
		Values: map[string]any{
			"type":         taskType,
			"requested_at": s.now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", s.cfg.Stream, err)
	}
	return id, nil
}
