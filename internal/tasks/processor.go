package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/bytesecuritas/sensi-back/internal/jobs"
	"github.com/bytesecuritas/sensi-back/internal/metrics"
)

// ObjectSweeper removes stale temporary objects from remote storage.
type ObjectSweeper interface {
	SweepTemp(ctx context.Context, maxAge time.Duration) (int, error)
}

type Processor struct {
	logger     zerolog.Logger
	tempDir    string
	tempMaxAge time.Duration
	objects    ObjectSweeper
	metrics    *metrics.Metrics
	now        func() time.Time
}

type TaskPayload struct {
	Type        string `json:"type"`
	RequestedAt string `json:"requested_at"`
}

// NewProcessor builds the worker's task handler. objects may be nil when no
// object store is configured.
func NewProcessor(logger zerolog.Logger, tempDir string, tempMaxAge time.Duration, objects ObjectSweeper, m *metrics.Metrics) *Processor {
	return &Processor{
		logger:     logger,
		tempDir:    tempDir,
		tempMaxAge: tempMaxAge,
		objects:    objects,
		metrics:    m,
		now:        time.Now,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case jobs.TaskCleanup:
		return p.handleCleanup(ctx, payload)
	default:
		p.logger.Warn().Str("type", payload.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

// handleCleanup sweeps both locations; a failure in one does not skip the
// other.
func (p *Processor) handleCleanup(ctx context.Context, payload TaskPayload) error {
	var problems []error

	removed, err := jobs.SweepDir(p.tempDir, p.tempMaxAge, p.now())
	if err != nil {
		problems = append(problems, fmt.Errorf("sweep %s: %w", p.tempDir, err))
	}
	p.metrics.CleanupRemoved("local", removed)

	remote := 0
	if p.objects != nil {
		remote, err = p.objects.SweepTemp(ctx, p.tempMaxAge)
		if err != nil {
			problems = append(problems, fmt.Errorf("sweep object store: %w", err))
		}
		p.metrics.CleanupRemoved("object_store", remote)
	}

	p.logger.Info().
		Str("requested_at", payload.RequestedAt).
		Int("local_removed", removed).
		Int("objects_removed", remote).
		Msg("temp cleanup finished")
	return errors.Join(problems...)
}
