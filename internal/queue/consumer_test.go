package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytesecuritas/sensi-back/internal/config"
	"github.com/bytesecuritas/sensi-back/internal/queue"
)

type recordingHandler struct {
	mu   sync.Mutex
	seen []string
	fail bool
}

func (h *recordingHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg.Values["type"].(string))
	if h.fail {
		return errors.New("handler failed")
	}
	return nil
}

func setup(t *testing.T, handler queue.MessageHandler) (*queue.Consumer, *redis.Client, config.WorkerConfig) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.WorkerConfig{Stream: "sensi:maintenance", Group: "maintenance-workers", Consumer: "w1"}
	c := queue.NewConsumer(client, cfg, zerolog.Nop(), handler)
	require.NoError(t, c.EnsureGroup(context.Background()))
	require.NoError(t, c.EnsureGroup(context.Background()))
	return c, client, cfg
}

func TestPollHandlesAndAcknowledges(t *testing.T) {
	ctx := context.Background()
	handler := &recordingHandler{}
	c, client, cfg := setup(t, handler)

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: cfg.Stream, Values: map[string]any{"type": "cleanup"}}).Err())
	require.NoError(t, c.Poll(ctx))

	assert.Equal(t, []string{"cleanup"}, handler.seen)
	pending, err := client.XPending(ctx, cfg.Stream, cfg.Group).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestPollLeavesFailedMessagesPending(t *testing.T) {
	ctx := context.Background()
	handler := &recordingHandler{fail: true}
	c, client, cfg := setup(t, handler)

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: cfg.Stream, Values: map[string]any{"type": "cleanup"}}).Err())
	require.NoError(t, c.Poll(ctx))

	pending, err := client.XPending(ctx, cfg.Stream, cfg.Group).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending.Count)
}
