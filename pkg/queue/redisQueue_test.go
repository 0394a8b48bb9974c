package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q, err := NewRedisQueue(client, &RedisQueueConfig{
		Prefix:       "test",
		MaxRetries:   3,
		BaseDelay:    time.Millisecond,
		QueueTimeout: 100 * time.Millisecond,
		DelayedPoll:  10 * time.Millisecond,
		EnableDLQ:    true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestNewRedisQueue_RequiresClient(t *testing.T) {
	_, err := NewRedisQueue(nil, nil)
	assert.Error(t, err)
}

func TestPublishAndProcess(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	task := &Task{Type: TaskTypeEventPublished, Data: map[string]interface{}{"event_id": int64(5)}}
	require.NoError(t, q.Publish(ctx, task))
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, 3, task.MaxRetries)

	var got *Task
	require.NoError(t, q.processNext(ctx, func(t *Task) error {
		got = t
		return nil
	}))

	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, int64(5), got.GetInt64("event_id"))
	assert.Equal(t, 1, got.Attempts)

	stats, err := q.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.MainQueue)
	assert.Zero(t, stats.ProcessingQueue)
	assert.Equal(t, "1", stats.Counters["queued"])
	assert.Equal(t, "1", stats.Counters["success"])
}

func TestProcessNext_EmptyQueue(t *testing.T) {
	q := newTestQueue(t)
	err := q.processNext(context.Background(), func(*Task) error {
		t.Fatal("handler must not run")
		return nil
	})
	assert.NoError(t, err)
}

func TestPublish_Nil(t *testing.T) {
	q := newTestQueue(t)
	assert.Error(t, q.Publish(context.Background(), nil))
}

func TestProcessNext_RetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	require.NoError(t, q.Publish(ctx, &Task{Type: TaskTypeRequestStatusChanged}))

	calls := 0
	require.NoError(t, q.processNext(ctx, func(*Task) error {
		calls++
		if calls == 1 {
			return errors.New("broker unavailable")
		}
		return nil
	}))
	assert.Equal(t, 2, calls)

	failed, err := q.DLQ().GetFailedTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestProcessNext_ExhaustedGoesToDLQ(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	task := &Task{Type: TaskTypeEventRejected}
	require.NoError(t, q.Publish(ctx, task))

	calls := 0
	require.NoError(t, q.processNext(ctx, func(*Task) error {
		calls++
		return errors.New("broker unavailable")
	}))
	assert.Equal(t, 3, calls)

	failed, err := q.DLQ().GetFailedTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, task.ID, failed[0].Task.ID)
	assert.Equal(t, 3, failed[0].Attempts)
	assert.Equal(t, "broker unavailable", failed[0].Error)

	dlqStats, err := q.DLQ().GetDLQStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dlqStats.QueueSize)
	assert.False(t, dlqStats.OldestFailure.IsZero())
}

func TestProcessNext_PermanentErrorSkipsRetries(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	require.NoError(t, q.Publish(ctx, &Task{Type: "unknown"}))

	calls := 0
	require.NoError(t, q.processNext(ctx, func(*Task) error {
		calls++
		return Permanent(errors.New("unsupported task type"))
	}))
	assert.Equal(t, 1, calls)

	failed, err := q.DLQ().GetFailedTasks(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, failed, 1)
}

func TestDLQ_RequeueAndDelete(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	first := &Task{Type: TaskTypeEventPublished}
	second := &Task{Type: TaskTypeEventPublished}
	require.NoError(t, q.Publish(ctx, first))
	require.NoError(t, q.Publish(ctx, second))
	failing := func(*Task) error { return Permanent(errors.New("boom")) }
	require.NoError(t, q.processNext(ctx, failing))
	require.NoError(t, q.processNext(ctx, failing))

	dlq := q.DLQ()
	require.NoError(t, dlq.RequeueFailedTask(ctx, first.ID))
	assert.ErrorIs(t, dlq.RequeueFailedTask(ctx, first.ID), ErrTaskNotFound)

	stats, err := q.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.MainQueue)

	var requeued *Task
	require.NoError(t, q.processNext(ctx, func(t *Task) error {
		requeued = t
		return nil
	}))
	require.NotNil(t, requeued)
	assert.Equal(t, first.ID, requeued.ID)
	assert.Equal(t, 1, requeued.Attempts)

	require.NoError(t, dlq.DeleteFailedTask(ctx, second.ID))
	assert.ErrorIs(t, dlq.DeleteFailedTask(ctx, second.ID), ErrTaskNotFound)

	dlqStats, err := dlq.GetDLQStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, dlqStats.QueueSize)
}

func TestDelayedTasks(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	require.NoError(t, q.Publish(ctx, &Task{Type: TaskTypeEventPublished, ExecuteAt: time.Now().Add(30 * time.Millisecond)}))

	stats, err := q.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.DelayedQueue)
	assert.Zero(t, stats.MainQueue)

	require.NoError(t, q.moveReadyDelayedTasks(ctx))
	stats, err = q.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.DelayedQueue, "not ready yet")

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, q.moveReadyDelayedTasks(ctx))

	stats, err = q.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.DelayedQueue)
	assert.Equal(t, int64(1), stats.MainQueue)
}

func TestSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := newTestQueue(t)

	assert.Error(t, q.Subscribe(ctx, nil))

	handled := make(chan string, 1)
	require.NoError(t, q.Subscribe(ctx, func(task *Task) error {
		handled <- task.ID
		return nil
	}))

	task := &Task{Type: TaskTypeEventPublished}
	require.NoError(t, q.Publish(ctx, task))

	select {
	case id := <-handled:
		assert.Equal(t, task.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("task was not handled")
	}

	cancel()
	require.NoError(t, q.Close())
}
