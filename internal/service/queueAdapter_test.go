package service

import (
	"context"
	"testing"
	"time"

	"github.com/ds124wfegd/ewm/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	published []*queue.Task
}

func (q *fakeQueue) Publish(ctx context.Context, task *queue.Task) error {
	q.published = append(q.published, task)
	return nil
}

func (q *fakeQueue) Subscribe(ctx context.Context, handler func(*queue.Task) error) error {
	return nil
}

func (q *fakeQueue) Close() error { return nil }

func TestQueueAdapter_DeliveryPolicy(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		taskType    string
		wantType    queue.TaskType
		wantRetries int
	}{
		{"published", TaskTypeEventPublished, queue.TaskTypeEventPublished, 5},
		{"rejected", TaskTypeEventRejected, queue.TaskTypeEventRejected, 5},
		{"request status", TaskTypeRequestStatusChanged, queue.TaskTypeRequestStatusChanged, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQueue{}
			adapter := NewQueueAdapter(q)
			adapter.now = func() time.Time { return now }

			data := map[string]interface{}{"event_id": int64(3)}
			err := adapter.Publish(context.Background(), &Task{ID: "t-1", Type: tt.taskType, Data: data})
			require.NoError(t, err)
			require.Len(t, q.published, 1)

			got := q.published[0]
			assert.Equal(t, "t-1", got.ID)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantRetries, got.MaxRetries)
			assert.Equal(t, now, got.ExecuteAt)
			assert.Zero(t, got.Attempts)
			assert.Equal(t, int64(3), got.GetInt64("event_id"))

			// the queued copy does not alias the caller's data
			data["event_id"] = int64(4)
			assert.Equal(t, int64(3), got.GetInt64("event_id"))
		})
	}
}

func TestQueueAdapter_Overrides(t *testing.T) {
	q := &fakeQueue{}
	adapter := NewQueueAdapter(q)
	at := time.Now().Add(time.Minute)

	err := adapter.Publish(context.Background(), &Task{
		Type:       TaskTypeRequestStatusChanged,
		ExecuteAt:  at,
		MaxRetries: 7,
		Attempts:   2,
	})
	require.NoError(t, err)
	require.Len(t, q.published, 1)
	assert.Equal(t, at, q.published[0].ExecuteAt)
	assert.Equal(t, 7, q.published[0].MaxRetries)
	assert.Zero(t, q.published[0].Attempts)
}

func TestQueueAdapter_RefusesUnknownType(t *testing.T) {
	q := &fakeQueue{}

	err := NewQueueAdapter(q).Publish(context.Background(), &Task{Type: "event_exploded"})

	assert.ErrorContains(t, err, "event_exploded")
	assert.Empty(t, q.published)
	assert.NoError(t, NewQueueAdapter(nil).Publish(context.Background(), &Task{Type: "event_exploded"}))
}
