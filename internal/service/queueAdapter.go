package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/ewm/pkg/queue"
)

// deliveryPolicy - сколько раз relay пытается доставить уведомление
// данного типа, прежде чем оно уйдёт в DLQ
type deliveryPolicy struct {
	queueType  queue.TaskType
	maxRetries int
}

// Lifecycle notifications reach one initiator and are never resent, so they
// get more attempts than request status updates.
var deliveryPolicies = map[string]deliveryPolicy{
	TaskTypeEventPublished:       {queueType: queue.TaskTypeEventPublished, maxRetries: 5},
	TaskTypeEventRejected:        {queueType: queue.TaskTypeEventRejected, maxRetries: 5},
	TaskTypeRequestStatusChanged: {queueType: queue.TaskTypeRequestStatusChanged, maxRetries: 3},
}

// QueueAdapter turns service notifications into queue tasks.
type QueueAdapter struct {
	queue queue.Queue
	now   func() time.Time
}

func NewQueueAdapter(q queue.Queue) *QueueAdapter {
	return &QueueAdapter{queue: q, now: time.Now}
}

// Publish enqueues task under the delivery policy of its type. Unknown
// types are refused before they reach the queue.
func (a *QueueAdapter) Publish(ctx context.Context, task *Task) error {
	if a.queue == nil || task == nil {
		return nil
	}

	policy, ok := deliveryPolicies[task.Type]
	if !ok {
		return fmt.Errorf("no delivery policy for notification type %q", task.Type)
	}

	data := make(map[string]interface{}, len(task.Data))
	for k, v := range task.Data {
		data[k] = v
	}

	queued := &queue.Task{
		ID:         task.ID,
		Type:       policy.queueType,
		Data:       data,
		ExecuteAt:  task.ExecuteAt,
		MaxRetries: policy.maxRetries,
	}
	if task.MaxRetries > 0 {
		queued.MaxRetries = task.MaxRetries
	}
	if queued.ExecuteAt.IsZero() {
		queued.ExecuteAt = a.now()
	}

	return a.queue.Publish(ctx, queued)
}
