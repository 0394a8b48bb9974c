package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/ewm/pkg/broker"
	"github.com/ds124wfegd/ewm/pkg/queue"
	"github.com/sirupsen/logrus"
)

// Notification is the message sent to the broker for every relayed task.
type Notification struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	EventID    int64     `json:"eventId"`
	Status     string    `json:"status,omitempty"`
	State      string    `json:"state,omitempty"`
	Title      string    `json:"title,omitempty"`
	UserID     int64     `json:"userId,omitempty"`
	RequestIDs []int64   `json:"requestIds,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NotificationRelay consumes notification tasks from the queue and forwards
// them to the broker.
type NotificationRelay struct {
	queue     queue.Queue
	publisher broker.Publisher
	timeout   time.Duration
}

func NewNotificationRelay(q queue.Queue, publisher broker.Publisher) *NotificationRelay {
	return &NotificationRelay{
		queue:     q,
		publisher: publisher,
		timeout:   10 * time.Second,
	}
}

// Start subscribes to the queue. Consumers run until ctx is done or the
// queue is closed.
func (r *NotificationRelay) Start(ctx context.Context) error {
	if err := r.queue.Subscribe(ctx, r.HandleTask); err != nil {
		return fmt.Errorf("failed to subscribe notification relay: %w", err)
	}
	logrus.Info("Notification relay started")
	return nil
}

// HandleTask обрабатывает задачу
func (r *NotificationRelay) HandleTask(task *queue.Task) error {
	var notification *Notification

	switch task.Type {
	case queue.TaskTypeEventPublished, queue.TaskTypeEventRejected:
		notification = &Notification{
			EventID: task.GetInt64("event_id"),
			UserID:  task.GetInt64("initiator_id"),
			Title:   task.GetString("title"),
			State:   task.GetString("state"),
		}
	case queue.TaskTypeRequestStatusChanged:
		notification = &Notification{
			EventID:    task.GetInt64("event_id"),
			Status:     task.GetString("status"),
			RequestIDs: task.GetInt64s("request_ids"),
		}
	default:
		return queue.Permanent(fmt.Errorf("unknown task type: %s", task.Type))
	}

	notification.ID = task.ID
	notification.Type = string(task.Type)
	notification.CreatedAt = task.CreatedAt
	if notification.EventID == 0 {
		return queue.Permanent(fmt.Errorf("task %s has no event_id", task.ID))
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.publisher.Publish(ctx, notification.Type, notification); err != nil {
		return fmt.Errorf("failed to relay task %s: %w", task.ID, err)
	}

	logrus.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"task_type": task.Type,
		"event_id":  notification.EventID,
	}).Debug("Notification relayed")
	return nil
}
