package queue

import (
	"fmt"
	"strings"
	"time"
)

type TaskType string

const (
	TaskTypeEventPublished       TaskType = "event_published"
	TaskTypeEventRejected        TaskType = "event_rejected"
	TaskTypeRequestStatusChanged TaskType = "request_status_changed"
)

// Task represents a unit of work in the queue
type Task struct {
	ID         string                 `json:"id"`
	Type       TaskType               `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	CreatedAt  time.Time              `json:"created_at"`
	Attempts   int                    `json:"attempts"`
	MaxRetries int                    `json:"max_retries"`
}

// Validate checks if the task is valid
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task ID is required")
	}
	if strings.TrimSpace(string(t.Type)) == "" {
		return fmt.Errorf("task type is required")
	}
	if t.Data == nil {
		t.Data = make(map[string]interface{})
	}
	return nil
}

// GetString returns a string value from task data
func (t *Task) GetString(key string) string {
	if val, ok := t.Data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetInt64 returns an integer value from task data. Numbers decoded from
// JSON arrive as float64.
func (t *Task) GetInt64(key string) int64 {
	if val, ok := t.Data[key]; ok {
		return toInt64(val)
	}
	return 0
}

// GetInt64s returns a list of integers from task data.
func (t *Task) GetInt64s(key string) []int64 {
	val, ok := t.Data[key]
	if !ok {
		return nil
	}

	switch v := val.(type) {
	case []int64:
		return v
	case []interface{}:
		ids := make([]int64, 0, len(v))
		for _, item := range v {
			ids = append(ids, toInt64(item))
		}
		return ids
	}
	return nil
}

func toInt64(val interface{}) int64 {
	switch v := val.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}
