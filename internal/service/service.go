package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/ewm/internal/entity"
)

// EventService drives the event lifecycle and the read side of events.
type EventService interface {
	// Lifecycle
	CreateEvent(ctx context.Context, initiatorID int64, req *NewEventRequest) (*entity.EventFull, error)
	TransitionEvent(ctx context.Context, eventID int64, actor entity.Actor, action entity.StateAction) (*entity.Event, error)
	UpdateEventFields(ctx context.Context, eventID int64, actor entity.Actor, req *UpdateEventRequest) (*entity.EventFull, error)

	// Owner views
	GetUserEvents(ctx context.Context, userID int64, from, size int) ([]*entity.EventFull, error)
	GetUserEvent(ctx context.Context, userID, eventID int64) (*entity.EventFull, error)

	// Public and admin views
	GetPublishedEvent(ctx context.Context, eventID int64, hit *entity.Hit) (*entity.EventFull, error)
	SearchPublished(ctx context.Context, params *PublicSearchParams, hit *entity.Hit) ([]*entity.EventFull, error)
	SearchAdmin(ctx context.Context, params *AdminSearchParams) ([]*entity.EventFull, error)
	TopLiked(ctx context.Context, count int) ([]*entity.EventFull, error)

	// Likes
	Like(ctx context.Context, userID, eventID int64) error
	Unlike(ctx context.Context, userID, eventID int64) error
}

// RequestService is the admission controller for participation requests.
type RequestService interface {
	CreateRequest(ctx context.Context, requesterID, eventID int64) (*entity.ParticipationRequest, error)
	CancelRequest(ctx context.Context, requesterID, requestID int64) (*entity.ParticipationRequest, error)
	UpdateRequestStatuses(ctx context.Context, ownerID, eventID int64, req *StatusUpdateRequest) (*entity.StatusUpdateResult, error)

	GetUserRequests(ctx context.Context, requesterID int64) ([]*entity.ParticipationRequest, error)
	GetEventRequests(ctx context.Context, ownerID, eventID int64) ([]*entity.ParticipationRequest, error)

	ConfirmedCounts(ctx context.Context, eventIDs []int64) (map[int64]int, error)
	ReconcileCapacity(ctx context.Context, limit int) (int, error)
}

// UserService administers the user directory.
type UserService interface {
	RegisterUser(ctx context.Context, req *NewUserRequest) (*entity.User, error)
	GetUsers(ctx context.Context, ids []int64, from, size int) ([]*entity.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// CategoryService administers event categories.
type CategoryService interface {
	CreateCategory(ctx context.Context, req *CategoryRequest) (*entity.Category, error)
	UpdateCategory(ctx context.Context, id int64, req *CategoryRequest) (*entity.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	GetCategory(ctx context.Context, id int64) (*entity.Category, error)
	GetCategories(ctx context.Context, from, size int) ([]*entity.Category, error)
}

// CompilationService curates event compilations.
type CompilationService interface {
	CreateCompilation(ctx context.Context, req *NewCompilationRequest) (*entity.CompilationView, error)
	UpdateCompilation(ctx context.Context, id int64, req *UpdateCompilationRequest) (*entity.CompilationView, error)
	DeleteCompilation(ctx context.Context, id int64) error
	GetCompilation(ctx context.Context, id int64) (*entity.CompilationView, error)
	GetCompilations(ctx context.Context, pinned *bool, from, size int) ([]*entity.CompilationView, error)
}

// LocationService handles likes on event locations.
type LocationService interface {
	LikeLocation(ctx context.Context, userID, locationID int64) (*entity.LocationLikes, error)
	UnlikeLocation(ctx context.Context, userID, locationID int64) error
	TopLocations(ctx context.Context, userID int64, count int) ([]*entity.LocationLikes, error)
}

// StatsClient is the statistics collaborator. Its numbers are not
// transactionally consistent with events.
type StatsClient interface {
	RecordHit(ctx context.Context, hit *entity.Hit) error
	ViewCounts(ctx context.Context, eventIDs []int64, since, until time.Time) (map[int64]int64, error)
}

// LikesClient is the likes collaborator.
type LikesClient interface {
	Like(ctx context.Context, userID, eventID int64) error
	Unlike(ctx context.Context, userID, eventID int64) error
	Counts(ctx context.Context, eventIDs []int64) (map[int64]int64, error)
	Top(ctx context.Context, count int) ([]int64, error)
}

// LocationLikesClient is the likes collaborator keyed by location.
type LocationLikesClient interface {
	LikesClient
	Liked(ctx context.Context, userID, locationID int64) (bool, error)
}

// TaskPublisher интерфейс для публикации задач в очередь
type TaskPublisher interface {
	Publish(ctx context.Context, task *Task) error
}

// Task is a notification handed to the queue after a commit.
type Task struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	MaxRetries int                    `json:"max_retries"`
	Attempts   int                    `json:"attempts"`
}

const (
	TaskTypeEventPublished       = "event_published"
	TaskTypeEventRejected        = "event_rejected"
	TaskTypeRequestStatusChanged = "request_status_changed"
)
