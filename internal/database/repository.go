package database

import (
	"context"

	"github.com/ds124wfegd/ewm/internal/entity"
)

type EventRepository interface {
	Create(ctx context.Context, event *entity.Event) error
	GetByID(ctx context.Context, id int64) (*entity.Event, error)
	Update(ctx context.Context, event *entity.Event) error

	// Capacity aggregate, written only inside the event's critical section
	AddConfirmed(ctx context.Context, eventID int64, delta int) error
	SetConfirmed(ctx context.Context, eventID int64, confirmed int) error

	// Поиск и списки
	ListByInitiator(ctx context.Context, initiatorID int64, from, size int) ([]*entity.Event, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*entity.Event, error)
	Search(ctx context.Context, filter *entity.EventFilter) ([]*entity.Event, error)
	CountByCategory(ctx context.Context, categoryID int64) (int, error)
}

type RequestRepository interface {
	Create(ctx context.Context, request *entity.ParticipationRequest) error
	GetByID(ctx context.Context, id int64) (*entity.ParticipationRequest, error)
	UpdateStatus(ctx context.Context, id int64, status entity.RequestStatus) error
	BulkUpdateStatus(ctx context.Context, ids []int64, status entity.RequestStatus) error

	// GetByIDsForEvent returns the requests among ids that belong to eventID.
	GetByIDsForEvent(ctx context.Context, eventID int64, ids []int64) ([]*entity.ParticipationRequest, error)
	// CancelAllPendingForEvent moves every PENDING request of the event to CANCELED.
	CancelAllPendingForEvent(ctx context.Context, eventID int64) (int64, error)
	HasActive(ctx context.Context, eventID, requesterID int64) (bool, error)

	GetByRequester(ctx context.Context, requesterID int64) ([]*entity.ParticipationRequest, error)
	GetByEvent(ctx context.Context, eventID int64) ([]*entity.ParticipationRequest, error)
	GetByEventAndStatus(ctx context.Context, eventID int64, statuses ...entity.RequestStatus) ([]*entity.ParticipationRequest, error)

	// Capacity counter
	CountConfirmed(ctx context.Context, eventID int64) (int, error)
	CountConfirmedByEvents(ctx context.Context, eventIDs []int64) (map[int64]int, error)
	FindCapacityDrift(ctx context.Context, limit int) ([]entity.CapacityDrift, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, ids []int64, from, size int) ([]*entity.User, error)
	Delete(ctx context.Context, id int64) error
}

type CategoryRepository interface {
	Create(ctx context.Context, category *entity.Category) error
	GetByID(ctx context.Context, id int64) (*entity.Category, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Update(ctx context.Context, category *entity.Category) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, from, size int) ([]*entity.Category, error)
}

type LocationRepository interface {
	Create(ctx context.Context, location *entity.Location) error
	GetByID(ctx context.Context, id int64) (*entity.Location, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

// CompilationRepository stores compilations together with their event sets.
// Create and Update write the compilation row and its events as one unit.
type CompilationRepository interface {
	Create(ctx context.Context, compilation *entity.Compilation) error
	GetByID(ctx context.Context, id int64) (*entity.Compilation, error)
	Update(ctx context.Context, compilation *entity.Compilation) error
	Delete(ctx context.Context, id int64) error
	// List filters by pinned when it is set, ordered by id.
	List(ctx context.Context, pinned *bool, from, size int) ([]*entity.Compilation, error)
}

// Repositories is one set of stores bound to the same unit of work.
type Repositories struct {
	Events       EventRepository
	Requests     RequestRepository
	Users        UserRepository
	Categories   CategoryRepository
	Locations    LocationRepository
	Compilations CompilationRepository
}

// EventScopeFunc runs inside an event's critical section. event is the
// locked, freshly read row; repos share the unit of work holding the lock.
type EventScopeFunc func(ctx context.Context, repos *Repositories, event *entity.Event) error

type TxManager interface {
	// Repositories returns stores outside any critical section, for reads
	// and for writes that touch no event aggregate.
	Repositories() *Repositories

	// WithEventLock serializes fn with every other call for the same event.
	// Calls for different events never block each other. If fn returns an
	// error nothing it wrote is kept.
	WithEventLock(ctx context.Context, eventID int64, fn EventScopeFunc) error
}
