// Package memory keeps every store in process memory. It backs the
// service tests and the "memory" database driver for local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ds124wfegd/ewm/internal/database"
	"github.com/ds124wfegd/ewm/internal/entity"
)

type Store struct {
	mu         sync.Mutex
	events     map[int64]*entity.Event
	requests   map[int64]*entity.ParticipationRequest
	users      map[int64]*entity.User
	categories map[int64]*entity.Category
	locations  map[int64]*entity.Location
	lastID     map[string]int64

	compilations map[int64]*entity.Compilation

	locks *eventLocks
}

func NewStore() *Store {
	return &Store{
		events:     make(map[int64]*entity.Event),
		requests:   make(map[int64]*entity.ParticipationRequest),
		users:      make(map[int64]*entity.User),
		categories: make(map[int64]*entity.Category),
		locations:  make(map[int64]*entity.Location),
		lastID:     make(map[string]int64),
		locks:      &eventLocks{slots: make(map[int64]*lockSlot)},

		compilations: make(map[int64]*entity.Compilation),
	}
}

// nextID must be called with s.mu held.
func (s *Store) nextID(table string) int64 {
	s.lastID[table]++
	return s.lastID[table]
}

func (s *Store) repositories(uow *unitOfWork) *database.Repositories {
	return &database.Repositories{
		Events:       &eventRepository{s: s, uow: uow},
		Requests:     &requestRepository{s: s, uow: uow},
		Users:        &userRepository{s: s, uow: uow},
		Categories:   &categoryRepository{s: s, uow: uow},
		Locations:    &locationRepository{s: s, uow: uow},
		Compilations: &compilationRepository{s: s},
	}
}

func (s *Store) Repositories() *database.Repositories {
	return s.repositories(nil)
}

func (s *Store) WithEventLock(ctx context.Context, eventID int64, fn database.EventScopeFunc) error {
	release, err := s.locks.acquire(ctx, eventID)
	if err != nil {
		// same kind the Postgres store reports when it gives up waiting
		return fmt.Errorf("%w: %w", entity.ErrConcurrentUpdate, err)
	}
	defer release()

	uow := &unitOfWork{}
	repos := s.repositories(uow)

	event, err := repos.Events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}

	if err := fn(context.WithoutCancel(ctx), repos, event); err != nil {
		s.mu.Lock()
		uow.rollback()
		s.mu.Unlock()
		return err
	}
	return nil
}

// unitOfWork collects undo steps for writes made inside a critical section.
// A nil unit of work records nothing.
type unitOfWork struct {
	undo []func()
}

// record must be called with Store.mu held.
func (u *unitOfWork) record(fn func()) {
	if u != nil {
		u.undo = append(u.undo, fn)
	}
}

func (u *unitOfWork) rollback() {
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// eventLocks is a mutex per event ID; slots are dropped once unused.
type eventLocks struct {
	mu    sync.Mutex
	slots map[int64]*lockSlot
}

func (l *eventLocks) acquire(ctx context.Context, id int64) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[id]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[id] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		return func() {
			<-slot.ch
			l.release(id, slot)
		}, nil
	case <-ctx.Done():
		l.release(id, slot)
		return nil, ctx.Err()
	}
}

func (l *eventLocks) release(id int64, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, id)
	}
}

func paginate[T any](items []T, from, size int) []T {
	if from < 0 {
		from = 0
	}
	if from >= len(items) {
		return nil
	}
	items = items[from:]
	if size > 0 && len(items) > size {
		items = items[:size]
	}
	return items
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
