package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/ds124wfegd/ewm/internal/entity"
)

type eventRepository struct {
	s   *Store
	uow *unitOfWork
}

func copyEvent(e *entity.Event) *entity.Event {
	c := *e
	if e.PublishedOn != nil {
		published := *e.PublishedOn
		c.PublishedOn = &published
	}
	return &c
}

func (r *eventRepository) Create(ctx context.Context, event *entity.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	event.ID = r.s.nextID("events")
	r.s.events[event.ID] = copyEvent(event)

	id := event.ID
	r.uow.record(func() { delete(r.s.events, id) })
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id int64) (*entity.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	event, ok := r.s.events[id]
	if !ok {
		return nil, entity.ErrEventNotFound
	}
	return copyEvent(event), nil
}

// replace must be called with Store.mu held.
func (r *eventRepository) replace(id int64, next *entity.Event) {
	prev := r.s.events[id]
	r.s.events[id] = next
	r.uow.record(func() { r.s.events[id] = prev })
}

func (r *eventRepository) Update(ctx context.Context, event *entity.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.events[event.ID]
	if !ok {
		return entity.ErrEventNotFound
	}
	next := copyEvent(event)
	// The aggregate has its own writers.
	next.ConfirmedRequests = current.ConfirmedRequests
	next.InitiatorID = current.InitiatorID
	next.CreatedOn = current.CreatedOn
	r.replace(event.ID, next)
	return nil
}

func (r *eventRepository) AddConfirmed(ctx context.Context, eventID int64, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.events[eventID]
	if !ok {
		return entity.ErrEventNotFound
	}
	next := copyEvent(current)
	next.ConfirmedRequests += delta
	r.replace(eventID, next)
	return nil
}

func (r *eventRepository) SetConfirmed(ctx context.Context, eventID int64, confirmed int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.events[eventID]
	if !ok {
		return entity.ErrEventNotFound
	}
	next := copyEvent(current)
	next.ConfirmedRequests = confirmed
	r.replace(eventID, next)
	return nil
}

func (r *eventRepository) selectEvents(match func(*entity.Event) bool, less func(a, b *entity.Event) bool) []*entity.Event {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var events []*entity.Event
	for _, event := range r.s.events {
		if match(event) {
			events = append(events, copyEvent(event))
		}
	}
	sort.Slice(events, func(i, j int) bool { return less(events[i], events[j]) })
	return events
}

func byID(a, b *entity.Event) bool { return a.ID < b.ID }

func byDate(a, b *entity.Event) bool {
	if a.EventDate.Equal(b.EventDate.Time) {
		return a.ID < b.ID
	}
	return a.EventDate.Before(b.EventDate.Time)
}

func (r *eventRepository) ListByInitiator(ctx context.Context, initiatorID int64, from, size int) ([]*entity.Event, error) {
	events := r.selectEvents(func(e *entity.Event) bool { return e.InitiatorID == initiatorID }, byID)
	return paginate(events, from, size), nil
}

func (r *eventRepository) GetByIDs(ctx context.Context, ids []int64) ([]*entity.Event, error) {
	return r.selectEvents(func(e *entity.Event) bool { return containsID(ids, e.ID) }, byID), nil
}

func (r *eventRepository) Search(ctx context.Context, filter *entity.EventFilter) ([]*entity.Event, error) {
	if filter == nil {
		filter = &entity.EventFilter{}
	}
	text := strings.ToLower(filter.Text)

	match := func(e *entity.Event) bool {
		if text != "" &&
			!strings.Contains(strings.ToLower(e.Annotation), text) &&
			!strings.Contains(strings.ToLower(e.Description), text) {
			return false
		}
		if len(filter.InitiatorIDs) > 0 && !containsID(filter.InitiatorIDs, e.InitiatorID) {
			return false
		}
		if len(filter.CategoryIDs) > 0 && !containsID(filter.CategoryIDs, e.CategoryID) {
			return false
		}
		if len(filter.States) > 0 {
			found := false
			for _, state := range filter.States {
				found = found || state == e.State
			}
			if !found {
				return false
			}
		}
		if filter.Paid != nil && e.Paid != *filter.Paid {
			return false
		}
		if filter.RangeStart != nil && e.EventDate.Before(*filter.RangeStart) {
			return false
		}
		if filter.RangeEnd != nil && e.EventDate.After(*filter.RangeEnd) {
			return false
		}
		if filter.OnlyAvailable && e.LimitReached(e.ConfirmedRequests) {
			return false
		}
		return true
	}

	return paginate(r.selectEvents(match, byDate), filter.From, filter.Size), nil
}

func (r *eventRepository) CountByCategory(ctx context.Context, categoryID int64) (int, error) {
	return len(r.selectEvents(func(e *entity.Event) bool { return e.CategoryID == categoryID }, byID)), nil
}
