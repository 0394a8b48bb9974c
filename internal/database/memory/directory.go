package memory

import (
	"context"
	"sort"

	"github.com/ds124wfegd/ewm/internal/entity"
)

type userRepository struct {
	s   *Store
	uow *unitOfWork
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return entity.ErrUserAlreadyExists
		}
	}
	user.ID = r.s.nextID("users")
	c := *user
	r.s.users[user.ID] = &c

	id := user.ID
	r.uow.record(func() { delete(r.s.users, id) })
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, entity.ErrUserNotFound
	}
	c := *user
	return &c, nil
}

func (r *userRepository) Exists(ctx context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, ok := r.s.users[id]
	return ok, nil
}

func (r *userRepository) List(ctx context.Context, ids []int64, from, size int) ([]*entity.User, error) {
	r.s.mu.Lock()
	var users []*entity.User
	for _, user := range r.s.users {
		if len(ids) == 0 || containsID(ids, user.ID) {
			c := *user
			users = append(users, &c)
		}
	}
	r.s.mu.Unlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return paginate(users, from, size), nil
}

// Delete cascades to the user's events and requests like the Postgres
// foreign keys do. Confirmed aggregates of other events are left as they
// are; the reconciliation worker repairs them.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return entity.ErrUserNotFound
	}
	delete(r.s.users, id)

	for eventID, event := range r.s.events {
		if event.InitiatorID == id {
			delete(r.s.events, eventID)
		}
	}
	for requestID, request := range r.s.requests {
		_, eventAlive := r.s.events[request.EventID]
		if request.RequesterID == id || !eventAlive {
			delete(r.s.requests, requestID)
		}
	}
	for _, compilation := range r.s.compilations {
		kept := compilation.EventIDs[:0]
		for _, eventID := range compilation.EventIDs {
			if _, ok := r.s.events[eventID]; ok {
				kept = append(kept, eventID)
			}
		}
		compilation.EventIDs = kept
	}
	return nil
}

type categoryRepository struct {
	s   *Store
	uow *unitOfWork
}

func (r *categoryRepository) nameTaken(name string, exceptID int64) bool {
	for _, existing := range r.s.categories {
		if existing.Name == name && existing.ID != exceptID {
			return true
		}
	}
	return false
}

func (r *categoryRepository) Create(ctx context.Context, category *entity.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.nameTaken(category.Name, 0) {
		return entity.ErrCategoryAlreadyExists
	}
	category.ID = r.s.nextID("categories")
	c := *category
	r.s.categories[category.ID] = &c

	id := category.ID
	r.uow.record(func() { delete(r.s.categories, id) })
	return nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id int64) (*entity.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	category, ok := r.s.categories[id]
	if !ok {
		return nil, entity.ErrCategoryNotFound
	}
	c := *category
	return &c, nil
}

func (r *categoryRepository) Exists(ctx context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, ok := r.s.categories[id]
	return ok, nil
}

func (r *categoryRepository) Update(ctx context.Context, category *entity.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.categories[category.ID]
	if !ok {
		return entity.ErrCategoryNotFound
	}
	if r.nameTaken(category.Name, category.ID) {
		return entity.ErrCategoryAlreadyExists
	}
	prev := current.Name
	current.Name = category.Name
	r.uow.record(func() { current.Name = prev })
	return nil
}

func (r *categoryRepository) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.categories[id]; !ok {
		return entity.ErrCategoryNotFound
	}
	for _, event := range r.s.events {
		if event.CategoryID == id {
			return entity.ErrCategoryInUse
		}
	}
	delete(r.s.categories, id)
	return nil
}

func (r *categoryRepository) List(ctx context.Context, from, size int) ([]*entity.Category, error) {
	r.s.mu.Lock()
	var categories []*entity.Category
	for _, category := range r.s.categories {
		c := *category
		categories = append(categories, &c)
	}
	r.s.mu.Unlock()

	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return paginate(categories, from, size), nil
}

type locationRepository struct {
	s   *Store
	uow *unitOfWork
}

func (r *locationRepository) Create(ctx context.Context, location *entity.Location) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	location.ID = r.s.nextID("locations")
	c := *location
	r.s.locations[location.ID] = &c

	id := location.ID
	r.uow.record(func() { delete(r.s.locations, id) })
	return nil
}

func (r *locationRepository) GetByID(ctx context.Context, id int64) (*entity.Location, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	location, ok := r.s.locations[id]
	if !ok {
		return nil, entity.ErrLocationNotFound
	}
	c := *location
	return &c, nil
}

func (r *locationRepository) Exists(ctx context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, ok := r.s.locations[id]
	return ok, nil
}
