package memory

import (
	"context"
	"sort"

	"github.com/ds124wfegd/ewm/internal/entity"
)

type compilationRepository struct {
	s *Store
}

func cloneCompilation(c *entity.Compilation) *entity.Compilation {
	clone := *c
	clone.EventIDs = append([]int64(nil), c.EventIDs...)
	return &clone
}

func (r *compilationRepository) Create(ctx context.Context, compilation *entity.Compilation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	compilation.ID = r.s.nextID("compilations")
	r.s.compilations[compilation.ID] = cloneCompilation(compilation)
	return nil
}

func (r *compilationRepository) GetByID(ctx context.Context, id int64) (*entity.Compilation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	compilation, ok := r.s.compilations[id]
	if !ok {
		return nil, entity.ErrCompilationNotFound
	}
	return cloneCompilation(compilation), nil
}

func (r *compilationRepository) Update(ctx context.Context, compilation *entity.Compilation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.compilations[compilation.ID]; !ok {
		return entity.ErrCompilationNotFound
	}
	r.s.compilations[compilation.ID] = cloneCompilation(compilation)
	return nil
}

func (r *compilationRepository) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.compilations[id]; !ok {
		return entity.ErrCompilationNotFound
	}
	delete(r.s.compilations, id)
	return nil
}

func (r *compilationRepository) List(ctx context.Context, pinned *bool, from, size int) ([]*entity.Compilation, error) {
	r.s.mu.Lock()
	var compilations []*entity.Compilation
	for _, compilation := range r.s.compilations {
		if pinned == nil || compilation.Pinned == *pinned {
			compilations = append(compilations, cloneCompilation(compilation))
		}
	}
	r.s.mu.Unlock()

	sort.Slice(compilations, func(i, j int) bool { return compilations[i].ID < compilations[j].ID })
	return paginate(compilations, from, size), nil
}
