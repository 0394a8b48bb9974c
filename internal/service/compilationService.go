package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ds124wfegd/ewm/internal/database"
	"github.com/ds124wfegd/ewm/internal/entity"
	"github.com/sirupsen/logrus"
)

type NewCompilationRequest struct {
	Events []int64 `json:"events"`
	Pinned bool    `json:"pinned"`
	Title  string  `json:"title" validate:"required,notblank,max=50"`
}

// UpdateCompilationRequest replaces only the fields that are present. An
// empty events list clears the compilation, a missing one keeps it.
type UpdateCompilationRequest struct {
	Events []int64 `json:"events"`
	Pinned *bool   `json:"pinned"`
	Title  *string `json:"title" validate:"omitempty,notblank,max=50"`
}

type compilationService struct {
	*eventReader
	compilations database.CompilationRepository
}

func NewCompilationService(repos *database.Repositories, stats StatsClient, likes LikesClient) CompilationService {
	return &compilationService{
		eventReader:  newEventReader(repos, stats, likes),
		compilations: repos.Compilations,
	}
}

func (s *compilationService) CreateCompilation(ctx context.Context, req *NewCompilationRequest) (*entity.CompilationView, error) {
	if req == nil {
		return nil, entity.Validationf("compilation body is required")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	eventIDs, err := s.existingEvents(ctx, req.Events)
	if err != nil {
		return nil, err
	}

	compilation := &entity.Compilation{
		Title:    strings.TrimSpace(req.Title),
		Pinned:   req.Pinned,
		EventIDs: eventIDs,
	}
	if err := s.compilations.Create(ctx, compilation); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"compilation_id": compilation.ID,
		"events":         len(eventIDs),
	}).Info("Compilation created")

	return s.views(ctx, []*entity.Compilation{compilation})[0], nil
}

func (s *compilationService) UpdateCompilation(ctx context.Context, id int64, req *UpdateCompilationRequest) (*entity.CompilationView, error) {
	if req == nil {
		req = &UpdateCompilationRequest{}
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	compilation, err := s.compilations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		compilation.Title = strings.TrimSpace(*req.Title)
	}
	if req.Pinned != nil {
		compilation.Pinned = *req.Pinned
	}
	if req.Events != nil {
		if compilation.EventIDs, err = s.existingEvents(ctx, req.Events); err != nil {
			return nil, err
		}
	}

	if err := s.compilations.Update(ctx, compilation); err != nil {
		return nil, err
	}

	logrus.WithField("compilation_id", id).Info("Compilation updated")
	return s.views(ctx, []*entity.Compilation{compilation})[0], nil
}

func (s *compilationService) DeleteCompilation(ctx context.Context, id int64) error {
	if err := s.compilations.Delete(ctx, id); err != nil {
		return err
	}
	logrus.WithField("compilation_id", id).Info("Compilation deleted")
	return nil
}

func (s *compilationService) GetCompilation(ctx context.Context, id int64) (*entity.CompilationView, error) {
	compilation, err := s.compilations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, []*entity.Compilation{compilation})[0], nil
}

func (s *compilationService) GetCompilations(ctx context.Context, pinned *bool, from, size int) ([]*entity.CompilationView, error) {
	if from < 0 || size < 0 {
		return nil, entity.Validationf("from and size must not be negative")
	}
	if size == 0 {
		size = defaultPageSize
	}

	compilations, err := s.compilations.List(ctx, pinned, from, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list compilations: %w", err)
	}
	return s.views(ctx, compilations), nil
}

// existingEvents drops duplicates and IDs of events that do not exist,
// keeping the order of first appearance.
func (s *compilationService) existingEvents(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return []int64{}, nil
	}

	events, err := s.repos.Events.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get compilation events: %w", err)
	}
	found := make(map[int64]bool, len(events))
	for _, event := range events {
		found[event.ID] = true
	}

	result := make([]int64, 0, len(found))
	for _, id := range ids {
		if found[id] {
			result = append(result, id)
			delete(found, id)
		}
	}
	if len(result) < len(ids) {
		logrus.WithField("requested", ids).Debug("Unknown or repeated events dropped from compilation")
	}
	return result, nil
}

// views enriches the events of all compilations in one pass.
func (s *compilationService) views(ctx context.Context, compilations []*entity.Compilation) []*entity.CompilationView {
	result := make([]*entity.CompilationView, 0, len(compilations))
	if len(compilations) == 0 {
		return result
	}

	seen := make(map[int64]bool)
	var ids []int64
	for _, compilation := range compilations {
		for _, id := range compilation.EventIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	byID := make(map[int64]*entity.EventFull, len(ids))
	if len(ids) > 0 {
		events, err := s.repos.Events.GetByIDs(ctx, ids)
		if err != nil {
			logrus.WithError(err).Warn("Failed to load compilation events")
		}
		for _, event := range s.enrich(ctx, events) {
			byID[event.ID] = event
		}
	}

	for _, compilation := range compilations {
		view := &entity.CompilationView{
			ID:     compilation.ID,
			Title:  compilation.Title,
			Pinned: compilation.Pinned,
			Events: make([]*entity.EventFull, 0, len(compilation.EventIDs)),
		}
		for _, id := range compilation.EventIDs {
			if event, ok := byID[id]; ok {
				view.Events = append(view.Events, event)
			}
		}
		result = append(result, view)
	}
	return result
}
