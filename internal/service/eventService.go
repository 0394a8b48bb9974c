package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ds124wfegd/ewm/config"
	"github.com/ds124wfegd/ewm/internal/database"
	"github.com/ds124wfegd/ewm/internal/entity"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	SortEventDate = "EVENT_DATE"
	SortViews     = "VIEWS"

	defaultPageSize = 10
)

type LocationRequest struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// NewEventRequest represents the data needed to create an event
type NewEventRequest struct {
	Title             string            `json:"title" validate:"required,notblank,min=3,max=120"`
	Annotation        string            `json:"annotation" validate:"required,notblank,min=20,max=2000"`
	Description       string            `json:"description" validate:"required,notblank,min=20,max=7000"`
	Category          int64             `json:"category" validate:"required,gt=0"`
	Location          *LocationRequest  `json:"location" validate:"required"`
	EventDate         entity.CustomTime `json:"eventDate"`
	Paid              *bool             `json:"paid"`
	ParticipantLimit  *int              `json:"participantLimit" validate:"omitempty,gte=0"`
	RequestModeration *bool             `json:"requestModeration"`
}

// UpdateEventRequest carries optional field edits and an optional state action.
type UpdateEventRequest struct {
	Title             *string             `json:"title,omitempty" validate:"omitempty,notblank,min=3,max=120"`
	Annotation        *string             `json:"annotation,omitempty" validate:"omitempty,notblank,min=20,max=2000"`
	Description       *string             `json:"description,omitempty" validate:"omitempty,notblank,min=20,max=7000"`
	Category          *int64              `json:"category,omitempty" validate:"omitempty,gt=0"`
	Location          *LocationRequest    `json:"location,omitempty"`
	EventDate         *entity.CustomTime  `json:"eventDate,omitempty"`
	Paid              *bool               `json:"paid,omitempty"`
	ParticipantLimit  *int                `json:"participantLimit,omitempty" validate:"omitempty,gte=0"`
	RequestModeration *bool               `json:"requestModeration,omitempty"`
	StateAction       *entity.StateAction `json:"stateAction,omitempty" validate:"omitempty,oneof=PUBLISH_EVENT REJECT_EVENT SEND_TO_REVIEW CANCEL_REVIEW"`
}

// PublicSearchParams filters the public event listing. Only published
// events are ever returned.
type PublicSearchParams struct {
	Text          string
	Categories    []int64
	Paid          *bool
	RangeStart    *time.Time
	RangeEnd      *time.Time
	OnlyAvailable bool
	Sort          string `validate:"omitempty,oneof=EVENT_DATE VIEWS"`
	From          int    `validate:"gte=0"`
	Size          int    `validate:"gte=0"`
}

type AdminSearchParams struct {
	Users      []int64
	States     []entity.EventState
	Categories []int64
	RangeStart *time.Time
	RangeEnd   *time.Time
	From       int `validate:"gte=0"`
	Size       int `validate:"gte=0"`
}

type eventService struct {
	*eventReader
	tx        database.TxManager
	queue     TaskPublisher
	lifecycle config.LifecycleConfig
}

// NewEventService creates a new instance of EventService. stats, likes and
// queue may be nil when the collaborators are disabled.
func NewEventService(
	tx database.TxManager,
	stats StatsClient,
	likes LikesClient,
	queue TaskPublisher,
	cfg *config.LifecycleConfig,
) EventService {
	lifecycle := config.LifecycleConfig{OwnerLeadTime: 2 * time.Hour, AdminLeadTime: time.Hour}
	if cfg != nil {
		if cfg.OwnerLeadTime > 0 {
			lifecycle.OwnerLeadTime = cfg.OwnerLeadTime
		}
		if cfg.AdminLeadTime > 0 {
			lifecycle.AdminLeadTime = cfg.AdminLeadTime
		}
	}

	return &eventService{
		eventReader: newEventReader(tx.Repositories(), stats, likes),
		tx:          tx,
		queue:       queue,
		lifecycle:   lifecycle,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, initiatorID int64, req *NewEventRequest) (*entity.EventFull, error) {
	if req == nil {
		return nil, entity.Validationf("event body is required")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now()
	if req.EventDate.IsZero() {
		return nil, entity.Validationf("field eventDate must not be empty")
	}
	if req.EventDate.Before(now.Add(s.lifecycle.OwnerLeadTime)) {
		return nil, entity.Validationf("event date must be at least %s after the current moment", s.lifecycle.OwnerLeadTime)
	}

	if err := s.checkUser(ctx, initiatorID); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, req.Category); err != nil {
		return nil, err
	}

	location := &entity.Location{Lat: req.Location.Lat, Lon: req.Location.Lon}
	if err := s.repos.Locations.Create(ctx, location); err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}

	event := &entity.Event{
		InitiatorID:       initiatorID,
		CategoryID:        req.Category,
		LocationID:        location.ID,
		Title:             req.Title,
		Annotation:        req.Annotation,
		Description:       req.Description,
		RequestModeration: true,
		State:             entity.EventStatePending,
		EventDate:         entity.NewCustomTime(req.EventDate.Time),
		CreatedOn:         entity.NewCustomTime(now),
	}
	if req.Paid != nil {
		event.Paid = *req.Paid
	}
	if req.ParticipantLimit != nil {
		event.ParticipantLimit = *req.ParticipantLimit
	}
	if req.RequestModeration != nil {
		event.RequestModeration = *req.RequestModeration
	}

	if err := s.repos.Events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"event_id":     event.ID,
		"initiator_id": initiatorID,
	}).Info("Event created")

	return s.enrich(ctx, []*entity.Event{event})[0], nil
}

func (s *eventService) TransitionEvent(ctx context.Context, eventID int64, actor entity.Actor, action entity.StateAction) (*entity.Event, error) {
	if actor.Role == entity.ActorOwner {
		if err := s.checkUser(ctx, actor.ID); err != nil {
			return nil, err
		}
	}

	var result *entity.Event
	err := s.tx.WithEventLock(ctx, eventID, func(ctx context.Context, repos *database.Repositories, event *entity.Event) error {
		if actor.Role == entity.ActorOwner && event.InitiatorID != actor.ID {
			return entity.ErrNotInitiator
		}

		before := event.State
		if err := event.Apply(actor.Role, action, s.now()); err != nil {
			return err
		}
		result = event
		if event.State == before {
			return nil
		}
		if err := repos.Events.Update(ctx, event); err != nil {
			return fmt.Errorf("failed to update event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyTransition(ctx, result, action)
	return result, nil
}

func (s *eventService) UpdateEventFields(ctx context.Context, eventID int64, actor entity.Actor, req *UpdateEventRequest) (*entity.EventFull, error) {
	if req == nil {
		req = &UpdateEventRequest{}
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if actor.Role == entity.ActorOwner {
		if err := s.checkUser(ctx, actor.ID); err != nil {
			return nil, err
		}
	}
	if req.Category != nil {
		if err := s.checkCategory(ctx, *req.Category); err != nil {
			return nil, err
		}
	}

	var result *entity.Event
	err := s.tx.WithEventLock(ctx, eventID, func(ctx context.Context, repos *database.Repositories, event *entity.Event) error {
		if actor.Role == entity.ActorOwner && event.InitiatorID != actor.ID {
			return entity.ErrNotInitiator
		}
		if err := event.CheckEditable(actor.Role); err != nil {
			return err
		}
		if err := s.checkLeadTime(actor.Role, req.EventDate); err != nil {
			return err
		}

		applyFields(event, req)

		if req.Location != nil {
			location := &entity.Location{Lat: req.Location.Lat, Lon: req.Location.Lon}
			if err := repos.Locations.Create(ctx, location); err != nil {
				return fmt.Errorf("failed to create location: %w", err)
			}
			event.LocationID = location.ID
		}

		if req.StateAction != nil {
			if err := event.Apply(actor.Role, *req.StateAction, s.now()); err != nil {
				return err
			}
		}

		if err := repos.Events.Update(ctx, event); err != nil {
			return fmt.Errorf("failed to update event: %w", err)
		}
		result = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.StateAction != nil {
		s.notifyTransition(ctx, result, *req.StateAction)
	}

	return s.enrich(ctx, []*entity.Event{result})[0], nil
}

func (s *eventService) checkLeadTime(role entity.ActorRole, date *entity.CustomTime) error {
	if date == nil {
		return nil
	}
	now := s.now()
	switch role {
	case entity.ActorAdmin:
		if date.Before(now.Add(s.lifecycle.AdminLeadTime)) {
			return entity.Validationf("event date must be at least %s after the current moment", s.lifecycle.AdminLeadTime)
		}
	default:
		if date.Before(now.Add(s.lifecycle.OwnerLeadTime)) {
			return entity.Conflictf("event date must be at least %s after the current moment", s.lifecycle.OwnerLeadTime)
		}
	}
	return nil
}

func applyFields(event *entity.Event, req *UpdateEventRequest) {
	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Annotation != nil {
		event.Annotation = *req.Annotation
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Category != nil {
		event.CategoryID = *req.Category
	}
	if req.EventDate != nil {
		event.EventDate = entity.NewCustomTime(req.EventDate.Time)
	}
	if req.Paid != nil {
		event.Paid = *req.Paid
	}
	if req.ParticipantLimit != nil {
		event.ParticipantLimit = *req.ParticipantLimit
	}
	if req.RequestModeration != nil {
		event.RequestModeration = *req.RequestModeration
	}
}

func (s *eventService) GetUserEvents(ctx context.Context, userID int64, from, size int) ([]*entity.EventFull, error) {
	if err := s.checkUser(ctx, userID); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = defaultPageSize
	}

	events, err := s.repos.Events.ListByInitiator(ctx, userID, from, size)
	if err != nil {
		return nil, fmt.Errorf("failed to get user events: %w", err)
	}
	return s.enrich(ctx, events), nil
}

func (s *eventService) GetUserEvent(ctx context.Context, userID, eventID int64) (*entity.EventFull, error) {
	if err := s.checkUser(ctx, userID); err != nil {
		return nil, err
	}

	event, err := s.repos.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.InitiatorID != userID {
		return nil, entity.NotFoundf("event with id=%d created by user with id=%d not found", eventID, userID)
	}
	return s.enrich(ctx, []*entity.Event{event})[0], nil
}

func (s *eventService) GetPublishedEvent(ctx context.Context, eventID int64, hit *entity.Hit) (*entity.EventFull, error) {
	event, err := s.repos.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.State != entity.EventStatePublished {
		return nil, entity.NotFoundf("event with id=%d was not found", eventID)
	}

	s.recordHit(ctx, hit)
	return s.enrich(ctx, []*entity.Event{event})[0], nil
}

func (s *eventService) SearchPublished(ctx context.Context, params *PublicSearchParams, hit *entity.Hit) ([]*entity.EventFull, error) {
	if params == nil {
		params = &PublicSearchParams{}
	}
	if err := validateStruct(params); err != nil {
		return nil, err
	}
	if err := checkRange(params.RangeStart, params.RangeEnd); err != nil {
		return nil, err
	}

	size := params.Size
	if size == 0 {
		size = defaultPageSize
	}

	filter := &entity.EventFilter{
		Text:          params.Text,
		States:        []entity.EventState{entity.EventStatePublished},
		CategoryIDs:   params.Categories,
		Paid:          params.Paid,
		RangeStart:    params.RangeStart,
		RangeEnd:      params.RangeEnd,
		OnlyAvailable: params.OnlyAvailable,
		From:          params.From,
		Size:          size,
	}
	if filter.RangeStart == nil && filter.RangeEnd == nil {
		now := s.now()
		filter.RangeStart = &now
	}
	// Views live outside the database, so the whole result is sorted here
	// before paging.
	if params.Sort == SortViews {
		filter.From, filter.Size = 0, 0
	}

	events, err := s.repos.Events.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}

	s.recordHit(ctx, hit)

	result := s.enrich(ctx, events)
	if params.Sort == SortViews {
		sort.SliceStable(result, func(i, j int) bool { return result[i].Views > result[j].Views })
		result = page(result, params.From, size)
	}
	return result, nil
}

func (s *eventService) SearchAdmin(ctx context.Context, params *AdminSearchParams) ([]*entity.EventFull, error) {
	if params == nil {
		params = &AdminSearchParams{}
	}
	if err := validateStruct(params); err != nil {
		return nil, err
	}
	if err := checkRange(params.RangeStart, params.RangeEnd); err != nil {
		return nil, err
	}
	for _, state := range params.States {
		if !state.Valid() {
			return nil, entity.Validationf("unknown event state: %s", state)
		}
	}

	size := params.Size
	if size == 0 {
		size = defaultPageSize
	}

	events, err := s.repos.Events.Search(ctx, &entity.EventFilter{
		InitiatorIDs: params.Users,
		States:       params.States,
		CategoryIDs:  params.Categories,
		RangeStart:   params.RangeStart,
		RangeEnd:     params.RangeEnd,
		From:         params.From,
		Size:         size,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}
	return s.enrich(ctx, events), nil
}

func (s *eventService) TopLiked(ctx context.Context, count int) ([]*entity.EventFull, error) {
	if count <= 0 {
		count = defaultPageSize
	}
	if s.likes == nil {
		return []*entity.EventFull{}, nil
	}

	ids, err := s.likes.Top(ctx, count)
	if err != nil {
		logrus.WithError(err).Warn("Likes collaborator unavailable, top is empty")
		return []*entity.EventFull{}, nil
	}
	if len(ids) == 0 {
		return []*entity.EventFull{}, nil
	}

	events, err := s.repos.Events.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get top events: %w", err)
	}

	byID := make(map[int64]*entity.Event, len(events))
	for _, event := range events {
		if event.State == entity.EventStatePublished {
			byID[event.ID] = event
		}
	}
	ordered := make([]*entity.Event, 0, len(byID))
	for _, id := range ids {
		if event, ok := byID[id]; ok {
			ordered = append(ordered, event)
		}
	}
	return s.enrich(ctx, ordered), nil
}

func (s *eventService) Like(ctx context.Context, userID, eventID int64) error {
	if err := s.checkLikeable(ctx, userID, eventID); err != nil {
		return err
	}
	if s.likes == nil {
		return errLikesDisabled
	}
	if err := s.likes.Like(ctx, userID, eventID); err != nil {
		return fmt.Errorf("failed to add like: %w", err)
	}
	return nil
}

func (s *eventService) Unlike(ctx context.Context, userID, eventID int64) error {
	if err := s.checkUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.repos.Events.GetByID(ctx, eventID); err != nil {
		return err
	}
	if s.likes == nil {
		return errLikesDisabled
	}
	if err := s.likes.Unlike(ctx, userID, eventID); err != nil {
		return fmt.Errorf("failed to remove like: %w", err)
	}
	return nil
}

func (s *eventService) checkLikeable(ctx context.Context, userID, eventID int64) error {
	if err := s.checkUser(ctx, userID); err != nil {
		return err
	}
	event, err := s.repos.Events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.State != entity.EventStatePublished {
		return entity.ErrEventNotPublished
	}
	if event.InitiatorID == userID {
		return entity.ErrLikeOwnEvent
	}
	return nil
}

func (s *eventService) checkUser(ctx context.Context, userID int64) error {
	ok, err := s.repos.Users.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !ok {
		return entity.NotFoundf("user with id=%d was not found", userID)
	}
	return nil
}

func (s *eventService) checkCategory(ctx context.Context, categoryID int64) error {
	ok, err := s.repos.Categories.Exists(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("failed to check category: %w", err)
	}
	if !ok {
		return entity.NotFoundf("category with id=%d was not found", categoryID)
	}
	return nil
}

func (s *eventService) recordHit(ctx context.Context, hit *entity.Hit) {
	if hit == nil || s.stats == nil {
		return
	}
	if hit.Timestamp.IsZero() {
		hit.Timestamp = s.now()
	}
	if err := s.stats.RecordHit(ctx, hit); err != nil {
		logrus.WithError(err).WithField("uri", hit.URI).Warn("Failed to record hit")
	}
}

func (s *eventService) notifyTransition(ctx context.Context, event *entity.Event, action entity.StateAction) {
	var taskType string
	switch action {
	case entity.StateActionPublish:
		taskType = TaskTypeEventPublished
	case entity.StateActionReject:
		taskType = TaskTypeEventRejected
	default:
		return
	}

	publish(ctx, s.queue, taskType, map[string]interface{}{
		"event_id":     event.ID,
		"initiator_id": event.InitiatorID,
		"title":        event.Title,
		"state":        string(event.State),
	})
}

// publish hands a notification to the queue. Failures never reach callers.
func publish(ctx context.Context, queue TaskPublisher, taskType string, data map[string]interface{}) {
	if queue == nil {
		return
	}

	task := &Task{
		ID:   uuid.NewString(),
		Type: taskType,
		Data: data,
	}
	if err := queue.Publish(context.WithoutCancel(ctx), task); err != nil {
		logrus.WithError(err).WithField("task_type", taskType).Warn("Failed to publish notification")
	}
}

func checkRange(start, end *time.Time) error {
	if start != nil && end != nil && start.After(*end) {
		return entity.Validationf("rangeStart must not be after rangeEnd")
	}
	return nil
}

func page[T any](items []T, from, size int) []T {
	if from >= len(items) {
		return []T{}
	}
	items = items[from:]
	if size > 0 && len(items) > size {
		items = items[:size]
	}
	return items
}
