package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ds124wfegd/ewm/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEvent_Success(t *testing.T) {
	f := newFixture(t, nil, nil)
	owner := f.user(t, "alice")

	req := f.newEventRequest(10, true)
	req.Paid = nil
	req.RequestModeration = nil

	event, err := f.events.CreateEvent(context.Background(), owner, req)

	require.NoError(t, err)
	assert.NotZero(t, event.ID)
	assert.Equal(t, owner, event.InitiatorID)
	assert.Equal(t, entity.EventStatePending, event.State)
	assert.True(t, event.RequestModeration, "moderation is on by default")
	assert.False(t, event.Paid)
	assert.Equal(t, 10, event.ParticipantLimit)
	assert.Zero(t, event.ConfirmedRequests)
	require.NotNil(t, event.Location)
	assert.Equal(t, 55.75, event.Location.Lat)
}

func TestCreateEvent_Rejected(t *testing.T) {
	f := newFixture(t, nil, nil)
	owner := f.user(t, "alice")

	tests := []struct {
		name    string
		userID  int64
		mutate  func(req *NewEventRequest)
		wantErr error
	}{
		{
			name:    "short title",
			userID:  owner,
			mutate:  func(req *NewEventRequest) { req.Title = "ab" },
			wantErr: entity.ErrValidation,
		},
		{
			name:    "blank annotation",
			userID:  owner,
			mutate:  func(req *NewEventRequest) { req.Annotation = "                        " },
			wantErr: entity.ErrValidation,
		},
		{
			name:    "negative limit",
			userID:  owner,
			mutate:  func(req *NewEventRequest) { limit := -1; req.ParticipantLimit = &limit },
			wantErr: entity.ErrValidation,
		},
		{
			name:    "missing location",
			userID:  owner,
			mutate:  func(req *NewEventRequest) { req.Location = nil },
			wantErr: entity.ErrValidation,
		},
		{
			name:    "date inside lead time",
			userID:  owner,
			mutate:  func(req *NewEventRequest) { req.EventDate = entity.NewCustomTime(time.Now().Add(time.Hour)) },
			wantErr: entity.ErrValidation,
		},
		{
			name:    "unknown category",
			userID:  owner,
			mutate:  func(req *NewEventRequest) { req.Category = 999 },
			wantErr: entity.ErrNotFound,
		},
		{
			name:    "unknown user",
			userID:  999,
			mutate:  func(req *NewEventRequest) {},
			wantErr: entity.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.newEventRequest(0, true)
			tt.mutate(req)

			_, err := f.events.CreateEvent(context.Background(), tt.userID, req)

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTransitionEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "alice")
	stranger := f.user(t, "bob")

	created, err := f.events.CreateEvent(ctx, owner, f.newEventRequest(0, true))
	require.NoError(t, err)

	_, err = f.events.TransitionEvent(ctx, created.ID, entity.Owner(stranger), entity.StateActionCancelReview)
	assert.ErrorIs(t, err, entity.ErrAccess)

	event, err := f.events.TransitionEvent(ctx, created.ID, entity.Owner(owner), entity.StateActionCancelReview)
	require.NoError(t, err)
	assert.Equal(t, entity.EventStateCanceled, event.State)

	// Repeating the cancel changes nothing.
	event, err = f.events.TransitionEvent(ctx, created.ID, entity.Owner(owner), entity.StateActionCancelReview)
	require.NoError(t, err)
	assert.Equal(t, entity.EventStateCanceled, event.State)

	_, err = f.events.TransitionEvent(ctx, created.ID, entity.Admin(), entity.StateActionPublish)
	assert.ErrorIs(t, err, entity.ErrConflict)

	_, err = f.events.TransitionEvent(ctx, created.ID, entity.Owner(owner), entity.StateActionSendToReview)
	require.NoError(t, err)

	event, err = f.events.TransitionEvent(ctx, created.ID, entity.Admin(), entity.StateActionPublish)
	require.NoError(t, err)
	assert.Equal(t, entity.EventStatePublished, event.State)
	require.NotNil(t, event.PublishedOn)

	_, err = f.events.TransitionEvent(ctx, created.ID, entity.Owner(owner), entity.StateActionCancelReview)
	assert.ErrorIs(t, err, entity.ErrEventPublished)

	tasks := f.queue.ofType(TaskTypeEventPublished)
	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].Data["event_id"])
	assert.Equal(t, owner, tasks[0].Data["initiator_id"])
}

func TestTransitionEvent_UnknownEvent(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.events.TransitionEvent(context.Background(), 42, entity.Admin(), entity.StateActionPublish)

	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestUpdateEventFields_LeadTimes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "alice")

	created, err := f.events.CreateEvent(ctx, owner, f.newEventRequest(0, true))
	require.NoError(t, err)

	soon := entity.NewCustomTime(time.Now().Add(90 * time.Minute))
	tooSoon := entity.NewCustomTime(time.Now().Add(30 * time.Minute))

	_, err = f.events.UpdateEventFields(ctx, created.ID, entity.Owner(owner), &UpdateEventRequest{EventDate: &soon})
	assert.ErrorIs(t, err, entity.ErrConflict, "owner needs two hours")

	_, err = f.events.UpdateEventFields(ctx, created.ID, entity.Admin(), &UpdateEventRequest{EventDate: &tooSoon})
	assert.ErrorIs(t, err, entity.ErrValidation, "admin needs one hour")

	event, err := f.events.UpdateEventFields(ctx, created.ID, entity.Admin(), &UpdateEventRequest{EventDate: &soon})
	require.NoError(t, err)
	assert.True(t, event.EventDate.Equal(soon.Time))
}

func TestUpdateEventFields_OwnerEditsAndResubmits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "alice")

	created, err := f.events.CreateEvent(ctx, owner, f.newEventRequest(0, true))
	require.NoError(t, err)
	_, err = f.events.TransitionEvent(ctx, created.ID, entity.Admin(), entity.StateActionReject)
	require.NoError(t, err)

	title := "Jazz in the old park"
	action := entity.StateActionSendToReview
	limit := 25
	event, err := f.events.UpdateEventFields(ctx, created.ID, entity.Owner(owner), &UpdateEventRequest{
		Title:            &title,
		ParticipantLimit: &limit,
		Location:         &LocationRequest{Lat: 59.93, Lon: 30.31},
		StateAction:      &action,
	})

	require.NoError(t, err)
	assert.Equal(t, title, event.Title)
	assert.Equal(t, 25, event.ParticipantLimit)
	assert.Equal(t, entity.EventStatePending, event.State)
	require.NotNil(t, event.Location)
	assert.Equal(t, 59.93, event.Location.Lat)

	require.Len(t, f.queue.ofType(TaskTypeEventRejected), 1)
}

func TestUpdateEventFields_Rejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "alice")
	stranger := f.user(t, "bob")

	published := f.publishedEvent(t, owner, 0, true)
	pending, err := f.events.CreateEvent(ctx, owner, f.newEventRequest(0, true))
	require.NoError(t, err)

	title := "Something new"
	publish := entity.StateActionPublish

	_, err = f.events.UpdateEventFields(ctx, published, entity.Owner(owner), &UpdateEventRequest{Title: &title})
	assert.ErrorIs(t, err, entity.ErrEventPublished)

	_, err = f.events.UpdateEventFields(ctx, pending.ID, entity.Owner(stranger), &UpdateEventRequest{Title: &title})
	assert.ErrorIs(t, err, entity.ErrAccess)

	_, err = f.events.UpdateEventFields(ctx, pending.ID, entity.Owner(owner), &UpdateEventRequest{StateAction: &publish})
	assert.ErrorIs(t, err, entity.ErrValidation)

	// A failed state action keeps the field edits out as well.
	event, err := f.events.GetUserEvent(ctx, owner, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jazz in the park", event.Title)
}

func TestGetPublishedEvent(t *testing.T) {
	ctx := context.Background()
	var hits []*entity.Hit
	stats := &mockStats{
		recordHitFn: func(ctx context.Context, hit *entity.Hit) error {
			hits = append(hits, hit)
			return nil
		},
		viewCountsFn: func(ctx context.Context, eventIDs []int64, since, until time.Time) (map[int64]int64, error) {
			return map[int64]int64{eventIDs[0]: 7}, nil
		},
	}
	f := newFixture(t, stats, nil)
	owner := f.user(t, "alice")

	published := f.publishedEvent(t, owner, 0, true)
	pending, err := f.events.CreateEvent(ctx, owner, f.newEventRequest(0, true))
	require.NoError(t, err)

	event, err := f.events.GetPublishedEvent(ctx, published, &entity.Hit{URI: "/events/1", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), event.Views)
	require.Len(t, hits, 1)
	assert.False(t, hits[0].Timestamp.IsZero())

	_, err = f.events.GetPublishedEvent(ctx, pending.ID, &entity.Hit{URI: "/events/2"})
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.Len(t, hits, 1, "no hit for a hidden event")
}

func TestGetPublishedEvent_StatsDown(t *testing.T) {
	stats := &mockStats{
		recordHitFn: func(ctx context.Context, hit *entity.Hit) error { return errors.New("connection refused") },
		viewCountsFn: func(ctx context.Context, eventIDs []int64, since, until time.Time) (map[int64]int64, error) {
			return nil, errors.New("connection refused")
		},
	}
	f := newFixture(t, stats, nil)
	owner := f.user(t, "alice")
	published := f.publishedEvent(t, owner, 0, true)

	event, err := f.events.GetPublishedEvent(context.Background(), published, &entity.Hit{URI: "/events/1"})

	require.NoError(t, err)
	assert.Zero(t, event.Views)
}

func TestSearchPublished(t *testing.T) {
	ctx := context.Background()
	stats := &mockStats{
		viewCountsFn: func(ctx context.Context, eventIDs []int64, since, until time.Time) (map[int64]int64, error) {
			views := make(map[int64]int64)
			for _, id := range eventIDs {
				views[id] = id * 10
			}
			return views, nil
		},
	}
	f := newFixture(t, stats, nil)
	owner := f.user(t, "alice")

	first := f.publishedEvent(t, owner, 0, true)
	second := f.publishedEvent(t, owner, 0, true)
	third := f.publishedEvent(t, owner, 0, true)
	_, err := f.events.CreateEvent(ctx, owner, f.newEventRequest(0, true))
	require.NoError(t, err)

	events, err := f.events.SearchPublished(ctx, &PublicSearchParams{}, nil)
	require.NoError(t, err)
	assert.Len(t, events, 3, "only published events")

	events, err = f.events.SearchPublished(ctx, &PublicSearchParams{Sort: SortViews, Size: 2}, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, third, events[0].ID)
	assert.Equal(t, second, events[1].ID)

	events, err = f.events.SearchPublished(ctx, &PublicSearchParams{Sort: SortViews, From: 2, Size: 2}, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, first, events[0].ID)

	start := time.Now().Add(72 * time.Hour)
	end := time.Now()
	_, err = f.events.SearchPublished(ctx, &PublicSearchParams{RangeStart: &start, RangeEnd: &end}, nil)
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = f.events.SearchPublished(ctx, &PublicSearchParams{Sort: "RANDOM"}, nil)
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestSearchPublished_OnlyAvailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "alice")
	guest := f.user(t, "bob")

	full := f.publishedEvent(t, owner, 1, false)
	open := f.publishedEvent(t, owner, 5, false)
	_, err := f.requests.CreateRequest(ctx, guest, full)
	require.NoError(t, err)

	events, err := f.events.SearchPublished(ctx, &PublicSearchParams{OnlyAvailable: true}, nil)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, open, events[0].ID)
}

func TestSearchAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	f.publishedEvent(t, alice, 0, true)
	_, err := f.events.CreateEvent(ctx, alice, f.newEventRequest(0, true))
	require.NoError(t, err)
	_, err = f.events.CreateEvent(ctx, bob, f.newEventRequest(0, true))
	require.NoError(t, err)

	events, err := f.events.SearchAdmin(ctx, &AdminSearchParams{})
	require.NoError(t, err)
	assert.Len(t, events, 3)

	events, err = f.events.SearchAdmin(ctx, &AdminSearchParams{
		Users:  []int64{alice},
		States: []entity.EventState{entity.EventStatePending},
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, alice, events[0].InitiatorID)

	_, err = f.events.SearchAdmin(ctx, &AdminSearchParams{States: []entity.EventState{"DRAFT"}})
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestGetUserEvent_OtherOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	created, err := f.events.CreateEvent(ctx, alice, f.newEventRequest(0, true))
	require.NoError(t, err)

	_, err = f.events.GetUserEvent(ctx, bob, created.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	events, err := f.events.GetUserEvents(ctx, alice, 0, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestLikes(t *testing.T) {
	ctx := context.Background()
	liked := map[int64]map[int64]bool{}
	likes := &mockLikes{
		likeFn: func(ctx context.Context, userID, eventID int64) error {
			if liked[eventID] == nil {
				liked[eventID] = map[int64]bool{}
			}
			liked[eventID][userID] = true
			return nil
		},
		unlikeFn: func(ctx context.Context, userID, eventID int64) error {
			delete(liked[eventID], userID)
			return nil
		},
		countsFn: func(ctx context.Context, eventIDs []int64) (map[int64]int64, error) {
			counts := make(map[int64]int64)
			for _, id := range eventIDs {
				counts[id] = int64(len(liked[id]))
			}
			return counts, nil
		},
	}
	f := newFixture(t, nil, likes)
	owner := f.user(t, "alice")
	fan := f.user(t, "bob")

	published := f.publishedEvent(t, owner, 0, true)
	pending, err := f.events.CreateEvent(ctx, owner, f.newEventRequest(0, true))
	require.NoError(t, err)

	assert.ErrorIs(t, f.events.Like(ctx, owner, published), entity.ErrLikeOwnEvent)
	assert.ErrorIs(t, f.events.Like(ctx, fan, pending.ID), entity.ErrEventNotPublished)
	assert.ErrorIs(t, f.events.Like(ctx, fan, 999), entity.ErrNotFound)

	require.NoError(t, f.events.Like(ctx, fan, published))
	require.NoError(t, f.events.Like(ctx, fan, published))

	event, err := f.events.GetPublishedEvent(ctx, published, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), event.Likes)

	require.NoError(t, f.events.Unlike(ctx, fan, published))
	event, err = f.events.GetPublishedEvent(ctx, published, nil)
	require.NoError(t, err)
	assert.Zero(t, event.Likes)
}

func TestTopLiked(t *testing.T) {
	ctx := context.Background()
	var top []int64
	likes := &mockLikes{
		topFn: func(ctx context.Context, count int) ([]int64, error) { return top, nil },
	}
	f := newFixture(t, nil, likes)
	owner := f.user(t, "alice")

	first := f.publishedEvent(t, owner, 0, true)
	second := f.publishedEvent(t, owner, 0, true)
	hidden, err := f.events.CreateEvent(ctx, owner, f.newEventRequest(0, true))
	require.NoError(t, err)

	top = []int64{second, hidden.ID, 999, first}
	events, err := f.events.TopLiked(ctx, 10)

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, second, events[0].ID)
	assert.Equal(t, first, events[1].ID)
}

func TestTopLiked_Disabled(t *testing.T) {
	f := newFixture(t, nil, nil)

	events, err := f.events.TopLiked(context.Background(), 5)

	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEventFull_InitiatorAndCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "alice")

	created, err := f.events.CreateEvent(ctx, owner, f.newEventRequest(0, true))
	require.NoError(t, err)
	require.NotNil(t, created.Initiator)
	assert.Equal(t, &entity.UserShort{ID: owner, Name: "alice"}, created.Initiator)
	require.NotNil(t, created.Category)
	assert.Equal(t, "Concerts", created.Category.Name)

	_, err = f.events.TransitionEvent(ctx, created.ID, entity.Admin(), entity.StateActionPublish)
	require.NoError(t, err)

	event, err := f.events.GetPublishedEvent(ctx, created.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, event.Initiator)
	assert.Equal(t, owner, event.Initiator.ID)
	require.NotNil(t, event.Category)
	assert.Equal(t, f.category, event.Category.ID)
	require.NotNil(t, event.Location)

	body, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"initiator":{"id":`)
	assert.Contains(t, string(body), `"category":{"id":`)
}
