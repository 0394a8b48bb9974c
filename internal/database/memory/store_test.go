package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/ewm/internal/database"
	"github.com/ds124wfegd/ewm/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEvent(t *testing.T, s *Store) *entity.Event {
	t.Helper()
	ctx := context.Background()
	repos := s.Repositories()

	user := &entity.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, repos.Users.Create(ctx, user))
	category := &entity.Category{Name: "Concerts"}
	require.NoError(t, repos.Categories.Create(ctx, category))

	event := &entity.Event{
		InitiatorID:      user.ID,
		CategoryID:       category.ID,
		Title:            "Jazz",
		State:            entity.EventStatePublished,
		ParticipantLimit: 2,
		EventDate:        entity.NewCustomTime(time.Now().Add(24 * time.Hour)),
	}
	require.NoError(t, repos.Events.Create(ctx, event))
	return event
}

func TestWithEventLock_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	event := seedEvent(t, s)
	boom := errors.New("boom")

	err := s.WithEventLock(ctx, event.ID, func(ctx context.Context, repos *database.Repositories, locked *entity.Event) error {
		request := &entity.ParticipationRequest{EventID: locked.ID, RequesterID: 99, Status: entity.RequestStatusConfirmed}
		require.NoError(t, repos.Requests.Create(ctx, request))
		require.NoError(t, repos.Events.AddConfirmed(ctx, locked.ID, 1))

		locked.Title = "Changed"
		require.NoError(t, repos.Events.Update(ctx, locked))
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := s.Repositories().Events.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jazz", stored.Title)
	assert.Zero(t, stored.ConfirmedRequests)

	requests, err := s.Repositories().Requests.GetByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestWithEventLock_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	event := seedEvent(t, s)

	err := s.WithEventLock(ctx, event.ID, func(ctx context.Context, repos *database.Repositories, locked *entity.Event) error {
		request := &entity.ParticipationRequest{EventID: locked.ID, RequesterID: 99, Status: entity.RequestStatusPending}
		if err := repos.Requests.Create(ctx, request); err != nil {
			return err
		}
		return repos.Requests.UpdateStatus(ctx, request.ID, entity.RequestStatusConfirmed)
	})
	require.NoError(t, err)

	confirmed, err := s.Repositories().Requests.CountConfirmed(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)
}

func TestWithEventLock_UnknownEvent(t *testing.T) {
	s := NewStore()

	err := s.WithEventLock(context.Background(), 42, func(ctx context.Context, repos *database.Repositories, event *entity.Event) error {
		t.Fatal("must not run")
		return nil
	})

	assert.ErrorIs(t, err, entity.ErrEventNotFound)
}

func TestWithEventLock_Serializes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	event := seedEvent(t, s)

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithEventLock(ctx, event.ID, func(ctx context.Context, repos *database.Repositories, locked *entity.Event) error {
				// Read-modify-write through the locked snapshot.
				return repos.Events.SetConfirmed(ctx, locked.ID, locked.ConfirmedRequests+1)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := s.Repositories().Events.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, stored.ConfirmedRequests)
}

func TestWithEventLock_ContextCanceledWhileWaiting(t *testing.T) {
	s := NewStore()
	event := seedEvent(t, s)

	entered := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.WithEventLock(context.Background(), event.ID, func(ctx context.Context, repos *database.Repositories, locked *entity.Event) error {
			close(entered)
			<-done
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.WithEventLock(ctx, event.ID, func(ctx context.Context, repos *database.Repositories, locked *entity.Event) error {
		return nil
	})
	close(done)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, entity.ErrConcurrentUpdate)
	assert.ErrorIs(t, err, entity.ErrConflict)
}

func TestRequestRepository_ActiveDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	event := seedEvent(t, s)
	repos := s.Repositories()

	first := &entity.ParticipationRequest{EventID: event.ID, RequesterID: 7, Status: entity.RequestStatusPending}
	require.NoError(t, repos.Requests.Create(ctx, first))

	err := repos.Requests.Create(ctx, &entity.ParticipationRequest{EventID: event.ID, RequesterID: 7, Status: entity.RequestStatusPending})
	assert.ErrorIs(t, err, entity.ErrDuplicateRequest)

	require.NoError(t, repos.Requests.UpdateStatus(ctx, first.ID, entity.RequestStatusCanceled))
	active, err := repos.Requests.HasActive(ctx, event.ID, 7)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, repos.Requests.Create(ctx, &entity.ParticipationRequest{EventID: event.ID, RequesterID: 7, Status: entity.RequestStatusPending}))
}

func TestRequestRepository_CancelAllPending(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	event := seedEvent(t, s)
	repos := s.Repositories()

	statuses := []entity.RequestStatus{
		entity.RequestStatusPending,
		entity.RequestStatusConfirmed,
		entity.RequestStatusPending,
		entity.RequestStatusRejected,
	}
	for i, status := range statuses {
		require.NoError(t, repos.Requests.Create(ctx, &entity.ParticipationRequest{
			EventID:     event.ID,
			RequesterID: int64(100 + i),
			Status:      status,
		}))
	}

	canceled, err := repos.Requests.CancelAllPendingForEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), canceled)

	pending, err := repos.Requests.GetByEventAndStatus(ctx, event.ID, entity.RequestStatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	drift, err := repos.Requests.FindCapacityDrift(ctx, 10)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, entity.CapacityDrift{EventID: event.ID, Aggregate: 0, Actual: 1}, drift[0])
}

func TestEventRepository_Search(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	event := seedEvent(t, s)
	repos := s.Repositories()

	pending := *event
	pending.ID = 0
	pending.State = entity.EventStatePending
	pending.Annotation = "Pending rock festival"
	require.NoError(t, repos.Events.Create(ctx, &pending))

	paid := true
	found, err := repos.Events.Search(ctx, &entity.EventFilter{Text: "ROCK"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, pending.ID, found[0].ID)

	found, err = repos.Events.Search(ctx, &entity.EventFilter{States: []entity.EventState{entity.EventStatePublished}, Paid: &paid})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = repos.Events.Search(ctx, &entity.EventFilter{From: 1, Size: 1})
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestCompilationRepository_List(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Repositories().Compilations

	for i, pinned := range []bool{true, false, true} {
		require.NoError(t, repo.Create(ctx, &entity.Compilation{
			Title:    fmt.Sprintf("compilation %d", i),
			Pinned:   pinned,
			EventIDs: []int64{int64(i + 1)},
		}))
	}

	all, err := repo.List(ctx, nil, 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	yes := true
	pinned, err := repo.List(ctx, &yes, 0, 10)
	require.NoError(t, err)
	require.Len(t, pinned, 2)
	assert.Equal(t, "compilation 0", pinned[0].Title)
	assert.Equal(t, "compilation 2", pinned[1].Title)

	page, err := repo.List(ctx, &yes, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "compilation 2", page[0].Title)

	// callers get copies
	pinned[0].EventIDs[0] = 99
	stored, err := repo.GetByID(ctx, pinned[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, stored.EventIDs)
}

func TestUserDelete_PrunesCompilations(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	event := seedEvent(t, s)
	repos := s.Repositories()

	compilation := &entity.Compilation{Title: "weekend", EventIDs: []int64{event.ID}}
	require.NoError(t, repos.Compilations.Create(ctx, compilation))

	require.NoError(t, repos.Users.Delete(ctx, event.InitiatorID))

	stored, err := repos.Compilations.GetByID(ctx, compilation.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.EventIDs)

	require.NoError(t, repos.Compilations.Delete(ctx, compilation.ID))
	_, err = repos.Compilations.GetByID(ctx, compilation.ID)
	assert.ErrorIs(t, err, entity.ErrCompilationNotFound)
}
