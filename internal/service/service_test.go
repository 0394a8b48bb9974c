package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/ewm/internal/database/memory"
	"github.com/ds124wfegd/ewm/internal/entity"
	"github.com/stretchr/testify/require"
)

// --- Mock collaborators ---

type mockStats struct {
	recordHitFn  func(ctx context.Context, hit *entity.Hit) error
	viewCountsFn func(ctx context.Context, eventIDs []int64, since, until time.Time) (map[int64]int64, error)
}

func (m *mockStats) RecordHit(ctx context.Context, hit *entity.Hit) error {
	if m.recordHitFn == nil {
		return nil
	}
	return m.recordHitFn(ctx, hit)
}

func (m *mockStats) ViewCounts(ctx context.Context, eventIDs []int64, since, until time.Time) (map[int64]int64, error) {
	if m.viewCountsFn == nil {
		return map[int64]int64{}, nil
	}
	return m.viewCountsFn(ctx, eventIDs, since, until)
}

type mockLikes struct {
	likeFn   func(ctx context.Context, userID, eventID int64) error
	unlikeFn func(ctx context.Context, userID, eventID int64) error
	countsFn func(ctx context.Context, eventIDs []int64) (map[int64]int64, error)
	topFn    func(ctx context.Context, count int) ([]int64, error)
}

func (m *mockLikes) Like(ctx context.Context, userID, eventID int64) error {
	return m.likeFn(ctx, userID, eventID)
}

func (m *mockLikes) Unlike(ctx context.Context, userID, eventID int64) error {
	return m.unlikeFn(ctx, userID, eventID)
}

func (m *mockLikes) Counts(ctx context.Context, eventIDs []int64) (map[int64]int64, error) {
	if m.countsFn == nil {
		return map[int64]int64{}, nil
	}
	return m.countsFn(ctx, eventIDs)
}

func (m *mockLikes) Top(ctx context.Context, count int) ([]int64, error) {
	return m.topFn(ctx, count)
}

// recordingQueue keeps every published task.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []*Task
}

func (q *recordingQueue) Publish(ctx context.Context, task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) ofType(taskType string) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var found []*Task
	for _, task := range q.tasks {
		if task.Type == taskType {
			found = append(found, task)
		}
	}
	return found
}

// --- Fixture ---

type fixture struct {
	store      *memory.Store
	events     EventService
	requests   RequestService
	users      UserService
	categories CategoryService
	queue      *recordingQueue
	category   int64
}

func newFixture(t *testing.T, stats StatsClient, likes LikesClient) *fixture {
	t.Helper()

	store := memory.NewStore()
	queue := &recordingQueue{}
	f := &fixture{
		store:      store,
		events:     NewEventService(store, stats, likes, queue, nil),
		requests:   NewRequestService(store, queue),
		users:      NewUserService(store.Repositories()),
		categories: NewCategoryService(store.Repositories()),
		queue:      queue,
	}

	category, err := f.categories.CreateCategory(context.Background(), &CategoryRequest{Name: "Concerts"})
	require.NoError(t, err)
	f.category = category.ID
	return f
}

func (f *fixture) user(t *testing.T, name string) int64 {
	t.Helper()

	user, err := f.users.RegisterUser(context.Background(), &NewUserRequest{
		Name:  name,
		Email: name + "@example.com",
	})
	require.NoError(t, err)
	return user.ID
}

func (f *fixture) newEventRequest(limit int, moderation bool) *NewEventRequest {
	return &NewEventRequest{
		Title:             "Jazz in the park",
		Annotation:        "An evening of live jazz under the open sky",
		Description:       "Bring a blanket, the band starts playing at seven sharp.",
		Category:          f.category,
		Location:          &LocationRequest{Lat: 55.75, Lon: 37.61},
		EventDate:         entity.NewCustomTime(time.Now().Add(48 * time.Hour)),
		ParticipantLimit:  &limit,
		RequestModeration: &moderation,
	}
}

// publishedEvent creates an event owned by ownerID and publishes it.
func (f *fixture) publishedEvent(t *testing.T, ownerID int64, limit int, moderation bool) int64 {
	t.Helper()
	ctx := context.Background()

	event, err := f.events.CreateEvent(ctx, ownerID, f.newEventRequest(limit, moderation))
	require.NoError(t, err)

	_, err = f.events.TransitionEvent(ctx, event.ID, entity.Admin(), entity.StateActionPublish)
	require.NoError(t, err)
	return event.ID
}

func (f *fixture) confirmed(t *testing.T, eventID int64) int {
	t.Helper()

	event, err := f.store.Repositories().Events.GetByID(context.Background(), eventID)
	require.NoError(t, err)
	return event.ConfirmedRequests
}

func (f *fixture) requestStatus(t *testing.T, requestID int64) entity.RequestStatus {
	t.Helper()

	request, err := f.store.Repositories().Requests.GetByID(context.Background(), requestID)
	require.NoError(t, err)
	return request.Status
}
