package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ds124wfegd/ewm/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCreateRequest_Admission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "alice")
	guest := f.user(t, "bob")

	t.Run("moderated event keeps request pending", func(t *testing.T) {
		eventID := f.publishedEvent(t, owner, 10, true)

		request, err := f.requests.CreateRequest(ctx, guest, eventID)

		require.NoError(t, err)
		assert.Equal(t, entity.RequestStatusPending, request.Status)
		assert.Equal(t, guest, request.RequesterID)
		assert.Zero(t, f.confirmed(t, eventID))
	})

	t.Run("unmoderated event confirms at once", func(t *testing.T) {
		eventID := f.publishedEvent(t, owner, 10, false)

		request, err := f.requests.CreateRequest(ctx, guest, eventID)

		require.NoError(t, err)
		assert.Equal(t, entity.RequestStatusConfirmed, request.Status)
		assert.Equal(t, 1, f.confirmed(t, eventID))
	})

	t.Run("unlimited event confirms at once even with moderation", func(t *testing.T) {
		eventID := f.publishedEvent(t, owner, 0, true)

		request, err := f.requests.CreateRequest(ctx, guest, eventID)

		require.NoError(t, err)
		assert.Equal(t, entity.RequestStatusConfirmed, request.Status)
	})

	t.Run("duplicate request", func(t *testing.T) {
		eventID := f.publishedEvent(t, owner, 10, true)
		_, err := f.requests.CreateRequest(ctx, guest, eventID)
		require.NoError(t, err)

		_, err = f.requests.CreateRequest(ctx, guest, eventID)

		assert.ErrorIs(t, err, entity.ErrDuplicateRequest)
	})

	t.Run("own event", func(t *testing.T) {
		eventID := f.publishedEvent(t, owner, 10, true)

		_, err := f.requests.CreateRequest(ctx, owner, eventID)

		assert.ErrorIs(t, err, entity.ErrOwnEventRequest)
	})

	t.Run("unpublished event", func(t *testing.T) {
		event, err := f.events.CreateEvent(ctx, owner, f.newEventRequest(10, true))
		require.NoError(t, err)

		_, err = f.requests.CreateRequest(ctx, guest, event.ID)

		assert.ErrorIs(t, err, entity.ErrEventNotPublished)
	})

	t.Run("full event", func(t *testing.T) {
		eventID := f.publishedEvent(t, owner, 1, false)
		_, err := f.requests.CreateRequest(ctx, guest, eventID)
		require.NoError(t, err)
		late := f.user(t, "carol")

		_, err = f.requests.CreateRequest(ctx, late, eventID)

		assert.ErrorIs(t, err, entity.ErrParticipantLimit)
		assert.Equal(t, 1, f.confirmed(t, eventID))
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := f.requests.CreateRequest(ctx, guest, 999)

		assert.ErrorIs(t, err, entity.ErrNotFound)
	})
}

func TestCreateRequest_ConcurrentAdmission(t *testing.T) {
	const (
		limit    = 5
		requests = 40
	)
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "owner")
	eventID := f.publishedEvent(t, owner, limit, false)

	guests := make([]int64, requests)
	for i := range guests {
		guests[i] = f.user(t, fmt.Sprintf("guest%d", i))
	}

	var admitted, refused atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for _, guest := range guests {
		guest := guest
		g.Go(func() error {
			_, err := f.requests.CreateRequest(gctx, guest, eventID)
			switch {
			case err == nil:
				admitted.Add(1)
			case errors.Is(err, entity.ErrParticipantLimit):
				refused.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(limit), admitted.Load())
	assert.Equal(t, int32(requests-limit), refused.Load())
	assert.Equal(t, limit, f.confirmed(t, eventID))

	counts, err := f.requests.ConfirmedCounts(ctx, []int64{eventID})
	require.NoError(t, err)
	assert.Equal(t, limit, counts[eventID])
}

func TestUpdateRequestStatuses_ConfirmUpToLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "owner")
	eventID := f.publishedEvent(t, owner, 2, true)

	ids := make([]int64, 3)
	for i := range ids {
		request, err := f.requests.CreateRequest(ctx, f.user(t, fmt.Sprintf("guest%d", i)), eventID)
		require.NoError(t, err)
		ids[i] = request.ID
	}

	_, err := f.requests.UpdateRequestStatuses(ctx, owner, eventID, &StatusUpdateRequest{
		RequestIDs: ids,
		Status:     entity.RequestStatusConfirmed,
	})

	assert.ErrorIs(t, err, entity.ErrParticipantLimit)
	// Confirmations made before the limit stay, the rest is canceled.
	assert.Equal(t, entity.RequestStatusConfirmed, f.requestStatus(t, ids[0]))
	assert.Equal(t, entity.RequestStatusConfirmed, f.requestStatus(t, ids[1]))
	assert.Equal(t, entity.RequestStatusCanceled, f.requestStatus(t, ids[2]))
	assert.Equal(t, 2, f.confirmed(t, eventID))

	tasks := f.queue.ofType(TaskTypeRequestStatusChanged)
	require.NotEmpty(t, tasks)
	last := tasks[len(tasks)-1]
	assert.Equal(t, string(entity.RequestStatusConfirmed), last.Data["status"])
}

func TestUpdateRequestStatuses_FillingCancelsRemainingPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "owner")
	eventID := f.publishedEvent(t, owner, 2, true)

	ids := make([]int64, 4)
	for i := range ids {
		request, err := f.requests.CreateRequest(ctx, f.user(t, fmt.Sprintf("guest%d", i)), eventID)
		require.NoError(t, err)
		ids[i] = request.ID
	}

	result, err := f.requests.UpdateRequestStatuses(ctx, owner, eventID, &StatusUpdateRequest{
		RequestIDs: []int64{ids[2], ids[0], ids[2]},
		Status:     entity.RequestStatusConfirmed,
	})

	require.NoError(t, err)
	require.Len(t, result.ConfirmedRequests, 2)
	assert.Empty(t, result.RejectedRequests)
	assert.Equal(t, entity.RequestStatusCanceled, f.requestStatus(t, ids[1]))
	assert.Equal(t, entity.RequestStatusCanceled, f.requestStatus(t, ids[3]))
	assert.Equal(t, 2, f.confirmed(t, eventID))
}

func TestUpdateRequestStatuses_Reject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "owner")
	eventID := f.publishedEvent(t, owner, 1, true)

	first, err := f.requests.CreateRequest(ctx, f.user(t, "guest1"), eventID)
	require.NoError(t, err)
	second, err := f.requests.CreateRequest(ctx, f.user(t, "guest2"), eventID)
	require.NoError(t, err)

	result, err := f.requests.UpdateRequestStatuses(ctx, owner, eventID, &StatusUpdateRequest{
		RequestIDs: []int64{first.ID, second.ID},
		Status:     entity.RequestStatusRejected,
	})

	require.NoError(t, err)
	assert.Empty(t, result.ConfirmedRequests)
	assert.Len(t, result.RejectedRequests, 2)
	assert.Zero(t, f.confirmed(t, eventID))

	// Only pending requests can be moderated.
	_, err = f.requests.UpdateRequestStatuses(ctx, owner, eventID, &StatusUpdateRequest{
		RequestIDs: []int64{first.ID},
		Status:     entity.RequestStatusConfirmed,
	})
	assert.ErrorIs(t, err, entity.ErrConflict)
}

func TestUpdateRequestStatuses_Rejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "owner")
	stranger := f.user(t, "stranger")
	eventID := f.publishedEvent(t, owner, 3, true)

	request, err := f.requests.CreateRequest(ctx, f.user(t, "guest"), eventID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		userID  int64
		req     *StatusUpdateRequest
		wantErr error
	}{
		{
			name:    "not the initiator",
			userID:  stranger,
			req:     &StatusUpdateRequest{RequestIDs: []int64{request.ID}, Status: entity.RequestStatusConfirmed},
			wantErr: entity.ErrAccess,
		},
		{
			name:    "pending is not a target",
			userID:  owner,
			req:     &StatusUpdateRequest{RequestIDs: []int64{request.ID}, Status: entity.RequestStatusPending},
			wantErr: entity.ErrInvalidTargetStatus,
		},
		{
			name:    "empty ids",
			userID:  owner,
			req:     &StatusUpdateRequest{Status: entity.RequestStatusConfirmed},
			wantErr: entity.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.requests.UpdateRequestStatuses(ctx, tt.userID, eventID, tt.req)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, entity.RequestStatusPending, f.requestStatus(t, request.ID))
		})
	}
}

func TestUpdateRequestStatuses_ForeignIDsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "owner")
	guest := f.user(t, "guest")
	eventID := f.publishedEvent(t, owner, 3, true)
	otherID := f.publishedEvent(t, owner, 3, true)

	mine, err := f.requests.CreateRequest(ctx, guest, eventID)
	require.NoError(t, err)
	foreign, err := f.requests.CreateRequest(ctx, guest, otherID)
	require.NoError(t, err)

	result, err := f.requests.UpdateRequestStatuses(ctx, owner, eventID, &StatusUpdateRequest{
		RequestIDs: []int64{mine.ID, foreign.ID, 999},
		Status:     entity.RequestStatusConfirmed,
	})

	require.NoError(t, err)
	require.Len(t, result.ConfirmedRequests, 1)
	assert.Equal(t, mine.ID, result.ConfirmedRequests[0].ID)
	assert.Equal(t, entity.RequestStatusPending, f.requestStatus(t, foreign.ID))
	assert.Zero(t, f.confirmed(t, otherID))
}

func TestCancelRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "owner")
	guest := f.user(t, "guest")
	stranger := f.user(t, "stranger")
	eventID := f.publishedEvent(t, owner, 2, false)

	request, err := f.requests.CreateRequest(ctx, guest, eventID)
	require.NoError(t, err)
	require.Equal(t, 1, f.confirmed(t, eventID))

	_, err = f.requests.CancelRequest(ctx, stranger, request.ID)
	assert.ErrorIs(t, err, entity.ErrAccess)

	canceled, err := f.requests.CancelRequest(ctx, guest, request.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusCanceled, canceled.Status)
	assert.Zero(t, f.confirmed(t, eventID), "the seat is released")

	// Cancelling again is a no-op.
	canceled, err = f.requests.CancelRequest(ctx, guest, request.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusCanceled, canceled.Status)
	assert.Zero(t, f.confirmed(t, eventID))

	// A canceled request does not block a new one.
	again, err := f.requests.CreateRequest(ctx, guest, eventID)
	require.NoError(t, err)
	assert.NotEqual(t, request.ID, again.ID)

	_, err = f.requests.CancelRequest(ctx, guest, 999)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestCancelRequest_DoesNotPromotePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "owner")
	eventID := f.publishedEvent(t, owner, 1, true)

	first, err := f.requests.CreateRequest(ctx, f.user(t, "guest1"), eventID)
	require.NoError(t, err)
	second, err := f.requests.CreateRequest(ctx, f.user(t, "guest2"), eventID)
	require.NoError(t, err)

	_, err = f.requests.UpdateRequestStatuses(ctx, owner, eventID, &StatusUpdateRequest{
		RequestIDs: []int64{first.ID},
		Status:     entity.RequestStatusConfirmed,
	})
	require.NoError(t, err)
	require.Equal(t, entity.RequestStatusCanceled, f.requestStatus(t, second.ID))

	_, err = f.requests.CancelRequest(ctx, first.RequesterID, first.ID)
	require.NoError(t, err)

	assert.Zero(t, f.confirmed(t, eventID))
	assert.Equal(t, entity.RequestStatusCanceled, f.requestStatus(t, second.ID))
}

func TestGetRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "owner")
	guest := f.user(t, "guest")
	eventID := f.publishedEvent(t, owner, 0, true)

	_, err := f.requests.CreateRequest(ctx, guest, eventID)
	require.NoError(t, err)

	mine, err := f.requests.GetUserRequests(ctx, guest)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	none, err := f.requests.GetUserRequests(ctx, owner)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	byEvent, err := f.requests.GetEventRequests(ctx, owner, eventID)
	require.NoError(t, err)
	assert.Len(t, byEvent, 1)

	_, err = f.requests.GetEventRequests(ctx, guest, eventID)
	assert.ErrorIs(t, err, entity.ErrAccess)
}

func TestReconcileCapacity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "owner")
	eventID := f.publishedEvent(t, owner, 10, false)

	_, err := f.requests.CreateRequest(ctx, f.user(t, "guest1"), eventID)
	require.NoError(t, err)
	_, err = f.requests.CreateRequest(ctx, f.user(t, "guest2"), eventID)
	require.NoError(t, err)

	repaired, err := f.requests.ReconcileCapacity(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, repaired)

	require.NoError(t, f.store.Repositories().Events.SetConfirmed(ctx, eventID, 7))

	repaired, err = f.requests.ReconcileCapacity(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)
	assert.Equal(t, 2, f.confirmed(t, eventID))
}

func TestUpdateRequestStatuses_ConcurrentModeration(t *testing.T) {
	const (
		limit  = 3
		guests = 12
	)
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	owner := f.user(t, "owner")
	eventID := f.publishedEvent(t, owner, limit, true)

	ids := make([]int64, guests)
	for i := range ids {
		request, err := f.requests.CreateRequest(ctx, f.user(t, fmt.Sprintf("guest%d", i)), eventID)
		require.NoError(t, err)
		ids[i] = request.ID
	}

	var confirmed, refused atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := f.requests.UpdateRequestStatuses(gctx, owner, eventID, &StatusUpdateRequest{
				RequestIDs: []int64{id},
				Status:     entity.RequestStatusConfirmed,
			})
			switch {
			case err == nil:
				confirmed.Add(1)
			case errors.Is(err, entity.ErrConflict):
				// sold out, or already canceled by the sellout
				refused.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(limit), confirmed.Load())
	assert.Equal(t, int32(guests-limit), refused.Load())
	assert.Equal(t, limit, f.confirmed(t, eventID))

	var canceled int
	for _, id := range ids {
		if f.requestStatus(t, id) == entity.RequestStatusCanceled {
			canceled++
		}
	}
	assert.Equal(t, guests-limit, canceled)
}
