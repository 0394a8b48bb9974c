package memory

import (
	"context"
	"sort"

	"github.com/ds124wfegd/ewm/internal/entity"
)

type requestRepository struct {
	s   *Store
	uow *unitOfWork
}

func copyRequest(r *entity.ParticipationRequest) *entity.ParticipationRequest {
	c := *r
	return &c
}

func (r *requestRepository) Create(ctx context.Context, request *entity.ParticipationRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// Mirrors the partial unique index on (event_id, requester_id).
	for _, existing := range r.s.requests {
		if existing.EventID == request.EventID &&
			existing.RequesterID == request.RequesterID &&
			existing.Status != entity.RequestStatusCanceled {
			return entity.ErrDuplicateRequest
		}
	}

	request.ID = r.s.nextID("requests")
	r.s.requests[request.ID] = copyRequest(request)

	id := request.ID
	r.uow.record(func() { delete(r.s.requests, id) })
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id int64) (*entity.ParticipationRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	request, ok := r.s.requests[id]
	if !ok {
		return nil, entity.ErrRequestNotFound
	}
	return copyRequest(request), nil
}

// setStatus must be called with Store.mu held.
func (r *requestRepository) setStatus(id int64, status entity.RequestStatus) {
	current := r.s.requests[id]
	prev := current.Status
	current.Status = status
	r.uow.record(func() { current.Status = prev })
}

func (r *requestRepository) UpdateStatus(ctx context.Context, id int64, status entity.RequestStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.requests[id]; !ok {
		return entity.ErrRequestNotFound
	}
	r.setStatus(id, status)
	return nil
}

func (r *requestRepository) BulkUpdateStatus(ctx context.Context, ids []int64, status entity.RequestStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, id := range ids {
		if _, ok := r.s.requests[id]; ok {
			r.setStatus(id, status)
		}
	}
	return nil
}

func (r *requestRepository) selectRequests(match func(*entity.ParticipationRequest) bool) []*entity.ParticipationRequest {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var requests []*entity.ParticipationRequest
	for _, request := range r.s.requests {
		if match(request) {
			requests = append(requests, copyRequest(request))
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID < requests[j].ID })
	return requests
}

func (r *requestRepository) GetByIDsForEvent(ctx context.Context, eventID int64, ids []int64) ([]*entity.ParticipationRequest, error) {
	return r.selectRequests(func(req *entity.ParticipationRequest) bool {
		return req.EventID == eventID && containsID(ids, req.ID)
	}), nil
}

func (r *requestRepository) CancelAllPendingForEvent(ctx context.Context, eventID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var canceled int64
	for id, request := range r.s.requests {
		if request.EventID == eventID && request.Status == entity.RequestStatusPending {
			r.setStatus(id, entity.RequestStatusCanceled)
			canceled++
		}
	}
	return canceled, nil
}

func (r *requestRepository) HasActive(ctx context.Context, eventID, requesterID int64) (bool, error) {
	active := r.selectRequests(func(req *entity.ParticipationRequest) bool {
		return req.EventID == eventID && req.RequesterID == requesterID &&
			req.Status != entity.RequestStatusCanceled
	})
	return len(active) > 0, nil
}

func (r *requestRepository) GetByRequester(ctx context.Context, requesterID int64) ([]*entity.ParticipationRequest, error) {
	return r.selectRequests(func(req *entity.ParticipationRequest) bool {
		return req.RequesterID == requesterID
	}), nil
}

func (r *requestRepository) GetByEvent(ctx context.Context, eventID int64) ([]*entity.ParticipationRequest, error) {
	return r.selectRequests(func(req *entity.ParticipationRequest) bool {
		return req.EventID == eventID
	}), nil
}

func (r *requestRepository) GetByEventAndStatus(ctx context.Context, eventID int64, statuses ...entity.RequestStatus) ([]*entity.ParticipationRequest, error) {
	return r.selectRequests(func(req *entity.ParticipationRequest) bool {
		if req.EventID != eventID {
			return false
		}
		if len(statuses) == 0 {
			return true
		}
		for _, status := range statuses {
			if req.Status == status {
				return true
			}
		}
		return false
	}), nil
}

func (r *requestRepository) CountConfirmed(ctx context.Context, eventID int64) (int, error) {
	confirmed, _ := r.GetByEventAndStatus(ctx, eventID, entity.RequestStatusConfirmed)
	return len(confirmed), nil
}

func (r *requestRepository) CountConfirmedByEvents(ctx context.Context, eventIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(eventIDs))
	for _, req := range r.selectRequests(func(req *entity.ParticipationRequest) bool {
		return req.Status == entity.RequestStatusConfirmed && containsID(eventIDs, req.EventID)
	}) {
		counts[req.EventID]++
	}
	return counts, nil
}

func (r *requestRepository) FindCapacityDrift(ctx context.Context, limit int) ([]entity.CapacityDrift, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	actual := make(map[int64]int)
	for _, req := range r.s.requests {
		if req.Status == entity.RequestStatusConfirmed {
			actual[req.EventID]++
		}
	}

	var drifts []entity.CapacityDrift
	for id, event := range r.s.events {
		if event.ConfirmedRequests != actual[id] {
			drifts = append(drifts, entity.CapacityDrift{
				EventID:   id,
				Aggregate: event.ConfirmedRequests,
				Actual:    actual[id],
			})
		}
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].EventID < drifts[j].EventID })
	if limit > 0 && len(drifts) > limit {
		drifts = drifts[:limit]
	}
	return drifts, nil
}
