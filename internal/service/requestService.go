package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/ewm/internal/database"
	"github.com/ds124wfegd/ewm/internal/entity"
	"github.com/sirupsen/logrus"
)

// StatusUpdateRequest is the owner's moderation decision for a batch of
// requests of one event.
type StatusUpdateRequest struct {
	RequestIDs []int64              `json:"requestIds"`
	Status     entity.RequestStatus `json:"status"`
}

type requestService struct {
	tx    database.TxManager
	repos *database.Repositories
	queue TaskPublisher
	now   func() time.Time
}

// NewRequestService creates the admission controller.
func NewRequestService(tx database.TxManager, queue TaskPublisher) RequestService {
	return &requestService{
		tx:    tx,
		repos: tx.Repositories(),
		queue: queue,
		now:   time.Now,
	}
}

func (s *requestService) CreateRequest(ctx context.Context, requesterID, eventID int64) (*entity.ParticipationRequest, error) {
	if err := s.checkUser(ctx, requesterID); err != nil {
		return nil, err
	}

	var created *entity.ParticipationRequest
	err := s.tx.WithEventLock(ctx, eventID, func(ctx context.Context, repos *database.Repositories, event *entity.Event) error {
		if event.InitiatorID == requesterID {
			return entity.ErrOwnEventRequest
		}
		if event.State != entity.EventStatePublished {
			return entity.ErrEventNotPublished
		}

		active, err := repos.Requests.HasActive(ctx, eventID, requesterID)
		if err != nil {
			return fmt.Errorf("failed to check existing requests: %w", err)
		}
		if active {
			return entity.ErrDuplicateRequest
		}

		if event.LimitReached(event.ConfirmedRequests) {
			return entity.ErrParticipantLimit
		}

		request := &entity.ParticipationRequest{
			EventID:     eventID,
			RequesterID: requesterID,
			Status:      entity.RequestStatusPending,
			Created:     entity.NewCustomTime(s.now()),
		}
		if event.AutoConfirm() {
			request.Status = entity.RequestStatusConfirmed
		}

		if err := repos.Requests.Create(ctx, request); err != nil {
			return err
		}
		if request.Status == entity.RequestStatusConfirmed {
			if err := repos.Events.AddConfirmed(ctx, eventID, 1); err != nil {
				return err
			}
		}
		created = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"event_id":     eventID,
		"requester_id": requesterID,
		"request_id":   created.ID,
		"status":       created.Status,
	}).Info("Participation request created")

	s.notifyStatus(ctx, eventID, []int64{created.ID}, created.Status)
	return created, nil
}

func (s *requestService) CancelRequest(ctx context.Context, requesterID, requestID int64) (*entity.ParticipationRequest, error) {
	if err := s.checkUser(ctx, requesterID); err != nil {
		return nil, err
	}

	request, err := s.repos.Requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != requesterID {
		return nil, entity.ErrNotRequester
	}

	var canceled *entity.ParticipationRequest
	err = s.tx.WithEventLock(ctx, request.EventID, func(ctx context.Context, repos *database.Repositories, event *entity.Event) error {
		current, err := repos.Requests.GetByID(ctx, requestID)
		if err != nil {
			return err
		}

		switch current.Status {
		case entity.RequestStatusCanceled:
			canceled = current
			return nil
		case entity.RequestStatusConfirmed:
			// The seat is released; pending requests are not promoted.
			if err := repos.Events.AddConfirmed(ctx, event.ID, -1); err != nil {
				return err
			}
		}

		if err := repos.Requests.UpdateStatus(ctx, requestID, entity.RequestStatusCanceled); err != nil {
			return err
		}
		current.Status = entity.RequestStatusCanceled
		canceled = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyStatus(ctx, canceled.EventID, []int64{canceled.ID}, canceled.Status)
	return canceled, nil
}

func (s *requestService) UpdateRequestStatuses(ctx context.Context, ownerID, eventID int64, req *StatusUpdateRequest) (*entity.StatusUpdateResult, error) {
	if err := s.checkUser(ctx, ownerID); err != nil {
		return nil, err
	}
	if req == nil {
		req = &StatusUpdateRequest{}
	}

	var (
		result     *entity.StatusUpdateResult
		confirmed  []int64
		rejected   []int64
		canceled   int64
		limitError error
	)
	err := s.tx.WithEventLock(ctx, eventID, func(ctx context.Context, repos *database.Repositories, event *entity.Event) error {
		confirmed, rejected, canceled, limitError = nil, nil, 0, nil

		if event.InitiatorID != ownerID {
			return entity.ErrNotInitiator
		}
		if req.Status != entity.RequestStatusConfirmed && req.Status != entity.RequestStatusRejected {
			return entity.ErrInvalidTargetStatus
		}
		if len(req.RequestIDs) == 0 {
			return entity.Validationf("requestIds must not be empty")
		}

		requests, err := s.loadInCallOrder(ctx, repos, eventID, req.RequestIDs)
		if err != nil {
			return err
		}
		for _, request := range requests {
			if request.Status != entity.RequestStatusPending {
				return entity.Conflictf("request with id=%d must have status PENDING", request.ID)
			}
		}

		if req.Status == entity.RequestStatusRejected {
			for _, request := range requests {
				rejected = append(rejected, request.ID)
			}
			if err := repos.Requests.BulkUpdateStatus(ctx, rejected, entity.RequestStatusRejected); err != nil {
				return err
			}
		} else {
			count := event.ConfirmedRequests
			for _, request := range requests {
				if event.LimitReached(count) {
					limitError = entity.ErrParticipantLimit
					break
				}
				confirmed = append(confirmed, request.ID)
				count++
			}

			if len(confirmed) > 0 {
				if err := repos.Requests.BulkUpdateStatus(ctx, confirmed, entity.RequestStatusConfirmed); err != nil {
					return err
				}
				if err := repos.Events.AddConfirmed(ctx, eventID, len(confirmed)); err != nil {
					return err
				}
				if event.LimitReached(count) {
					if canceled, err = repos.Requests.CancelAllPendingForEvent(ctx, eventID); err != nil {
						return err
					}
				}
			}
		}

		result, err = s.loadResult(ctx, repos, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"event_id":    eventID,
		"request_ids": req.RequestIDs,
		"confirmed":   len(confirmed),
		"rejected":    len(rejected),
		"canceled":    canceled,
	}).Info("Participation requests moderated")

	if len(confirmed) > 0 {
		s.notifyStatus(ctx, eventID, confirmed, entity.RequestStatusConfirmed)
	}
	if len(rejected) > 0 {
		s.notifyStatus(ctx, eventID, rejected, entity.RequestStatusRejected)
	}

	// Confirmations made before the limit was hit stay committed.
	if limitError != nil {
		return nil, limitError
	}
	return result, nil
}

// loadInCallOrder returns the event's requests named by ids in the order the
// caller listed them. Foreign ids are skipped and duplicates collapse.
func (s *requestService) loadInCallOrder(ctx context.Context, repos *database.Repositories, eventID int64, ids []int64) ([]*entity.ParticipationRequest, error) {
	loaded, err := repos.Requests.GetByIDsForEvent(ctx, eventID, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*entity.ParticipationRequest, len(loaded))
	for _, request := range loaded {
		byID[request.ID] = request
	}

	ordered := make([]*entity.ParticipationRequest, 0, len(loaded))
	for _, id := range ids {
		if request, ok := byID[id]; ok {
			ordered = append(ordered, request)
			delete(byID, id)
		}
	}
	return ordered, nil
}

func (s *requestService) loadResult(ctx context.Context, repos *database.Repositories, eventID int64) (*entity.StatusUpdateResult, error) {
	confirmed, err := repos.Requests.GetByEventAndStatus(ctx, eventID, entity.RequestStatusConfirmed)
	if err != nil {
		return nil, err
	}
	rejected, err := repos.Requests.GetByEventAndStatus(ctx, eventID, entity.RequestStatusRejected)
	if err != nil {
		return nil, err
	}

	result := &entity.StatusUpdateResult{
		ConfirmedRequests: confirmed,
		RejectedRequests:  rejected,
	}
	if result.ConfirmedRequests == nil {
		result.ConfirmedRequests = []*entity.ParticipationRequest{}
	}
	if result.RejectedRequests == nil {
		result.RejectedRequests = []*entity.ParticipationRequest{}
	}
	return result, nil
}

func (s *requestService) GetUserRequests(ctx context.Context, requesterID int64) ([]*entity.ParticipationRequest, error) {
	if err := s.checkUser(ctx, requesterID); err != nil {
		return nil, err
	}

	requests, err := s.repos.Requests.GetByRequester(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user requests: %w", err)
	}
	if requests == nil {
		requests = []*entity.ParticipationRequest{}
	}
	return requests, nil
}

func (s *requestService) GetEventRequests(ctx context.Context, ownerID, eventID int64) ([]*entity.ParticipationRequest, error) {
	if err := s.checkUser(ctx, ownerID); err != nil {
		return nil, err
	}

	event, err := s.repos.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.InitiatorID != ownerID {
		return nil, entity.ErrNotInitiator
	}

	requests, err := s.repos.Requests.GetByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event requests: %w", err)
	}
	if requests == nil {
		requests = []*entity.ParticipationRequest{}
	}
	return requests, nil
}

func (s *requestService) ConfirmedCounts(ctx context.Context, eventIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(eventIDs))
	if len(eventIDs) == 0 {
		return counts, nil
	}

	found, err := s.repos.Requests.CountConfirmedByEvents(ctx, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count confirmed requests: %w", err)
	}
	for _, id := range eventIDs {
		counts[id] = found[id]
	}
	return counts, nil
}

// ReconcileCapacity repairs events whose confirmed aggregate drifted from
// the request rows and returns how many were fixed.
func (s *requestService) ReconcileCapacity(ctx context.Context, limit int) (int, error) {
	drifts, err := s.repos.Requests.FindCapacityDrift(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to find capacity drift: %w", err)
	}

	repaired := 0
	for _, drift := range drifts {
		fixed := false
		err := s.tx.WithEventLock(ctx, drift.EventID, func(ctx context.Context, repos *database.Repositories, event *entity.Event) error {
			actual, err := repos.Requests.CountConfirmed(ctx, event.ID)
			if err != nil {
				return err
			}
			if actual == event.ConfirmedRequests {
				return nil
			}
			if err := repos.Events.SetConfirmed(ctx, event.ID, actual); err != nil {
				return err
			}

			logrus.WithFields(logrus.Fields{
				"event_id":  event.ID,
				"aggregate": event.ConfirmedRequests,
				"actual":    actual,
			}).Warn("Confirmed requests aggregate repaired")
			fixed = true
			return nil
		})
		if err != nil {
			return repaired, fmt.Errorf("failed to reconcile event %d: %w", drift.EventID, err)
		}
		if fixed {
			repaired++
		}
	}
	return repaired, nil
}

func (s *requestService) checkUser(ctx context.Context, userID int64) error {
	ok, err := s.repos.Users.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !ok {
		return entity.NotFoundf("user with id=%d was not found", userID)
	}
	return nil
}

func (s *requestService) notifyStatus(ctx context.Context, eventID int64, requestIDs []int64, status entity.RequestStatus) {
	ids := make([]interface{}, len(requestIDs))
	for i, id := range requestIDs {
		ids[i] = id
	}
	publish(ctx, s.queue, TaskTypeRequestStatusChanged, map[string]interface{}{
		"event_id":    eventID,
		"request_ids": ids,
		"status":      string(status),
	})
}
