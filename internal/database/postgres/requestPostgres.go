package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ds124wfegd/ewm/internal/entity"
)

const requestColumns = `id, event_id, requester_id, status, created`

type requestRepository struct {
	db querier
}

func scanRequests(rows *sql.Rows) ([]*entity.ParticipationRequest, error) {
	defer rows.Close()

	var requests []*entity.ParticipationRequest
	for rows.Next() {
		var request entity.ParticipationRequest
		err := rows.Scan(
			&request.ID,
			&request.EventID,
			&request.RequesterID,
			&request.Status,
			&request.Created,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, &request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate requests: %w", err)
	}
	return requests, nil
}

func (r *requestRepository) Create(ctx context.Context, request *entity.ParticipationRequest) error {
	query := `
		INSERT INTO requests (event_id, requester_id, status, created)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		request.EventID,
		request.RequesterID,
		string(request.Status),
		request.Created.Time,
	).Scan(&request.ID)
	if isUniqueViolation(err) {
		return entity.ErrDuplicateRequest
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id int64) (*entity.ParticipationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`

	var request entity.ParticipationRequest
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&request.ID,
		&request.EventID,
		&request.RequesterID,
		&request.Status,
		&request.Created,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return &request, nil
}

func (r *requestRepository) UpdateStatus(ctx context.Context, id int64, status entity.RequestStatus) error {
	query := `UPDATE requests SET status = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrRequestNotFound
	}
	return nil
}

func (r *requestRepository) BulkUpdateStatus(ctx context.Context, ids []int64, status entity.RequestStatus) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE requests SET status = $1 WHERE id IN (` + placeholders(2, len(ids)) + `)`
	args := append([]interface{}{string(status)}, int64Args(ids)...)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to bulk update request status: %w", err)
	}
	return nil
}

func (r *requestRepository) GetByIDsForEvent(ctx context.Context, eventID int64, ids []int64) ([]*entity.ParticipationRequest, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + requestColumns + ` FROM requests
		WHERE event_id = $1 AND id IN (` + placeholders(2, len(ids)) + `)
		ORDER BY id`
	args := append([]interface{}{eventID}, int64Args(ids)...)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query event requests by ids: %w", err)
	}
	return scanRequests(rows)
}

func (r *requestRepository) CancelAllPendingForEvent(ctx context.Context, eventID int64) (int64, error) {
	query := `UPDATE requests SET status = 'CANCELED' WHERE event_id = $1 AND status = 'PENDING'`

	result, err := r.db.ExecContext(ctx, query, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending requests: %w", err)
	}
	canceled, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return canceled, nil
}

func (r *requestRepository) HasActive(ctx context.Context, eventID, requesterID int64) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM requests WHERE event_id = $1 AND requester_id = $2 AND status <> 'CANCELED'
	)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, eventID, requesterID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active request: %w", err)
	}
	return exists, nil
}

func (r *requestRepository) GetByRequester(ctx context.Context, requesterID int64) ([]*entity.ParticipationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE requester_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query requester requests: %w", err)
	}
	return scanRequests(rows)
}

func (r *requestRepository) GetByEvent(ctx context.Context, eventID int64) ([]*entity.ParticipationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE event_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query event requests: %w", err)
	}
	return scanRequests(rows)
}

func (r *requestRepository) GetByEventAndStatus(ctx context.Context, eventID int64, statuses ...entity.RequestStatus) ([]*entity.ParticipationRequest, error) {
	if len(statuses) == 0 {
		return r.GetByEvent(ctx, eventID)
	}

	args := []interface{}{eventID}
	for _, status := range statuses {
		args = append(args, string(status))
	}
	query := `SELECT ` + requestColumns + ` FROM requests
		WHERE event_id = $1 AND status IN (` + placeholders(2, len(statuses)) + `)
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query event requests by status: %w", err)
	}
	return scanRequests(rows)
}

func (r *requestRepository) CountConfirmed(ctx context.Context, eventID int64) (int, error) {
	query := `SELECT COUNT(*) FROM requests WHERE event_id = $1 AND status = 'CONFIRMED'`

	var count int
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count confirmed requests: %w", err)
	}
	return count, nil
}

func (r *requestRepository) CountConfirmedByEvents(ctx context.Context, eventIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(eventIDs))
	if len(eventIDs) == 0 {
		return counts, nil
	}

	query := `SELECT event_id, COUNT(*) FROM requests
		WHERE status = 'CONFIRMED' AND event_id IN (` + placeholders(1, len(eventIDs)) + `)
		GROUP BY event_id`

	rows, err := r.db.QueryContext(ctx, query, int64Args(eventIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to count confirmed requests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			eventID int64
			count   int
		)
		if err := rows.Scan(&eventID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan confirmed count: %w", err)
		}
		counts[eventID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate confirmed counts: %w", err)
	}
	return counts, nil
}

func (r *requestRepository) FindCapacityDrift(ctx context.Context, limit int) ([]entity.CapacityDrift, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT e.id, e.confirmed_requests, COUNT(r.id)
		FROM events e
		LEFT JOIN requests r ON r.event_id = e.id AND r.status = 'CONFIRMED'
		GROUP BY e.id, e.confirmed_requests
		HAVING e.confirmed_requests <> COUNT(r.id)
		ORDER BY e.id
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query capacity drift: %w", err)
	}
	defer rows.Close()

	var drifts []entity.CapacityDrift
	for rows.Next() {
		var d entity.CapacityDrift
		if err := rows.Scan(&d.EventID, &d.Aggregate, &d.Actual); err != nil {
			return nil, fmt.Errorf("failed to scan capacity drift: %w", err)
		}
		drifts = append(drifts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate capacity drift: %w", err)
	}
	return drifts, nil
}
