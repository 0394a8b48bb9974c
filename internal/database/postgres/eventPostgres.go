package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ds124wfegd/ewm/internal/entity"
)

const eventColumns = `id, initiator_id, category_id, location_id, title, annotation, description,
	paid, participant_limit, request_moderation, state, event_date, created_on,
	published_on, confirmed_requests`

type eventRepository struct {
	db querier
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*entity.Event, error) {
	var (
		event       entity.Event
		publishedOn sql.NullTime
	)
	err := row.Scan(
		&event.ID,
		&event.InitiatorID,
		&event.CategoryID,
		&event.LocationID,
		&event.Title,
		&event.Annotation,
		&event.Description,
		&event.Paid,
		&event.ParticipantLimit,
		&event.RequestModeration,
		&event.State,
		&event.EventDate,
		&event.CreatedOn,
		&publishedOn,
		&event.ConfirmedRequests,
	)
	if err != nil {
		return nil, err
	}
	if publishedOn.Valid {
		published := entity.CustomTime{Time: publishedOn.Time}
		event.PublishedOn = &published
	}
	return &event, nil
}

func scanEvents(rows *sql.Rows) ([]*entity.Event, error) {
	defer rows.Close()

	var events []*entity.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

func publishedOnValue(event *entity.Event) interface{} {
	if event.PublishedOn == nil {
		return nil
	}
	return event.PublishedOn.Time
}

func (r *eventRepository) Create(ctx context.Context, event *entity.Event) error {
	query := `
		INSERT INTO events (initiator_id, category_id, location_id, title, annotation, description,
			paid, participant_limit, request_moderation, state, event_date, created_on,
			published_on, confirmed_requests)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		event.InitiatorID,
		event.CategoryID,
		event.LocationID,
		event.Title,
		event.Annotation,
		event.Description,
		event.Paid,
		event.ParticipantLimit,
		event.RequestModeration,
		string(event.State),
		event.EventDate.Time,
		event.CreatedOn.Time,
		publishedOnValue(event),
		event.ConfirmedRequests,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id int64) (*entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// getForUpdate reads the event and holds its row lock until the
// transaction ends.
func (r *eventRepository) getForUpdate(ctx context.Context, id int64) (*entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}
	return event, nil
}

func (r *eventRepository) Update(ctx context.Context, event *entity.Event) error {
	query := `
		UPDATE events
		SET category_id = $1, location_id = $2, title = $3, annotation = $4, description = $5,
			paid = $6, participant_limit = $7, request_moderation = $8, state = $9,
			event_date = $10, published_on = $11
		WHERE id = $12
	`

	result, err := r.db.ExecContext(ctx, query,
		event.CategoryID,
		event.LocationID,
		event.Title,
		event.Annotation,
		event.Description,
		event.Paid,
		event.ParticipantLimit,
		event.RequestModeration,
		string(event.State),
		event.EventDate.Time,
		publishedOnValue(event),
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrEventNotFound
	}
	return nil
}

func (r *eventRepository) AddConfirmed(ctx context.Context, eventID int64, delta int) error {
	query := `UPDATE events SET confirmed_requests = confirmed_requests + $1 WHERE id = $2`
	return r.execOne(ctx, query, "failed to update confirmed requests", delta, eventID)
}

func (r *eventRepository) SetConfirmed(ctx context.Context, eventID int64, confirmed int) error {
	query := `UPDATE events SET confirmed_requests = $1 WHERE id = $2`
	return r.execOne(ctx, query, "failed to set confirmed requests", confirmed, eventID)
}

func (r *eventRepository) execOne(ctx context.Context, query, msg string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrEventNotFound
	}
	return nil
}

func (r *eventRepository) ListByInitiator(ctx context.Context, initiatorID int64, from, size int) ([]*entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE initiator_id = $1 ORDER BY id`
	page, pageArgs := pageClause(2, from, size)

	rows, err := r.db.QueryContext(ctx, query+page, append([]interface{}{initiatorID}, pageArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query initiator events: %w", err)
	}
	return scanEvents(rows)
}

func (r *eventRepository) GetByIDs(ctx context.Context, ids []int64) ([]*entity.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + eventColumns + ` FROM events WHERE id IN (` + placeholders(1, len(ids)) + `) ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by ids: %w", err)
	}
	return scanEvents(rows)
}

func (r *eventRepository) Search(ctx context.Context, filter *entity.EventFilter) ([]*entity.Event, error) {
	if filter == nil {
		filter = &entity.EventFilter{}
	}

	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	in := func(column string, values []interface{}) {
		ph := make([]string, len(values))
		for i, v := range values {
			ph[i] = arg(v)
		}
		conds = append(conds, fmt.Sprintf("%s IN (%s)", column, strings.Join(ph, ", ")))
	}

	if filter.Text != "" {
		p := arg("%" + filter.Text + "%")
		conds = append(conds, fmt.Sprintf("(annotation ILIKE %s OR description ILIKE %s)", p, p))
	}
	if len(filter.InitiatorIDs) > 0 {
		in("initiator_id", int64Args(filter.InitiatorIDs))
	}
	if len(filter.States) > 0 {
		states := make([]interface{}, len(filter.States))
		for i, s := range filter.States {
			states[i] = string(s)
		}
		in("state", states)
	}
	if len(filter.CategoryIDs) > 0 {
		in("category_id", int64Args(filter.CategoryIDs))
	}
	if filter.Paid != nil {
		conds = append(conds, "paid = "+arg(*filter.Paid))
	}
	if filter.RangeStart != nil {
		conds = append(conds, "event_date >= "+arg(*filter.RangeStart))
	}
	if filter.RangeEnd != nil {
		conds = append(conds, "event_date <= "+arg(*filter.RangeEnd))
	}
	if filter.OnlyAvailable {
		conds = append(conds, "(participant_limit = 0 OR confirmed_requests < participant_limit)")
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY event_date, id"

	page, pageArgs := pageClause(len(args)+1, filter.From, filter.Size)
	rows, err := r.db.QueryContext(ctx, query+page, append(args, pageArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}
	return scanEvents(rows)
}

func (r *eventRepository) CountByCategory(ctx context.Context, categoryID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM events WHERE category_id = $1`
	if err := r.db.QueryRowContext(ctx, query, categoryID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count category events: %w", err)
	}
	return count, nil
}
