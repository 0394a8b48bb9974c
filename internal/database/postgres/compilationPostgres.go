package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ds124wfegd/ewm/internal/entity"
)

type compilationRepository struct {
	db querier
}

// inTx runs fn in a transaction unless q already is one.
func inTx(ctx context.Context, q querier, fn func(q querier) error) error {
	db, ok := q.(*sql.DB)
	if !ok {
		return fn(q)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *compilationRepository) Create(ctx context.Context, compilation *entity.Compilation) error {
	return inTx(ctx, r.db, func(q querier) error {
		query := `INSERT INTO compilations (title, pinned) VALUES ($1, $2) RETURNING id`
		if err := q.QueryRowContext(ctx, query, compilation.Title, compilation.Pinned).Scan(&compilation.ID); err != nil {
			return fmt.Errorf("failed to create compilation: %w", err)
		}
		return insertCompilationEvents(ctx, q, compilation.ID, compilation.EventIDs)
	})
}

func insertCompilationEvents(ctx context.Context, q querier, compilationID int64, eventIDs []int64) error {
	if len(eventIDs) == 0 {
		return nil
	}

	values := make([]string, len(eventIDs))
	args := make([]interface{}, 0, len(eventIDs)+1)
	args = append(args, compilationID)
	for i, id := range eventIDs {
		values[i] = fmt.Sprintf("($1, $%d, %d)", i+2, i)
		args = append(args, id)
	}

	query := `INSERT INTO compilation_events (compilation_id, event_id, position) VALUES ` +
		strings.Join(values, ", ") + ` ON CONFLICT DO NOTHING`
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		if isForeignKeyViolation(err) {
			return entity.ErrEventNotFound
		}
		return fmt.Errorf("failed to link compilation events: %w", err)
	}
	return nil
}

func (r *compilationRepository) GetByID(ctx context.Context, id int64) (*entity.Compilation, error) {
	var compilation entity.Compilation
	err := r.db.QueryRowContext(ctx, `SELECT id, title, pinned FROM compilations WHERE id = $1`, id).
		Scan(&compilation.ID, &compilation.Title, &compilation.Pinned)
	if err == sql.ErrNoRows {
		return nil, entity.ErrCompilationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get compilation: %w", err)
	}

	if err := r.attachEvents(ctx, []*entity.Compilation{&compilation}); err != nil {
		return nil, err
	}
	return &compilation, nil
}

func (r *compilationRepository) Update(ctx context.Context, compilation *entity.Compilation) error {
	return inTx(ctx, r.db, func(q querier) error {
		result, err := q.ExecContext(ctx, `UPDATE compilations SET title = $1, pinned = $2 WHERE id = $3`,
			compilation.Title, compilation.Pinned, compilation.ID)
		if err != nil {
			return fmt.Errorf("failed to update compilation: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return entity.ErrCompilationNotFound
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM compilation_events WHERE compilation_id = $1`, compilation.ID); err != nil {
			return fmt.Errorf("failed to unlink compilation events: %w", err)
		}
		return insertCompilationEvents(ctx, q, compilation.ID, compilation.EventIDs)
	})
}

// Delete relies on ON DELETE CASCADE for compilation_events.
func (r *compilationRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM compilations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete compilation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrCompilationNotFound
	}
	return nil
}

func (r *compilationRepository) List(ctx context.Context, pinned *bool, from, size int) ([]*entity.Compilation, error) {
	query := `SELECT id, title, pinned FROM compilations`
	var args []interface{}
	if pinned != nil {
		query += ` WHERE pinned = $1`
		args = append(args, *pinned)
	}
	query += ` ORDER BY id`
	page, pageArgs := pageClause(len(args)+1, from, size)

	rows, err := r.db.QueryContext(ctx, query+page, append(args, pageArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query compilations: %w", err)
	}
	defer rows.Close()

	var compilations []*entity.Compilation
	for rows.Next() {
		var compilation entity.Compilation
		if err := rows.Scan(&compilation.ID, &compilation.Title, &compilation.Pinned); err != nil {
			return nil, fmt.Errorf("failed to scan compilation: %w", err)
		}
		compilations = append(compilations, &compilation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate compilations: %w", err)
	}

	if err := r.attachEvents(ctx, compilations); err != nil {
		return nil, err
	}
	return compilations, nil
}

// attachEvents loads the event sets of all compilations in one query,
// in the order they were given.
func (r *compilationRepository) attachEvents(ctx context.Context, compilations []*entity.Compilation) error {
	if len(compilations) == 0 {
		return nil
	}

	byID := make(map[int64]*entity.Compilation, len(compilations))
	ids := make([]int64, len(compilations))
	for i, compilation := range compilations {
		byID[compilation.ID] = compilation
		ids[i] = compilation.ID
	}

	query := `SELECT compilation_id, event_id FROM compilation_events
		WHERE compilation_id IN (` + placeholders(1, len(ids)) + `) ORDER BY compilation_id, position`
	rows, err := r.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("failed to query compilation events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var compilationID, eventID int64
		if err := rows.Scan(&compilationID, &eventID); err != nil {
			return fmt.Errorf("failed to scan compilation event: %w", err)
		}
		if compilation, ok := byID[compilationID]; ok {
			compilation.EventIDs = append(compilation.EventIDs, eventID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate compilation events: %w", err)
	}
	return nil
}
