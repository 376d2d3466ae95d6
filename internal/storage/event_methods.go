package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wanwatch/wanwatch-server/internal/models"
)

// CreateEvent appends a new telemetry event
func (s *PostgresStore) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now
	if event.Date.IsZero() {
		event.Date = now
	}

	query := `
        INSERT INTO events (
            id, created_at, updated_at, type, serial, mac_address,
            message, date, payload, processed, attempts, dead_letter
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.getDB().ExecContext(ctx, query,
		event.ID, event.CreatedAt, event.UpdatedAt, event.Type, event.Serial,
		event.MACAddress, event.Message, event.Date, event.Payload,
		event.Processed, event.Attempts, event.DeadLetter,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetEvent gets an event by id
func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	query := `
        SELECT id, created_at, updated_at, type, serial, mac_address,
               message, date, payload, processed, attempts, dead_letter
        FROM events
        WHERE id = $1`

	event := &models.Event{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&event.ID, &event.CreatedAt, &event.UpdatedAt, &event.Type,
		&event.Serial, &event.MACAddress, &event.Message, &event.Date,
		&event.Payload, &event.Processed, &event.Attempts, &event.DeadLetter,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return event, nil
}

// ListEvents lists events with filters
func (s *PostgresStore) ListEvents(ctx context.Context, filters EventFilters, limit, offset int) ([]*models.Event, int64, error) {
	query := "SELECT COUNT(*) FROM events WHERE 1=1"
	args := []interface{}{}
	argCount := 0

	if filters.Processed != nil {
		argCount++
		query += fmt.Sprintf(" AND processed = $%d", argCount)
		args = append(args, *filters.Processed)
	}

	if filters.Type != nil {
		argCount++
		query += fmt.Sprintf(" AND LOWER(type) = LOWER($%d)", argCount)
		args = append(args, *filters.Type)
	}

	if filters.Serial != nil {
		argCount++
		query += fmt.Sprintf(" AND serial = $%d", argCount)
		args = append(args, *filters.Serial)
	}

	if filters.MACAddress != nil {
		argCount++
		query += fmt.Sprintf(" AND mac_address = $%d", argCount)
		args = append(args, *filters.MACAddress)
	}

	if filters.StartTime != nil {
		argCount++
		query += fmt.Sprintf(" AND date >= $%d", argCount)
		args = append(args, *filters.StartTime)
	}

	if filters.EndTime != nil {
		argCount++
		query += fmt.Sprintf(" AND date <= $%d", argCount)
		args = append(args, *filters.EndTime)
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	selectQuery := strings.Replace(query, "SELECT COUNT(*)",
		"SELECT id, created_at, updated_at, type, serial, mac_address, message, date, payload, processed, attempts, dead_letter", 1)

	argCount++
	selectQuery += fmt.Sprintf(" ORDER BY date DESC LIMIT $%d", argCount)
	args = append(args, limit)

	argCount++
	selectQuery += fmt.Sprintf(" OFFSET $%d", argCount)
	args = append(args, offset)

	rows, err := s.getDB().QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event := &models.Event{}
		err := rows.Scan(
			&event.ID, &event.CreatedAt, &event.UpdatedAt, &event.Type,
			&event.Serial, &event.MACAddress, &event.Message, &event.Date,
			&event.Payload, &event.Processed, &event.Attempts, &event.DeadLetter,
		)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}

	return events, count, rows.Err()
}

// ListUnprocessedEvents returns the sweep backlog in arrival order. Dead
// letters are excluded; they stay in the table for inspection only.
func (s *PostgresStore) ListUnprocessedEvents(ctx context.Context, limit int) ([]*models.Event, error) {
	query := `
        SELECT id, created_at, updated_at, type, serial, mac_address,
               message, date, payload, processed, attempts, dead_letter
        FROM events
        WHERE processed = FALSE AND dead_letter = FALSE
        ORDER BY created_at ASC
        LIMIT $1`

	rows, err := s.getDB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event := &models.Event{}
		err := rows.Scan(
			&event.ID, &event.CreatedAt, &event.UpdatedAt, &event.Type,
			&event.Serial, &event.MACAddress, &event.Message, &event.Date,
			&event.Payload, &event.Processed, &event.Attempts, &event.DeadLetter,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// MarkEventProcessed flips the processed flag. The flag is only ever flipped
// false -> true.
func (s *PostgresStore) MarkEventProcessed(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx,
		"UPDATE events SET processed = TRUE, updated_at = $2 WHERE id = $1",
		id, time.Now(),
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// RecordEventFailure increments the attempt counter and parks the event as a
// dead letter once maxAttempts is reached. maxAttempts <= 0 disables the
// bound.
func (s *PostgresStore) RecordEventFailure(ctx context.Context, id uuid.UUID, maxAttempts int) error {
	query := `
        UPDATE events
        SET attempts = attempts + 1,
            dead_letter = CASE WHEN $2 > 0 AND attempts + 1 >= $2 THEN TRUE ELSE dead_letter END,
            updated_at = $3
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query, id, maxAttempts, time.Now())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteEvent deletes an event
func (s *PostgresStore) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
