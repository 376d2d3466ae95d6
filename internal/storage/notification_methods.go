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

// CreateNotification opens a new outage episode. The partial unique index on
// (serial) WHERE end_date IS NULL turns a concurrent double-open into
// ErrDuplicateKey instead of a second open row.
func (s *PostgresStore) CreateNotification(ctx context.Context, notification *models.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}

	now := time.Now()
	notification.CreatedAt = now
	notification.UpdatedAt = now
	if notification.StartDate.IsZero() {
		notification.StartDate = now
	}

	query := `
        INSERT INTO customer_notifications (
            id, created_at, updated_at, customer_id, serial, mac_address,
            type, start_date, end_date, notified
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.getDB().ExecContext(ctx, query,
		notification.ID, notification.CreatedAt, notification.UpdatedAt,
		notification.CustomerID, notification.Serial, notification.MACAddress,
		notification.Type, notification.StartDate, notification.EndDate,
		notification.Notified,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetNotification gets a notification by id
func (s *PostgresStore) GetNotification(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	query := `
        SELECT id, created_at, updated_at, customer_id, serial, mac_address,
               type, start_date, end_date, notified
        FROM customer_notifications
        WHERE id = $1`

	notification := &models.Notification{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&notification.ID, &notification.CreatedAt, &notification.UpdatedAt,
		&notification.CustomerID, &notification.Serial, &notification.MACAddress,
		&notification.Type, &notification.StartDate, &notification.EndDate,
		&notification.Notified,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return notification, nil
}

// FindOpenNotifications returns all open episodes for a serial, oldest
// first. The invariant allows at most one; callers treat additional rows as
// recoverable corruption.
func (s *PostgresStore) FindOpenNotifications(ctx context.Context, serial string) ([]*models.Notification, error) {
	query := `
        SELECT id, created_at, updated_at, customer_id, serial, mac_address,
               type, start_date, end_date, notified
        FROM customer_notifications
        WHERE serial = $1 AND end_date IS NULL
        ORDER BY start_date ASC`

	rows, err := s.getDB().QueryContext(ctx, query, serial)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		notification := &models.Notification{}
		err := rows.Scan(
			&notification.ID, &notification.CreatedAt, &notification.UpdatedAt,
			&notification.CustomerID, &notification.Serial, &notification.MACAddress,
			&notification.Type, &notification.StartDate, &notification.EndDate,
			&notification.Notified,
		)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}

	return notifications, rows.Err()
}

// CloseNotification sets the end date of an episode
func (s *PostgresStore) CloseNotification(ctx context.Context, id uuid.UUID, endDate time.Time) error {
	result, err := s.getDB().ExecContext(ctx,
		"UPDATE customer_notifications SET end_date = $2, updated_at = $3 WHERE id = $1",
		id, endDate, time.Now(),
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

// MarkNotificationNotified records that the onset email went out
func (s *PostgresStore) MarkNotificationNotified(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx,
		"UPDATE customer_notifications SET notified = TRUE, updated_at = $2 WHERE id = $1",
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

// ListNotifications lists notifications with filters
func (s *PostgresStore) ListNotifications(ctx context.Context, filters NotificationFilters, limit, offset int) ([]*models.Notification, int64, error) {
	query := "SELECT COUNT(*) FROM customer_notifications WHERE 1=1"
	args := []interface{}{}
	argCount := 0

	if filters.Serial != nil {
		argCount++
		query += fmt.Sprintf(" AND serial = $%d", argCount)
		args = append(args, *filters.Serial)
	}

	if filters.CustomerID != nil {
		argCount++
		query += fmt.Sprintf(" AND customer_id = $%d", argCount)
		args = append(args, *filters.CustomerID)
	}

	if filters.Open != nil {
		if *filters.Open {
			query += " AND end_date IS NULL"
		} else {
			query += " AND end_date IS NOT NULL"
		}
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	selectQuery := strings.Replace(query, "SELECT COUNT(*)",
		"SELECT id, created_at, updated_at, customer_id, serial, mac_address, type, start_date, end_date, notified", 1)

	argCount++
	selectQuery += fmt.Sprintf(" ORDER BY start_date DESC LIMIT $%d", argCount)
	args = append(args, limit)

	argCount++
	selectQuery += fmt.Sprintf(" OFFSET $%d", argCount)
	args = append(args, offset)

	rows, err := s.getDB().QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		notification := &models.Notification{}
		err := rows.Scan(
			&notification.ID, &notification.CreatedAt, &notification.UpdatedAt,
			&notification.CustomerID, &notification.Serial, &notification.MACAddress,
			&notification.Type, &notification.StartDate, &notification.EndDate,
			&notification.Notified,
		)
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, notification)
	}

	return notifications, count, rows.Err()
}
