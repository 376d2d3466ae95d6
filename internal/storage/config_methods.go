package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/wanwatch/wanwatch-server/internal/models"
)

// ========== Notification Config Methods ==========

// CreateConfig creates a notification settings record
func (s *PostgresStore) CreateConfig(ctx context.Context, config *models.Config) error {
	if config.ID == uuid.Nil {
		config.ID = uuid.New()
	}

	now := time.Now()
	config.CreatedAt = now
	config.UpdatedAt = now

	query := `
        INSERT INTO configs (id, created_at, updated_at, wait_time,
            enable_full_outage_notification, partial_outage_notification, start_stop_notification)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.getDB().ExecContext(ctx, query,
		config.ID, config.CreatedAt, config.UpdatedAt, config.WaitTime,
		config.EnableFullOutageNotification, config.PartialOutageNotification,
		config.StartStopNotification,
	)

	return err
}

// GetConfig gets a notification settings record by id
func (s *PostgresStore) GetConfig(ctx context.Context, id uuid.UUID) (*models.Config, error) {
	query := `
        SELECT id, created_at, updated_at, wait_time,
               enable_full_outage_notification, partial_outage_notification, start_stop_notification
        FROM configs
        WHERE id = $1`

	config := &models.Config{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&config.ID, &config.CreatedAt, &config.UpdatedAt, &config.WaitTime,
		&config.EnableFullOutageNotification, &config.PartialOutageNotification,
		&config.StartStopNotification,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return config, nil
}

// UpdateConfig updates a notification settings record
func (s *PostgresStore) UpdateConfig(ctx context.Context, config *models.Config) error {
	config.UpdatedAt = time.Now()

	query := `
        UPDATE configs SET
            updated_at = $2, wait_time = $3,
            enable_full_outage_notification = $4, partial_outage_notification = $5,
            start_stop_notification = $6
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		config.ID, config.UpdatedAt, config.WaitTime,
		config.EnableFullOutageNotification, config.PartialOutageNotification,
		config.StartStopNotification,
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

// DeleteConfig deletes a notification settings record
func (s *PostgresStore) DeleteConfig(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM configs WHERE id = $1", id)
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

// ListConfigs lists notification settings records
func (s *PostgresStore) ListConfigs(ctx context.Context, limit, offset int) ([]*models.Config, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM configs").Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, created_at, updated_at, wait_time,
               enable_full_outage_notification, partial_outage_notification, start_stop_notification
        FROM configs
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var configs []*models.Config
	for rows.Next() {
		config := &models.Config{}
		err := rows.Scan(
			&config.ID, &config.CreatedAt, &config.UpdatedAt, &config.WaitTime,
			&config.EnableFullOutageNotification, &config.PartialOutageNotification,
			&config.StartStopNotification,
		)
		if err != nil {
			return nil, 0, err
		}
		configs = append(configs, config)
	}

	return configs, count, rows.Err()
}
