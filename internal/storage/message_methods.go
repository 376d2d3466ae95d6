package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wanwatch/wanwatch-server/internal/models"
)

// ========== Message Template Methods ==========

// CreateMessage creates a message template
func (s *PostgresStore) CreateMessage(ctx context.Context, message *models.Message) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}

	now := time.Now()
	message.CreatedAt = now
	message.UpdatedAt = now

	query := `
        INSERT INTO messages (id, created_at, updated_at, controller_device, message_type, message_text)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.getDB().ExecContext(ctx, query,
		message.ID, message.CreatedAt, message.UpdatedAt,
		message.ControllerDevice, message.MessageType, message.MessageText,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetMessage gets a message template by id
func (s *PostgresStore) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	query := `
        SELECT id, created_at, updated_at, controller_device, message_type, message_text
        FROM messages
        WHERE id = $1`

	message := &models.Message{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&message.ID, &message.CreatedAt, &message.UpdatedAt,
		&message.ControllerDevice, &message.MessageType, &message.MessageText,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return message, nil
}

// FindMessage finds the first template matching a device class and lifecycle
// label. Several templates may exist for a slot; the oldest wins.
func (s *PostgresStore) FindMessage(ctx context.Context, controllerDevice bool, messageType string) (*models.Message, error) {
	query := `
        SELECT id, created_at, updated_at, controller_device, message_type, message_text
        FROM messages
        WHERE controller_device = $1 AND message_type = $2
        ORDER BY created_at ASC
        LIMIT 1`

	message := &models.Message{}
	err := s.getDB().QueryRowContext(ctx, query, controllerDevice, messageType).Scan(
		&message.ID, &message.CreatedAt, &message.UpdatedAt,
		&message.ControllerDevice, &message.MessageType, &message.MessageText,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return message, nil
}

// UpdateMessage updates a message template
func (s *PostgresStore) UpdateMessage(ctx context.Context, message *models.Message) error {
	message.UpdatedAt = time.Now()

	query := `
        UPDATE messages SET
            updated_at = $2, controller_device = $3, message_type = $4, message_text = $5
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		message.ID, message.UpdatedAt, message.ControllerDevice,
		message.MessageType, message.MessageText,
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

// DeleteMessage deletes a message template
func (s *PostgresStore) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM messages WHERE id = $1", id)
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

// ListMessages lists message templates
func (s *PostgresStore) ListMessages(ctx context.Context, limit, offset int) ([]*models.Message, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, created_at, updated_at, controller_device, message_type, message_text
        FROM messages
        ORDER BY message_type ASC
        LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		message := &models.Message{}
		err := rows.Scan(
			&message.ID, &message.CreatedAt, &message.UpdatedAt,
			&message.ControllerDevice, &message.MessageType, &message.MessageText,
		)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, message)
	}

	return messages, count, rows.Err()
}
