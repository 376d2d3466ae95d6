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

// ========== Customer Device Methods ==========

// CreateCustomerDevice creates a new customer device
func (s *PostgresStore) CreateCustomerDevice(ctx context.Context, device *models.CustomerDevice) error {
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}

	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now

	query := `
        INSERT INTO customer_devices (
            id, created_at, updated_at, serial, mac_address, customer_id,
            is_controller, status
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.getDB().ExecContext(ctx, query,
		device.ID, device.CreatedAt, device.UpdatedAt, device.Serial,
		device.MACAddress, device.CustomerID, device.IsController, device.Status,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetCustomerDevice gets a customer device by id
func (s *PostgresStore) GetCustomerDevice(ctx context.Context, id uuid.UUID) (*models.CustomerDevice, error) {
	query := `
        SELECT id, created_at, updated_at, serial, mac_address, customer_id,
               is_controller, status
        FROM customer_devices
        WHERE id = $1`

	device := &models.CustomerDevice{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&device.ID, &device.CreatedAt, &device.UpdatedAt, &device.Serial,
		&device.MACAddress, &device.CustomerID, &device.IsController, &device.Status,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return device, nil
}

// GetCustomerDevicesBySerial gets devices by serial. Serials are expected to
// be unique in practice but the feed does not guarantee it, so this returns
// all matches in creation order.
func (s *PostgresStore) GetCustomerDevicesBySerial(ctx context.Context, serial string) ([]*models.CustomerDevice, error) {
	query := `
        SELECT id, created_at, updated_at, serial, mac_address, customer_id,
               is_controller, status
        FROM customer_devices
        WHERE serial = $1
        ORDER BY created_at ASC`

	rows, err := s.getDB().QueryContext(ctx, query, serial)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*models.CustomerDevice
	for rows.Next() {
		device := &models.CustomerDevice{}
		err := rows.Scan(
			&device.ID, &device.CreatedAt, &device.UpdatedAt, &device.Serial,
			&device.MACAddress, &device.CustomerID, &device.IsController, &device.Status,
		)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}

	return devices, rows.Err()
}

// UpdateCustomerDevice updates a customer device
func (s *PostgresStore) UpdateCustomerDevice(ctx context.Context, device *models.CustomerDevice) error {
	device.UpdatedAt = time.Now()

	query := `
        UPDATE customer_devices SET
            updated_at = $2, serial = $3, mac_address = $4, customer_id = $5,
            is_controller = $6, status = $7
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		device.ID, device.UpdatedAt, device.Serial, device.MACAddress,
		device.CustomerID, device.IsController, device.Status,
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

// DeleteCustomerDevice deletes a customer device
func (s *PostgresStore) DeleteCustomerDevice(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM customer_devices WHERE id = $1", id)
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

// ListCustomerDevices lists customer devices, optionally for one customer
func (s *PostgresStore) ListCustomerDevices(ctx context.Context, customerID *uuid.UUID, limit, offset int) ([]*models.CustomerDevice, int64, error) {
	query := "SELECT COUNT(*) FROM customer_devices WHERE 1=1"
	args := []interface{}{}
	argCount := 0

	if customerID != nil {
		argCount++
		query += fmt.Sprintf(" AND customer_id = $%d", argCount)
		args = append(args, customerID.String())
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	selectQuery := strings.Replace(query, "SELECT COUNT(*)",
		"SELECT id, created_at, updated_at, serial, mac_address, customer_id, is_controller, status", 1)

	argCount++
	selectQuery += fmt.Sprintf(" ORDER BY serial ASC LIMIT $%d", argCount)
	args = append(args, limit)

	argCount++
	selectQuery += fmt.Sprintf(" OFFSET $%d", argCount)
	args = append(args, offset)

	rows, err := s.getDB().QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var devices []*models.CustomerDevice
	for rows.Next() {
		device := &models.CustomerDevice{}
		err := rows.Scan(
			&device.ID, &device.CreatedAt, &device.UpdatedAt, &device.Serial,
			&device.MACAddress, &device.CustomerID, &device.IsController, &device.Status,
		)
		if err != nil {
			return nil, 0, err
		}
		devices = append(devices, device)
	}

	return devices, count, rows.Err()
}
