package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wanwatch/wanwatch-server/internal/models"
)

// ========== Customer Methods ==========

// CreateCustomer creates a new customer
func (s *PostgresStore) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}

	now := time.Now()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	query := `
        INSERT INTO customers (id, created_at, updated_at, name, email, phone, address)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.getDB().ExecContext(ctx, query,
		customer.ID, customer.CreatedAt, customer.UpdatedAt,
		customer.Name, customer.Email, customer.Phone, customer.Address,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetCustomer gets a customer by id
func (s *PostgresStore) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	query := `
        SELECT id, created_at, updated_at, name, email, phone, address
        FROM customers
        WHERE id = $1`

	customer := &models.Customer{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&customer.ID, &customer.CreatedAt, &customer.UpdatedAt,
		&customer.Name, &customer.Email, &customer.Phone, &customer.Address,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return customer, nil
}

// UpdateCustomer updates a customer
func (s *PostgresStore) UpdateCustomer(ctx context.Context, customer *models.Customer) error {
	customer.UpdatedAt = time.Now()

	query := `
        UPDATE customers SET
            updated_at = $2, name = $3, email = $4, phone = $5, address = $6
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		customer.ID, customer.UpdatedAt, customer.Name, customer.Email,
		customer.Phone, customer.Address,
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

// DeleteCustomer deletes a customer
func (s *PostgresStore) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM customers WHERE id = $1", id)
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

// ListCustomers lists customers
func (s *PostgresStore) ListCustomers(ctx context.Context, limit, offset int) ([]*models.Customer, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM customers").Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, created_at, updated_at, name, email, phone, address
        FROM customers
        ORDER BY name ASC
        LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var customers []*models.Customer
	for rows.Next() {
		customer := &models.Customer{}
		err := rows.Scan(
			&customer.ID, &customer.CreatedAt, &customer.UpdatedAt,
			&customer.Name, &customer.Email, &customer.Phone, &customer.Address,
		)
		if err != nil {
			return nil, 0, err
		}
		customers = append(customers, customer)
	}

	return customers, count, rows.Err()
}
