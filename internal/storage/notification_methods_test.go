package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/wanwatch/wanwatch-server/internal/models"
)

func TestCreateNotification_DuplicateOpenEpisode(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	// The partial unique index rejects a second open row per serial.
	mock.ExpectExec("INSERT INTO customer_notifications").
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "uq_open_notification_per_serial"`))

	notification := &models.Notification{
		CustomerID: uuid.New(),
		Serial:     "SN300",
		Type:       "wan_lost",
	}

	err := store.CreateNotification(context.Background(), notification)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestFindOpenNotifications_OldestFirst(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	older := uuid.New()
	newer := uuid.New()

	rows := sqlmock.NewRows([]string{
		"id", "created_at", "updated_at", "customer_id", "serial", "mac_address",
		"type", "start_date", "end_date", "notified",
	}).
		AddRow(older, now, now, uuid.New(), "SN301", "", "wan_lost", now.Add(-2*time.Hour), nil, true).
		AddRow(newer, now, now, uuid.New(), "SN301", "", "wan_lost", now.Add(-time.Hour), nil, false)

	mock.ExpectQuery("SELECT (.+) FROM customer_notifications").
		WithArgs("SN301").
		WillReturnRows(rows)

	notifications, err := store.FindOpenNotifications(context.Background(), "SN301")
	if err != nil {
		t.Fatalf("FindOpenNotifications: %v", err)
	}
	if len(notifications) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(notifications))
	}
	if notifications[0].ID != older {
		t.Fatal("rows not in oldest-first order")
	}
	if notifications[0].EndDate != nil {
		t.Fatal("open episode has an end date")
	}
}

func TestCloseNotification_NotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE customer_notifications SET end_date").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.CloseNotification(context.Background(), uuid.New(), time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkNotificationNotified(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE customer_notifications SET notified = TRUE").
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.MarkNotificationNotified(context.Background(), id); err != nil {
		t.Fatalf("MarkNotificationNotified: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestOnsetCommitIsAtomic(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO customer_notifications").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE events SET processed = TRUE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}

	notification := &models.Notification{
		CustomerID: uuid.New(),
		Serial:     "SN302",
		Type:       "wan_lost",
	}
	if err := tx.CreateNotification(ctx, notification); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	if err := tx.MarkEventProcessed(ctx, uuid.New()); err != nil {
		t.Fatalf("MarkEventProcessed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}
