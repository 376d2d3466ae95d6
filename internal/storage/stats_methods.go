package storage

import (
	"context"
	"time"
)

// GetDashboardStats collects the aggregate counters for the dashboard in one
// round trip.
func (s *PostgresStore) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	query := `
        SELECT
            (SELECT COUNT(*) FROM customers),
            (SELECT COUNT(*) FROM customer_devices),
            (SELECT COUNT(*) FROM customer_notifications WHERE end_date IS NULL),
            (SELECT COUNT(*) FROM events WHERE date >= $1),
            (SELECT COUNT(*) FROM events WHERE processed = FALSE AND dead_letter = FALSE),
            (SELECT COUNT(*) FROM events WHERE dead_letter = TRUE)`

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats := &DashboardStats{}
	err := s.getDB().QueryRowContext(ctx, query, startOfDay).Scan(
		&stats.Customers, &stats.Devices, &stats.OpenNotifications,
		&stats.EventsToday, &stats.UnprocessedEvents, &stats.DeadLetterEvents,
	)
	if err != nil {
		return nil, err
	}

	return stats, nil
}
