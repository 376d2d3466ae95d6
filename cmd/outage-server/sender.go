package main

import (
	"context"

	"github.com/wanwatch/wanwatch-server/internal/mailer"
	"github.com/wanwatch/wanwatch-server/internal/metrics"
	"github.com/wanwatch/wanwatch-server/internal/models"
)

// instrumentedSender counts successful deliveries per template type.
type instrumentedSender struct {
	mailer  *mailer.Mailer
	metrics *metrics.Metrics
}

func (s instrumentedSender) SendOutageNotification(ctx context.Context, customer *models.Customer, message *models.Message, notification *models.Notification) error {
	err := s.mailer.SendOutageNotification(ctx, customer, message, notification)
	if err == nil {
		s.metrics.NotificationsSent.WithLabelValues(message.MessageType).Inc()
	}
	return err
}
