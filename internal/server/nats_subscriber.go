package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/wanwatch/wanwatch-server/internal/engine"
	"github.com/wanwatch/wanwatch-server/internal/models"
	"github.com/wanwatch/wanwatch-server/internal/storage"
)

// NATSSubscriber ingests telemetry events published by edge collectors. Every
// message is persisted first; correlation runs inline afterwards, and a
// correlation failure leaves the event unprocessed for the sweep loop.
type NATSSubscriber struct {
	nc      *nats.Conn
	store   storage.Store
	engine  *engine.Engine
	subject string
	subs    []*nats.Subscription
}

// NewNATSSubscriber creates a telemetry subscriber
func NewNATSSubscriber(nc *nats.Conn, store storage.Store, eng *engine.Engine, subject string) *NATSSubscriber {
	return &NATSSubscriber{
		nc:      nc,
		store:   store,
		engine:  eng,
		subject: subject,
		subs:    make([]*nats.Subscription, 0),
	}
}

// Start starts subscriptions and blocks until ctx is cancelled
func (s *NATSSubscriber) Start(ctx context.Context) error {
	sub, err := s.nc.Subscribe(s.subject, s.handleTelemetryEvent)
	if err != nil {
		return fmt.Errorf("subscribe telemetry events: %w", err)
	}
	s.subs = append(s.subs, sub)

	log.Info().
		Str("subject", s.subject).
		Msg("NATS subscriber started")

	<-ctx.Done()

	for _, sub := range s.subs {
		sub.Unsubscribe()
	}

	return ctx.Err()
}

// handleTelemetryEvent handles one telemetry message
func (s *NATSSubscriber) handleTelemetryEvent(msg *nats.Msg) {
	log.Debug().
		Str("subject", msg.Subject).
		Int("size", len(msg.Data)).
		Msg("received telemetry event")

	var telemetry struct {
		Type       string    `json:"type"`
		Serial     string    `json:"serial"`
		MACAddress string    `json:"macAddress"`
		Message    string    `json:"message"`
		Date       time.Time `json:"date"`
	}

	if err := json.Unmarshal(msg.Data, &telemetry); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal telemetry event")
		return
	}

	if telemetry.Date.IsZero() {
		telemetry.Date = time.Now()
	}

	event := &models.Event{
		Type:       telemetry.Type,
		Serial:     telemetry.Serial,
		MACAddress: telemetry.MACAddress,
		Message:    telemetry.Message,
		Date:       telemetry.Date,
		Payload:    msg.Data,
	}

	ctx := context.Background()

	if err := s.store.CreateEvent(ctx, event); err != nil {
		log.Error().Err(err).
			Str("serial", event.Serial).
			Msg("failed to persist telemetry event")
		return
	}

	if err := s.engine.ProcessEvent(ctx, event); err != nil {
		log.Error().Err(err).
			Str("event_id", event.ID.String()).
			Msg("inline correlation failed, leaving event for sweep")
	}
}
