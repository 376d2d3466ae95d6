package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wanwatch/wanwatch-server/internal/models"
	"github.com/wanwatch/wanwatch-server/internal/storage"
)

// Sender delivers a rendered outage notification to a customer. Delivery is
// best effort: a failed send never unwinds ledger state.
type Sender interface {
	SendOutageNotification(ctx context.Context, customer *models.Customer, message *models.Message, notification *models.Notification) error
}

// Publisher fans notification lifecycle changes out to external systems.
type Publisher interface {
	NotificationOpened(notification *models.Notification) error
	NotificationClosed(notification *models.Notification) error
}

// Engine correlates raw connectivity events into outage episodes. It owns the
// notification ledger: at most one open episode exists per device serial at
// any time.
type Engine struct {
	store     storage.Store
	sender    Sender
	publisher Publisher

	mu      sync.Mutex
	serials map[string]*sync.Mutex
}

// New creates an engine. sender and publisher may be nil, in which case the
// corresponding side effects are skipped.
func New(store storage.Store, sender Sender, publisher Publisher) *Engine {
	return &Engine{
		store:     store,
		sender:    sender,
		publisher: publisher,
		serials:   make(map[string]*sync.Mutex),
	}
}

// lockSerial serializes processing per device serial so that two events for
// the same device cannot interleave ledger reads and writes. The map keeps
// one mutex per serial ever seen and never evicts; serial cardinality is
// bounded by the device fleet.
func (e *Engine) lockSerial(serial string) func() {
	e.mu.Lock()
	l, ok := e.serials[serial]
	if !ok {
		l = &sync.Mutex{}
		e.serials[serial] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// ProcessEvent classifies one event and applies it to the ledger. Ledger
// mutations and the event's processed flag commit in a single transaction;
// notification dispatch happens strictly after commit. A non-nil return means
// nothing was committed and the event remains eligible for retry.
func (e *Engine) ProcessEvent(ctx context.Context, event *models.Event) error {
	if event == nil {
		return nil
	}
	if event.Processed {
		return nil
	}

	class := Classify(event)

	log.Debug().
		Str("event_id", event.ID.String()).
		Str("type", event.Type).
		Str("serial", event.Serial).
		Str("class", class.String()).
		Msg("processing event")

	switch class {
	case ClassOnset:
		return e.handleOnset(ctx, event)
	case ClassResolution:
		return e.handleResolution(ctx, event)
	default:
		return e.store.MarkEventProcessed(ctx, event.ID)
	}
}

func (e *Engine) handleOnset(ctx context.Context, event *models.Event) error {
	unlock := e.lockSerial(event.Serial)
	locked := true
	defer func() {
		if locked {
			unlock()
		}
	}()

	open, err := e.store.FindOpenNotifications(ctx, event.Serial)
	if err != nil {
		return fmt.Errorf("find open notifications: %w", err)
	}

	if len(open) > 0 {
		if len(open) > 1 {
			log.Warn().
				Str("serial", event.Serial).
				Int("open_count", len(open)).
				Msg("multiple open notifications for serial, ledger corrupted")
		}
		log.Info().
			Str("serial", event.Serial).
			Str("event_id", event.ID.String()).
			Msg("outage already open, skipping duplicate onset")
		return e.store.MarkEventProcessed(ctx, event.ID)
	}

	device, customer, err := resolveOwner(ctx, e.store, event.Serial)
	if err != nil {
		if errors.Is(err, ErrUnresolved) {
			log.Warn().Err(err).
				Str("event_id", event.ID.String()).
				Msg("skipping onset for unresolvable serial")
			return e.store.MarkEventProcessed(ctx, event.ID)
		}
		return err
	}

	notification := &models.Notification{
		CustomerID: customer.ID,
		Serial:     device.Serial,
		MACAddress: device.MACAddress,
		Type:       event.Type,
		StartDate:  event.Date,
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := tx.CreateNotification(ctx, notification); err != nil {
		tx.Rollback()
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Another writer opened an episode between our read and
			// write. Treat like the already-open case.
			log.Info().
				Str("serial", event.Serial).
				Msg("episode opened concurrently, skipping onset")
			return e.store.MarkEventProcessed(ctx, event.ID)
		}
		return fmt.Errorf("create notification: %w", err)
	}

	if err := tx.MarkEventProcessed(ctx, event.ID); err != nil {
		tx.Rollback()
		return fmt.Errorf("mark event processed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	// Ledger state is committed; release the serial before the outbound
	// side so a slow SMTP dial cannot stall other events for this device.
	// MarkNotificationNotified is keyed by notification id and needs no lock.
	locked = false
	unlock()

	log.Info().
		Str("serial", notification.Serial).
		Str("notification_id", notification.ID.String()).
		Bool("controller", device.IsController).
		Msg("outage opened")

	if e.publisher != nil {
		if err := e.publisher.NotificationOpened(notification); err != nil {
			log.Error().Err(err).
				Str("notification_id", notification.ID.String()).
				Msg("failed to publish notification opened")
		}
	}

	e.dispatchOnset(ctx, device, customer, notification)

	return nil
}

// dispatchOnset sends the outage email for a freshly opened episode and, only
// on success, flips the episode's notified flag.
func (e *Engine) dispatchOnset(ctx context.Context, device *models.CustomerDevice, customer *models.Customer, notification *models.Notification) {
	if e.sender == nil {
		return
	}

	message, ok := e.findTemplate(ctx, device.IsController, false)
	if !ok {
		return
	}

	if err := e.sender.SendOutageNotification(ctx, customer, message, notification); err != nil {
		log.Error().Err(err).
			Str("notification_id", notification.ID.String()).
			Str("customer_id", customer.ID.String()).
			Msg("failed to send outage notification")
		return
	}

	if err := e.store.MarkNotificationNotified(ctx, notification.ID); err != nil {
		log.Error().Err(err).
			Str("notification_id", notification.ID.String()).
			Msg("sent notification but failed to record notified flag")
		return
	}
	notification.Notified = true
}

func (e *Engine) handleResolution(ctx context.Context, event *models.Event) error {
	unlock := e.lockSerial(event.Serial)
	locked := true
	defer func() {
		if locked {
			unlock()
		}
	}()

	open, err := e.store.FindOpenNotifications(ctx, event.Serial)
	if err != nil {
		return fmt.Errorf("find open notifications: %w", err)
	}

	if len(open) == 0 {
		log.Info().
			Str("serial", event.Serial).
			Str("event_id", event.ID.String()).
			Msg("resolution with no open outage, skipping")
		return e.store.MarkEventProcessed(ctx, event.ID)
	}

	if len(open) > 1 {
		log.Warn().
			Str("serial", event.Serial).
			Int("open_count", len(open)).
			Msg("multiple open notifications for serial, closing all")
	}

	endDate := event.Date
	if endDate.Before(open[0].StartDate) {
		endDate = open[0].StartDate
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	for _, notification := range open {
		if err := tx.CloseNotification(ctx, notification.ID, endDate); err != nil {
			tx.Rollback()
			return fmt.Errorf("close notification %s: %w", notification.ID, err)
		}
	}

	if err := tx.MarkEventProcessed(ctx, event.ID); err != nil {
		tx.Rollback()
		return fmt.Errorf("mark event processed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	locked = false
	unlock()

	// The oldest open episode drives external signals.
	resolved := open[0]
	resolved.EndDate = &endDate

	log.Info().
		Str("serial", resolved.Serial).
		Str("notification_id", resolved.ID.String()).
		Dur("duration", endDate.Sub(resolved.StartDate)).
		Msg("outage resolved")

	if e.publisher != nil {
		if err := e.publisher.NotificationClosed(resolved); err != nil {
			log.Error().Err(err).
				Str("notification_id", resolved.ID.String()).
				Msg("failed to publish notification closed")
		}
	}

	e.dispatchResolution(ctx, event.Serial, resolved)

	return nil
}

// dispatchResolution sends the all-clear email for a just-closed episode.
// Resolution mail does not touch the notified flag.
func (e *Engine) dispatchResolution(ctx context.Context, serial string, notification *models.Notification) {
	if e.sender == nil {
		return
	}

	device, customer, err := resolveOwner(ctx, e.store, serial)
	if err != nil {
		log.Warn().Err(err).
			Str("serial", serial).
			Msg("skipping resolution notification, owner unresolved")
		return
	}

	message, ok := e.findTemplate(ctx, device.IsController, true)
	if !ok {
		return
	}

	if err := e.sender.SendOutageNotification(ctx, customer, message, notification); err != nil {
		log.Error().Err(err).
			Str("notification_id", notification.ID.String()).
			Str("customer_id", customer.ID.String()).
			Msg("failed to send resolution notification")
	}
}

func (e *Engine) findTemplate(ctx context.Context, controller, resolved bool) (*models.Message, bool) {
	messageType := models.OutageMessageType(controller, resolved)

	message, err := e.store.FindMessage(ctx, controller, messageType)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn().
				Str("message_type", messageType).
				Bool("controller", controller).
				Msg("no message template configured, skipping notification")
		} else {
			log.Error().Err(err).
				Str("message_type", messageType).
				Msg("failed to load message template")
		}
		return nil, false
	}

	return message, true
}

// OpenOutageDuration reports how long an episode has been open. Used by the
// API layer for display.
func OpenOutageDuration(notification *models.Notification, now time.Time) time.Duration {
	if notification.EndDate != nil {
		return notification.EndDate.Sub(notification.StartDate)
	}
	return now.Sub(notification.StartDate)
}
