package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wanwatch/wanwatch-server/internal/engine"
	"github.com/wanwatch/wanwatch-server/internal/metrics"
	"github.com/wanwatch/wanwatch-server/internal/storage"
)

// Config holds sweep loop settings.
type Config struct {
	Interval    time.Duration `yaml:"interval"`
	BatchSize   int           `yaml:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// Sweeper periodically drains the unprocessed event backlog through the
// correlation engine. Failures are isolated per event: one bad event never
// blocks the rest of a batch, and an event that keeps failing is parked in
// the dead letter set once it exhausts its attempts.
type Sweeper struct {
	store   storage.Store
	engine  *engine.Engine
	metrics *metrics.Metrics
	config  Config

	stop chan struct{}
	done chan struct{}
}

// New creates a sweeper. Zero config values get sensible defaults.
func New(store storage.Store, eng *engine.Engine, m *metrics.Metrics, config Config) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}

	return &Sweeper{
		store:   store,
		engine:  eng,
		metrics: m,
		config:  config,
	}
}

// Start launches the sweep loop in a background goroutine.
func (s *Sweeper) Start() {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop()

	log.Info().
		Dur("interval", s.config.Interval).
		Int("batch_size", s.config.BatchSize).
		Int("max_attempts", s.config.MaxAttempts).
		Msg("sweep loop started")
}

// Stop shuts the loop down and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	log.Info().Msg("sweep loop stopped")
}

func (s *Sweeper) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce drains one batch of unprocessed events. It returns how many events
// were processed and how many failed.
func (s *Sweeper) RunOnce(ctx context.Context) (processed, failed int) {
	events, err := s.store.ListUnprocessedEvents(ctx, s.config.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to list unprocessed events")
		return 0, 0
	}

	if s.metrics != nil {
		s.metrics.SweepBacklog.Set(float64(len(events)))
	}

	for _, event := range events {
		if err := s.engine.ProcessEvent(ctx, event); err != nil {
			failed++
			log.Error().Err(err).
				Str("event_id", event.ID.String()).
				Int("attempts", event.Attempts+1).
				Msg("event processing failed")

			if ferr := s.store.RecordEventFailure(ctx, event.ID, s.config.MaxAttempts); ferr != nil {
				log.Error().Err(ferr).
					Str("event_id", event.ID.String()).
					Msg("failed to record event failure")
			} else if event.Attempts+1 >= s.config.MaxAttempts {
				log.Warn().
					Str("event_id", event.ID.String()).
					Msg("event moved to dead letter set")
				if s.metrics != nil {
					s.metrics.EventsDeadLetter.Inc()
				}
			}

			if s.metrics != nil {
				s.metrics.EventFailures.Inc()
			}
			continue
		}

		processed++
		if s.metrics != nil {
			s.metrics.EventsProcessed.WithLabelValues(engine.Classify(event).String()).Inc()
		}
	}

	if s.metrics != nil {
		s.metrics.SweepRuns.Inc()
	}

	if processed > 0 || failed > 0 {
		log.Info().
			Int("processed", processed).
			Int("failed", failed).
			Msg("sweep pass complete")
	}

	return processed, failed
}
