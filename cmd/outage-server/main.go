package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wanwatch/wanwatch-server/internal/api"
	"github.com/wanwatch/wanwatch-server/internal/auth"
	"github.com/wanwatch/wanwatch-server/internal/config"
	"github.com/wanwatch/wanwatch-server/internal/engine"
	"github.com/wanwatch/wanwatch-server/internal/integration"
	"github.com/wanwatch/wanwatch-server/internal/mailer"
	"github.com/wanwatch/wanwatch-server/internal/metrics"
	"github.com/wanwatch/wanwatch-server/internal/server"
	"github.com/wanwatch/wanwatch-server/internal/storage"
	"github.com/wanwatch/wanwatch-server/internal/sweep"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/outage-server.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.Log.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Connect to database
	store, err := storage.NewPostgresStore(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer store.Close()

	store.ConfigurePool(cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)

	if cfg.Database.AutoMigrate {
		if err := store.EnsureSchema(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
	}

	log.Info().Msg("connected to database")

	created, err := auth.EnsureAdminUser(context.Background(), store, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed admin user")
	}
	if created {
		log.Warn().
			Str("email", cfg.Admin.Email).
			Msg("seeded initial admin user, change its password after first login")
	}

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mail := mailer.New(cfg.SMTP)

	// Optional NATS connection
	var nc *nats.Conn
	var publisher engine.Publisher
	if cfg.NATS.Enabled && cfg.NATS.URL != "" {
		log.Info().Str("url", cfg.NATS.URL).Msg("connecting to NATS")

		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Server.Name),
			nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
			nats.ReconnectWait(cfg.NATS.ReconnectInterval),
			nats.MaxReconnects(cfg.NATS.MaxReconnects),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				log.Warn().Err(err).Msg("disconnected from NATS")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info().Msg("reconnected to NATS")
			}),
			nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
				log.Error().
					Err(err).
					Str("subject", sub.Subject).
					Msg("NATS error")
			}),
		)

		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, continuing without NATS support")
			nc = nil
		} else {
			defer nc.Close()
			log.Info().Msg("connected to NATS")
			publisher = integration.NewPublisher(nc)
		}
	} else {
		log.Info().Msg("NATS not configured, running in standalone mode")
	}

	// Correlation engine
	eng := engine.New(store, instrumentedSender{mail, m}, publisher)

	// Sweep loop for retry of failed events
	sweeper := sweep.New(store, eng, m, cfg.Sweep)
	sweeper.Start()
	defer sweeper.Stop()

	// REST API server
	apiServer := api.NewRESTServer(cfg, store, eng, mail, m)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := apiServer.ListenAndServe(addr); err != nil {
			log.Error().Err(err).Msg("REST API server stopped")
		}
	}()

	// NATS telemetry ingest
	if nc != nil {
		subscriber := server.NewNATSSubscriber(nc, store, eng, cfg.NATS.EventSubject)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := subscriber.Start(ctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("NATS subscriber stopped")
			}
		}()
	}

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received signal, shutting down")

	cancel()

	if err := apiServer.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("failed to shutdown API server gracefully")
	}

	wg.Wait()

	log.Info().Msg("outage server stopped")
}
