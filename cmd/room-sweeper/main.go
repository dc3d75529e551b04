package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/config"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/events"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/metrics"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/repository"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/sweeper"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/database"
	pkglog "github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/log"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/pubsub"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "room-sweeper",
	})
	logger := pkglog.L()

	// 3. Init DB
	db, err := database.New(cfg.DatabaseConfig(), pkglog.Component("gorm"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := repository.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}

	// 4. Init event bus
	bus, err := pubsub.NewPublisher(cfg.Events.Config, cfg.Events.Channel)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Events.Driver).Msg("failed to create event publisher")
	}
	defer bus.Close()

	// 5. Init sweeper and start
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	roomRepo := repository.NewGormRoomRepository(db, cfg.Room.StoreTimeout)
	publisher := events.NewBusPublisher(bus, cfg.Events.Channel, cfg.Events.PublishTimeout)
	sw := sweeper.New(roomRepo, publisher, sweeper.Config{
		Interval:           cfg.Sweeper.Interval,
		PublishConcurrency: cfg.Sweeper.PublishConcurrency,
	})
	sw.Start(ctx)
	logger.Info().
		Dur("interval", cfg.Sweeper.Interval).
		Int("publish_concurrency", cfg.Sweeper.PublishConcurrency).
		Msg("sweeper started")

	// 6. Optional metrics listener
	var srv *http.Server
	if cfg.Sweeper.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		srv = &http.Server{Addr: cfg.Sweeper.MetricsAddr, Handler: pkglog.HTTPMiddleware(logger)(mux)}

		go func() {
			logger.Info().Str("addr", cfg.Sweeper.MetricsAddr).Msg("metrics listener starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics listener error")
			}
		}()
	}

	// 7. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// A cycle in progress finishes announcing what it deleted.
		cancel()
		sw.Stop()
		<-sw.Done()

		if srv != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("metrics listener forced to shutdown")
			}
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("room-sweeper stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
