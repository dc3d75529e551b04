package main

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/config"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/events"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/handler"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/idgen"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/metrics"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/repository"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/service"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/database"
	pkgjwt "github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/jwt"
	pkglog "github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/log"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/middleware"
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
		ServiceName: "room-service",
	})
	logger := pkglog.L()

	// 3. Init DB and migrate the rooms table
	db, err := database.New(cfg.DatabaseConfig(), pkglog.Component("gorm"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := repository.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	// 4. Init event bus
	bus, err := pubsub.NewPublisher(cfg.Events.Config, cfg.Events.Channel)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Events.Driver).Msg("failed to create event publisher")
	}
	defer bus.Close()
	logger.Info().Str("driver", cfg.Events.Driver).Str("channel", cfg.Events.Channel).Msg("event publisher ready")

	// 5. Load the access token public key
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publicKey, err := loadPublicKey(ctx, cfg.Auth)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load access token public key")
	}
	verifier, err := pkgjwt.NewVerifier(publicKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token verifier")
	}
	authMiddleware := middleware.NewAuthMiddleware(middleware.NewJWTResolver(verifier), cfg.Auth.CookieName)

	// 6. Create repo, id generator, svc
	ids, err := idgen.New(cfg.Room.IDStrategy)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create id generator")
	}
	roomRepo := repository.NewGormRoomRepository(db, cfg.Room.StoreTimeout)
	publisher := events.NewBusPublisher(bus, cfg.Events.Channel, cfg.Events.PublishTimeout)
	svc := service.NewRoomService(roomRepo, ids, publisher, service.Options{
		LeaseLength:       cfg.Room.LeaseLength,
		MaxCreateAttempts: cfg.Room.MaxCreateAttempts,
	})

	// 7. Setup Gin router + HTTP server
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	httpHandler := handler.NewHandler(svc, authMiddleware, cfg.IsProduction())

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	r.Use(metrics.GinMiddleware())
	if !cfg.IsProduction() {
		r.Use(middleware.LocalhostCORS())
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	metrics.Register(r)
	httpHandler.RegisterRoutes(r)

	// 8. Start server goroutine
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info().
			Str("addr", addr).
			Str("env", cfg.App.Env).
			Dur("lease_length", cfg.Room.LeaseLength).
			Msg("room-service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 9. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("room-service stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}

// loadPublicKey resolves the access token key from a file, inline PEM, or
// the user service, in that order.
func loadPublicKey(ctx context.Context, cfg config.AuthConfig) (*rsa.PublicKey, error) {
	switch {
	case cfg.PublicKeyPath != "":
		return pkgjwt.LoadPublicKey(cfg.PublicKeyPath)
	case cfg.PublicKey != "":
		return pkgjwt.ParsePublicKey([]byte(cfg.PublicKey))
	case cfg.UserServiceURL != "":
		fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return pkgjwt.FetchPublicKey(fetchCtx, &http.Client{Timeout: 10 * time.Second}, cfg.UserServiceURL)
	default:
		return nil, errors.New("no access token public key configured")
	}
}
