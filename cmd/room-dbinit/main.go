package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/config"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/repository"
	pkgconfig "github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/config"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/database"
	pkglog "github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/log"
)

func main() {
	force := flag.Bool("force", envBool("DB_INIT_FORCE"), "drop and recreate the rooms table if it exists")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      true,
		ServiceName: "room-dbinit",
	})
	logger := pkglog.L()

	db, err := database.New(cfg.DatabaseConfig(), pkglog.Component("gorm"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	err = repository.InitSchema(ctx, db, *force)
	cancel()
	_ = database.Close(db)

	switch {
	case errors.Is(err, repository.ErrSchemaExists):
		logger.Error().Msg("rooms table already exists; rerun with --force to recreate it")
		os.Exit(1)
	case err != nil:
		logger.Fatal().Err(err).Msg("failed to initialise schema")
	}

	logger.Info().Bool("force", *force).Msg("rooms table initialised")
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(pkgconfig.GetEnv(key, "false"))
	return err == nil && v
}
