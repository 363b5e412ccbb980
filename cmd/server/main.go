package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/franckalain/mealcoach/internal/config"
	"github.com/franckalain/mealcoach/internal/database"
	"github.com/franckalain/mealcoach/internal/journal"
	"github.com/franckalain/mealcoach/internal/ml"
	"github.com/franckalain/mealcoach/internal/models"
	"github.com/franckalain/mealcoach/internal/server"
	"github.com/franckalain/mealcoach/internal/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}
	setupLogging(cfg.Server.Debug)

	persona, err := ml.ParsePersona(cfg.Coach.Persona)
	if err != nil {
		log.Fatal().Err(&models.ConfigError{Key: "coach.persona", Reason: err.Error()}).Msg("Invalid configuration")
	}
	policy, err := journal.ParsePolicy(cfg.Coach.EvaluationPolicy)
	if err != nil {
		log.Fatal().Err(&models.ConfigError{Key: "coach.evaluation_policy", Reason: err.Error()}).Msg("Invalid configuration")
	}

	sessions, err := session.NewManager(cfg.Auth.SessionSecret, cfg.Auth.PasswordHash, cfg.SessionTTL())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize the journal store
	table, err := database.Open(ctx, database.Options{
		Type:            cfg.Store.Type,
		Path:            cfg.Store.Path,
		SpreadsheetID:   cfg.Store.SpreadsheetID,
		SheetName:       cfg.Store.SheetName,
		CredentialsFile: cfg.Store.CredentialsFile,
	})
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store.Type).Msg("Failed to open store")
	}
	store := database.NewRecordStore(table, cfg.StoreTimeout(), cfg.Store.CacheSize, cfg.CacheTTL())
	defer store.Close()

	// Initialize ML service
	model, err := ml.NewModel(cfg.ML.Type, cfg.ML.ConfigPath)
	if err != nil {
		log.Fatal().Err(err).Str("model", cfg.ML.Type).Msg("Failed to create ML model")
	}
	if closer, ok := model.(io.Closer); ok {
		defer closer.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return model.Load(gctx) })
	g.Go(func() error { return store.EnsureHeader(gctx) })
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Startup failed")
	}

	svc := journal.NewService(store, model, journal.Options{
		Persona:          persona,
		Policy:           policy,
		AutoEvaluate:     cfg.Coach.AutoEvaluate,
		Location:         cfg.Location(),
		InferenceTimeout: cfg.InferenceTimeout(),
	})
	log.Info().
		Str("store", cfg.Store.Type).
		Str("model", cfg.ML.Type).
		Str("persona", string(persona)).
		Str("policy", string(policy)).
		Str("timezone", cfg.Coach.Timezone).
		Msg("Meal coach ready")

	// Initialize and start server
	srv := server.New(svc, sessions, cfg.Server.StaticDir, cfg.Server.Debug)
	if err := srv.Start(ctx, cfg.Server.Port); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
	log.Info().Msg("Server exiting")
}
