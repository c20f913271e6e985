package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sentiment-eval/internal/config"
	"sentiment-eval/internal/csv_processor"
	"sentiment-eval/internal/handler"
	"sentiment-eval/internal/repository"
	"sentiment-eval/internal/server"
	"sentiment-eval/internal/service"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML config file")
	flag.Parse()

	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting sentiment evaluation service...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("JWT secret is not configured")
	}

	db, err := repository.NewDB(cfg.Database.Driver, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.MigrateDB(db, logger); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	reviewRepo := repository.NewReviewRepository(db, logger)
	uploadRepo := repository.NewUploadLogRepository(db, logger)
	evaluationRepo := repository.NewEvaluationRepository(db, logger)

	// Initialize services
	processor := csv_processor.NewProcessor(reviewRepo, uploadRepo, logger, cfg.Ingest.BatchSize)
	uploadService := service.NewUploadService(uploadRepo, processor, logger)
	exporter := service.NewDataExporter(evaluationRepo, logger)
	tokens := service.NewTokenService(cfg.Auth.JWTSecret)

	dataHandler := handler.NewDataHandler(uploadService, exporter, logger, cfg.Server.MaxUploadBytes)
	srv := server.NewServer(dataHandler, tokens, cfg.Auth.UploadRoles, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, ":"+cfg.Server.Port)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
