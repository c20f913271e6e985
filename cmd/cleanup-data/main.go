package main

import (
	"context"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"sentiment-eval/internal/config"
	"sentiment-eval/internal/repository"
	"sentiment-eval/internal/service"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML config file")
	dryRun := flag.Bool("dry-run", false, "show what would be deleted without deleting")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := repository.NewDB(cfg.Database.Driver, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	cleanup := service.NewCleanupService(repository.NewReviewRepository(db, logger), logger)

	count, err := cleanup.RemoveEmptySentences(ctx, *dryRun)
	if err != nil {
		logger.Fatal("Cleanup failed", zap.Error(err))
	}

	if *dryRun {
		fmt.Printf("Would delete %d sentences without predictions\n", count)
	} else {
		fmt.Printf("Deleted %d sentences without predictions\n", count)
	}

	stats, err := cleanup.Stats(ctx)
	if err != nil {
		logger.Fatal("Failed to load dataset stats", zap.Error(err))
	}
	fmt.Printf("Dataset: %d reviews, %d sentences, %d predictions\n", stats.Reviews, stats.Sentences, stats.Predictions)
	for model, n := range stats.PredictionsByModel {
		fmt.Printf("  %s: %d\n", model, n)
	}
}
