package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"sentiment-eval/internal/config"
	"sentiment-eval/internal/repository"
	"sentiment-eval/internal/service"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML config file")
	output := flag.String("output", service.ExportFilename, "output CSV file")
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

	exporter := service.NewDataExporter(repository.NewEvaluationRepository(db, logger), logger)
	table, err := exporter.ExportEvaluations(context.Background())
	if err != nil {
		logger.Fatal("Failed to export evaluations", zap.Error(err))
	}

	file, err := os.Create(*output)
	if err != nil {
		logger.Fatal("Failed to create output file", zap.Error(err))
	}
	if err := table.WriteCSV(file); err != nil {
		file.Close()
		logger.Fatal("Failed to write export", zap.Error(err))
	}
	if err := file.Close(); err != nil {
		logger.Fatal("Failed to close output file", zap.Error(err))
	}

	fmt.Printf("Exported %d evaluations to %s\n", table.Len(), *output)
}
