package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"sentiment-eval/internal/config"
	"sentiment-eval/internal/csv_processor"
	"sentiment-eval/internal/csvdata"
	"sentiment-eval/internal/models"
	"sentiment-eval/internal/repository"
	"sentiment-eval/internal/service"
)

const maxReportedErrors = 5

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML config file")
	username := flag.String("user", "", "username to record as uploader (default: first admin)")
	validateOnly := flag.Bool("validate-only", false, "only validate the file structure")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <csv_file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	info, err := os.Stat(path)
	if err != nil {
		logger.Fatal("File not found", zap.String("path", path), zap.Error(err))
	}

	if *validateOnly {
		report := validate(path)
		if !report.Valid {
			os.Exit(1)
		}
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := repository.NewDB(cfg.Database.Driver, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.MigrateDB(db, logger); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	ctx := context.Background()
	user, err := resolveUser(ctx, repository.NewUserRepository(db, logger), *username)
	if err != nil {
		logger.Fatal("Failed to resolve uploader", zap.Error(err))
	}

	uploadRepo := repository.NewUploadLogRepository(db, logger)
	processor := csv_processor.NewProcessor(repository.NewReviewRepository(db, logger), uploadRepo, logger, cfg.Ingest.BatchSize)
	uploads := service.NewUploadService(uploadRepo, processor, logger)

	result, err := uploads.Ingest(ctx, service.UploadInput{
		Path:       path,
		Filename:   filepath.Base(path),
		FileSize:   info.Size(),
		UploadedBy: user.ID,
	})
	if err != nil {
		logger.Fatal("Failed to ingest file", zap.Error(err))
	}

	printResult(result)
	if !result.Success {
		os.Exit(1)
	}
}

func validate(path string) csvdata.ValidationReport {
	report := csvdata.Validate(path)
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
	if report.Valid {
		fmt.Println("CSV file is valid")
	} else {
		fmt.Println("CSV file is invalid")
	}
	return report
}

func resolveUser(ctx context.Context, users repository.UserRepository, username string) (*models.User, error) {
	if username == "" {
		user, err := users.FirstAdmin(ctx)
		if err != nil {
			return nil, fmt.Errorf("no admin user found, specify --user: %w", err)
		}
		return user, nil
	}
	user, err := users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", username, err)
	}
	return user, nil
}

func printResult(result csv_processor.Result) {
	if !result.Success {
		fmt.Printf("Processing failed: %s\n", result.Error)
		if len(result.MissingColumns) > 0 {
			fmt.Printf("Missing columns: %s\n", strings.Join(result.MissingColumns, ", "))
		}
		return
	}

	fmt.Println("Processing completed")
	fmt.Printf("  Upload ID:       %s\n", result.UploadID)
	fmt.Printf("  Total rows:      %d\n", result.TotalRows)
	fmt.Printf("  Successful rows: %d\n", result.SuccessfulRows)
	fmt.Printf("  Failed rows:     %d\n", result.FailedRows)

	var rowErrors []string
	for _, entry := range result.ProcessingLog {
		if strings.HasPrefix(entry.Message, "Row ") {
			rowErrors = append(rowErrors, entry.Message)
		}
	}
	if len(rowErrors) == 0 {
		return
	}

	fmt.Println("Row errors:")
	for i, msg := range rowErrors {
		if i == maxReportedErrors {
			fmt.Printf("  ... and %d more\n", len(rowErrors)-maxReportedErrors)
			break
		}
		fmt.Printf("  %s\n", msg)
	}
}
