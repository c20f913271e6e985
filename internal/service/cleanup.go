package service

import (
	"context"

	"go.uber.org/zap"

	"sentiment-eval/internal/repository"
)

// CleanupService removes data that cannot be evaluated.
type CleanupService struct {
	reviewRepo repository.ReviewRepository
	logger     *zap.Logger
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(reviewRepo repository.ReviewRepository, logger *zap.Logger) *CleanupService {
	return &CleanupService{reviewRepo: reviewRepo, logger: logger}
}

// RemoveEmptySentences deletes sentences with no raw prediction from any model and
// returns how many were (or, with dryRun, would be) removed.
func (s *CleanupService) RemoveEmptySentences(ctx context.Context, dryRun bool) (int, error) {
	count, err := s.reviewRepo.DeleteEmptySentences(ctx, dryRun)
	if err != nil {
		s.logger.Error("Failed to clean up empty sentences", zap.Error(err))
		return 0, err
	}
	if dryRun {
		s.logger.Info("Dry run: sentences without predictions", zap.Int("count", count))
	}
	return count, nil
}

// Stats returns the current dataset counts.
func (s *CleanupService) Stats(ctx context.Context) (*repository.DatasetStats, error) {
	return s.reviewRepo.GetDatasetStats(ctx)
}
