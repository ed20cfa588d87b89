package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gpalytics/gpalytics-api/internal/models"
	appErrors "github.com/gpalytics/gpalytics-api/pkg/errors"
)

type gradeRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Grade, error)
	ListBySemester(ctx context.Context, userID string, semester int) ([]models.Grade, error)
	ListBatches(ctx context.Context, userID string) ([]models.UploadBatch, error)
	FindBatch(ctx context.Context, userID, batchID string) (*models.UploadBatch, error)
	DeleteBySemester(ctx context.Context, userID string, semester int) (int64, error)
	DeleteByBatch(ctx context.Context, userID, batchID string) (int64, error)
	DeleteAllByUser(ctx context.Context, userID string) (int64, int64, error)
}

// GradeService exposes read and delete operations over stored grades.
type GradeService struct {
	repo   gradeRepository
	audits ingestAuditRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewGradeService constructs a GradeService.
func NewGradeService(repo gradeRepository, audits ingestAuditRepository, cache *CacheService, logger *zap.Logger) *GradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, audits: audits, cache: cache, logger: logger}
}

// List returns all grades for the user ordered by semester then course code.
func (s *GradeService) List(ctx context.Context, userID string) ([]models.Grade, error) {
	grades, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// ListSemester returns the user's grades for a single semester.
func (s *GradeService) ListSemester(ctx context.Context, userID string, semester int) ([]models.Grade, error) {
	if semester < 1 || semester > 12 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester must be between 1 and 12")
	}
	grades, err := s.repo.ListBySemester(ctx, userID, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semester grades")
	}
	return grades, nil
}

// ListBatches returns the user's upload history, newest first.
func (s *GradeService) ListBatches(ctx context.Context, userID string) ([]models.UploadBatch, error) {
	batches, err := s.repo.ListBatches(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list upload batches")
	}
	return batches, nil
}

// GetBatch returns one upload batch belonging to the user.
func (s *GradeService) GetBatch(ctx context.Context, userID, batchID string) (*models.UploadBatch, error) {
	batch, err := s.repo.FindBatch(ctx, userID, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "upload batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upload batch")
	}
	return batch, nil
}

// DeleteSemester removes every grade the user has in the given semester.
// Deleting an empty semester succeeds with zero removed.
func (s *GradeService) DeleteSemester(ctx context.Context, userID string, semester int) (int64, error) {
	if semester < 1 || semester > 12 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "semester must be between 1 and 12")
	}
	removed, err := s.repo.DeleteBySemester(ctx, userID, semester)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete semester grades")
	}
	s.afterDelete(ctx, userID, fmt.Sprintf(`{"scope":"semester","semester":%d,"removed":%d}`, semester, removed))
	return removed, nil
}

// DeleteBatch removes the grades stored by one upload batch along with the
// batch record itself.
func (s *GradeService) DeleteBatch(ctx context.Context, userID, batchID string) (int64, error) {
	if _, err := s.repo.FindBatch(ctx, userID, batchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "upload batch not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upload batch")
	}
	removed, err := s.repo.DeleteByBatch(ctx, userID, batchID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete batch grades")
	}
	s.afterDelete(ctx, userID, fmt.Sprintf(`{"scope":"batch","batch_id":%q,"removed":%d}`, batchID, removed))
	return removed, nil
}

// Reset removes all of the user's grades and upload history.
func (s *GradeService) Reset(ctx context.Context, userID string) (int64, error) {
	grades, batches, err := s.repo.DeleteAllByUser(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset grades")
	}
	s.afterDelete(ctx, userID, fmt.Sprintf(`{"scope":"reset","grades":%d,"batches":%d}`, grades, batches))
	return grades, nil
}

func (s *GradeService) afterDelete(ctx context.Context, userID, payload string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, analyticsCachePattern(userID)); err != nil {
			s.logger.Warn("failed to invalidate analytics cache after delete", zap.Error(err))
		}
	}
	if s.audits != nil {
		if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
			UserID:    &userID,
			Action:    models.AuditActionGradesDelete,
			Resource:  "grades",
			NewValues: []byte(payload),
		}); err != nil {
			s.logger.Warn("failed to record delete audit log", zap.Error(err))
		}
	}
}
