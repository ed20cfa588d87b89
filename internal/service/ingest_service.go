package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gpalytics/gpalytics-api/internal/models"
	appErrors "github.com/gpalytics/gpalytics-api/pkg/errors"
)

type ingestGradeRepository interface {
	PersistBatch(ctx context.Context, batch *models.UploadBatch, candidates []models.Grade) ([]models.Grade, []int, error)
}

type ingestAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// IngestService turns raw extracted candidates into stored grade records. It
// validates each candidate, maps letter grades to points, delegates atomic
// persistence to the repository, and reports per-record outcomes.
type IngestService struct {
	grades    ingestGradeRepository
	audits    ingestAuditRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewIngestService constructs an IngestService.
func NewIngestService(grades ingestGradeRepository, audits ingestAuditRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *IngestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{grades: grades, audits: audits, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// Ingest processes one candidate batch for the user. Candidates are screened
// in order: malformed entries and unrecognized letter grades are rejected
// individually, duplicates of already stored or earlier in-batch records are
// skipped, and everything left is stored in a single transaction. The summary
// accounts for every candidate; only a storage failure aborts the batch.
func (s *IngestService) Ingest(ctx context.Context, userID, filename string, candidates []models.CandidateGrade) (*models.IngestSummary, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user id is required")
	}

	var (
		rejections []models.CandidateRejection
		rows       []models.Grade
		positions  []int
	)

	for i, candidate := range candidates {
		courseCode := strings.ToUpper(strings.TrimSpace(candidate.CourseCode))
		letter := models.LetterGrade(strings.ToUpper(strings.TrimSpace(candidate.LetterGrade)))

		normalized := candidate
		normalized.CourseCode = courseCode
		if err := s.validator.Struct(normalized); err != nil {
			rejections = append(rejections, models.CandidateRejection{
				Position:   i,
				CourseCode: courseCode,
				Semester:   candidate.Semester,
				Reason:     models.RejectionInvalidCandidate,
				Detail:     err.Error(),
			})
			continue
		}

		points, ok := models.GradePointFor(letter)
		if !ok {
			rejections = append(rejections, models.CandidateRejection{
				Position:   i,
				CourseCode: courseCode,
				Semester:   candidate.Semester,
				Reason:     models.RejectionUnrecognizedGrade,
				Detail:     fmt.Sprintf("letter grade %q is not on the grading scale", candidate.LetterGrade),
			})
			continue
		}

		rows = append(rows, models.Grade{
			UserID:      userID,
			CourseCode:  courseCode,
			CourseName:  strings.TrimSpace(candidate.CourseName),
			Semester:    candidate.Semester,
			Credits:     candidate.Credits,
			LetterGrade: letter,
			GradePoints: points,
		})
		positions = append(positions, i)
	}

	batch := &models.UploadBatch{
		UserID:     userID,
		Filename:   filename,
		ErrorCount: len(rejections),
	}

	accepted, duplicateIdx, err := s.grades.PersistBatch(ctx, batch, rows)
	if err != nil {
		s.logger.Error("grade batch persistence failed",
			zap.String("user_id", userID),
			zap.String("filename", filename),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to store grade batch")
	}

	for _, idx := range duplicateIdx {
		rejections = append(rejections, models.CandidateRejection{
			Position:   positions[idx],
			CourseCode: rows[idx].CourseCode,
			Semester:   rows[idx].Semester,
			Reason:     models.RejectionDuplicate,
			Detail:     "course already recorded for this semester",
		})
	}

	if s.metrics != nil {
		s.metrics.ObserveIngestOutcome(len(accepted), len(duplicateIdx), batch.ErrorCount)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, analyticsCachePattern(userID)); err != nil {
			s.logger.Warn("failed to invalidate analytics cache after ingest", zap.Error(err))
		}
	}

	if s.audits != nil {
		payload := []byte(fmt.Sprintf(`{"batch_id":%q,"accepted":%d,"duplicates":%d,"errors":%d}`,
			batch.ID, len(accepted), len(duplicateIdx), batch.ErrorCount))
		if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &userID,
			Action:     models.AuditActionGradesUpload,
			Resource:   "grades",
			ResourceID: &batch.ID,
			NewValues:  payload,
		}); err != nil {
			s.logger.Warn("failed to record ingest audit log", zap.Error(err))
		}
	}

	s.logger.Info("grade batch ingested",
		zap.String("user_id", userID),
		zap.String("batch_id", batch.ID),
		zap.Int("candidates", len(candidates)),
		zap.Int("accepted", len(accepted)),
		zap.Int("duplicates", len(duplicateIdx)),
		zap.Int("errors", batch.ErrorCount))

	return &models.IngestSummary{
		Batch:      batch,
		Accepted:   len(accepted),
		Duplicates: len(duplicateIdx),
		Errors:     batch.ErrorCount,
		Stored:     accepted,
		Rejections: rejections,
	}, nil
}

func analyticsCachePattern(userID string) string {
	return fmt.Sprintf("analytics:%s:*", userID)
}
