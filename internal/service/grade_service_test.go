package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpalytics/gpalytics-api/internal/models"
	appErrors "github.com/gpalytics/gpalytics-api/pkg/errors"
)

type gradeRepoStub struct {
	grades          []models.Grade
	batches         map[string]*models.UploadBatch
	deletedSemester int
	deletedBatch    string
	resetCalled     bool
}

func newGradeRepoStub() *gradeRepoStub {
	return &gradeRepoStub{batches: map[string]*models.UploadBatch{}}
}

func (s *gradeRepoStub) ListByUser(ctx context.Context, userID string) ([]models.Grade, error) {
	return s.grades, nil
}

func (s *gradeRepoStub) ListBySemester(ctx context.Context, userID string, semester int) ([]models.Grade, error) {
	var out []models.Grade
	for _, g := range s.grades {
		if g.Semester == semester {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *gradeRepoStub) ListBatches(ctx context.Context, userID string) ([]models.UploadBatch, error) {
	var out []models.UploadBatch
	for _, b := range s.batches {
		out = append(out, *b)
	}
	return out, nil
}

func (s *gradeRepoStub) FindBatch(ctx context.Context, userID, batchID string) (*models.UploadBatch, error) {
	batch, ok := s.batches[batchID]
	if !ok || batch.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return batch, nil
}

func (s *gradeRepoStub) DeleteBySemester(ctx context.Context, userID string, semester int) (int64, error) {
	s.deletedSemester = semester
	var removed int64
	var kept []models.Grade
	for _, g := range s.grades {
		if g.Semester == semester {
			removed++
			continue
		}
		kept = append(kept, g)
	}
	s.grades = kept
	return removed, nil
}

func (s *gradeRepoStub) DeleteByBatch(ctx context.Context, userID, batchID string) (int64, error) {
	s.deletedBatch = batchID
	delete(s.batches, batchID)
	return 2, nil
}

func (s *gradeRepoStub) DeleteAllByUser(ctx context.Context, userID string) (int64, int64, error) {
	s.resetCalled = true
	grades := int64(len(s.grades))
	batches := int64(len(s.batches))
	s.grades = nil
	s.batches = map[string]*models.UploadBatch{}
	return grades, batches, nil
}

func TestDeleteSemesterInvalidatesAnalyticsCache(t *testing.T) {
	repo := newGradeRepoStub()
	repo.grades = []models.Grade{
		gradeRow(1, "CS101", 4, models.GradeA),
		gradeRow(2, "CS201", 3, models.GradeB),
	}
	cacheRepo := newCacheRepoStub()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	require.NoError(t, cache.Set(context.Background(), "analytics:user-1:cgpa", "stale", 0))

	audits := &auditStub{}
	svc := NewGradeService(repo, audits, cache, nil)

	removed, err := svc.DeleteSemester(context.Background(), "user-1", 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), removed)
	assert.Empty(t, cacheRepo.entries)
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionGradesDelete, audits.logs[0].Action)
}

func TestDeleteSemesterIsIdempotentForEmptySemester(t *testing.T) {
	svc := NewGradeService(newGradeRepoStub(), nil, nil, nil)

	removed, err := svc.DeleteSemester(context.Background(), "user-1", 5)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestDeleteSemesterRejectsOutOfRange(t *testing.T) {
	svc := NewGradeService(newGradeRepoStub(), nil, nil, nil)

	_, err := svc.DeleteSemester(context.Background(), "user-1", 13)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeleteBatchUnknownBatchNotFound(t *testing.T) {
	svc := NewGradeService(newGradeRepoStub(), nil, nil, nil)

	_, err := svc.DeleteBatch(context.Background(), "user-1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeleteBatchRemovesOwnedBatch(t *testing.T) {
	repo := newGradeRepoStub()
	repo.batches["batch-1"] = &models.UploadBatch{ID: "batch-1", UserID: "user-1"}
	svc := NewGradeService(repo, nil, nil, nil)

	removed, err := svc.DeleteBatch(context.Background(), "user-1", "batch-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Equal(t, "batch-1", repo.deletedBatch)
}

func TestDeleteBatchRejectsForeignBatch(t *testing.T) {
	repo := newGradeRepoStub()
	repo.batches["batch-1"] = &models.UploadBatch{ID: "batch-1", UserID: "someone-else"}
	svc := NewGradeService(repo, nil, nil, nil)

	_, err := svc.DeleteBatch(context.Background(), "user-1", "batch-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestResetRemovesEverything(t *testing.T) {
	repo := newGradeRepoStub()
	repo.grades = []models.Grade{gradeRow(1, "CS101", 4, models.GradeA)}
	repo.batches["batch-1"] = &models.UploadBatch{ID: "batch-1", UserID: "user-1"}
	svc := NewGradeService(repo, nil, nil, nil)

	removed, err := svc.Reset(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.True(t, repo.resetCalled)
	assert.Empty(t, repo.grades)
}

func TestListSemesterValidatesBounds(t *testing.T) {
	svc := NewGradeService(newGradeRepoStub(), nil, nil, nil)

	for _, semester := range []int{0, 13} {
		_, err := svc.ListSemester(context.Background(), "user-1", semester)
		require.Error(t, err)
	}
}

func TestGetBatchNotFound(t *testing.T) {
	svc := NewGradeService(newGradeRepoStub(), nil, nil, nil)

	_, err := svc.GetBatch(context.Background(), "user-1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
