package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpalytics/gpalytics-api/internal/models"
	appErrors "github.com/gpalytics/gpalytics-api/pkg/errors"
)

type gradeStoreStub struct {
	persisted  []models.Grade
	duplicates []int
	err        error
	lastBatch  *models.UploadBatch
}

func (s *gradeStoreStub) PersistBatch(ctx context.Context, batch *models.UploadBatch, candidates []models.Grade) ([]models.Grade, []int, error) {
	s.lastBatch = batch
	if s.err != nil {
		return nil, nil, s.err
	}
	batch.ID = "batch-1"
	var accepted []models.Grade
	dupSet := map[int]struct{}{}
	for _, idx := range s.duplicates {
		dupSet[idx] = struct{}{}
	}
	for i, c := range candidates {
		if _, dup := dupSet[i]; dup {
			continue
		}
		c.ID = "g"
		c.BatchID = batch.ID
		accepted = append(accepted, c)
	}
	batch.AcceptedCount = len(accepted)
	batch.DuplicateCount = len(s.duplicates)
	batch.Status = models.BatchStatusCompleted
	s.persisted = accepted
	return accepted, s.duplicates, nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (s *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func TestIngestMapsLetterGradesToPoints(t *testing.T) {
	store := &gradeStoreStub{}
	svc := NewIngestService(store, &auditStub{}, nil, nil, nil, nil)

	summary, err := svc.Ingest(context.Background(), "user-1", "sem1.png", []models.CandidateGrade{
		{CourseCode: "CS101", CourseName: "Programming", Semester: 1, Credits: 4, LetterGrade: "A"},
		{CourseCode: "MA101", CourseName: "Calculus", Semester: 1, Credits: 3, LetterGrade: "B"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Accepted)
	assert.Zero(t, summary.Duplicates)
	assert.Zero(t, summary.Errors)
	require.Len(t, store.persisted, 2)
	assert.Equal(t, 9.0, store.persisted[0].GradePoints)
	assert.Equal(t, 8.0, store.persisted[1].GradePoints)
}

func TestIngestRejectsUnrecognizedGrade(t *testing.T) {
	store := &gradeStoreStub{}
	svc := NewIngestService(store, &auditStub{}, nil, nil, nil, nil)

	summary, err := svc.Ingest(context.Background(), "user-1", "sem1.png", []models.CandidateGrade{
		{CourseCode: "CS101", Semester: 1, Credits: 4, LetterGrade: "A"},
		{CourseCode: "XX999", Semester: 1, Credits: 3, LetterGrade: "Q"},
	})
	require.NoError(t, err, "a bad record rejects individually, never the batch")

	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, 1, summary.Errors)
	require.Len(t, summary.Rejections, 1)
	assert.Equal(t, models.RejectionUnrecognizedGrade, summary.Rejections[0].Reason)
	assert.Equal(t, 1, summary.Rejections[0].Position)
	require.Len(t, store.persisted, 1)
	assert.Equal(t, "CS101", store.persisted[0].CourseCode)
}

func TestIngestRejectsMalformedCandidates(t *testing.T) {
	store := &gradeStoreStub{}
	svc := NewIngestService(store, &auditStub{}, nil, nil, nil, nil)

	summary, err := svc.Ingest(context.Background(), "user-1", "sem1.png", []models.CandidateGrade{
		{CourseCode: "", Semester: 1, Credits: 4, LetterGrade: "A"},
		{CourseCode: "CS101", Semester: 0, Credits: 4, LetterGrade: "A"},
		{CourseCode: "CS102", Semester: 1, Credits: 99, LetterGrade: "A"},
	})
	require.NoError(t, err)

	assert.Zero(t, summary.Accepted)
	assert.Equal(t, 3, summary.Errors)
	for _, rejection := range summary.Rejections {
		assert.Equal(t, models.RejectionInvalidCandidate, rejection.Reason)
	}
}

func TestIngestReportsDuplicatePositions(t *testing.T) {
	store := &gradeStoreStub{duplicates: []int{1}}
	svc := NewIngestService(store, &auditStub{}, nil, nil, nil, nil)

	summary, err := svc.Ingest(context.Background(), "user-1", "sem1.png", []models.CandidateGrade{
		{CourseCode: "CS101", Semester: 1, Credits: 4, LetterGrade: "A"},
		{CourseCode: "MA101", Semester: 1, Credits: 3, LetterGrade: "B"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, 1, summary.Duplicates)
	require.Len(t, summary.Rejections, 1)
	assert.Equal(t, models.RejectionDuplicate, summary.Rejections[0].Reason)
	assert.Equal(t, "MA101", summary.Rejections[0].CourseCode)
}

func TestIngestMapsDuplicatePositionsPastRejectedCandidates(t *testing.T) {
	// candidate 1 fails grade mapping, so the stored slice shifts; the
	// duplicate index from the store must map back to the original position
	store := &gradeStoreStub{duplicates: []int{1}}
	svc := NewIngestService(store, &auditStub{}, nil, nil, nil, nil)

	summary, err := svc.Ingest(context.Background(), "user-1", "sem1.png", []models.CandidateGrade{
		{CourseCode: "CS101", Semester: 1, Credits: 4, LetterGrade: "A"},
		{CourseCode: "BAD01", Semester: 1, Credits: 3, LetterGrade: "Q"},
		{CourseCode: "MA101", Semester: 1, Credits: 3, LetterGrade: "B"},
	})
	require.NoError(t, err)

	require.Len(t, summary.Rejections, 2)
	var dup *models.CandidateRejection
	for i := range summary.Rejections {
		if summary.Rejections[i].Reason == models.RejectionDuplicate {
			dup = &summary.Rejections[i]
		}
	}
	require.NotNil(t, dup)
	assert.Equal(t, 2, dup.Position)
	assert.Equal(t, "MA101", dup.CourseCode)
}

func TestIngestNormalizesCourseCodeAndLetter(t *testing.T) {
	store := &gradeStoreStub{}
	svc := NewIngestService(store, &auditStub{}, nil, nil, nil, nil)

	_, err := svc.Ingest(context.Background(), "user-1", "sem1.png", []models.CandidateGrade{
		{CourseCode: " cs101 ", Semester: 1, Credits: 4, LetterGrade: " a "},
	})
	require.NoError(t, err)

	require.Len(t, store.persisted, 1)
	assert.Equal(t, "CS101", store.persisted[0].CourseCode)
	assert.Equal(t, models.GradeA, store.persisted[0].LetterGrade)
}

func TestIngestStorageFailureAbortsBatch(t *testing.T) {
	store := &gradeStoreStub{err: errors.New("connection lost")}
	svc := NewIngestService(store, &auditStub{}, nil, nil, nil, nil)

	_, err := svc.Ingest(context.Background(), "user-1", "sem1.png", []models.CandidateGrade{
		{CourseCode: "CS101", Semester: 1, Credits: 4, LetterGrade: "A"},
	})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrStorageFailure.Code, appErr.Code)
}

func TestIngestRecordsAuditLog(t *testing.T) {
	store := &gradeStoreStub{}
	audits := &auditStub{}
	svc := NewIngestService(store, audits, nil, nil, nil, nil)

	_, err := svc.Ingest(context.Background(), "user-1", "sem1.png", []models.CandidateGrade{
		{CourseCode: "CS101", Semester: 1, Credits: 4, LetterGrade: "A"},
	})
	require.NoError(t, err)

	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionGradesUpload, audits.logs[0].Action)
}
