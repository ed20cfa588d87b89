package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/gpalytics/gpalytics-api/internal/models"
)

func newGradeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPersistBatchStoresCandidatesInOrder(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO upload_batches")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT course_code, semester FROM grades WHERE user_id = $1")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"course_code", "semester"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grades")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grades")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE upload_batches SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	batch := &models.UploadBatch{UserID: "user-1", Filename: "sem1.png"}
	candidates := []models.Grade{
		{CourseCode: "CS101", Semester: 1, Credits: 4, LetterGrade: models.GradeA, GradePoints: 9},
		{CourseCode: "MA101", Semester: 1, Credits: 3, LetterGrade: models.GradeB, GradePoints: 8},
	}

	accepted, duplicates, err := repo.PersistBatch(context.Background(), batch, candidates)
	require.NoError(t, err)
	require.Len(t, accepted, 2)
	require.Empty(t, duplicates)
	require.Equal(t, models.BatchStatusCompleted, batch.Status)
	require.Equal(t, 2, batch.AcceptedCount)
	require.NotNil(t, batch.CompletedAt)
	require.NotEmpty(t, accepted[0].ID)
	require.Equal(t, "user-1", accepted[0].UserID)
	require.Equal(t, batch.ID, accepted[0].BatchID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistBatchSkipsStoredAndInBatchDuplicates(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO upload_batches")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT course_code, semester FROM grades WHERE user_id = $1")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"course_code", "semester"}).AddRow("CS101", 1))
	// only MA101 reaches the insert: CS101 is already stored and the second
	// MA101 collides with the first inside the batch
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grades")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE upload_batches SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	batch := &models.UploadBatch{UserID: "user-1", Filename: "sem1.png"}
	candidates := []models.Grade{
		{CourseCode: "CS101", Semester: 1, Credits: 4, LetterGrade: models.GradeA, GradePoints: 9},
		{CourseCode: "MA101", Semester: 1, Credits: 3, LetterGrade: models.GradeB, GradePoints: 8},
		{CourseCode: "MA101", Semester: 1, Credits: 3, LetterGrade: models.GradeC, GradePoints: 7},
	}

	accepted, duplicates, err := repo.PersistBatch(context.Background(), batch, candidates)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	require.Equal(t, "MA101", accepted[0].CourseCode)
	require.Equal(t, []int{0, 2}, duplicates)
	require.Equal(t, 1, batch.AcceptedCount)
	require.Equal(t, 2, batch.DuplicateCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistBatchMarksBatchFailedOnInsertError(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO upload_batches")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT course_code, semester FROM grades WHERE user_id = $1")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"course_code", "semester"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grades")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO upload_batches")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	batch := &models.UploadBatch{UserID: "user-1", Filename: "sem1.png"}
	candidates := []models.Grade{
		{CourseCode: "CS101", Semester: 1, Credits: 4, LetterGrade: models.GradeA, GradePoints: 9},
	}

	_, _, err := repo.PersistBatch(context.Background(), batch, candidates)
	require.Error(t, err)
	require.Equal(t, models.BatchStatusFailed, batch.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBySemesterIsIdempotent(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM grades WHERE user_id = $1 AND semester = $2")).
		WithArgs("user-1", 5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := repo.DeleteBySemester(context.Background(), "user-1", 5)
	require.NoError(t, err)
	require.Zero(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByBatchRemovesBatchRow(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM grades WHERE user_id = $1 AND batch_id = $2")).
		WithArgs("user-1", "batch-1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM upload_batches WHERE user_id = $1 AND id = $2")).
		WithArgs("user-1", "batch-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	removed, err := repo.DeleteByBatch(context.Background(), "user-1", "batch-1")
	require.NoError(t, err)
	require.EqualValues(t, 4, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUserOrdersBySemesterThenCourse(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "batch_id", "course_code", "course_name", "semester", "credits", "letter_grade", "grade_points", "created_at"}).
		AddRow("g1", "user-1", "b1", "CS101", "Programming", 1, 4, "A", 9.0, now).
		AddRow("g2", "user-1", "b1", "MA101", "Calculus", 1, 3, "B", 8.0, now)
	mock.ExpectQuery(`SELECT .+ FROM grades WHERE user_id = \$1 ORDER BY semester ASC, course_code ASC`).
		WithArgs("user-1").
		WillReturnRows(rows)

	grades, err := repo.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, grades, 2)
	require.Equal(t, "CS101", grades[0].CourseCode)
	require.NoError(t, mock.ExpectationsWereMet())
}
