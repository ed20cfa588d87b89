package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gpalytics/gpalytics-api/internal/models"
)

// GradeRepository handles grade record and upload batch persistence.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

const gradeColumns = "id, user_id, batch_id, course_code, course_name, semester, credits, letter_grade, grade_points, created_at"

// ListByUser returns every grade stored for the user, ordered by semester
// then course code so summaries are stable across retrievals.
func (r *GradeRepository) ListByUser(ctx context.Context, userID string) ([]models.Grade, error) {
	query := fmt.Sprintf(`SELECT %s FROM grades WHERE user_id = $1 ORDER BY semester ASC, course_code ASC`, gradeColumns)
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, userID); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// ListBySemester returns the user's grades for one semester, course order.
func (r *GradeRepository) ListBySemester(ctx context.Context, userID string, semester int) ([]models.Grade, error) {
	query := fmt.Sprintf(`SELECT %s FROM grades WHERE user_id = $1 AND semester = $2 ORDER BY course_code ASC`, gradeColumns)
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, userID, semester); err != nil {
		return nil, fmt.Errorf("list semester grades: %w", err)
	}
	return grades, nil
}

// PersistBatch stores one ingestion batch atomically. It takes a per-user
// advisory lock so two concurrent batches for the same user cannot both pass
// the duplicate check before either commits, re-reads the stored course keys
// inside the transaction, and admits candidates in submission order through
// the dedup index. Batch counters and status are finalized in the same
// transaction. On error the transaction rolls back and the batch row is
// marked FAILED on a best-effort basis.
func (r *GradeRepository) PersistBatch(ctx context.Context, batch *models.UploadBatch, candidates []models.Grade) (accepted []models.Grade, duplicates []int, err error) {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.Status = models.BatchStatusPending

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback() //nolint:errcheck
			r.markBatchFailed(ctx, batch)
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, batch.UserID); err != nil {
		return nil, nil, fmt.Errorf("acquire user lock: %w", err)
	}

	const insertBatch = `INSERT INTO upload_batches (id, user_id, filename, status, accepted_count, duplicate_count, error_count, created_at)
        VALUES (:id, :user_id, :filename, :status, :accepted_count, :duplicate_count, :error_count, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertBatch, batch); err != nil {
		return nil, nil, fmt.Errorf("insert upload batch: %w", err)
	}

	var existing []models.Grade
	if err = tx.SelectContext(ctx, &existing, `SELECT course_code, semester FROM grades WHERE user_id = $1`, batch.UserID); err != nil {
		return nil, nil, fmt.Errorf("load stored course keys: %w", err)
	}
	index := models.NewDedupIndex(existing)

	const insertGrade = `INSERT INTO grades (id, user_id, batch_id, course_code, course_name, semester, credits, letter_grade, grade_points, created_at)
        VALUES (:id, :user_id, :batch_id, :course_code, :course_name, :semester, :credits, :letter_grade, :grade_points, :created_at)`
	for i := range candidates {
		if !index.Admit(candidates[i].CourseCode, candidates[i].Semester) {
			duplicates = append(duplicates, i)
			continue
		}
		candidates[i].ID = uuid.NewString()
		candidates[i].UserID = batch.UserID
		candidates[i].BatchID = batch.ID
		candidates[i].CreatedAt = now
		if _, err = tx.NamedExecContext(ctx, insertGrade, candidates[i]); err != nil {
			err = fmt.Errorf("insert grade %s: %w", candidates[i].CourseCode, err)
			return nil, nil, err
		}
		accepted = append(accepted, candidates[i])
	}

	batch.AcceptedCount = len(accepted)
	batch.DuplicateCount += len(duplicates)
	batch.Status = models.BatchStatusCompleted
	batch.CompletedAt = &now
	const finalize = `UPDATE upload_batches SET status = :status, accepted_count = :accepted_count,
        duplicate_count = :duplicate_count, error_count = :error_count, completed_at = :completed_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, finalize, batch); err != nil {
		return nil, nil, fmt.Errorf("finalize upload batch: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit batch: %w", err)
	}
	return accepted, duplicates, nil
}

// markBatchFailed records the failure outside the rolled back transaction so
// the ingestion event stays visible.
func (r *GradeRepository) markBatchFailed(ctx context.Context, batch *models.UploadBatch) {
	batch.Status = models.BatchStatusFailed
	now := time.Now().UTC()
	batch.CompletedAt = &now
	const query = `INSERT INTO upload_batches (id, user_id, filename, status, accepted_count, duplicate_count, error_count, created_at, completed_at)
        VALUES (:id, :user_id, :filename, :status, 0, 0, 0, :created_at, :completed_at)
        ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, completed_at = EXCLUDED.completed_at`
	_, _ = r.db.NamedExecContext(ctx, query, batch)
}

// DeleteBySemester removes the user's grades for one semester. Idempotent:
// deleting nothing is not an error.
func (r *GradeRepository) DeleteBySemester(ctx context.Context, userID string, semester int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grades WHERE user_id = $1 AND semester = $2`, userID, semester)
	if err != nil {
		return 0, fmt.Errorf("delete semester grades: %w", err)
	}
	return res.RowsAffected()
}

// DeleteByBatch removes the grades created by one upload batch and the batch
// row itself. Idempotent.
func (r *GradeRepository) DeleteByBatch(ctx context.Context, userID, batchID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grades WHERE user_id = $1 AND batch_id = $2`, userID, batchID)
	if err != nil {
		return 0, fmt.Errorf("delete batch grades: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM upload_batches WHERE user_id = $1 AND id = $2`, userID, batchID); err != nil {
		return deleted, fmt.Errorf("delete upload batch: %w", err)
	}
	return deleted, nil
}

// DeleteAllByUser wipes the user's grades and upload batches, returning the
// deleted counts.
func (r *GradeRepository) DeleteAllByUser(ctx context.Context, userID string) (grades int64, batches int64, err error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grades WHERE user_id = $1`, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("delete user grades: %w", err)
	}
	if grades, err = res.RowsAffected(); err != nil {
		return 0, 0, err
	}
	res, err = r.db.ExecContext(ctx, `DELETE FROM upload_batches WHERE user_id = $1`, userID)
	if err != nil {
		return grades, 0, fmt.Errorf("delete user batches: %w", err)
	}
	if batches, err = res.RowsAffected(); err != nil {
		return grades, 0, err
	}
	return grades, batches, nil
}

// ListBatches returns the user's upload history, newest first.
func (r *GradeRepository) ListBatches(ctx context.Context, userID string) ([]models.UploadBatch, error) {
	const query = `SELECT id, user_id, filename, status, accepted_count, duplicate_count, error_count, created_at, completed_at
        FROM upload_batches WHERE user_id = $1 ORDER BY created_at DESC`
	var batches []models.UploadBatch
	if err := r.db.SelectContext(ctx, &batches, query, userID); err != nil {
		return nil, fmt.Errorf("list upload batches: %w", err)
	}
	return batches, nil
}

// FindBatch loads one upload batch scoped to its owner.
func (r *GradeRepository) FindBatch(ctx context.Context, userID, batchID string) (*models.UploadBatch, error) {
	const query = `SELECT id, user_id, filename, status, accepted_count, duplicate_count, error_count, created_at, completed_at
        FROM upload_batches WHERE user_id = $1 AND id = $2 LIMIT 1`
	var batch models.UploadBatch
	if err := r.db.GetContext(ctx, &batch, query, userID, batchID); err != nil {
		return nil, err
	}
	return &batch, nil
}
