package models

import "time"

// BatchStatus captures the upload batch lifecycle.
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "PENDING"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusFailed    BatchStatus = "FAILED"
)

// Grade represents one stored course result for a user.
type Grade struct {
	ID          string      `db:"id" json:"id"`
	UserID      string      `db:"user_id" json:"user_id"`
	BatchID     string      `db:"batch_id" json:"batch_id"`
	CourseCode  string      `db:"course_code" json:"course_code"`
	CourseName  string      `db:"course_name" json:"course_name"`
	Semester    int         `db:"semester" json:"semester"`
	Credits     int         `db:"credits" json:"credits"`
	LetterGrade LetterGrade `db:"letter_grade" json:"letter_grade"`
	GradePoints float64     `db:"grade_points" json:"grade_points"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// UploadBatch groups the grades stored by one ingestion event.
type UploadBatch struct {
	ID             string      `db:"id" json:"id"`
	UserID         string      `db:"user_id" json:"user_id"`
	Filename       string      `db:"filename" json:"filename"`
	Status         BatchStatus `db:"status" json:"status"`
	AcceptedCount  int         `db:"accepted_count" json:"accepted_count"`
	DuplicateCount int         `db:"duplicate_count" json:"duplicate_count"`
	ErrorCount     int         `db:"error_count" json:"error_count"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	CompletedAt    *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
}

// CandidateGrade is one unvalidated OCR-extracted entry proposed for ingestion.
type CandidateGrade struct {
	CourseCode  string `json:"course_code" validate:"required,max=20"`
	CourseName  string `json:"course_name" validate:"max=200"`
	Semester    int    `json:"semester" validate:"required,min=1,max=12"`
	Credits     int    `json:"credits" validate:"required,min=1,max=10"`
	LetterGrade string `json:"letter_grade" validate:"required,max=5"`
}

// RejectionReason classifies why a candidate was not stored.
type RejectionReason string

const (
	RejectionDuplicate         RejectionReason = "DUPLICATE_RECORD"
	RejectionUnrecognizedGrade RejectionReason = "UNRECOGNIZED_GRADE"
	RejectionInvalidCandidate  RejectionReason = "INVALID_CANDIDATE"
)

// CandidateRejection reports one skipped candidate back to the caller.
type CandidateRejection struct {
	Position   int             `json:"position"`
	CourseCode string          `json:"course_code"`
	Semester   int             `json:"semester"`
	Reason     RejectionReason `json:"reason"`
	Detail     string          `json:"detail,omitempty"`
}

// IngestSummary is the result of processing one candidate batch. It is always
// produced, even when every candidate was rejected; only a storage-layer
// failure replaces it with a hard error.
type IngestSummary struct {
	Batch      *UploadBatch         `json:"batch"`
	Accepted   int                  `json:"accepted"`
	Duplicates int                  `json:"duplicates"`
	Errors     int                  `json:"errors"`
	Stored     []Grade              `json:"stored,omitempty"`
	Rejections []CandidateRejection `json:"rejections,omitempty"`
}
