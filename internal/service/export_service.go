package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gpalytics/gpalytics-api/internal/models"
	"github.com/gpalytics/gpalytics-api/pkg/export"
	"github.com/gpalytics/gpalytics-api/pkg/storage"
)

type exportGradeSource interface {
	ListByUser(ctx context.Context, userID string) ([]models.Grade, error)
	ListBySemester(ctx context.Context, userID string, semester int) ([]models.Grade, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService builds export datasets from stored grades and persists the
// rendered files behind signed download tokens.
type ExportService struct {
	grades  exportGradeSource
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(grades exportGradeSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		grades:  grades,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/exports/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "all"
	if job.Params.Semester != nil {
		scope = fmt.Sprintf("sem%d", *job.Params.Semester)
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ExportTypeGrades:
		return s.buildGradesDataset(ctx, job.UserID, job.Params)
	case models.ExportTypeTranscript:
		return s.buildTranscriptDataset(ctx, job.UserID)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %s", job.Type)
	}
}

func (s *ExportService) buildGradesDataset(ctx context.Context, userID string, params models.ExportJobParams) (export.Dataset, string, error) {
	var (
		grades []models.Grade
		err    error
		title  = "Grade Records"
	)
	if params.Semester != nil {
		grades, err = s.grades.ListBySemester(ctx, userID, *params.Semester)
		title = fmt.Sprintf("Grade Records Semester %d", *params.Semester)
	} else {
		grades, err = s.grades.ListByUser(ctx, userID)
	}
	if err != nil {
		return export.Dataset{}, "", err
	}

	rows := make([]map[string]string, 0, len(grades))
	for _, g := range grades {
		rows = append(rows, map[string]string{
			"Semester":     fmt.Sprintf("%d", g.Semester),
			"Course Code":  g.CourseCode,
			"Course Name":  g.CourseName,
			"Credits":      fmt.Sprintf("%d", g.Credits),
			"Grade":        string(g.LetterGrade),
			"Grade Points": fmt.Sprintf("%.1f", g.GradePoints),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Semester", "Course Code", "Course Name", "Credits", "Grade", "Grade Points"},
		Rows:    rows,
	}
	return dataset, title, nil
}

func (s *ExportService) buildTranscriptDataset(ctx context.Context, userID string) (export.Dataset, string, error) {
	grades, err := s.grades.ListByUser(ctx, userID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	summary := buildCgpaSummary(grades)

	rows := make([]map[string]string, 0, len(summary.Semesters)+1)
	for _, sem := range summary.Semesters {
		rows = append(rows, map[string]string{
			"Semester": fmt.Sprintf("%d", sem.Semester),
			"Subjects": fmt.Sprintf("%d", sem.SubjectCount),
			"Credits":  fmt.Sprintf("%d", sem.TotalCredits),
			"SGPA":     formatGPA(sem.SGPA),
		})
	}
	rows = append(rows, map[string]string{
		"Semester": "Overall",
		"Subjects": fmt.Sprintf("%d", summary.TotalSubjects),
		"Credits":  fmt.Sprintf("%d", summary.TotalCredits),
		"SGPA":     formatGPA(summary.CGPA),
	})
	dataset := export.Dataset{
		Headers: []string{"Semester", "Subjects", "Credits", "SGPA"},
		Rows:    rows,
	}
	return dataset, "Academic Transcript", nil
}

func formatGPA(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
