package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gpalytics/gpalytics-api/internal/models"
	appErrors "github.com/gpalytics/gpalytics-api/pkg/errors"
)

// GradeExtractor recognizes grade rows from a scorecard image.
type GradeExtractor interface {
	Extract(ctx context.Context, image []byte, contentType string) ([]models.CandidateGrade, error)
}

// ImageArchive keeps a copy of accepted scorecard uploads.
type ImageArchive interface {
	Save(filename string, data []byte) (string, error)
}

// UploadConfig bounds what files the upload pipeline accepts.
type UploadConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// UploadService runs the scorecard upload pipeline: file validation, grade
// extraction, then batch ingestion.
type UploadService struct {
	extractor GradeExtractor
	ingest    *IngestService
	archive   ImageArchive
	config    UploadConfig
	logger    *zap.Logger
}

// NewUploadService constructs an UploadService. archive may be nil, in which
// case uploaded images are not retained after extraction.
func NewUploadService(extractor GradeExtractor, ingest *IngestService, archive ImageArchive, config UploadConfig, logger *zap.Logger) *UploadService {
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 10 << 20
	}
	if len(config.AllowedMIMEs) == 0 {
		config.AllowedMIMEs = []string{"image/png", "image/jpeg", "image/webp"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{extractor: extractor, ingest: ingest, archive: archive, config: config, logger: logger}
}

// Process validates the uploaded file, extracts candidate grades from it and
// ingests them for the user.
func (s *UploadService) Process(ctx context.Context, userID, filename, contentType string, size int64, file io.Reader) (*models.IngestSummary, error) {
	if err := s.validateFile(filename, contentType, size); err != nil {
		return nil, err
	}

	image, err := io.ReadAll(io.LimitReader(file, s.config.MaxFileSizeBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidFile.Code, appErrors.ErrInvalidFile.Status, "failed to read uploaded file")
	}
	if int64(len(image)) > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrInvalidFile, fmt.Sprintf("file exceeds %d bytes", s.config.MaxFileSizeBytes))
	}

	candidates, err := s.extractor.Extract(ctx, image, contentType)
	if err != nil {
		s.logger.Warn("grade extraction failed",
			zap.String("user_id", userID),
			zap.String("filename", filename),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrExtractionFailed.Code, appErrors.ErrExtractionFailed.Status, "could not extract grades from image")
	}
	if len(candidates) == 0 {
		return nil, appErrors.Clone(appErrors.ErrExtractionFailed, "no grade rows recognized in image")
	}

	if s.archive != nil {
		archiveName := fmt.Sprintf("%s_%s_%s", userID, time.Now().UTC().Format("20060102150405"), filepath.Base(filename))
		if _, err := s.archive.Save(archiveName, image); err != nil {
			s.logger.Warn("failed to archive uploaded image",
				zap.String("user_id", userID),
				zap.String("filename", filename),
				zap.Error(err))
		}
	}

	return s.ingest.Ingest(ctx, userID, filename, candidates)
}

func (s *UploadService) validateFile(filename, contentType string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return appErrors.Clone(appErrors.ErrInvalidFile, "filename is required")
	}
	if size > s.config.MaxFileSizeBytes {
		return appErrors.Clone(appErrors.ErrInvalidFile, fmt.Sprintf("file exceeds %d bytes", s.config.MaxFileSizeBytes))
	}
	mime := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	for _, allowed := range s.config.AllowedMIMEs {
		if mime == strings.ToLower(allowed) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrInvalidFile, fmt.Sprintf("unsupported file type %q", contentType))
}
