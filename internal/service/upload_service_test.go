package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpalytics/gpalytics-api/internal/models"
	appErrors "github.com/gpalytics/gpalytics-api/pkg/errors"
)

type extractorStub struct {
	candidates []models.CandidateGrade
	err        error
	lastImage  []byte
}

func (s *extractorStub) Extract(ctx context.Context, image []byte, contentType string) ([]models.CandidateGrade, error) {
	s.lastImage = image
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

func newUploadService(extractor GradeExtractor, cfg UploadConfig) *UploadService {
	ingest := NewIngestService(&gradeStoreStub{}, nil, nil, nil, nil, nil)
	return NewUploadService(extractor, ingest, nil, cfg, nil)
}

func TestProcessRejectsUnsupportedContentType(t *testing.T) {
	svc := newUploadService(&extractorStub{}, UploadConfig{})

	_, err := svc.Process(context.Background(), "user-1", "grades.gif", "image/gif", 128, strings.NewReader("gif"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidFile.Code, appErrors.FromError(err).Code)
}

func TestProcessAcceptsContentTypeWithParameters(t *testing.T) {
	extractor := &extractorStub{candidates: []models.CandidateGrade{
		{CourseCode: "CS101", Semester: 1, Credits: 4, LetterGrade: "A"},
	}}
	svc := newUploadService(extractor, UploadConfig{})

	summary, err := svc.Process(context.Background(), "user-1", "grades.png", "image/PNG; charset=binary", 3, strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Accepted)
}

func TestProcessRejectsOversizedFile(t *testing.T) {
	svc := newUploadService(&extractorStub{}, UploadConfig{MaxFileSizeBytes: 16})

	_, err := svc.Process(context.Background(), "user-1", "grades.png", "image/png", 64, strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidFile.Code, appErrors.FromError(err).Code)
}

func TestProcessRejectsUnderreportedOversizedFile(t *testing.T) {
	// declared size is within bounds but the stream is larger
	svc := newUploadService(&extractorStub{}, UploadConfig{MaxFileSizeBytes: 8})

	body := bytes.NewReader(make([]byte, 32))
	_, err := svc.Process(context.Background(), "user-1", "grades.png", "image/png", 4, body)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidFile.Code, appErrors.FromError(err).Code)
}

func TestProcessRequiresFilename(t *testing.T) {
	svc := newUploadService(&extractorStub{}, UploadConfig{})

	_, err := svc.Process(context.Background(), "user-1", "   ", "image/png", 3, strings.NewReader("png"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidFile.Code, appErrors.FromError(err).Code)
}

func TestProcessWrapsExtractionFailure(t *testing.T) {
	extractor := &extractorStub{err: errors.New("ocr unavailable")}
	svc := newUploadService(extractor, UploadConfig{})

	_, err := svc.Process(context.Background(), "user-1", "grades.png", "image/png", 3, strings.NewReader("png"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExtractionFailed.Code, appErrors.FromError(err).Code)
}

func TestProcessRejectsImageWithNoGradeRows(t *testing.T) {
	svc := newUploadService(&extractorStub{}, UploadConfig{})

	_, err := svc.Process(context.Background(), "user-1", "grades.png", "image/png", 3, strings.NewReader("png"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrExtractionFailed.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "no grade rows")
}

type archiveStub struct {
	saved map[string][]byte
}

func (s *archiveStub) Save(filename string, data []byte) (string, error) {
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[filename] = data
	return filename, nil
}

func TestProcessArchivesAcceptedUpload(t *testing.T) {
	extractor := &extractorStub{candidates: []models.CandidateGrade{
		{CourseCode: "CS101", Semester: 1, Credits: 4, LetterGrade: "A"},
	}}
	archive := &archiveStub{}
	ingest := NewIngestService(&gradeStoreStub{}, nil, nil, nil, nil, nil)
	svc := NewUploadService(extractor, ingest, archive, UploadConfig{}, nil)

	_, err := svc.Process(context.Background(), "user-1", "grades.png", "image/png", 9, strings.NewReader("imagedata"))
	require.NoError(t, err)

	require.Len(t, archive.saved, 1)
	for name, data := range archive.saved {
		assert.Contains(t, name, "user-1")
		assert.Contains(t, name, "grades.png")
		assert.Equal(t, []byte("imagedata"), data)
	}
}

func TestProcessPassesImageBytesToExtractor(t *testing.T) {
	extractor := &extractorStub{candidates: []models.CandidateGrade{
		{CourseCode: "CS101", Semester: 1, Credits: 4, LetterGrade: "A"},
	}}
	svc := newUploadService(extractor, UploadConfig{})

	_, err := svc.Process(context.Background(), "user-1", "grades.png", "image/png", 9, strings.NewReader("imagedata"))
	require.NoError(t, err)
	assert.Equal(t, []byte("imagedata"), extractor.lastImage)
}
