package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpalytics/gpalytics-api/internal/models"
	appErrors "github.com/gpalytics/gpalytics-api/pkg/errors"
)

type analyticsRepoStub struct {
	grades    []models.Grade
	listCalls int
}

func (s *analyticsRepoStub) ListByUser(ctx context.Context, userID string) ([]models.Grade, error) {
	s.listCalls++
	return s.grades, nil
}

func (s *analyticsRepoStub) ListBySemester(ctx context.Context, userID string, semester int) ([]models.Grade, error) {
	s.listCalls++
	var out []models.Grade
	for _, g := range s.grades {
		if g.Semester == semester {
			out = append(out, g)
		}
	}
	return out, nil
}

type cacheRepoStub struct {
	entries map[string][]byte
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{entries: map[string][]byte{}}
}

func (s *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.entries[key] = raw
	return nil
}

func (s *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.entries = map[string][]byte{}
	return nil
}

func gradeRow(semester int, code string, credits int, letter models.LetterGrade) models.Grade {
	points, _ := models.GradePointFor(letter)
	return models.Grade{
		UserID:      "user-1",
		CourseCode:  code,
		Semester:    semester,
		Credits:     credits,
		LetterGrade: letter,
		GradePoints: points,
	}
}

func TestSemesterSummaryWeightsByCredits(t *testing.T) {
	repo := &analyticsRepoStub{grades: []models.Grade{
		gradeRow(1, "CS101", 4, models.GradeA),
		gradeRow(1, "MA101", 3, models.GradeB),
	}}
	svc := NewAnalyticsService(repo, nil, nil)

	summary, cacheHit, err := svc.SemesterSummary(context.Background(), "user-1", 1)
	require.NoError(t, err)
	assert.False(t, cacheHit)

	// (4*9 + 3*8) / 7 = 8.5714... rounds half-up to 8.57
	require.NotNil(t, summary.SGPA)
	assert.Equal(t, 8.57, *summary.SGPA)
	assert.Equal(t, 7, summary.TotalCredits)
	assert.Equal(t, 2, summary.SubjectCount)
	assert.Len(t, summary.Subjects, 2)
}

func TestSemesterSummaryEmptySemesterHasNilSGPA(t *testing.T) {
	svc := NewAnalyticsService(&analyticsRepoStub{}, nil, nil)

	summary, _, err := svc.SemesterSummary(context.Background(), "user-1", 3)
	require.NoError(t, err)

	assert.Nil(t, summary.SGPA)
	assert.Zero(t, summary.TotalCredits)
	assert.NotNil(t, summary.Subjects)
	assert.Empty(t, summary.Subjects)
}

func TestSemesterSummaryRejectsOutOfRangeSemester(t *testing.T) {
	svc := NewAnalyticsService(&analyticsRepoStub{}, nil, nil)

	for _, semester := range []int{0, 13, -1} {
		_, _, err := svc.SemesterSummary(context.Background(), "user-1", semester)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestCgpaSummaryOrdersSemestersRegardlessOfInsertionOrder(t *testing.T) {
	repo := &analyticsRepoStub{grades: []models.Grade{
		gradeRow(3, "CS301", 4, models.GradeS),
		gradeRow(1, "CS101", 4, models.GradeA),
		gradeRow(2, "CS201", 4, models.GradeB),
	}}
	svc := NewAnalyticsService(repo, nil, nil)

	summary, _, err := svc.CgpaSummary(context.Background(), "user-1")
	require.NoError(t, err)

	require.Len(t, summary.Semesters, 3)
	assert.Equal(t, 1, summary.Semesters[0].Semester)
	assert.Equal(t, 2, summary.Semesters[1].Semester)
	assert.Equal(t, 3, summary.Semesters[2].Semester)

	// (4*10 + 4*9 + 4*8) / 12 = 9.0
	require.NotNil(t, summary.CGPA)
	assert.Equal(t, 9.0, *summary.CGPA)
	assert.Equal(t, 3, summary.TotalSubjects)
}

func TestCgpaSummaryWithNoGrades(t *testing.T) {
	svc := NewAnalyticsService(&analyticsRepoStub{}, nil, nil)

	summary, _, err := svc.CgpaSummary(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Nil(t, summary.CGPA)
	assert.Zero(t, summary.TotalCredits)
	assert.NotNil(t, summary.Semesters)
	assert.Empty(t, summary.Semesters)
}

func TestPerformanceReportTrendAndExtremes(t *testing.T) {
	repo := &analyticsRepoStub{grades: []models.Grade{
		gradeRow(1, "CS101", 4, models.GradeA), // sgpa 9.0
		gradeRow(2, "CS201", 4, models.GradeB), // sgpa 8.0
		gradeRow(3, "CS301", 4, models.GradeS), // sgpa 10.0
	}}
	svc := NewAnalyticsService(repo, nil, nil)

	report, _, err := svc.Performance(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, []float64{9, 8, 10}, report.SgpaTrend)
	require.NotNil(t, report.HighestSGPA)
	assert.Equal(t, 10.0, *report.HighestSGPA)
	require.NotNil(t, report.LowestSGPA)
	assert.Equal(t, 8.0, *report.LowestSGPA)
	require.NotNil(t, report.AverageSGPA)
	assert.Equal(t, 9.0, *report.AverageSGPA)
	assert.Equal(t, map[string]int{"A": 1, "B": 1, "S": 1}, report.GradeDistribution)
}

func TestPerformanceReportEmptyUser(t *testing.T) {
	svc := NewAnalyticsService(&analyticsRepoStub{}, nil, nil)

	report, _, err := svc.Performance(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Nil(t, report.HighestSGPA)
	assert.Nil(t, report.LowestSGPA)
	assert.Nil(t, report.AverageSGPA)
	assert.NotNil(t, report.SgpaTrend)
	assert.Empty(t, report.SgpaTrend)
	assert.NotNil(t, report.GradeDistribution)
	assert.Empty(t, report.GradeDistribution)
}

func TestCgpaSummaryServedFromCacheOnSecondCall(t *testing.T) {
	repo := &analyticsRepoStub{grades: []models.Grade{
		gradeRow(1, "CS101", 4, models.GradeA),
	}}
	cache := NewCacheService(newCacheRepoStub(), nil, time.Minute, nil, true)
	svc := NewAnalyticsService(repo, cache, nil)

	first, cacheHit, err := svc.CgpaSummary(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, cacheHit)

	second, cacheHit, err := svc.CgpaSummary(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, cacheHit)
	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, first.CGPA, second.CGPA)
	assert.Equal(t, first.TotalCredits, second.TotalCredits)
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 8.57, roundHalfUp(8.571428))
	assert.Equal(t, 8.58, roundHalfUp(8.5751))
	assert.Equal(t, 9.0, roundHalfUp(9.0))
	assert.Equal(t, 0.0, roundHalfUp(0))
}
