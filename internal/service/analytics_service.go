package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/gpalytics/gpalytics-api/internal/models"
	appErrors "github.com/gpalytics/gpalytics-api/pkg/errors"
)

type analyticsGradeRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Grade, error)
	ListBySemester(ctx context.Context, userID string, semester int) ([]models.Grade, error)
}

// AnalyticsService derives GPA summaries from stored grades. Every figure is
// computed on demand from the grade rows; nothing derived is persisted, so a
// summary always reflects the records as stored.
type AnalyticsService struct {
	repo   analyticsGradeRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(repo analyticsGradeRepository, cache *CacheService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, cache: cache, logger: logger}
}

// SemesterSummary computes the credit-weighted SGPA for one semester. A
// semester with no records yields a summary with a nil SGPA.
func (s *AnalyticsService) SemesterSummary(ctx context.Context, userID string, semester int) (*models.SemesterSummary, bool, error) {
	if semester < 1 || semester > 12 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "semester must be between 1 and 12")
	}

	cacheKey := fmt.Sprintf("analytics:%s:semester:%d", userID, semester)
	var cached models.SemesterSummary
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	grades, err := s.repo.ListBySemester(ctx, userID, semester)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester grades")
	}

	summary := buildSemesterSummary(semester, grades)
	s.storeInCache(ctx, cacheKey, summary)
	return summary, false, nil
}

// CgpaSummary computes the overall credit-weighted CGPA across every stored
// record, with a per-semester breakdown. A user with no grades gets a nil
// CGPA and an empty breakdown.
func (s *AnalyticsService) CgpaSummary(ctx context.Context, userID string) (*models.CgpaSummary, bool, error) {
	cacheKey := fmt.Sprintf("analytics:%s:cgpa", userID)
	var cached models.CgpaSummary
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	grades, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	summary := buildCgpaSummary(grades)
	s.storeInCache(ctx, cacheKey, summary)
	return summary, false, nil
}

// SemesterOverview returns every semester's summary in semester order. It is
// derived from the same data the CGPA summary uses, so it shares its cache.
func (s *AnalyticsService) SemesterOverview(ctx context.Context, userID string) ([]models.SemesterSummary, bool, error) {
	summary, hit, err := s.CgpaSummary(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return summary.Semesters, hit, nil
}

// Performance builds the trend report: per-semester SGPA extremes and
// average, the SGPA trajectory in semester order, and letter grade counts.
func (s *AnalyticsService) Performance(ctx context.Context, userID string) (*models.PerformanceReport, bool, error) {
	cacheKey := fmt.Sprintf("analytics:%s:performance", userID)
	var cached models.PerformanceReport
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	grades, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	cgpa := buildCgpaSummary(grades)
	report := &models.PerformanceReport{
		Cgpa:              *cgpa,
		SgpaTrend:         []float64{},
		GradeDistribution: map[string]int{},
	}

	var sgpas []float64
	for _, sem := range cgpa.Semesters {
		if sem.SGPA != nil {
			sgpas = append(sgpas, *sem.SGPA)
			report.SgpaTrend = append(report.SgpaTrend, *sem.SGPA)
		}
	}
	if len(sgpas) > 0 {
		highest, lowest, sum := sgpas[0], sgpas[0], 0.0
		for _, v := range sgpas {
			if v > highest {
				highest = v
			}
			if v < lowest {
				lowest = v
			}
			sum += v
		}
		avg := roundHalfUp(sum / float64(len(sgpas)))
		report.HighestSGPA = &highest
		report.LowestSGPA = &lowest
		report.AverageSGPA = &avg
	}

	for _, g := range grades {
		report.GradeDistribution[string(g.LetterGrade)]++
	}

	s.storeInCache(ctx, cacheKey, report)
	return report, false, nil
}

func (s *AnalyticsService) storeInCache(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		s.logger.Warn("failed to cache analytics result", zap.String("key", key), zap.Error(err))
	}
}

func buildSemesterSummary(semester int, grades []models.Grade) *models.SemesterSummary {
	summary := &models.SemesterSummary{
		Semester: semester,
		Subjects: []models.SubjectGrade{},
	}

	var weighted float64
	for _, g := range grades {
		summary.Subjects = append(summary.Subjects, models.SubjectGrade{
			CourseCode:  g.CourseCode,
			CourseName:  g.CourseName,
			Credits:     g.Credits,
			LetterGrade: g.LetterGrade,
			GradePoints: g.GradePoints,
		})
		summary.TotalCredits += g.Credits
		weighted += float64(g.Credits) * g.GradePoints
	}
	summary.SubjectCount = len(grades)

	if summary.TotalCredits > 0 {
		sgpa := roundHalfUp(weighted / float64(summary.TotalCredits))
		summary.SGPA = &sgpa
	}
	return summary
}

func buildCgpaSummary(grades []models.Grade) *models.CgpaSummary {
	summary := &models.CgpaSummary{
		Semesters: []models.SemesterSummary{},
	}

	bySemester := map[int][]models.Grade{}
	var weighted float64
	for _, g := range grades {
		bySemester[g.Semester] = append(bySemester[g.Semester], g)
		summary.TotalCredits += g.Credits
		weighted += float64(g.Credits) * g.GradePoints
	}
	summary.TotalSubjects = len(grades)

	semesters := make([]int, 0, len(bySemester))
	for sem := range bySemester {
		semesters = append(semesters, sem)
	}
	sort.Ints(semesters)
	for _, sem := range semesters {
		summary.Semesters = append(summary.Semesters, *buildSemesterSummary(sem, bySemester[sem]))
	}

	if summary.TotalCredits > 0 {
		cgpa := roundHalfUp(weighted / float64(summary.TotalCredits))
		summary.CGPA = &cgpa
	}
	return summary
}

// roundHalfUp rounds to two decimal places, ties away from zero at the
// hundredths digit.
func roundHalfUp(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
