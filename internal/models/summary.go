package models

// SubjectGrade is a single course entry inside a semester summary.
type SubjectGrade struct {
	CourseCode  string      `json:"course_code"`
	CourseName  string      `json:"course_name"`
	Credits     int         `json:"credits"`
	LetterGrade LetterGrade `json:"letter_grade"`
	GradePoints float64     `json:"grade_points"`
}

// SemesterSummary is derived on demand from stored grades, never persisted.
// SGPA is nil when the semester holds no records.
type SemesterSummary struct {
	Semester     int            `json:"semester"`
	SGPA         *float64       `json:"sgpa"`
	TotalCredits int            `json:"total_credits"`
	SubjectCount int            `json:"subject_count"`
	Subjects     []SubjectGrade `json:"subjects"`
}

// CgpaSummary aggregates every semester with the same credit-weighted
// formula applied across all records combined. CGPA is nil when the user has
// no stored grades.
type CgpaSummary struct {
	CGPA          *float64          `json:"cgpa"`
	TotalCredits  int               `json:"total_credits"`
	TotalSubjects int               `json:"total_subjects"`
	Semesters     []SemesterSummary `json:"semesters"`
}

// PerformanceReport adds trend metrics on top of the CGPA breakdown.
type PerformanceReport struct {
	Cgpa              CgpaSummary    `json:"cgpa_data"`
	HighestSGPA       *float64       `json:"highest_sgpa"`
	LowestSGPA        *float64       `json:"lowest_sgpa"`
	AverageSGPA       *float64       `json:"average_sgpa"`
	SgpaTrend         []float64      `json:"sgpa_trend"`
	GradeDistribution map[string]int `json:"grade_distribution"`
}
