package models

// LetterGrade is a recognized grade symbol on the 10-point scale.
type LetterGrade string

// Recognized letter grades, descending. AB marks an absent candidate and
// carries zero points, same as a fail.
const (
	GradeS  LetterGrade = "S"
	GradeA  LetterGrade = "A"
	GradeB  LetterGrade = "B"
	GradeC  LetterGrade = "C"
	GradeD  LetterGrade = "D"
	GradeE  LetterGrade = "E"
	GradeF  LetterGrade = "F"
	GradeAB LetterGrade = "AB"
)

const (
	// MinGradePoint is the lowest point value on the scale.
	MinGradePoint = 0.0
	// MaxGradePoint is the highest point value on the scale.
	MaxGradePoint = 10.0
)

var gradePoints = map[LetterGrade]float64{
	GradeS:  10,
	GradeA:  9,
	GradeB:  8,
	GradeC:  7,
	GradeD:  6,
	GradeE:  5,
	GradeF:  0,
	GradeAB: 0,
}

// GradePointFor maps a letter grade to its point value. The second return
// reports whether the symbol is recognized.
func GradePointFor(letter LetterGrade) (float64, bool) {
	points, ok := gradePoints[letter]
	return points, ok
}

// RecognizedGrades returns the set of supported symbols, highest first.
func RecognizedGrades() []LetterGrade {
	return []LetterGrade{GradeS, GradeA, GradeB, GradeC, GradeD, GradeE, GradeF, GradeAB}
}
