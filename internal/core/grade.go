package core

// Grade is a letter grade derived from an exam percentage.
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeCPlus Grade = "C+"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// gradeBands are evaluated highest-first; first match wins. Anything below
// the D band is F.
var gradeBands = []struct {
	MinPercent float64
	Grade      Grade
}{
	{90, GradeAPlus},
	{80, GradeA},
	{70, GradeBPlus},
	{60, GradeB},
	{50, GradeCPlus},
	{40, GradeC},
	{33, GradeD},
}

// ComputeGrade maps marks to a letter grade via percentage bands.
// totalMarks must be greater than zero; callers are expected to validate
// before calling, this guard returns ErrZeroTotalMarks otherwise.
func ComputeGrade(marksObtained, totalMarks float64) (Grade, error) {
	if totalMarks <= 0 {
		return "", ErrZeroTotalMarks
	}
	percent := marksObtained / totalMarks * 100
	for _, band := range gradeBands {
		if percent >= band.MinPercent {
			return band.Grade, nil
		}
	}
	return GradeF, nil
}
