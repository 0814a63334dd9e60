package core

// FeeSummary is a compact row for year-level list views. Status and
// remaining pool are derived at build time, never stored.
type FeeSummary struct {
	FeeID         string
	StudentID     string
	StudentName   string
	AcademicYear  string
	TotalAmount   Money
	RemainingPool Money
	Status        InstallmentStatus
}

// Summarize derives a FeeSummary from a full fee record.
func Summarize(f Fee) FeeSummary {
	return FeeSummary{
		FeeID:         f.ID,
		StudentID:     f.StudentID,
		StudentName:   f.StudentName,
		AcademicYear:  f.AcademicYear,
		TotalAmount:   f.TotalAmount,
		RemainingPool: f.RemainingPool(),
		Status:        f.PaymentStatus(),
	}
}
