package core

// Period is a budgeting month.
type Period struct {
	Year  int
	Month int // 1-12
}

func (p Period) Validate() error {
	if p.Year < MinBudgetYear || p.Year > MaxBudgetYear {
		return ErrInvalidYear
	}
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Contains reports whether d falls inside the period.
func (p Period) Contains(d Date) bool {
	return d.Year() == p.Year && d.Month() == p.Month
}

// PeriodOf returns the period a date belongs to.
func PeriodOf(d Date) Period {
	return Period{Year: d.Year(), Month: d.Month()}
}
