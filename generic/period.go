package generic

import "fmt"

// =============================================================================
// PERIOD - Inclusive calendar date range
// =============================================================================

// Period is the inclusive date range [Start, End].
//
// Examples:
//   - Weekly pay period: Mon 2025-01-06 .. Sun 2025-01-12
//   - Semi-monthly:      2025-01-01 .. 2025-01-15
//   - Calendar year:     2025-01-01 .. 2025-12-31 (year-to-date windows)
type Period struct {
	Start TimePoint `json:"start" yaml:"start"`
	End   TimePoint `json:"end" yaml:"end"`
}

// Validate rejects empty or reversed ranges.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: missing start or end", ErrInvalidPeriod)
	}
	if !p.Start.Before(p.End) {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidPeriod, p.Start, p.End)
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Overlaps reports whether the two inclusive ranges share at least one day.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Intersect returns the shared sub-range, if any.
func (p Period) Intersect(other Period) (Period, bool) {
	if !p.Overlaps(other) {
		return Period{}, false
	}
	return Period{Start: MaxTime(p.Start, other.Start), End: MinTime(p.End, other.End)}, true
}

// CalendarDays returns the inclusive number of days in the period.
func (p Period) CalendarDays() int {
	return DaysBetween(p.Start, p.End) + 1
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// PAY FREQUENCY - How pay periods are laid out over a year
// =============================================================================

type PayFrequency string

const (
	FrequencyWeekly      PayFrequency = "weekly"
	FrequencyBiWeekly    PayFrequency = "bi_weekly"
	FrequencySemiMonthly PayFrequency = "semi_monthly"
	FrequencyMonthly     PayFrequency = "monthly"
)

func (f PayFrequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiWeekly, FrequencySemiMonthly, FrequencyMonthly:
		return true
	}
	return false
}

// PeriodsPerYear is the conventional number of pay periods for the frequency.
// Withholding rules may override it per jurisdiction.
func (f PayFrequency) PeriodsPerYear() int {
	switch f {
	case FrequencyWeekly:
		return 52
	case FrequencyBiWeekly:
		return 26
	case FrequencySemiMonthly:
		return 24
	case FrequencyMonthly:
		return 12
	default:
		return 0
	}
}

// PeriodStarting returns the pay period of this frequency that begins on start.
//
// Semi-monthly periods split each month at the 15th: a start on or before the
// 15th ends on the 15th, any later start ends on the last day of the month.
func (f PayFrequency) PeriodStarting(start TimePoint) (Period, error) {
	switch f {
	case FrequencyWeekly:
		return Period{Start: start, End: start.AddDays(6)}, nil
	case FrequencyBiWeekly:
		return Period{Start: start, End: start.AddDays(13)}, nil
	case FrequencySemiMonthly:
		if start.Day() <= 15 {
			return Period{Start: start, End: NewTimePoint(start.Year(), start.Month(), 15)}, nil
		}
		return Period{Start: start, End: EndOfMonth(start.Year(), start.Month())}, nil
	case FrequencyMonthly:
		return Period{Start: start, End: start.AddMonths(1).AddDays(-1)}, nil
	default:
		return Period{}, fmt.Errorf("%w: unknown pay frequency %q", ErrInvalidPeriod, f)
	}
}

// NextPeriod returns the pay period immediately following p.
func (f PayFrequency) NextPeriod(p Period) (Period, error) {
	return f.PeriodStarting(p.End.AddDays(1))
}
