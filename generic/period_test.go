package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/generic"
)

func d(s string) generic.TimePoint { return generic.MustParseDate(s) }

func span(start, end string) generic.Period {
	return generic.Period{Start: d(start), End: d(end)}
}

func TestPeriod_Validate(t *testing.T) {
	assert.NoError(t, span("2025-01-06", "2025-01-12").Validate())
	assert.ErrorIs(t, span("2025-01-12", "2025-01-06").Validate(), generic.ErrInvalidPeriod)
	assert.ErrorIs(t, span("2025-01-06", "2025-01-06").Validate(), generic.ErrInvalidPeriod)
	assert.ErrorIs(t, generic.Period{End: d("2025-01-06")}.Validate(), generic.ErrInvalidPeriod)
}

func TestPeriod_OverlapsAndIntersect(t *testing.T) {
	week := span("2025-01-06", "2025-01-12")

	tests := []struct {
		name  string
		other generic.Period
		want  bool
		inter string
	}{
		{"same", week, true, "[2025-01-06, 2025-01-12]"},
		{"touches end", span("2025-01-12", "2025-01-20"), true, "[2025-01-12, 2025-01-12]"},
		{"touches start", span("2025-01-01", "2025-01-06"), true, "[2025-01-06, 2025-01-06]"},
		{"inside", span("2025-01-08", "2025-01-09"), true, "[2025-01-08, 2025-01-09]"},
		{"after", span("2025-01-13", "2025-01-19"), false, ""},
		{"before", span("2024-12-30", "2025-01-05"), false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, week.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(week))
			got, ok := week.Intersect(tt.other)
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.Equal(t, tt.inter, got.String())
			}
		})
	}
}

func TestPeriod_CalendarDaysIsInclusive(t *testing.T) {
	assert.Equal(t, 7, span("2025-01-06", "2025-01-12").CalendarDays())
	assert.Equal(t, 31, span("2025-01-01", "2025-01-31").CalendarDays())
	assert.Equal(t, 29, span("2024-02-01", "2024-02-29").CalendarDays())
	assert.Len(t, span("2025-01-06", "2025-01-12").Days(), 7)
}

func TestPayFrequency_PeriodStarting(t *testing.T) {
	tests := []struct {
		freq  generic.PayFrequency
		start string
		end   string
		next  string
	}{
		{generic.FrequencyWeekly, "2025-01-06", "2025-01-12", "[2025-01-13, 2025-01-19]"},
		{generic.FrequencyBiWeekly, "2025-01-06", "2025-01-19", "[2025-01-20, 2025-02-02]"},
		{generic.FrequencySemiMonthly, "2025-02-01", "2025-02-15", "[2025-02-16, 2025-02-28]"},
		{generic.FrequencySemiMonthly, "2025-02-16", "2025-02-28", "[2025-03-01, 2025-03-15]"},
		{generic.FrequencyMonthly, "2025-01-01", "2025-01-31", "[2025-02-01, 2025-02-28]"},
	}
	for _, tt := range tests {
		t.Run(string(tt.freq)+" "+tt.start, func(t *testing.T) {
			p, err := tt.freq.PeriodStarting(d(tt.start))
			require.NoError(t, err)
			assert.Equal(t, tt.end, p.End.String())

			next, err := tt.freq.NextPeriod(p)
			require.NoError(t, err)
			assert.Equal(t, tt.next, next.String())
			assert.False(t, p.Overlaps(next))
		})
	}

	_, err := generic.PayFrequency("daily").PeriodStarting(d("2025-01-01"))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestPayFrequency_PeriodsPerYear(t *testing.T) {
	assert.Equal(t, 52, generic.FrequencyWeekly.PeriodsPerYear())
	assert.Equal(t, 26, generic.FrequencyBiWeekly.PeriodsPerYear())
	assert.Equal(t, 24, generic.FrequencySemiMonthly.PeriodsPerYear())
	assert.Equal(t, 12, generic.FrequencyMonthly.PeriodsPerYear())
	assert.Zero(t, generic.PayFrequency("x").PeriodsPerYear())
}

func TestTimePoint_DayGranularity(t *testing.T) {
	morning := generic.FromTime(time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC))
	evening := generic.FromTime(time.Date(2025, 1, 6, 23, 0, 0, 0, time.UTC))
	assert.True(t, morning.Equal(evening))
	assert.Equal(t, "2025-01-06", evening.String())
	assert.Equal(t, time.Monday, morning.Weekday())

	_, err := generic.ParseDate("06/01/2025")
	assert.Error(t, err)
}

func TestTimePoint_JSONRoundTrip(t *testing.T) {
	tp := d("2025-03-14")
	b, err := tp.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-14"`, string(b))

	var back generic.TimePoint
	require.NoError(t, back.UnmarshalJSON(b))
	assert.True(t, back.Equal(tp))
}

func TestCurrency_Valid(t *testing.T) {
	tests := []struct {
		code  generic.Currency
		valid bool
	}{
		{generic.CurrencyUSD, true},
		{"JPY", true},
		{"usd", false},
		{"US", false},
		{"ZZQ", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.code.Valid())
		})
	}
}
