package imagery

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

type DateRange struct {
	Start string
	End   string
}

func (r DateRange) String() string {
	return r.Start + "/" + r.End
}

// Interval spans Start 00:00:00 to End 23:59:59 UTC.
func (r DateRange) Interval() (time.Time, time.Time, error) {
	from, err := time.Parse(dateLayout, r.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", r.Start, err)
	}
	to, err := time.Parse(dateLayout, r.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", r.End, err)
	}
	return from, to.Add(24*time.Hour - time.Second), nil
}

// February always ends on the 28th, leap years included.
var frequencies = map[string][][2]string{
	"monthly": {
		{"-01-01", "-01-31"}, {"-02-01", "-02-28"}, {"-03-01", "-03-31"}, {"-04-01", "-04-30"},
		{"-05-01", "-05-31"}, {"-06-01", "-06-30"}, {"-07-01", "-07-31"}, {"-08-01", "-08-31"},
		{"-09-01", "-09-30"}, {"-10-01", "-10-31"}, {"-11-01", "-11-30"}, {"-12-01", "-12-31"},
	},
	"bimonthly": {
		{"-01-01", "-02-28"}, {"-03-01", "-04-30"}, {"-05-01", "-06-30"},
		{"-07-01", "-08-31"}, {"-09-01", "-10-31"}, {"-11-01", "-12-31"},
	},
	"quarterly":   {{"-01-01", "-03-31"}, {"-04-01", "-06-30"}, {"-07-01", "-09-30"}, {"-10-01", "-12-31"}},
	"four_months": {{"-01-01", "-04-30"}, {"-05-01", "-08-31"}, {"-09-01", "-12-31"}},
	"six_months":  {{"-01-01", "-06-30"}, {"-07-01", "-12-31"}},
}

// GenerateDateRanges lists the ranges of every year from startYear to
// endYear inclusive.
func GenerateDateRanges(startYear, endYear int, frequency string) ([]DateRange, error) {
	table, ok := frequencies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFrequency, frequency)
	}
	var ranges []DateRange
	for year := startYear; year <= endYear; year++ {
		for _, p := range table {
			ranges = append(ranges, DateRange{
				Start: fmt.Sprintf("%d%s", year, p[0]),
				End:   fmt.Sprintf("%d%s", year, p[1]),
			})
		}
	}
	return ranges, nil
}

func Frequencies() []string {
	return []string{"monthly", "bimonthly", "quarterly", "four_months", "six_months"}
}
