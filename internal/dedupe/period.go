package dedupe

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Period is one year/month folder of the gallery.
type Period struct {
	Year  int
	Month int
}

// ParsePeriod parses "2024/01", "2024-01" or "2024-1".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, "/-")
	if sep < 0 {
		return Period{}, fmt.Errorf("invalid period %q: expected YYYY/MM", s)
	}

	year, err := strconv.Atoi(s[:sep])
	if err != nil || year < 1 || year > 9999 {
		return Period{}, fmt.Errorf("invalid year in period %q", s)
	}
	month, err := strconv.Atoi(s[sep+1:])
	if err != nil || month < 1 || month > 12 {
		return Period{}, fmt.Errorf("invalid month in period %q", s)
	}
	return Period{Year: year, Month: month}, nil
}

// YearString returns the zero-padded year folder name.
func (p Period) YearString() string {
	return fmt.Sprintf("%04d", p.Year)
}

// MonthString returns the zero-padded month folder name.
func (p Period) MonthString() string {
	return fmt.Sprintf("%02d", p.Month)
}

func (p Period) String() string {
	return p.YearString() + "/" + p.MonthString()
}

// Dir returns {gallery}/{year}/{month:02d}.
func (p Period) Dir(gallery string) string {
	return filepath.Join(gallery, p.YearString(), p.MonthString())
}

// Next returns the following month.
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

func (p Period) before(o Period) bool {
	return p.Year < o.Year || (p.Year == o.Year && p.Month < o.Month)
}

// Range returns every period from from to to, both inclusive.
func Range(from, to Period) ([]Period, error) {
	if to.before(from) {
		return nil, fmt.Errorf("period range %s..%s is reversed", from, to)
	}
	var periods []Period
	for p := from; !to.before(p); p = p.Next() {
		periods = append(periods, p)
	}
	return periods, nil
}

// YearPeriods returns January to December of year.
func YearPeriods(year int) []Period {
	periods := make([]Period, 12)
	for m := range periods {
		periods[m] = Period{Year: year, Month: m + 1}
	}
	return periods
}
