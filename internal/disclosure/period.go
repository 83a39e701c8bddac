package disclosure

import (
	"fmt"
	"time"
)

// Report codes of the periodic business reports.
const (
	ReportQ1     = "11013"
	ReportHalf   = "11012"
	ReportQ3     = "11014"
	ReportAnnual = "11011"
)

// Period is one periodic report of a business year.
type Period struct {
	Year       int
	ReportCode string
	End        time.Time
}

// Key identifies the period by its end date, YYYYMMDD. Keys sort chronologically.
func (p Period) Key() string {
	return p.End.Format("20060102")
}

func (p Period) String() string {
	switch p.ReportCode {
	case ReportQ1:
		return fmt.Sprintf("%d Q1", p.Year)
	case ReportHalf:
		return fmt.Sprintf("%d H1", p.Year)
	case ReportQ3:
		return fmt.Sprintf("%d Q3", p.Year)
	default:
		return fmt.Sprintf("%d FY", p.Year)
	}
}

var quarterEnds = []struct {
	code  string
	month time.Month
	day   int
}{
	{ReportQ1, time.March, 31},
	{ReportHalf, time.June, 30},
	{ReportQ3, time.September, 30},
	{ReportAnnual, time.December, 31},
}

// ValidYears reports whether a look-back window is supported.
func ValidYears(years int) bool {
	return years == 3 || years == 5
}

// StartDate returns the first day of a look-back window of 365*years days.
func StartDate(now time.Time, years int) time.Time {
	return truncateDay(now).AddDate(0, 0, -365*years)
}

// QuarterlyPeriods lists the reports whose period ended inside
// [StartDate(now, years), now], oldest first.
func QuarterlyPeriods(now time.Time, years int) []Period {
	start := StartDate(now, years)
	today := truncateDay(now)

	var periods []Period
	for y := start.Year(); y <= today.Year(); y++ {
		for _, q := range quarterEnds {
			end := time.Date(y, q.month, q.day, 0, 0, 0, 0, now.Location())
			if end.Before(start) || end.After(today) {
				continue
			}
			periods = append(periods, Period{Year: y, ReportCode: q.code, End: end})
		}
	}
	return periods
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
