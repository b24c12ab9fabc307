package compliance

import "time"

const day = 24 * time.Hour

// DaysElapsed returns floor((now - date) / 24h). Real elapsed time is used, not calendar days.
func DaysElapsed(date, now time.Time) (int, error) {
	if date.IsZero() {
		return 0, &InvalidDateError{Field: "date"}
	}
	return floorDays(now.Sub(date)), nil
}

func floorDays(d time.Duration) int {
	q := int(d / day)
	if d < 0 && d%day != 0 {
		q--
	}
	return q
}

func ceilDays(d time.Duration) int {
	q := int(d / day)
	if d > 0 && d%day != 0 {
		q++
	}
	return q
}

// AddMonths advances t by n calendar months, clamping to the last day of the target month.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	first := time.Date(y, m+time.Month(n), 1, hh, mm, ss, t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}
