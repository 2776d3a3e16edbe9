// Package extract pulls structured facts out of free-text board titles:
// the menu week a title refers to and the cafeteria it names.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"time"
)

// yearWindow bounds how far an explicit year may sit from the current one.
const yearWindow = 5

// datePattern matches the start of a date or date range such as "9/11",
// "2023.9.11", "9-11", "9월 11일", "(9/11~9/17)" or "(2023/12/26~2024/1/1)".
// The range tail is consumed so that its end date is never picked up as a
// second candidate.
var datePattern = regexp.MustCompile(
	`(?:(\d{4})\s*[/.\-]\s*)?(\d{1,2})\s*(?:[/.\-]|월)\s*(\d{1,2})(?:\s*일)?` +
		`(?:\s*~\s*(?:\d{4}\s*[/.\-]\s*)?(?:\d{1,2}\s*(?:[/.\-]|월)\s*)?\d{1,2}(?:\s*일)?)?`,
)

// DateExtractor finds the menu week embedded in a title.
type DateExtractor struct {
	now func() time.Time
}

// NewDateExtractor returns an extractor using now as its clock. A nil
// clock means time.Now.
func NewDateExtractor(now func() time.Time) *DateExtractor {
	if now == nil {
		now = time.Now
	}
	return &DateExtractor{now: now}
}

// WeekStart returns the Monday of the week the earliest date in title
// falls in. ok is false when the title carries no usable date.
//
// Dates without a year take the year of the upcoming Monday. That keeps a
// late-December post for a January week in the right year, but a backfill
// of old posts will attribute them to the current year.
func (e *DateExtractor) WeekStart(title string) (start time.Time, ok bool) {
	dates := e.Dates(title)
	if len(dates) == 0 {
		return time.Time{}, false
	}
	return LastMonday(dates[0]), true
}

// Dates returns every valid date found in title, earliest first.
func (e *DateExtractor) Dates(title string) []time.Time {
	now := e.now()
	inferredYear := UpcomingMonday(now).Year()

	var dates []time.Time
	for _, m := range datePattern.FindAllStringSubmatchIndex(title, -1) {
		if touchesDigit(title, m[0], m[1]) {
			continue
		}

		year := inferredYear
		if m[2] >= 0 {
			y, _ := strconv.Atoi(title[m[2]:m[3]])
			if y < now.Year()-yearWindow || y > now.Year()+yearWindow {
				continue
			}
			year = y
		}
		month, _ := strconv.Atoi(title[m[4]:m[5]])
		day, _ := strconv.Atoi(title[m[6]:m[7]])

		d, valid := makeDate(year, month, day, now.Location())
		if !valid {
			continue
		}
		dates = append(dates, d)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// touchesDigit reports whether the match is glued to a longer number.
func touchesDigit(s string, start, end int) bool {
	if start > 0 && isDigit(s[start-1]) {
		return true
	}
	return end < len(s) && isDigit(s[end])
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// makeDate rejects combinations like Feb 30 that time.Date would normalize.
func makeDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Month() != time.Month(month) || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// Midnight truncates t to the start of its calendar day.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// LastMonday returns the Monday on or before t.
func LastMonday(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return Midnight(t).AddDate(0, 0, -offset)
}

// NextMonday returns the Monday strictly after t.
func NextMonday(t time.Time) time.Time {
	days := (8 - int(t.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	return Midnight(t).AddDate(0, 0, days)
}

// UpcomingMonday returns the Monday on or after t.
func UpcomingMonday(t time.Time) time.Time {
	days := (8 - int(t.Weekday())) % 7
	return Midnight(t).AddDate(0, 0, days)
}
