package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Operating window and booking limits.
const (
	OpeningMinute  = 6 * 60
	ClosingMinute  = 23*60 + 59
	MaxAdvanceDays = 30
	MinHours       = 1
	MaxHours       = 12
)

var dateLayouts = []string{"02/01/2006", "02-01-2006", "02/01/06", "02-01-06", "2006-01-02", "2/1/2006", "2-1-2006"}

// ParseDate reads a customer date relative to today. The result is the civil
// day at UTC midnight.
func ParseDate(text string, today time.Time) (time.Time, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	switch t {
	case "hoy", "today":
		return civilDay(today), true
	case "mañana", "manana", "tomorrow":
		return civilDay(today).AddDate(0, 0, 1), true
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, t); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// civilDay drops the clock and zone, keeping the calendar day.
func civilDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysAhead counts calendar days from today to day.
func DaysAhead(day, today time.Time) int {
	return int(civilDay(day).Sub(civilDay(today)).Hours() / 24)
}

var clockPattern = regexp.MustCompile(`^(\d{1,2})(?:[:. ](\d{2}))?\s*(?:h|hs|hrs|horas|hours)?$`)

// ParseClock reads "14:30", "14.30", "14 30" or a bare hour into minutes after midnight.
func ParseClock(text string) (int, bool) {
	m := clockPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if m == nil {
		return 0, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour > 23 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

var leadingInt = regexp.MustCompile(`^(\d{1,3})\b`)

// ParseHours reads a typed duration such as "2", "2 horas" or "3 hours".
func ParseHours(text string) (int, bool) {
	m := leadingInt.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

// FormatClock renders minutes after midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ClockMinutes parses an HH:MM slot value.
func ClockMinutes(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// At places minutes after midnight of day in loc.
func At(day time.Time, minutes int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, loc)
}

// FitsBeforeClosing reports whether hours starting at start end by closing time.
func FitsBeforeClosing(start, hours int) bool {
	return start+hours*60 <= ClosingMinute
}

// FormatPrice renders a price with thousands separators.
func FormatPrice(v float64) string {
	n := int64(v + 0.5)
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "$" + b.String()
}
