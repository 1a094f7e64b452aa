package task

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	inPattern   = regexp.MustCompile(`in\s+(\d+|an?|one)\s+(minute|hour|day|week|month)s?`)
	atPattern   = regexp.MustCompile(`at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)
	datePattern = regexp.MustCompile(`(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?`)

	weekdays = []struct {
		name string
		day  time.Weekday
	}{
		{"monday", time.Monday},
		{"tuesday", time.Tuesday},
		{"wednesday", time.Wednesday},
		{"thursday", time.Thursday},
		{"friday", time.Friday},
		{"saturday", time.Saturday},
		{"sunday", time.Sunday},
	}
)

// ParseTimeReference turns phrases like "tomorrow", "friday", "in 3 days",
// "at 5:30 pm" or "12/24" into an absolute time relative to now. The first
// matching rule wins, in that order.
func ParseTimeReference(ref string, now time.Time) (time.Time, bool) {
	ref = strings.ToLower(ref)

	switch {
	case strings.Contains(ref, "today"):
		return atClock(now, 23, 59, 59), true
	case strings.Contains(ref, "tomorrow"):
		return atClock(now.AddDate(0, 0, 1), 23, 59, 59), true
	case strings.Contains(ref, "next week"):
		return now.AddDate(0, 0, 7), true
	case strings.Contains(ref, "next month"):
		return now.AddDate(0, 0, 30), true
	}

	for _, wd := range weekdays {
		if strings.Contains(ref, wd.name) {
			days := (int(wd.day) - int(now.Weekday()) + 7) % 7
			if days == 0 {
				// same weekday means next week's
				days = 7
			}
			return atClock(now.AddDate(0, 0, days), 9, 0, 0), true
		}
	}

	if m := inPattern.FindStringSubmatch(ref); m != nil {
		amount := 1
		if n, err := strconv.Atoi(m[1]); err == nil {
			amount = n
		}
		switch m[2] {
		case "minute":
			return now.Add(time.Duration(amount) * time.Minute), true
		case "hour":
			return now.Add(time.Duration(amount) * time.Hour), true
		case "day":
			return now.AddDate(0, 0, amount), true
		case "week":
			return now.AddDate(0, 0, 7*amount), true
		case "month":
			return now.AddDate(0, 0, 30*amount), true
		}
	}

	if m := atPattern.FindStringSubmatch(ref); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		switch {
		case m[3] == "pm" && hour < 12:
			hour += 12
		case m[3] == "am" && hour == 12:
			hour = 0
		}
		if hour > 23 || minute > 59 {
			return time.Time{}, false
		}
		return atClock(now, hour, minute, 0), true
	}

	if m := datePattern.FindStringSubmatch(ref); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year := now.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}

		t := time.Date(year, time.Month(month), day, 9, 0, 0, 0, now.Location())
		// time.Date normalizes 2/30 into March; reject instead
		if t.Month() != time.Month(month) || t.Day() != day {
			return time.Time{}, false
		}
		return t, true
	}

	return time.Time{}, false
}

func atClock(t time.Time, hour, minute, second int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, second, 0, t.Location())
}
