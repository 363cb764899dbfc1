package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// scanLimit caps how much of the combined url+title+content is scanned.
const scanLimit = 2000

var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	// URL path segments: /2026/08/14/ and /20260814/.
	reURLSlash  = regexp.MustCompile(`/(\d{4})/(\d{1,2})/(\d{1,2})(?:/|$)`)
	reURLCompat = regexp.MustCompile(`/(\d{4})(\d{2})(\d{2})(?:/|$|[-_.])`)

	reISO       = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	reMonthDay  = regexp.MustCompile(`(?i)\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	reDayMonth  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+(\d{4})\b`)
	rePublished = regexp.MustCompile(`(?i)\b(?:published|posted|updated)(?:\s+on)?[:\s]+(\d{4}-\d{2}-\d{2})`)
)

// Scan searches the URL, title and content for date patterns and returns the
// most recent valid date found. Pages often mention several dates; the
// newest one is usually the publication date rather than a referenced event.
func Scan(url, title, content string) time.Time {
	text := url + " " + title + " " + content
	if len(text) > scanLimit {
		text = text[:scanLimit]
	}

	var best time.Time
	consider := func(t time.Time) {
		if Valid(t) && t.After(best) {
			best = t
		}
	}

	for _, m := range reURLSlash.FindAllStringSubmatch(url, -1) {
		consider(ymd(m[1], m[2], m[3]))
	}
	for _, m := range reURLCompat.FindAllStringSubmatch(url, -1) {
		consider(ymd(m[1], m[2], m[3]))
	}
	for _, m := range rePublished.FindAllStringSubmatch(text, -1) {
		consider(ParseMetadata(m[1]))
	}
	for _, m := range reISO.FindAllStringSubmatch(text, -1) {
		consider(ymd(m[1], m[2], m[3]))
	}
	for _, m := range reMonthDay.FindAllStringSubmatch(text, -1) {
		consider(monthDate(m[1], m[2], m[3]))
	}
	for _, m := range reDayMonth.FindAllStringSubmatch(text, -1) {
		consider(monthDate(m[2], m[1], m[3]))
	}
	return best
}

func ymd(y, m, d string) time.Time {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)
	return date(year, time.Month(month), day)
}

func monthDate(mon, day, year string) time.Time {
	m, ok := monthIndex[strings.ToLower(mon[:3])]
	if !ok {
		return time.Time{}
	}
	y, _ := strconv.Atoi(year)
	d, _ := strconv.Atoi(day)
	return date(y, m, d)
}

// date builds a calendar date, rejecting impossible day/month combinations
// that time.Date would silently normalize.
func date(year int, month time.Month, day int) time.Time {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month || t.Day() != day {
		return time.Time{}
	}
	return t
}
