// Package dates resolves article publication dates through three tiers:
// provider metadata, a model extraction fallback, and regex scanning of the
// URL and text.
package dates

import (
	"strings"
	"time"
)

// Bounds on a believable publication date. Anything outside is treated as a
// parse artifact (epoch zeros, far-future placeholders) and discarded.
const (
	minYear        = 1990
	futureSlackDay = 30
)

// formats is tried in order against provider metadata strings. Ambiguous
// numeric slash dates resolve US-style first.
var formats = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"20060102",
}

// ParseMetadata parses a provider-supplied date string through the format
// cascade. The zero time means no usable date.
func ParseMetadata(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range formats {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		t = truncateDay(t)
		if Valid(t) {
			return t
		}
	}
	return time.Time{}
}

// Valid reports whether t is a believable publication date: not before 1990
// and not more than 30 days in the future.
func Valid(t time.Time) bool {
	if t.IsZero() || t.Year() < minYear {
		return false
	}
	return !t.After(time.Now().AddDate(0, 0, futureSlackDay))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
