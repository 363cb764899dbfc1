package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// SearchMode selects how query strategies are generated.
type SearchMode string

const (
	ModeStandard     SearchMode = "standard"
	ModeTitleOnly    SearchMode = "title"
	ModeCooccurrence SearchMode = "cooccurrence"
)

// ParseSearchMode maps a request string onto a known mode.
func ParseSearchMode(s string) (SearchMode, bool) {
	switch SearchMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStandard, "":
		return ModeStandard, true
	case ModeTitleOnly:
		return ModeTitleOnly, true
	case ModeCooccurrence, "co-occurrence":
		return ModeCooccurrence, true
	}
	return "", false
}

// Query is a single research request: what to search for, when, and where.
type Query struct {
	PrimaryKeywords []string   `json:"primary_keywords"`
	AliasKeywords   []string   `json:"alias_keywords,omitempty"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	Mode            SearchMode `json:"mode"`
	Providers       []Provider `json:"providers"`

	MinScore  int    `json:"min_score,omitempty"`
	AlertName string `json:"alert_name,omitempty"`
	User      string `json:"user,omitempty"`
}

// AllKeywords returns primary plus alias keywords in order, with
// case-insensitive duplicates collapsed.
func (q Query) AllKeywords() []string {
	seen := make(map[string]struct{}, len(q.PrimaryKeywords)+len(q.AliasKeywords))
	var out []string
	for _, kw := range append(append([]string{}, q.PrimaryKeywords...), q.AliasKeywords...) {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// Validate checks the query is runnable before any provider call is made.
func (q Query) Validate() error {
	if len(q.AllKeywords()) == 0 {
		return eris.New("query: at least one keyword required")
	}
	if q.StartDate.IsZero() || q.EndDate.IsZero() {
		return eris.New("query: start and end dates required")
	}
	if q.EndDate.Before(q.StartDate) {
		return eris.Errorf("query: end date %s before start date %s",
			q.EndDate.Format("2006-01-02"), q.StartDate.Format("2006-01-02"))
	}
	if len(q.Providers) == 0 {
		return eris.New("query: at least one provider required")
	}
	for _, p := range q.Providers {
		if _, ok := ParseProvider(string(p)); !ok {
			return eris.Errorf("query: unknown provider %q", p)
		}
	}
	switch q.Mode {
	case ModeStandard, ModeTitleOnly, ModeCooccurrence:
	default:
		return eris.Errorf("query: unknown search mode %q", q.Mode)
	}
	return nil
}
