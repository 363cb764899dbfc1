package search

import (
	"fmt"
	"strings"

	"github.com/meridianbio/pharma-research/internal/model"
)

// webQuery builds the free-text query string used by the web search
// providers. Standard and title modes OR-join quoted phrases; cooccurrence
// AND-joins them so only articles mentioning multiple keywords match.
func webQuery(mode model.SearchMode, keywords []string) string {
	quoted := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		quoted = append(quoted, fmt.Sprintf("%q", kw))
	}
	if mode == model.ModeCooccurrence && len(quoted) > 1 {
		return strings.Join(quoted, " AND ")
	}
	return strings.Join(quoted, " OR ")
}

// plainQuery joins keywords without quoting, for broader recall.
func plainQuery(keywords []string) string {
	return strings.Join(keywords, " OR ")
}

// strategyKeywords resolves a strategy's keyword subset against the query.
func strategyKeywords(q model.Query, s Strategy) []string {
	if len(s.Keywords) > 0 {
		return s.Keywords
	}
	return q.AllKeywords()
}
