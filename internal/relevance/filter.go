package relevance

import (
	"github.com/meridianbio/pharma-research/internal/model"
)

// FilterByScore keeps articles at or above minScore, preserving order, and
// returns the band histogram over everything analyzed.
func FilterByScore(articles []model.Article, minScore int) (kept []model.Article, filtered int, bands model.ScoreBands) {
	for _, art := range articles {
		bands.Add(art.RelevanceScore)
		if art.RelevanceScore >= minScore {
			kept = append(kept, art)
		} else {
			filtered++
		}
	}
	return kept, filtered, bands
}
