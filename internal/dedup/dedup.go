// Package dedup collapses near-duplicate articles by title similarity.
// Exact-URL duplicates are already removed during collection; this pass
// catches the same story syndicated under different URLs.
package dedup

import (
	"strings"

	"go.uber.org/zap"

	"github.com/meridianbio/pharma-research/internal/model"
)

// DefaultThreshold matches long-standing tuning for syndicated headlines.
const DefaultThreshold = 0.75

// Group is one cluster of near-duplicate articles. Representative is the
// member with the most content; Duplicates holds the rest in arrival order.
type Group struct {
	Representative model.Article
	Duplicates     []model.Article
}

// Deduplicate clusters articles whose titles are similar above threshold and
// keeps one representative per cluster. Output order follows the first
// arrival of each cluster. Articles without a title never merge; a blank
// title says nothing about the story.
func Deduplicate(articles []model.Article, threshold float64) ([]model.Article, []Group) {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}

	var groups []Group
	for _, art := range articles {
		idx := -1
		if strings.TrimSpace(art.Title) != "" {
			for i, g := range groups {
				if strings.TrimSpace(g.Representative.Title) == "" {
					continue
				}
				if Similarity(art.Title, g.Representative.Title) >= threshold {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			groups = append(groups, Group{Representative: art})
			continue
		}

		g := &groups[idx]
		if richer(art, g.Representative) {
			g.Duplicates = append(g.Duplicates, g.Representative)
			g.Representative = art
		} else {
			g.Duplicates = append(g.Duplicates, art)
		}
	}

	kept := make([]model.Article, 0, len(groups))
	removed := 0
	for _, g := range groups {
		kept = append(kept, g.Representative)
		removed += len(g.Duplicates)
	}
	if removed > 0 {
		zap.L().Info("deduplicated articles",
			zap.Int("input", len(articles)),
			zap.Int("kept", len(kept)),
			zap.Int("removed", removed),
		)
	}
	return kept, groups
}

// richer reports whether a should replace b as a cluster representative.
// More content wins, then a fuller author list, then the longer URL.
func richer(a, b model.Article) bool {
	if len(a.Content) != len(b.Content) {
		return len(a.Content) > len(b.Content)
	}
	if len(a.Authors) != len(b.Authors) {
		return len(a.Authors) > len(b.Authors)
	}
	return len(a.URL) > len(b.URL)
}

// Similarity returns a ratio in [0,1] between two titles, case-insensitive:
// twice the longest common subsequence over the combined length. Equal
// strings score 1, disjoint strings 0.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return 2 * float64(lcs(ra, rb)) / float64(len(ra)+len(rb))
}

// lcs computes the longest-common-subsequence length with a rolling row.
func lcs(a, b []rune) int {
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
