// Package enhance prepares kept articles for presentation: it trims content
// to the most keyword-dense window and marks keyword occurrences.
package enhance

import (
	"regexp"
	"sort"
	"strings"

	"github.com/meridianbio/pharma-research/internal/model"
)

const (
	windowMinChars = 200
	windowMaxChars = 5000
	windowStep     = 100
)

// Enhance fills HighlightedContent on every article: the query keywords plus
// the model's mentioned and pertinent keywords, marked inside the best
// content window.
func Enhance(articles []model.Article, queryKeywords []string) {
	for i := range articles {
		art := &articles[i]
		keywords := combine(queryKeywords, art.MentionedKeywords, art.PertinentKeywords)
		window := RelevantWindow(art.Content, keywords, windowMinChars, windowMaxChars)
		art.HighlightedContent = Highlight(window, keywords)
	}
}

// combine merges keyword lists preserving first-seen order, dropping blanks
// and case-insensitive duplicates.
func combine(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, kw := range list {
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
	}
	return out
}

// RelevantWindow returns the span of content holding the most keyword
// occurrences, between minChars and maxChars long, with ellipses marking
// trimmed edges. Without any keyword hit it returns the head of the content.
func RelevantWindow(content string, keywords []string, minChars, maxChars int) string {
	if content == "" {
		return ""
	}
	if len(content) <= maxChars && countHits(content, keywords) > 0 {
		return content
	}
	positions := hitPositions(content, keywords)
	if len(positions) == 0 {
		if len(content) > maxChars {
			return content[:maxChars] + "..."
		}
		return content
	}

	bestStart, bestEnd, bestHits := 0, 0, 0
	for _, pos := range positions {
		for _, size := range []int{minChars, minChars * 2, minChars * 3, maxChars} {
			start := pos - size/2
			if start < 0 {
				start = 0
			}
			end := start + size
			if end > len(content) {
				end = len(content)
			}
			hits := 0
			for _, p := range positions {
				if p >= start && p < end {
					hits++
				}
			}
			if hits > bestHits || (hits == bestHits && end-start > bestEnd-bestStart) {
				bestHits, bestStart, bestEnd = hits, start, end
			}
		}
	}

	// Grow toward maxChars for context around the dense region.
	for bestEnd-bestStart < maxChars && bestEnd < len(content) {
		bestEnd += windowStep
	}
	if bestEnd > len(content) {
		bestEnd = len(content)
	}
	for bestEnd-bestStart < maxChars && bestStart > 0 {
		bestStart -= windowStep
	}
	if bestStart < 0 {
		bestStart = 0
	}

	out := content[bestStart:bestEnd]
	if bestStart > 0 {
		out = "..." + out
	}
	if bestEnd < len(content) {
		out += "..."
	}
	return out
}

func hitPositions(content string, keywords []string) []int {
	lower := strings.ToLower(content)
	var positions []int
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		for start := 0; ; {
			idx := strings.Index(lower[start:], kw)
			if idx < 0 {
				break
			}
			positions = append(positions, start+idx)
			start += idx + 1
		}
	}
	sort.Ints(positions)
	return positions
}

func countHits(content string, keywords []string) int {
	return len(hitPositions(content, keywords))
}

// Highlight wraps whole-word keyword matches in «» markers. Already-marked
// spans pass through untouched, so running it twice changes nothing.
func Highlight(content string, keywords []string) string {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			cleaned = append(cleaned, kw)
		}
	}
	if content == "" || len(cleaned) == 0 {
		return content
	}

	// Longer keywords first so phrases beat their own substrings.
	sort.SliceStable(cleaned, func(i, j int) bool { return len(cleaned[i]) > len(cleaned[j]) })
	quoted := make([]string, len(cleaned))
	for i, kw := range cleaned {
		quoted[i] = regexp.QuoteMeta(kw)
	}

	re, err := regexp.Compile(`«[^«»]*»|(?i:\b(?:` + strings.Join(quoted, "|") + `)\b)`)
	if err != nil {
		return content
	}
	return re.ReplaceAllStringFunc(content, func(m string) string {
		if strings.HasPrefix(m, "«") {
			return m
		}
		return "«" + m + "»"
	})
}
