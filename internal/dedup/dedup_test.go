package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbio/pharma-research/internal/model"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "Semaglutide trial results", "Semaglutide trial results", 1, 1},
		{"case insensitive", "SEMAGLUTIDE Trial", "semaglutide trial", 1, 1},
		{"near duplicate headline", "FDA approves new obesity drug from Novo", "FDA approves new obesity drug from Novo Nordisk", 0.85, 1},
		{"unrelated", "FDA approves obesity drug", "Quarterly earnings beat expectations", 0, 0.6},
		{"both empty", "", "", 0, 0},
		{"one empty", "semaglutide", "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	a, b := "Novo Nordisk semaglutide label expansion", "Semaglutide label expansion for Novo Nordisk"
	assert.InDelta(t, Similarity(a, b), Similarity(b, a), 1e-12)
}

func TestDeduplicate(t *testing.T) {
	t.Run("collapses near duplicates keeping first arrival position", func(t *testing.T) {
		articles := []model.Article{
			{Title: "FDA approves semaglutide for heart disease", URL: "https://a.test/1"},
			{Title: "Unrelated biotech funding round closes", URL: "https://a.test/2"},
			{Title: "FDA approves semaglutide for heart diseases", URL: "https://a.test/3"},
		}

		kept, groups := Deduplicate(articles, 0.75)
		require.Len(t, kept, 2)
		assert.Equal(t, "https://a.test/1", kept[0].URL)
		assert.Equal(t, "https://a.test/2", kept[1].URL)
		require.Len(t, groups, 2)
		assert.Len(t, groups[0].Duplicates, 1)
	})

	t.Run("prefers the member with more content", func(t *testing.T) {
		articles := []model.Article{
			{Title: "Semaglutide shows cardiovascular benefit", Content: "short", URL: "https://a.test/1"},
			{Title: "Semaglutide shows cardiovascular benefits", Content: "a much longer article body with detail", URL: "https://a.test/2"},
		}

		kept, _ := Deduplicate(articles, 0.75)
		require.Len(t, kept, 1)
		assert.Equal(t, "https://a.test/2", kept[0].URL)
	})

	t.Run("empty titles never merge", func(t *testing.T) {
		articles := []model.Article{
			{Title: "", URL: "https://a.test/1"},
			{Title: "", URL: "https://a.test/2"},
			{Title: "  ", URL: "https://a.test/3"},
		}

		kept, _ := Deduplicate(articles, 0.75)
		assert.Len(t, kept, 3)
	})

	t.Run("threshold separates similar from distinct", func(t *testing.T) {
		articles := []model.Article{
			{Title: "Pfizer reports strong vaccine sales", URL: "https://a.test/1"},
			{Title: "Pfizer reports strong vaccine sales in Q2", URL: "https://a.test/2"},
			{Title: "Moderna announces flu program setback", URL: "https://a.test/3"},
		}

		kept, _ := Deduplicate(articles, 0.75)
		require.Len(t, kept, 2)
	})

	t.Run("invalid threshold falls back to default", func(t *testing.T) {
		articles := []model.Article{
			{Title: "Exact same title", URL: "https://a.test/1"},
			{Title: "Exact same title", URL: "https://a.test/2"},
		}
		kept, _ := Deduplicate(articles, 0)
		assert.Len(t, kept, 1)
	})

	t.Run("empty input", func(t *testing.T) {
		kept, groups := Deduplicate(nil, 0.75)
		assert.Empty(t, kept)
		assert.Empty(t, groups)
	})
}
