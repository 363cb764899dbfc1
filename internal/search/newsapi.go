package search

import (
	"context"
	"strings"
	"time"

	"github.com/meridianbio/pharma-research/internal/model"
	"github.com/meridianbio/pharma-research/pkg/newsapi"
)

// NewsAPIAdapter runs a tight quoted query first and a broad unquoted one
// second. The broad pass runs unconditionally unless expandedAlways is false,
// which restores the old behavior of only running it when the quoted pass
// came back empty.
type NewsAPIAdapter struct {
	client         newsapi.Client
	maxResults     int
	maxHistoryDays int
	expandedAlways bool
}

// NewNewsAPIAdapter creates the NewsAPI adapter.
func NewNewsAPIAdapter(client newsapi.Client, maxResults, maxHistoryDays int, expandedAlways bool) *NewsAPIAdapter {
	if maxResults <= 0 {
		maxResults = 100
	}
	if maxHistoryDays <= 0 {
		maxHistoryDays = 30
	}
	return &NewsAPIAdapter{
		client:         client,
		maxResults:     maxResults,
		maxHistoryDays: maxHistoryDays,
		expandedAlways: expandedAlways,
	}
}

func (a *NewsAPIAdapter) Provider() model.Provider {
	return model.ProviderNewsAPI
}

func (a *NewsAPIAdapter) Strategies(model.Query) []Strategy {
	return []Strategy{
		{Name: "primary"},
		{Name: "expanded", FallbackOnly: !a.expandedAlways},
	}
}

func (a *NewsAPIAdapter) Search(ctx context.Context, q model.Query, s Strategy) ([]model.Article, error) {
	keywords := strategyKeywords(q, s)
	query := webQuery(q.Mode, keywords)
	if s.Name == "expanded" {
		query = plainQuery(keywords)
	}

	from, to := a.clampWindow(q.StartDate, q.EndDate)
	resp, err := a.client.Everything(ctx, newsapi.EverythingRequest{
		Query:    query,
		From:     from,
		To:       to,
		Language: "en",
		SortBy:   "publishedAt",
		PageSize: a.maxResults,
	})
	if err != nil {
		return nil, err
	}

	articles := make([]model.Article, 0, len(resp.Articles))
	for _, r := range resp.Articles {
		articles = append(articles, model.Article{
			ID:         model.Fingerprint(r.URL, r.Title, model.ProviderNewsAPI),
			Title:      r.Title,
			Content:    joinContent(r.Description, r.Content),
			URL:        r.URL,
			Source:     model.ProviderNewsAPI,
			Strategy:   s.Name,
			Authors:    r.Author,
			RawDate:    r.PublishedAt,
			DateOrigin: model.DateOriginNone,
		})
	}
	return articles, nil
}

// clampWindow pulls the start date forward so the request stays within the
// plan's historical reach; the free tier rejects anything older.
func (a *NewsAPIAdapter) clampWindow(start, end time.Time) (time.Time, time.Time) {
	oldest := time.Now().AddDate(0, 0, -a.maxHistoryDays)
	if start.Before(oldest) {
		start = oldest
	}
	if end.Before(start) {
		end = start
	}
	return start, end
}

// joinContent concatenates the description and the truncated body. NewsAPI
// truncates content at ~200 chars, so the description often carries more
// signal.
func joinContent(description, content string) string {
	parts := make([]string, 0, 2)
	if description != "" {
		parts = append(parts, description)
	}
	if content != "" && content != description {
		parts = append(parts, content)
	}
	return strings.Join(parts, " ")
}
