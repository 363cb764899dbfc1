package search

import (
	"context"

	"github.com/meridianbio/pharma-research/internal/config"
	"github.com/meridianbio/pharma-research/internal/model"
	"github.com/meridianbio/pharma-research/pkg/tavily"
)

// TavilyAdapter runs three domain-scoped variants against the same endpoint.
// The mixed variant narrows to primary keywords only; broad domain lists plus
// the full alias set drown the signal there.
type TavilyAdapter struct {
	client     tavily.Client
	domains    config.DomainSets
	maxResults int
}

// NewTavilyAdapter creates the Tavily adapter.
func NewTavilyAdapter(client tavily.Client, domains config.DomainSets, maxResults int) *TavilyAdapter {
	if maxResults <= 0 {
		maxResults = 20
	}
	return &TavilyAdapter{client: client, domains: domains, maxResults: maxResults}
}

func (a *TavilyAdapter) Provider() model.Provider {
	return model.ProviderTavily
}

func (a *TavilyAdapter) Strategies(q model.Query) []Strategy {
	return []Strategy{
		{Name: "news", Domains: a.domains.News},
		{Name: "mixed", Domains: a.domains.Mixed, Keywords: q.PrimaryKeywords},
		{Name: "pharma", Domains: a.domains.Pharma},
	}
}

func (a *TavilyAdapter) Search(ctx context.Context, q model.Query, s Strategy) ([]model.Article, error) {
	resp, err := a.client.Search(ctx, tavily.SearchRequest{
		Query:          webQuery(q.Mode, strategyKeywords(q, s)),
		SearchDepth:    "advanced",
		IncludeDomains: s.Domains,
		MaxResults:     a.maxResults,
		Days:           windowDays(q.StartDate, q.EndDate),
	})
	if err != nil {
		return nil, err
	}

	articles := make([]model.Article, 0, len(resp.Results))
	for _, r := range resp.Results {
		articles = append(articles, model.Article{
			ID:         model.Fingerprint(r.URL, r.Title, model.ProviderTavily),
			Title:      r.Title,
			Content:    r.Content,
			URL:        r.URL,
			Source:     model.ProviderTavily,
			Strategy:   s.Name,
			RawDate:    r.PublishedDate,
			DateOrigin: model.DateOriginNone,
		})
	}
	return articles, nil
}
