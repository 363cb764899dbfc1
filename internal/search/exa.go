package search

import (
	"context"
	"strings"

	"github.com/meridianbio/pharma-research/internal/config"
	"github.com/meridianbio/pharma-research/internal/model"
	"github.com/meridianbio/pharma-research/pkg/exa"
)

// ExaAdapter queries the combined search-and-contents endpoint. Variants
// differ by domain allow-list and keyword/neural mode; result dates come from
// provider metadata and are often missing.
type ExaAdapter struct {
	client     exa.Client
	domains    config.DomainSets
	maxResults int
}

// NewExaAdapter creates the Exa adapter.
func NewExaAdapter(client exa.Client, domains config.DomainSets, maxResults int) *ExaAdapter {
	if maxResults <= 0 {
		maxResults = 25
	}
	return &ExaAdapter{client: client, domains: domains, maxResults: maxResults}
}

func (a *ExaAdapter) Provider() model.Provider {
	return model.ProviderExa
}

func (a *ExaAdapter) Strategies(model.Query) []Strategy {
	return []Strategy{
		{Name: "news_keyword", Mode: exa.TypeKeyword, Domains: a.domains.News},
		{Name: "pharma_keyword", Mode: exa.TypeKeyword, Domains: a.domains.Pharma},
		{Name: "neural", Mode: exa.TypeNeural},
	}
}

func (a *ExaAdapter) Search(ctx context.Context, q model.Query, s Strategy) ([]model.Article, error) {
	keywords := strategyKeywords(q, s)

	query := webQuery(q.Mode, keywords)
	if s.Mode == exa.TypeNeural {
		// Neural search wants prose, not boolean syntax.
		query = "Recent pharmaceutical and medical news about " + strings.Join(keywords, ", ")
	}

	resp, err := a.client.Search(ctx, exa.SearchRequest{
		Query:          query,
		Type:           s.Mode,
		IncludeDomains: s.Domains,
		NumResults:     a.maxResults,
		Contents:       &exa.Contents{Text: true},
	})
	if err != nil {
		return nil, err
	}

	articles := make([]model.Article, 0, len(resp.Results))
	for _, r := range resp.Results {
		articles = append(articles, model.Article{
			ID:         model.Fingerprint(r.URL, r.Title, model.ProviderExa),
			Title:      r.Title,
			Content:    r.Text,
			URL:        r.URL,
			Source:     model.ProviderExa,
			Strategy:   s.Name,
			Authors:    r.Author,
			RawDate:    r.PublishedDate,
			DateOrigin: model.DateOriginNone,
		})
	}
	return articles, nil
}
