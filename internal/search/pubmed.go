package search

import (
	"context"
	"time"

	"github.com/meridianbio/pharma-research/internal/model"
	"github.com/meridianbio/pharma-research/pkg/pubmed"
)

// PubMedAdapter runs the Entrez two-step retrieval. PubMed records arrive
// with a publication date already present.
type PubMedAdapter struct {
	client     pubmed.Client
	maxResults int
}

// NewPubMedAdapter creates the PubMed adapter.
func NewPubMedAdapter(client pubmed.Client, maxResults int) *PubMedAdapter {
	if maxResults <= 0 {
		maxResults = 50
	}
	return &PubMedAdapter{client: client, maxResults: maxResults}
}

func (a *PubMedAdapter) Provider() model.Provider {
	return model.ProviderPubMed
}

func (a *PubMedAdapter) Strategies(model.Query) []Strategy {
	return []Strategy{{Name: "primary"}}
}

func (a *PubMedAdapter) Search(ctx context.Context, q model.Query, s Strategy) ([]model.Article, error) {
	term := a.buildTerm(q, s)

	records, err := a.client.Search(ctx, term, a.maxResults)
	if err != nil {
		return nil, err
	}

	articles := make([]model.Article, 0, len(records))
	for _, rec := range records {
		articles = append(articles, model.Article{
			ID:         model.Fingerprint(rec.URL, rec.Title, model.ProviderPubMed),
			Title:      rec.Title,
			Content:    rec.Abstract,
			URL:        rec.URL,
			Source:     model.ProviderPubMed,
			Strategy:   s.Name,
			Authors:    rec.Authors,
			RawDate:    rec.Date,
			DateOrigin: model.DateOriginNone,
		})
	}
	return articles, nil
}

// buildTerm maps the query mode onto an Entrez term. Title-only mode
// searches the [Title] field; cooccurrence AND-joins the keyword phrases.
func (a *PubMedAdapter) buildTerm(q model.Query, s Strategy) string {
	field := "[Title/Abstract]"
	if q.Mode == model.ModeTitleOnly {
		field = "[Title]"
	}
	joiner := " OR "
	if q.Mode == model.ModeCooccurrence {
		joiner = " AND "
	}
	return pubmed.BuildTerm(strategyKeywords(q, s), field, joiner, q.StartDate, q.EndDate)
}

// windowDays returns the inclusive day span of the query window.
func windowDays(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}
