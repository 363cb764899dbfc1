package search

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbio/pharma-research/internal/model"
	"github.com/meridianbio/pharma-research/internal/resilience"
)

func newTestDispatcher(adapters []Adapter) *Dispatcher {
	return NewDispatcher(adapters, time.Second, resilience.DefaultCircuitBreakerConfig())
}

type stubAdapter struct {
	provider   model.Provider
	strategies []Strategy
	results    map[string][]model.Article
	errs       map[string]error
	calls      []string
}

func (s *stubAdapter) Provider() model.Provider          { return s.provider }
func (s *stubAdapter) Strategies(model.Query) []Strategy { return s.strategies }

func (s *stubAdapter) Search(_ context.Context, _ model.Query, st Strategy) ([]model.Article, error) {
	s.calls = append(s.calls, st.Name)
	if err := s.errs[st.Name]; err != nil {
		return nil, err
	}
	return s.results[st.Name], nil
}

func art(provider model.Provider, strategy, url, title string) model.Article {
	return model.Article{
		ID:       model.Fingerprint(url, title, provider),
		Title:    title,
		URL:      url,
		Source:   provider,
		Strategy: strategy,
	}
}

func testQuery(providers ...model.Provider) model.Query {
	return model.Query{
		PrimaryKeywords: []string{"semaglutide"},
		StartDate:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Mode:            model.ModeStandard,
		Providers:       providers,
	}
}

func TestDispatcherCollect(t *testing.T) {
	t.Run("merges providers in adapter order", func(t *testing.T) {
		first := &stubAdapter{
			provider:   model.ProviderExa,
			strategies: []Strategy{{Name: "news_keyword"}},
			results: map[string][]model.Article{
				"news_keyword": {art(model.ProviderExa, "news_keyword", "https://a.test/1", "one")},
			},
		}
		second := &stubAdapter{
			provider:   model.ProviderTavily,
			strategies: []Strategy{{Name: "news"}},
			results: map[string][]model.Article{
				"news": {art(model.ProviderTavily, "news", "https://b.test/2", "two")},
			},
		}

		d := newTestDispatcher([]Adapter{first, second})
		res, err := d.Collect(context.Background(), testQuery(model.ProviderExa, model.ProviderTavily))
		require.NoError(t, err)
		require.Len(t, res.Articles, 2)
		assert.Equal(t, model.ProviderExa, res.Articles[0].Source)
		assert.Equal(t, model.ProviderTavily, res.Articles[1].Source)
	})

	t.Run("skips disabled providers", func(t *testing.T) {
		enabled := &stubAdapter{
			provider:   model.ProviderExa,
			strategies: []Strategy{{Name: "news_keyword"}},
		}
		disabled := &stubAdapter{
			provider:   model.ProviderTavily,
			strategies: []Strategy{{Name: "news"}},
		}

		d := newTestDispatcher([]Adapter{enabled, disabled})
		_, err := d.Collect(context.Background(), testQuery(model.ProviderExa))
		require.NoError(t, err)
		assert.Equal(t, []string{"news_keyword"}, enabled.calls)
		assert.Empty(t, disabled.calls)
	})

	t.Run("dedupes urls within a provider", func(t *testing.T) {
		a := &stubAdapter{
			provider:   model.ProviderExa,
			strategies: []Strategy{{Name: "news_keyword"}, {Name: "pharma_keyword"}},
			results: map[string][]model.Article{
				"news_keyword":   {art(model.ProviderExa, "news_keyword", "https://a.test/1", "one")},
				"pharma_keyword": {art(model.ProviderExa, "pharma_keyword", "https://a.test/1", "one")},
			},
		}

		d := newTestDispatcher([]Adapter{a})
		res, err := d.Collect(context.Background(), testQuery(model.ProviderExa))
		require.NoError(t, err)
		require.Len(t, res.Articles, 1)
		assert.Equal(t, "news_keyword", res.Articles[0].Strategy)

		byStrategy := outcomesByStrategy(res.Outcomes)
		assert.Equal(t, 0, byStrategy["news_keyword"].CrossStrategyDupes)
		assert.Equal(t, 1, byStrategy["pharma_keyword"].CrossStrategyDupes)
	})

	t.Run("attributes cross provider dupes to the later provider", func(t *testing.T) {
		first := &stubAdapter{
			provider:   model.ProviderExa,
			strategies: []Strategy{{Name: "news_keyword"}},
			results: map[string][]model.Article{
				"news_keyword": {art(model.ProviderExa, "news_keyword", "https://a.test/1", "one")},
			},
		}
		second := &stubAdapter{
			provider:   model.ProviderTavily,
			strategies: []Strategy{{Name: "news"}},
			results: map[string][]model.Article{
				"news": {art(model.ProviderTavily, "news", "https://a.test/1", "one")},
			},
		}

		d := newTestDispatcher([]Adapter{first, second})
		res, err := d.Collect(context.Background(), testQuery(model.ProviderExa, model.ProviderTavily))
		require.NoError(t, err)
		require.Len(t, res.Articles, 1)
		assert.Equal(t, model.ProviderExa, res.Articles[0].Source)

		byStrategy := outcomesByStrategy(res.Outcomes)
		assert.Equal(t, 1, byStrategy["news"].CrossProviderDupes)
	})

	t.Run("records strategy failures without failing the run", func(t *testing.T) {
		a := &stubAdapter{
			provider:   model.ProviderExa,
			strategies: []Strategy{{Name: "news_keyword"}, {Name: "neural"}},
			results: map[string][]model.Article{
				"neural": {art(model.ProviderExa, "neural", "https://a.test/1", "one")},
			},
			errs: map[string]error{
				"news_keyword": eris.New("boom"),
			},
		}

		d := newTestDispatcher([]Adapter{a})
		res, err := d.Collect(context.Background(), testQuery(model.ProviderExa))
		require.NoError(t, err)
		require.Len(t, res.Articles, 1)

		byStrategy := outcomesByStrategy(res.Outcomes)
		assert.Contains(t, byStrategy["news_keyword"].Err, "boom")
		assert.Empty(t, byStrategy["neural"].Err)
	})

	t.Run("fallback strategy skipped when earlier strategy produced results", func(t *testing.T) {
		a := &stubAdapter{
			provider: model.ProviderNewsAPI,
			strategies: []Strategy{
				{Name: "primary"},
				{Name: "expanded", FallbackOnly: true},
			},
			results: map[string][]model.Article{
				"primary": {art(model.ProviderNewsAPI, "primary", "https://a.test/1", "one")},
			},
		}

		d := newTestDispatcher([]Adapter{a})
		res, err := d.Collect(context.Background(), testQuery(model.ProviderNewsAPI))
		require.NoError(t, err)
		assert.Equal(t, []string{"primary"}, a.calls)

		byStrategy := outcomesByStrategy(res.Outcomes)
		assert.True(t, byStrategy["expanded"].Skipped)
	})

	t.Run("fallback strategy runs when earlier strategies came back empty", func(t *testing.T) {
		a := &stubAdapter{
			provider: model.ProviderNewsAPI,
			strategies: []Strategy{
				{Name: "primary"},
				{Name: "expanded", FallbackOnly: true},
			},
			results: map[string][]model.Article{
				"expanded": {art(model.ProviderNewsAPI, "expanded", "https://a.test/1", "one")},
			},
		}

		d := newTestDispatcher([]Adapter{a})
		res, err := d.Collect(context.Background(), testQuery(model.ProviderNewsAPI))
		require.NoError(t, err)
		assert.Equal(t, []string{"primary", "expanded"}, a.calls)
		require.Len(t, res.Articles, 1)
	})

	t.Run("keeps articles without urls", func(t *testing.T) {
		noURL := model.Article{Title: "untracked", Source: model.ProviderExa, Strategy: "neural"}
		a := &stubAdapter{
			provider:   model.ProviderExa,
			strategies: []Strategy{{Name: "neural"}},
			results:    map[string][]model.Article{"neural": {noURL, noURL}},
		}

		d := newTestDispatcher([]Adapter{a})
		res, err := d.Collect(context.Background(), testQuery(model.ProviderExa))
		require.NoError(t, err)
		assert.Len(t, res.Articles, 2)
	})
}

func outcomesByStrategy(outcomes []Outcome) map[string]Outcome {
	m := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		m[o.Strategy] = o
	}
	return m
}
