// Package search fans a query out to the enabled providers, running each
// provider's strategy variants and merging the results with duplicate
// attribution.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meridianbio/pharma-research/internal/model"
	"github.com/meridianbio/pharma-research/internal/resilience"
)

// Strategy is a named query variant executed against a single provider.
type Strategy struct {
	Name     string
	Mode     string   // exa: keyword or neural
	Domains  []string // allow-list for this variant, nil = unrestricted
	Keywords []string // keyword subset, nil = all query keywords

	// FallbackOnly strategies run only when the provider's earlier
	// strategies produced nothing (legacy NewsAPI behavior).
	FallbackOnly bool
}

// ProviderError wraps a failed strategy execution. Adapters never raise past
// the dispatcher; failures become empty results plus an error row.
type ProviderError struct {
	Provider model.Provider
	Strategy string
	Cause    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Provider, e.Strategy, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Adapter executes provider-specific strategies and normalizes responses to
// Article records.
type Adapter interface {
	Provider() model.Provider
	Strategies(q model.Query) []Strategy
	Search(ctx context.Context, q model.Query, s Strategy) ([]model.Article, error)
}

// Outcome records one strategy execution verbatim for the metadata log.
type Outcome struct {
	Provider           model.Provider
	Strategy           string
	Retrieved          int
	CrossStrategyDupes int
	CrossProviderDupes int
	Elapsed            time.Duration
	Err                string
	Skipped            bool
}

// Result is the merged output of a collection pass.
type Result struct {
	Articles        []model.Article
	Outcomes        []Outcome
	ProviderElapsed map[model.Provider]time.Duration
}

// Dispatcher owns the adapters and the per-provider circuit breakers.
// Distinct providers run in parallel; strategies within a provider run
// sequentially to respect per-provider rate discipline.
type Dispatcher struct {
	adapters []Adapter
	breakers *resilience.ServiceBreakers
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher over the given adapters. Adapters are
// consulted in the order given; that order also fixes the merge order.
func NewDispatcher(adapters []Adapter, timeout time.Duration, breakerCfg resilience.CircuitBreakerConfig) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		adapters: adapters,
		breakers: resilience.NewServiceBreakers(breakerCfg),
		timeout:  timeout,
	}
}

type providerResult struct {
	articles []model.Article
	outcomes []Outcome
	elapsed  time.Duration
}

// Collect runs every enabled provider's strategies and merges the results.
// Provider and strategy failures are recorded, never returned; the only error
// is context cancellation before any work completed.
func (d *Dispatcher) Collect(ctx context.Context, q model.Query) (*Result, error) {
	enabled := make(map[model.Provider]bool, len(q.Providers))
	for _, p := range q.Providers {
		enabled[p] = true
	}

	results := make([]*providerResult, len(d.adapters))
	g, gCtx := errgroup.WithContext(ctx)

	for i, a := range d.adapters {
		if !enabled[a.Provider()] {
			continue
		}
		g.Go(func() error {
			results[i] = d.collectProvider(gCtx, a, q)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil && allNil(results) {
		return nil, ctx.Err()
	}

	return d.merge(results), nil
}

func allNil(results []*providerResult) bool {
	for _, r := range results {
		if r != nil {
			return false
		}
	}
	return true
}

// collectProvider runs one adapter's strategies in declared order, deduping
// identical URLs within the provider as it goes. The first strategy to
// observe a URL keeps it; later observations count against the later
// strategy's cross-strategy duplicates.
func (d *Dispatcher) collectProvider(ctx context.Context, a Adapter, q model.Query) *providerResult {
	log := zap.L().With(zap.String("provider", string(a.Provider())))
	breaker := d.breakers.Get(string(a.Provider()))

	pr := &providerResult{}
	seen := make(map[string]bool)
	start := time.Now()

	for _, s := range a.Strategies(q) {
		if s.FallbackOnly && len(pr.articles) > 0 {
			pr.outcomes = append(pr.outcomes, Outcome{
				Provider: a.Provider(), Strategy: s.Name, Skipped: true,
			})
			continue
		}

		out := Outcome{Provider: a.Provider(), Strategy: s.Name}
		sStart := time.Now()

		articles, err := resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) ([]model.Article, error) {
			callCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			return a.Search(callCtx, q, s)
		})
		out.Elapsed = time.Since(sStart)

		if err != nil {
			perr := &ProviderError{Provider: a.Provider(), Strategy: s.Name, Cause: err}
			out.Err = perr.Error()
			log.Warn("strategy failed",
				zap.String("strategy", s.Name),
				zap.Duration("elapsed", out.Elapsed),
				zap.Error(err),
			)
			pr.outcomes = append(pr.outcomes, out)
			continue
		}

		out.Retrieved = len(articles)
		for _, art := range articles {
			if art.URL != "" && seen[art.URL] {
				out.CrossStrategyDupes++
				continue
			}
			if art.URL != "" {
				seen[art.URL] = true
			}
			pr.articles = append(pr.articles, art)
		}
		log.Info("strategy complete",
			zap.String("strategy", s.Name),
			zap.Int("retrieved", out.Retrieved),
			zap.Int("cross_strategy_dupes", out.CrossStrategyDupes),
			zap.Duration("elapsed", out.Elapsed),
		)
		pr.outcomes = append(pr.outcomes, out)
	}

	pr.elapsed = time.Since(start)
	return pr
}

// merge concatenates provider results in adapter order, collapsing URLs
// already observed by an earlier provider. Later observations count against
// the observing strategy's cross-provider duplicates.
func (d *Dispatcher) merge(results []*providerResult) *Result {
	merged := &Result{ProviderElapsed: make(map[model.Provider]time.Duration)}
	seen := make(map[string]bool)

	for i, pr := range results {
		if pr == nil {
			continue
		}
		provider := d.adapters[i].Provider()
		merged.ProviderElapsed[provider] = pr.elapsed

		crossDupes := make(map[string]int)
		for _, art := range pr.articles {
			if art.URL != "" && seen[art.URL] {
				crossDupes[art.Strategy]++
				continue
			}
			if art.URL != "" {
				seen[art.URL] = true
			}
			merged.Articles = append(merged.Articles, art)
		}

		for _, out := range pr.outcomes {
			out.CrossProviderDupes = crossDupes[out.Strategy]
			merged.Outcomes = append(merged.Outcomes, out)
		}
	}
	return merged
}
