// Package engine orchestrates a research run: collection, dedup, date
// resolution and filtering, relevance analysis, score filtering, content
// enhancement, and stats accounting.
package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridianbio/pharma-research/internal/dates"
	"github.com/meridianbio/pharma-research/internal/dedup"
	"github.com/meridianbio/pharma-research/internal/enhance"
	"github.com/meridianbio/pharma-research/internal/model"
	"github.com/meridianbio/pharma-research/internal/relevance"
	"github.com/meridianbio/pharma-research/internal/search"
)

// Collector fans the query out to the search providers.
type Collector interface {
	Collect(ctx context.Context, q model.Query) (*search.Result, error)
}

// DateResolver assigns resolved dates in place.
type DateResolver interface {
	Resolve(ctx context.Context, articles []model.Article) error
}

// Analyzer scores articles in place and reports how many fell back to the
// neutral verdict.
type Analyzer interface {
	Analyze(ctx context.Context, articles []model.Article, q model.Query) (int, error)
}

// Recorder receives the finished run for the metadata log.
type Recorder interface {
	Record(result *model.RunResult)
}

// Engine wires the pipeline stages together.
type Engine struct {
	collector Collector
	resolver  DateResolver
	analyzer  Analyzer
	recorder  Recorder
	sessions  *SessionStore

	dedupThreshold  float64
	defaultMinScore int
}

// New creates an engine. recorder may be nil when metadata logging is off.
func New(collector Collector, resolver DateResolver, analyzer Analyzer, recorder Recorder,
	sessions *SessionStore, dedupThreshold float64, defaultMinScore int) *Engine {
	return &Engine{
		collector:       collector,
		resolver:        resolver,
		analyzer:        analyzer,
		recorder:        recorder,
		sessions:        sessions,
		dedupThreshold:  dedupThreshold,
		defaultMinScore: defaultMinScore,
	}
}

// Run executes the full pipeline for one query. The result is stored in the
// session cache and handed to the recorder before returning.
func (e *Engine) Run(ctx context.Context, q model.Query) (*model.RunResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	minScore := q.MinScore
	if minScore <= 0 {
		minScore = e.defaultMinScore
	}

	result := &model.RunResult{
		SessionID: uuid.NewString(),
		Query:     q,
		StartedAt: time.Now(),
	}
	stats := &result.Stats
	stats.State = model.StateInit

	log := zap.L().With(zap.String("session_id", result.SessionID))
	log.Info("run started",
		zap.Strings("keywords", q.AllKeywords()),
		zap.String("mode", string(q.Mode)),
		zap.Int("min_score", minScore),
	)

	err := e.run(ctx, q, minScore, result, log)
	result.Elapsed = time.Since(result.StartedAt)

	switch {
	case err == nil:
		stats.State = model.StateDone
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		stats.State = model.StateCancelled
		stats.Error = err.Error()
	default:
		stats.State = model.StateFailed
		stats.Error = err.Error()
	}

	if e.sessions != nil {
		e.sessions.Put(result)
	}
	if e.recorder != nil {
		e.recorder.Record(result)
	}
	log.Info("run finished",
		zap.String("state", string(stats.State)),
		zap.Int("kept", stats.Kept),
		zap.Duration("elapsed", result.Elapsed),
	)
	if err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) run(ctx context.Context, q model.Query, minScore int, result *model.RunResult, log *zap.Logger) error {
	stats := &result.Stats

	// Collection.
	stats.State = model.StateCollecting
	var collected *search.Result
	err := e.phase(stats, "collection", func() error {
		var err error
		collected, err = e.collector.Collect(ctx, q)
		return err
	})
	if err != nil {
		return eris.Wrap(err, "engine: collection")
	}
	stats.Collected = len(collected.Articles)
	log.Info("collection complete", zap.Int("collected", stats.Collected))

	// Dedup.
	stats.State = model.StateDeduping
	var articles []model.Article
	var groups []dedup.Group
	_ = e.phase(stats, "dedup", func() error {
		articles, groups = dedup.Deduplicate(collected.Articles, e.dedupThreshold)
		return nil
	})
	stats.Unique = len(articles)
	stats.DuplicatesRemoved = stats.Collected - stats.Unique
	for _, g := range groups {
		if len(g.Duplicates) > 0 {
			stats.DuplicateGroups++
		}
	}
	afterDedup := make(map[model.Provider]int)
	for _, art := range articles {
		afterDedup[art.Source]++
	}

	// Date resolution.
	stats.State = model.StateResolvingDates
	err = e.phase(stats, "date_resolution", func() error {
		return e.resolver.Resolve(ctx, articles)
	})
	if err != nil {
		return eris.Wrap(err, "engine: date resolution")
	}
	for _, art := range articles {
		switch art.DateOrigin {
		case model.DateOriginMetadata:
			stats.WithDates++
		case model.DateOriginModel, model.DateOriginRegex:
			stats.WithDates++
			stats.ModelExtracted++
		default:
			stats.WithoutDates++
		}
	}

	// Date filter.
	stats.State = model.StateFilteringDates
	var filtered dates.FilterResult
	_ = e.phase(stats, "date_filter", func() error {
		filtered = dates.FilterWindow(articles, q.StartDate, q.EndDate)
		return nil
	})
	articles = filtered.InRange
	stats.InRange = len(articles)
	stats.OutOfRange = filtered.OutOfRange
	stats.ModelRescued = filtered.ModelRescued
	log.Info("date filter complete",
		zap.Int("in_range", stats.InRange),
		zap.Int("out_of_range", stats.OutOfRange),
		zap.Int("model_rescued", stats.ModelRescued),
	)

	// Relevance analysis.
	stats.State = model.StateAnalyzing
	err = e.phase(stats, "relevance_analysis", func() error {
		failures, err := e.analyzer.Analyze(ctx, articles, q)
		stats.Failures = failures
		return err
	})
	if err != nil {
		return eris.Wrap(err, "engine: relevance analysis")
	}
	stats.Analyzed = len(articles)

	// Score filter.
	stats.State = model.StateFilteringScores
	var kept []model.Article
	_ = e.phase(stats, "score_filter", func() error {
		kept, stats.Filtered, stats.Bands = relevance.FilterByScore(articles, minScore)
		return nil
	})
	stats.Kept = len(kept)
	scoreSummary(stats, articles)
	accumulate(stats, collected, articles, kept, afterDedup)

	// Enhancement.
	stats.State = model.StateEnhancing
	_ = e.phase(stats, "enhancement", func() error {
		enhance.Enhance(kept, q.AllKeywords())
		return nil
	})

	sortArticles(kept)
	result.Articles = kept

	if err := stats.CheckConsistency(); err != nil {
		return err
	}
	return nil
}

// phase runs fn and appends its timing to the stats.
func (e *Engine) phase(stats *model.RunStats, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	stats.Phases = append(stats.Phases, model.PhaseTiming{Name: name, Elapsed: time.Since(start)})
	return err
}

// scoreSummary fills min/max/avg and the article-type histogram over every
// analyzed article.
func scoreSummary(stats *model.RunStats, analyzed []model.Article) {
	if len(analyzed) == 0 {
		return
	}
	stats.ArticleTypes = make(map[string]int)
	minScore, maxScore, sum := 101, -1, 0
	for _, art := range analyzed {
		if art.RelevanceScore < minScore {
			minScore = art.RelevanceScore
		}
		if art.RelevanceScore > maxScore {
			maxScore = art.RelevanceScore
		}
		sum += art.RelevanceScore
		if art.ArticleType != "" {
			stats.ArticleTypes[art.ArticleType]++
		}
	}
	stats.ScoreMin = minScore
	stats.ScoreMax = maxScore
	stats.ScoreAvg = float64(sum) / float64(len(analyzed))
}

// accumulate builds the per-strategy and per-provider rollups from the
// collection outcomes plus the analyzed and kept sets.
func accumulate(stats *model.RunStats, collected *search.Result, analyzed, kept []model.Article, afterDedup map[model.Provider]int) {
	type tally struct {
		inRange  int
		kept     int
		scoreSum int
		bands    model.ScoreBands
	}
	byStrategy := make(map[model.Provider]map[string]*tally)
	get := func(p model.Provider, s string) *tally {
		if byStrategy[p] == nil {
			byStrategy[p] = make(map[string]*tally)
		}
		if byStrategy[p][s] == nil {
			byStrategy[p][s] = &tally{}
		}
		return byStrategy[p][s]
	}
	for _, art := range analyzed {
		tl := get(art.Source, art.Strategy)
		tl.inRange++
		tl.scoreSum += art.RelevanceScore
		tl.bands.Add(art.RelevanceScore)
	}
	for _, art := range kept {
		get(art.Source, art.Strategy).kept++
	}

	stats.Providers = make(map[model.Provider]*model.ProviderStats)
	for _, out := range collected.Outcomes {
		row := model.StrategyStats{
			Provider:           out.Provider,
			Strategy:           out.Strategy,
			Retrieved:          out.Retrieved,
			CrossStrategyDupes: out.CrossStrategyDupes,
			CrossProviderDupes: out.CrossProviderDupes,
			UniqueContribution: out.Retrieved - out.CrossStrategyDupes - out.CrossProviderDupes,
			Elapsed:            out.Elapsed,
			Err:                out.Err,
		}
		if tl := byStrategy[out.Provider][out.Strategy]; tl != nil {
			row.InRange = tl.inRange
			row.Kept = tl.kept
			row.Bands = tl.bands
			if tl.inRange > 0 {
				row.AvgScore = float64(tl.scoreSum) / float64(tl.inRange)
			}
		}
		stats.Strategies = append(stats.Strategies, row)

		ps := stats.Providers[out.Provider]
		if ps == nil {
			ps = &model.ProviderStats{Provider: out.Provider}
			stats.Providers[out.Provider] = ps
		}
		if !out.Skipped {
			ps.Strategies = append(ps.Strategies, out.Strategy)
		}
		ps.Retrieved += row.Retrieved
		ps.UniqueContribution += row.UniqueContribution
		ps.Kept += row.Kept
	}

	for p, ps := range stats.Providers {
		if ps.Retrieved > 0 {
			ps.DuplicateRate = float64(ps.Retrieved-ps.UniqueContribution) / float64(ps.Retrieved)
		}
		ps.Elapsed = collected.ProviderElapsed[p]

		ps.AfterDedup = afterDedup[p]

		sum, n := 0, 0
		for _, art := range analyzed {
			if art.Source == p {
				sum += art.RelevanceScore
				n++
			}
		}
		if n > 0 {
			ps.AvgScore = float64(sum) / float64(n)
		}
	}
}

// sortArticles orders the final set: score descending, then resolved date
// descending, then source ascending for a stable tie-break.
func sortArticles(articles []model.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		if articles[i].RelevanceScore != articles[j].RelevanceScore {
			return articles[i].RelevanceScore > articles[j].RelevanceScore
		}
		if !articles[i].ResolvedDate.Equal(articles[j].ResolvedDate) {
			return articles[i].ResolvedDate.After(articles[j].ResolvedDate)
		}
		return articles[i].Source < articles[j].Source
	})
}
