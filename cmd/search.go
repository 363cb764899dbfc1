package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridianbio/pharma-research/internal/config"
	"github.com/meridianbio/pharma-research/internal/dates"
	"github.com/meridianbio/pharma-research/internal/engine"
	"github.com/meridianbio/pharma-research/internal/metadata"
	"github.com/meridianbio/pharma-research/internal/model"
	"github.com/meridianbio/pharma-research/internal/relevance"
	"github.com/meridianbio/pharma-research/internal/resilience"
	"github.com/meridianbio/pharma-research/internal/search"
	"github.com/meridianbio/pharma-research/pkg/exa"
	"github.com/meridianbio/pharma-research/pkg/newsapi"
	"github.com/meridianbio/pharma-research/pkg/openai"
	"github.com/meridianbio/pharma-research/pkg/pubmed"
	"github.com/meridianbio/pharma-research/pkg/tavily"
)

var (
	searchKeywords  []string
	searchAliases   []string
	searchStart     string
	searchEnd       string
	searchMode      string
	searchEngines   []string
	searchMinScore  int
	searchAlertName string
	searchUser      string
	searchOutput    string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a research query across the enabled providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		q, err := buildQuery()
		if err != nil {
			return err
		}
		if err := cfg.Validate(providerNames(q.Providers)); err != nil {
			return err
		}

		domains, err := config.LoadDomainSets(cfg.Search.DomainsFile)
		if err != nil {
			return eris.Wrap(err, "load domain sets")
		}

		dispatcher := search.NewDispatcher(buildAdapters(q, domains),
			time.Duration(cfg.Search.ProviderTimeoutSecs)*time.Second,
			resilience.FromCircuitConfig(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs),
		)

		chatClient := openai.NewClient(cfg.OpenAI.Key,
			openai.WithBaseURL(cfg.OpenAI.BaseURL),
			openai.WithModel(cfg.OpenAI.MainModel),
			openai.WithRetry(retryConfig()),
		)
		resolver := dates.NewResolver(
			dates.NewModelDater(chatClient, cfg.OpenAI.DateModel,
				time.Duration(cfg.Dates.ModelTimeoutSecs)*time.Second),
			cfg.Dates.Concurrency,
		)
		analyzer := relevance.NewAnalyzer(chatClient, cfg.OpenAI.MainModel,
			cfg.Relevance.Concurrency,
			time.Duration(cfg.Relevance.CallDelayMs)*time.Millisecond,
			time.Duration(cfg.Relevance.ModelTimeoutSecs)*time.Second,
		)

		recorder, err := metadata.NewRecorder(cfg.Metadata.Path)
		if err != nil {
			return eris.Wrap(err, "open metadata log")
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				zap.L().Warn("metadata close failed", zap.Error(err))
			}
		}()

		eng := engine.New(dispatcher, resolver, analyzer, recorder,
			engine.NewSessionStore(cfg.Session.MaxEntries),
			cfg.Dedup.SimilarityThreshold,
			cfg.Relevance.MinScore,
		)

		result, err := eng.Run(ctx, q)
		if err != nil {
			return eris.Wrap(err, "run query")
		}

		out := os.Stdout
		if searchOutput != "" {
			f, err := os.Create(searchOutput)
			if err != nil {
				return eris.Wrapf(err, "create %s", searchOutput)
			}
			defer f.Close()
			out = f
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func buildQuery() (model.Query, error) {
	mode, ok := model.ParseSearchMode(searchMode)
	if !ok {
		return model.Query{}, eris.Errorf("unknown search mode %q", searchMode)
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	if searchEnd != "" {
		t, err := time.Parse("2006-01-02", searchEnd)
		if err != nil {
			return model.Query{}, eris.Wrapf(err, "parse --end %q", searchEnd)
		}
		end = t
	}
	start := end.AddDate(0, 0, -7)
	if searchStart != "" {
		t, err := time.Parse("2006-01-02", searchStart)
		if err != nil {
			return model.Query{}, eris.Wrapf(err, "parse --start %q", searchStart)
		}
		start = t
	}

	providers := make([]model.Provider, 0, len(searchEngines))
	for _, name := range searchEngines {
		p, ok := model.ParseProvider(name)
		if !ok {
			return model.Query{}, eris.Errorf("unknown engine %q", name)
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		providers = model.AllProviders
	}

	q := model.Query{
		PrimaryKeywords: searchKeywords,
		AliasKeywords:   searchAliases,
		StartDate:       start,
		EndDate:         end,
		Mode:            mode,
		Providers:       providers,
		MinScore:        searchMinScore,
		AlertName:       searchAlertName,
		User:            searchUser,
	}
	return q, q.Validate()
}

func retryConfig() resilience.RetryConfig {
	return resilience.FromRetryConfig(
		cfg.Retry.MaxAttempts,
		cfg.Retry.InitialBackoffMs,
		cfg.Retry.MaxBackoffMs,
		cfg.Retry.Multiplier,
		cfg.Retry.JitterFraction,
	)
}

func buildAdapters(q model.Query, domains config.DomainSets) []search.Adapter {
	enabled := make(map[model.Provider]bool, len(q.Providers))
	for _, p := range q.Providers {
		enabled[p] = true
	}
	retry := retryConfig()

	// Fixed order; it determines merge precedence for cross-provider dupes.
	var adapters []search.Adapter
	if enabled[model.ProviderPubMed] {
		adapters = append(adapters, search.NewPubMedAdapter(
			pubmed.NewClient(cfg.PubMed.Email,
				pubmed.WithBaseURL(cfg.PubMed.BaseURL),
				pubmed.WithRateLimit(cfg.PubMed.RequestsPerSec),
				pubmed.WithRetry(retry),
			),
			cfg.PubMed.MaxResults,
		))
	}
	if enabled[model.ProviderExa] {
		adapters = append(adapters, search.NewExaAdapter(
			exa.NewClient(cfg.Exa.Key,
				exa.WithBaseURL(cfg.Exa.BaseURL),
				exa.WithRetry(retry),
			),
			domains,
			cfg.Exa.MaxResults,
		))
	}
	if enabled[model.ProviderTavily] {
		adapters = append(adapters, search.NewTavilyAdapter(
			tavily.NewClient(cfg.Tavily.Key,
				tavily.WithBaseURL(cfg.Tavily.BaseURL),
				tavily.WithRetry(retry),
			),
			domains,
			cfg.Tavily.MaxResults,
		))
	}
	if enabled[model.ProviderNewsAPI] {
		adapters = append(adapters, search.NewNewsAPIAdapter(
			newsapi.NewClient(cfg.NewsAPI.Key,
				newsapi.WithBaseURL(cfg.NewsAPI.BaseURL),
				newsapi.WithRetry(retry),
			),
			cfg.NewsAPI.MaxResults,
			cfg.NewsAPI.MaxHistoryDays,
			cfg.Search.NewsAPIExpandedAlways,
		))
	}
	return adapters
}

func providerNames(providers []model.Provider) []string {
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, string(p))
	}
	return names
}

func init() {
	searchCmd.Flags().StringSliceVar(&searchKeywords, "keywords", nil, "primary search keywords (required)")
	searchCmd.Flags().StringSliceVar(&searchAliases, "aliases", nil, "alias keywords (brand names, abbreviations)")
	searchCmd.Flags().StringVar(&searchStart, "start", "", "window start, YYYY-MM-DD (default: end minus 7 days)")
	searchCmd.Flags().StringVar(&searchEnd, "end", "", "window end, YYYY-MM-DD (default: today)")
	searchCmd.Flags().StringVar(&searchMode, "mode", "standard", "search mode: standard, title, cooccurrence")
	searchCmd.Flags().StringSliceVar(&searchEngines, "engines", nil, "providers to query (default: all)")
	searchCmd.Flags().IntVar(&searchMinScore, "min-score", 0, "relevance score cutoff (default: config value)")
	searchCmd.Flags().StringVar(&searchAlertName, "alert-name", "", "alert name for the metadata log")
	searchCmd.Flags().StringVar(&searchUser, "user", "", "requesting user for the metadata log")
	searchCmd.Flags().StringVar(&searchOutput, "output", "", "write result JSON to file instead of stdout")
	_ = searchCmd.MarkFlagRequired("keywords")
	rootCmd.AddCommand(searchCmd)
}
