// Package metadata keeps the append-only CSV log of run outcomes used for
// alert tuning and provider performance review.
package metadata

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridianbio/pharma-research/internal/model"
)

// header defines the column layout. Existing files are appended to as-is;
// adding a column means a new file.
var header = []string{
	"alert_id", "execution_timestamp", "alert_name", "alert_type", "user",

	"primary_keywords", "alias_keywords", "all_keywords", "search_type",
	"start_date", "end_date",

	"retrievers_used", "num_retrievers",

	"total_articles_collected", "total_unique_after_dedup", "total_duplicates_removed",
	"duplicate_groups_found", "overall_duplicate_rate",

	"articles_with_original_dates", "articles_with_extracted_dates", "articles_without_dates",

	"articles_in_date_range", "articles_out_of_date_range", "articles_rescued_by_model",

	"articles_analyzed", "articles_relevance_high_80plus", "articles_relevance_medium_60_79",
	"articles_relevance_low_below60", "articles_final_kept", "avg_relevance_score",

	"article_types_json",

	"pubmed_total_retrieved", "pubmed_after_dedup", "pubmed_strategies_used",
	"pubmed_unique_contribution", "pubmed_duplicate_rate", "pubmed_avg_relevance",
	"pubmed_final_kept", "pubmed_execution_time",

	"exa_total_retrieved", "exa_after_dedup", "exa_strategies_used",
	"exa_unique_contribution", "exa_duplicate_rate", "exa_avg_relevance",
	"exa_final_kept", "exa_execution_time",

	"tavily_total_retrieved", "tavily_after_dedup", "tavily_strategies_used",
	"tavily_unique_contribution", "tavily_duplicate_rate", "tavily_avg_relevance",
	"tavily_final_kept", "tavily_execution_time",

	"newsapi_total_retrieved", "newsapi_after_dedup", "newsapi_strategies_used",
	"newsapi_unique_contribution", "newsapi_duplicate_rate", "newsapi_avg_relevance",
	"newsapi_final_kept", "newsapi_execution_time",

	"strategy_details_json",

	"total_execution_time", "collection_time", "dedup_time",
	"date_resolution_time", "relevance_analysis_time",

	"workflow_successful", "errors_encountered",
}

// Recorder appends one CSV row per run. Writes happen on a dedicated
// goroutine so a slow disk never blocks a pipeline; Close drains the queue.
type Recorder struct {
	path string
	ch   chan *model.RunResult
	done chan struct{}
}

// NewRecorder opens (or creates) the CSV at path and starts the writer.
func NewRecorder(path string) (*Recorder, error) {
	if err := ensureFile(path); err != nil {
		return nil, err
	}
	r := &Recorder{
		path: path,
		ch:   make(chan *model.RunResult, 16),
		done: make(chan struct{}),
	}
	go r.loop()
	return r, nil
}

// Record queues a run for logging. It never blocks the caller: when the
// queue is full the run is dropped with a warning.
func (r *Recorder) Record(result *model.RunResult) {
	select {
	case r.ch <- result:
	default:
		zap.L().Warn("metadata queue full, dropping run record",
			zap.String("session_id", result.SessionID))
	}
}

// Close flushes queued records and stops the writer.
func (r *Recorder) Close() error {
	close(r.ch)
	<-r.done
	return nil
}

func (r *Recorder) loop() {
	defer close(r.done)
	for result := range r.ch {
		if err := r.append(result); err != nil {
			zap.L().Error("metadata append failed",
				zap.String("session_id", result.SessionID),
				zap.Error(err),
			)
		}
	}
}

func ensureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return eris.Wrapf(err, "metadata: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "metadata: write header")
	}
	w.Flush()
	return eris.Wrap(w.Error(), "metadata: flush header")
}

func (r *Recorder) append(result *model.RunResult) error {
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "metadata: open %s", r.path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row(result)); err != nil {
		return eris.Wrap(err, "metadata: write row")
	}
	w.Flush()
	return eris.Wrap(w.Error(), "metadata: flush row")
}

func row(result *model.RunResult) []string {
	s := result.Stats
	q := result.Query

	providers := make([]string, 0, len(q.Providers))
	for _, p := range q.Providers {
		providers = append(providers, string(p))
	}

	dupRate := 0.0
	if s.Collected > 0 {
		dupRate = float64(s.DuplicatesRemoved) / float64(s.Collected)
	}

	cols := []string{
		result.SessionID,
		result.StartedAt.UTC().Format(time.RFC3339),
		q.AlertName,
		"single",
		q.User,

		strings.Join(q.PrimaryKeywords, "; "),
		strings.Join(q.AliasKeywords, "; "),
		strings.Join(q.AllKeywords(), "; "),
		string(q.Mode),
		q.StartDate.Format("2006-01-02"),
		q.EndDate.Format("2006-01-02"),

		strings.Join(providers, "; "),
		itoa(len(providers)),

		itoa(s.Collected), itoa(s.Unique), itoa(s.DuplicatesRemoved),
		itoa(s.DuplicateGroups), ftoa(dupRate),

		itoa(s.WithDates), itoa(s.ModelExtracted), itoa(s.WithoutDates),

		itoa(s.InRange), itoa(s.OutOfRange), itoa(s.ModelRescued),

		itoa(s.Analyzed), itoa(s.Bands.High), itoa(s.Bands.Medium),
		itoa(s.Bands.Low + s.Bands.Reject), itoa(s.Kept), ftoa(s.ScoreAvg),

		marshal(s.ArticleTypes),
	}

	for _, p := range model.AllProviders {
		cols = append(cols, providerCols(s.Providers[p])...)
	}

	cols = append(cols,
		marshal(s.Strategies),

		dtoa(result.Elapsed),
		dtoa(phase(s.Phases, "collection")),
		dtoa(phase(s.Phases, "dedup")),
		dtoa(phase(s.Phases, "date_resolution")),
		dtoa(phase(s.Phases, "relevance_analysis")),

		fmt.Sprint(s.State == model.StateDone),
		s.Error,
	)
	return cols
}

func providerCols(ps *model.ProviderStats) []string {
	if ps == nil {
		return []string{"0", "0", "", "0", "0.00", "0.00", "0", "0.00"}
	}
	return []string{
		itoa(ps.Retrieved),
		itoa(ps.AfterDedup),
		strings.Join(ps.Strategies, "; "),
		itoa(ps.UniqueContribution),
		ftoa(ps.DuplicateRate),
		ftoa(ps.AvgScore),
		itoa(ps.Kept),
		dtoa(ps.Elapsed),
	}
}

func phase(phases []model.PhaseTiming, name string) time.Duration {
	for _, p := range phases {
		if p.Name == name {
			return p.Elapsed
		}
	}
	return 0
}

func itoa(n int) string { return fmt.Sprint(n) }

func ftoa(f float64) string { return fmt.Sprintf("%.2f", f) }

func dtoa(d time.Duration) string { return fmt.Sprintf("%.2f", d.Seconds()) }

func marshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
