package metadata

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/meridianbio/pharma-research/internal/model"
)

// RunRecord is the subset of a CSV row used by the analysis subcommands.
type RunRecord struct {
	AlertID     string
	ExecutedAt  time.Time
	AlertName   string
	User        string
	AllKeywords string
	Collected   string
	Kept        string
	AvgScore    string
	Successful  string
	Strategies  []model.StrategyStats
}

// ReadRuns parses every data row in the CSV at path. Rows written by older
// layouts or damaged by partial writes are skipped, not fatal.
func ReadRuns(path string) ([]RunRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "metadata: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	head, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "metadata: read header")
	}
	col := make(map[string]int, len(head))
	for i, name := range head {
		col[name] = i
	}

	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []RunRecord
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		rec := RunRecord{
			AlertID:     get(row, "alert_id"),
			AlertName:   get(row, "alert_name"),
			User:        get(row, "user"),
			AllKeywords: get(row, "all_keywords"),
			Collected:   get(row, "total_articles_collected"),
			Kept:        get(row, "articles_final_kept"),
			AvgScore:    get(row, "avg_relevance_score"),
			Successful:  get(row, "workflow_successful"),
		}
		if ts, err := time.Parse(time.RFC3339, get(row, "execution_timestamp")); err == nil {
			rec.ExecutedAt = ts
		}
		if raw := get(row, "strategy_details_json"); raw != "" {
			_ = json.Unmarshal([]byte(raw), &rec.Strategies)
		}
		records = append(records, rec)
	}
	return records, nil
}

// RecentRuns returns the newest n runs, most recent first.
func RecentRuns(path string, n int) ([]RunRecord, error) {
	records, err := ReadRuns(path)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ExecutedAt.After(records[j].ExecutedAt)
	})
	if n > 0 && len(records) > n {
		records = records[:n]
	}
	return records, nil
}

// StrategyRollup aggregates one provider strategy across runs.
type StrategyRollup struct {
	Provider  model.Provider `json:"provider"`
	Strategy  string         `json:"strategy"`
	Runs      int            `json:"runs"`
	Retrieved int            `json:"retrieved"`
	Kept      int            `json:"kept"`
	Errors    int            `json:"errors"`
	AvgScore  float64        `json:"avg_score"`
}

// StrategyPerformance aggregates strategy rows across all logged runs, to
// show which provider variants actually earn their API calls.
func StrategyPerformance(path string) ([]StrategyRollup, error) {
	records, err := ReadRuns(path)
	if err != nil {
		return nil, err
	}

	type key struct {
		provider model.Provider
		strategy string
	}
	agg := make(map[key]*StrategyRollup)
	scoreSum := make(map[key]float64)
	scored := make(map[key]int)

	for _, rec := range records {
		for _, s := range rec.Strategies {
			k := key{s.Provider, s.Strategy}
			roll, ok := agg[k]
			if !ok {
				roll = &StrategyRollup{Provider: s.Provider, Strategy: s.Strategy}
				agg[k] = roll
			}
			roll.Runs++
			roll.Retrieved += s.Retrieved
			roll.Kept += s.Kept
			if s.Err != "" {
				roll.Errors++
			}
			if s.Kept > 0 {
				scoreSum[k] += s.AvgScore
				scored[k]++
			}
		}
	}

	out := make([]StrategyRollup, 0, len(agg))
	for k, roll := range agg {
		if scored[k] > 0 {
			roll.AvgScore = scoreSum[k] / float64(scored[k])
		}
		out = append(out, *roll)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Strategy < out[j].Strategy
	})
	return out, nil
}
