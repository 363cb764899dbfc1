package metadata

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbio/pharma-research/internal/model"
)

func sampleResult(id string, kept int) *model.RunResult {
	return &model.RunResult{
		SessionID: id,
		Query: model.Query{
			PrimaryKeywords: []string{"semaglutide"},
			AliasKeywords:   []string{"Ozempic"},
			StartDate:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			EndDate:         time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
			Mode:            model.ModeStandard,
			Providers:       []model.Provider{model.ProviderPubMed, model.ProviderExa},
			AlertName:       "glp1-weekly",
			User:            "analyst",
		},
		Stats: model.RunStats{
			Collected:         20,
			Unique:            15,
			DuplicatesRemoved: 5,
			Analyzed:          12,
			Kept:              kept,
			Filtered:          12 - kept,
			ScoreAvg:          71.5,
			State:             model.StateDone,
			Providers: map[model.Provider]*model.ProviderStats{
				model.ProviderPubMed: {
					Provider:   model.ProviderPubMed,
					Strategies: []string{"primary"},
					Retrieved:  8,
					Kept:       4,
				},
			},
			Strategies: []model.StrategyStats{
				{Provider: model.ProviderPubMed, Strategy: "primary", Retrieved: 8, Kept: 4, AvgScore: 75},
				{Provider: model.ProviderExa, Strategy: "neural", Retrieved: 12, Kept: kept - 4, AvgScore: 68},
			},
			Phases: []model.PhaseTiming{
				{Name: "collection", Elapsed: 3 * time.Second},
				{Name: "relevance_analysis", Elapsed: 9 * time.Second},
			},
		},
		StartedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		Elapsed:   15 * time.Second,
	}
}

func TestRecorderWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert_metadata.csv")

	rec, err := NewRecorder(path)
	require.NoError(t, err)
	rec.Record(sampleResult("run-1", 6))
	rec.Record(sampleResult("run-2", 8))
	require.NoError(t, rec.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "run-1", rows[1][0])
	assert.Equal(t, "run-2", rows[2][0])
	assert.Len(t, rows[1], len(header))
}

func TestRecorderAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert_metadata.csv")

	first, err := NewRecorder(path)
	require.NoError(t, err)
	first.Record(sampleResult("run-1", 6))
	require.NoError(t, first.Close())

	second, err := NewRecorder(path)
	require.NoError(t, err)
	second.Record(sampleResult("run-2", 8))
	require.NoError(t, second.Close())

	records, err := ReadRuns(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "run-1", records[0].AlertID)
	assert.Equal(t, "run-2", records[1].AlertID)
}

func TestRowColumns(t *testing.T) {
	cols := row(sampleResult("run-1", 6))
	require.Len(t, cols, len(header))

	byName := make(map[string]string, len(header))
	for i, name := range header {
		byName[name] = cols[i]
	}

	assert.Equal(t, "glp1-weekly", byName["alert_name"])
	assert.Equal(t, "semaglutide; Ozempic", byName["all_keywords"])
	assert.Equal(t, "20", byName["total_articles_collected"])
	assert.Equal(t, "0.25", byName["overall_duplicate_rate"])
	assert.Equal(t, "8", byName["pubmed_total_retrieved"])
	assert.Equal(t, "0", byName["exa_total_retrieved"]) // no aggregate for exa
	assert.Equal(t, "71.50", byName["avg_relevance_score"])
	assert.Equal(t, "true", byName["workflow_successful"])
	assert.Equal(t, "15.00", byName["total_execution_time"])
	assert.Equal(t, "3.00", byName["collection_time"])
	assert.Contains(t, byName["strategy_details_json"], `"strategy":"neural"`)
}

func TestRecentRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert_metadata.csv")
	rec, err := NewRecorder(path)
	require.NoError(t, err)

	older := sampleResult("run-old", 6)
	older.StartedAt = time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	newer := sampleResult("run-new", 8)
	newer.StartedAt = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	rec.Record(older)
	rec.Record(newer)
	require.NoError(t, rec.Close())

	runs, err := RecentRuns(path, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-new", runs[0].AlertID)
}

func TestStrategyPerformance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert_metadata.csv")
	rec, err := NewRecorder(path)
	require.NoError(t, err)
	rec.Record(sampleResult("run-1", 6))
	rec.Record(sampleResult("run-2", 8))
	require.NoError(t, rec.Close())

	rollups, err := StrategyPerformance(path)
	require.NoError(t, err)
	require.Len(t, rollups, 2)

	// Sorted by provider then strategy: exa/neural before pubmed/primary.
	assert.Equal(t, model.ProviderExa, rollups[0].Provider)
	assert.Equal(t, "neural", rollups[0].Strategy)
	assert.Equal(t, 2, rollups[0].Runs)
	assert.Equal(t, 24, rollups[0].Retrieved)

	assert.Equal(t, model.ProviderPubMed, rollups[1].Provider)
	assert.Equal(t, 16, rollups[1].Retrieved)
	assert.Equal(t, 8, rollups[1].Kept)
	assert.InDelta(t, 75, rollups[1].AvgScore, 1e-9)
}
