package relevance

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbio/pharma-research/internal/model"
	"github.com/meridianbio/pharma-research/pkg/openai"
)

const goodVerdict = `{
	"relevance_score": 85,
	"relevance_reason": "Directly reports phase 3 results for the searched drug.",
	"article_type": "clinical_trial",
	"mentioned_keywords": ["semaglutide"],
	"pertinent_keywords": ["GLP-1", "obesity"],
	"clinical_significance": "Primary endpoint met.",
	"regulatory_impact": "Supports a label expansion filing.",
	"market_impact": "None",
	"summary": "Phase 3 trial met its primary endpoint."
}`

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr bool
	}{
		{"clean json", goodVerdict, 85, false},
		{"fenced json", "```json\n" + goodVerdict + "\n```", 85, false},
		{"bare fence", "```\n" + goodVerdict + "\n```", 85, false},
		{"prefaced json", "Here is my assessment:\n" + goodVerdict, 85, false},
		{"braces in strings", `{"relevance_score": 70, "relevance_reason": "mentions {dose}", "summary": "x"}`, 70, false},
		{"apology", "I'm sorry, I cannot analyze this article.", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := parseVerdict(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Score)
		})
	}
}

type scriptedChat struct {
	mu      sync.Mutex
	replies map[string]string // keyed by substring of the user prompt
	failAll bool
	reqs    []openai.ChatCompletionRequest
}

func (s *scriptedChat) ChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if s.failAll {
		return nil, eris.New("model unavailable")
	}
	reply := goodVerdict
	for key, r := range s.replies {
		if len(req.Messages) > 1 && strings.Contains(req.Messages[1].Content, key) {
			reply = r
		}
	}
	return &openai.ChatCompletionResponse{Choices: []openai.Choice{
		{Message: openai.Message{Role: "assistant", Content: reply}},
	}}, nil
}

func testQuery() model.Query {
	return model.Query{
		PrimaryKeywords: []string{"semaglutide"},
		StartDate:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Mode:            model.ModeStandard,
	}
}

func TestAnalyzerAnalyze(t *testing.T) {
	t.Run("applies verdicts", func(t *testing.T) {
		chat := &scriptedChat{}
		a := NewAnalyzer(chat, "gpt-4o", 2, 0, time.Second)
		articles := []model.Article{{Title: "Trial readout", Content: "body"}}

		failed, err := a.Analyze(context.Background(), articles, testQuery())
		require.NoError(t, err)
		assert.Zero(t, failed)

		got := articles[0]
		assert.Equal(t, 85, got.RelevanceScore)
		assert.True(t, got.Scored)
		assert.Equal(t, "clinical_trial", got.ArticleType)
		assert.Equal(t, []string{"GLP-1", "obesity"}, got.PertinentKeywords)
	})

	t.Run("requests json mode at low temperature", func(t *testing.T) {
		chat := &scriptedChat{}
		a := NewAnalyzer(chat, "gpt-4o", 1, 0, time.Second)
		articles := []model.Article{{Title: "x"}}

		_, err := a.Analyze(context.Background(), articles, testQuery())
		require.NoError(t, err)
		require.Len(t, chat.reqs, 1)
		req := chat.reqs[0]
		assert.Equal(t, "gpt-4o", req.Model)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		require.NotNil(t, req.Temperature)
		assert.InDelta(t, 0.1, *req.Temperature, 1e-9)
	})

	t.Run("model failure keeps article with neutral score", func(t *testing.T) {
		chat := &scriptedChat{failAll: true}
		a := NewAnalyzer(chat, "gpt-4o", 1, 0, time.Second)
		articles := []model.Article{{Title: "Trial readout", Content: "body"}}

		failed, err := a.Analyze(context.Background(), articles, testQuery())
		require.NoError(t, err)
		assert.Equal(t, 1, failed)
		assert.Equal(t, neutralScore, articles[0].RelevanceScore)
		assert.True(t, articles[0].Scored)
		assert.Equal(t, "unknown", articles[0].ArticleType)
		assert.Equal(t, []string{"semaglutide"}, articles[0].MentionedKeywords)
	})

	t.Run("unparseable response keeps article with neutral score", func(t *testing.T) {
		chat := &scriptedChat{replies: map[string]string{"Garbled": "I cannot produce JSON today."}}
		a := NewAnalyzer(chat, "gpt-4o", 1, 0, time.Second)
		articles := []model.Article{{Title: "Garbled", Content: "body"}}

		failed, err := a.Analyze(context.Background(), articles, testQuery())
		require.NoError(t, err)
		assert.Equal(t, 1, failed)
		assert.Equal(t, neutralScore, articles[0].RelevanceScore)
	})

	t.Run("out of range score clamps", func(t *testing.T) {
		chat := &scriptedChat{replies: map[string]string{"Clampy": `{"relevance_score": 250, "summary": "x"}`}}
		a := NewAnalyzer(chat, "gpt-4o", 1, 0, time.Second)
		articles := []model.Article{{Title: "Clampy"}}

		_, err := a.Analyze(context.Background(), articles, testQuery())
		require.NoError(t, err)
		assert.Equal(t, 100, articles[0].RelevanceScore)
	})
}

func TestFilterByScore(t *testing.T) {
	articles := []model.Article{
		{Title: "high", RelevanceScore: 90, Scored: true},
		{Title: "medium", RelevanceScore: 65, Scored: true},
		{Title: "low", RelevanceScore: 45, Scored: true},
		{Title: "reject", RelevanceScore: 10, Scored: true},
	}

	kept, filtered, bands := FilterByScore(articles, 60)
	require.Len(t, kept, 2)
	assert.Equal(t, "high", kept[0].Title)
	assert.Equal(t, 2, filtered)
	assert.Equal(t, 1, bands.High)
	assert.Equal(t, 1, bands.Medium)
	assert.Equal(t, 1, bands.Low)
	assert.Equal(t, 1, bands.Reject)
}

func TestFilterByScoreBoundaryInclusive(t *testing.T) {
	kept, filtered, _ := FilterByScore([]model.Article{{RelevanceScore: 40, Scored: true}}, 40)
	assert.Len(t, kept, 1)
	assert.Zero(t, filtered)
}
