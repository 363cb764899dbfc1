// Package relevance scores articles for pharmaceutical relevance with a chat
// model and filters on the resulting score.
package relevance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meridianbio/pharma-research/internal/model"
	"github.com/meridianbio/pharma-research/pkg/openai"
)

const (
	neutralScore       = 50
	promptContentLimit = 3000
)

// Verdict is the structured assessment returned by the model for one article.
type Verdict struct {
	Score                int      `json:"relevance_score"`
	Reason               string   `json:"relevance_reason"`
	ArticleType          string   `json:"article_type"`
	MentionedKeywords    []string `json:"mentioned_keywords"`
	PertinentKeywords    []string `json:"pertinent_keywords"`
	ClinicalSignificance string   `json:"clinical_significance"`
	RegulatoryImpact     string   `json:"regulatory_impact"`
	MarketImpact         string   `json:"market_impact"`
	Summary              string   `json:"summary"`
}

// Analyzer scores articles through an OpenAI-compatible chat model.
type Analyzer struct {
	client      openai.Client
	model       string
	concurrency int
	callDelay   time.Duration
	timeout     time.Duration
}

// NewAnalyzer creates an analyzer. concurrency bounds simultaneous model
// calls; callDelay spaces out call starts within a worker to stay under
// per-minute quotas.
func NewAnalyzer(client openai.Client, modelName string, concurrency int, callDelay, timeout time.Duration) *Analyzer {
	if concurrency <= 0 {
		concurrency = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Analyzer{
		client:      client,
		model:       modelName,
		concurrency: concurrency,
		callDelay:   callDelay,
		timeout:     timeout,
	}
}

// Analyze scores every article in place. Model and parse failures never drop
// an article: the article keeps a neutral score and stays in the pipeline so
// a flaky model call cannot silently discard a relevant story. The returned
// count is how many articles fell back to the neutral verdict.
func (a *Analyzer) Analyze(ctx context.Context, articles []model.Article, q model.Query) (int, error) {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	failures := make([]bool, len(articles))
	for i := range articles {
		art := &articles[i]
		g.Go(func() error {
			v, err := a.analyzeOne(gCtx, *art, q)
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				zap.L().Warn("relevance analysis failed",
					zap.String("url", art.URL),
					zap.Error(err),
				)
				v = neutralVerdict(*art, q, err)
				failures[i] = true
			}
			apply(art, v)

			if a.callDelay > 0 {
				select {
				case <-time.After(a.callDelay):
				case <-gCtx.Done():
					return gCtx.Err()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	failed := 0
	for _, f := range failures {
		if f {
			failed++
		}
	}
	return failed, nil
}

func (a *Analyzer) analyzeOne(ctx context.Context, art model.Article, q model.Query) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	temp := 0.1
	maxTokens := 2000
	resp, err := a.client.ChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(art, q)},
		},
		Temperature:    &temp,
		MaxTokens:      &maxTokens,
		ResponseFormat: &openai.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}
	return parseVerdict(resp.Text())
}

// apply copies a verdict onto the article.
func apply(art *model.Article, v *Verdict) {
	art.RelevanceScore = clampScore(v.Score)
	art.Scored = true
	art.RelevanceReason = v.Reason
	art.ArticleType = v.ArticleType
	art.MentionedKeywords = v.MentionedKeywords
	art.PertinentKeywords = v.PertinentKeywords
	art.ClinicalSignificance = v.ClinicalSignificance
	art.RegulatoryImpact = v.RegulatoryImpact
	art.MarketImpact = v.MarketImpact
	art.Summary = v.Summary
}

// neutralVerdict is the retention record used when analysis fails: score 50
// keeps the article above outright rejection without promoting it.
func neutralVerdict(art model.Article, q model.Query, cause error) *Verdict {
	summary := art.Content
	if summary == "" {
		summary = art.Title
	}
	if len(summary) > 200 {
		summary = summary[:200] + "..."
	}
	reason := cause.Error()
	if len(reason) > 100 {
		reason = reason[:100]
	}
	return &Verdict{
		Score:                neutralScore,
		Reason:               "Analysis failed but article retained: " + reason,
		ArticleType:          "unknown",
		MentionedKeywords:    q.AllKeywords(),
		ClinicalSignificance: "Unable to analyze",
		RegulatoryImpact:     "Unable to analyze",
		MarketImpact:         "Unable to analyze",
		Summary:              summary,
	}
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

const systemPrompt = `You are an expert pharmaceutical research analyst. Your job is to evaluate medical and pharmaceutical articles for relevance, quality, and significance based SOLELY on the content and context provided.

You MUST respond with ONLY valid JSON. No markdown, no code blocks, no extra text - just raw JSON.`

func userPrompt(art model.Article, q model.Query) string {
	date := "Unknown"
	if art.HasDate() {
		date = art.ResolvedDate.Format("2006-01-02")
	}
	content := art.Content
	if len(content) > promptContentLimit {
		content = content[:promptContentLimit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ARTICLE DETAILS:\nTitle: %s\nSource: %s\nURL: %s\nDate: %s\nContent Preview: %s\n\n",
		art.Title, art.Source, art.URL, date, content)
	fmt.Fprintf(&b, "SEARCH CONTEXT:\nKeywords: %s\nSearch Type: %s\nDomain: Pharmaceutical/Medical Research\n",
		strings.Join(q.AllKeywords(), ", "), q.Mode)
	if q.AlertName != "" {
		fmt.Fprintf(&b, "Alert Title: %s\n", q.AlertName)
	}
	b.WriteString(`
TASK: Analyze this article and provide a comprehensive relevance assessment.

OUTPUT FORMAT (raw JSON only, no markdown):
{
    "relevance_score": <number 0-100>,
    "relevance_reason": "<detailed explanation of why this score was assigned>",
    "article_type": "<research|news|press_release|company_page|clinical_trial|regulatory|other>",
    "mentioned_keywords": ["<exact keywords found in content>"],
    "pertinent_keywords": ["<additional relevant keywords/phrases from article content that are related to the search topic>"],
    "clinical_significance": "<clinical relevance explanation or 'None'>",
    "regulatory_impact": "<regulatory implications or 'None'>",
    "market_impact": "<market implications or 'None'>",
    "summary": "<2-3 sentence summary>"
}

SCORING GUIDELINES (Base your score ONLY on content analysis):
- 90-100: Perfect match, highly relevant research/clinical data, directly addresses keywords and alert context
- 80-89: Very relevant, important news or study results, strong keyword presence and alert relevance
- 70-79: Relevant, useful information, moderate keyword presence and some alert relevance
- 60-69: Somewhat relevant, minor connection to keywords or alert context
- 50-59: Barely relevant, weak connection to keywords or alert context
- 0-49: Not relevant, no meaningful connection to keywords or alert context

EVALUATION CRITERIA (Analyze each aspect):
1. Keyword Presence: How many search keywords appear in title and content? (Exact matches only)
2. Alert Relevance: How well does this article relate to the alert title context?
3. Content Quality: Is this credible research, news, or promotional material?
4. Clinical Significance: Does it discuss clinical trials, efficacy, safety, or patient outcomes?
5. Regulatory Relevance: Are there FDA approvals, regulatory decisions, or guidelines?
6. Market Impact: Business implications, commercial developments, or market dynamics?
7. Source Credibility: Is it from a reputable source (PubMed, peer-reviewed, official news)?
8. Pertinent Keywords: Extract additional relevant terms, drug names, conditions, technologies, or concepts from the article that relate to the search topic

IMPORTANT:
- Score based ONLY on the actual content and context provided
- Look for EXACT keyword matches, not partial matches
- For pertinent_keywords: Extract 3-10 additional relevant terms/phrases from the article content that are semantically related to the search keywords
- Provide detailed reasoning for your score

Return ONLY the JSON object, nothing else.`)
	return b.String()
}
