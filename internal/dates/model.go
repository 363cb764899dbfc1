package dates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/meridianbio/pharma-research/internal/model"
	"github.com/meridianbio/pharma-research/pkg/openai"
)

const (
	promptURLLimit     = 200
	promptTitleLimit   = 500
	promptContentLimit = 3000
)

// ModelDater asks a small chat model to extract a publication date when
// metadata parsing fails.
type ModelDater struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewModelDater creates a model-backed date extractor.
func NewModelDater(client openai.Client, modelName string, timeout time.Duration) *ModelDater {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ModelDater{client: client, model: modelName, timeout: timeout}
}

// Extract asks the model for the article's publication date. The zero time
// with a nil error means the model confidently found no date.
func (d *ModelDater) Extract(ctx context.Context, art model.Article) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	temp := 0.0
	maxTokens := 50
	resp, err := d.client.ChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.Message{
			{Role: "system", Content: "You extract publication dates from article snippets. Respond with only the date in YYYY-MM-DD format, or the word none if no publication date can be determined. Never guess."},
			{Role: "user", Content: d.prompt(art)},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return time.Time{}, eris.Wrap(err, "dates: model extraction")
	}

	answer := strings.TrimSpace(strings.Trim(resp.Text(), "\"'` \n"))
	if answer == "" || strings.EqualFold(answer, "none") {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", answer)
	if err != nil || !Valid(t) {
		// Chatty or malformed answer; treat as no date rather than failing
		// the article.
		return time.Time{}, nil
	}
	return t, nil
}

func (d *ModelDater) prompt(art model.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Determine the publication date of this article.\n\n")
	fmt.Fprintf(&b, "URL: %s\n", truncate(art.URL, promptURLLimit))
	fmt.Fprintf(&b, "Title: %s\n", truncate(art.Title, promptTitleLimit))
	if art.RawDate != "" {
		fmt.Fprintf(&b, "Date metadata: %s\n", art.RawDate)
	}
	fmt.Fprintf(&b, "Content: %s\n", truncate(art.Content, promptContentLimit))
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
