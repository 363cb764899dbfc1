package dates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbio/pharma-research/internal/model"
	"github.com/meridianbio/pharma-research/pkg/openai"
)

type fakeChat struct {
	req   openai.ChatCompletionRequest
	reply string
	err   error
}

func (f *fakeChat) ChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &openai.ChatCompletionResponse{Choices: []openai.Choice{
		{Message: openai.Message{Role: "assistant", Content: f.reply}},
	}}, nil
}

func TestModelDaterExtract(t *testing.T) {
	art := model.Article{
		URL:     "https://news.test/story",
		Title:   "Trial readout",
		Content: "body text",
	}

	t.Run("parses a clean date answer", func(t *testing.T) {
		chat := &fakeChat{reply: "2026-08-14"}
		d := NewModelDater(chat, "gpt-4o-mini", time.Second)

		got, err := d.Extract(context.Background(), art)
		require.NoError(t, err)
		assert.Equal(t, day(2026, time.August, 14), got)
		assert.Equal(t, "gpt-4o-mini", chat.req.Model)
		require.NotNil(t, chat.req.Temperature)
		assert.Zero(t, *chat.req.Temperature)
		require.NotNil(t, chat.req.MaxTokens)
		assert.Equal(t, 50, *chat.req.MaxTokens)
	})

	t.Run("none means no date", func(t *testing.T) {
		d := NewModelDater(&fakeChat{reply: "none"}, "gpt-4o-mini", time.Second)
		got, err := d.Extract(context.Background(), art)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("quoted answer still parses", func(t *testing.T) {
		d := NewModelDater(&fakeChat{reply: `"2026-08-14"`}, "gpt-4o-mini", time.Second)
		got, err := d.Extract(context.Background(), art)
		require.NoError(t, err)
		assert.Equal(t, day(2026, time.August, 14), got)
	})

	t.Run("chatty answer treated as no date", func(t *testing.T) {
		d := NewModelDater(&fakeChat{reply: "The article was published on August 14th."}, "gpt-4o-mini", time.Second)
		got, err := d.Extract(context.Background(), art)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("implausible date treated as no date", func(t *testing.T) {
		d := NewModelDater(&fakeChat{reply: "1200-01-01"}, "gpt-4o-mini", time.Second)
		got, err := d.Extract(context.Background(), art)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("prompt truncates long inputs", func(t *testing.T) {
		long := art
		long.Content = string(make([]byte, 10000))
		chat := &fakeChat{reply: "none"}
		d := NewModelDater(chat, "gpt-4o-mini", time.Second)

		_, err := d.Extract(context.Background(), long)
		require.NoError(t, err)
		assert.Less(t, len(chat.req.Messages[1].Content), 4500)
	})
}
