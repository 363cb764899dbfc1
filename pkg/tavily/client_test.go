package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbio/pharma-research/internal/resilience"
)

func noRetry() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = 1
	return cfg
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)

		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// The key travels in the body.
		assert.Equal(t, "test-key", req.APIKey)
		assert.Equal(t, "advanced", req.SearchDepth)
		assert.Equal(t, 20, req.MaxResults)
		assert.Equal(t, 14, req.Days)

		json.NewEncoder(w).Encode(SearchResponse{Results: []Result{{
			Title:         "Label expansion",
			URL:           "https://statnews.com/x",
			Content:       "snippet",
			PublishedDate: "2026-08-14",
		}}})
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL), WithRetry(noRetry()))
	resp, err := client.Search(context.Background(), SearchRequest{
		Query:       `"semaglutide"`,
		SearchDepth: "advanced",
		MaxResults:  20,
		Days:        14,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Label expansion", resp.Results[0].Title)
}

func TestSearchExplicitKeyNotOverwritten(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "other-key", req.APIKey)
		json.NewEncoder(w).Encode(SearchResponse{})
	}))
	defer server.Close()

	client := NewClient("default-key", WithBaseURL(server.URL), WithRetry(noRetry()))
	_, err := client.Search(context.Background(), SearchRequest{APIKey: "other-key", Query: "q"})
	require.NoError(t, err)
}

func TestSearchTransientStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("k", WithBaseURL(server.URL), WithRetry(noRetry()))
	_, err := client.Search(context.Background(), SearchRequest{Query: "q"})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}
