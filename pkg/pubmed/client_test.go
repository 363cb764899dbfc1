package pubmed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbio/pharma-research/internal/resilience"
)

func noRetry() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = 1
	return cfg
}

const fetchXML = `<?xml version="1.0" ?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>12345</PMID>
      <Article>
        <ArticleTitle>Semaglutide outcomes in heart failure</ArticleTitle>
        <Abstract>
          <AbstractText>Background text.</AbstractText>
          <AbstractText>Results text.</AbstractText>
        </Abstract>
        <AuthorList>
          <Author><LastName>Smith</LastName><ForeName>Anna</ForeName></Author>
          <Author><LastName>Jones</LastName><ForeName>Ben</ForeName></Author>
        </AuthorList>
        <Journal>
          <JournalIssue>
            <PubDate><Year>2026</Year><Month>Aug</Month><Day>14</Day></PubDate>
          </JournalIssue>
        </Journal>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/esearch.fcgi":
			assert.Equal(t, "pubmed", r.URL.Query().Get("db"))
			assert.Equal(t, "json", r.URL.Query().Get("retmode"))
			assert.Contains(t, r.URL.Query().Get("term"), "semaglutide")
			assert.Equal(t, "analyst@example.com", r.URL.Query().Get("email"))
			json.NewEncoder(w).Encode(map[string]any{
				"esearchresult": map[string]any{"idlist": []string{"12345"}},
			})
		case "/efetch.fcgi":
			assert.Equal(t, "12345", r.URL.Query().Get("id"))
			assert.Equal(t, "xml", r.URL.Query().Get("retmode"))
			w.Write([]byte(fetchXML))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient("analyst@example.com",
		WithBaseURL(server.URL), WithRetry(noRetry()), WithRateLimit(100))

	records, err := client.Search(context.Background(), `("semaglutide"[Title/Abstract])`, 50)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "12345", rec.PMID)
	assert.Equal(t, "Semaglutide outcomes in heart failure", rec.Title)
	assert.Contains(t, rec.Abstract, "Background text.")
	assert.Contains(t, rec.Abstract, "Results text.")
	assert.Equal(t, "2026-08-14", rec.Date)
	assert.Equal(t, "Anna Smith; Ben Jones", rec.Authors)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/12345", rec.URL)
}

func TestSearchNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/esearch.fcgi", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"esearchresult": map[string]any{"idlist": []string{}},
		})
	}))
	defer server.Close()

	client := NewClient("a@example.com", WithBaseURL(server.URL), WithRetry(noRetry()), WithRateLimit(100))
	records, err := client.Search(context.Background(), "nothing", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient("a@example.com", WithBaseURL(server.URL), WithRetry(noRetry()), WithRateLimit(100))
	_, err := client.Search(context.Background(), "term", 10)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestBuildTerm(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	term := BuildTerm([]string{"semaglutide", "Ozempic"}, "[Title/Abstract]", " OR ", start, end)
	assert.Equal(t,
		`("semaglutide"[Title/Abstract] OR "Ozempic"[Title/Abstract]) AND (2026/08/01:2026/08/20[dp])`,
		term)

	term = BuildTerm([]string{"semaglutide", "cardiovascular"}, "[Title]", " AND ", start, end)
	assert.Equal(t,
		`("semaglutide"[Title] AND "cardiovascular"[Title]) AND (2026/08/01:2026/08/20[dp])`,
		term)
}

func TestPubDateMonthNames(t *testing.T) {
	assert.Equal(t, "2026-08-14", pubDate{Year: "2026", Month: "Aug", Day: "14"}.iso())
	assert.Equal(t, "2026-08-14", pubDate{Year: "2026", Month: "8", Day: "14"}.iso())
	assert.Empty(t, pubDate{Year: "2026", Month: "Aug"}.iso()) // no day
	assert.Empty(t, pubDate{Year: "2026"}.iso())
}

func TestFormatAuthorsEtAl(t *testing.T) {
	many := []author{
		{ForeName: "A", LastName: "One"},
		{ForeName: "B", LastName: "Two"},
		{ForeName: "C", LastName: "Three"},
		{ForeName: "D", LastName: "Four"},
	}
	assert.Equal(t, "A One; B Two; C Three et al.", formatAuthors(many))
	assert.Empty(t, formatAuthors(nil))
}
