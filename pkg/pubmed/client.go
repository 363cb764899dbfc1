// Package pubmed implements the two-step Entrez retrieval protocol:
// esearch returns PMIDs for a query term, efetch returns article detail XML.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/meridianbio/pharma-research/internal/resilience"
)

const defaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// Client searches PubMed via the Entrez E-utilities.
type Client interface {
	Search(ctx context.Context, term string, max int) ([]Record, error)
}

// Record is a single PubMed article as returned by efetch.
type Record struct {
	PMID     string
	Title    string
	Abstract string
	Date     string // ISO YYYY-MM-DD when the record carries a full PubDate
	Authors  string
	URL      string
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default E-utilities base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the inter-call rate. NCBI allows 3 req/s without an
// API key; exceeding it earns a block.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetry overrides the default retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	email   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates an Entrez client. The email identifies the caller to NCBI
// per their usage policy.
func NewClient(email string, opts ...Option) Client {
	c := &httpClient{
		email:   email,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(3, 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("pubmed", "entrez")
	}
	return c
}

// BuildTerm constructs a boolean Entrez query: quoted keyword phrases tagged
// with field (e.g. "[Title/Abstract]") and joined by joiner, constrained to
// a publication-date window via the [dp] clause.
func BuildTerm(keywords []string, field, joiner string, start, end time.Time) string {
	parts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		parts = append(parts, fmt.Sprintf("%q%s", kw, field))
	}
	term := "(" + strings.Join(parts, joiner) + ")"
	term += fmt.Sprintf(" AND (%s:%s[dp])",
		start.Format("2006/01/02"), end.Format("2006/01/02"))
	return term
}

func (c *httpClient) Search(ctx context.Context, term string, max int) ([]Record, error) {
	pmids, err := c.esearch(ctx, term, max)
	if err != nil {
		return nil, err
	}
	if len(pmids) == 0 {
		return nil, nil
	}
	return c.efetch(ctx, pmids)
}

func (c *httpClient) esearch(ctx context.Context, term string, max int) ([]string, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmax", fmt.Sprint(max))
	params.Set("retmode", "json")
	params.Set("sort", "relevance")
	params.Set("email", c.email)

	body, err := c.get(ctx, "/esearch.fcgi", params)
	if err != nil {
		return nil, err
	}

	var result struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "pubmed: unmarshal esearch response")
	}
	return result.ESearchResult.IDList, nil
}

func (c *httpClient) efetch(ctx context.Context, pmids []string) ([]Record, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "xml")
	params.Set("email", c.email)

	body, err := c.get(ctx, "/efetch.fcgi", params)
	if err != nil {
		return nil, err
	}
	return parseArticleSet(body)
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "pubmed: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return nil, eris.Wrap(err, "pubmed: create request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "pubmed: send request")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "pubmed: read response")
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("pubmed: unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}
		return body, nil
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
