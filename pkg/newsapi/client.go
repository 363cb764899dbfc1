// Package newsapi is a client for the NewsAPI "everything" endpoint.
package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/meridianbio/pharma-research/internal/resilience"
)

const defaultBaseURL = "https://newsapi.org/v2"

// Client performs searches against NewsAPI.
type Client interface {
	Everything(ctx context.Context, req EverythingRequest) (*EverythingResponse, error)
}

// EverythingRequest holds the query parameters for GET /everything.
type EverythingRequest struct {
	Query    string
	From     time.Time
	To       time.Time
	Language string
	SortBy   string
	PageSize int
}

// EverythingResponse is the response from GET /everything.
type EverythingResponse struct {
	Status       string    `json:"status"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
}

// Article is a single NewsAPI result.
type Article struct {
	Source      Source `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// Source identifies the publication.
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
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

// WithRetry overrides the default retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a NewsAPI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("newsapi", "everything")
	}
	return c
}

func (c *httpClient) Everything(ctx context.Context, req EverythingRequest) (*EverythingResponse, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("apiKey", c.apiKey)
	if req.Language != "" {
		params.Set("language", req.Language)
	}
	if req.SortBy != "" {
		params.Set("sortBy", req.SortBy)
	}
	if req.PageSize > 0 {
		if req.PageSize > 100 {
			req.PageSize = 100
		}
		params.Set("pageSize", fmt.Sprint(req.PageSize))
	}
	if !req.From.IsZero() {
		params.Set("from", req.From.Format("2006-01-02"))
	}
	if !req.To.IsZero() {
		params.Set("to", req.To.Format("2006-01-02"))
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*EverythingResponse, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "newsapi: rate limiter wait")
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/everything?"+params.Encode(), nil)
		if err != nil {
			return nil, eris.Wrap(err, "newsapi: create request")
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, eris.Wrap(err, "newsapi: send request")
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "newsapi: read response")
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("newsapi: unexpected status %d: %s", resp.StatusCode, string(respBody))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		var result EverythingResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, eris.Wrap(err, "newsapi: unmarshal response")
		}
		return &result, nil
	})
}
