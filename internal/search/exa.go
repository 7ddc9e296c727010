package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	exaSearchEndpointDefault = "https://api.exa.ai/search"
	exaNumResults            = 5
	exaRecency               = 7 * 24 * time.Hour
	maxResultContentChars    = 1000
)

// Searcher looks up web context for a query and renders it as prompt text.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

var ErrNotConfigured = errors.New("search: api key not configured")

type exaContents struct {
	Text    bool `json:"text"`
	Summary bool `json:"summary"`
}

type exaSearchRequest struct {
	Query              string      `json:"query"`
	NumResults         int         `json:"numResults"`
	Type               string      `json:"type"`
	Contents           exaContents `json:"contents"`
	UseAutoprompt      bool        `json:"useAutoprompt"`
	StartPublishedDate string      `json:"startPublishedDate"`
}

type exaResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	PublishedDate string `json:"publishedDate"`
	Summary       string `json:"summary"`
	Text          string `json:"text"`
	Snippet       string `json:"snippet"`
}

type exaSearchResponse struct {
	Results []exaResult `json:"results"`
}

// ExaClient queries the Exa search API for recent pages.
type ExaClient struct {
	apiKey   string
	endpoint string
	http     *resty.Client
	now      func() time.Time
}

func NewExaClient(apiKey, endpoint string) *ExaClient {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = exaSearchEndpointDefault
	}
	return &ExaClient{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: endpoint,
		http: resty.New().
			SetHeader("User-Agent", "relaychat/1.0").
			SetTimeout(15 * time.Second).
			SetRetryCount(0),
		now: time.Now,
	}
}

func (c *ExaClient) Search(ctx context.Context, query string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	body := exaSearchRequest{
		Query:              query,
		NumResults:         exaNumResults,
		Type:               "keyword",
		Contents:           exaContents{Text: true, Summary: true},
		UseAutoprompt:      true,
		StartPublishedDate: c.now().Add(-exaRecency).UTC().Format(time.RFC3339),
	}

	var res exaSearchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&res).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("query exa: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("exa search api error (status %d): %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	log.Debug().Str("component", "search").Int("results", len(res.Results)).Msg("exa search completed")
	return formatResults(res.Results), nil
}

// formatResults renders results as numbered sources. Each source's content
// prefers the summary, then the page text, then the snippet.
func formatResults(results []exaResult) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, 0, len(results))
	for i, r := range results {
		content := firstNonEmpty(r.Summary, r.Text, r.Snippet, "No content available")
		if rs := []rune(content); len(rs) > maxResultContentChars {
			content = string(rs[:maxResultContentChars]) + "..."
		}
		published := firstNonEmpty(r.PublishedDate, "Unknown date")
		parts = append(parts, fmt.Sprintf("Source #%d: %s\nPublished: %s\nURL: %s\nContent: %s",
			i+1, r.Title, published, r.URL, content))
	}
	return strings.Join(parts, "\n\n")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
