package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const resultCount = 20

// Settings configures the Bing Web Search endpoint.
type Settings struct {
	APIURL        string
	APIKey        string
	SafeSearch    string
	DefaultMarket string
}

// WebPage is one search result returned to the tab.
type WebPage struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Link              string `json:"link"`
	Snippet           string `json:"snippet"`
	DateLastCrawled   string `json:"dateLastCrawled,omitempty"`
	DateLastPublished string `json:"dateLastPublished,omitempty"`
	IsNavigational    bool   `json:"isNavigational"`
	IsFamilyFriendly  bool   `json:"isFamilyFriendly"`
	Language          string `json:"language,omitempty"`
}

type bingResponse struct {
	WebPages *struct {
		Value []struct {
			ID               string `json:"id"`
			Name             string `json:"name"`
			URL              string `json:"url"`
			Snippet          string `json:"snippet"`
			DateLastCrawled  string `json:"dateLastCrawled"`
			DatePublished    string `json:"datePublished"`
			IsNavigational   bool   `json:"isNavigational"`
			IsFamilyFriendly bool   `json:"isFamilyFriendly"`
			Language         string `json:"language"`
		} `json:"value"`
	} `json:"webPages"`
}

// HTTPStatusError captures non-2xx Bing responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("search: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client queries Bing Web Search.
type Client struct {
	settings   Settings
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(settings Settings, opts ...Option) (*Client, error) {
	if strings.TrimSpace(settings.APIURL) == "" {
		return nil, errors.New("search: api url must not be empty")
	}
	if settings.SafeSearch == "" {
		settings.SafeSearch = "Strict"
	}
	if settings.DefaultMarket == "" {
		settings.DefaultMarket = "en-US"
	}
	c := &Client{
		settings:   settings,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RequestURI builds the Bing query URL for a validated filter.
func (c *Client) RequestURI(f Filter) string {
	query := strings.TrimSpace(f.SearchText)
	if len(f.Domains) > 0 {
		query += " (site:" + strings.Join(f.Domains, " OR site:") + ")"
	}
	market := f.Market
	if f.noMarketFilter() {
		market = c.settings.DefaultMarket
	}

	return c.settings.APIURL +
		"?mkt=" + market +
		"&count=" + strconv.Itoa(resultCount) +
		"&freshness=" + f.Freshness +
		"&safeSearch=" + c.settings.SafeSearch +
		"&offset=0" +
		"&q=" + escapeData(query)
}

// Search validates f and returns the matching web pages; no results is an empty slice.
func (c *Client) Search(ctx context.Context, f Filter) ([]WebPage, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURI(f), nil)
	if err != nil {
		return nil, fmt.Errorf("search: create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.settings.APIKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, Body: string(buf)}
	}

	var payload bingResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 4<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	pages := make([]WebPage, 0)
	if payload.WebPages == nil {
		return pages, nil
	}
	for _, v := range payload.WebPages.Value {
		pages = append(pages, WebPage{
			ID:                v.ID,
			Title:             v.Name,
			Link:              v.URL,
			Snippet:           v.Snippet,
			DateLastCrawled:   v.DateLastCrawled,
			DateLastPublished: v.DatePublished,
			IsNavigational:    v.IsNavigational,
			IsFamilyFriendly:  v.IsFamilyFriendly,
			Language:          v.Language,
		})
	}
	return pages, nil
}

// escapeData percent-encodes s for a query value, spaces as %20.
func escapeData(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
