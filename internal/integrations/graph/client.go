package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// HTTPStatusError captures non-2xx Graph responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("graph: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type getByIDsRequest struct {
	IDs   []string `json:"ids"`
	Types []string `json:"types"`
}

type directoryObjects struct {
	Value []struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"value"`
}

type checkMemberGroupsRequest struct {
	GroupIDs []string `json:"groupIds"`
}

type stringList struct {
	Value []string `json:"value"`
}

// Client calls Microsoft Graph with the caller's delegated token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	return c
}

// ResolveDisplayNames maps user object ids to display names. Ids Graph does
// not know are left out of the result.
func (c *Client) ResolveDisplayNames(ctx context.Context, _ string, authToken string, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var out directoryObjects
	if err := c.post(ctx, authToken, "/directoryObjects/getByIds", getByIDsRequest{IDs: ids, Types: []string{"user"}}, &out); err != nil {
		return nil, fmt.Errorf("graph: resolve display names: %w", err)
	}
	for _, obj := range out.Value {
		names[obj.ID] = obj.DisplayName
	}
	return names, nil
}

// IsGroupMember reports whether userID is a transitive member of groupID.
func (c *Client) IsGroupMember(ctx context.Context, authToken, userID, groupID string) (bool, error) {
	if userID == "" || groupID == "" {
		return false, errors.New("graph: user id and group id are required")
	}
	var out stringList
	path := "/users/" + url.PathEscape(userID) + "/checkMemberGroups"
	if err := c.post(ctx, authToken, path, checkMemberGroupsRequest{GroupIDs: []string{groupID}}, &out); err != nil {
		return false, fmt.Errorf("graph: check member groups: %w", err)
	}
	for _, id := range out.Value {
		if strings.EqualFold(id, groupID) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) post(ctx context.Context, authToken, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+authToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
