package botconnector

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

// HTTPStatusError captures non-2xx Bot Connector responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("botconnector: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Tokens supplies bearer tokens for outgoing calls.
type Tokens interface {
	Token(ctx context.Context) (string, error)
}

// ChannelAccount is a member as returned by the connector.
type ChannelAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	AadObjectID string `json:"aadObjectId,omitempty"`
	TenantID    string `json:"tenantId,omitempty"`
}

// Attachment is a card attached to an activity.
type Attachment struct {
	ContentType string          `json:"contentType"`
	Content     json.RawMessage `json:"content"`
}

// Activity is the subset of a Bot Framework activity the service sends.
type Activity struct {
	Type             string       `json:"type"`
	ID               string       `json:"id,omitempty"`
	Text             string       `json:"text,omitempty"`
	Summary          string       `json:"summary,omitempty"`
	AttachmentLayout string       `json:"attachmentLayout,omitempty"`
	Attachments      []Attachment `json:"attachments,omitempty"`
}

type conversationParameters struct {
	IsGroup     bool             `json:"isGroup"`
	Bot         ChannelAccount   `json:"bot"`
	Members     []ChannelAccount `json:"members"`
	TenantID    string           `json:"tenantId,omitempty"`
	ChannelData json.RawMessage  `json:"channelData,omitempty"`
}

type resourceResponse struct {
	ID string `json:"id"`
}

type pagedMembers struct {
	ContinuationToken string           `json:"continuationToken"`
	Members           []ChannelAccount `json:"members"`
}

// Client calls the Bot Connector REST API of a channel service URL.
type Client struct {
	botID      string
	tokens     Tokens
	httpClient *http.Client
	pageSize   int
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

func NewClient(botID string, tokens Tokens, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("botconnector: token source must not be nil")
	}
	c := &Client{
		botID:      botID,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		pageSize:   500,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TeamMembers pages through the roster of a team.
func (c *Client) TeamMembers(ctx context.Context, serviceURL, teamID string) ([]ChannelAccount, error) {
	var members []ChannelAccount
	token := ""
	for {
		q := url.Values{}
		q.Set("pageSize", fmt.Sprint(c.pageSize))
		if token != "" {
			q.Set("continuationToken", token)
		}
		endpoint := conversationsURL(serviceURL, teamID, "pagedmembers") + "?" + q.Encode()

		var page pagedMembers
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, fmt.Errorf("botconnector: team members: %w", err)
		}
		members = append(members, page.Members...)
		if page.ContinuationToken == "" {
			return members, nil
		}
		token = page.ContinuationToken
	}
}

// CreateConversation opens a one-to-one conversation with member and returns its id.
func (c *Client) CreateConversation(ctx context.Context, serviceURL, tenantID string, member ChannelAccount) (string, error) {
	params := conversationParameters{
		Bot:      ChannelAccount{ID: c.botID},
		Members:  []ChannelAccount{{ID: member.ID}},
		TenantID: tenantID,
	}
	if tenantID != "" {
		params.ChannelData = json.RawMessage(fmt.Sprintf(`{"tenant":{"id":%q}}`, tenantID))
	}

	var out resourceResponse
	if err := c.do(ctx, http.MethodPost, strings.TrimRight(serviceURL, "/")+"/v3/conversations", params, &out); err != nil {
		return "", fmt.Errorf("botconnector: create conversation: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("botconnector: create conversation returned no id")
	}
	return out.ID, nil
}

// SendActivity posts activity to a conversation and returns the new activity id.
func (c *Client) SendActivity(ctx context.Context, serviceURL, conversationID string, activity Activity) (string, error) {
	var out resourceResponse
	if err := c.do(ctx, http.MethodPost, conversationsURL(serviceURL, conversationID, "activities"), activity, &out); err != nil {
		return "", fmt.Errorf("botconnector: send activity: %w", err)
	}
	return out.ID, nil
}

// UpdateActivity replaces a previously sent activity.
func (c *Client) UpdateActivity(ctx context.Context, serviceURL, conversationID, activityID string, activity Activity) error {
	activity.ID = activityID
	endpoint := conversationsURL(serviceURL, conversationID, "activities") + "/" + url.PathEscape(activityID)
	if err := c.do(ctx, http.MethodPut, endpoint, activity, nil); err != nil {
		return fmt.Errorf("botconnector: update activity: %w", err)
	}
	return nil
}

func conversationsURL(serviceURL, conversationID, suffix string) string {
	return strings.TrimRight(serviceURL, "/") + "/v3/conversations/" + url.PathEscape(conversationID) + "/" + suffix
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}
	if out == nil {
		return nil
	}
	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		return nil
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
