package botconnector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultTokenURL = "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"
	botScope        = "https://api.botframework.com/.default"
	// refreshBefore renews the token ahead of its expiry.
	refreshBefore = 5 * time.Minute
)

// TokenSource issues bearer tokens for the Bot Connector API via the OAuth
// client credentials grant and caches them until shortly before expiry.
type TokenSource struct {
	tokenURL string
	source   oauth2.TokenSource
}

// fetcher retrieves a fresh token on every call; caching is left to the
// reuse source wrapping it.
type fetcher struct {
	ctx context.Context
	cfg *clientcredentials.Config
}

func (f fetcher) Token() (*oauth2.Token, error) {
	return f.cfg.Token(f.ctx)
}

// NewTokenSource returns a TokenSource; an empty tokenURL uses the Bot Framework login endpoint.
func NewTokenSource(appID, password, tokenURL string, httpClient *http.Client) (*TokenSource, error) {
	if strings.TrimSpace(appID) == "" || password == "" {
		return nil, errors.New("botconnector: app id and password are required")
	}
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cfg := &clientcredentials.Config{
		ClientID:     appID,
		ClientSecret: password,
		TokenURL:     tokenURL,
		Scopes:       []string{botScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	return &TokenSource{
		tokenURL: tokenURL,
		source:   oauth2.ReuseTokenSourceWithExpiry(nil, fetcher{ctx: ctx, cfg: cfg}, refreshBefore),
	}, nil
}

// Token returns a cached token or fetches a new one.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, err := s.source.Token()
	if err != nil {
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) && retrieve.Response != nil {
			return "", &HTTPStatusError{
				StatusCode: retrieve.Response.StatusCode,
				URL:        s.tokenURL,
				Body:       string(retrieve.Body),
			}
		}
		return "", fmt.Errorf("botconnector: token request: %w", err)
	}
	return tok.AccessToken, nil
}
