package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vsals/searchcoachdeploy/internal/app"
	"github.com/vsals/searchcoachdeploy/internal/domain"
	"github.com/vsals/searchcoachdeploy/internal/infra/memory"
	"github.com/vsals/searchcoachdeploy/internal/search"
)

const (
	signingKey = "test-signing-key"
	groupID    = "6f2b5a0c-3d1e-4c8b-9f7a-2e1d0c9b8a76"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func signToken(t *testing.T, oid string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"oid": oid,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(signingKey))
	require.NoError(t, err)
	return signed
}

type stubMembers struct {
	member bool
	err    error
}

func (s stubMembers) IsGroupMember(context.Context, string, string, string) (bool, error) {
	return s.member, s.err
}

type stubDirectory struct{}

func (stubDirectory) ResolveDisplayNames(_ context.Context, _, _ string, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		names[id] = strings.ToUpper(id)
	}
	return names, nil
}

type stubSearcher struct {
	pages []search.WebPage
}

func (s stubSearcher) Search(_ context.Context, f search.Filter) ([]search.WebPage, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.pages, nil
}

type stubBroadcaster struct {
	mu       sync.Mutex
	requests []app.BroadcastRequest
	err      error
}

func (b *stubBroadcaster) EnqueueBroadcast(_ context.Context, _ app.Executor, req app.BroadcastRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	return b.err
}

type cardUpdate struct {
	serviceURL     string
	conversationID string
	activityID     string
	card           domain.Card
}

type recordingCards struct {
	mu      sync.Mutex
	sent    []cardUpdate
	updates []cardUpdate
	sendErr error
}

func (c *recordingCards) SendCard(_ context.Context, serviceURL, conversationID string, card domain.Card) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, cardUpdate{serviceURL: serviceURL, conversationID: conversationID, card: card})
	return c.sendErr
}

func (c *recordingCards) UpdateCard(_ context.Context, serviceURL, conversationID, activityID string, card domain.Card) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, cardUpdate{serviceURL, conversationID, activityID, card})
	return nil
}

type inlineExecutor struct{}

func (inlineExecutor) Submit(ctx context.Context, task func(context.Context)) error {
	task(ctx)
	return nil
}

func sampleQuestions() []domain.QuestionDefinition {
	return []domain.QuestionDefinition{
		{ID: "q1", Question: "Which operator limits results to one domain?", Option1: "site:", Option2: "inurl:", Option3: "filetype:", Option4: "link:", CorrectOption: "site:"},
		{ID: "q2", Question: "Which engine powers the search tab?", Option1: "Bing", Option2: "Other", CorrectOption: "Bing"},
	}
}

type fixture struct {
	server      *httptest.Server
	responses   *memory.ResponseStore
	teams       *memory.TeamStore
	users       *memory.UserStore
	tabs        *app.TabService
	feed        *app.Feed
	broadcaster *stubBroadcaster
	cards       *recordingCards
}

type fixtureOptions struct {
	members  stubMembers
	searcher stubSearcher
	sendErr  error
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	logger := quietLogger()

	responses := memory.NewResponseStore()
	teams := memory.NewTeamStore()
	users := memory.NewUserStore()
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(sampleQuestions()), time.Minute)
	tabs := app.NewTabService(memory.NewTabStore())
	feed := app.NewFeed()
	answers := app.NewAnswerService(responses, questions, feed, logger)
	leaderboards := app.NewLeaderboardService(responses, stubDirectory{}, logger)
	broadcaster := &stubBroadcaster{}
	sender := &recordingCards{sendErr: opts.sendErr}

	auth, err := NewAuthenticator(signingKey, "", logger)
	require.NoError(t, err)

	handler := NewRouter(RouterConfig{
		Bot: NewBotHandler(BotDeps{
			Teams:       teams,
			Users:       users,
			Questions:   questions,
			Broadcaster: broadcaster,
			Executor:    inlineExecutor{},
			Answers:     answers,
			Cards:       sender,
			ManifestID:  "manifest-1",
			Logger:      logger,
		}),
		API:     NewAPIHandler(leaderboards, tabs, opts.searcher, logger),
		WS:      NewWSHandler(feed, tabs, logger),
		Auth:    auth,
		Members: opts.members,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &fixture{
		server:      server,
		responses:   responses,
		teams:       teams,
		users:       users,
		tabs:        tabs,
		feed:        feed,
		broadcaster: broadcaster,
		cards:       sender,
	}
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}
