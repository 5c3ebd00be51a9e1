package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vsals/searchcoachdeploy/internal/domain"
	"github.com/vsals/searchcoachdeploy/internal/search"
)

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func TestLeaderboardRequiresToken(t *testing.T) {
	f := newFixture(t, fixtureOptions{members: stubMembers{member: true}})

	res := f.do(t, http.MethodGet, "/api/leaderboard/team-1/tab-1?groupId="+groupID, "", "")
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = f.do(t, http.MethodGet, "/api/leaderboard/team-1/tab-1?groupId="+groupID, "not-a-jwt", "")
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestLeaderboardRejectsNonMembers(t *testing.T) {
	f := newFixture(t, fixtureOptions{members: stubMembers{member: false}})
	token := signToken(t, "caller")

	res := f.do(t, http.MethodGet, "/api/leaderboard/team-1/tab-1?groupId="+groupID, token, "")
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	res = f.do(t, http.MethodGet, "/api/leaderboard/team-1/tab-1?groupId=not-a-uuid", token, "")
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestLeaderboardScopeChecks(t *testing.T) {
	f := newFixture(t, fixtureOptions{members: stubMembers{member: true}})
	token := signToken(t, "caller")
	ctx := context.Background()

	res := f.do(t, http.MethodGet, "/api/leaderboard/team-1/missing-tab?groupId="+groupID, token, "")
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.NotEmpty(t, decode[errorBody](t, res).Error)

	otherGroup := "0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
	tab, err := f.tabs.Configure(ctx, "team-1", otherGroup, "owner")
	require.NoError(t, err)

	res = f.do(t, http.MethodGet, "/api/leaderboard/team-1/"+tab.TabID+"?groupId="+groupID, token, "")
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestLeaderboardReturnsRows(t *testing.T) {
	f := newFixture(t, fixtureOptions{members: stubMembers{member: true}})
	token := signToken(t, "caller")
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	tab, err := f.tabs.Configure(ctx, "team-1", groupID, "owner")
	require.NoError(t, err)

	res := f.do(t, http.MethodGet, "/api/leaderboard/team-1/"+tab.TabID+"?groupId="+groupID, token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Empty(t, decode[[]domain.LeaderboardRow](t, res))

	require.NoError(t, f.responses.BulkPut(ctx, []domain.ResponseRecord{
		domain.NewPendingResponse("team-1", groupID, "q1", "alice", "owner", now).Answered("site:", true, now),
		domain.NewPendingResponse("team-1", groupID, "q1", "bob", "owner", now).Answered("inurl:", false, now),
		domain.NewPendingResponse("team-1", groupID, "q1", "carol", "owner", now),
	}))

	res = f.do(t, http.MethodGet, "/api/leaderboard/team-1/"+tab.TabID+"?groupId="+strings.ToUpper(groupID), token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, []domain.LeaderboardRow{
		{UserID: "alice", UserName: "ALICE", RightAnswers: 1, QuestionsAttempted: 1},
		{UserID: "bob", UserName: "BOB", RightAnswers: 0, QuestionsAttempted: 1},
		{UserID: "carol", UserName: "CAROL", RightAnswers: 0, QuestionsAttempted: 0},
	}, decode[[]domain.LeaderboardRow](t, res))
}

func TestConfigureTab(t *testing.T) {
	f := newFixture(t, fixtureOptions{members: stubMembers{member: true}})
	token := signToken(t, "owner")

	res := f.do(t, http.MethodPost, "/api/tabconfiguration/team-1?groupId="+groupID, token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)

	tab := decode[domain.TabConfiguration](t, res)
	require.Equal(t, "team-1", tab.TeamID)
	require.Equal(t, groupID, tab.GroupID)
	require.Equal(t, "owner", tab.CreatedBy)
	require.NotEmpty(t, tab.TabID)

	_, err := f.tabs.ResolveScope(context.Background(), "team-1", tab.TabID, groupID)
	require.NoError(t, err)
}

func TestSearchEndpoint(t *testing.T) {
	pages := []search.WebPage{{ID: "1", Title: "Apollo", Link: "https://nasa.gov"}}
	f := newFixture(t, fixtureOptions{searcher: stubSearcher{pages: pages}})
	token := signToken(t, "caller")

	res := f.do(t, http.MethodPost, "/api/search", token, `{"searchText":"apollo","market":"en-US","domains":[".gov"]}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, pages, decode[[]search.WebPage](t, res))

	res = f.do(t, http.MethodPost, "/api/search", token, `{"searchText":"apollo","market":"xx-XX"}`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = f.do(t, http.MethodPost, "/api/search", token, `{"searchText":"","market":"en-US"}`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = f.do(t, http.MethodPost, "/api/search", token, `not json`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestSearchWithoutResults(t *testing.T) {
	f := newFixture(t, fixtureOptions{searcher: stubSearcher{}})
	res := f.do(t, http.MethodPost, "/api/search", signToken(t, "caller"), `{"searchText":"nothing","market":"nf"}`)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	res := f.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
}
