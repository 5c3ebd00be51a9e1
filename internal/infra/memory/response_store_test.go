package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

func TestResponseStoreOverwritesByKey(t *testing.T) {
	ctx := context.Background()
	store := NewResponseStore()
	sent := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	pending := domain.NewPendingResponse("team-1", "group-1", "q1", "u1", "s1", sent)
	require.NoError(t, store.BulkPut(ctx, []domain.ResponseRecord{pending}))
	require.NoError(t, store.Put(ctx, pending.Answered("a", false, sent.Add(time.Minute))))
	require.NoError(t, store.Put(ctx, pending.Answered("b", true, sent.Add(2*time.Minute))))

	require.Equal(t, 1, store.Len("team-1"))
	got, err := store.Get(ctx, "team-1", domain.ResponseID("q1", "u1"))
	require.NoError(t, err)
	require.Equal(t, "b", got.SelectedAnswer)
	require.True(t, got.IsCorrect)
}

func TestResponseStoreBulkPutKeepsExistingRows(t *testing.T) {
	ctx := context.Background()
	store := NewResponseStore()
	sent := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	pending := domain.NewPendingResponse("team-1", "group-1", "q1", "u1", "s1", sent)
	require.NoError(t, store.BulkPut(ctx, []domain.ResponseRecord{pending}))
	require.NoError(t, store.Put(ctx, pending.Answered("B", true, sent.Add(time.Minute))))

	require.NoError(t, store.BulkPut(ctx, []domain.ResponseRecord{
		pending,
		domain.NewPendingResponse("team-1", "group-1", "q1", "u2", "s1", sent),
	}))

	require.Equal(t, 2, store.Len("team-1"))
	got, err := store.Get(ctx, "team-1", domain.ResponseID("q1", "u1"))
	require.NoError(t, err)
	require.True(t, got.IsAttempted)
	require.Equal(t, "B", got.SelectedAnswer)
}

func TestResponseStoreQueryFiltersByGroupInInsertOrder(t *testing.T) {
	ctx := context.Background()
	store := NewResponseStore()
	now := time.Now()
	require.NoError(t, store.BulkPut(ctx, []domain.ResponseRecord{
		domain.NewPendingResponse("team-1", "group-1", "q1", "u2", "s", now),
		domain.NewPendingResponse("team-1", "group-2", "q1", "u3", "s", now),
		domain.NewPendingResponse("team-1", "group-1", "q1", "u1", "s", now),
		domain.NewPendingResponse("team-2", "group-1", "q1", "u4", "s", now),
	}))

	rows, err := store.Query(ctx, "team-1", "group-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "u2", rows[0].RecipientID)
	require.Equal(t, "u1", rows[1].RecipientID)

	empty, err := store.Query(ctx, "team-9", "group-1")
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)
}

func TestResponseStoreMissAndHasQuestion(t *testing.T) {
	ctx := context.Background()
	store := NewResponseStore()

	_, err := store.Get(ctx, "team-1", "q1_u1")
	require.True(t, errors.Is(err, domain.ErrResponseNotFound))

	require.NoError(t, store.Put(ctx, domain.NewPendingResponse("team-1", "g", "q1", "u1", "s", time.Now())))
	sent, err := store.HasQuestion(ctx, "team-1", "q1")
	require.NoError(t, err)
	require.True(t, sent)
	sent, err = store.HasQuestion(ctx, "team-1", "q2")
	require.NoError(t, err)
	require.False(t, sent)
}

func TestTeamAndTabStores(t *testing.T) {
	ctx := context.Background()
	teams := NewTeamStore()
	require.NoError(t, teams.Upsert(ctx, domain.TeamInstallation{TeamID: "team-1", ServiceURL: "https://smba.example/"}))
	got, err := teams.Get(ctx, "team-1")
	require.NoError(t, err)
	require.Equal(t, "https://smba.example/", got.ServiceURL)
	require.NoError(t, teams.Delete(ctx, "team-1"))
	_, err = teams.Get(ctx, "team-1")
	require.ErrorIs(t, err, domain.ErrTeamNotFound)

	tabs := NewTabStore()
	_, err = tabs.Get(ctx, "team-1", "tab-1")
	require.ErrorIs(t, err, domain.ErrTabNotFound)
	require.NoError(t, tabs.Upsert(ctx, domain.TabConfiguration{TeamID: "team-1", TabID: "tab-1", GroupID: "g"}))
	tab, err := tabs.Get(ctx, "team-1", "tab-1")
	require.NoError(t, err)
	require.Equal(t, "g", tab.GroupID)
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore()
	_, err := users.Get(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	require.NoError(t, users.Upsert(ctx, domain.UserDetail{UserID: "u1", ConversationID: "a:1", ServiceURL: "https://smba.example/"}))
	require.NoError(t, users.Upsert(ctx, domain.UserDetail{UserID: "u1", ConversationID: "a:2", ServiceURL: "https://smba.example/"}))
	got, err := users.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "a:2", got.ConversationID)
}
