package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

type fakeDynamo struct {
	mu        sync.Mutex
	getOut    *dynamodb.GetItemOutput
	getErr    error
	putErr    error
	queryOuts []*dynamodb.QueryOutput
	queryErr  error
	// taken lists sort keys that fail conditional puts.
	taken map[string]bool

	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
	putInputs    []*dynamodb.PutItemInput
	queryInputs  []*dynamodb.QueryInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPutInput = in
	f.putInputs = append(f.putInputs, in)
	if f.putErr != nil {
		return nil, f.putErr
	}
	sk := in.Item["SK"].(*types.AttributeValueMemberS).Value
	if in.ConditionExpression != nil && f.taken[sk] {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional request failed")}
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInputs = append(f.queryInputs, in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	i := len(f.queryInputs) - 1
	if i < len(f.queryOuts) {
		return f.queryOuts[i], nil
	}
	return &dynamodb.QueryOutput{}, nil
}

func mustNewStore(t *testing.T, db *fakeDynamo) *Store {
	t.Helper()
	s, err := New(db, "test-table")
	require.NoError(t, err)
	return s
}

func sampleRecord(recipient string) domain.ResponseRecord {
	sent := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return domain.NewPendingResponse("team-1", "Group-1", "q1", recipient, "sender", sent)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "t")
	require.Error(t, err)
	_, err = New(&fakeDynamo{}, "  ")
	require.Error(t, err)
}

func TestResponsePutAndGetRoundTrip(t *testing.T) {
	db := &fakeDynamo{}
	store := mustNewStore(t, db).Responses()
	rec := sampleRecord("u1").Answered("B", true, time.Date(2024, 5, 1, 8, 5, 0, 0, time.UTC))

	require.NoError(t, store.Put(context.Background(), rec))
	item := db.lastPutInput.Item
	require.Equal(t, "TEAM#team-1", item["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "RESP#q1_u1", item["SK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "group-1", item["groupIdLower"].(*types.AttributeValueMemberS).Value)

	db.getOut = &dynamodb.GetItemOutput{Item: item}
	got, err := store.Get(context.Background(), "team-1", "q1_u1")
	require.NoError(t, err)
	require.Equal(t, rec, got)
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestResponseGetMiss(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	_, err := mustNewStore(t, db).Responses().Get(context.Background(), "team-1", "q1_u1")
	require.ErrorIs(t, err, domain.ErrResponseNotFound)
}

func TestBulkPutCreatesOnlyMissingRows(t *testing.T) {
	db := &fakeDynamo{taken: map[string]bool{"RESP#q1_u01": true}}
	store := mustNewStore(t, db).Responses()
	records := make([]domain.ResponseRecord, 0, 60)
	for i := 0; i < 60; i++ {
		records = append(records, sampleRecord(fmt.Sprintf("u%02d", i)))
	}

	require.NoError(t, store.BulkPut(context.Background(), records))
	require.Len(t, db.putInputs, 60)
	for _, in := range db.putInputs {
		require.Equal(t, "attribute_not_exists(SK)", *in.ConditionExpression)
	}
}

func TestBulkPutSurfacesWriteErrors(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("validation")}
	err := mustNewStore(t, db).Responses().BulkPut(context.Background(), []domain.ResponseRecord{sampleRecord("u1")})
	require.Error(t, err)
}

func TestAnswerPutIsUnconditional(t *testing.T) {
	db := &fakeDynamo{taken: map[string]bool{"RESP#q1_u1": true}}
	rec := sampleRecord("u1").Answered("B", true, time.Now())
	require.NoError(t, mustNewStore(t, db).Responses().Put(context.Background(), rec))
	require.Nil(t, db.lastPutInput.ConditionExpression)
}

func TestQueryPaginatesAndFiltersByGroup(t *testing.T) {
	page1 := &dynamodb.QueryOutput{
		Items:            []map[string]types.AttributeValue{responseItem(sampleRecord("u1"))},
		LastEvaluatedKey: map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "TEAM#team-1"}},
	}
	page2 := &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{responseItem(sampleRecord("u2"))},
	}
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{page1, page2}}

	rows, err := mustNewStore(t, db).Responses().Query(context.Background(), "team-1", "GROUP-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "u2", rows[1].RecipientID)

	require.Len(t, db.queryInputs, 2)
	first := db.queryInputs[0]
	require.Equal(t, "groupIdLower = :group", *first.FilterExpression)
	require.Equal(t, "group-1", first.ExpressionAttributeValues[":group"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "RESP#", first.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS).Value)
	require.NotNil(t, db.queryInputs[1].ExclusiveStartKey)
}

func TestHasQuestionMatchesQuestionIDExactly(t *testing.T) {
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{
		{LastEvaluatedKey: map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "TEAM#team-1"}}},
		{},
	}}
	sent, err := mustNewStore(t, db).Responses().HasQuestion(context.Background(), "team-1", "q")
	require.NoError(t, err)
	require.False(t, sent)

	require.Len(t, db.queryInputs, 2)
	first := db.queryInputs[0]
	require.Equal(t, "RESP#q_", first.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "questionId = :question", *first.FilterExpression)
	require.Equal(t, "q", first.ExpressionAttributeValues[":question"].(*types.AttributeValueMemberS).Value)
	require.Nil(t, first.Limit)
	require.NotNil(t, db.queryInputs[1].ExclusiveStartKey)
}

func TestHasQuestionStopsAtFirstMatch(t *testing.T) {
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{
		Items:            []map[string]types.AttributeValue{responseItem(sampleRecord("u1"))},
		LastEvaluatedKey: map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "TEAM#team-1"}},
	}}}
	sent, err := mustNewStore(t, db).Responses().HasQuestion(context.Background(), "team-1", "q1")
	require.NoError(t, err)
	require.True(t, sent)
	require.Len(t, db.queryInputs, 1)
}

func TestTabUpsertAndGet(t *testing.T) {
	db := &fakeDynamo{}
	tabs := mustNewStore(t, db).Tabs()
	tab := domain.TabConfiguration{
		TeamID:    "team-1",
		TabID:     "tab-1",
		GroupID:   "group-1",
		CreatedBy: "creator",
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, tabs.Upsert(context.Background(), tab))
	require.Equal(t, "TAB#tab-1", db.lastPutInput.Item["SK"].(*types.AttributeValueMemberS).Value)

	db.getOut = &dynamodb.GetItemOutput{Item: db.lastPutInput.Item}
	got, err := tabs.Get(context.Background(), "team-1", "tab-1")
	require.NoError(t, err)
	require.Equal(t, tab, got)

	db.getOut = &dynamodb.GetItemOutput{}
	_, err = tabs.Get(context.Background(), "team-1", "tab-2")
	require.ErrorIs(t, err, domain.ErrTabNotFound)
}

func TestUserUpsertAndGet(t *testing.T) {
	db := &fakeDynamo{}
	users := mustNewStore(t, db).Users()
	user := domain.UserDetail{
		UserID:         "aad-1",
		ConversationID: "a:personal-1",
		ServiceURL:     "https://smba.example",
		InstalledAt:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, users.Upsert(context.Background(), user))
	item := db.lastPutInput.Item
	require.Equal(t, "USER#aad-1", item["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "DETAIL", item["SK"].(*types.AttributeValueMemberS).Value)

	db.getOut = &dynamodb.GetItemOutput{Item: item}
	got, err := users.Get(context.Background(), "aad-1")
	require.NoError(t, err)
	require.Equal(t, user, got)

	db.getOut = &dynamodb.GetItemOutput{}
	_, err = users.Get(context.Background(), "aad-2")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}
