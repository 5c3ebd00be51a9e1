package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"
)

const (
	skPrefixResponse = "RESP#"
	skPrefixTab      = "TAB#"
	skUserDetail     = "DETAIL"
	// maxConcurrentPuts bounds the conditional writes a bulk insert runs at once.
	maxConcurrentPuts = 25
)

// dynamodbAPI is the minimal DynamoDB interface required by Store.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store keeps response rows, tab configurations and user details in one table.
// Items of a team share the partition key TEAM#<teamID>; the sort key tells them
// apart. A user detail lives alone under USER#<userID>.
type Store struct {
	api       dynamodbAPI
	tableName string
}

// New creates a Store for tableName.
func New(api dynamodbAPI, tableName string) (*Store, error) {
	if api == nil {
		return nil, errors.New("dynamodb: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("dynamodb: table name must not be empty")
	}
	return &Store{api: api, tableName: tableName}, nil
}

// Responses exposes the store as an app.ResponseStore.
func (s *Store) Responses() *ResponseStore { return &ResponseStore{s} }

// Tabs exposes the store as an app.TabStore.
func (s *Store) Tabs() *TabStore { return &TabStore{s} }

// Users exposes the store as an app.UserStore.
func (s *Store) Users() *UserStore { return &UserStore{s} }

func teamPK(teamID string) string {
	return "TEAM#" + teamID
}

func responseSK(responseID string) string {
	return skPrefixResponse + responseID
}

func tabSK(tabID string) string {
	return skPrefixTab + tabID
}

func userPK(userID string) string {
	return "USER#" + userID
}

func (s *Store) getItem(ctx context.Context, pk, sk string) (map[string]types.AttributeValue, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	return out.Item, nil
}

// createAll writes items that do not exist yet. Items whose key is already
// taken are skipped. It returns how many items were created.
func (s *Store) createAll(ctx context.Context, items []map[string]types.AttributeValue) (int, error) {
	var mu sync.Mutex
	created := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPuts)
	for _, item := range items {
		item := item
		g.Go(func() error {
			_, err := s.api.PutItem(gctx, &dynamodb.PutItemInput{
				TableName:           aws.String(s.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(SK)"),
			})
			var exists *types.ConditionalCheckFailedException
			if errors.As(err, &exists) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			created++
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return created, err
}

// queryPrefix pages through all items of a partition whose sort key starts with prefix.
func (s *Store) queryPrefix(ctx context.Context, pk, prefix string, filter *string, filterValues map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	values := map[string]types.AttributeValue{
		":pk":     &types.AttributeValueMemberS{Value: pk},
		":prefix": &types.AttributeValueMemberS{Value: prefix},
	}
	for k, v := range filterValues {
		values[k] = v
	}

	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.api.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			FilterExpression:          filter,
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, err
		}
		if out == nil {
			break
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return items, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("dynamodb: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("dynamodb: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func optStrAttr(item map[string]types.AttributeValue, key string) string {
	s, _ := strAttr(item, key)
	return s
}

func boolAttr(item map[string]types.AttributeValue, key string) bool {
	if v, ok := item[key].(*types.AttributeValueMemberBOOL); ok {
		return v.Value
	}
	return false
}

func timeAttr(item map[string]types.AttributeValue, key string) time.Time {
	v, ok := item[key].(*types.AttributeValueMemberN)
	if !ok {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(v.Value, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func timeValue(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMilli(), 10)}
}
