package dynamo

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// ResponseStore implements app.ResponseStore on top of Store.
type ResponseStore struct {
	s *Store
}

func (r *ResponseStore) Get(ctx context.Context, teamID, responseID string) (domain.ResponseRecord, error) {
	item, err := r.s.getItem(ctx, teamPK(teamID), responseSK(responseID))
	if err != nil {
		return domain.ResponseRecord{}, fmt.Errorf("dynamodb: Get response: %w", err)
	}
	if item == nil {
		return domain.ResponseRecord{}, domain.ErrResponseNotFound
	}
	rec, err := itemToResponse(item)
	if err != nil {
		return domain.ResponseRecord{}, fmt.Errorf("dynamodb: Get response unmarshal: %w", err)
	}
	return rec, nil
}

func (r *ResponseStore) Put(ctx context.Context, record domain.ResponseRecord) error {
	_, err := r.s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.s.tableName),
		Item:      responseItem(record),
	})
	if err != nil {
		return fmt.Errorf("dynamodb: Put response: %w", err)
	}
	return nil
}

// BulkPut creates the rows that do not exist yet; answered rows are never
// reset to pending.
func (r *ResponseStore) BulkPut(ctx context.Context, records []domain.ResponseRecord) error {
	items := make([]map[string]types.AttributeValue, 0, len(records))
	for _, rec := range records {
		items = append(items, responseItem(rec))
	}
	if _, err := r.s.createAll(ctx, items); err != nil {
		return fmt.Errorf("dynamodb: BulkPut responses: %w", err)
	}
	return nil
}

func (r *ResponseStore) Query(ctx context.Context, teamID, groupID string) ([]domain.ResponseRecord, error) {
	var filter *string
	var values map[string]types.AttributeValue
	if groupID != "" {
		filter = aws.String("groupIdLower = :group")
		values = map[string]types.AttributeValue{
			":group": &types.AttributeValueMemberS{Value: strings.ToLower(groupID)},
		}
	}
	items, err := r.s.queryPrefix(ctx, teamPK(teamID), skPrefixResponse, filter, values)
	if err != nil {
		return nil, fmt.Errorf("dynamodb: Query responses: %w", err)
	}

	out := make([]domain.ResponseRecord, 0, len(items))
	for _, item := range items {
		rec, err := itemToResponse(item)
		if err != nil {
			return nil, fmt.Errorf("dynamodb: Query responses unmarshal: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// HasQuestion looks for any response row of the question. Response ids start
// with the question id, so the key condition narrows the read and the filter
// drops ids that merely share the prefix.
func (r *ResponseStore) HasQuestion(ctx context.Context, teamID, questionID string) (bool, error) {
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.s.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.s.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			FilterExpression:       aws.String("questionId = :question"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":       &types.AttributeValueMemberS{Value: teamPK(teamID)},
				":prefix":   &types.AttributeValueMemberS{Value: responseSK(domain.ResponseID(questionID, ""))},
				":question": &types.AttributeValueMemberS{Value: questionID},
			},
			ProjectionExpression: aws.String("SK"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return false, fmt.Errorf("dynamodb: HasQuestion: %w", err)
		}
		if out == nil {
			return false, nil
		}
		if len(out.Items) > 0 {
			return true, nil
		}
		if len(out.LastEvaluatedKey) == 0 {
			return false, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func responseItem(r domain.ResponseRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: teamPK(r.TeamID)},
		"SK":             &types.AttributeValueMemberS{Value: responseSK(r.ResponseID)},
		"teamId":         &types.AttributeValueMemberS{Value: r.TeamID},
		"responseId":     &types.AttributeValueMemberS{Value: r.ResponseID},
		"questionId":     &types.AttributeValueMemberS{Value: r.QuestionID},
		"recipientId":    &types.AttributeValueMemberS{Value: r.RecipientID},
		"senderId":       &types.AttributeValueMemberS{Value: r.SenderID},
		"selectedAnswer": &types.AttributeValueMemberS{Value: r.SelectedAnswer},
		"isAttempted":    &types.AttributeValueMemberBOOL{Value: r.IsAttempted},
		"isCorrect":      &types.AttributeValueMemberBOOL{Value: r.IsCorrect},
		"sentAt":         timeValue(r.SentAt),
		"respondedAt":    timeValue(r.RespondedAt),
		"groupId":        &types.AttributeValueMemberS{Value: r.GroupID},
		"groupIdLower":   &types.AttributeValueMemberS{Value: strings.ToLower(r.GroupID)},
	}
}

func itemToResponse(item map[string]types.AttributeValue) (domain.ResponseRecord, error) {
	teamID, err := strAttr(item, "teamId")
	if err != nil {
		return domain.ResponseRecord{}, err
	}
	responseID, err := strAttr(item, "responseId")
	if err != nil {
		return domain.ResponseRecord{}, err
	}
	return domain.ResponseRecord{
		TeamID:         teamID,
		ResponseID:     responseID,
		QuestionID:     optStrAttr(item, "questionId"),
		RecipientID:    optStrAttr(item, "recipientId"),
		SenderID:       optStrAttr(item, "senderId"),
		SelectedAnswer: optStrAttr(item, "selectedAnswer"),
		IsAttempted:    boolAttr(item, "isAttempted"),
		IsCorrect:      boolAttr(item, "isCorrect"),
		SentAt:         timeAttr(item, "sentAt"),
		RespondedAt:    timeAttr(item, "respondedAt"),
		GroupID:        optStrAttr(item, "groupId"),
	}, nil
}
