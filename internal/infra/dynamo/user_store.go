package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// UserStore implements app.UserStore. Each user gets its own USER#<id> partition.
type UserStore struct {
	s *Store
}

func (u *UserStore) Upsert(ctx context.Context, user domain.UserDetail) error {
	_, err := u.s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(u.s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":             &types.AttributeValueMemberS{Value: userPK(user.UserID)},
			"SK":             &types.AttributeValueMemberS{Value: skUserDetail},
			"userId":         &types.AttributeValueMemberS{Value: user.UserID},
			"conversationId": &types.AttributeValueMemberS{Value: user.ConversationID},
			"serviceUrl":     &types.AttributeValueMemberS{Value: user.ServiceURL},
			"installedAt":    timeValue(user.InstalledAt),
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb: Upsert user: %w", err)
	}
	return nil
}

func (u *UserStore) Get(ctx context.Context, userID string) (domain.UserDetail, error) {
	item, err := u.s.getItem(ctx, userPK(userID), skUserDetail)
	if err != nil {
		return domain.UserDetail{}, fmt.Errorf("dynamodb: Get user: %w", err)
	}
	if item == nil {
		return domain.UserDetail{}, domain.ErrUserNotFound
	}
	conversationID, err := strAttr(item, "conversationId")
	if err != nil {
		return domain.UserDetail{}, fmt.Errorf("dynamodb: Get user unmarshal: %w", err)
	}
	return domain.UserDetail{
		UserID:         userID,
		ConversationID: conversationID,
		ServiceURL:     optStrAttr(item, "serviceUrl"),
		InstalledAt:    timeAttr(item, "installedAt"),
	}, nil
}
