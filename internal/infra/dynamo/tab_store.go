package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// TabStore implements app.TabStore on top of Store.
type TabStore struct {
	s *Store
}

func (t *TabStore) Upsert(ctx context.Context, tab domain.TabConfiguration) error {
	_, err := t.s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: teamPK(tab.TeamID)},
			"SK":        &types.AttributeValueMemberS{Value: tabSK(tab.TabID)},
			"teamId":    &types.AttributeValueMemberS{Value: tab.TeamID},
			"tabId":     &types.AttributeValueMemberS{Value: tab.TabID},
			"groupId":   &types.AttributeValueMemberS{Value: tab.GroupID},
			"createdBy": &types.AttributeValueMemberS{Value: tab.CreatedBy},
			"createdAt": timeValue(tab.CreatedAt),
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb: Upsert tab: %w", err)
	}
	return nil
}

func (t *TabStore) Get(ctx context.Context, teamID, tabID string) (domain.TabConfiguration, error) {
	item, err := t.s.getItem(ctx, teamPK(teamID), tabSK(tabID))
	if err != nil {
		return domain.TabConfiguration{}, fmt.Errorf("dynamodb: Get tab: %w", err)
	}
	if item == nil {
		return domain.TabConfiguration{}, domain.ErrTabNotFound
	}
	groupID, err := strAttr(item, "groupId")
	if err != nil {
		return domain.TabConfiguration{}, fmt.Errorf("dynamodb: Get tab unmarshal: %w", err)
	}
	return domain.TabConfiguration{
		TeamID:    teamID,
		TabID:     tabID,
		GroupID:   groupID,
		CreatedBy: optStrAttr(item, "createdBy"),
		CreatedAt: timeAttr(item, "createdAt"),
	}, nil
}
