package botconnector

import (
	"context"
	"fmt"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// teamLookup resolves the channel service URL of an installed team.
type teamLookup interface {
	Get(ctx context.Context, teamID string) (domain.TeamInstallation, error)
}

// Roster resolves team members through the connector.
type Roster struct {
	client *Client
	teams  teamLookup
}

func NewRoster(client *Client, teams teamLookup) *Roster {
	return &Roster{client: client, teams: teams}
}

func (r *Roster) ResolveMembers(ctx context.Context, teamID string) ([]domain.Member, error) {
	team, err := r.teams.Get(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("lookup team %s: %w", teamID, err)
	}
	accounts, err := r.client.TeamMembers(ctx, team.ServiceURL, teamID)
	if err != nil {
		return nil, err
	}
	members := make([]domain.Member, 0, len(accounts))
	for _, a := range accounts {
		members = append(members, domain.Member{
			ID:        a.AadObjectID,
			AccountID: a.ID,
			Name:      a.Name,
			TenantID:  a.TenantID,
		})
	}
	return members, nil
}

// Dispatcher delivers cards in a personal conversation with each member.
type Dispatcher struct {
	client   *Client
	teams    teamLookup
	tenantID string
}

func NewDispatcher(client *Client, teams teamLookup, tenantID string) *Dispatcher {
	return &Dispatcher{client: client, teams: teams, tenantID: tenantID}
}

func (d *Dispatcher) Deliver(ctx context.Context, teamID string, member domain.Member, card domain.Card) error {
	team, err := d.teams.Get(ctx, teamID)
	if err != nil {
		return fmt.Errorf("lookup team %s: %w", teamID, err)
	}
	tenantID := member.TenantID
	if tenantID == "" {
		tenantID = d.tenantID
	}

	conversationID, err := d.client.CreateConversation(ctx, team.ServiceURL, tenantID, ChannelAccount{ID: member.AccountID})
	if err != nil {
		return err
	}
	_, err = d.client.SendActivity(ctx, team.ServiceURL, conversationID, cardActivity(card))
	return err
}

// SendCard posts a card into an existing conversation.
func (c *Client) SendCard(ctx context.Context, serviceURL, conversationID string, card domain.Card) error {
	_, err := c.SendActivity(ctx, serviceURL, conversationID, cardActivity(card))
	return err
}

// UpdateCard replaces the card of an activity the bot sent earlier.
func (c *Client) UpdateCard(ctx context.Context, serviceURL, conversationID, activityID string, card domain.Card) error {
	return c.UpdateActivity(ctx, serviceURL, conversationID, activityID, cardActivity(card))
}

func cardActivity(card domain.Card) Activity {
	return Activity{
		Type:        "message",
		Attachments: []Attachment{{ContentType: card.ContentType, Content: card.Content}},
	}
}
