package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// TabStore persists leaderboard tab configurations.
type TabStore interface {
	Upsert(ctx context.Context, tab domain.TabConfiguration) error
	Get(ctx context.Context, teamID, tabID string) (domain.TabConfiguration, error)
}

// TabService binds leaderboard tabs to a team and group.
type TabService struct {
	tabs  TabStore
	now   func() time.Time
	newID func() string
}

func NewTabService(tabs TabStore) *TabService {
	return &TabService{
		tabs:  tabs,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Configure creates a tab configuration with a fresh tab id.
func (s *TabService) Configure(ctx context.Context, teamID, groupID, createdBy string) (domain.TabConfiguration, error) {
	if teamID == "" {
		return domain.TabConfiguration{}, fmt.Errorf("tab requires a team: %w", domain.ErrInvalidInput)
	}
	if _, err := uuid.Parse(groupID); err != nil {
		return domain.TabConfiguration{}, fmt.Errorf("group id %q: %w", groupID, domain.ErrInvalidInput)
	}

	tab := domain.TabConfiguration{
		TeamID:    teamID,
		TabID:     s.newID(),
		GroupID:   groupID,
		CreatedBy: createdBy,
		CreatedAt: s.now().UTC(),
	}
	if err := s.tabs.Upsert(ctx, tab); err != nil {
		return domain.TabConfiguration{}, fmt.Errorf("store tab configuration: %w", err)
	}
	return tab, nil
}

// ResolveScope checks that the tab exists and is bound to groupID.
func (s *TabService) ResolveScope(ctx context.Context, teamID, tabID, groupID string) (domain.TabConfiguration, error) {
	tab, err := s.tabs.Get(ctx, teamID, tabID)
	if errors.Is(err, domain.ErrTabNotFound) {
		return domain.TabConfiguration{}, domain.ErrTabNotFound
	}
	if err != nil {
		return domain.TabConfiguration{}, fmt.Errorf("load tab configuration: %w", err)
	}
	if !strings.EqualFold(tab.GroupID, groupID) {
		return domain.TabConfiguration{}, domain.ErrScopeMismatch
	}
	return tab, nil
}
