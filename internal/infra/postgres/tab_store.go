package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// TabStore keeps leaderboard tab configurations in the tab_configurations table.
type TabStore struct {
	db *bun.DB
}

func NewTabStore(db *bun.DB) *TabStore {
	return &TabStore{db: db}
}

func (s *TabStore) Upsert(ctx context.Context, tab domain.TabConfiguration) error {
	row := tabRow{
		TeamID:    tab.TeamID,
		TabID:     tab.TabID,
		GroupID:   tab.GroupID,
		CreatedBy: tab.CreatedBy,
		CreatedAt: tab.CreatedAt.UTC(),
	}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (team_id, tab_id) DO UPDATE").
		Set("group_id = EXCLUDED.group_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert tab configuration: %w", err)
	}
	return nil
}

func (s *TabStore) Get(ctx context.Context, teamID, tabID string) (domain.TabConfiguration, error) {
	var row tabRow
	err := s.db.NewSelect().
		Model(&row).
		Where("team_id = ?", teamID).
		Where("tab_id = ?", tabID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TabConfiguration{}, domain.ErrTabNotFound
	}
	if err != nil {
		return domain.TabConfiguration{}, fmt.Errorf("get tab configuration: %w", err)
	}
	return domain.TabConfiguration{
		TeamID:    row.TeamID,
		TabID:     row.TabID,
		GroupID:   row.GroupID,
		CreatedBy: row.CreatedBy,
		CreatedAt: row.CreatedAt,
	}, nil
}
