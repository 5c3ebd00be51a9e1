package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// UserStore keeps personal installations in the user_details table.
type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Upsert(ctx context.Context, user domain.UserDetail) error {
	row := userRow{
		UserID:         user.UserID,
		ConversationID: user.ConversationID,
		ServiceURL:     user.ServiceURL,
		InstalledAt:    user.InstalledAt.UTC(),
	}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (user_id) DO UPDATE").
		Set("conversation_id = EXCLUDED.conversation_id").
		Set("service_url = EXCLUDED.service_url").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert user detail: %w", err)
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, userID string) (domain.UserDetail, error) {
	var row userRow
	err := s.db.NewSelect().
		Model(&row).
		Where("user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserDetail{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.UserDetail{}, fmt.Errorf("get user detail: %w", err)
	}
	return domain.UserDetail{
		UserID:         row.UserID,
		ConversationID: row.ConversationID,
		ServiceURL:     row.ServiceURL,
		InstalledAt:    row.InstalledAt,
	}, nil
}
