package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/vsals/searchcoachdeploy/internal/batch"
	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// insertBatchSize caps the rows sent in one INSERT statement.
const insertBatchSize = 100

// ResponseStore keeps response rows in the user_responses table.
type ResponseStore struct {
	db *bun.DB
}

func NewResponseStore(db *bun.DB) *ResponseStore {
	return &ResponseStore{db: db}
}

func (s *ResponseStore) Get(ctx context.Context, teamID, responseID string) (domain.ResponseRecord, error) {
	var row responseRow
	err := s.db.NewSelect().
		Model(&row).
		Where("team_id = ?", teamID).
		Where("response_id = ?", responseID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ResponseRecord{}, domain.ErrResponseNotFound
	}
	if err != nil {
		return domain.ResponseRecord{}, fmt.Errorf("get response: %w", err)
	}
	return row.record(), nil
}

// Put writes record, replacing the stored row with the same key.
func (s *ResponseStore) Put(ctx context.Context, record domain.ResponseRecord) error {
	row := toResponseRow(record)
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (team_id, response_id) DO UPDATE").
		Set("question_id = EXCLUDED.question_id").
		Set("recipient_id = EXCLUDED.recipient_id").
		Set("sender_id = EXCLUDED.sender_id").
		Set("selected_answer = EXCLUDED.selected_answer").
		Set("is_attempted = EXCLUDED.is_attempted").
		Set("is_correct = EXCLUDED.is_correct").
		Set("sent_at = EXCLUDED.sent_at").
		Set("responded_at = EXCLUDED.responded_at").
		Set("group_id = EXCLUDED.group_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert response: %w", err)
	}
	return nil
}

// BulkPut inserts records in statements of at most 100 rows; rows that
// already exist are left untouched. Chunks written before a failure stay
// written.
func (s *ResponseStore) BulkPut(ctx context.Context, records []domain.ResponseRecord) error {
	rows := make([]responseRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, toResponseRow(rec))
	}
	for _, chunk := range batch.Chunk(rows, insertBatchSize) {
		_, err := s.db.NewInsert().
			Model(&chunk).
			On("CONFLICT (team_id, response_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert responses: %w", err)
		}
	}
	return nil
}

func (s *ResponseStore) Query(ctx context.Context, teamID, groupID string) ([]domain.ResponseRecord, error) {
	var rows []responseRow
	q := s.db.NewSelect().
		Model(&rows).
		Where("team_id = ?", teamID)
	if groupID != "" {
		q = q.Where("lower(group_id) = lower(?)", groupID)
	}
	if err := q.Order("sent_at ASC", "response_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}

	out := make([]domain.ResponseRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

func (s *ResponseStore) HasQuestion(ctx context.Context, teamID, questionID string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*responseRow)(nil)).
		Where("team_id = ?", teamID).
		Where("question_id = ?", questionID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check question history: %w", err)
	}
	return exists, nil
}
