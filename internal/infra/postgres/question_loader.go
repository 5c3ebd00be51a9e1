package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// QuestionLoader loads the question catalog from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.QuestionDefinition, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, question, option1, option2, option3, option4, correct_option, COALESCE(notes, '')
		FROM question_definitions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.QuestionDefinition
	for rows.Next() {
		var q domain.QuestionDefinition
		if err := rows.Scan(&q.ID, &q.Question, &q.Option1, &q.Option2, &q.Option3, &q.Option4, &q.CorrectOption, &q.Notes); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}
