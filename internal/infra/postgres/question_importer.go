package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

const maxNotesLength = 200

// ImportQuestions upserts the given questions into question_definitions.
func ImportQuestions(ctx context.Context, db *bun.DB, questions []domain.QuestionDefinition) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}
	rows := make([]questionRow, 0, len(questions))
	for _, q := range questions {
		if q.ID == "" || q.CorrectOption == "" || len([]rune(q.Notes)) > maxNotesLength {
			return 0, fmt.Errorf("question %q: %w", q.ID, domain.ErrInvalidInput)
		}
		rows = append(rows, questionRow{
			ID:            q.ID,
			Question:      q.Question,
			Option1:       q.Option1,
			Option2:       q.Option2,
			Option3:       q.Option3,
			Option4:       q.Option4,
			CorrectOption: q.CorrectOption,
			Notes:         q.Notes,
		})
	}

	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (id) DO UPDATE").
			Set("question = EXCLUDED.question").
			Set("option1 = EXCLUDED.option1").
			Set("option2 = EXCLUDED.option2").
			Set("option3 = EXCLUDED.option3").
			Set("option4 = EXCLUDED.option4").
			Set("correct_option = EXCLUDED.correct_option").
			Set("notes = EXCLUDED.notes").
			Exec(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("import questions: %w", err)
	}
	return len(rows), nil
}
