package app

import (
	"context"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// QuestionRepository reads the question catalog.
type QuestionRepository interface {
	GetQuestion(ctx context.Context, questionID string) (domain.QuestionDefinition, error)
	ListQuestions(ctx context.Context) ([]domain.QuestionDefinition, error)
}

// TeamStore tracks the teams the bot is installed in.
type TeamStore interface {
	Upsert(ctx context.Context, team domain.TeamInstallation) error
	Get(ctx context.Context, teamID string) (domain.TeamInstallation, error)
	Delete(ctx context.Context, teamID string) error
}

// UserStore keeps the personal conversations of members who installed the bot.
type UserStore interface {
	Upsert(ctx context.Context, user domain.UserDetail) error
	Get(ctx context.Context, userID string) (domain.UserDetail, error)
}
