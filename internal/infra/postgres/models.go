package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

type responseRow struct {
	bun.BaseModel `bun:"table:user_responses"`

	TeamID         string    `bun:"team_id,pk"`
	ResponseID     string    `bun:"response_id,pk"`
	QuestionID     string    `bun:"question_id,notnull"`
	RecipientID    string    `bun:"recipient_id,notnull"`
	SenderID       string    `bun:"sender_id,notnull"`
	SelectedAnswer string    `bun:"selected_answer,notnull"`
	IsAttempted    bool      `bun:"is_attempted,notnull"`
	IsCorrect      bool      `bun:"is_correct,notnull"`
	SentAt         time.Time `bun:"sent_at,notnull"`
	RespondedAt    time.Time `bun:"responded_at,notnull"`
	GroupID        string    `bun:"group_id,notnull"`
}

func toResponseRow(r domain.ResponseRecord) responseRow {
	return responseRow{
		TeamID:         r.TeamID,
		ResponseID:     r.ResponseID,
		QuestionID:     r.QuestionID,
		RecipientID:    r.RecipientID,
		SenderID:       r.SenderID,
		SelectedAnswer: r.SelectedAnswer,
		IsAttempted:    r.IsAttempted,
		IsCorrect:      r.IsCorrect,
		SentAt:         r.SentAt.UTC(),
		RespondedAt:    r.RespondedAt.UTC(),
		GroupID:        r.GroupID,
	}
}

func (r responseRow) record() domain.ResponseRecord {
	return domain.ResponseRecord{
		TeamID:         r.TeamID,
		ResponseID:     r.ResponseID,
		QuestionID:     r.QuestionID,
		RecipientID:    r.RecipientID,
		SenderID:       r.SenderID,
		SelectedAnswer: r.SelectedAnswer,
		IsAttempted:    r.IsAttempted,
		IsCorrect:      r.IsCorrect,
		SentAt:         r.SentAt,
		RespondedAt:    r.RespondedAt,
		GroupID:        r.GroupID,
	}
}

type tabRow struct {
	bun.BaseModel `bun:"table:tab_configurations"`

	TeamID    string    `bun:"team_id,pk"`
	TabID     string    `bun:"tab_id,pk"`
	GroupID   string    `bun:"group_id,notnull"`
	CreatedBy string    `bun:"created_by,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:question_definitions"`

	ID            string `bun:"id,pk"`
	Question      string `bun:"question,notnull"`
	Option1       string `bun:"option1,notnull"`
	Option2       string `bun:"option2,notnull"`
	Option3       string `bun:"option3,notnull"`
	Option4       string `bun:"option4,notnull"`
	CorrectOption string `bun:"correct_option,notnull"`
	Notes         string `bun:"notes,nullzero"`
}

type userRow struct {
	bun.BaseModel `bun:"table:user_details"`

	UserID         string    `bun:"user_id,pk"`
	ConversationID string    `bun:"conversation_id,notnull"`
	ServiceURL     string    `bun:"service_url,notnull"`
	InstalledAt    time.Time `bun:"installed_at,notnull"`
}
