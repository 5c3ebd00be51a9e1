package domain

import (
	"encoding/json"
	"time"
)

// ResponseRecord tracks one member's answer to one question sent to a team.
type ResponseRecord struct {
	TeamID         string    `json:"teamId"`
	ResponseID     string    `json:"responseId"`
	QuestionID     string    `json:"questionId"`
	RecipientID    string    `json:"recipientId"`
	SenderID       string    `json:"senderId"`
	SelectedAnswer string    `json:"selectedAnswer"`
	IsAttempted    bool      `json:"isAttempted"`
	IsCorrect      bool      `json:"isCorrect"`
	SentAt         time.Time `json:"sentAt"`
	RespondedAt    time.Time `json:"respondedAt"`
	GroupID        string    `json:"groupId"`
}

// ResponseID derives the row key of a response from its question and recipient.
func ResponseID(questionID, recipientID string) string {
	return questionID + "_" + recipientID
}

// NewPendingResponse builds the unanswered record written when a question is sent.
func NewPendingResponse(teamID, groupID, questionID, recipientID, senderID string, now time.Time) ResponseRecord {
	return ResponseRecord{
		TeamID:      teamID,
		ResponseID:  ResponseID(questionID, recipientID),
		QuestionID:  questionID,
		RecipientID: recipientID,
		SenderID:    senderID,
		SentAt:      now,
		RespondedAt: now,
		GroupID:     groupID,
	}
}

// Answered returns a copy of r carrying the submitted option.
func (r ResponseRecord) Answered(selected string, correct bool, now time.Time) ResponseRecord {
	r.SelectedAnswer = selected
	r.IsAttempted = true
	r.IsCorrect = correct
	r.RespondedAt = now
	return r
}

// QuestionDefinition is a multiple choice question from the catalog.
type QuestionDefinition struct {
	ID            string `json:"id" yaml:"id"`
	Question      string `json:"question" yaml:"question"`
	Option1       string `json:"option1" yaml:"option1"`
	Option2       string `json:"option2" yaml:"option2"`
	Option3       string `json:"option3" yaml:"option3"`
	Option4       string `json:"option4" yaml:"option4"`
	CorrectOption string `json:"correctOption" yaml:"correctOption"`
	Notes         string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Options lists the four answer choices in display order.
func (q QuestionDefinition) Options() []string {
	return []string{q.Option1, q.Option2, q.Option3, q.Option4}
}

// HasOption reports whether option is exactly one of the non-empty choices.
func (q QuestionDefinition) HasOption(option string) bool {
	if option == "" {
		return false
	}
	for _, o := range q.Options() {
		if o == option {
			return true
		}
	}
	return false
}

// LeaderboardRow is the per-member aggregate shown on the leaderboard tab.
type LeaderboardRow struct {
	UserID             string `json:"userId"`
	UserName           string `json:"userName"`
	RightAnswers       int    `json:"rightAnswers"`
	QuestionsAttempted int    `json:"questionsAttempted"`
}

// Member is a team roster entry.
type Member struct {
	ID        string `json:"id"` // directory object id
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
	TenantID  string `json:"tenantId"`
}

// Card is an already rendered message attachment.
type Card struct {
	ContentType string          `json:"contentType"`
	Content     json.RawMessage `json:"content"`
}

// TeamInstallation records that the bot is installed in a team.
type TeamInstallation struct {
	TeamID      string    `json:"teamId"`
	ServiceURL  string    `json:"serviceUrl"`
	InstalledAt time.Time `json:"installedAt"`
}

// UserDetail records the personal conversation of a member who installed
// the bot for themselves.
type UserDetail struct {
	UserID         string    `json:"userId"` // directory object id
	ConversationID string    `json:"conversationId"`
	ServiceURL     string    `json:"serviceUrl"`
	InstalledAt    time.Time `json:"installedAt"`
}

// TabConfiguration binds a leaderboard tab to a team and its directory group.
type TabConfiguration struct {
	TeamID    string    `json:"teamId"`
	TabID     string    `json:"tabId"`
	GroupID   string    `json:"groupId"`
	CreatedBy string    `json:"createdByUserId"`
	CreatedAt time.Time `json:"createdOn"`
}

// AnswerSubmission is a member's choice for a question sent to a team.
type AnswerSubmission struct {
	TeamID         string
	QuestionID     string
	RecipientID    string
	SelectedOption string
}
