package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// ResponsePublisher is notified whenever a response row is answered.
type ResponsePublisher interface {
	Publish(record domain.ResponseRecord)
}

// AnswerService validates submitted answers and overwrites the pending row.
type AnswerService struct {
	responses ResponseStore
	questions QuestionRepository
	publisher ResponsePublisher
	now       func() time.Time
	log       logrus.FieldLogger
}

func NewAnswerService(responses ResponseStore, questions QuestionRepository, publisher ResponsePublisher, logger logrus.FieldLogger) *AnswerService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AnswerService{
		responses: responses,
		questions: questions,
		publisher: publisher,
		now:       time.Now,
		log:       logger,
	}
}

// WithClock replaces the clock used for response timestamps.
func (s *AnswerService) WithClock(now func() time.Time) *AnswerService {
	s.now = now
	return s
}

// SubmitAnswer scores the selected option and stores it on the member's row.
// A later submission for the same question overwrites the earlier one.
func (s *AnswerService) SubmitAnswer(ctx context.Context, sub domain.AnswerSubmission) (domain.ResponseRecord, error) {
	if sub.TeamID == "" || sub.QuestionID == "" || sub.RecipientID == "" || sub.SelectedOption == "" {
		return domain.ResponseRecord{}, fmt.Errorf("answer submission incomplete: %w", domain.ErrInvalidInput)
	}
	log := s.log.WithFields(logrus.Fields{
		"team_id":      sub.TeamID,
		"question_id":  sub.QuestionID,
		"recipient_id": sub.RecipientID,
	})

	record, err := s.responses.Get(ctx, sub.TeamID, domain.ResponseID(sub.QuestionID, sub.RecipientID))
	if errors.Is(err, domain.ErrResponseNotFound) {
		log.Info("answer submitted without a pending question")
		return domain.ResponseRecord{}, domain.ErrNoPendingQuestion
	}
	if err != nil {
		return domain.ResponseRecord{}, fmt.Errorf("load response: %w", err)
	}

	question, err := s.questions.GetQuestion(ctx, sub.QuestionID)
	if err != nil {
		if errors.Is(err, domain.ErrQuestionNotFound) {
			log.Warn("answered question is missing from the catalog")
		}
		return domain.ResponseRecord{}, fmt.Errorf("load question: %w", err)
	}
	if !question.HasOption(sub.SelectedOption) {
		log.WithField("selected", sub.SelectedOption).Warn("answer is not one of the question's options")
		return domain.ResponseRecord{}, fmt.Errorf("unknown option for question %s: %w", sub.QuestionID, domain.ErrInvalidInput)
	}

	updated := record.Answered(sub.SelectedOption, sub.SelectedOption == question.CorrectOption, s.now())
	if err := s.responses.Put(ctx, updated); err != nil {
		return domain.ResponseRecord{}, fmt.Errorf("store answer: %w", err)
	}

	log.WithField("correct", updated.IsCorrect).Debug("answer recorded")
	if s.publisher != nil {
		s.publisher.Publish(updated)
	}
	return updated, nil
}
