package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vsals/searchcoachdeploy/internal/app"
	"github.com/vsals/searchcoachdeploy/internal/cards"
	"github.com/vsals/searchcoachdeploy/internal/domain"
)

const (
	activityMessage            = "message"
	activityInvoke             = "invoke"
	activityConversationUpdate = "conversationUpdate"

	invokeFetchTask    = "composeExtension/fetchTask"
	invokeSubmitAction = "composeExtension/submitAction"

	conversationPersonal = "personal"
	conversationChannel  = "channel"
)

type Broadcaster interface {
	EnqueueBroadcast(ctx context.Context, exec app.Executor, req app.BroadcastRequest) error
}

type AnswerSubmitter interface {
	SubmitAnswer(ctx context.Context, sub domain.AnswerSubmission) (domain.ResponseRecord, error)
}

// CardSender posts cards into conversations the bot is already part of.
type CardSender interface {
	SendCard(ctx context.Context, serviceURL, conversationID string, card domain.Card) error
	UpdateCard(ctx context.Context, serviceURL, conversationID, activityID string, card domain.Card) error
}

type account struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AadObjectID string `json:"aadObjectId"`
}

type activity struct {
	Type         string  `json:"type"`
	Name         string  `json:"name"`
	ID           string  `json:"id"`
	Text         string  `json:"text"`
	ServiceURL   string  `json:"serviceUrl"`
	ReplyToID    string  `json:"replyToId"`
	From         account `json:"from"`
	Recipient    account `json:"recipient"`
	Conversation struct {
		ID               string `json:"id"`
		ConversationType string `json:"conversationType"`
	} `json:"conversation"`
	MembersAdded   []account `json:"membersAdded"`
	MembersRemoved []account `json:"membersRemoved"`
	ChannelData    struct {
		Team *struct {
			ID         string `json:"id"`
			AadGroupID string `json:"aadGroupId"`
		} `json:"team"`
	} `json:"channelData"`
	Value json.RawMessage `json:"value"`
}

func (a activity) teamID() string {
	if a.ChannelData.Team == nil {
		return ""
	}
	return a.ChannelData.Team.ID
}

func (a activity) groupID() string {
	if a.ChannelData.Team == nil {
		return ""
	}
	return a.ChannelData.Team.AadGroupID
}

func (a activity) botIn(members []account) bool {
	for _, m := range members {
		if m.ID == a.Recipient.ID {
			return true
		}
	}
	return false
}

type submitActionValue struct {
	Data struct {
		QuestionID string `json:"choiceset"`
	} `json:"data"`
}

type answerValue struct {
	SelectedOption string `json:"choiceset"`
	TeamID         string `json:"teamId"`
	QuestionID     string `json:"questionId"`
}

type taskInfo struct {
	Card   domain.Card `json:"card"`
	Height int         `json:"height"`
	Width  int         `json:"width"`
	Title  string      `json:"title"`
}

type taskResponse struct {
	Task struct {
		Type  string   `json:"type"`
		Value taskInfo `json:"value"`
	} `json:"task"`
}

// BotDeps lists what the bot endpoint needs.
type BotDeps struct {
	Teams       app.TeamStore
	Users       app.UserStore
	Questions   app.QuestionRepository
	Broadcaster Broadcaster
	Executor    app.Executor
	Answers     AnswerSubmitter
	Cards       CardSender
	// ManifestID builds the deep link to the search tab in the personal welcome card.
	ManifestID string
	Logger     logrus.FieldLogger
}

// BotHandler receives Bot Framework activities on /api/messages.
type BotHandler struct {
	teams       app.TeamStore
	users       app.UserStore
	questions   app.QuestionRepository
	broadcaster Broadcaster
	executor    app.Executor
	answers     AnswerSubmitter
	cards       CardSender
	manifestID  string
	log         logrus.FieldLogger
	now         func() time.Time
}

func NewBotHandler(deps BotDeps) *BotHandler {
	return &BotHandler{
		teams:       deps.Teams,
		users:       deps.Users,
		questions:   deps.Questions,
		broadcaster: deps.Broadcaster,
		executor:    deps.Executor,
		answers:     deps.Answers,
		cards:       deps.Cards,
		manifestID:  deps.ManifestID,
		log:         deps.Logger,
		now:         time.Now,
	}
}

func (h *BotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var act activity
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&act); err != nil {
		writeError(w, http.StatusBadRequest, "invalid activity")
		return
	}

	log := h.log.WithFields(logrus.Fields{"activity_type": act.Type, "activity_name": act.Name})
	switch {
	case act.Type == activityConversationUpdate:
		h.conversationUpdate(w, r, act, log)
	case act.Type == activityInvoke && act.Name == invokeFetchTask:
		h.fetchTask(w, r, act, log)
	case act.Type == activityInvoke && act.Name == invokeSubmitAction:
		h.submitAction(w, r, act, log)
	case act.Type == activityMessage:
		h.message(w, r, act, log)
	default:
		log.Debug("ignoring activity")
		w.WriteHeader(http.StatusOK)
	}
}

func (h *BotHandler) conversationUpdate(w http.ResponseWriter, r *http.Request, act activity, log logrus.FieldLogger) {
	if act.Conversation.ConversationType == conversationPersonal && act.botIn(act.MembersAdded) {
		h.personalInstall(w, r, act, log)
		return
	}
	teamID := act.teamID()
	if act.Conversation.ConversationType != conversationChannel || teamID == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	log = log.WithField("team_id", teamID)

	switch {
	case act.botIn(act.MembersAdded):
		h.sendWelcome(r.Context(), act, cards.TeamWelcome, log)
		err := h.teams.Upsert(r.Context(), domain.TeamInstallation{
			TeamID:      teamID,
			ServiceURL:  act.ServiceURL,
			InstalledAt: h.now().UTC(),
		})
		if err != nil {
			log.WithError(err).Error("store team installation")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		log.Info("bot installed in team")
	case act.botIn(act.MembersRemoved):
		if err := h.teams.Delete(r.Context(), teamID); err != nil {
			if !errors.Is(err, domain.ErrTeamNotFound) {
				log.WithError(err).Error("delete team installation")
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			log.Info("uninstalled team was not registered")
		}
		log.Info("bot removed from team")
	}
	w.WriteHeader(http.StatusOK)
}

// personalInstall greets a user once and remembers the conversation for later messages.
func (h *BotHandler) personalInstall(w http.ResponseWriter, r *http.Request, act activity, log logrus.FieldLogger) {
	userID := act.From.AadObjectID
	if userID == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	log = log.WithField("user_id", userID)

	_, err := h.users.Get(r.Context(), userID)
	switch {
	case err == nil:
		log.Debug("user already installed the bot")
		w.WriteHeader(http.StatusOK)
		return
	case !errors.Is(err, domain.ErrUserNotFound):
		log.WithError(err).Error("load user detail")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.sendWelcome(r.Context(), act, func() (domain.Card, error) {
		return cards.PersonalWelcome(h.manifestID)
	}, log)

	err = h.users.Upsert(r.Context(), domain.UserDetail{
		UserID:         userID,
		ConversationID: act.Conversation.ID,
		ServiceURL:     act.ServiceURL,
		InstalledAt:    h.now().UTC(),
	})
	if err != nil {
		log.WithError(err).Error("store user detail")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	log.Info("bot installed for user")
	w.WriteHeader(http.StatusOK)
}

// sendWelcome posts a welcome card into the conversation of act. Failures are
// logged only; the installation is still recorded.
func (h *BotHandler) sendWelcome(ctx context.Context, act activity, build func() (domain.Card, error), log logrus.FieldLogger) {
	card, err := build()
	if err != nil {
		log.WithError(err).Error("render welcome card")
		return
	}
	if err := h.cards.SendCard(ctx, act.ServiceURL, act.Conversation.ID, card); err != nil {
		log.WithError(err).Warn("send welcome card")
	}
}

func (h *BotHandler) fetchTask(w http.ResponseWriter, r *http.Request, act activity, log logrus.FieldLogger) {
	if act.Conversation.ConversationType == conversationPersonal {
		h.writeErrorTask(w, "Questions can only be sent from a team channel.")
		return
	}
	teamID := act.teamID()
	if _, err := h.teams.Get(r.Context(), teamID); err != nil {
		log.WithError(err).WithField("team_id", teamID).Warn("team installation not found")
		h.writeErrorTask(w, "Add Search Coach to the team before sending questions.")
		return
	}
	h.writeQuestionList(w, r, false, log)
}

func (h *BotHandler) submitAction(w http.ResponseWriter, r *http.Request, act activity, log logrus.FieldLogger) {
	var value submitActionValue
	if err := json.Unmarshal(act.Value, &value); err != nil || value.Data.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "missing selected question")
		return
	}
	questionID := value.Data.QuestionID
	teamID := act.teamID()
	log = log.WithFields(logrus.Fields{"team_id": teamID, "question_id": questionID})

	question, err := h.questions.GetQuestion(r.Context(), questionID)
	if err != nil {
		if errors.Is(err, domain.ErrQuestionNotFound) {
			log.Info("selected question not found")
			w.WriteHeader(http.StatusOK)
			return
		}
		log.WithError(err).Error("load question")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	card, err := cards.Question(question, teamID)
	if err != nil {
		log.WithError(err).Error("render question card")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	err = h.broadcaster.EnqueueBroadcast(r.Context(), h.executor, app.BroadcastRequest{
		TeamID:     teamID,
		GroupID:    act.groupID(),
		QuestionID: questionID,
		SenderID:   act.From.AadObjectID,
		Card:       card,
	})
	switch {
	case err == nil:
		log.Info("question queued for team")
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, domain.ErrQuestionAlreadySent):
		h.writeQuestionList(w, r, true, log)
	case errors.Is(err, domain.ErrNoRecipients):
		h.writeErrorTask(w, "No team members were found to send the question to.")
	case errors.Is(err, domain.ErrRosterUnavailable):
		h.writeErrorTask(w, "The team roster is unavailable. Try again later.")
	default:
		log.WithError(err).Error("broadcast question")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *BotHandler) message(w http.ResponseWriter, r *http.Request, act activity, log logrus.FieldLogger) {
	// only card submissions are handled; typed messages carry text
	if len(act.Value) == 0 || act.Text != "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	var value answerValue
	if err := json.Unmarshal(act.Value, &value); err != nil {
		writeError(w, http.StatusBadRequest, "invalid answer payload")
		return
	}
	log = log.WithFields(logrus.Fields{
		"team_id":      value.TeamID,
		"question_id":  value.QuestionID,
		"recipient_id": act.From.AadObjectID,
	})

	record, err := h.answers.SubmitAnswer(r.Context(), domain.AnswerSubmission{
		TeamID:         value.TeamID,
		QuestionID:     value.QuestionID,
		RecipientID:    act.From.AadObjectID,
		SelectedOption: value.SelectedOption,
	})
	if err != nil {
		switch statusFor(err) {
		case http.StatusBadRequest, http.StatusNotFound:
			log.WithError(err).Info("answer not recorded")
			w.WriteHeader(http.StatusOK)
		default:
			log.WithError(err).Error("submit answer")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	question, err := h.questions.GetQuestion(r.Context(), value.QuestionID)
	if err != nil {
		log.WithError(err).Error("load answered question")
		w.WriteHeader(http.StatusOK)
		return
	}
	card, err := cards.Answered(question, record)
	if err != nil {
		log.WithError(err).Error("render answered card")
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := h.cards.UpdateCard(r.Context(), act.ServiceURL, act.Conversation.ID, act.ReplyToID, card); err != nil {
		log.WithError(err).Error("refresh question card")
	}
	w.WriteHeader(http.StatusOK)
}

func (h *BotHandler) writeQuestionList(w http.ResponseWriter, r *http.Request, alreadySent bool, log logrus.FieldLogger) {
	questions, err := h.questions.ListQuestions(r.Context())
	if err != nil {
		log.WithError(err).Error("list questions")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	card, err := cards.QuestionList(questions, alreadySent)
	if err != nil {
		log.WithError(err).Error("render question list")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeTask(w, taskInfo{Card: card, Height: 460, Width: 600, Title: "Search Coach questions"})
}

func (h *BotHandler) writeErrorTask(w http.ResponseWriter, message string) {
	card, err := cards.Error(message)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeTask(w, taskInfo{Card: card, Height: 200, Width: 350, Title: "Search Coach"})
}

func writeTask(w http.ResponseWriter, info taskInfo) {
	var res taskResponse
	res.Task.Type = "continue"
	res.Task.Value = info
	writeJSON(w, http.StatusOK, res)
}
