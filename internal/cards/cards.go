// Package cards renders the Adaptive Cards the bot sends.
package cards

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// ContentType is the attachment content type of an Adaptive Card.
const ContentType = "application/vnd.microsoft.card.adaptive"

const schemaURL = "http://adaptivecards.io/schemas/adaptive-card.json"

// tabEntityID is the entity id of the personal search tab in the app manifest.
const tabEntityID = "SearchCoach"

// Submit data keys carried on card actions.
const (
	ChoiceSetKey  = "choiceset"
	TeamIDKey     = "teamId"
	QuestionIDKey = "questionId"
)

type element map[string]interface{}

type adaptiveCard struct {
	Schema  string    `json:"$schema"`
	Type    string    `json:"type"`
	Version string    `json:"version"`
	Body    []element `json:"body"`
	Actions []element `json:"actions,omitempty"`
}

func newCard(body []element, actions ...element) adaptiveCard {
	return adaptiveCard{Schema: schemaURL, Type: "AdaptiveCard", Version: "1.2", Body: body, Actions: actions}
}

func render(card adaptiveCard) (domain.Card, error) {
	content, err := json.Marshal(card)
	if err != nil {
		return domain.Card{}, fmt.Errorf("render card: %w", err)
	}
	return domain.Card{ContentType: ContentType, Content: content}, nil
}

// text builds a TextBlock; props are key/value pairs.
func text(s string, props ...interface{}) element {
	e := element{"type": "TextBlock", "text": s, "wrap": true}
	for i := 0; i+1 < len(props); i += 2 {
		if key, ok := props[i].(string); ok {
			e[key] = props[i+1]
		}
	}
	return e
}

func choices(q domain.QuestionDefinition) []element {
	out := make([]element, 0, 4)
	for _, opt := range q.Options() {
		if opt == "" {
			continue
		}
		out = append(out, element{"title": opt, "value": opt})
	}
	return out
}

// Question renders the card sent to every member of teamID.
func Question(q domain.QuestionDefinition, teamID string) (domain.Card, error) {
	return render(newCard(
		[]element{
			text(q.Question, "weight", "bolder"),
			{"type": "Input.ChoiceSet", "id": ChoiceSetKey, "style": "expanded", "choices": choices(q)},
		},
		element{
			"type":  "Action.Submit",
			"title": "Submit",
			"data":  map[string]string{TeamIDKey: teamID, QuestionIDKey: q.ID},
		},
	))
}

// Answered renders the card that replaces the question once a member answered.
func Answered(q domain.QuestionDefinition, rec domain.ResponseRecord) (domain.Card, error) {
	verdict := "Sorry, that is not the right answer."
	color := "attention"
	if rec.IsCorrect {
		verdict = "Correct, well done!"
		color = "good"
	}
	body := []element{
		text(q.Question, "weight", "bolder"),
		text("Your answer: " + rec.SelectedAnswer),
		text(verdict, "color", color),
	}
	if !rec.IsCorrect {
		body = append(body, text("Correct answer: "+q.CorrectOption))
	}
	if q.Notes != "" {
		body = append(body, text(q.Notes, "isSubtle", true))
	}
	return render(newCard(body))
}

// QuestionList renders the picker shown in the messaging extension. When
// alreadySent is set a notice is shown above the list.
func QuestionList(questions []domain.QuestionDefinition, alreadySent bool) (domain.Card, error) {
	body := make([]element, 0, 3)
	if alreadySent {
		body = append(body, text("This question was already sent to the team. Pick another one.", "color", "warning"))
	}
	body = append(body, text("Choose a question to send to your team", "weight", "bolder"))

	list := make([]element, 0, len(questions))
	for _, q := range questions {
		list = append(list, element{"title": q.Question, "value": q.ID})
	}
	body = append(body, element{"type": "Input.ChoiceSet", "id": ChoiceSetKey, "style": "expanded", "choices": list})

	return render(newCard(body, element{"type": "Action.Submit", "title": "Send"}))
}

// TeamWelcome renders the card posted to the channel when the bot joins a team.
func TeamWelcome() (domain.Card, error) {
	return render(newCard([]element{
		text("Welcome to Search Coach", "size", "large", "weight", "bolder"),
		text("Team owners can send search quiz questions to every member from the messaging extension. Add the leaderboard tab to see who answers best."),
	}))
}

// PersonalWelcome renders the card sent when a member installs the bot for
// themselves. It links to the search tab of the app identified by manifestID.
func PersonalWelcome(manifestID string) (domain.Card, error) {
	body := []element{
		text("Welcome to Search Coach", "size", "large", "weight", "bolder"),
		text("Practise better web searches: quiz questions from your team arrive here, and the search tab helps you try filters on real results."),
	}
	if manifestID == "" {
		return render(newCard(body))
	}
	return render(newCard(body, element{
		"type":  "Action.OpenUrl",
		"title": "Open search",
		"url":   TabDeepLink(manifestID),
	}))
}

// TabDeepLink is the Teams link that opens the personal search tab.
func TabDeepLink(manifestID string) string {
	return "https://teams.microsoft.com/l/entity/" + url.PathEscape(manifestID) + "/" + tabEntityID
}

// Error renders a short message card.
func Error(message string) (domain.Card, error) {
	return render(newCard([]element{text(message, "color", "attention")}))
}
