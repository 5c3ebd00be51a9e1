package domain

import "errors"

var (
	// ErrInvalidInput is returned when a required identifier is missing.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRosterUnavailable wraps failures of the roster lookup.
	ErrRosterUnavailable = errors.New("team roster unavailable")
	// ErrNoRecipients is returned when a team roster resolves to nobody.
	ErrNoRecipients = errors.New("no recipients in team roster")
	// ErrQuestionAlreadySent indicates the question was already broadcast to the team.
	ErrQuestionAlreadySent = errors.New("question already sent to team")
	// ErrNoPendingQuestion is returned when an answer has no matching pending response.
	ErrNoPendingQuestion = errors.New("no pending question for this recipient")
	// ErrResponseNotFound is returned by response stores on a key miss.
	ErrResponseNotFound = errors.New("response not found")
	// ErrQuestionNotFound indicates the question id is not in the catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrTeamNotFound indicates the bot is not installed in the team.
	ErrTeamNotFound = errors.New("team not found")
	// ErrUserNotFound indicates the member never installed the bot personally.
	ErrUserNotFound = errors.New("user not found")
	// ErrTabNotFound indicates no tab configuration exists for the team and tab.
	ErrTabNotFound = errors.New("tab configuration not found")
	// ErrScopeMismatch indicates the tab is bound to a different group.
	ErrScopeMismatch = errors.New("tab is not configured for this group")
	// ErrTransientDelivery marks delivery failures worth retrying.
	ErrTransientDelivery = errors.New("transient delivery failure")
)
