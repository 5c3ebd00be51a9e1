package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// RosterResolver lists the current members of a team.
type RosterResolver interface {
	ResolveMembers(ctx context.Context, teamID string) ([]domain.Member, error)
}

// CardDispatcher delivers a rendered card to one member in a personal conversation.
type CardDispatcher interface {
	Deliver(ctx context.Context, teamID string, member domain.Member, card domain.Card) error
}

// ResponseStore persists per-member response rows keyed by (team, response id).
// Put overwrites; BulkPut only creates rows that do not exist yet.
type ResponseStore interface {
	Get(ctx context.Context, teamID, responseID string) (domain.ResponseRecord, error)
	Put(ctx context.Context, record domain.ResponseRecord) error
	BulkPut(ctx context.Context, records []domain.ResponseRecord) error
	Query(ctx context.Context, teamID, groupID string) ([]domain.ResponseRecord, error)
	HasQuestion(ctx context.Context, teamID, questionID string) (bool, error)
}

// BroadcastRequest asks for a question card to be sent to every team member.
type BroadcastRequest struct {
	TeamID     string
	GroupID    string
	QuestionID string
	SenderID   string
	Card       domain.Card
}

// DeliveryOutcome is the result of delivering to a single member.
type DeliveryOutcome struct {
	Member   domain.Member
	Attempts int
	Err      error
}

// BroadcastReport summarises a broadcast.
type BroadcastReport struct {
	TeamID     string
	QuestionID string
	Outcomes   []DeliveryOutcome
	Persisted  int
}

// Delivered counts members that received the card.
func (r BroadcastReport) Delivered() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts members whose delivery failed or was skipped.
func (r BroadcastReport) Failed() int {
	return len(r.Outcomes) - r.Delivered()
}

// NotificationService fans a question out to a team roster and records a
// pending response for every resolved member.
type NotificationService struct {
	roster     RosterResolver
	dispatcher CardDispatcher
	responses  ResponseStore
	retry      RetryPolicy
	now        func() time.Time
	log        logrus.FieldLogger

	mu sync.Mutex
	// inflight holds the (team, question) pairs whose rows are not written yet.
	inflight map[string]struct{}
}

func NewNotificationService(roster RosterResolver, dispatcher CardDispatcher, responses ResponseStore, retry RetryPolicy, logger logrus.FieldLogger) *NotificationService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &NotificationService{
		roster:     roster,
		dispatcher: dispatcher,
		responses:  responses,
		retry:      retry,
		now:        time.Now,
		log:        logger,
		inflight:   make(map[string]struct{}),
	}
}

// WithClock replaces the clock used for sent timestamps.
func (s *NotificationService) WithClock(now func() time.Time) *NotificationService {
	s.now = now
	return s
}

// BroadcastQuestion delivers req.Card to every member of the team and then
// persists one pending response per resolved member, whatever the delivery
// outcome. Once ctx is cancelled no new deliveries start; the delivery in
// flight and the final write still complete.
func (s *NotificationService) BroadcastQuestion(ctx context.Context, req BroadcastRequest) (BroadcastReport, error) {
	report := BroadcastReport{TeamID: req.TeamID, QuestionID: req.QuestionID}
	members, err := s.prepare(ctx, req)
	if err != nil {
		return report, err
	}
	defer s.release(req)

	report.Outcomes = s.deliverAll(ctx, req, members)
	persisted, err := s.persist(ctx, req, members)
	report.Persisted = persisted
	if err != nil {
		return report, err
	}
	return report, nil
}

// EnqueueBroadcast resolves the roster on the caller's goroutine and hands
// delivery and persistence to exec as two ordered units of work. The
// question counts as sent from the moment it is accepted here.
func (s *NotificationService) EnqueueBroadcast(ctx context.Context, exec Executor, req BroadcastRequest) error {
	members, err := s.prepare(ctx, req)
	if err != nil {
		return err
	}

	if err := exec.Submit(ctx, func(taskCtx context.Context) {
		outcomes := s.deliverAll(taskCtx, req, members)
		report := BroadcastReport{TeamID: req.TeamID, QuestionID: req.QuestionID, Outcomes: outcomes}
		s.fields(req).WithFields(logrus.Fields{
			"delivered": report.Delivered(),
			"failed":    report.Failed(),
		}).Info("question delivered to team")
	}); err != nil {
		s.release(req)
		return fmt.Errorf("enqueue delivery: %w", err)
	}

	if err := exec.Submit(ctx, func(taskCtx context.Context) {
		defer s.release(req)
		_, _ = s.persist(taskCtx, req, members)
	}); err != nil {
		s.release(req)
		return fmt.Errorf("enqueue persistence: %w", err)
	}
	return nil
}

// prepare claims the (team, question) pair and resolves the recipients. On
// success the caller must release the claim once the rows are written.
func (s *NotificationService) prepare(ctx context.Context, req BroadcastRequest) (members []domain.Member, err error) {
	if req.TeamID == "" || req.QuestionID == "" {
		return nil, fmt.Errorf("broadcast requires team and question: %w", domain.ErrInvalidInput)
	}
	if !s.claim(req) {
		s.fields(req).Info("question is already being sent")
		return nil, domain.ErrQuestionAlreadySent
	}
	defer func() {
		if err != nil {
			s.release(req)
		}
	}()

	sent, err := s.responses.HasQuestion(ctx, req.TeamID, req.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("check question history: %w", err)
	}
	if sent {
		return nil, domain.ErrQuestionAlreadySent
	}

	resolved, err := s.roster.ResolveMembers(ctx, req.TeamID)
	if err != nil {
		s.fields(req).WithError(err).Error("resolve team roster")
		return nil, fmt.Errorf("%w: %w", domain.ErrRosterUnavailable, err)
	}
	members = uniqueMembers(resolved)
	if len(members) == 0 {
		s.fields(req).Warn("team roster is empty")
		return nil, domain.ErrNoRecipients
	}
	return members, nil
}

func inflightKey(req BroadcastRequest) string {
	return req.TeamID + "\x00" + req.QuestionID
}

func (s *NotificationService) claim(req BroadcastRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := inflightKey(req)
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *NotificationService) release(req BroadcastRequest) {
	s.mu.Lock()
	delete(s.inflight, inflightKey(req))
	s.mu.Unlock()
}

// uniqueMembers drops members without an id and repeats of the same id,
// keeping roster order.
func uniqueMembers(members []domain.Member) []domain.Member {
	seen := make(map[string]struct{}, len(members))
	out := make([]domain.Member, 0, len(members))
	for _, m := range members {
		if m.ID == "" {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

func (s *NotificationService) deliverAll(ctx context.Context, req BroadcastRequest, members []domain.Member) []DeliveryOutcome {
	outcomes := make([]DeliveryOutcome, 0, len(members))
	// Retries of an in-flight delivery are not cut short by cancellation.
	detached := context.WithoutCancel(ctx)
	for _, member := range members {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, DeliveryOutcome{Member: member, Err: err})
			continue
		}

		log := s.fields(req).WithField("recipient_id", member.ID)
		attempts, err := s.retry.Do(detached, func(c context.Context) error {
			return s.dispatcher.Deliver(c, req.TeamID, member, req.Card)
		}, func(attempt int, err error, wait time.Duration) {
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"wait":    wait,
			}).WithError(err).Warn("transient delivery failure, retrying")
		})
		if err != nil {
			log.WithField("attempts", attempts).WithError(err).Error("deliver question card")
		}
		outcomes = append(outcomes, DeliveryOutcome{Member: member, Attempts: attempts, Err: err})
	}
	return outcomes
}

func (s *NotificationService) persist(ctx context.Context, req BroadcastRequest, members []domain.Member) (int, error) {
	now := s.now()
	records := make([]domain.ResponseRecord, 0, len(members))
	for _, member := range members {
		records = append(records, domain.NewPendingResponse(req.TeamID, req.GroupID, req.QuestionID, member.ID, req.SenderID, now))
	}

	if err := s.responses.BulkPut(context.WithoutCancel(ctx), records); err != nil {
		s.fields(req).WithError(err).WithField("rows", len(records)).Error("persist pending responses")
		return 0, fmt.Errorf("persist pending responses: %w", err)
	}
	return len(records), nil
}

func (s *NotificationService) fields(req BroadcastRequest) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{
		"team_id":     req.TeamID,
		"question_id": req.QuestionID,
	})
}

// IsDeliveryCancelled reports whether an outcome was skipped because the
// broadcast was cancelled.
func IsDeliveryCancelled(o DeliveryOutcome) bool {
	return o.Attempts == 0 && (errors.Is(o.Err, context.Canceled) || errors.Is(o.Err, context.DeadlineExceeded))
}
