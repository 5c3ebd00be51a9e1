package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// ResponseStore is an in-memory implementation of app.ResponseStore.
// Rows are returned in the order they were first written.
type ResponseStore struct {
	mu    sync.RWMutex
	teams map[string]*teamResponses
}

type teamResponses struct {
	order []string
	rows  map[string]domain.ResponseRecord
}

func NewResponseStore() *ResponseStore {
	return &ResponseStore{teams: make(map[string]*teamResponses)}
}

func (s *ResponseStore) Get(_ context.Context, teamID, responseID string) (domain.ResponseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team, ok := s.teams[teamID]
	if !ok {
		return domain.ResponseRecord{}, domain.ErrResponseNotFound
	}
	rec, ok := team.rows[responseID]
	if !ok {
		return domain.ResponseRecord{}, domain.ErrResponseNotFound
	}
	return rec, nil
}

func (s *ResponseStore) Put(_ context.Context, record domain.ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(record)
	return nil
}

// BulkPut creates the rows that are missing and leaves existing rows as they are.
func (s *ResponseStore) BulkPut(_ context.Context, records []domain.ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if s.existsLocked(rec) {
			continue
		}
		s.putLocked(rec)
	}
	return nil
}

func (s *ResponseStore) Query(_ context.Context, teamID, groupID string) ([]domain.ResponseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ResponseRecord, 0)
	team, ok := s.teams[teamID]
	if !ok {
		return out, nil
	}
	for _, id := range team.order {
		rec := team.rows[id]
		if groupID != "" && !strings.EqualFold(rec.GroupID, groupID) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *ResponseStore) HasQuestion(_ context.Context, teamID, questionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team, ok := s.teams[teamID]
	if !ok {
		return false, nil
	}
	for _, rec := range team.rows {
		if rec.QuestionID == questionID {
			return true, nil
		}
	}
	return false, nil
}

// Len returns the number of rows stored for a team.
func (s *ResponseStore) Len(teamID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if team, ok := s.teams[teamID]; ok {
		return len(team.rows)
	}
	return 0
}

func (s *ResponseStore) existsLocked(rec domain.ResponseRecord) bool {
	team, ok := s.teams[rec.TeamID]
	if !ok {
		return false
	}
	id := rec.ResponseID
	if id == "" {
		id = domain.ResponseID(rec.QuestionID, rec.RecipientID)
	}
	_, ok = team.rows[id]
	return ok
}

func (s *ResponseStore) putLocked(rec domain.ResponseRecord) {
	if rec.ResponseID == "" {
		rec.ResponseID = domain.ResponseID(rec.QuestionID, rec.RecipientID)
	}
	team, ok := s.teams[rec.TeamID]
	if !ok {
		team = &teamResponses{rows: make(map[string]domain.ResponseRecord)}
		s.teams[rec.TeamID] = team
	}
	if _, exists := team.rows[rec.ResponseID]; !exists {
		team.order = append(team.order, rec.ResponseID)
	}
	team.rows[rec.ResponseID] = rec
}
