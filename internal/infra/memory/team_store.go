package memory

import (
	"context"
	"sync"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// TeamStore is an in-memory implementation of app.TeamStore.
type TeamStore struct {
	mu    sync.RWMutex
	teams map[string]domain.TeamInstallation
}

func NewTeamStore() *TeamStore {
	return &TeamStore{teams: make(map[string]domain.TeamInstallation)}
}

func (s *TeamStore) Upsert(_ context.Context, team domain.TeamInstallation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[team.TeamID] = team
	return nil
}

func (s *TeamStore) Get(_ context.Context, teamID string) (domain.TeamInstallation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team, ok := s.teams[teamID]
	if !ok {
		return domain.TeamInstallation{}, domain.ErrTeamNotFound
	}
	return team, nil
}

func (s *TeamStore) Delete(_ context.Context, teamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.teams, teamID)
	return nil
}
