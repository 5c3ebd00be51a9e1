package memory

import (
	"context"
	"sync"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// TabStore is an in-memory implementation of app.TabStore.
type TabStore struct {
	mu   sync.RWMutex
	tabs map[string]domain.TabConfiguration
}

func NewTabStore() *TabStore {
	return &TabStore{tabs: make(map[string]domain.TabConfiguration)}
}

func (s *TabStore) Upsert(_ context.Context, tab domain.TabConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[tabKey(tab.TeamID, tab.TabID)] = tab
	return nil
}

func (s *TabStore) Get(_ context.Context, teamID, tabID string) (domain.TabConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tab, ok := s.tabs[tabKey(teamID, tabID)]
	if !ok {
		return domain.TabConfiguration{}, domain.ErrTabNotFound
	}
	return tab, nil
}

func tabKey(teamID, tabID string) string {
	return teamID + "/" + tabID
}
