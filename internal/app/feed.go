package app

import (
	"sync"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// Feed fans answered responses out to per-team subscribers.
type Feed struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan domain.ResponseRecord]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[string]map[chan domain.ResponseRecord]struct{})}
}

// Subscribe returns a channel of answered responses for teamID.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *Feed) Subscribe(teamID string) (<-chan domain.ResponseRecord, func()) {
	ch := make(chan domain.ResponseRecord, 8)

	f.mu.Lock()
	subs, ok := f.subscribers[teamID]
	if !ok {
		subs = make(map[chan domain.ResponseRecord]struct{})
		f.subscribers[teamID] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subscribers[teamID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(f.subscribers, teamID)
		}
	}
	return ch, cancel
}

// Publish implements ResponsePublisher.
func (f *Feed) Publish(record domain.ResponseRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[record.TeamID] {
		select {
		case ch <- record:
		default:
			// subscriber is behind: drop its oldest update
			select {
			case <-ch:
			default:
			}
			ch <- record
		}
	}
}

// Subscribers reports how many listeners a team has.
func (f *Feed) Subscribers(teamID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers[teamID])
}
