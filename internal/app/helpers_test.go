package app_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vsals/searchcoachdeploy/internal/app"
	"github.com/vsals/searchcoachdeploy/internal/domain"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fastRetry() app.RetryPolicy {
	return app.RetryPolicy{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		MaxElapsed:   time.Second,
	}
}

type stubRoster struct {
	members []domain.Member
	err     error
}

func (r stubRoster) ResolveMembers(context.Context, string) ([]domain.Member, error) {
	return r.members, r.err
}

// recordingDispatcher fails per-member according to failures; each entry is
// consumed by one delivery attempt.
type recordingDispatcher struct {
	mu       sync.Mutex
	failures map[string][]error
	attempts map[string]int
	onCall   func(member domain.Member)
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{
		failures: make(map[string][]error),
		attempts: make(map[string]int),
	}
}

func (d *recordingDispatcher) Deliver(_ context.Context, _ string, member domain.Member, _ domain.Card) error {
	if d.onCall != nil {
		d.onCall(member)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts[member.ID]++
	queue := d.failures[member.ID]
	if len(queue) == 0 {
		return nil
	}
	d.failures[member.ID] = queue[1:]
	return queue[0]
}

func (d *recordingDispatcher) calls(memberID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts[memberID]
}

type statusError int

func (e statusError) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusError) HTTPStatusCode() int { return int(e) }

func members(ids ...string) []domain.Member {
	out := make([]domain.Member, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Member{ID: id, AccountID: "29:" + id, Name: "Member " + id})
	}
	return out
}

type stubDirectory struct {
	mu    sync.Mutex
	names map[string]string
	calls [][]string
	err   error
}

func (d *stubDirectory) ResolveDisplayNames(_ context.Context, _, _ string, ids []string) (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, append([]string(nil), ids...))
	if d.err != nil {
		return nil, d.err
	}
	out := make(map[string]string)
	for _, id := range ids {
		if name, ok := d.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

type switchRoster struct {
	mu      sync.Mutex
	members []domain.Member
	err     error
}

func (r *switchRoster) set(members []domain.Member, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members, r.err = members, err
}

func (r *switchRoster) ResolveMembers(context.Context, string) ([]domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members, r.err
}
