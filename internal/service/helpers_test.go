package service

import (
	"context"
	"sync"
	"time"

	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/repository/memory"
)

var baseTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// testClock is a settable clock for engines under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: baseTime} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testOptions(store *memory.Store, clock *testClock) EngineOptions {
	return EngineOptions{Store: store, KeyPrefix: "test", Now: clock.Now}
}

// recordingNotifier keeps every event it receives.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *recordingNotifier) Notify(_ context.Context, event domain.Event) error {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) Events() []domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Event(nil), n.events...)
}

func (n *recordingNotifier) OfType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range n.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
