// Package netmonitor implements the singleton network-state monitor from
// spec.md §4.6: browser-style online/offline semantics, edge-triggered
// subscriber notification.
package netmonitor

import "sync"

// Subscriber is notified on every online/offline edge transition.
type Subscriber func(online bool)

// Monitor tracks the current connectivity state and notifies subscribers
// only on an edge transition (never on a same-state re-report).
type Monitor struct {
	mu          sync.Mutex
	online      bool
	subscribers []Subscriber
}

// New builds a Monitor in the given starting state.
func New(startOnline bool) *Monitor {
	return &Monitor{online: startOnline}
}

// IsOnline reports the current connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.online
}

// Subscribe registers fn to be called on every edge transition. It does not
// fire immediately with the current state — only on a future edge.
func (m *Monitor) Subscribe(fn Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscribers = append(m.subscribers, fn)
}

// SetOnline reports a connectivity observation. Subscribers are notified
// only if this differs from the last known state (an edge).
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()

	if m.online == online {
		m.mu.Unlock()
		return
	}

	m.online = online
	subs := make([]Subscriber, len(m.subscribers))
	copy(subs, m.subscribers)

	m.mu.Unlock()

	for _, sub := range subs {
		sub(online)
	}
}
