package session

import (
	"context"
	"sync"

	"collabdocs/pkg/docerr"
	"collabdocs/pkg/logger"
)

type State int

const (
	Online State = iota
	Offline
)

func (s State) String() string {
	if s == Offline {
		return "offline"
	}
	return "online"
}

// Monitor tracks connectivity for one engine. It never retries anything; it
// only records the last known state and fans transitions out to callbacks.
type Monitor struct {
	mu        sync.Mutex
	state     State
	nextID    int
	callbacks []callback

	// dispatch serializes transitions so callbacks observe them in order.
	dispatch sync.Mutex
}

type callback struct {
	id int
	fn func(State)
}

func NewMonitor(initial State) *Monitor {
	return &Monitor{state: initial}
}

func (m *Monitor) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnTransition registers fn for every future transition. Callbacks run
// synchronously inside Set and must not call Set themselves.
func (m *Monitor) OnTransition(fn func(State)) (unregister func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.callbacks = append(m.callbacks, callback{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, cb := range m.callbacks {
			if cb.id == id {
				m.callbacks = append(m.callbacks[:i:i], m.callbacks[i+1:]...)
				return
			}
		}
	}
}

// Set moves the monitor to state. It reports whether this was a transition;
// repeated identical signals are ignored.
func (m *Monitor) Set(state State) bool {
	m.dispatch.Lock()
	defer m.dispatch.Unlock()

	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return false
	}
	m.state = state
	cbs := make([]callback, len(m.callbacks))
	copy(cbs, m.callbacks)
	m.mu.Unlock()

	if state == Offline {
		logger.Sugar.Warn("You are offline - changes will sync when connection returns")
	} else {
		logger.Sugar.Info("Connection restored - syncing changes")
	}
	for _, cb := range cbs {
		cb.fn(state)
	}
	return true
}

// ReportFailure classifies a store error. An unreachable store forces Offline
// even if the platform has not reported it yet.
func (m *Monitor) ReportFailure(err error) docerr.Kind {
	kind := docerr.Classify(err)
	if kind == docerr.KindUnreachable {
		m.Set(Offline)
	}
	return kind
}

// ReportSuccess records a successful round trip to the store.
func (m *Monitor) ReportSuccess() {
	m.Set(Online)
}

// Watch feeds platform signals into the monitor until ctx is done or signal
// is closed.
func (m *Monitor) Watch(ctx context.Context, signal <-chan State) {
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-signal:
			if !ok {
				return
			}
			m.Set(state)
		}
	}
}
