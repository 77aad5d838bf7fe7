package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"collabdocs/internal/document/model"
)

var ErrClosed = errors.New("session closed")

// Session is the live binding of one open document to one acting user. All
// mutable fields are guarded by mu; the debounce timer, the subscription
// goroutine and write completions all go through it.
type Session struct {
	id       string
	actor    model.Identity
	store    Store
	monitor  *Monitor
	cfg      Config
	listener Listener

	mu       sync.Mutex
	local    model.Snapshot
	remote   model.Snapshot
	dirty    bool
	seq      uint64
	applied  uint64
	inflight int
	timer    *time.Timer
	timerGen uint64
	closed   bool

	cancel     context.CancelFunc
	reconnect  chan struct{}
	done       chan struct{}
	writes     sync.WaitGroup
	unregister func()
	onClose    func()
}

func newSession(doc model.Snapshot, actor model.Identity, store Store, monitor *Monitor, cfg Config, l Listener) *Session {
	if l == nil {
		l = ListenerFuncs{}
	}
	return &Session{
		id:        doc.ID,
		actor:     actor,
		store:     store,
		monitor:   monitor,
		cfg:       cfg,
		listener:  l,
		local:     doc.Clone(),
		remote:    doc.Clone(),
		reconnect: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (s *Session) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.unregister = s.monitor.OnTransition(s.onConnectivity)
	go s.watch(ctx)
}

func (s *Session) ID() string { return s.id }

func (s *Session) Actor() model.Identity { return s.actor }

// Local returns what the editor should be displaying.
func (s *Session) Local() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local.Clone()
}

// Remote returns the last state observed from the store.
func (s *Session) Remote() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote.Clone()
}

// Pending reports whether there are local edits the store has not accepted.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty || s.inflight > 0
}

func (s *Session) Connectivity() State {
	return s.monitor.Current()
}

// Close cancels the subscription and any armed timer. It does not wait for
// in-flight writes; unsaved edits get one last background write when
// FlushOnClose is set. Completions after Close never reach the listener.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTimerLocked()
	final := s.dirty && s.cfg.FlushOnClose
	s.mu.Unlock()

	s.unregister()
	s.cancel()
	if final {
		s.writes.Add(1)
		go func() {
			defer s.writes.Done()
			_ = s.flush(context.Background(), flushRequest{force: true, final: true, action: ActionUpdated})
		}()
	}
	if s.onClose != nil {
		s.onClose()
	}
}

// Wait blocks until a closed session's subscription has stopped and its
// in-flight writes have completed, or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		<-s.done
		s.writes.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) onConnectivity(state State) {
	s.mu.Lock()
	closed := s.closed
	retry := state == Online && s.dirty && s.inflight == 0
	s.mu.Unlock()
	if closed {
		return
	}

	s.listener.Connectivity(state)
	if state != Online {
		return
	}
	select {
	case s.reconnect <- struct{}{}:
	default:
	}
	if retry {
		go func() {
			_ = s.flush(context.Background(), flushRequest{notify: s.cfg.AutosaveNotify, action: ActionUpdated})
		}()
	}
}
