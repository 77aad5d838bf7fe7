package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"collabdocs/internal/document/model"
	"collabdocs/pkg/logger"
)

var ErrAlreadyOpen = errors.New("document already open")

// Engine owns every open session of one client process and the connectivity
// monitor they share.
type Engine struct {
	store   Store
	monitor *Monitor
	cfg     Config

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewEngine(store Store, cfg Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:    store,
		monitor:  NewMonitor(Online),
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

func (e *Engine) Monitor() *Monitor { return e.monitor }

// WatchConnectivity feeds a platform connectivity signal into the engine's
// monitor. It returns when ctx is done, the engine shuts down or signal closes.
func (e *Engine) WatchConnectivity(ctx context.Context, signal <-chan State) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	e.monitor.Watch(ctx, signal)
}

// Open loads a document and starts a session on it for actor. Only one session
// per document may be open at a time.
func (e *Engine) Open(ctx context.Context, docID string, actor model.Identity, l Listener) (*Session, error) {
	if err := e.ctx.Err(); err != nil {
		return nil, fmt.Errorf("engine stopped: %w", err)
	}
	e.mu.Lock()
	_, open := e.sessions[docID]
	e.mu.Unlock()
	if open {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyOpen, docID)
	}

	doc, err := e.store.Get(ctx, docID)
	if err != nil {
		e.monitor.ReportFailure(err)
		return nil, fmt.Errorf("open document %s: %w", docID, err)
	}
	e.monitor.ReportSuccess()

	s := newSession(doc, actor, e.store, e.monitor, e.cfg, l)
	s.onClose = func() { e.forget(s) }

	e.mu.Lock()
	if _, open := e.sessions[docID]; open {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyOpen, docID)
	}
	e.sessions[docID] = s
	e.mu.Unlock()

	s.start(e.ctx)
	logger.Sugar.Infof("Opened document %s for %s", docID, actor.Email)
	return s, nil
}

// Session returns the open session for docID, if any.
func (e *Engine) Session(docID string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[docID]
	return s, ok
}

// Close closes the session for docID if one is open.
func (e *Engine) Close(docID string) {
	if s, ok := e.Session(docID); ok {
		s.Close()
	}
}

func (e *Engine) forget(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessions[s.id] == s {
		delete(e.sessions, s.id)
	}
}

// Shutdown closes every session and waits for their final writes until ctx
// is done.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	open := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		open = append(open, s)
	}
	e.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
	e.cancel()

	var errs []error
	for _, s := range open {
		if err := s.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", s.id, err))
		}
	}
	return errors.Join(errs...)
}
