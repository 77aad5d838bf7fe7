package session

import (
	"context"
	"fmt"
	"time"

	"collabdocs/internal/document/model"
	"collabdocs/pkg/docerr"
	"collabdocs/pkg/logger"
)

// watch keeps one subscription to the document alive until ctx is done,
// resubscribing after stream failures once connectivity returns or
// ResubscribeDelay passes.
func (s *Session) watch(ctx context.Context) {
	defer close(s.done)

	for {
		updates, err := s.store.Subscribe(ctx, s.id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if s.stopOnFatal(err) {
				return
			}
			s.monitor.ReportFailure(fmt.Errorf("%w: subscribe: %v", docerr.ErrStoreUnreachable, err))
		} else if stop := s.consume(ctx, updates); stop {
			return
		}
		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-s.reconnect:
		case <-time.After(s.resubscribeDelay()):
		}
		logger.Sugar.Infof("Resubscribing to document %s", s.id)
	}
}

// consume applies pushed snapshots until the stream ends. It reports true when
// the subscriber should stop for good.
func (s *Session) consume(ctx context.Context, updates <-chan model.Update) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case u, ok := <-updates:
			if !ok {
				return false
			}
			if u.Err != nil {
				if s.stopOnFatal(u.Err) {
					return true
				}
				// A broken stream is an offline signal, never fatal.
				s.monitor.ReportFailure(fmt.Errorf("%w: %v", docerr.ErrStoreUnreachable, u.Err))
				return false
			}
			s.applyRemote(u.Snapshot)
		}
	}
}

func (s *Session) stopOnFatal(err error) bool {
	switch docerr.Classify(err) {
	case docerr.KindNotFound, docerr.KindPermission:
		logger.Sugar.Errorf("Subscription to document %s ended: %v", s.id, err)
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if !closed {
			s.listener.Fatal(err)
		}
		return true
	}
	return false
}

// applyRemote folds a pushed snapshot into the session. The editor buffer is
// replaced only when the pushed text differs from what is displayed and there
// are no local edits waiting to be written; otherwise in-progress typing would
// be overwritten.
func (s *Session) applyRemote(snap model.Snapshot) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if snap.LastUpdatedAt.Before(s.remote.LastUpdatedAt) {
		s.mu.Unlock()
		return
	}
	s.remote = snap.Clone()

	s.local.OwnerEmail = snap.OwnerEmail
	s.local.OwnerName = snap.OwnerName
	s.local.Collaborators = append([]string(nil), snap.Collaborators...)
	s.local.LastUpdatedByEmail = snap.LastUpdatedByEmail
	s.local.LastUpdatedByName = snap.LastUpdatedByName
	s.local.LastUpdatedAt = snap.LastUpdatedAt

	refresh := false
	if !s.local.SameText(snap) && !s.dirty && s.inflight == 0 {
		s.local.Content = snap.Content
		s.local.Title = snap.Title
		refresh = true
	}
	view := s.local.Clone()
	s.mu.Unlock()

	if refresh {
		s.listener.Refresh(view)
	}
}

func (s *Session) resubscribeDelay() time.Duration {
	if s.cfg.ResubscribeDelay > 0 {
		return s.cfg.ResubscribeDelay
	}
	return time.Second
}
