package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"collabdocs/internal/document/model"
	"collabdocs/pkg/docerr"
	"collabdocs/pkg/logger"

	"go.uber.org/zap"
)

type flushRequest struct {
	force  bool
	notify bool
	// final is the write issued by Close; it is allowed on a closed session.
	final  bool
	action string
}

// OnEdit records the editor's current content and title and re-arms the
// autosave timer. It never blocks on I/O and never fails.
func (s *Session) OnEdit(content, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.local.Content = content
	s.local.Title = title
	s.dirty = true
	s.armLocked()
}

// ForceFlush writes the current local snapshot now, bypassing the quiet
// period. With notify set the store is asked to run the notification
// pipeline after a successful write. Transient store errors are absorbed;
// permission and validation errors are returned.
func (s *Session) ForceFlush(ctx context.Context, notify bool) error {
	return s.flush(ctx, flushRequest{force: true, notify: notify, action: ActionUpdated})
}

// Rename asks the store to retitle the document right away. A refusal is
// returned and reported to the listener, and the local title goes back to the
// stored one. While the store is unreachable the new title is kept and sent
// with the next write.
func (s *Session) Rename(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: document title cannot be empty", docerr.ErrValidation)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.seq++
	seq := s.seq
	s.local.Title = title
	s.inflight++
	s.writes.Add(1)
	s.mu.Unlock()
	defer s.writes.Done()

	s.listener.Status(StatusSaving)
	if s.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.WriteTimeout)
		defer cancel()
	}

	written, err := s.store.Rename(ctx, s.id, title)
	return s.complete(seq, written, err, func() {
		if s.local.Title == title {
			s.local.Title = s.remote.Title
		}
	})
}

// AppendContent appends text (for example an uploaded file's contents) to the
// document and saves it immediately.
func (s *Session) AppendContent(ctx context.Context, name, text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.local.Content != "" && !strings.HasSuffix(s.local.Content, "\n") {
		s.local.Content += "\n"
	}
	s.local.Content += text
	s.dirty = true
	s.mu.Unlock()
	return s.flush(ctx, flushRequest{force: true, notify: true, action: "uploaded file " + name})
}

func (s *Session) armLocked() {
	s.stopTimerLocked()
	gen := s.timerGen
	s.timer = time.AfterFunc(s.cfg.QuietPeriod, func() { s.onTimer(gen) })
}

// stopTimerLocked disarms the timer. Bumping the generation makes a callback
// that already fired but has not taken the lock yet a no-op.
func (s *Session) stopTimerLocked() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) onTimer(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.timerGen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	_ = s.flush(context.Background(), flushRequest{notify: s.cfg.AutosaveNotify, action: ActionUpdated})
}

func (s *Session) flush(ctx context.Context, req flushRequest) error {
	s.mu.Lock()
	if s.closed && !req.final {
		s.mu.Unlock()
		return ErrClosed
	}
	if !req.force && !s.dirty {
		s.mu.Unlock()
		return nil
	}
	if req.force && !req.final {
		s.stopTimerLocked()
	}
	s.seq++
	seq := s.seq
	snap := s.local.Clone()
	snap.LastUpdatedByEmail = s.actor.Email
	snap.LastUpdatedByName = s.actor.Name
	s.dirty = false
	s.inflight++
	s.writes.Add(1)
	closed := s.closed
	s.mu.Unlock()
	defer s.writes.Done()

	if !closed {
		s.listener.Status(StatusSaving)
	}
	if s.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.WriteTimeout)
		defer cancel()
	}

	written, err := s.store.Put(ctx, snap, model.WriteOptions{Seq: seq, Notify: req.notify, Action: req.action})
	return s.complete(seq, written, err, nil)
}

// complete records the outcome of write seq. On a permission or validation
// error, rollback (when set) is called under the lock instead of marking the
// edit pending again.
func (s *Session) complete(seq uint64, written model.Snapshot, err error, rollback func()) error {
	log := logger.Log.With(zap.String("document_id", s.id), zap.Uint64("seq", seq))

	if err != nil {
		kind := s.monitor.ReportFailure(err)
		s.mu.Lock()
		s.inflight--
		if kind != docerr.KindUnreachable && rollback != nil {
			rollback()
		} else {
			// The write did not land; whatever it carried is pending again.
			s.dirty = true
		}
		closed := s.closed
		s.mu.Unlock()

		if kind == docerr.KindUnreachable {
			log.Warn("store unreachable, edit kept for sync", zap.Error(err))
			if !closed {
				s.listener.Status(StatusPendingSync)
			}
			return nil
		}
		log.Error("save failed", zap.Error(err), zap.Stringer("kind", kind))
		if !closed {
			s.listener.Fatal(err)
		}
		return err
	}

	s.monitor.ReportSuccess()
	s.mu.Lock()
	s.inflight--
	var retitled *model.Snapshot
	if seq >= s.applied {
		s.applied = seq
		s.remote = written.Clone()
		s.local.LastUpdatedAt = written.LastUpdatedAt
		s.local.LastUpdatedByEmail = written.LastUpdatedByEmail
		s.local.LastUpdatedByName = written.LastUpdatedByName
		s.local.Collaborators = append([]string(nil), written.Collaborators...)
		// The store kept its own title (only owners rename). With nothing
		// newer pending, the editor has to show the stored one.
		if !s.dirty && s.inflight == 0 && written.Title != s.local.Title {
			s.local.Title = written.Title
			doc := s.local.Clone()
			retitled = &doc
		}
	} else {
		log.Debug("stale write completion ignored", zap.Uint64("applied", s.applied))
	}
	closed := s.closed
	s.mu.Unlock()

	log.Debug("document saved")
	if !closed {
		if retitled != nil {
			log.Warn("title not accepted by the store", zap.String("title", retitled.Title))
			s.listener.Refresh(*retitled)
		}
		s.listener.Status(StatusSaved)
	}
	return nil
}
