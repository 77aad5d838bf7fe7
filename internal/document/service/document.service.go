package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"collabdocs/internal/document/model"
	"collabdocs/internal/document/repository"
	"collabdocs/internal/notify"
	"collabdocs/pkg/docerr"
	"collabdocs/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher fans written snapshots out to subscribers.
type Publisher interface {
	Publish(ctx context.Context, doc model.Snapshot) error
	Subscribe(ctx context.Context, id string) (<-chan model.Update, error)
}

// Notifier runs the collaborator notification pipeline for one write.
type Notifier interface {
	Run(ctx context.Context, before, after model.Snapshot, action string) (notify.ChangeClass, []notify.Outcome, error)
}

// DocumentRemover drops live state for a deleted document.
type DocumentRemover interface {
	RemoveDocument(docID string)
}

type DocumentService struct {
	Repo     *repository.DocumentRepository
	Feed     Publisher
	Notifier Notifier
	Hub      DocumentRemover
	// NotifyTimeout bounds one background notification run.
	NotifyTimeout time.Duration

	notifications sync.WaitGroup
}

func NewDocumentService(repo *repository.DocumentRepository, feed Publisher, hub DocumentRemover) *DocumentService {
	return &DocumentService{Repo: repo, Feed: feed, Hub: hub, NotifyTimeout: time.Minute}
}

// CreateDocument stores a blank document owned by actor.
func (s *DocumentService) CreateDocument(ctx context.Context, actor model.Identity, title string) (model.Snapshot, error) {
	if strings.TrimSpace(actor.Email) == "" {
		return model.Snapshot{}, fmt.Errorf("%w: creator email is required", docerr.ErrValidation)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = model.DefaultTitle
	}
	return s.Repo.Create(ctx, model.Snapshot{
		ID:                 uuid.NewString(),
		Title:              title,
		OwnerEmail:         actor.Email,
		OwnerName:          actor.Name,
		Collaborators:      []string{actor.Email},
		LastUpdatedByEmail: actor.Email,
		LastUpdatedByName:  actor.Name,
	})
}

// GetDocument returns id if actor may open it.
func (s *DocumentService) GetDocument(ctx context.Context, actor model.Identity, id string) (model.Snapshot, error) {
	doc, err := s.Repo.Get(ctx, id)
	if err != nil {
		return model.Snapshot{}, err
	}
	if !doc.HasMember(actor.Email) {
		return model.Snapshot{}, fmt.Errorf("%w: %s cannot open %s", docerr.ErrPermissionDenied, actor.Email, id)
	}
	return doc, nil
}

// SaveDocument writes doc on behalf of actor. The last-writer fields are
// taken from actor, never from the request. Membership is checked against the
// locked row, and the notification pipeline compares that same row with the
// written one.
func (s *DocumentService) SaveDocument(ctx context.Context, actor model.Identity, doc model.Snapshot, opts model.WriteOptions) (model.Snapshot, error) {
	before, written, err := s.Repo.PutReturningPrevious(ctx, doc.ID, func(current model.Snapshot) (model.Snapshot, error) {
		if !current.HasMember(actor.Email) {
			return model.Snapshot{}, fmt.Errorf("%w: %s cannot edit %s", docerr.ErrPermissionDenied, actor.Email, doc.ID)
		}
		// Ownership and membership are not changed by a content write.
		next := current.Clone()
		next.Content = doc.Content
		// Only the owner renames; a collaborator's copy of the title is ignored.
		if current.IsOwner(actor.Email) {
			next.Title = doc.Title
		}
		next.LastUpdatedByEmail = actor.Email
		next.LastUpdatedByName = actor.Name
		return next, nil
	})
	if err != nil {
		return model.Snapshot{}, err
	}
	s.written(ctx, before, written, opts)
	return written, nil
}

// written publishes a committed write and, when asked, notifies collaborators.
func (s *DocumentService) written(ctx context.Context, before, after model.Snapshot, opts model.WriteOptions) {
	logger.Log.Debug("document written",
		zap.String("document", after.ID),
		zap.Uint64("seq", opts.Seq),
		zap.String("by", after.LastUpdatedByEmail))

	s.publish(ctx, after)
	if opts.Notify {
		s.notify(before, after, opts.Action)
	}
}

func (s *DocumentService) publish(ctx context.Context, doc model.Snapshot) {
	if s.Feed == nil {
		return
	}
	if err := s.Feed.Publish(ctx, doc); err != nil {
		logger.Sugar.Warnf("Failed to publish document %s: %v", doc.ID, err)
	}
}

// notify runs the pipeline in the background so the writer never waits on mail.
func (s *DocumentService) notify(before, after model.Snapshot, action string) {
	if s.Notifier == nil {
		return
	}
	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, _, err := s.Notifier.Run(ctx, before.Clone(), after.Clone(), action); err != nil {
			logger.Sugar.Errorf("Notification for document %s failed: %v", after.ID, err)
		}
	}()
}

// WaitNotifications blocks until background notification runs finish or ctx
// is done.
func (s *DocumentService) WaitNotifications(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.notifications.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe streams the current state of id followed by every later write.
// actor must be able to open the document.
func (s *DocumentService) Subscribe(ctx context.Context, actor model.Identity, id string) (<-chan model.Update, error) {
	if s.Feed == nil {
		return nil, fmt.Errorf("%w: no document feed configured", docerr.ErrStoreUnreachable)
	}
	ctx, cancel := context.WithCancel(ctx)
	updates, err := s.Feed.Subscribe(ctx, id)
	if err != nil {
		cancel()
		return nil, err
	}
	current, err := s.GetDocument(ctx, actor, id)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan model.Update)
	go func() {
		defer cancel()
		defer close(out)
		select {
		case out <- model.Update{Snapshot: current}:
		case <-ctx.Done():
			return
		}
		for u := range updates {
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *DocumentService) ListAll(ctx context.Context) ([]model.Snapshot, error) {
	return s.Repo.ListAll(ctx)
}

// ListOrderedBy falls back to an unordered scan sorted in memory when the
// ordered query fails for a reason other than connectivity.
func (s *DocumentService) ListOrderedBy(ctx context.Context, field string) ([]model.Snapshot, error) {
	docs, err := s.Repo.ListOrderedBy(ctx, field)
	if err == nil {
		return docs, nil
	}
	if docerr.IsTransient(err) {
		return nil, err
	}
	logger.Sugar.Warnf("Ordered listing by %q failed, sorting in memory: %v", field, err)
	docs, listErr := s.Repo.ListAll(ctx)
	if listErr != nil {
		return nil, listErr
	}
	if !model.SortByField(docs, field) {
		return nil, err
	}
	return docs, nil
}

// GetDocuments lists the documents actor owns or collaborates on.
func (s *DocumentService) GetDocuments(ctx context.Context, actor model.Identity, orderBy string) ([]model.Snapshot, error) {
	if orderBy == "" {
		orderBy = "lastUpdatedAt"
	}
	docs, err := s.ListOrderedBy(ctx, orderBy)
	if err != nil {
		return nil, err
	}
	visible := make([]model.Snapshot, 0, len(docs))
	for _, doc := range docs {
		if doc.HasMember(actor.Email) {
			visible = append(visible, doc)
		}
	}
	return visible, nil
}

// RenameDocument sets a new title. Only the owner may rename.
func (s *DocumentService) RenameDocument(ctx context.Context, actor model.Identity, id, title string) (model.Snapshot, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Snapshot{}, fmt.Errorf("%w: title cannot be empty", docerr.ErrValidation)
	}
	before, written, err := s.Repo.PutReturningPrevious(ctx, id, func(current model.Snapshot) (model.Snapshot, error) {
		if !current.IsOwner(actor.Email) {
			return model.Snapshot{}, fmt.Errorf("%w: only the owner can rename %s", docerr.ErrPermissionDenied, id)
		}
		next := current.Clone()
		next.Title = title
		next.LastUpdatedByEmail = actor.Email
		next.LastUpdatedByName = actor.Name
		return next, nil
	})
	if err != nil {
		return model.Snapshot{}, err
	}
	s.written(ctx, before, written, model.WriteOptions{Notify: true, Action: "renamed"})
	return written, nil
}

// DeleteDocument removes id. Only the owner may delete.
func (s *DocumentService) DeleteDocument(ctx context.Context, actor model.Identity, id string) error {
	doc, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !doc.IsOwner(actor.Email) {
		return fmt.Errorf("%w: only the owner can delete %s", docerr.ErrPermissionDenied, id)
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.Hub != nil {
		s.Hub.RemoveDocument(id)
	}
	return nil
}

// InviteCollaborator adds req.Email to the document. Only the owner may invite.
func (s *DocumentService) InviteCollaborator(ctx context.Context, actor model.Identity, req model.InviteRequest) (model.Snapshot, error) {
	email := strings.TrimSpace(req.Email)
	if req.DocID == "" || !strings.Contains(email, "@") {
		return model.Snapshot{}, fmt.Errorf("%w: a document id and a valid email are required", docerr.ErrValidation)
	}
	doc, err := s.Repo.Get(ctx, req.DocID)
	if err != nil {
		return model.Snapshot{}, err
	}
	if !doc.IsOwner(actor.Email) {
		return model.Snapshot{}, fmt.Errorf("%w: only the owner can invite to %s", docerr.ErrPermissionDenied, req.DocID)
	}
	if doc.HasMember(email) {
		return doc, nil
	}
	updated, err := s.Repo.AddCollaborator(ctx, req.DocID, email)
	if err != nil {
		return model.Snapshot{}, err
	}
	s.publish(ctx, updated)
	return updated, nil
}
