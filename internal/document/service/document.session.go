package service

import (
	"context"

	"collabdocs/internal/document/model"
)

// SessionStore is the document service seen by one user. It satisfies the
// store an editing session needs, so a session can run in the same process as
// the service with every access check still applied.
type SessionStore struct {
	svc   *DocumentService
	actor model.Identity
}

// As binds the service to actor.
func (s *DocumentService) As(actor model.Identity) *SessionStore {
	return &SessionStore{svc: s, actor: actor}
}

func (st *SessionStore) Get(ctx context.Context, id string) (model.Snapshot, error) {
	return st.svc.GetDocument(ctx, st.actor, id)
}

func (st *SessionStore) Put(ctx context.Context, snap model.Snapshot, opts model.WriteOptions) (model.Snapshot, error) {
	return st.svc.SaveDocument(ctx, st.actor, snap, opts)
}

func (st *SessionStore) Rename(ctx context.Context, id, title string) (model.Snapshot, error) {
	return st.svc.RenameDocument(ctx, st.actor, id, title)
}

func (st *SessionStore) Subscribe(ctx context.Context, id string) (<-chan model.Update, error) {
	return st.svc.Subscribe(ctx, st.actor, id)
}
