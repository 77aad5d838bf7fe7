package session

import (
	"context"

	"collabdocs/internal/document/model"
)

// Store is the part of the authoritative document store a session talks to.
//
// Subscribe must return a channel that delivers the document's state every
// time it changes, including echoes of this process's own writes. The channel
// is closed when ctx is cancelled or the underlying stream breaks; a broken
// stream should deliver one Update with Err set before closing.
type Store interface {
	Get(ctx context.Context, id string) (model.Snapshot, error)
	Put(ctx context.Context, snap model.Snapshot, opts model.WriteOptions) (model.Snapshot, error)
	Subscribe(ctx context.Context, id string) (<-chan model.Update, error)
	// Rename retitles the document. Stores refuse it with
	// ErrPermissionDenied for anyone but the owner.
	Rename(ctx context.Context, id, title string) (model.Snapshot, error)
}

// SaveStatus is what an editor shows next to the document.
type SaveStatus int

const (
	StatusSaving SaveStatus = iota
	StatusSaved
	// StatusPendingSync means the last write could not reach the store; the
	// edit is kept locally and retried on the next cycle.
	StatusPendingSync
)

func (s SaveStatus) String() string {
	switch s {
	case StatusSaving:
		return "saving"
	case StatusSaved:
		return "saved"
	case StatusPendingSync:
		return "pending_sync"
	}
	return "unknown"
}

// Listener receives UI-facing events. Methods are called from session
// goroutines and must not block for long or call back into the session
// synchronously.
type Listener interface {
	// Refresh is called when the editor buffer must be replaced with doc.
	Refresh(doc model.Snapshot)
	Status(status SaveStatus)
	Connectivity(state State)
	// Fatal reports permission, validation and not-found errors.
	Fatal(err error)
}

// ListenerFuncs adapts optional functions to a Listener.
type ListenerFuncs struct {
	OnRefresh      func(doc model.Snapshot)
	OnStatus       func(status SaveStatus)
	OnConnectivity func(state State)
	OnFatal        func(err error)
}

func (f ListenerFuncs) Refresh(doc model.Snapshot) {
	if f.OnRefresh != nil {
		f.OnRefresh(doc)
	}
}

func (f ListenerFuncs) Status(status SaveStatus) {
	if f.OnStatus != nil {
		f.OnStatus(status)
	}
}

func (f ListenerFuncs) Connectivity(state State) {
	if f.OnConnectivity != nil {
		f.OnConnectivity(state)
	}
}

func (f ListenerFuncs) Fatal(err error) {
	if f.OnFatal != nil {
		f.OnFatal(err)
	}
}
