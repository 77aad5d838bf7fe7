package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"collabdocs/internal/document/model"
	"collabdocs/internal/notify"
	"collabdocs/pkg/docerr"
)

type putCall struct {
	snap model.Snapshot
	opts model.WriteOptions
}

// fakeStore is an in-memory last-writer-wins store that echoes every write to
// its subscribers and can run the notification pipeline like the server does.
type fakeStore struct {
	mu             sync.Mutex
	docs           map[string]model.Snapshot
	puts           []putCall
	attempts       int
	subs           map[string][]chan model.Update
	subscribeCalls int
	unreachable    bool
	putErr         error
	renameErr      error
	keepTitle      bool
	silent         bool
	putHook        func(n int)
	clock          time.Time

	pipeline *notify.Pipeline
	notified sync.WaitGroup
}

func newFakeStore(docs ...model.Snapshot) *fakeStore {
	f := &fakeStore{
		docs:  make(map[string]model.Snapshot),
		subs:  make(map[string][]chan model.Update),
		clock: time.Now(),
	}
	for _, d := range docs {
		d.Normalize()
		if d.LastUpdatedAt.IsZero() {
			d.LastUpdatedAt = f.clock
		}
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeStore) Get(_ context.Context, id string) (model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable {
		return model.Snapshot{}, fmt.Errorf("get %s: %w", id, docerr.ErrStoreUnreachable)
	}
	d, ok := f.docs[id]
	if !ok {
		return model.Snapshot{}, fmt.Errorf("get %s: %w", id, docerr.ErrNotFound)
	}
	return d.Clone(), nil
}

func (f *fakeStore) ListAll(context.Context) ([]model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Snapshot, 0, len(f.docs))
	for _, d := range f.docs {
		out = append(out, d.Clone())
	}
	return out, nil
}

func (f *fakeStore) Put(_ context.Context, snap model.Snapshot, opts model.WriteOptions) (model.Snapshot, error) {
	f.mu.Lock()
	f.attempts++
	n := f.attempts
	hook := f.putHook
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}

	f.mu.Lock()
	if f.unreachable {
		f.mu.Unlock()
		return model.Snapshot{}, fmt.Errorf("put %s: %w", snap.ID, docerr.ErrStoreUnreachable)
	}
	if f.putErr != nil {
		err := f.putErr
		f.mu.Unlock()
		return model.Snapshot{}, err
	}
	before, ok := f.docs[snap.ID]
	if !ok {
		f.mu.Unlock()
		return model.Snapshot{}, fmt.Errorf("put %s: %w", snap.ID, docerr.ErrNotFound)
	}
	after := before.Clone()
	if !f.keepTitle {
		after.Title = snap.Title
	}
	after.Content = snap.Content
	after.Collaborators = append([]string(nil), snap.Collaborators...)
	after.LastUpdatedByEmail = snap.LastUpdatedByEmail
	after.LastUpdatedByName = snap.LastUpdatedByName
	f.clock = f.clock.Add(time.Millisecond)
	after.LastUpdatedAt = f.clock
	after.Normalize()
	f.docs[snap.ID] = after
	f.puts = append(f.puts, putCall{snap: snap.Clone(), opts: opts})
	if !f.silent {
		for _, ch := range f.subs[snap.ID] {
			select {
			case ch <- model.Update{Snapshot: after.Clone()}:
			default:
			}
		}
	}
	pipeline := f.pipeline
	if opts.Notify && pipeline != nil {
		f.notified.Add(1)
	}
	f.mu.Unlock()

	if opts.Notify && pipeline != nil {
		go func() {
			defer f.notified.Done()
			_, _, _ = pipeline.Run(context.Background(), before, after, opts.Action)
		}()
	}
	return after.Clone(), nil
}

// Rename stands in for the owner-only rename endpoint; renameErr is its
// refusal.
func (f *fakeStore) Rename(ctx context.Context, id, title string) (model.Snapshot, error) {
	f.mu.Lock()
	err := f.renameErr
	if f.unreachable {
		err = fmt.Errorf("rename %s: %w", id, docerr.ErrStoreUnreachable)
	}
	f.mu.Unlock()
	if err != nil {
		return model.Snapshot{}, err
	}
	current, err := f.Get(ctx, id)
	if err != nil {
		return model.Snapshot{}, err
	}
	current.Title = title
	return f.Put(ctx, current, model.WriteOptions{Notify: true, Action: ActionRenamed})
}

func (f *fakeStore) Subscribe(ctx context.Context, id string) (<-chan model.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCalls++
	if f.unreachable {
		return nil, fmt.Errorf("subscribe %s: %w", id, docerr.ErrStoreUnreachable)
	}
	if _, ok := f.docs[id]; !ok {
		return nil, fmt.Errorf("subscribe %s: %w", id, docerr.ErrNotFound)
	}
	ch := make(chan model.Update, 64)
	f.subs[id] = append(f.subs[id], ch)
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		f.dropLocked(id, ch)
	}()
	return ch, nil
}

func (f *fakeStore) dropLocked(id string, ch chan model.Update) {
	subs := f.subs[id]
	for i, c := range subs {
		if c == ch {
			f.subs[id] = append(subs[:i:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// push simulates a write by another client.
func (f *fakeStore) push(id string, mutate func(s *model.Snapshot)) model.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.docs[id].Clone()
	mutate(&d)
	f.clock = f.clock.Add(time.Millisecond)
	d.LastUpdatedAt = f.clock
	f.docs[id] = d
	for _, ch := range f.subs[id] {
		ch <- model.Update{Snapshot: d.Clone()}
	}
	return d
}

// breakStreams fails every open subscription.
func (f *fakeStore) breakStreams(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range append([]chan model.Update(nil), f.subs[id]...) {
		ch <- model.Update{Err: errors.New("connection reset")}
		f.dropLocked(id, ch)
	}
}

func (f *fakeStore) setUnreachable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreachable = v
}

func (f *fakeStore) writes() []putCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]putCall(nil), f.puts...)
}

func (f *fakeStore) subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribeCalls
}

func (f *fakeStore) activeSubs(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[id])
}

// recorder is a Listener that keeps everything it is told.
type recorder struct {
	mu        sync.Mutex
	refreshes []model.Snapshot
	statuses  []SaveStatus
	states    []State
	fatals    []error
}

func (r *recorder) Refresh(doc model.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes = append(r.refreshes, doc)
}

func (r *recorder) Status(s SaveStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) Connectivity(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) Fatal(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatals = append(r.fatals, err)
}

func (r *recorder) refreshCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refreshes)
}

func (r *recorder) lastRefresh() model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshes[len(r.refreshes)-1]
}

func (r *recorder) snapshotStatuses() []SaveStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SaveStatus(nil), r.statuses...)
}

func (r *recorder) fatalCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fatals)
}
