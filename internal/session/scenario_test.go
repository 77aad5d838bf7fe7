package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"collabdocs/internal/document/model"
	"collabdocs/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inbox struct {
	mu   sync.Mutex
	mail map[string][]model.NotificationEvent
}

func (i *inbox) Send(_ context.Context, recipient string, ev model.NotificationEvent) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.mail == nil {
		i.mail = make(map[string][]model.NotificationEvent)
	}
	i.mail[recipient] = append(i.mail[recipient], ev)
	return nil
}

func (i *inbox) count(recipient string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.mail[recipient])
}

func withPipeline(store *fakeStore, mailer notify.Mailer) {
	store.pipeline = notify.NewPipeline(
		notify.NewResolver(store, notify.ScopeAuto),
		notify.NewDispatcher(mailer, time.Second),
	)
}

// U1 creates D; U2 types "hello" and pauses. One write, one mail to U1,
// nothing to U2.
func TestScenarioTypingNotifiesOwnerOnce(t *testing.T) {
	doc := testDoc()
	doc.Content = ""
	store := newFakeStore(doc)
	mail := &inbox{}
	withPipeline(store, mail)

	quiet := 60 * time.Millisecond
	_, s := openSession(t, store, testConfig(quiet), nil)
	for _, text := range []string{"h", "he", "hel", "hell", "hello"} {
		s.OnEdit(text, "T")
	}

	require.Eventually(t, func() bool { return len(store.writes()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(3 * quiet)
	store.notified.Wait()

	writes := store.writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "hello", writes[0].snap.Content)
	assert.Equal(t, editor.Email, writes[0].snap.LastUpdatedByEmail)
	assert.Equal(t, 1, mail.count(owner.Email))
	assert.Equal(t, 0, mail.count(editor.Email))
}

// Two edits within the quiet period persist once, with the final content.
func TestScenarioTwoQuickEditsOneWrite(t *testing.T) {
	store := newFakeStore(testDoc())
	quiet := 120 * time.Millisecond
	_, s := openSession(t, store, testConfig(quiet), nil)

	s.OnEdit("draft", "T")
	time.Sleep(40 * time.Millisecond)
	s.OnEdit("draft, revised", "T")

	require.Eventually(t, func() bool { return len(store.writes()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * quiet)
	writes := store.writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "draft, revised", writes[0].snap.Content)
}

// The store goes away mid-edit: the session goes offline, keeps taking edits,
// and syncs everything once connectivity returns.
func TestScenarioOfflineEditsSyncOnReconnect(t *testing.T) {
	store := newFakeStore(testDoc())
	rec := &recorder{}
	quiet := 30 * time.Millisecond
	engine, s := openSession(t, store, testConfig(quiet), rec)

	s.OnEdit("a", "T")
	require.Eventually(t, func() bool { return len(store.writes()) == 1 }, time.Second, 5*time.Millisecond)

	store.setUnreachable(true)
	s.OnEdit("ab", "T")
	require.Eventually(t, func() bool { return engine.Monitor().Current() == Offline }, time.Second, 5*time.Millisecond)
	assert.Contains(t, rec.snapshotStatuses(), StatusPendingSync)

	s.OnEdit("abc", "T")
	assert.Equal(t, "abc", s.Local().Content)
	time.Sleep(3 * quiet)
	assert.True(t, s.Pending())
	require.Len(t, store.writes(), 1)

	store.setUnreachable(false)
	engine.Monitor().Set(Online)

	require.Eventually(t, func() bool {
		w := store.writes()
		return len(w) == 2 && w[1].snap.Content == "abc"
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !s.Pending() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Online, engine.Monitor().Current())
	assert.Equal(t, "abc", s.Remote().Content)
}

// Without a platform signal the next flush both succeeds and brings the
// monitor back online.
func TestScenarioNextFlushRestoresOnline(t *testing.T) {
	store := newFakeStore(testDoc())
	engine, s := openSession(t, store, testConfig(time.Hour), nil)

	store.setUnreachable(true)
	s.OnEdit("offline text", "T")
	require.NoError(t, s.ForceFlush(context.Background(), false))
	assert.Equal(t, Offline, engine.Monitor().Current())

	store.setUnreachable(false)
	require.NoError(t, s.ForceFlush(context.Background(), false))
	assert.Equal(t, Online, engine.Monitor().Current())
	assert.Equal(t, "offline text", store.writes()[0].snap.Content)
}
