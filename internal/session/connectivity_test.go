package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"collabdocs/pkg/docerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorFiresOncePerTransition(t *testing.T) {
	m := NewMonitor(Online)
	var seen []State
	m.OnTransition(func(s State) { seen = append(seen, s) })

	assert.False(t, m.Set(Online))
	assert.True(t, m.Set(Offline))
	assert.False(t, m.Set(Offline))
	assert.True(t, m.Set(Online))

	assert.Equal(t, []State{Offline, Online}, seen)
	assert.Equal(t, Online, m.Current())
}

func TestMonitorReportFailureClassifies(t *testing.T) {
	m := NewMonitor(Online)

	assert.Equal(t, docerr.KindPermission, m.ReportFailure(docerr.ErrPermissionDenied))
	assert.Equal(t, Online, m.Current())

	assert.Equal(t, docerr.KindUnknown, m.ReportFailure(errors.New("boom")))
	assert.Equal(t, Online, m.Current())

	assert.Equal(t, docerr.KindUnreachable, m.ReportFailure(docerr.ErrStoreUnreachable))
	assert.Equal(t, Offline, m.Current())

	m.ReportSuccess()
	assert.Equal(t, Online, m.Current())
}

func TestMonitorUnregister(t *testing.T) {
	m := NewMonitor(Online)
	calls := 0
	unregister := m.OnTransition(func(State) { calls++ })
	m.Set(Offline)
	unregister()
	m.Set(Online)
	assert.Equal(t, 1, calls)
}

func TestMonitorWatchSignal(t *testing.T) {
	m := NewMonitor(Online)
	signal := make(chan State)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Watch(ctx, signal)
		close(done)
	}()

	signal <- Offline
	require.Eventually(t, func() bool { return m.Current() == Offline }, time.Second, 5*time.Millisecond)
	signal <- Online
	require.Eventually(t, func() bool { return m.Current() == Online }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not exit")
	}
}
