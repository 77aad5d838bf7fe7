package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"collabdocs/internal/document/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMailerLogsSubject(t *testing.T) {
	var lines []string
	m := LogMailer{
		Renderer: HTMLRenderer{},
		Logf:     func(format string, args ...interface{}) { lines = append(lines, fmt.Sprintf(format, args...)) },
	}
	event := model.NotificationEvent{DocumentID: "d1", Title: "Plan", ActorDisplayName: "Ana", Timestamp: time.Now()}

	require.NoError(t, m.Send(context.Background(), "bo@example.com", event))
	require.Len(t, lines, 1)
	assert.Equal(t, "Mail to bo@example.com: Plan was updated by Ana", lines[0])
}

func TestSMTPMailerHonoursCancelledContext(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "noreply@example.com"}, HTMLRenderer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, "bo@example.com", model.NotificationEvent{Title: "Plan"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSMTPMailerUnreachableServer(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "noreply@example.com", Timeout: time.Second}, HTMLRenderer{})

	err := m.Send(context.Background(), "bo@example.com", model.NotificationEvent{Title: "Plan", ActorEmail: "ana@example.com"})
	assert.Error(t, err)
}
