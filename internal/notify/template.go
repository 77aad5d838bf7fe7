package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"collabdocs/internal/document/model"
)

// Renderer turns an event into a subject and an HTML body.
type Renderer interface {
	Render(event model.NotificationEvent) (subject, body string, err error)
}

var updateTemplate = template.Must(template.New("update").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1>Document Updated</h1>
  <p>You have a new update in your collaborative workspace.</p>
  <h2>{{.Title}}</h2>
  <ul>
    <li><strong>Updated by:</strong> {{.Actor}}</li>
    <li><strong>Email:</strong> {{.ActorEmail}}</li>
    <li><strong>Action:</strong> {{.Action}}</li>
    <li><strong>Time:</strong> {{.Time}}</li>
    <li><strong>Changes:</strong> Content {{if .ContentAdded}}added{{else}}modified{{end}}</li>
  </ul>
  {{if .Link}}<p><a href="{{.Link}}">Open Document</a></p>{{end}}
  <p style="color: #666; font-size: 12px;">This is an automated notification from your Document Collaboration System.</p>
</body>
</html>
`))

type HTMLRenderer struct {
	// AppURL is the base link placed in the message. May be empty.
	AppURL string
}

func (r HTMLRenderer) Render(event model.NotificationEvent) (string, string, error) {
	actor := DisplayName(event.ActorDisplayName, event.ActorEmail)
	actorEmail := event.ActorEmail
	if actorEmail == "" {
		actorEmail = "Not specified"
	}

	var link string
	if r.AppURL != "" {
		link = strings.TrimRight(r.AppURL, "/") + "/documents/" + event.DocumentID
	}

	var buf bytes.Buffer
	err := updateTemplate.Execute(&buf, struct {
		Title, Actor, ActorEmail, Action, Time, Link string
		ContentAdded                                 bool
	}{
		Title:        event.Title,
		Actor:        actor,
		ActorEmail:   actorEmail,
		Action:       event.Action,
		Time:         event.Timestamp.Format(time.RFC1123),
		Link:         link,
		ContentAdded: event.ContentAdded,
	})
	if err != nil {
		return "", "", fmt.Errorf("render notification: %w", err)
	}
	return fmt.Sprintf("%s was updated by %s", event.Title, actor), buf.String(), nil
}

// DisplayName picks the name shown for an actor: the display name, then the
// local part of the email, then "Someone".
func DisplayName(name, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	if email != "" {
		return email
	}
	return "Someone"
}
