package model

import (
	"sort"
	"strings"
	"time"
)

const DefaultTitle = "New Document"

// Identity is the acting user as supplied by the identity provider.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Snapshot is one point-in-time state of a document.
type Snapshot struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Content            string    `json:"content"`
	OwnerEmail         string    `json:"owner_email"`
	OwnerName          string    `json:"owner_name"`
	Collaborators      []string  `json:"collaborators"`
	LastUpdatedByEmail string    `json:"last_updated_by_email"`
	LastUpdatedByName  string    `json:"last_updated_by_name"`
	LastUpdatedAt      time.Time `json:"last_updated_at"`
	CreatedAt          time.Time `json:"created_at"`
}

// Clone returns a copy that shares no memory with s.
func (s Snapshot) Clone() Snapshot {
	c := s
	if s.Collaborators != nil {
		c.Collaborators = append([]string(nil), s.Collaborators...)
	}
	return c
}

// Normalize de-duplicates the collaborator set and makes sure the owner is a
// member of it.
func (s *Snapshot) Normalize() {
	seen := make(map[string]bool, len(s.Collaborators)+1)
	out := make([]string, 0, len(s.Collaborators)+1)
	add := func(email string) {
		key := NormalizeEmail(email)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(email))
	}
	add(s.OwnerEmail)
	for _, c := range s.Collaborators {
		add(c)
	}
	s.Collaborators = out
}

// SameText reports whether the editor-visible fields match.
func (s Snapshot) SameText(o Snapshot) bool {
	return s.Content == o.Content && s.Title == o.Title
}

// IsOwner reports whether email owns the document.
func (s Snapshot) IsOwner(email string) bool {
	key := NormalizeEmail(email)
	return key != "" && NormalizeEmail(s.OwnerEmail) == key
}

// HasMember reports whether email is the owner or a collaborator.
func (s Snapshot) HasMember(email string) bool {
	key := NormalizeEmail(email)
	if key == "" {
		return false
	}
	if NormalizeEmail(s.OwnerEmail) == key {
		return true
	}
	for _, c := range s.Collaborators {
		if NormalizeEmail(c) == key {
			return true
		}
	}
	return false
}

// NormalizeEmail is the comparison key for email identities.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Update is one element of a document subscription stream. Exactly one of
// Snapshot or Err is meaningful.
type Update struct {
	Snapshot Snapshot
	Err      error
}

// WriteOptions travel with a Put.
type WriteOptions struct {
	Seq    uint64 `json:"seq"`
	Notify bool   `json:"notify"`
	Action string `json:"action,omitempty"`
}

// NotificationEvent is the complete field set a notification template sees.
type NotificationEvent struct {
	DocumentID       string    `json:"document_id"`
	Title            string    `json:"title"`
	ActorEmail       string    `json:"actor_email"`
	ActorDisplayName string    `json:"actor_display_name"`
	Action           string    `json:"action"`
	Timestamp        time.Time `json:"timestamp"`
	Recipients       []string  `json:"recipients"`
	// ContentAdded is true when the document had no content before the change.
	ContentAdded bool `json:"content_added"`
}

// SortByField orders docs in place, newest first, by one of the orderable
// fields. It reports false for an unknown field.
func SortByField(docs []Snapshot, field string) bool {
	var less func(a, b Snapshot) bool
	switch field {
	case "", "lastUpdatedAt", "last_updated_at":
		less = func(a, b Snapshot) bool { return a.LastUpdatedAt.After(b.LastUpdatedAt) }
	case "createdAt", "created_at":
		less = func(a, b Snapshot) bool { return a.CreatedAt.After(b.CreatedAt) }
	case "title":
		less = func(a, b Snapshot) bool { return a.Title < b.Title }
	default:
		return false
	}
	sort.SliceStable(docs, func(i, j int) bool { return less(docs[i], docs[j]) })
	return true
}

type CreateDocRequest struct {
	Title string `json:"title"`
}

type UpdateDocRequest struct {
	Title string `json:"title"`
}

type InviteRequest struct {
	DocID string `json:"document_id"`
	Email string `json:"email"`
}

type SaveDocRequest struct {
	Snapshot Snapshot     `json:"snapshot"`
	Options  WriteOptions `json:"options"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
