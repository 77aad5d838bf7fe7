package notify

import (
	"context"
	"errors"
	"testing"

	"collabdocs/internal/document/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listerStub struct {
	docs  []model.Snapshot
	err   error
	calls int
}

func (l *listerStub) ListAll(context.Context) ([]model.Snapshot, error) {
	l.calls++
	return l.docs, l.err
}

func TestResolveDocumentScope(t *testing.T) {
	doc := model.Snapshot{
		OwnerEmail:    "owner@example.com",
		Collaborators: []string{"owner@example.com", "b@example.com", "actor@example.com"},
	}
	lister := &listerStub{}
	r := NewResolver(lister, ScopeDocument)

	got, err := r.Resolve(context.Background(), doc, "actor@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"b@example.com", "owner@example.com"}, got)
	assert.Zero(t, lister.calls)
}

func TestResolveGlobalScopeDedupsAcrossDocuments(t *testing.T) {
	lister := &listerStub{docs: []model.Snapshot{
		{OwnerEmail: "a@example.com", Collaborators: []string{"a@example.com", "b@example.com"}},
		{OwnerEmail: "b@example.com", Collaborators: []string{"B@example.com", "c@example.com"}},
		{OwnerEmail: "actor@example.com", Collaborators: []string{"ACTOR@example.com ", "a@example.com"}},
	}}
	r := NewResolver(lister, ScopeGlobal)

	got, err := r.Resolve(context.Background(), model.Snapshot{}, "actor@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, got)
	assert.Equal(t, 1, lister.calls)
	assert.NotContains(t, got, "actor@example.com")
}

func TestResolveAutoFallsBackToGlobal(t *testing.T) {
	lister := &listerStub{docs: []model.Snapshot{{OwnerEmail: "z@example.com"}}}
	r := NewResolver(lister, ScopeAuto)

	got, err := r.Resolve(context.Background(), model.Snapshot{OwnerEmail: "o@example.com"}, "x@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"z@example.com"}, got)

	got, err = r.Resolve(context.Background(), model.Snapshot{
		OwnerEmail:    "o@example.com",
		Collaborators: []string{"o@example.com"},
	}, "x@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"o@example.com"}, got)
	assert.Equal(t, 1, lister.calls)
}

func TestResolveGlobalListError(t *testing.T) {
	r := NewResolver(&listerStub{err: errors.New("down")}, ScopeGlobal)
	_, err := r.Resolve(context.Background(), model.Snapshot{}, "x@example.com")
	assert.Error(t, err)
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("Global")
	require.NoError(t, err)
	assert.Equal(t, ScopeGlobal, s)

	_, err = ParseScope("galaxy")
	assert.Error(t, err)
}
