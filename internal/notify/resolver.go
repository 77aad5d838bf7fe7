package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"collabdocs/internal/document/model"
)

// Scope selects how recipients are computed.
type Scope int

const (
	// ScopeAuto uses the document's own list when it has one, the whole
	// store otherwise.
	ScopeAuto Scope = iota
	ScopeDocument
	ScopeGlobal
)

// ParseScope accepts "auto", "document" and "global".
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ScopeAuto, nil
	case "document":
		return ScopeDocument, nil
	case "global":
		return ScopeGlobal, nil
	}
	return ScopeAuto, fmt.Errorf("unknown notify scope %q", s)
}

// DocumentLister is the slice of the document store the global mode needs.
type DocumentLister interface {
	ListAll(ctx context.Context) ([]model.Snapshot, error)
}

type Resolver struct {
	Docs  DocumentLister
	Scope Scope
}

func NewResolver(docs DocumentLister, scope Scope) *Resolver {
	return &Resolver{Docs: docs, Scope: scope}
}

// Resolve returns the de-duplicated recipients for a change to doc made by
// actorEmail. The global mode scans the store exactly once.
func (r *Resolver) Resolve(ctx context.Context, doc model.Snapshot, actorEmail string) ([]string, error) {
	scope := r.Scope
	if scope == ScopeAuto {
		scope = ScopeDocument
		if len(doc.Collaborators) == 0 {
			scope = ScopeGlobal
		}
	}
	if scope == ScopeDocument || r.Docs == nil {
		return Recipients([]model.Snapshot{doc}, actorEmail), nil
	}

	docs, err := r.Docs.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents for recipients: %w", err)
	}
	return Recipients(docs, actorEmail), nil
}

// Recipients is the union of owners and collaborators over docs, minus the
// actor, sorted for stable output.
func Recipients(docs []model.Snapshot, actorEmail string) []string {
	actor := model.NormalizeEmail(actorEmail)
	set := make(map[string]string)
	add := func(email string) {
		key := model.NormalizeEmail(email)
		if key == "" || key == actor {
			return
		}
		if _, ok := set[key]; !ok {
			set[key] = strings.TrimSpace(email)
		}
	}
	for _, d := range docs {
		add(d.OwnerEmail)
		for _, c := range d.Collaborators {
			add(c)
		}
	}

	out := make([]string, 0, len(set))
	for _, email := range set {
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}
