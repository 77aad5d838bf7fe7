package notify

import (
	"strings"
	"testing"

	"collabdocs/internal/document/model"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	base := model.Snapshot{ID: "d1", Title: "T", Content: "hello", LastUpdatedByEmail: "u1@example.com"}

	cases := []struct {
		name   string
		mutate func(s *model.Snapshot)
		want   ChangeClass
	}{
		{"identical", func(s *model.Snapshot) {}, NoChange},
		{"only writer differs", func(s *model.Snapshot) { s.LastUpdatedByEmail = "u2@example.com" }, NoChange},
		{"only collaborators differ", func(s *model.Snapshot) { s.Collaborators = []string{"x@example.com"} }, NoChange},
		{"content by same writer", func(s *model.Snapshot) { s.Content = "hello!" }, SelfChange},
		{"title by same writer", func(s *model.Snapshot) { s.Title = "T2" }, SelfChange},
		{"content by same writer in other case", func(s *model.Snapshot) {
			s.Content = "hello!"
			s.LastUpdatedByEmail = " " + strings.ToUpper(s.LastUpdatedByEmail)
		}, SelfChange},
		{"content by other writer", func(s *model.Snapshot) {
			s.Content = "hello!"
			s.LastUpdatedByEmail = "u2@example.com"
		}, SignificantChange},
		{"title by other writer", func(s *model.Snapshot) {
			s.Title = "Renamed"
			s.LastUpdatedByEmail = "u2@example.com"
		}, SignificantChange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			after := base.Clone()
			tc.mutate(&after)
			assert.Equal(t, tc.want, Classify(base, after))
		})
	}
}

func TestChangeClassString(t *testing.T) {
	assert.Equal(t, "significant_change", SignificantChange.String())
	assert.Equal(t, "unknown", ChangeClass(42).String())
}
