package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"collabdocs/internal/document/model"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func (f *OutputFormatter) json(v interface{}) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Documents prints a listing.
func (f *OutputFormatter) Documents(docs []model.Snapshot) error {
	if f.Format == "json" {
		if docs == nil {
			docs = []model.Snapshot{}
		}
		return f.json(docs)
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tOWNER\tUPDATED\tBY")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Title, d.OwnerEmail,
			d.LastUpdatedAt.Local().Format(time.DateTime), d.LastUpdatedByEmail)
	}
	return tw.Flush()
}

// Document prints one document's metadata.
func (f *OutputFormatter) Document(doc model.Snapshot) error {
	if f.Format == "json" {
		return f.json(doc)
	}
	fmt.Fprintf(f.Writer, "%s  %s\n", doc.ID, doc.Title)
	fmt.Fprintf(f.Writer, "  owner:         %s\n", doc.OwnerEmail)
	fmt.Fprintf(f.Writer, "  collaborators: %s\n", strings.Join(doc.Collaborators, ", "))
	return nil
}

// Message prints a short confirmation.
func (f *OutputFormatter) Message(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if f.Format == "json" {
		return f.json(map[string]string{"status": "ok", "message": msg})
	}
	_, err := fmt.Fprintln(f.Writer, msg)
	return err
}
