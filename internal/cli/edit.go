package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"collabdocs/internal/client"
	"collabdocs/internal/document/model"
	"collabdocs/internal/session"

	"github.com/spf13/cobra"
)

const editHelp = `Type lines to append them to the document. Commands:
  :w              save now and notify collaborators
  :t <title>      rename the document
  :attach <file>  append a file's contents
  :p              print the document
  :help           show this help
  :q              quit`

// EditOptions tune an edit session.
type EditOptions struct {
	QuietPeriod    time.Duration
	AutosaveNotify bool
	ProbeInterval  time.Duration
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	editOpts := EditOptions{}
	defaults := session.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "edit <document-id>",
		Short: "Open a line-driven editing session",
		Long: `Open a document for editing. Lines typed are appended to the document
and autosaved once you stop typing. Changes made by collaborators appear as
they are saved, unless you have unsaved edits of your own.

` + editHelp,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runEdit(ctx, rootOpts, editOpts, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&editOpts.QuietPeriod, "quiet", defaults.QuietPeriod, "idle time before an autosave")
	cmd.Flags().BoolVar(&editOpts.AutosaveNotify, "notify-autosave", defaults.AutosaveNotify, "notify collaborators on autosave")
	cmd.Flags().DurationVar(&editOpts.ProbeInterval, "probe", 5*time.Second, "server reachability check interval")
	return cmd
}

// syncWriter serializes output from the session's goroutines and the prompt.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

func runEdit(ctx context.Context, rootOpts *RootOptions, editOpts EditOptions, docID string, in io.Reader, out io.Writer) error {
	c, err := rootOpts.client()
	if err != nil {
		return err
	}
	actor, err := rootOpts.identity()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := session.DefaultConfig()
	cfg.QuietPeriod = editOpts.QuietPeriod
	cfg.AutosaveNotify = editOpts.AutosaveNotify
	engine := session.NewEngine(c, cfg)
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), rootOpts.Timeout)
		defer stop()
		if err := engine.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(out, "! unsaved changes may be lost: %v\n", err)
		}
	}()

	w := &syncWriter{w: out}
	go engine.WatchConnectivity(ctx, client.NewProber(c, editOpts.ProbeInterval).Run(ctx))

	s, err := engine.Open(ctx, docID, actor, editListener(w))
	if err != nil {
		return err
	}

	doc := s.Local()
	w.printf("== %s (%s) ==\n%s\n", doc.Title, doc.ID, doc.Content)
	w.printf("%s\n", editHelp)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == ":q":
			return nil
		case line == ":w":
			if err := s.ForceFlush(ctx, true); err != nil {
				w.printf("! save failed: %v\n", err)
			}
		case line == ":p":
			doc := s.Local()
			w.printf("== %s ==\n%s\n", doc.Title, doc.Content)
		case line == ":help":
			w.printf("%s\n", editHelp)
		case strings.HasPrefix(line, ":t "):
			if err := s.Rename(ctx, strings.TrimSpace(strings.TrimPrefix(line, ":t "))); err != nil {
				w.printf("! rename failed: %v\n", err)
			}
		case strings.HasPrefix(line, ":attach "):
			path := strings.TrimSpace(strings.TrimPrefix(line, ":attach "))
			data, err := os.ReadFile(path)
			if err != nil {
				w.printf("! cannot read %s: %v\n", path, err)
				continue
			}
			if err := s.AppendContent(ctx, filepath.Base(path), string(data)); err != nil {
				w.printf("! attach failed: %v\n", err)
			}
		case strings.HasPrefix(line, ":"):
			w.printf("! unknown command %q, try :help\n", line)
		default:
			local := s.Local()
			content := local.Content
			if content != "" {
				content += "\n"
			}
			s.OnEdit(content+line, local.Title)
		}
	}
	return scanner.Err()
}

func editListener(w *syncWriter) session.Listener {
	return session.ListenerFuncs{
		OnRefresh: func(doc model.Snapshot) {
			by := doc.LastUpdatedByName
			if by == "" {
				by = doc.LastUpdatedByEmail
			}
			w.printf("-- updated by %s --\n== %s ==\n%s\n", by, doc.Title, doc.Content)
		},
		OnStatus: func(status session.SaveStatus) {
			switch status {
			case session.StatusSaved:
				w.printf("[saved]\n")
			case session.StatusPendingSync:
				w.printf("[offline: changes will sync when reconnected]\n")
			}
		},
		OnConnectivity: func(state session.State) {
			if state == session.Online {
				w.printf("[online: syncing changes]\n")
				return
			}
			w.printf("[offline]\n")
		},
		OnFatal: func(err error) {
			w.printf("! %v\n", err)
		},
	}
}
