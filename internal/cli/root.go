package cli

import (
	"fmt"
	"os"
	"time"

	"collabdocs/internal/client"
	"collabdocs/internal/document/model"
	"collabdocs/middleware"
	"collabdocs/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	Token   string
	Format  string // "json" | "text"
	Verbose bool
	Timeout time.Duration
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the docctl root command.
func NewRootCommand() *cobra.Command {
	// A .env next to the binary may carry the server and token.
	_ = godotenv.Load()
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "docctl",
		Short: "docctl - collaborative documents from the terminal",
		Long:  "List, create, share and edit collabdocs documents. Edits autosave after a quiet period and notify collaborators.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Verbose {
				logger.Init("debug")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("COLLABDOCS_SERVER", "http://localhost:8080"), "collabdocs server URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("COLLABDOCS_TOKEN"), "bearer token (JWT)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 15*time.Second, "timeout for one request")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewRenameCommand(opts))
	cmd.AddCommand(NewInviteCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (o *RootOptions) client() (*client.Client, error) {
	if o.Token == "" {
		return nil, fmt.Errorf("no token: pass --token or set COLLABDOCS_TOKEN")
	}
	return client.New(o.Server, o.Token), nil
}

// identity reads who the token belongs to. The server verifies the
// signature; the CLI only needs the claims.
func (o *RootOptions) identity() (model.Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(o.Token, claims); err != nil {
		return model.Identity{}, fmt.Errorf("unreadable token: %w", err)
	}
	return middleware.ClaimsIdentity(claims)
}
