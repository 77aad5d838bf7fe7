package cli

import (
	"context"
	"errors"
	"strings"
	"time"

	"collabdocs/internal/document/model"
	"collabdocs/middleware"

	"github.com/spf13/cobra"
)

var errNoSecret = errors.New("JWT_SECRET is not set")

func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
}

func requestContext(opts *RootOptions, cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, opts.Timeout)
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var orderBy string
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List the documents you own or collaborate on",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.client()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(rootOpts, cmd)
			defer cancel()
			docs, err := c.ListOrderedBy(ctx, orderBy)
			if err != nil {
				return err
			}
			return formatter(rootOpts, cmd).Documents(docs)
		},
	}
	cmd.Flags().StringVar(&orderBy, "order-by", "lastUpdatedAt", "lastUpdatedAt|createdAt|title")
	return cmd
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "create [title]",
		Short:        "Create a document; the title defaults to \"" + model.DefaultTitle + "\"",
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.client()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(rootOpts, cmd)
			defer cancel()
			doc, err := c.Create(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return formatter(rootOpts, cmd).Document(doc)
		},
	}
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "rm <document-id>",
		Short:        "Delete a document you own",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.client()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(rootOpts, cmd)
			defer cancel()
			if err := c.Delete(ctx, args[0]); err != nil {
				return err
			}
			return formatter(rootOpts, cmd).Message("Deleted %s", args[0])
		},
	}
}

// NewRenameCommand creates the rename command.
func NewRenameCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "rename <document-id> <title>",
		Short:        "Rename a document you own",
		Args:         cobra.MinimumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.client()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(rootOpts, cmd)
			defer cancel()
			doc, err := c.Rename(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return formatter(rootOpts, cmd).Document(doc)
		},
	}
}

// NewInviteCommand creates the invite command.
func NewInviteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "invite <document-id> <email>",
		Short:        "Add a collaborator to a document you own",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.client()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(rootOpts, cmd)
			defer cancel()
			doc, err := c.Invite(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return formatter(rootOpts, cmd).Document(doc)
		},
	}
}

// NewTokenCommand mints a development token signed with JWT_SECRET.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var name string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:          "token <email>",
		Short:        "Sign a development token with JWT_SECRET",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := envOr("JWT_SECRET", "")
			if secret == "" {
				return errNoSecret
			}
			token, err := middleware.SignToken(secret, model.Identity{Email: args[0], Name: name}, ttl)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return formatter(rootOpts, cmd).json(map[string]string{"token": token})
			}
			_, err = cmd.OutOrStdout().Write([]byte(token + "\n"))
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
