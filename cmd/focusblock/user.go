package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/focusblock/internal/database"
	"github.com/dukerupert/focusblock/internal/store"
)

func newUserCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users and their API tokens",
	}
	cmd.AddCommand(newUserAddCommand(opts))
	return cmd
}

func newUserAddCommand(opts *rootOptions) *cobra.Command {
	var (
		email string
		name  string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user (or reuse an existing one) and print a bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(strings.ToLower(email))
			if email == "" {
				return errors.New("--email is required")
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.SessionTTL
			}

			db, err := database.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			users := store.NewUserStore(db)
			user, err := users.GetByEmail(ctx, email)
			if err != nil {
				return err
			}
			if user == nil {
				if name == "" {
					name = strings.SplitN(email, "@", 2)[0]
				}
				user, err = users.Create(ctx, email, name)
				if err != nil {
					return err
				}
			}

			sess, err := store.NewSessionStore(db).Create(ctx, user.ID, ttl)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user:    %s (%s)\n", user.ID, user.Email)
			fmt.Fprintf(out, "expires: %s\n", sess.ExpiresAt.Format(time.RFC3339))
			fmt.Fprintf(out, "token:   %s\n", sess.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address of the user")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the email's local part)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to session_ttl)")
	return cmd
}
