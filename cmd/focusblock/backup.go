package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/focusblock/internal/backup"
	"github.com/dukerupert/focusblock/internal/config"
	"github.com/dukerupert/focusblock/internal/database"
	"github.com/dukerupert/focusblock/internal/logging"
)

func newBackupManager(cfg config.Config, db *sql.DB, logger *slog.Logger) (*backup.Manager, error) {
	var dest backup.Destination
	if s3 := cfg.Backup.S3; s3.Enabled() {
		dest = backup.NewS3Destination(backup.S3Config{
			Endpoint:  s3.Endpoint,
			Bucket:    s3.Bucket,
			Region:    s3.Region,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Prefix:    s3.Prefix,
		})
	} else {
		dir, err := backup.NewDirDestination(cfg.Backup.Dir)
		if err != nil {
			return nil, err
		}
		dest = dir
	}
	return backup.NewManager(db, dest, cfg.Backup.Passphrase, cfg.Backup.Keep, logger), nil
}

func newBackupCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot, list, and restore the database",
	}

	// withManager opens the configured database and backup destination.
	withManager := func(fn func(cmd *cobra.Command, cfg config.Config, m *backup.Manager) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

			db, err := database.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			m, err := newBackupManager(cfg, db, logger)
			if err != nil {
				return err
			}
			return fn(cmd, cfg, m)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Take a snapshot now and apply retention",
		RunE: withManager(func(cmd *cobra.Command, cfg config.Config, m *backup.Manager) error {
			obj, err := m.Run(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := m.Prune(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%d bytes), pruned %d\n", obj.Key, obj.Size, removed)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		RunE: withManager(func(cmd *cobra.Command, cfg config.Config, m *backup.Manager) error {
			objs, err := m.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSIZE\tSTORED")
			for _, o := range objs {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Key, o.Size, o.ModTime.Format(time.RFC3339))
			}
			return tw.Flush()
		}),
	})

	var (
		to    string
		force bool
	)
	restore := &cobra.Command{
		Use:   "restore KEY",
		Short: "Restore a snapshot to a database file",
		Long: `Restore decrypts and verifies a snapshot, then writes it to --to.
Stop the server before restoring over its live database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(cmd *cobra.Command, cfg config.Config, m *backup.Manager) error {
				target := to
				if target == "" {
					target = cfg.DBPath
				}
				if err := m.Restore(cmd.Context(), args[0], target, force); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s\n", args[0], target)
				return nil
			})(cmd, args)
		},
	}
	restore.Flags().StringVar(&to, "to", "", "destination database file (defaults to db_path)")
	restore.Flags().BoolVar(&force, "force", false, "replace an existing destination file")
	cmd.AddCommand(restore)

	return cmd
}
