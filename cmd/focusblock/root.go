package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/focusblock/internal/config"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "focusblock",
		Short:         "Time-blocking calendar server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("FOCUSBLOCK_CONFIG"),
		"path to a YAML config file (env FOCUSBLOCK_CONFIG)")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newUserCommand(opts),
		newExpandCommand(),
		newConfigCommand(opts),
		newBackupCommand(opts),
	)
	return root
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.configPath)
}
