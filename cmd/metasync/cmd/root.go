// Package cmd implements the metasync command tree.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// Execute runs the CLI with the given arguments and build information.
func Execute(ctx context.Context, version, commit, date string) error {
	root := newRootCmd(version, commit, date)
	return root.ExecuteContext(ctx)
}

func newRootCmd(version, commit, date string) *cobra.Command {
	var profileFile string

	root := &cobra.Command{
		Use:   "metasync",
		Short: "Reconcile external source systems into the metadata catalog",
		Long: `metasync pulls canonical entity lists from the open-data portal, the
staff directory, and the legal-text registry, and reconciles them into
the metadata catalog's asset tree. Identity mappings persist across runs
so assets keep their catalog identity when their source data changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&profileFile, "profiles", "profiles.yaml",
		"path to the sync profile file")

	root.AddCommand(
		newSyncCmd(&profileFile),
		newVersionCmd(version, commit, date),
	)
	return root
}
