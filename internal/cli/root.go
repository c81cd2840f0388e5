// Package cli holds the cobra commands of the rentals binary.
package cli

import "github.com/spf13/cobra"

// NewRootCmd assembles the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rentals",
		Short:         "Viewing slot and application lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		ServeCmd(),
		MigrateCmd(),
		SlotsCmd(),
		TokenCmd(),
	)
	return root
}
