// Package cli is the coordinator's command surface: a thin cobra tree over
// the composition root, exposed as "NewRoot().Execute()".
package cli

import (
	"github.com/spf13/cobra"
)

// NewRoot builds the coordinator command tree.
func NewRoot() *cobra.Command {
	var baseDir string

	cmd := &cobra.Command{
		Use:   "coordinator",
		Short: "File-processing coordinator service",
		RunE:  func(c *cobra.Command, _ []string) error { return c.Help() },
	}
	cmd.PersistentFlags().StringVar(&baseDir, "config-dir", ".", "directory holding coordinator.json, if present")

	cmd.AddCommand(newServeCmd(&baseDir))
	cmd.AddCommand(newMigrateCmd(&baseDir))
	return cmd
}
