// Package cli holds the doctemplate command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/hundred-solutions/onlyoffice-odoo/pkg/logger"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "doctemplate",
		Short: "Merge-field template service for ONLYOFFICE form documents",
		Long: `doctemplate serves the template editor backend: model field trees,
template storage, editor sessions and document builder fills.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newFieldsCmd(),
		newInspectCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(logger.Version + "\n"))
			return err
		},
	}
}
