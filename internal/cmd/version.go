package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand prints the build-injected Version string.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the taskdaemon version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
			return nil
		},
	}
}
