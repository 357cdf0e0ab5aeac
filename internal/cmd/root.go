package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for taskdaemon.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskdaemon",
		Short: "Spec-driven task scheduler and MCTS orchestrator",
		Long: `taskdaemon watches a directory of spec plans, dispatches each one to an
agent process respecting priority and dependency order, detects and
recovers stuck tasks, runs an auto-verify chain on completion, and drives
a Monte Carlo Tree Search orchestrator for specs that need one.`,
		Version:      Version,
		SilenceUsage: true,
	}

	root.AddCommand(NewRunCommand())
	root.AddCommand(NewValidateCommand())
	root.AddCommand(NewVersionCommand())
	return root
}
