// Command taskdaemon is the CLI entry point: `run` starts the scheduler
// daemon, `validate` runs the validator pipeline standalone, `version`
// prints the build-injected version string.
package main

import (
	"fmt"
	"os"

	"github.com/akfldk1028/taskdaemon/internal/cmd"
)

func main() {
	root := cmd.NewRootCommand()

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
