// Package validator implements the Validator Pipeline (C6): a sequential
// build validator followed by parallel runtime validators, all converging
// on models.ValidatorResult.
package validator

import (
	"context"
	"os/exec"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

// CommandRunner abstracts shell command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, command string) (output string, err error)
}

// ShellCommandRunner runs commands via the system shell in a fixed working
// directory.
type ShellCommandRunner struct {
	WorkDir string
}

// Run executes command via `sh -c` and returns combined stdout/stderr.
func (r *ShellCommandRunner) Run(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = r.WorkDir
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// Context carries everything a Validator needs to run (§4.6 Selection).
type Context struct {
	ProjectDir   string
	SpecDir      string
	Capabilities map[string]bool
	Runner       CommandRunner
}

// Validator is one pluggable QA check.
type Validator interface {
	ID() string
	Description() string
	// CapabilityTrigger names the capability key gating this validator; an
	// empty string means always applicable.
	CapabilityTrigger() string
	Validate(ctx context.Context, vc Context) models.ValidatorResult
}

// isApplicable reports whether v should run given the detected capabilities.
func isApplicable(v Validator, capabilities map[string]bool) bool {
	trigger := v.CapabilityTrigger()
	if trigger == "" {
		return true
	}
	return capabilities[trigger]
}
