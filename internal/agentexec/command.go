package agentexec

import (
	"strings"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

// BuildOptions carries the daemon-wide settings needed to build a command
// line: the interpreter for the default pipeline script, whether an
// external CLI is forced globally, and its path.
type BuildOptions struct {
	PythonPath       string // venv python for the default pipeline, equivalent
	DefaultScript    string // run.py equivalent
	UseExternalCLI   bool
	ExternalCLIPath  string
	ProjectDir       string
}

// Command is the fully-resolved command line and environment for Spawn.
type Command struct {
	Path string
	Args []string
	Env  []string
}

// BuildCommand resolves the agent registry lookup order from §4.3:
//  0. opts.UseExternalCLI set -> external-CLI command for every task type
//  1. registry entry with an explicit script -> invoke that script
//  2. registry entry forcing external CLI -> external-CLI command
//  3. unregistered task type with plan execution mode -> external CLI in plan mode
//  4. otherwise -> default pipeline script
func BuildCommand(specID, taskType string, reg *Registry, opts BuildOptions) Command {
	entry, registered := reg.Lookup(taskType)

	switch {
	case opts.UseExternalCLI:
		mode := entry.ExecutionMode
		if mode == "" && models.IsPlanningType(taskType) {
			mode = ModePlan
		}
		return externalCLICommand(specID, opts, mode)
	case registered && entry.ScriptPath != "":
		return Command{
			Path: opts.PythonPath,
			Args: append([]string{"-u", entry.ScriptPath, "--spec", specID, "--project-dir", opts.ProjectDir}, entry.ExtraArgs...),
			Env:  unbufferedEnv(),
		}
	case registered && entry.UseExternalCLI:
		return externalCLICommand(specID, opts, entry.ExecutionMode)
	case !registered && models.IsPlanningType(taskType):
		return externalCLICommand(specID, opts, ModePlan)
	default:
		return Command{
			Path: opts.PythonPath,
			Args: []string{"-u", opts.DefaultScript, "--spec", specID, "--project-dir", opts.ProjectDir, "--auto-continue", "--force"},
			Env:  unbufferedEnv(),
		}
	}
}

func externalCLICommand(specID string, opts BuildOptions, mode ExecutionMode) Command {
	args := []string{"--spec", specID, "--project-dir", opts.ProjectDir}
	if mode == ModePlan {
		args = append(args, "--mode", "plan")
	}
	return Command{
		Path: opts.ExternalCLIPath,
		Args: args,
		Env:  unbufferedEnv(),
	}
}

func unbufferedEnv() []string {
	return []string{"PYTHONUNBUFFERED=1"}
}

// SubstitutePrompt replaces {spec_id}, {task}, {spec_content} in template
// with literal (non-format-string) semantics, tolerating brace characters
// that may appear inside specContent (§4.3 Prompt template substitution).
func SubstitutePrompt(template, specID, task, specContent string) string {
	r := strings.NewReplacer(
		"{spec_id}", specID,
		"{task}", task,
		"{spec_content}", specContent,
	)
	return r.Replace(template)
}
