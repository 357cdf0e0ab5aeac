// Package agentexec implements the Executor (C3): the agent registry,
// command-line construction, and process spawning/line-tee contract that
// dispatches a spec to a child process.
package agentexec

// ExecutionMode selects how a task type is invoked (§4.3 Executor).
type ExecutionMode string

const (
	ModePlan     ExecutionMode = "plan"
	ModeHeadless ExecutionMode = "headless"
)

// AgentEntry is one row of the agent registry, keyed by task type.
type AgentEntry struct {
	ScriptPath      string
	ExtraArgs       []string
	UseExternalCLI  bool
	PromptTemplate  string
	SystemPrompt    string
	ExecutionMode   ExecutionMode
	MCPServers      []string
	PreHook         func(specID, specDir string) error
	PostHook        func(specID, specDir string, exitCode int) error
}

// Registry is the fixed table of AgentEntry keyed by task type (§4.3).
type Registry struct {
	entries map[string]AgentEntry
}

// NewRegistry builds an empty registry; callers populate it with Register.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]AgentEntry)}
}

// Register adds or replaces the entry for taskType.
func (r *Registry) Register(taskType string, entry AgentEntry) {
	r.entries[taskType] = entry
}

// Lookup returns the registered entry for taskType, if any.
func (r *Registry) Lookup(taskType string) (AgentEntry, bool) {
	e, ok := r.entries[taskType]
	return e, ok
}
