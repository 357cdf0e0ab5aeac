package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConsoleConfig controls terminal output formatting for the status CLI view.
type ConsoleConfig struct {
	EnableColor       bool `yaml:"enable_color"`
	EnableProgressBar bool `yaml:"enable_progress_bar"`
	CompactMode       bool `yaml:"compact_mode"`
	ShowDurations     bool `yaml:"show_durations"`
}

// MCTSConfig tunes the orchestrator's selection policy and convergence rule
// (§4.7, §4.8).
type MCTSConfig struct {
	// AcceptThreshold is the score at or above which a branch is accepted
	// without exhausting the full budget.
	AcceptThreshold float64 `yaml:"accept_threshold"`

	// ConvergenceDelta is the minimum score improvement between two
	// consecutive rounds; below this for two rounds in a row, the search
	// converges.
	ConvergenceDelta float64 `yaml:"convergence_delta"`

	// UCB1CostWeight is the exponent w in the budget-aware penalty
	// (allocated/actual)^w applied atop UCB1 (negative favors efficient
	// branches).
	UCB1CostWeight float64 `yaml:"ucb1_cost_weight"`

	// MaxWallSeconds, MaxIterations, MaxBranches are the default Budget
	// triple when a caller doesn't override them per search.
	MaxWallSeconds int `yaml:"max_wall_seconds"`
	MaxIterations  int `yaml:"max_iterations"`
	MaxBranches    int `yaml:"max_branches"`
}

// WebSocketConfig controls the optional status push channel (§4.9).
type WebSocketConfig struct {
	Enabled  bool `yaml:"enabled"`
	PortLow  int  `yaml:"port_low"`
	PortHigh int  `yaml:"port_high"`
}

// ExecutorConfig carries the settings agentexec.BuildOptions needs to
// construct a child process command line (§4.3).
type ExecutorConfig struct {
	PythonPath      string `yaml:"python_path"`
	DefaultScript   string `yaml:"default_script"`
	UseExternalCLI  bool   `yaml:"use_external_cli"`
	ExternalCLIPath string `yaml:"external_cli_path"`
}

// Config is the daemon's root configuration (§1.1 Configuration).
type Config struct {
	// SpecsDir is the directory the watcher and scheduler operate over.
	SpecsDir string `yaml:"specs_dir"`

	// MaxConcurrentTasks bounds simultaneously running child processes
	// (invariant I4). 0 means unlimited.
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks"`

	// StuckTimeout is how long a running task may go without a liveness
	// update before the stuck detector calls Recover.
	StuckTimeout time.Duration `yaml:"stuck_timeout"`

	// CheckInterval is the stuck-detector poll period.
	CheckInterval time.Duration `yaml:"check_interval"`

	// MaxRecovery caps recovery attempts per spec before it's marked a
	// terminal error (invariant I5).
	MaxRecovery int `yaml:"max_recovery"`

	// MaxChildDepth bounds how many generations of design/architecture/mcts
	// children may be spawned (invariant I6).
	MaxChildDepth int `yaml:"max_child_depth"`

	// UseWorktrees asks the executor to isolate each dispatched spec in its
	// own git worktree rather than the shared project directory. Accepted
	// from --use-worktrees for CLI surface completeness; no worktree
	// isolation mechanism exists in this build (see DESIGN.md).
	UseWorktrees bool `yaml:"use_worktrees"`

	// AutoVerifyCap bounds the verify siblings queued per parent (§4.4
	// Auto-verify chain).
	AutoVerifyCap int `yaml:"auto_verify_cap"`

	// KillGracePeriod is how long Recover waits between SIGTERM and SIGKILL.
	KillGracePeriod time.Duration `yaml:"kill_grace_period"`

	LogLevel string `yaml:"log_level"`
	LogDir   string `yaml:"log_dir"`

	Console   ConsoleConfig   `yaml:"console"`
	MCTS      MCTSConfig      `yaml:"mcts"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Executor  ExecutorConfig  `yaml:"executor"`
}

// DefaultConfig returns a Config populated with every numeric default named
// in §1.1.
func DefaultConfig() *Config {
	return &Config{
		SpecsDir:           ".auto-claude/specs",
		MaxConcurrentTasks: 4,
		StuckTimeout:       600 * time.Second,
		CheckInterval:      30 * time.Second,
		MaxRecovery:        3,
		MaxChildDepth:      2,
		AutoVerifyCap:      3,
		KillGracePeriod:    10 * time.Second,
		LogLevel:           "info",
		LogDir:             ".taskdaemon/logs",
		Console: ConsoleConfig{
			EnableColor:       true,
			EnableProgressBar: true,
			CompactMode:       false,
			ShowDurations:     true,
		},
		MCTS: MCTSConfig{
			AcceptThreshold:  0.7,
			ConvergenceDelta: 0.02,
			UCB1CostWeight:   -0.07,
			MaxWallSeconds:   3600,
			MaxIterations:    20,
			MaxBranches:      8,
		},
		WebSocket: WebSocketConfig{
			Enabled:  true,
			PortLow:  18800,
			PortHigh: 18809,
		},
		Executor: ExecutorConfig{
			PythonPath:    "python3",
			DefaultScript: "run.py",
		},
	}
}

// applyEnvOverrides applies TASKDAEMON_* environment variable overrides on
// top of the YAML file, mirroring the teacher's CONDUCTOR_CONSOLE_* convention.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("TASKDAEMON_CONSOLE_COLOR"); val != "" {
		cfg.Console.EnableColor = val == "true" || val == "1"
	}
	if val := os.Getenv("TASKDAEMON_CONSOLE_PROGRESS_BAR"); val != "" {
		cfg.Console.EnableProgressBar = val == "true" || val == "1"
	}
	if val := os.Getenv("TASKDAEMON_CONSOLE_COMPACT"); val != "" {
		cfg.Console.CompactMode = val == "true" || val == "1"
	}
	if val := os.Getenv("TASKDAEMON_CONSOLE_DURATIONS"); val != "" {
		cfg.Console.ShowDurations = val == "true" || val == "1"
	}
	if val := os.Getenv("TASKDAEMON_MAX_CONCURRENT_TASKS"); val != "" {
		var n int
		if _, err := fmt.Sscanf(val, "%d", &n); err == nil {
			cfg.MaxConcurrentTasks = n
		}
	}
}

// yamlConfig mirrors Config but with string durations, parsed explicitly so
// "600s" / "10m" style values are accepted the way the teacher's timeout
// field was.
type yamlConfig struct {
	SpecsDir           string          `yaml:"specs_dir"`
	MaxConcurrentTasks int             `yaml:"max_concurrent_tasks"`
	StuckTimeout       string          `yaml:"stuck_timeout"`
	CheckInterval      string          `yaml:"check_interval"`
	MaxRecovery        int             `yaml:"max_recovery"`
	MaxChildDepth      int             `yaml:"max_child_depth"`
	AutoVerifyCap      int             `yaml:"auto_verify_cap"`
	KillGracePeriod    string          `yaml:"kill_grace_period"`
	LogLevel           string          `yaml:"log_level"`
	LogDir             string          `yaml:"log_dir"`
	Console            ConsoleConfig   `yaml:"console"`
	MCTS               MCTSConfig      `yaml:"mcts"`
	WebSocket          WebSocketConfig `yaml:"websocket"`
	Executor           ExecutorConfig  `yaml:"executor"`
}

// LoadConfig loads configuration from path, merging explicitly-set YAML
// values over DefaultConfig() and applying environment overrides last. A
// missing file is not an error: defaults (plus env overrides) are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if y.SpecsDir != "" {
		cfg.SpecsDir = y.SpecsDir
	}
	if y.MaxConcurrentTasks != 0 {
		cfg.MaxConcurrentTasks = y.MaxConcurrentTasks
	}
	if y.StuckTimeout != "" {
		d, err := time.ParseDuration(y.StuckTimeout)
		if err != nil {
			return nil, fmt.Errorf("config: invalid stuck_timeout %q: %w", y.StuckTimeout, err)
		}
		cfg.StuckTimeout = d
	}
	if y.CheckInterval != "" {
		d, err := time.ParseDuration(y.CheckInterval)
		if err != nil {
			return nil, fmt.Errorf("config: invalid check_interval %q: %w", y.CheckInterval, err)
		}
		cfg.CheckInterval = d
	}
	if y.MaxRecovery != 0 {
		cfg.MaxRecovery = y.MaxRecovery
	}
	if y.MaxChildDepth != 0 {
		cfg.MaxChildDepth = y.MaxChildDepth
	}
	if y.AutoVerifyCap != 0 {
		cfg.AutoVerifyCap = y.AutoVerifyCap
	}
	if y.KillGracePeriod != "" {
		d, err := time.ParseDuration(y.KillGracePeriod)
		if err != nil {
			return nil, fmt.Errorf("config: invalid kill_grace_period %q: %w", y.KillGracePeriod, err)
		}
		cfg.KillGracePeriod = d
	}
	if y.LogLevel != "" {
		cfg.LogLevel = y.LogLevel
	}
	if y.LogDir != "" {
		cfg.LogDir = y.LogDir
	}

	// Detect which nested sections were actually present so zero-valued
	// fields (e.g. accept_threshold: 0) can still be applied explicitly,
	// following the teacher's raw-map merge idiom.
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if _, ok := rawMap["console"]; ok {
			cfg.Console = y.Console
		}
		if _, ok := rawMap["mcts"]; ok {
			mergeMCTS(&cfg.MCTS, y.MCTS, rawMap["mcts"])
		}
		if _, ok := rawMap["websocket"]; ok {
			cfg.WebSocket = y.WebSocket
		}
		if _, ok := rawMap["executor"]; ok {
			cfg.Executor = y.Executor
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// mergeMCTS applies only the MCTS fields actually present in section,
// preserving defaults for the rest (float zero values are meaningful here,
// e.g. a convergence_delta of 0.0 is valid, so presence-in-map decides).
func mergeMCTS(dst *MCTSConfig, parsed MCTSConfig, section interface{}) {
	m, ok := section.(map[string]interface{})
	if !ok {
		return
	}
	if _, ok := m["accept_threshold"]; ok {
		dst.AcceptThreshold = parsed.AcceptThreshold
	}
	if _, ok := m["convergence_delta"]; ok {
		dst.ConvergenceDelta = parsed.ConvergenceDelta
	}
	if _, ok := m["ucb1_cost_weight"]; ok {
		dst.UCB1CostWeight = parsed.UCB1CostWeight
	}
	if _, ok := m["max_wall_seconds"]; ok {
		dst.MaxWallSeconds = parsed.MaxWallSeconds
	}
	if _, ok := m["max_iterations"]; ok {
		dst.MaxIterations = parsed.MaxIterations
	}
	if _, ok := m["max_branches"]; ok {
		dst.MaxBranches = parsed.MaxBranches
	}
}

// LoadFromProjectRoot loads ".taskdaemon.yaml" from root, falling back to
// defaults when absent.
func LoadFromProjectRoot(root string) (*Config, error) {
	return LoadConfig(filepath.Join(root, ".taskdaemon.yaml"))
}

// Flags carries every CLI override `taskdaemon run` accepts (§6 External
// interfaces); a nil field leaves the corresponding Config field untouched.
type Flags struct {
	SpecsDir           *string
	MaxConcurrentTasks *int
	StuckTimeout       *time.Duration
	CheckInterval      *time.Duration
	MaxRecovery        *int
	UseWorktrees       *bool
	UseExternalCLI     *bool
	ExternalCLIPath    *string
}

// MergeWithFlags applies non-nil CLI flag overrides on top of the current
// values, so flags merged after LoadConfig take precedence over both
// environment variables and the YAML file.
func (c *Config) MergeWithFlags(f Flags) {
	if f.SpecsDir != nil {
		c.SpecsDir = *f.SpecsDir
	}
	if f.MaxConcurrentTasks != nil {
		c.MaxConcurrentTasks = *f.MaxConcurrentTasks
	}
	if f.StuckTimeout != nil {
		c.StuckTimeout = *f.StuckTimeout
	}
	if f.CheckInterval != nil {
		c.CheckInterval = *f.CheckInterval
	}
	if f.MaxRecovery != nil {
		c.MaxRecovery = *f.MaxRecovery
	}
	if f.UseWorktrees != nil {
		c.UseWorktrees = *f.UseWorktrees
	}
	if f.UseExternalCLI != nil {
		c.Executor.UseExternalCLI = *f.UseExternalCLI
	}
	if f.ExternalCLIPath != nil {
		c.Executor.ExternalCLIPath = *f.ExternalCLIPath
	}
}

// Validate checks configuration invariants, returning the first violation.
func (c *Config) Validate() error {
	if c.MaxConcurrentTasks < 0 {
		return fmt.Errorf("max_concurrent_tasks must be >= 0, got %d", c.MaxConcurrentTasks)
	}
	if c.MaxRecovery < 0 {
		return fmt.Errorf("max_recovery must be >= 0, got %d", c.MaxRecovery)
	}
	if c.MaxChildDepth < 0 {
		return fmt.Errorf("max_child_depth must be >= 0, got %d", c.MaxChildDepth)
	}
	if c.AutoVerifyCap < 0 {
		return fmt.Errorf("auto_verify_cap must be >= 0, got %d", c.AutoVerifyCap)
	}
	if c.StuckTimeout <= 0 {
		return fmt.Errorf("stuck_timeout must be > 0, got %v", c.StuckTimeout)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be > 0, got %v", c.CheckInterval)
	}
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}
	if c.MCTS.AcceptThreshold < 0 || c.MCTS.AcceptThreshold > 1 {
		return fmt.Errorf("mcts.accept_threshold must be in [0,1], got %v", c.MCTS.AcceptThreshold)
	}
	if c.WebSocket.Enabled && c.WebSocket.PortLow > c.WebSocket.PortHigh {
		return fmt.Errorf("websocket.port_low (%d) must be <= port_high (%d)", c.WebSocket.PortLow, c.WebSocket.PortHigh)
	}
	return nil
}
