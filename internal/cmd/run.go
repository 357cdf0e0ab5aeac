package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/akfldk1028/taskdaemon/internal/agentexec"
	"github.com/akfldk1028/taskdaemon/internal/config"
	"github.com/akfldk1028/taskdaemon/internal/daemon"
	"github.com/akfldk1028/taskdaemon/internal/history"
	"github.com/akfldk1028/taskdaemon/internal/logger"
	"github.com/akfldk1028/taskdaemon/internal/specfactory"
	"github.com/akfldk1028/taskdaemon/internal/state"
	"github.com/akfldk1028/taskdaemon/internal/status"
	"github.com/spf13/cobra"
)

// NewRunCommand builds `taskdaemon run`: the long-running scheduler process
// (§4.4) wired to every other component (state store, executor registry,
// console logger, status publisher, and the in-process MCTS runner).
func NewRunCommand() *cobra.Command {
	var projectDir string
	var specsDir string
	var maxConcurrent int
	var stuckTimeout time.Duration
	var checkInterval time.Duration
	var maxRecovery int
	var statusFile string
	var pidFile string
	var logFile string
	var useWorktrees bool
	var headless bool
	var noHeadless bool
	var useExternalCLI bool
	var externalCLIPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectDir == "" {
				return fmt.Errorf("run: --project-dir is required")
			}
			abs, err := filepath.Abs(projectDir)
			if err != nil {
				return fmt.Errorf("run: resolve project dir: %w", err)
			}

			cfg, err := config.LoadFromProjectRoot(abs)
			if err != nil {
				return fmt.Errorf("run: load config: %w", err)
			}

			flags := config.Flags{}
			if cmd.Flags().Changed("specs-dir") {
				flags.SpecsDir = &specsDir
			}
			if cmd.Flags().Changed("max-concurrent") {
				flags.MaxConcurrentTasks = &maxConcurrent
			}
			if cmd.Flags().Changed("stuck-timeout") {
				flags.StuckTimeout = &stuckTimeout
			}
			if cmd.Flags().Changed("check-interval") {
				flags.CheckInterval = &checkInterval
			}
			if cmd.Flags().Changed("max-recovery") {
				flags.MaxRecovery = &maxRecovery
			}
			if cmd.Flags().Changed("use-worktrees") {
				flags.UseWorktrees = &useWorktrees
			}
			if cmd.Flags().Changed("use-external-cli") {
				flags.UseExternalCLI = &useExternalCLI
			}
			if cmd.Flags().Changed("external-cli-path") {
				flags.ExternalCLIPath = &externalCLIPath
			}
			cfg.MergeWithFlags(flags)

			if !filepath.IsAbs(cfg.SpecsDir) {
				cfg.SpecsDir = filepath.Join(abs, cfg.SpecsDir)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("run: invalid config: %w", err)
			}

			if headless && noHeadless {
				return fmt.Errorf("run: --headless and --no-headless are mutually exclusive")
			}
			if headless {
				os.Setenv("AUTO_CLAUDE_HEADLESS_BROWSER", "true")
			}
			if noHeadless {
				os.Setenv("AUTO_CLAUDE_HEADLESS_BROWSER", "false")
			}

			home, err := config.GetDaemonHome()
			if err != nil {
				return fmt.Errorf("run: resolve daemon home: %w", err)
			}

			if statusFile == "" {
				statusFile = filepath.Join(home, "status.json")
			}
			if pidFile == "" {
				pidFile = filepath.Join(home, "daemon.pid")
			}

			if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
				return fmt.Errorf("run: write pid file: %w", err)
			}
			defer os.Remove(pidFile)

			if err := os.MkdirAll(cfg.SpecsDir, 0755); err != nil {
				return fmt.Errorf("run: create specs dir: %w", err)
			}
			statePath := filepath.Join(cfg.SpecsDir, ".daemon_state.json")
			store, err := state.Open(statePath)
			if err != nil {
				return fmt.Errorf("run: open state store: %w", err)
			}

			console := logger.NewConsoleLogger(os.Stderr, cfg.LogLevel)
			var log daemon.Logger = console
			if logFile != "" {
				fileLog, err := logger.NewFileLogger(logFile, cfg.LogLevel)
				if err != nil {
					return fmt.Errorf("run: open log file: %w", err)
				}
				tee := logger.NewTeeLogger(console, fileLog)
				defer tee.Close()
				log = tee
			}

			reg := agentexec.NewRegistry()

			// pub is constructed after d since NewPublisher needs d as its
			// Snapshotter; d's onEvent hook closes over the pub variable,
			// which is safe because it's only invoked after Start.
			var pub *status.Publisher
			d, err := daemon.New(cfg, store, reg, log, func() {
				if pub != nil {
					pub.MarkDirty()
				}
			})
			if err != nil {
				return fmt.Errorf("run: build daemon: %w", err)
			}

			histPath, err := config.GetHistoryDBPath()
			if err != nil {
				return fmt.Errorf("run: resolve history db path: %w", err)
			}
			histStore, err := history.OpenOrRebuild(histPath, filepath.Join(home, "history", "mcts_lessons.json"))
			if err != nil {
				log.Warnf("open history store: %v; continuing without the secondary index", err)
			} else {
				defer histStore.Close()
			}

			factory := specfactory.New(cfg.SpecsDir)
			d.SetMCTSRunner(newMCTSRunner(cfg, factory, histStore))

			pub = status.NewPublisher(statusFile, d, cfg.WebSocket)
			go pub.Run()
			defer pub.Wait()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				log.Infof("received shutdown signal")
				d.Stop()
				pub.Stop()
			}()

			log.Infof("taskdaemon running, watching %s", cfg.SpecsDir)
			if err := d.Start(); err != nil {
				return fmt.Errorf("run: %w", err)
			}
			d.Wait()
			return nil
		},
	}

	cmd.Flags().StringVar(&projectDir, "project-dir", "", "project directory (required)")
	cmd.Flags().StringVar(&specsDir, "specs-dir", "", "override the specs directory")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "override max concurrent tasks")
	cmd.Flags().DurationVar(&stuckTimeout, "stuck-timeout", 0, "override stuck-detection timeout")
	cmd.Flags().DurationVar(&checkInterval, "check-interval", 0, "override stuck-detector poll interval")
	cmd.Flags().IntVar(&maxRecovery, "max-recovery", 0, "override max recovery attempts")
	cmd.Flags().StringVar(&statusFile, "status-file", "", "override the status.json output path")
	cmd.Flags().StringVar(&pidFile, "pid-file", "", "override the daemon pid file path")
	cmd.Flags().StringVar(&logFile, "log-file", "", "also write logs to this plain-text file")
	cmd.Flags().BoolVar(&useWorktrees, "use-worktrees", false, "accepted and stored in the config; no worktree isolation is performed")
	cmd.Flags().BoolVar(&headless, "headless", false, "force headless browser validation")
	cmd.Flags().BoolVar(&noHeadless, "no-headless", false, "force headed browser validation")
	cmd.Flags().BoolVar(&useExternalCLI, "use-external-cli", false, "force every task through the external CLI")
	cmd.Flags().StringVar(&externalCLIPath, "external-cli-path", "", "path to the external agent CLI binary")
	return cmd
}
