package validator

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/akfldk1028/taskdaemon/internal/agentexec"
)

const (
	devServerReadyTimeout = 120 * time.Second
	devServerSetupTimeout = 120 * time.Second
	devServerKillGrace    = 5 * time.Second
	freePortRangeStart    = 18100
	freePortRangeEnd      = 18200
)

// isPortInUse reports whether something is listening on port.
func isPortInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// findFreePort scans [start, end) for a bindable TCP port, falling back to
// an OS-assigned ephemeral port if the whole range is occupied.
func findFreePort(start, end int) int {
	for port := start; port < end; port++ {
		l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err == nil {
			l.Close()
			return port
		}
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return start
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// waitForPort polls port until it accepts a TCP connection or timeout
// elapses; used as the fallback readiness check for unrecognized
// frameworks (§4.6 Browser validator step 5).
func waitForPort(ctx context.Context, port int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		if isPortInUse(port) {
			return true
		}
		time.Sleep(2 * time.Second)
	}
	return false
}

// resolvePort implements §4.6 Browser validator step 2: if cfg's port is
// occupied, try to free it by killing the occupant; if that fails, fall
// back to a free port in the configured range and rewrite cfg.Command.
func resolvePort(cfg *devServerConfig, killOccupant func(port int) bool) {
	if !isPortInUse(cfg.Port) {
		return
	}
	if killOccupant(cfg.Port) && !isPortInUse(cfg.Port) {
		return
	}

	newPort := findFreePort(freePortRangeStart, freePortRangeEnd)
	cfg.Command = rewritePort(cfg.Command, cfg.Port, newPort)
	cfg.Port = newPort
}

// rewritePort replaces every occurrence of oldPort's digits in command with
// newPort, whether or not it appears in a port flag or URL; if none is found
// the command runs unmodified and relies on the framework's own
// default-port fallback.
func rewritePort(command string, oldPort, newPort int) string {
	old := strconv.Itoa(oldPort)
	return strings.ReplaceAll(command, old, strconv.Itoa(newPort))
}

// runSetupCommand runs cfg's setup command (e.g. a one-time platform
// bootstrap), capped at devServerSetupTimeout (§4.6 step 3).
func runSetupCommand(ctx context.Context, runner CommandRunner, cmd string) (bool, string) {
	if cmd == "" {
		return true, ""
	}
	runCtx, cancel := context.WithTimeout(ctx, devServerSetupTimeout)
	defer cancel()
	output, err := runner.Run(runCtx, cmd)
	return err == nil, output
}

// startDevServer spawns cfg's command as a detached, process-group-owned
// child so it can be torn down as a tree later (§4.6 step 4).
func startDevServer(command, cwd string) (*agentexec.Process, error) {
	return agentexec.Spawn(agentexec.Command{
		Path: "sh",
		Args: []string{"-c", command},
		Env:  []string{"PWD=" + cwd},
	})
}

// waitForServerReady reads proc's stdout looking for a framework-specific
// ready line, falling back to TCP polling for unrecognized frameworks
// (§4.6 step 5). heartbeat is called periodically while waiting.
func waitForServerReady(ctx context.Context, proc *agentexec.Process, framework string, port int, heartbeat func(elapsed time.Duration)) bool {
	patterns := readyPatterns(framework)
	if len(patterns) == 0 {
		return waitForPort(ctx, port, devServerReadyTimeout)
	}

	readyCh := make(chan bool, 1)
	start := time.Now()
	go func() {
		_ = proc.StreamLines(func(line string) {
			lower := strings.ToLower(line)
			for _, p := range patterns {
				if strings.Contains(lower, p) {
					select {
					case readyCh <- true:
					default:
					}
					return
				}
			}
		})
		select {
		case readyCh <- false:
		default:
		}
	}()

	deadline := time.After(devServerReadyTimeout)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case found := <-readyCh:
			return found
		case <-deadline:
			return false
		case <-ticker.C:
			if heartbeat != nil {
				heartbeat(time.Since(start))
			}
		case <-ctx.Done():
			return false
		}
	}
}

// stopDevServer kills proc's process tree, tolerating a nil process.
func stopDevServer(proc *agentexec.Process) {
	if proc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), devServerKillGrace+time.Second)
	defer cancel()
	proc.Kill(ctx, devServerKillGrace)
}
