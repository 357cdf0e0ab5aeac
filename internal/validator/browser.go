package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

const (
	networkIdleTimeout  = 60 * time.Second
	selectorTimeout     = 15 * time.Second
	settleDelay         = 2 * time.Second
	interactionBudget   = 6
	maxReportedConsole  = 10
)

// ConsoleMessage is one captured browser console entry.
type ConsoleMessage struct {
	Level string // "error" or "warning"
	Text  string
}

// InteractiveElement is one role-based locator the driver discovered in the
// accessibility snapshot (a button, link, text input, or toggle).
type InteractiveElement struct {
	Role     string
	Selector string
}

// BrowserDriver is the automation surface the browser validator needs
// (§4.6 note: no headless-browser library exists in the retrieval pack —
// this interface keeps the concrete engine swappable; chromedpDriver is
// the shipped implementation).
type BrowserDriver interface {
	Navigate(ctx context.Context, url string) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Snapshot returns the page's accessibility tree along with the
	// role-based interactive elements discovered in it.
	Snapshot(ctx context.Context) (tree string, elements []InteractiveElement, err error)
	Screenshot(ctx context.Context) ([]byte, error)
	ConsoleLog() []ConsoleMessage
	Click(ctx context.Context, selector string) error
	// TabToNextFocusable cycles focus forward (Tab) and optionally
	// activates it (Enter); used as the last-resort interaction strategy.
	TabToNextFocusable(ctx context.Context, activate bool) error
	Close()
}

// BrowserValidator drives a dev server + headless browser session against
// the project under test (§4.6 Browser validator, the hard one).
type BrowserValidator struct {
	Driver BrowserDriver
}

func (BrowserValidator) ID() string               { return "browser" }
func (BrowserValidator) Description() string      { return "Browser-based UI validation" }
func (BrowserValidator) CapabilityTrigger() string { return "has_frontend" }

func (v BrowserValidator) Validate(ctx context.Context, vc Context) models.ValidatorResult {
	cfg := getDevServerConfig(vc.ProjectDir)
	if cfg == nil {
		return models.ValidatorResult{
			ID:             "browser",
			Passed:         true,
			ReportMarkdown: "## Browser Validation\n\n- No dev server detected, skipping\n",
			Metadata:       map[string]interface{}{"skipped": true, "reason": "no dev server detected"},
		}
	}

	// Step 2: port conflict resolution.
	resolvePort(cfg, killPortOccupant)

	runner := vc.Runner
	if runner == nil {
		runner = &ShellCommandRunner{WorkDir: vc.ProjectDir}
	}

	// Step 3: optional setup command.
	if ok, output := runSetupCommand(ctx, runner, cfg.SetupCmd); !ok {
		return models.ValidatorResult{
			ID:             "browser",
			Passed:         false,
			ReportMarkdown: "## Browser Validation\n\n- Setup command failed\n",
			Issues: []models.Issue{{
				Severity:    models.SeverityMajor,
				Description: "setup command failed: " + truncate(output, 200),
			}},
		}
	}

	// Step 4: spawn dev server.
	proc, err := startDevServer(cfg.Command, vc.ProjectDir)
	if err != nil {
		return models.ValidatorResult{
			ID:             "browser",
			Passed:         false,
			ReportMarkdown: "## Browser Validation\n\n- Failed to start dev server\n",
			Issues: []models.Issue{{
				Severity:    models.SeverityBlocking,
				Description: "failed to start dev server: " + err.Error(),
			}},
		}
	}
	// Step 9: always tear down the dev server and browser, even on error.
	defer stopDevServer(proc)
	defer v.Driver.Close()

	// Step 5: wait for readiness.
	if !waitForServerReady(ctx, proc, cfg.Framework, cfg.Port, nil) {
		return models.ValidatorResult{
			ID:             "browser",
			Passed:         false,
			ReportMarkdown: "## Browser Validation\n\n- Dev server did not become ready in time\n",
			Issues: []models.Issue{{
				Severity:    models.SeverityBlocking,
				Description: "dev server did not become ready within the timeout",
			}},
		}
	}

	url := fmt.Sprintf("http://localhost:%d", cfg.Port)

	// Step 6: navigate, wait for DOM/content, settle.
	if err := v.Driver.Navigate(ctx, url); err != nil {
		return models.ValidatorResult{
			ID:             "browser",
			Passed:         false,
			ReportMarkdown: "## Browser Validation\n\n- Navigation failed\n",
			Issues: []models.Issue{{
				Severity:    models.SeverityBlocking,
				Description: "navigation failed: " + err.Error(),
			}},
		}
	}
	selCtx, cancel := context.WithTimeout(ctx, networkIdleTimeout+selectorTimeout)
	_ = v.Driver.WaitForSelector(selCtx, "body", selectorTimeout)
	cancel()
	time.Sleep(settleDelay)

	// Step 7: accessibility snapshot, screenshot, role-based interaction.
	tree, elements, _ := v.Driver.Snapshot(ctx)
	var screenshots [][]byte
	if shot, err := v.Driver.Screenshot(ctx); err == nil {
		screenshots = append(screenshots, shot)
	}

	interactionCount := v.interact(ctx, elements, &screenshots)

	// Step 8: categorize console errors vs warnings, cap at 10.
	var issues []models.Issue
	errorCount, warningCount := 0, 0
	for _, msg := range v.Driver.ConsoleLog() {
		if len(issues) >= maxReportedConsole {
			break
		}
		if msg.Level == "error" {
			errorCount++
			issues = append(issues, models.Issue{
				Severity:    models.SeverityMinor,
				Description: "console error: " + truncate(msg.Text, 200),
			})
		} else {
			warningCount++
		}
	}

	report := fmt.Sprintf(
		"## Browser Validation\n\n- Dev server ready on port %d\n- %d interaction(s) performed\n- %d console error(s)\n- %d console warning(s)\n",
		cfg.Port, interactionCount, errorCount, warningCount,
	)
	if tree != "" {
		report += "\n### Accessibility snapshot\n\n```\n" + truncate(tree, 2000) + "\n```\n"
	}

	return models.ValidatorResult{
		ID:             "browser",
		Passed:         true,
		Issues:         issues,
		Screenshots:    screenshotPaths(screenshots),
		ReportMarkdown: report,
		Metadata: map[string]interface{}{
			"port":       cfg.Port,
			"framework":  cfg.Framework,
			"elements":   len(elements),
			"interacted": interactionCount,
		},
	}
}

// interact performs role-based clicks up to interactionBudget, falling
// back to Tab+Enter focus cycling when no accessible elements were found
// (§4.6 step 7). It screenshots after every activation.
func (v BrowserValidator) interact(ctx context.Context, elements []InteractiveElement, screenshots *[][]byte) int {
	count := 0
	if len(elements) > 0 {
		for _, el := range elements {
			if count >= interactionBudget {
				break
			}
			if err := v.Driver.Click(ctx, el.Selector); err != nil {
				continue
			}
			count++
			if shot, err := v.Driver.Screenshot(ctx); err == nil {
				*screenshots = append(*screenshots, shot)
			}
		}
		return count
	}

	for count < interactionBudget {
		if err := v.Driver.TabToNextFocusable(ctx, true); err != nil {
			break
		}
		count++
		if shot, err := v.Driver.Screenshot(ctx); err == nil {
			*screenshots = append(*screenshots, shot)
		}
	}
	return count
}

// screenshotPaths summarizes captured screenshots until a caller persists
// the raw bytes under the spec directory and records real file paths.
func screenshotPaths(shots [][]byte) []string {
	paths := make([]string, 0, len(shots))
	for i, s := range shots {
		paths = append(paths, fmt.Sprintf("screenshot-%d (%d bytes)", i+1, len(s)))
	}
	return paths
}
