package validator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// chromedpRoleSelectors maps ARIA roles the interaction step cares about to
// CSS selectors chromedp can click directly. Accessibility nodes with any
// other role are not turned into clickable elements.
var chromedpRoleSelectors = []struct {
	role     string
	selector string
}{
	{"button", "button, [role=button]"},
	{"link", "a[href]"},
	{"textbox", "input[type=text], input:not([type]), textarea"},
	{"checkbox", "input[type=checkbox], [role=switch]"},
}

// ChromedpDriver implements BrowserDriver on top of the Chrome DevTools
// Protocol via github.com/chromedp/chromedp (§4.6 Browser automation
// library — out-of-pack, see DESIGN.md).
type ChromedpDriver struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	ctxCancel   context.CancelFunc

	mu   sync.Mutex
	logs []ConsoleMessage
}

// NewChromedpDriver launches a fresh headless Chrome instance. Pass
// AUTO_CLAUDE_HEADLESS_BROWSER=false in the environment to run headed for
// interactive debugging, mirroring the default-visible behavior of the
// Python QA validator this replaces.
func NewChromedpDriver() *ChromedpDriver {
	headless := strings.ToLower(os.Getenv("AUTO_CLAUDE_HEADLESS_BROWSER")) != "false"

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", headless))
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx)

	d := &ChromedpDriver{allocCancel: allocCancel, ctx: ctx, ctxCancel: ctxCancel}

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if e, ok := ev.(*runtime.EventConsoleAPICalled); ok {
			level := "warning"
			if e.Type == runtime.APITypeError {
				level = "error"
			}
			var parts []string
			for _, arg := range e.Args {
				parts = append(parts, string(arg.Value))
			}
			d.mu.Lock()
			d.logs = append(d.logs, ConsoleMessage{Level: level, Text: strings.Join(parts, " ")})
			d.mu.Unlock()
		}
	})

	return d
}

func (d *ChromedpDriver) Navigate(ctx context.Context, url string) error {
	return chromedp.Run(d.ctx, chromedp.Navigate(url))
}

func (d *ChromedpDriver) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chromedp.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (d *ChromedpDriver) Snapshot(ctx context.Context) (string, []InteractiveElement, error) {
	var nodes []*accessibility.Node
	err := chromedp.Run(d.ctx, chromedp.ActionFunc(func(actx context.Context) error {
		var fullErr error
		nodes, fullErr = accessibility.GetFullAXTree().Do(actx)
		return fullErr
	}))
	if err != nil {
		return "", nil, fmt.Errorf("validator: accessibility snapshot: %w", err)
	}

	var sb strings.Builder
	var elements []InteractiveElement
	for _, n := range nodes {
		if n.Role == nil || n.Name == nil {
			continue
		}
		role := fmt.Sprintf("%v", n.Role.Value)
		name := fmt.Sprintf("%v", n.Name.Value)
		fmt.Fprintf(&sb, "%s %q\n", role, name)

		for _, rs := range chromedpRoleSelectors {
			if role == rs.role {
				elements = append(elements, InteractiveElement{Role: role, Selector: rs.selector})
				break
			}
		}
	}
	return sb.String(), elements, nil
}

func (d *ChromedpDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := chromedp.Run(d.ctx, chromedp.FullScreenshot(&buf, 90))
	return buf, err
}

func (d *ChromedpDriver) ConsoleLog() []ConsoleMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ConsoleMessage, len(d.logs))
	copy(out, d.logs)
	return out
}

func (d *ChromedpDriver) Click(ctx context.Context, selector string) error {
	return chromedp.Run(d.ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (d *ChromedpDriver) TabToNextFocusable(ctx context.Context, activate bool) error {
	keys := []rune{'\t'}
	if activate {
		keys = append(keys, '\n')
	}
	return chromedp.Run(d.ctx, chromedp.SendKeys("body", string(keys)))
}

func (d *ChromedpDriver) Close() {
	d.ctxCancel()
	d.allocCancel()
}
