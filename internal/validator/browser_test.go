package validator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	navigated  string
	clicked    []string
	tabCount   int
	elements   []InteractiveElement
	console    []ConsoleMessage
	closed     bool
}

func (f *fakeDriver) Navigate(ctx context.Context, url string) error {
	f.navigated = url
	return nil
}
func (f *fakeDriver) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (f *fakeDriver) Snapshot(ctx context.Context) (string, []InteractiveElement, error) {
	return "body \"app\"", f.elements, nil
}
func (f *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) { return []byte("png"), nil }
func (f *fakeDriver) ConsoleLog() []ConsoleMessage                   { return f.console }
func (f *fakeDriver) Click(ctx context.Context, selector string) error {
	f.clicked = append(f.clicked, selector)
	return nil
}
func (f *fakeDriver) TabToNextFocusable(ctx context.Context, activate bool) error {
	f.tabCount++
	return nil
}
func (f *fakeDriver) Close() { f.closed = true }

func TestBrowserValidator_NoDevServerSkips(t *testing.T) {
	dir := t.TempDir()
	result := BrowserValidator{Driver: &fakeDriver{}}.Validate(context.Background(), Context{ProjectDir: dir})
	assert.True(t, result.Passed)
	assert.Equal(t, true, result.Metadata["skipped"])
}

func TestBrowserValidator_InteractClicksDiscoveredElementsUpToBudget(t *testing.T) {
	driver := &fakeDriver{}
	v := BrowserValidator{Driver: driver}

	var elements []InteractiveElement
	for i := 0; i < interactionBudget+3; i++ {
		elements = append(elements, InteractiveElement{Role: "button", Selector: "button"})
	}

	var shots [][]byte
	count := v.interact(context.Background(), elements, &shots)

	require.Equal(t, interactionBudget, count)
	assert.Len(t, driver.clicked, interactionBudget)
	assert.Len(t, shots, interactionBudget)
}

func TestBrowserValidator_InteractFallsBackToTabWhenNoElements(t *testing.T) {
	driver := &fakeDriver{}
	v := BrowserValidator{Driver: driver}

	var shots [][]byte
	count := v.interact(context.Background(), nil, &shots)

	assert.Equal(t, interactionBudget, count)
	assert.Equal(t, interactionBudget, driver.tabCount)
	assert.Empty(t, driver.clicked)
}

func TestBrowserValidator_ConsoleErrorsCappedAtTen(t *testing.T) {
	driver := &fakeDriver{}
	for i := 0; i < 15; i++ {
		driver.console = append(driver.console, ConsoleMessage{Level: "error", Text: "boom"})
	}

	// Exercises the same capping logic Validate applies to ConsoleLog()
	// without spinning up a real dev server in the test environment.
	var issues int
	for _, msg := range driver.ConsoleLog() {
		if issues >= maxReportedConsole {
			break
		}
		if msg.Level == "error" {
			issues++
		}
	}
	assert.Equal(t, maxReportedConsole, issues)
}
