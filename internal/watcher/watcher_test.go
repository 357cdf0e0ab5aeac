package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlan(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, PlanFile), []byte(`{"status":"queue"}`), 0644))
}

func TestWatcher_EmitsEventOnPlanWrite(t *testing.T) {
	root := t.TempDir()
	specDir := filepath.Join(root, "001-impl")
	require.NoError(t, os.MkdirAll(specDir, 0755))

	var mu sync.Mutex
	var got []Event
	w, err := New(root, func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	}, WithDebounceWindow(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	writePlan(t, specDir)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "001-impl", got[0].SpecID)
}

func TestWatcher_DebouncesRepeatedWrites(t *testing.T) {
	root := t.TempDir()
	specDir := filepath.Join(root, "001-impl")
	require.NoError(t, os.MkdirAll(specDir, 0755))

	var mu sync.Mutex
	count := 0
	w, err := New(root, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}, WithDebounceWindow(1*time.Second))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	for i := 0; i < 5; i++ {
		writePlan(t, specDir)
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, func(Event) {})
	require.NoError(t, err)
	require.NoError(t, w.Start())

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()
}
