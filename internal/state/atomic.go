package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// atomicWriteWithPIDSuffix writes data to path via a temp file whose name
// embeds the current process ID, then renames it into place (invariant I9:
// "temp file unique per (pid, thread) is written and renamed"). Go has no
// OS thread handle to name a temp file after, so the nanosecond clock
// reading stands in for "thread" uniqueness within one process.
func atomicWriteWithPIDSuffix(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("atomic write: mkdir %s: %w", dir, err)
	}

	tmpName := fmt.Sprintf(".tmp-%d-%d-%s", os.Getpid(), time.Now().UnixNano(), filepath.Base(path))
	tmpPath := filepath.Join(dir, tmpName)

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("atomic write: write temp %s: %w", tmpPath, err)
	}
	defer os.Remove(tmpPath)

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomic write: rename %s -> %s: %w", tmpPath, path, err)
	}
	return nil
}

// nowUTC is a small indirection so tests could stub time if ever needed;
// kept trivial on purpose.
func nowUTC() time.Time {
	return time.Now().UTC()
}
