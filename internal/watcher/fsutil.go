package watcher

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// addRecursive walks root and registers every directory (existing ones
// only; directories created afterward are picked up as they appear via
// Watcher.handle) with fsw.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}
