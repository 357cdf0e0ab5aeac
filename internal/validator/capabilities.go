package validator

import (
	"os"
	"path/filepath"
)

// DetectCapabilities inspects projectDir and reports which capability keys
// gate the pipeline's runtime validators (§4.6 Selection). It never fails:
// an undetectable project simply runs with every capability false, which
// Select then narrows down to the always-applicable build validator.
func DetectCapabilities(projectDir string) map[string]bool {
	caps := map[string]bool{
		"has_frontend": getDevServerConfig(projectDir) != nil,
		"has_api":      hasAPITests(projectDir),
		"has_database": hasDatabase(projectDir),
	}
	return caps
}

func hasAPITests(projectDir string) bool {
	for _, pattern := range apiTestGlobs {
		matches, _ := filepath.Glob(filepath.Join(projectDir, pattern))
		if len(matches) > 0 {
			return true
		}
	}
	return false
}

func hasDatabase(projectDir string) bool {
	for _, dir := range migrationDirs {
		if info, err := os.Stat(filepath.Join(projectDir, dir)); err == nil && info.IsDir() {
			return true
		}
	}
	found := false
	filepath.WalkDir(projectDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || found || d.IsDir() {
			return nil
		}
		switch d.Name() {
		case "schema.prisma", "schema.py", "models.py":
			found = true
		}
		return nil
	})
	return found
}
