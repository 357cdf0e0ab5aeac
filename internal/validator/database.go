package validator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

// migrationDirs mirrors db_validator.py's known migration tool layouts.
var migrationDirs = []string{
	"prisma/migrations", "drizzle", "migrations", "alembic/versions", "db/migrate",
}

var schemaGlobs = []string{"**/schema.prisma", "**/schema.py", "**/models.py"}

// DatabaseValidator checks for migration directories and schema files. It
// never blocks — it reports what it detects, not a pass/fail judgement.
type DatabaseValidator struct{}

func (DatabaseValidator) ID() string               { return "database" }
func (DatabaseValidator) Description() string      { return "Database migration and schema validation" }
func (DatabaseValidator) CapabilityTrigger() string { return "has_database" }

func (DatabaseValidator) Validate(_ context.Context, vc Context) models.ValidatorResult {
	var foundDirs []string
	for _, dir := range migrationDirs {
		if info, err := os.Stat(filepath.Join(vc.ProjectDir, dir)); err == nil && info.IsDir() {
			foundDirs = append(foundDirs, dir)
		}
	}

	var schemaFiles []string
	filepath.WalkDir(vc.ProjectDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := d.Name()
		if name == "schema.prisma" || name == "schema.py" || name == "models.py" {
			schemaFiles = append(schemaFiles, path)
		}
		return nil
	})

	report := "## Database Validation\n\n"
	if len(foundDirs) > 0 {
		report += fmt.Sprintf("- Migration directories: %v\n", foundDirs)
	}
	if len(schemaFiles) > 0 {
		report += fmt.Sprintf("- Schema files found: %d\n", len(schemaFiles))
	}
	report += "- Database validation configured\n"

	if len(schemaFiles) > 10 {
		schemaFiles = schemaFiles[:10]
	}
	return models.ValidatorResult{
		ID:             "database",
		Passed:         true,
		ReportMarkdown: report,
		Metadata: map[string]interface{}{
			"migration_dirs": foundDirs,
			"schema_files":   schemaFiles,
		},
	}
}
