package specfactory

import (
	"os"
	"path/filepath"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

// RepairLegacy re-runs reference resolution over every existing plan,
// grouped by parentTask, rewriting any dependsOn entry that still looks
// like a placeholder a sibling spec can resolve. Returns the number of
// plans mutated (§4.5 Legacy repair).
func (f *Factory) RepairLegacy() (int, error) {
	entries, err := os.ReadDir(f.specsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	type loaded struct {
		id   string
		dir  string
		plan *models.Plan
	}

	byParent := make(map[string][]loaded)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(f.specsDir, e.Name())
		plan, err := ReadPlan(dir)
		if err != nil {
			continue // I1: no plan file means invisible to scheduling, also invisible to repair
		}
		byParent[plan.ParentTask] = append(byParent[plan.ParentTask], loaded{id: e.Name(), dir: dir, plan: plan})
	}

	mutated := 0
	for parentID, siblings := range byParent {
		if parentID == "" {
			continue
		}
		created := make([]*models.CreatedSpec, len(siblings))
		for i, s := range siblings {
			created[i] = &models.CreatedSpec{ID: s.id, Dir: s.dir, Plan: s.plan}
		}
		refMap := buildReferenceMap(parentID, created)

		for _, s := range siblings {
			changed := false
			resolved := make([]string, len(s.plan.DependsOn))
			for i, raw := range s.plan.DependsOn {
				r := resolveRef(raw, refMap, created)
				resolved[i] = r
				if r != raw {
					changed = true
				}
			}
			if changed {
				s.plan.DependsOn = resolved
				if err := WritePlan(s.dir, s.plan); err != nil {
					return mutated, err
				}
				mutated++
			}
		}
	}
	return mutated, nil
}
