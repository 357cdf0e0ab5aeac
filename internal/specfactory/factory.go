package specfactory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/akfldk1028/taskdaemon/internal/filelock"
	"github.com/akfldk1028/taskdaemon/internal/models"
)

// ErrAlreadyBatched is returned when CreateBatch is called against a parent
// that already has childSpecs or is complete (§4.5 Idempotency guard).
var ErrAlreadyBatched = errors.New("specfactory: parent already batch-created children")

var seqPrefix = regexp.MustCompile(`^(\d{3})-`)

// Factory creates spec directories under specsDir (§4.5 Spec Factory).
type Factory struct {
	specsDir string
}

// New returns a Factory rooted at specsDir.
func New(specsDir string) *Factory {
	return &Factory{specsDir: specsDir}
}

// nextSeq returns one greater than the maximum existing 3-digit prefix
// among the specsDir's children.
func (f *Factory) nextSeq() (int, error) {
	entries, err := os.ReadDir(f.specsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("specfactory: read %s: %w", f.specsDir, err)
	}

	max := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if m := seqPrefix.FindStringSubmatch(e.Name()); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > max {
				max = n
			}
		}
	}
	return max + 1, nil
}

// CreateOne generates a unique spec ID and writes its three canonical files
// (§4.5 Create one).
func (f *Factory) CreateOne(def models.SpecDef) (*models.CreatedSpec, error) {
	seq, err := f.nextSeq()
	if err != nil {
		return nil, err
	}
	return f.createAt(seq, def)
}

func (f *Factory) createAt(seq int, def models.SpecDef) (*models.CreatedSpec, error) {
	slug := Slugify(def.Task)
	id := fmt.Sprintf("%03d-%s", seq, slug)
	dir := filepath.Join(f.specsDir, id)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("specfactory: mkdir %s: %w", dir, err)
	}

	now := time.Now().UTC()
	plan := &models.Plan{
		SpecID:     id,
		Status:     models.StatusQueue,
		TaskType:   def.TaskType,
		Priority:   def.Priority,
		DependsOn:  append([]string(nil), def.DependsOn...),
		ParentTask: def.ParentTask,
		Phases:     []models.Phase{},
		CreatedAt:  now,
		UpdatedAt:  now,
		Context:    def.Context,
	}
	if plan.TaskType == "" {
		plan.TaskType = models.TaskDefault
	}

	if err := WritePlan(dir, plan); err != nil {
		return nil, err
	}

	req := models.Requirements{
		Task:               def.Task,
		ParentSpec:         def.ParentTask,
		Complexity:         def.Complexity,
		FilesToModify:      def.FilesToModify,
		AcceptanceCriteria: nil,
		CreatedAt:          now,
		CreatedBy:          "spec-factory",
	}
	reqRaw, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("specfactory: marshal requirements: %w", err)
	}
	if err := filelock.AtomicWrite(filepath.Join(dir, "requirements.json"), reqRaw); err != nil {
		return nil, err
	}

	specMD := fmt.Sprintf("# %s\n\n%s\n", id, def.Task)
	if err := filelock.AtomicWrite(filepath.Join(dir, "spec.md"), []byte(specMD)); err != nil {
		return nil, err
	}

	return &models.CreatedSpec{ID: id, Dir: dir, Plan: plan}, nil
}

func WritePlan(dir string, plan *models.Plan) error {
	raw, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("specfactory: marshal plan: %w", err)
	}
	return filelock.AtomicWrite(filepath.Join(dir, "implementation_plan.json"), raw)
}

// ReadPlan reads and parses implementation_plan.json from dir.
func ReadPlan(dir string) (*models.Plan, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "implementation_plan.json"))
	if err != nil {
		return nil, err
	}
	var plan models.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("specfactory: parse plan in %s: %w", dir, err)
	}
	return &plan, nil
}

// ReadRequirements reads and parses requirements.json from dir.
func ReadRequirements(dir string) (*models.Requirements, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "requirements.json"))
	if err != nil {
		return nil, err
	}
	var req models.Requirements
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("specfactory: parse requirements in %s: %w", dir, err)
	}
	return &req, nil
}

// CreateBatch creates len(defs) children under parentID in a two-pass
// process: pass 1 creates every child with empty dependsOn, pass 2 resolves
// placeholder references against the batch and writes dependsOn back
// (§4.5 Create batch).
func (f *Factory) CreateBatch(parentID string, defs []models.SpecDef) ([]*models.CreatedSpec, error) {
	parentDir := filepath.Join(f.specsDir, parentID)
	parentPlan, err := ReadPlan(parentDir)
	if err == nil {
		if len(parentPlan.ChildSpecs) > 0 || parentPlan.Status == models.StatusComplete {
			return nil, fmt.Errorf("%w: parent %s has children %v", ErrAlreadyBatched, parentID, parentPlan.ChildSpecs)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Pass 1: create every child with its raw dependsOn stashed aside and
	// an empty dependsOn written to disk.
	rawDeps := make([][]string, len(defs))
	created := make([]*models.CreatedSpec, len(defs))

	startSeq, err := f.nextSeq()
	if err != nil {
		return nil, err
	}

	for i, def := range defs {
		rawDeps[i] = def.DependsOn
		child := def
		child.DependsOn = nil
		cs, err := f.createAt(startSeq+i, child)
		if err != nil {
			return nil, fmt.Errorf("specfactory: create batch child %d: %w", i, err)
		}
		created[i] = cs
	}

	// Pass 2: build the reference map and resolve every child's raw deps.
	refMap := buildReferenceMap(parentID, created)
	for i, cs := range created {
		resolved := make([]string, 0, len(rawDeps[i]))
		for _, raw := range rawDeps[i] {
			resolved = append(resolved, resolveRef(raw, refMap, created))
		}
		cs.Plan.DependsOn = resolved
		if err := WritePlan(cs.Dir, cs.Plan); err != nil {
			return nil, fmt.Errorf("specfactory: rewrite dependsOn for %s: %w", cs.ID, err)
		}
	}

	if parentPlan != nil {
		ids := make([]string, len(created))
		for i, cs := range created {
			ids[i] = cs.ID
		}
		parentPlan.ChildSpecs = ids
		if err := WritePlan(parentDir, parentPlan); err != nil {
			return nil, fmt.Errorf("specfactory: pin parent %s childSpecs: %w", parentID, err)
		}
	}

	return created, nil
}
