package validator

import (
	"context"
	"fmt"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

// Pipeline selects and runs validators against one project/spec pair
// (§4.6 Selection, Execution order).
type Pipeline struct {
	Validators []Validator
}

// DefaultPipeline wires every built-in validator. Capabilities determine
// which of these actually run for a given project.
func DefaultPipeline() *Pipeline {
	return &Pipeline{Validators: []Validator{
		BuildValidator{},
		BrowserValidator{Driver: NewChromedpDriver()},
		ApiValidator{},
		DatabaseValidator{},
	}}
}

// Select filters the pipeline's validators down to those applicable for
// the given capability set.
func (p *Pipeline) Select(capabilities map[string]bool) []Validator {
	var out []Validator
	for _, v := range p.Validators {
		if isApplicable(v, capabilities) {
			out = append(out, v)
		}
	}
	return out
}

// Run executes the build validator first (sequential); if it fails,
// runtime validators are skipped and emit stable "skipped" results
// instead of actually running. Otherwise every runtime validator runs
// concurrently and its own result is returned as is; a validator that
// panics yields a passed result carrying one minor issue (see runSafely).
func (p *Pipeline) Run(ctx context.Context, vc Context) []models.ValidatorResult {
	selected := p.Select(vc.Capabilities)
	if len(selected) == 0 {
		return nil
	}

	var build Validator
	var runtime []Validator
	for _, v := range selected {
		if v.ID() == "build" {
			build = v
		} else {
			runtime = append(runtime, v)
		}
	}

	var results []models.ValidatorResult
	if build != nil {
		res := build.Validate(ctx, vc)
		results = append(results, res)
		if !res.Passed {
			for _, rv := range runtime {
				results = append(results, models.Skipped(rv.ID(), "build failed"))
			}
			return results
		}
	}

	if len(runtime) == 0 {
		return results
	}

	type outcome struct {
		idx int
		res models.ValidatorResult
	}
	ch := make(chan outcome, len(runtime))
	for i, v := range runtime {
		go func(i int, v Validator) {
			res := runSafely(ctx, v, vc)
			ch <- outcome{idx: i, res: res}
		}(i, v)
	}

	runtimeResults := make([]models.ValidatorResult, len(runtime))
	for range runtime {
		o := <-ch
		runtimeResults[o.idx] = o.res
	}
	return append(results, runtimeResults...)
}

// runSafely isolates a validator panic so one misbehaving runtime check
// never takes down the pipeline; a recovered panic becomes a non-blocking
// minor issue, matching the Python orchestrator's exception handling.
func runSafely(ctx context.Context, v Validator, vc Context) (res models.ValidatorResult) {
	defer func() {
		if r := recover(); r != nil {
			res = models.ValidatorResult{
				ID:     v.ID(),
				Passed: true,
				Issues: []models.Issue{{
					Severity:    models.SeverityMinor,
					Description: fmt.Sprintf("validator panicked: %v", r),
				}},
			}
		}
	}()
	return v.Validate(ctx, vc)
}
