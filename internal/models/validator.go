package models

// Severity classifies a validator issue.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityBlocking Severity = "blocking"
)

// Issue is one finding inside a ValidatorResult.
type Issue struct {
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	File        string   `json:"file,omitempty"`
	Line        int      `json:"line,omitempty"`
}

// ValidatorResult is the tagged variant every validator converges on
// (§4.6, §9 Design Notes: dynamic typing -> tagged variants).
type ValidatorResult struct {
	ID              string                 `json:"id"`
	Passed          bool                   `json:"passed"`
	Issues          []Issue                `json:"issues,omitempty"`
	Screenshots     []string               `json:"screenshots,omitempty"`
	ReportMarkdown  string                 `json:"report_markdown,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// Skipped builds the stable "skipped (build failed)" result shape runtime
// validators emit when the build validator fails (§4.6 Execution order).
func Skipped(id, reason string) ValidatorResult {
	return ValidatorResult{
		ID:     id,
		Passed: false,
		Issues: []Issue{{Severity: SeverityBlocking, Description: reason}},
		Metadata: map[string]interface{}{
			"skipped": true,
		},
	}
}

// ValidatorResults is the on-disk shape of validator_results.json.
type ValidatorResults struct {
	Results []ValidatorResult `json:"results"`
}

// ByID finds a result by validator ID, if present.
func (v *ValidatorResults) ByID(id string) (ValidatorResult, bool) {
	for _, r := range v.Results {
		if r.ID == id {
			return r, true
		}
	}
	return ValidatorResult{}, false
}
