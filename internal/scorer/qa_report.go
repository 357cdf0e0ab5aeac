package scorer

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

var (
	approvedRe = regexp.MustCompile(`(?i)\bapproved\b`)
	rejectedRe = regexp.MustCompile(`(?i)\b(rejected|not approved|denied)\b`)
)

// qaApproved determines qa_approved (§4.10 Score), in priority order: a
// goldmark AST scan of qa_report.md, a raw-text regex fallback if the
// document fails to parse usefully, and finally the plan's terminal status.
func qaApproved(specDir string, plan *models.Plan) bool {
	data, err := os.ReadFile(filepath.Join(specDir, "qa_report.md"))
	if err != nil {
		return inferQAFromPlan(plan)
	}

	if approved, ok := scanQAMarkdown(data); ok {
		return approved
	}
	if rejectedRe.Match(data) {
		return false
	}
	if approvedRe.Match(data) {
		return true
	}
	return inferQAFromPlan(plan)
}

// scanQAMarkdown walks the document's headings and emphasis nodes looking
// for an approved/rejected verdict near them, the same ast.Walk +
// text-extraction idiom the markdown plan parser uses (§9 Design Notes).
// ok is false when no heading/emphasis node carries a clear verdict, leaving
// the caller to fall back to a plain-text scan.
func scanQAMarkdown(source []byte) (approved bool, ok bool) {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	found := false
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading, ast.KindEmphasis:
			t := nodeText(n, source)
			if rejectedRe.MatchString(t) {
				approved, found = false, true
				return ast.WalkStop, nil
			}
			if approvedRe.MatchString(t) {
				approved, found = true, true
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return approved, found
}

// nodeText concatenates every *ast.Text descendant of n, in document order.
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
			buf.WriteByte(' ')
		} else {
			buf.WriteString(nodeText(c, source))
		}
	}
	return strings.TrimSpace(buf.String())
}

func inferQAFromPlan(plan *models.Plan) bool {
	if plan == nil {
		return false
	}
	return models.ClassOf(plan.Status) == models.ClassCompleted
}
