package specfactory

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

// referenceMap maps every pattern an upstream planner might have written
// for a batch child to that child's actual generated spec ID (§4.5 Pass 2).
type referenceMap map[string]string

// buildReferenceMap registers, for each child at index i (0-based) of a
// batch created under parentID, every key a planner might plausibly have
// used to refer to it.
func buildReferenceMap(parentID string, created []*models.CreatedSpec) referenceMap {
	m := make(referenceMap)
	for i, cs := range created {
		internalNumber := fmt.Sprintf("%03d", i+2) // first child is "002"
		batchIndex := strconv.Itoa(i + 1)          // 1-based, unpadded
		slug := bareSlug(cs.ID)

		m[internalNumber] = cs.ID
		m[batchIndex] = cs.ID
		m[cs.ID] = cs.ID
		m[slug] = cs.ID
		m[fmt.Sprintf("%s-%s", internalNumber, slug)] = cs.ID
	}
	return m
}

var leadingDigitsRE = regexp.MustCompile(`^\d+`)

// resolveRef resolves one raw dependency reference against refMap, falling
// back to numeric-prefix retry and slug fuzzy matching, and finally
// returning the reference unchanged as a tolerated dangling reference
// (§4.5 Pass 2 resolution order).
func resolveRef(raw string, refMap referenceMap, created []*models.CreatedSpec) string {
	if id, ok := refMap[raw]; ok {
		return id
	}

	if digits := leadingDigitsRE.FindString(raw); digits != "" {
		if n, err := strconv.Atoi(digits); err == nil {
			if id, ok := refMap[strconv.Itoa(n)]; ok {
				return id
			}
			padded := fmt.Sprintf("%03d", n)
			if id, ok := refMap[padded]; ok {
				return id
			}
		}
	}

	if best, ok := fuzzySlugMatch(raw, created); ok {
		return best
	}

	return raw
}

// fuzzySlugMatch implements the slug-overlap fallback: a candidate sibling
// matches if its slug contains or starts with the dep's slug with overlap
// ratio > 0.3; ties resolved by picking the highest-scoring candidate
// (§4.5 Pass 2, third bullet).
func fuzzySlugMatch(raw string, created []*models.CreatedSpec) (string, bool) {
	depSlug := Slugify(strings.TrimSuffix(bareSlug(raw), "-"))
	if depSlug == "" {
		return "", false
	}

	bestID := ""
	bestScore := 0.0
	for _, cs := range created {
		slug := bareSlug(cs.ID)
		if !strings.Contains(slug, depSlug) && !strings.HasPrefix(slug, depSlug) {
			continue
		}
		score := overlapRatio(depSlug, slug)
		if score > 0.3 && score > bestScore {
			bestScore = score
			bestID = cs.ID
		}
	}
	if bestID == "" {
		return "", false
	}
	return bestID, true
}

// overlapRatio is |shared tokens| / |tokens in the longer slug|, a simple,
// deterministic stand-in for the original planner's difflib-style ratio.
func overlapRatio(a, b string) float64 {
	at := strings.Split(a, "-")
	bt := strings.Split(b, "-")
	bset := make(map[string]bool, len(bt))
	for _, t := range bt {
		bset[t] = true
	}
	shared := 0
	for _, t := range at {
		if bset[t] {
			shared++
		}
	}
	longer := len(at)
	if len(bt) > longer {
		longer = len(bt)
	}
	if longer == 0 {
		return 0
	}
	return float64(shared) / float64(longer)
}
