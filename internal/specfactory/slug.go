package specfactory

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
)

const maxSlugLength = 50

// Slugify lowercases and ASCII-word-normalizes task, truncating to
// maxSlugLength characters (§4.5 Create one). Word boundaries come from
// uax29's Unicode word segmenter rather than a naive split on whitespace,
// so the slug stays correct for task descriptions containing punctuation,
// apostrophes, or non-ASCII scripts.
func Slugify(task string) string {
	var parts []string
	for word := range words.FromString(task) {
		w := asciiWord(word)
		if w != "" {
			parts = append(parts, w)
		}
	}
	slug := strings.Join(parts, "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// asciiWord keeps only ASCII letters and digits from a segmented word,
// lowercased; a word that is pure punctuation/whitespace yields "".
func asciiWord(word string) string {
	var b strings.Builder
	for _, r := range word {
		if r > unicode.MaxASCII {
			continue
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// bareSlug strips a leading "<digits>-" sequence number from an id,
// returning just its slug portion (e.g. "002-backend-api" -> "backend-api").
func bareSlug(id string) string {
	idx := strings.IndexByte(id, '-')
	if idx < 0 {
		return id
	}
	prefix := id[:idx]
	for _, r := range prefix {
		if !unicode.IsDigit(r) {
			return id
		}
	}
	return id[idx+1:]
}
