package specfactory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify_Basic(t *testing.T) {
	assert.Equal(t, "build-backend-api-module", Slugify("Build Backend API Module"))
}

func TestSlugify_StripsPunctuation(t *testing.T) {
	assert.Equal(t, "fix-the-users-login-bug", Slugify("Fix the user's login bug!"))
}

func TestSlugify_TruncatesToFiftyChars(t *testing.T) {
	long := strings.Repeat("word ", 30)
	slug := Slugify(long)
	assert.LessOrEqual(t, len(slug), maxSlugLength)
}

func TestBareSlug_StripsNumericPrefix(t *testing.T) {
	assert.Equal(t, "backend-api-module", bareSlug("002-backend-api-module"))
	assert.Equal(t, "no-prefix", bareSlug("no-prefix"))
}
