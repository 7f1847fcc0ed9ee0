package locator

import (
	"regexp"
	"strings"

	"github.com/liquidtune/tunevault/server/internal"
)

// Recognised locator shapes, in priority order. The first one matching wins.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/embed/([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/v/([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/shorts/([^&\n?#/]+)`),
	regexp.MustCompile(`youtube\.com/watch\?[^#\n]*?&v=([^&\n?#]+)`),
}

var identifierShape = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ExtractIdentifier returns the content identifier embedded in locator.
// Surrounding whitespace is ignored, the identifier ends at the first
// '&', '?', '#' or newline.
func ExtractIdentifier(locator string) (internal.Identifier, bool) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", false
	}

	for _, p := range patterns {
		m := p.FindStringSubmatch(locator)
		if m == nil {
			continue
		}
		if !identifierShape.MatchString(m[1]) {
			return "", false
		}
		return m[1], true
	}

	return "", false
}

// Canonical renders the watch page locator of id.
func Canonical(id internal.Identifier) string {
	return "https://www.youtube.com/watch?v=" + id
}
