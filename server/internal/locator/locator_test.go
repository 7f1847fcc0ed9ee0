package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		want    string
		wantOk  bool
	}{
		{"short link", "https://youtu.be/abc123", "abc123", true},
		{"watch page", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"watch page with params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ", true},
		{"short link with query", "https://youtu.be/dQw4w9WgXcQ?si=xyz", "dQw4w9WgXcQ", true},
		{"fragment", "https://youtu.be/dQw4w9WgXcQ#t=1", "dQw4w9WgXcQ", true},
		{"embed", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"legacy player", "http://youtube.com/v/dQw4w9WgXcQ?version=3", "dQw4w9WgXcQ", true},
		{"shorts", "https://youtube.com/shorts/a1_b-2", "a1_b-2", true},
		{"v not first", "https://www.youtube.com/watch?feature=share&v=xyz_9", "xyz_9", true},
		{"mobile host", "https://m.youtube.com/watch?v=abc", "abc", true},
		{"surrounding whitespace", "  https://youtu.be/abc123\n", "abc123", true},
		{"plain text", "not a url", "", false},
		{"empty", "", "", false},
		{"other site", "https://vimeo.com/12345", "", false},
		{"bad characters", "https://youtu.be/ab%20cd", "", false},
		{"watch without id", "https://www.youtube.com/watch?list=PL1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractIdentifier(tt.locator)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractIdentifierDeterministic(t *testing.T) {
	const l = "https://www.youtube.com/watch?v=abc123&list=PL"
	first, _ := ExtractIdentifier(l)
	for range 10 {
		got, _ := ExtractIdentifier(l)
		assert.Equal(t, first, got)
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	id, ok := ExtractIdentifier(Canonical("abc123"))
	assert.True(t, ok)
	assert.Equal(t, "abc123", id)
}
