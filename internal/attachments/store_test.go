package attachments

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewName(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	name, err := NewName(now, "Beach Day.JPG")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^1700000000123-[0-9a-f]{8}\.jpg$`), name)

	other, err := NewName(now, "beach.jpg")
	require.NoError(t, err)
	assert.NotEqual(t, name, other, "names generated in the same millisecond must differ")
}

func TestNewName_RejectsNonImages(t *testing.T) {
	tests := []string{"notes.txt", "script.js", "noext", "image.jpg.exe"}
	for _, original := range tests {
		t.Run(original, func(t *testing.T) {
			_, err := NewName(time.Now(), original)
			assert.ErrorIs(t, err, ErrUnsupportedType)
		})
	}
}

func TestNameFromURL(t *testing.T) {
	name, err := NameFromURL("/uploads/123-abc.png")
	require.NoError(t, err)
	assert.Equal(t, "123-abc.png", name)

	invalid := []string{
		"/static/123.png",
		"/uploads/",
		"/uploads/../secret",
		"/uploads/a/b.png",
		`/uploads/a\b.png`,
	}
	for _, ref := range invalid {
		t.Run(ref, func(t *testing.T) {
			_, err := NameFromURL(ref)
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}
}
