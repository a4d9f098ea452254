package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		isDir   bool
		want    bool
	}{
		{"*.iso", "disk.iso", false, true},
		{"*.iso", "images/old/disk.iso", false, true},
		{"*.iso", "disk.iso.part", false, false},
		{"/top.txt", "top.txt", false, true},
		{"/top.txt", "nested/top.txt", false, false},
		{"photos/*.jpg", "photos/a.jpg", false, true},
		{"photos/*.jpg", "backup/photos/a.jpg", false, false},
		{"photos/**", "photos/2024/jan/a.jpg", false, true},
		{"cache/", "home/cache", true, true},
		{"cache/", "home/cache", false, false},
		{"img?.png", "img1.png", false, true},
		{"img?.png", "img12.png", false, false},
		{"[!a]*.md", "readme.md", false, true},
		{"[!a]*.md", "about.md", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			p, err := compilePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.match(tt.path, tt.isDir))
		})
	}
}

func TestCompilePatternInvalid(t *testing.T) {
	_, err := compilePattern("[unclosed")
	require.Error(t, err)
	_, err = compilePattern("/")
	require.Error(t, err)
}
