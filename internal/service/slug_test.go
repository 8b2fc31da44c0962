package service_test

import (
	"testing"
	"time"

	"github.com/magnolia-blog/magnolia/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"hello-world", true},
		{"go-1-24", true},
		{"a", true},
		{"", false},
		{"Hello", false},
		{"-leading", false},
		{"trailing-", false},
		{"double--dash", false},
		{"under_score", false},
		{"日本語", false},
	}
	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			assert.Equal(t, tt.want, service.ValidSlug(tt.slug))
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"  Go 1.24 released!  ", "go-124-released"},
		{"snake_case and--dashes", "snake-case-and-dashes"},
		{"日本語のタイトル", ""},
		{"Café au lait", "caf-au-lait"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := service.Slugify(tt.title)
			assert.Equal(t, tt.want, got)
			if got != "" {
				assert.True(t, service.ValidSlug(got))
			}
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"go", "web"}, service.NormalizeTags([]string{" go ", "", "web", "go"}))
	assert.Equal(t, []string{}, service.NormalizeTags(nil))
	assert.Equal(t, []string{"a", "b c"}, service.SplitTags("a, b c ,,a"))
}

func TestParsePubDate(t *testing.T) {
	fallback := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := service.ParsePubDate("", fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, got)

	got, err = service.ParsePubDate("2024-05-06", fallback)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), got)

	got, err = service.ParsePubDate("2024-05-06T10:30:00+09:00", fallback)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 6, 1, 30, 0, 0, time.UTC), got)

	got, err = service.ParsePubDate("2024-05-06T10:30", fallback)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 6, 10, 30, 0, 0, time.UTC), got)

	_, err = service.ParsePubDate("yesterday", fallback)
	assert.Error(t, err)
}
