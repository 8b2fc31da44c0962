package transfer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/kv"
	"github.com/magnolia-blog/magnolia/internal/repository"
	"github.com/magnolia-blog/magnolia/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newArticleService(t *testing.T) *service.ArticleService {
	t.Helper()
	store, err := kv.OpenInMemory(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return service.NewArticleService(repository.NewArticleRepository(store), "Uncategorized", zap.NewNop())
}

func TestParseFile(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		slug    string
		body    string
		wantErr bool
	}{
		{
			name:  "basic",
			input: "---\nslug: hello\ntitle: Hello\n---\n# Hi\n",
			slug:  "hello",
			body:  "# Hi",
		},
		{
			name:  "crlf and bom",
			input: "\ufeff---\r\nslug: hello\r\ntitle: Hello\r\n---\r\nbody\r\n",
			slug:  "hello",
			body:  "body",
		},
		{
			name:  "no body",
			input: "---\nslug: empty\ntitle: Empty\n---",
			slug:  "empty",
		},
		{
			name:  "delimiter in body",
			input: "---\nslug: rule\ntitle: Rule\n---\nabove\n---\nbelow\n",
			slug:  "rule",
			body:  "above\n---\nbelow",
		},
		{
			name:  "blank lines kept",
			input: "---\nslug: gap\ntitle: Gap\n---\n\ntext\n\n",
			slug:  "gap",
			body:  "\ntext\n",
		},
		{name: "missing front matter", input: "# Just markdown\n", wantErr: true},
		{name: "unterminated", input: "---\nslug: x\ntitle: X\n", wantErr: true},
		{name: "invalid yaml", input: "---\nslug: [x\n---\n", wantErr: true},
		{name: "missing slug", input: "---\ntitle: X\n---\nbody\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseFile([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.slug, doc.Slug)
			assert.Equal(t, tt.body, doc.Body)
		})
	}
}

func TestMarshal(t *testing.T) {
	pub := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	article := &domain.Article{
		ID:        "0190a3c2-7d4e-7000-8000-000000000001",
		Slug:      "hello",
		Title:     "Hello: a story",
		PubDate:   pub,
		Category:  "news",
		Tags:      []string{"go", "web"},
		Body:      "# Hello",
		CreatedAt: pub,
		UpdatedAt: pub,
	}

	data, err := Marshal(article)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "---\n"))
	assert.Contains(t, string(data), "\nslug: hello\n")
	assert.True(t, strings.HasSuffix(string(data), "---\n# Hello\n"))

	doc, err := ParseFile(data)
	require.NoError(t, err)
	assert.Equal(t, article.Title, doc.Title)
	assert.True(t, pub.Equal(doc.PubDate))
	assert.Equal(t, article.Tags, doc.Tags)
	assert.Equal(t, "# Hello", doc.Body)
}

func TestMarshalParseKeepsBodyAndDate(t *testing.T) {
	pub := time.Date(2024, 3, 1, 9, 30, 15, 123456789, time.UTC)
	for _, body := range []string{"no newline", "one newline\n", "two newlines\n\n", "\nleading"} {
		data, err := Marshal(&domain.Article{Slug: "s", Title: "T", PubDate: pub, Body: body})
		require.NoError(t, err)
		doc, err := ParseFile(data)
		require.NoError(t, err)
		assert.Equal(t, body, doc.Body)
		assert.True(t, pub.Equal(doc.PubDate), "got %s", doc.PubDate)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newArticleService(t)
	for _, req := range []*domain.CreateArticleRequest{
		{Slug: "first", Title: "First", PubDate: "2024-01-01", Category: "news", Tags: []string{"go"}, Body: "one"},
		{Slug: "second", Title: "Second", PubDate: "2024-02-01", Body: "two"},
	} {
		_, err := src.Create(ctx, req)
		require.NoError(t, err)
	}
	articles, err := src.ListAll(ctx)
	require.NoError(t, err)

	dir := t.TempDir()
	n, err := Export(ctx, articles, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, filepath.Join(dir, "first.md"))
	assert.FileExists(t, filepath.Join(dir, "second.md"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	dst := newArticleService(t)
	result, err := Import(ctx, dir, dst)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Created: 2}, result)

	first, err := dst.GetBySlug(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, "news", first.Category)
	assert.Equal(t, []string{"go"}, first.Tags)
	assert.Equal(t, "one", first.Body)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), first.PubDate.UTC())

	second, err := dst.GetBySlug(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, "Uncategorized", second.Category)
}

func TestExportImportKeepsBodyAndPubDateExactly(t *testing.T) {
	ctx := context.Background()
	src := newArticleService(t)
	_, err := src.Create(ctx, &domain.CreateArticleRequest{
		Slug: "precise", Title: "Precise", PubDate: "2024-05-06T07:08:09.25Z", Body: "ends with newline\n",
	})
	require.NoError(t, err)
	articles, err := src.ListAll(ctx)
	require.NoError(t, err)

	dir := t.TempDir()
	_, err = Export(ctx, articles, dir)
	require.NoError(t, err)
	dst := newArticleService(t)
	_, err = Import(ctx, dir, dst)
	require.NoError(t, err)

	got, err := dst.GetBySlug(ctx, "precise")
	require.NoError(t, err)
	assert.Equal(t, articles[0].Body, got.Body)
	assert.True(t, articles[0].PubDate.Equal(got.PubDate), "want %s, got %s", articles[0].PubDate, got.PubDate)
}

func TestImportUpdatesExistingSlug(t *testing.T) {
	ctx := context.Background()
	svc := newArticleService(t)
	existing, err := svc.Create(ctx, &domain.CreateArticleRequest{Slug: "post", Title: "Old", Tags: []string{"a"}, Body: "old"})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "post.md"),
		[]byte("---\nslug: post\ntitle: New\ncategory: tech\n---\nnew\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fresh.md"),
		[]byte("---\nslug: fresh\ntitle: Fresh\n---\nfresh\n"), 0o644))

	result, err := Import(ctx, dir, svc)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Created: 1, Updated: 1}, result)

	updated, err := svc.GetByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, "tech", updated.Category)
	assert.Empty(t, updated.Tags)
	assert.True(t, existing.PubDate.Equal(updated.PubDate))

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestImportStopsAtBadFile(t *testing.T) {
	ctx := context.Background()
	svc := newArticleService(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("---\nslug: a\ntitle: A\n---\na\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("no front matter"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.md"), []byte("---\nslug: c\ntitle: C\n---\nc\n"), 0o644))

	result, err := Import(ctx, dir, svc)
	require.Error(t, err)
	assert.ErrorContains(t, err, "b.md")
	assert.ErrorIs(t, err, ErrNoFrontMatter)
	assert.Equal(t, 1, result.Created)

	_, err = svc.GetBySlug(ctx, "c")
	assert.ErrorIs(t, err, service.ErrArticleNotFound)
}

func TestImportInvalidArticle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.md"), []byte("---\nslug: Bad Slug\ntitle: X\n---\nx\n"), 0o644))

	_, err := Import(context.Background(), dir, newArticleService(t))
	assert.ErrorIs(t, err, service.ErrInvalidArticle)
	assert.ErrorContains(t, err, "bad.md")
}

func TestImportMissingDir(t *testing.T) {
	_, err := Import(context.Background(), filepath.Join(t.TempDir(), "nope"), newArticleService(t))
	assert.Error(t, err)
}
