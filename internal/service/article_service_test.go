package service_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/repository"
	"github.com/magnolia-blog/magnolia/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingListener struct{ n atomic.Int32 }

func (l *countingListener) RequestRebuild() { l.n.Add(1) }

func newArticleService(t *testing.T) (*service.ArticleService, *repository.ArticleRepository) {
	t.Helper()
	repo := repository.NewArticleRepository(newStore(t))
	return service.NewArticleService(repo, "Uncategorized", zap.NewNop()), repo
}

func strPtr(s string) *string { return &s }

func TestArticleService_CreateNormalizes(t *testing.T) {
	svc, _ := newArticleService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, &domain.CreateArticleRequest{
		Slug:    " Hello-World ",
		Title:   "  Hello World  ",
		PubDate: "2024-01-02",
		Tags:    []string{"go", " go", "", "web"},
		Body:    "# Hi",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "hello-world", a.Slug)
	assert.Equal(t, "Hello World", a.Title)
	assert.Equal(t, "Uncategorized", a.Category)
	assert.Equal(t, []string{"go", "web"}, a.Tags)
	assert.Equal(t, 2024, a.PubDate.Year())
	assert.False(t, a.CreatedAt.IsZero())
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)

	got, err := svc.GetBySlug(ctx, "HELLO-WORLD")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestArticleService_CreateRejects(t *testing.T) {
	svc, _ := newArticleService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.CreateArticleRequest
		err  error
	}{
		{"bad slug", domain.CreateArticleRequest{Slug: "no spaces", Title: "T", Body: "b"}, service.ErrInvalidArticle},
		{"blank title", domain.CreateArticleRequest{Slug: "ok", Title: "   ", Body: "b"}, service.ErrInvalidArticle},
		{"bad date", domain.CreateArticleRequest{Slug: "ok", Title: "T", PubDate: "soon", Body: "b"}, service.ErrInvalidArticle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := svc.Create(ctx, &req)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestArticleService_DuplicateSlug(t *testing.T) {
	svc, _ := newArticleService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &domain.CreateArticleRequest{Slug: "same", Title: "One", Body: "b"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &domain.CreateArticleRequest{Slug: "same", Title: "Two", Body: "b"})
	assert.ErrorIs(t, err, service.ErrDuplicateSlug)
}

func TestArticleService_UpdateMergesAndReindexes(t *testing.T) {
	svc, repo := newArticleService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, &domain.CreateArticleRequest{
		Slug: "first", Title: "First", Category: "news", Tags: []string{"go", "web"}, Body: "body",
	})
	require.NoError(t, err)

	tags := []string{"web", "cli"}
	updated, err := svc.Update(ctx, a.ID, &domain.UpdateArticleRequest{
		Slug:     strPtr("renamed"),
		Category: strPtr("tech"),
		Tags:     &tags,
	})
	require.NoError(t, err)
	assert.Equal(t, "First", updated.Title)
	assert.Equal(t, "body", updated.Body)
	assert.Equal(t, "renamed", updated.Slug)
	assert.False(t, updated.UpdatedAt.Before(a.UpdatedAt))

	_, err = svc.GetBySlug(ctx, "first")
	assert.ErrorIs(t, err, service.ErrArticleNotFound)

	list, total, err := repo.List(ctx, domain.ArticleFilter{Page: 1, Limit: 10, Category: "news"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	_, total, err = repo.List(ctx, domain.ArticleFilter{Page: 1, Limit: 10, Tag: "go"})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, total, err = repo.List(ctx, domain.ArticleFilter{Page: 1, Limit: 10, Tag: "cli"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestArticleService_UpdateUnknownAndDuplicate(t *testing.T) {
	svc, _ := newArticleService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "missing", &domain.UpdateArticleRequest{Title: strPtr("x")})
	assert.ErrorIs(t, err, service.ErrArticleNotFound)

	_, err = svc.Create(ctx, &domain.CreateArticleRequest{Slug: "taken", Title: "A", Body: "b"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, &domain.CreateArticleRequest{Slug: "free", Title: "B", Body: "b"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, b.ID, &domain.UpdateArticleRequest{Slug: strPtr("taken")})
	assert.ErrorIs(t, err, service.ErrDuplicateSlug)
}

func TestArticleService_ListDefaults(t *testing.T) {
	svc, _ := newArticleService(t)
	ctx := context.Background()

	for _, slug := range []string{"a", "b", "c"} {
		_, err := svc.Create(ctx, &domain.CreateArticleRequest{Slug: slug, Title: slug, Body: "b"})
		require.NoError(t, err)
	}

	resp, err := svc.List(ctx, domain.ArticleFilter{Page: 0, Limit: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, service.DefaultPageSize, resp.Limit)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Articles, 3)
	assert.Equal(t, "c", resp.Articles[0].Slug)

	resp, err = svc.List(ctx, domain.ArticleFilter{Page: 2, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, service.MaxPageSize, resp.Limit)
	assert.Empty(t, resp.Articles)
}

func TestArticleService_DeleteAndNotify(t *testing.T) {
	svc, _ := newArticleService(t)
	ctx := context.Background()
	listener := &countingListener{}
	svc.SetChangeListener(listener)

	a, err := svc.Create(ctx, &domain.CreateArticleRequest{Slug: "gone", Title: "Gone", Body: "b"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, a.ID, &domain.UpdateArticleRequest{Body: strPtr("new")})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, a.ID))

	assert.ErrorIs(t, svc.Delete(ctx, a.ID), service.ErrArticleNotFound)
	_, err = svc.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, service.ErrArticleNotFound)
	assert.Equal(t, int32(3), listener.n.Load())

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
