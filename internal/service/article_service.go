package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/kv"
	"github.com/magnolia-blog/magnolia/internal/metrics"
	"github.com/magnolia-blog/magnolia/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ChangeListener is notified after every successful article mutation
type ChangeListener interface {
	RequestRebuild()
}

type ArticleService struct {
	repo            *repository.ArticleRepository
	defaultCategory string
	listener        ChangeListener
	logger          *zap.Logger
	now             func() time.Time
}

func NewArticleService(repo *repository.ArticleRepository, defaultCategory string, logger *zap.Logger) *ArticleService {
	return &ArticleService{
		repo:            repo,
		defaultCategory: defaultCategory,
		logger:          logger,
		now:             time.Now,
	}
}

// SetChangeListener registers the listener used when auto build is enabled
func (s *ArticleService) SetChangeListener(l ChangeListener) {
	s.listener = l
}

func (s *ArticleService) Create(ctx context.Context, req *domain.CreateArticleRequest) (*domain.Article, error) {
	now := s.now().UTC()

	pubDate, err := ParsePubDate(req.PubDate, now)
	if err != nil {
		return nil, fmt.Errorf("%w: pub_date: %v", ErrInvalidArticle, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate article id: %w", err)
	}

	article := &domain.Article{
		ID:        id.String(),
		Slug:      req.Slug,
		Title:     req.Title,
		PubDate:   pubDate,
		Category:  req.Category,
		Tags:      req.Tags,
		Body:      req.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.normalize(article); err != nil {
		return nil, err
	}

	if err := s.save(ctx, article); err != nil {
		return nil, fmt.Errorf("failed to create article: %w", err)
	}

	metrics.ArticleMutations.WithLabelValues("create").Inc()
	s.logger.Info("article created", zap.String("id", article.ID), zap.String("slug", article.Slug))
	s.notify()
	return article, nil
}

func (s *ArticleService) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	article, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return article, nil
}

func (s *ArticleService) GetBySlug(ctx context.Context, slug string) (*domain.Article, error) {
	article, err := s.repo.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, notFound(err)
	}
	return article, nil
}

// List returns a page of articles. Page defaults to 1, limit to
// DefaultPageSize, and limit is capped at MaxPageSize.
func (s *ArticleService) List(ctx context.Context, filter domain.ArticleFilter) (*domain.ArticleListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Tag = strings.TrimSpace(filter.Tag)

	articles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &domain.ArticleListResponse{
		Articles: articles,
		Total:    total,
		Page:     filter.Page,
		Limit:    filter.Limit,
	}, nil
}

// ListAll returns every article, used by the site builder and export
func (s *ArticleService) ListAll(ctx context.Context) ([]domain.Article, error) {
	return s.repo.ListAll(ctx)
}

func (s *ArticleService) Update(ctx context.Context, id string, req *domain.UpdateArticleRequest) (*domain.Article, error) {
	article, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}

	if req.Slug != nil {
		article.Slug = *req.Slug
	}
	if req.Title != nil {
		article.Title = *req.Title
	}
	if req.PubDate != nil {
		pubDate, err := ParsePubDate(*req.PubDate, article.PubDate)
		if err != nil {
			return nil, fmt.Errorf("%w: pub_date: %v", ErrInvalidArticle, err)
		}
		article.PubDate = pubDate
	}
	if req.Category != nil {
		article.Category = *req.Category
	}
	if req.Tags != nil {
		article.Tags = *req.Tags
	}
	if req.Body != nil {
		article.Body = *req.Body
	}
	if err := s.normalize(article); err != nil {
		return nil, err
	}
	article.UpdatedAt = s.now().UTC()

	if err := s.save(ctx, article); err != nil {
		return nil, fmt.Errorf("failed to update article: %w", err)
	}

	metrics.ArticleMutations.WithLabelValues("update").Inc()
	s.logger.Info("article updated", zap.String("id", article.ID), zap.String("slug", article.Slug))
	s.notify()
	return article, nil
}

func (s *ArticleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return ErrArticleNotFound
		}
		return fmt.Errorf("failed to delete article: %w", err)
	}

	metrics.ArticleMutations.WithLabelValues("delete").Inc()
	s.logger.Info("article deleted", zap.String("id", id))
	s.notify()
	return nil
}

func (s *ArticleService) Categories(ctx context.Context) ([]domain.NameCount, error) {
	return s.repo.Categories(ctx)
}

func (s *ArticleService) Tags(ctx context.Context) ([]domain.NameCount, error) {
	return s.repo.Tags(ctx)
}

func (s *ArticleService) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *ArticleService) normalize(a *domain.Article) error {
	a.Title = strings.TrimSpace(a.Title)
	a.Slug = strings.ToLower(strings.TrimSpace(a.Slug))
	a.Category = strings.TrimSpace(a.Category)
	if a.Category == "" {
		a.Category = s.defaultCategory
	}
	a.Tags = NormalizeTags(a.Tags)

	if a.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidArticle)
	}
	if !ValidSlug(a.Slug) {
		return fmt.Errorf("%w: slug %q must contain lowercase letters, digits and single hyphens only", ErrInvalidArticle, a.Slug)
	}
	return nil
}

func (s *ArticleService) save(ctx context.Context, a *domain.Article) error {
	err := s.repo.Save(ctx, a)
	if errors.Is(err, repository.ErrSlugTaken) {
		return ErrDuplicateSlug
	}
	return err
}

func (s *ArticleService) notify() {
	if s.listener != nil {
		s.listener.RequestRebuild()
	}
}

func notFound(err error) error {
	if errors.Is(err, kv.ErrNotFound) {
		return ErrArticleNotFound
	}
	return err
}
