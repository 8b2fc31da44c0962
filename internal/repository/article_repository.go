package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/kv"
)

// ErrSlugTaken is returned by Save when another article owns the slug
var ErrSlugTaken = errors.New("slug already in use")

// ArticleRepository stores articles with slug, category and tag indexes.
// Every write touches the primary entry and its index entries in a single
// transaction.
type ArticleRepository struct {
	store *kv.Store
}

func NewArticleRepository(store *kv.Store) *ArticleRepository {
	return &ArticleRepository{store: store}
}

// Save creates or replaces an article. Index entries of the previous
// version that no longer apply are removed.
func (r *ArticleRepository) Save(ctx context.Context, article *domain.Article) error {
	return r.store.Update(ctx, func(txn *kv.Txn) error {
		var owner string
		err := txn.Get(slugKey(article.Slug), &owner)
		switch {
		case err == nil && owner != article.ID:
			return ErrSlugTaken
		case err != nil && !errors.Is(err, kv.ErrNotFound):
			return err
		}

		var prev domain.Article
		err = txn.Get(articleKey(article.ID), &prev)
		switch {
		case err == nil:
			if err := removeStaleIndexes(txn, &prev, article); err != nil {
				return err
			}
		case !errors.Is(err, kv.ErrNotFound):
			return err
		}

		if err := txn.Set(articleKey(article.ID), article, 0); err != nil {
			return err
		}
		return writeIndexes(txn, article)
	})
}

func writeIndexes(txn *kv.Txn, a *domain.Article) error {
	if err := txn.Set(slugKey(a.Slug), a.ID, 0); err != nil {
		return err
	}
	if a.Category != "" {
		if err := txn.Set(categoryKey(a.Category, a.ID), a.ID, 0); err != nil {
			return err
		}
	}
	for _, tag := range a.Tags {
		if tag == "" {
			continue
		}
		if err := txn.Set(tagKey(tag, a.ID), a.ID, 0); err != nil {
			return err
		}
	}
	return nil
}

func removeStaleIndexes(txn *kv.Txn, prev, next *domain.Article) error {
	if prev.Slug != next.Slug {
		if err := txn.Delete(slugKey(prev.Slug)); err != nil {
			return err
		}
	}
	if prev.Category != "" && prev.Category != next.Category {
		if err := txn.Delete(categoryKey(prev.Category, prev.ID)); err != nil {
			return err
		}
	}
	for _, tag := range prev.Tags {
		if tag != "" && !next.HasTag(tag) {
			if err := txn.Delete(tagKey(tag, prev.ID)); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetByID returns kv.ErrNotFound when the article does not exist
func (r *ArticleRepository) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	var a domain.Article
	if err := r.store.Get(ctx, articleKey(id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetBySlug resolves the slug index, then the primary entry
func (r *ArticleRepository) GetBySlug(ctx context.Context, slug string) (*domain.Article, error) {
	var a domain.Article
	err := r.store.View(ctx, func(txn *kv.Txn) error {
		var id string
		if err := txn.Get(slugKey(slug), &id); err != nil {
			return err
		}
		return txn.Get(articleKey(id), &a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns one page of articles, newest created first, and the total
// number of articles matching the filter.
func (r *ArticleRepository) List(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, int, error) {
	prefix, indexed := listPrefix(filter)

	var (
		articles []domain.Article
		total    int
	)
	err := r.store.View(ctx, func(txn *kv.Txn) error {
		var err error
		total, err = txn.Count(prefix)
		if err != nil {
			return err
		}

		entries, err := txn.List(prefix, kv.ListOptions{
			Offset:  filter.Offset(),
			Limit:   filter.Limit,
			Reverse: true,
		})
		if err != nil {
			return err
		}

		articles = make([]domain.Article, 0, len(entries))
		for _, e := range entries {
			var a domain.Article
			if !indexed {
				if err := e.Decode(&a); err != nil {
					return err
				}
				articles = append(articles, a)
				continue
			}

			var id string
			if err := e.Decode(&id); err != nil {
				return err
			}
			err := txn.Get(articleKey(id), &a)
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			articles = append(articles, a)
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list articles: %w", err)
	}
	return articles, total, nil
}

func listPrefix(filter domain.ArticleFilter) (kv.Key, bool) {
	switch {
	case filter.Category != "":
		return kv.K(prefixByCategory, filter.Category), true
	case filter.Tag != "":
		return kv.K(prefixByTag, filter.Tag), true
	default:
		return kv.K(prefixArticles), false
	}
}

// ListAll returns every stored article
func (r *ArticleRepository) ListAll(ctx context.Context) ([]domain.Article, error) {
	entries, err := r.store.List(ctx, kv.K(prefixArticles), kv.ListOptions{Reverse: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	articles := make([]domain.Article, 0, len(entries))
	for _, e := range entries {
		var a domain.Article
		if err := e.Decode(&a); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// Count returns the number of stored articles
func (r *ArticleRepository) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx, kv.K(prefixArticles))
}

// Delete removes an article and all of its index entries
func (r *ArticleRepository) Delete(ctx context.Context, id string) error {
	return r.store.Update(ctx, func(txn *kv.Txn) error {
		var a domain.Article
		if err := txn.Get(articleKey(id), &a); err != nil {
			return err
		}

		var owner string
		err := txn.Get(slugKey(a.Slug), &owner)
		if err == nil && owner == a.ID {
			if err := txn.Delete(slugKey(a.Slug)); err != nil {
				return err
			}
		} else if err != nil && !errors.Is(err, kv.ErrNotFound) {
			return err
		}

		if a.Category != "" {
			if err := txn.Delete(categoryKey(a.Category, a.ID)); err != nil {
				return err
			}
		}
		for _, tag := range a.Tags {
			if tag == "" {
				continue
			}
			if err := txn.Delete(tagKey(tag, a.ID)); err != nil {
				return err
			}
		}
		return txn.Delete(articleKey(id))
	})
}

// Categories returns every category in use with its article count, by name
func (r *ArticleRepository) Categories(ctx context.Context) ([]domain.NameCount, error) {
	return r.countIndex(ctx, prefixByCategory)
}

// Tags returns every tag in use with its article count, by name
func (r *ArticleRepository) Tags(ctx context.Context) ([]domain.NameCount, error) {
	return r.countIndex(ctx, prefixByTag)
}

func (r *ArticleRepository) countIndex(ctx context.Context, prefix string) ([]domain.NameCount, error) {
	entries, err := r.store.List(ctx, kv.K(prefix), kv.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", prefix, err)
	}

	counts := make(map[string]int)
	for _, e := range entries {
		if len(e.Key) != 3 {
			continue
		}
		counts[e.Key[1]]++
	}

	result := make([]domain.NameCount, 0, len(counts))
	for name, n := range counts {
		result = append(result, domain.NameCount{Name: name, Count: n})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}
