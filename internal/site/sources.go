package site

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/magnolia-blog/magnolia/internal/domain"
)

// Source supplies the articles a build renders
type Source interface {
	Articles(ctx context.Context) ([]domain.Article, error)
}

// ArticleLister is satisfied by the article service and repository
type ArticleLister interface {
	ListAll(ctx context.Context) ([]domain.Article, error)
}

// StoreSource reads articles straight from the store
type StoreSource struct {
	lister ArticleLister
}

func NewStoreSource(lister ArticleLister) *StoreSource {
	return &StoreSource{lister: lister}
}

func (s *StoreSource) Articles(ctx context.Context) ([]domain.Article, error) {
	articles, err := s.lister.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load articles: %w", err)
	}
	return articles, nil
}

const apiPageSize = 100

// APISource pages through the public article API of a running server
type APISource struct {
	baseURL string
	client  *http.Client
}

func NewAPISource(baseURL string, client *http.Client) *APISource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &APISource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *APISource) Articles(ctx context.Context) ([]domain.Article, error) {
	var all []domain.Article
	for page := 1; ; page++ {
		resp, err := s.fetch(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Articles...)
		if len(resp.Articles) == 0 || len(all) >= resp.Total {
			return all, nil
		}
	}
}

func (s *APISource) fetch(ctx context.Context, page int) (*domain.ArticleListResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(apiPageSize))
	endpoint := s.baseURL + "/api/public/articles?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch articles page %d: %w", page, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, fmt.Errorf("article API returned %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out domain.ArticleListResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode articles page %d: %w", page, err)
	}
	return &out, nil
}
