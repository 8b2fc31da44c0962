// Package transfer moves articles between the store and Markdown files with
// YAML front matter.
package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/service"
	"github.com/magnolia-blog/magnolia/internal/site"
	"github.com/magnolia-blog/magnolia/internal/storage"
	"gopkg.in/yaml.v3"
)

const delimiter = "---"

var ErrNoFrontMatter = errors.New("missing front matter")

// FrontMatter is the YAML header of an exported article
type FrontMatter struct {
	ID        string    `yaml:"id,omitempty"`
	Slug      string    `yaml:"slug"`
	Title     string    `yaml:"title"`
	PubDate   time.Time `yaml:"pub_date"`
	Category  string    `yaml:"category,omitempty"`
	Tags      []string  `yaml:"tags,omitempty"`
	CreatedAt time.Time `yaml:"created_at,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// Document is one parsed Markdown file
type Document struct {
	FrontMatter
	Body string
}

// Importer is the subset of the article service used by Import
type Importer interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Article, error)
	Create(ctx context.Context, req *domain.CreateArticleRequest) (*domain.Article, error)
	Update(ctx context.Context, id string, req *domain.UpdateArticleRequest) (*domain.Article, error)
}

// ImportResult counts what Import did
type ImportResult struct {
	Created int
	Updated int
}

// Marshal renders an article as front matter followed by its body and one
// terminating newline, which ParseFile removes again.
func Marshal(a *domain.Article) ([]byte, error) {
	fm := FrontMatter{
		ID:        a.ID,
		Slug:      a.Slug,
		Title:     a.Title,
		PubDate:   a.PubDate.UTC(),
		Category:  a.Category,
		Tags:      a.Tags,
		CreatedAt: a.CreatedAt.UTC(),
		UpdatedAt: a.UpdatedAt.UTC(),
	}
	header, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	buf.Write(header)
	buf.WriteString(delimiter + "\n")
	buf.WriteString(a.Body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Export writes one <slug>.md file per article into dir and returns the
// number of files written.
func Export(ctx context.Context, articles []domain.Article, dir string) (int, error) {
	out, err := storage.NewLocalStorage(dir)
	if err != nil {
		return 0, err
	}
	for i := range articles {
		data, err := Marshal(&articles[i])
		if err != nil {
			return i, fmt.Errorf("article %s: %w", articles[i].Slug, err)
		}
		name := strings.TrimSuffix(site.SlugToFilename(articles[i].Slug), ".html") + ".md"
		if err := out.Put(ctx, name, "text/markdown; charset=utf-8", data); err != nil {
			return i, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return len(articles), nil
}

// ParseFile splits a Markdown file into front matter and body. The newline
// after the closing delimiter and the file's final newline are not part of
// the body.
func ParseFile(data []byte) (*Document, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")

	rest, ok := strings.CutPrefix(text, delimiter+"\n")
	if !ok {
		return nil, ErrNoFrontMatter
	}

	var header, body string
	if strings.HasPrefix(rest, delimiter+"\n") || rest == delimiter {
		body = strings.TrimPrefix(strings.TrimPrefix(rest, delimiter), "\n")
	} else {
		idx := strings.Index(rest, "\n"+delimiter+"\n")
		switch {
		case idx >= 0:
			header, body = rest[:idx+1], rest[idx+len(delimiter)+2:]
		case strings.HasSuffix(rest, "\n"+delimiter):
			header = strings.TrimSuffix(rest, delimiter)
		default:
			return nil, fmt.Errorf("%w: closing %s not found", ErrNoFrontMatter, delimiter)
		}
	}

	doc := &Document{Body: strings.TrimSuffix(body, "\n")}
	if err := yaml.Unmarshal([]byte(header), &doc.FrontMatter); err != nil {
		return nil, fmt.Errorf("invalid front matter: %w", err)
	}
	if strings.TrimSpace(doc.Slug) == "" {
		return nil, errors.New("front matter has no slug")
	}
	return doc, nil
}

// Import loads every .md file in dir in name order. Articles whose slug
// already exists are updated, the rest are created. The first bad file stops
// the import.
func Import(ctx context.Context, dir string, importer Importer) (*ImportResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read import directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	result := &ImportResult{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return result, fmt.Errorf("%s: %w", name, err)
		}
		doc, err := ParseFile(data)
		if err != nil {
			return result, fmt.Errorf("%s: %w", name, err)
		}
		created, err := apply(ctx, importer, doc)
		if err != nil {
			return result, fmt.Errorf("%s: %w", name, err)
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

func apply(ctx context.Context, importer Importer, doc *Document) (bool, error) {
	var pubDate string
	if !doc.PubDate.IsZero() {
		pubDate = doc.PubDate.UTC().Format(time.RFC3339Nano)
	}
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}

	existing, err := importer.GetBySlug(ctx, doc.Slug)
	switch {
	case errors.Is(err, service.ErrArticleNotFound):
		_, err := importer.Create(ctx, &domain.CreateArticleRequest{
			Slug:     doc.Slug,
			Title:    doc.Title,
			PubDate:  pubDate,
			Category: doc.Category,
			Tags:     tags,
			Body:     doc.Body,
		})
		return true, err
	case err != nil:
		return false, err
	}

	req := &domain.UpdateArticleRequest{
		Title:    &doc.Title,
		Category: &doc.Category,
		Tags:     &tags,
		Body:     &doc.Body,
	}
	if pubDate != "" {
		req.PubDate = &pubDate
	}
	_, err = importer.Update(ctx, existing.ID, req)
	return false, err
}
