// Package site renders articles into a static HTML site and publishes it.
package site

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/magnolia-blog/magnolia/internal/config"
	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//go:embed templates/*.html
var templatesFS embed.FS

const writeConcurrency = 8

// ErrDuplicatePage is returned when two pages map to the same output path
var ErrDuplicatePage = errors.New("output path produced twice")

// Config holds the settings that shape generated pages
type Config struct {
	Title        string
	Description  string
	Language     string
	BaseURL      string
	BasePath     string
	PageSize     int
	RelatedLimit int
}

func ConfigFrom(c *config.SiteConfig) Config {
	return Config{
		Title:        c.Title,
		Description:  c.Description,
		Language:     c.Language,
		BaseURL:      c.BaseURL,
		BasePath:     c.BasePath,
		PageSize:     c.PageSize,
		RelatedLimit: c.RelatedLimit,
	}
}

// Result summarises a build
type Result struct {
	Pages    int
	Removed  int
	Duration time.Duration
}

// Pages maps output paths to file contents
type Pages map[string][]byte

// Paths returns the output paths in sorted order
func (p Pages) Paths() []string {
	paths := make([]string, 0, len(p))
	for k := range p {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	return paths
}

// Generator renders and publishes the site
type Generator struct {
	cfg       Config
	publisher storage.Publisher
	pages     map[string]*template.Template
	markdown  *markdown
	links     linker
	logger    *zap.Logger
}

// NewGenerator parses the embedded templates
func NewGenerator(cfg Config, publisher storage.Publisher, logger *zap.Logger) (*Generator, error) {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.RelatedLimit < 0 {
		cfg.RelatedLimit = 0
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}

	base, err := template.New("base").Funcs(templateFuncs()).ParseFS(templatesFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{"index.html", "list.html", "article.html", "categories.html", "tags.html"} {
		tmpl, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone base template: %w", err)
		}
		if _, err := tmpl.ParseFS(templatesFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Generator{
		cfg:       cfg,
		publisher: publisher,
		pages:     pages,
		markdown:  newMarkdown(),
		links:     newLinker(cfg.BasePath),
		logger:    logger,
	}, nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"date": func(t time.Time) string {
			return t.UTC().Format("2006-01-02")
		},
		"datetime": func(t time.Time) string {
			return t.UTC().Format(time.RFC3339)
		},
	}
}

// Build renders every page, publishes it, then deletes previously
// published .html and .xml files that are not part of this build.
func (g *Generator) Build(ctx context.Context, articles []domain.Article) (*Result, error) {
	start := time.Now()

	pages, err := g.Render(articles)
	if err != nil {
		return nil, err
	}

	existing, err := g.publisher.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list published files: %w", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(writeConcurrency)
	for p, data := range pages {
		eg.Go(func() error {
			return g.publisher.Put(egCtx, p, contentType(p), data)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to publish pages: %w", err)
	}

	removed := 0
	for _, p := range existing {
		if _, ok := pages[p]; ok || !isDerived(p) {
			continue
		}
		if err := g.publisher.Delete(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to remove stale page %s: %w", p, err)
		}
		g.logger.Debug("removed stale page", zap.String("path", p))
		removed++
	}

	result := &Result{Pages: len(pages), Removed: removed, Duration: time.Since(start)}
	g.logger.Info("site built",
		zap.Int("articles", len(articles)),
		zap.Int("pages", result.Pages),
		zap.Int("removed", result.Removed),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func isDerived(p string) bool {
	switch path.Ext(p) {
	case ".html", ".xml":
		return true
	}
	return false
}

func contentType(p string) string {
	if path.Ext(p) == ".xml" {
		return "application/xml; charset=utf-8"
	}
	return "text/html; charset=utf-8"
}

// Render produces every page of the site without publishing it
func (g *Generator) Render(articles []domain.Article) (Pages, error) {
	views, err := g.articleViews(articles)
	if err != nil {
		return nil, err
	}

	pages := make(Pages)
	r := &pageRenderer{g: g, pages: pages}

	categories := groupBy(views, func(v *articleView) []string { return []string{v.Category} }, CategoryToSlug)
	tags := groupBy(views, func(v *articleView) []string { return v.Tags }, TagToSlug)

	r.index(views, categories, tags)
	r.paginated("Articles", "", views, articlesPagePath)
	for _, v := range views {
		r.article(v, g.related(v, views))
	}
	r.categoryIndex(categories)
	for _, grp := range categories {
		name := grp.name
		r.paginated("Category: "+name, fmt.Sprintf("%d articles", len(grp.articles)), grp.articles,
			func(page int) string { return categoryPagePath(name, page) })
	}
	r.tagIndex(tags)
	for _, grp := range tags {
		name := grp.name
		r.paginated("Tag: #"+name, fmt.Sprintf("%d articles", len(grp.articles)), grp.articles,
			func(page int) string { return tagPagePath(name, page) })
	}
	if g.cfg.BaseURL != "" {
		data, err := g.sitemap(pages, views)
		if err != nil {
			return nil, err
		}
		pages["sitemap.xml"] = data
	}

	if r.err != nil {
		return nil, r.err
	}
	return pages, nil
}

// articleView is an article prepared for templates
type articleView struct {
	domain.Article
	URL         string
	CategoryURL string
	TagLinks    []link
	HTML        template.HTML
	Excerpt     string
	Description string
	path        string
}

type link struct {
	Name  string
	URL   string
	Count int
}

type group struct {
	name     string
	articles []*articleView
}

type categorySummary struct {
	Name   string
	URL    string
	Count  int
	Latest *articleView
}

type pagination struct {
	Page    int
	Pages   int
	PrevURL string
	NextURL string
}

// articleViews renders bodies and sorts newest publication first
func (g *Generator) articleViews(articles []domain.Article) ([]*articleView, error) {
	views := make([]*articleView, 0, len(articles))
	for _, a := range articles {
		body, err := g.markdown.Render(a.Body)
		if err != nil {
			return nil, fmt.Errorf("article %s: %w", a.Slug, err)
		}
		text := g.markdown.PlainText(body)
		p := articlePath(a.Slug)

		v := &articleView{
			Article:     a,
			URL:         g.links.link(p),
			CategoryURL: g.links.link(categoryPagePath(a.Category, 1)),
			HTML:        body,
			Excerpt:     truncate(text, excerptLength),
			Description: truncate(text, descriptionLength),
			path:        p,
		}
		for _, t := range a.Tags {
			v.TagLinks = append(v.TagLinks, link{Name: t, URL: g.links.link(tagPagePath(t, 1))})
		}
		views = append(views, v)
	}

	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].PubDate.Equal(views[j].PubDate) {
			return views[i].PubDate.After(views[j].PubDate)
		}
		return views[i].ID > views[j].ID
	})
	return views, nil
}

// related returns other articles sharing the category or a tag, newest first
func (g *Generator) related(v *articleView, all []*articleView) []*articleView {
	if g.cfg.RelatedLimit == 0 {
		return nil
	}
	var out []*articleView
	for _, other := range all {
		if other.ID == v.ID {
			continue
		}
		if other.Category == v.Category || sharesTag(v, other) {
			out = append(out, other)
			if len(out) == g.cfg.RelatedLimit {
				break
			}
		}
	}
	return out
}

func sharesTag(a, b *articleView) bool {
	for _, t := range a.Tags {
		if b.HasTag(t) {
			return true
		}
	}
	return false
}

// groupBy buckets views by the output segment of each key, so names that
// share a file share a page under the first name seen. View order is kept
// within a bucket and buckets are sorted by name.
func groupBy(views []*articleView, keys func(*articleView) []string, segment func(string) string) []group {
	index := make(map[string]int)
	var groups []group
	for _, v := range views {
		for _, k := range keys(v) {
			if strings.TrimSpace(k) == "" {
				continue
			}
			seg := segment(k)
			i, ok := index[seg]
			if !ok {
				i = len(groups)
				index[seg] = i
				groups = append(groups, group{name: k})
			}
			if n := len(groups[i].articles); n > 0 && groups[i].articles[n-1] == v {
				continue
			}
			groups[i].articles = append(groups[i].articles, v)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].name < groups[j].name })
	return groups
}

// pageData is the data handed to the base template
type pageData struct {
	Language        string
	SiteTitle       string
	SiteDescription string
	Title           string
	Description     string
	Canonical       string
	Home            string
	Nav             navLinks
	Data            any
}

type navLinks struct {
	Articles   string
	Categories string
	Tags       string
}

// pageRenderer accumulates pages and the first render error
type pageRenderer struct {
	g     *Generator
	pages Pages
	err   error
}

func (r *pageRenderer) render(outPath, tmpl, title, description string, data any) {
	if r.err != nil {
		return
	}
	if _, dup := r.pages[outPath]; dup {
		r.err = fmt.Errorf("%w: %s", ErrDuplicatePage, outPath)
		return
	}
	g := r.g
	pd := pageData{
		Language:        g.cfg.Language,
		SiteTitle:       g.cfg.Title,
		SiteDescription: g.cfg.Description,
		Title:           title,
		Description:     description,
		Home:            g.links.home(),
		Nav: navLinks{
			Articles:   g.links.link(articlesPagePath(1)),
			Categories: g.links.link("category/index.html"),
			Tags:       g.links.link("tags/index.html"),
		},
		Data: data,
	}
	if g.cfg.BaseURL != "" {
		pd.Canonical = g.absoluteURL(outPath)
	}

	var buf bytes.Buffer
	if err := g.pages[tmpl].ExecuteTemplate(&buf, "base", pd); err != nil {
		r.err = fmt.Errorf("failed to render %s: %w", outPath, err)
		return
	}
	r.pages[outPath] = buf.Bytes()
}

func (r *pageRenderer) index(views []*articleView, categories, tags []group) {
	latest := views
	more := ""
	if len(latest) > r.g.cfg.PageSize {
		latest = latest[:r.g.cfg.PageSize]
		more = r.g.links.link(articlesPagePath(1))
	}
	r.render("index.html", "index.html", "", r.g.cfg.Description, struct {
		Articles   []*articleView
		MoreURL    string
		Categories []link
		Tags       []link
	}{latest, more, r.g.groupLinks(categories, categoryPagePath), r.g.groupLinks(tags, tagPagePath)})
}

// paginated renders a list split into pages of cfg.PageSize. An empty list
// still produces its first page.
func (r *pageRenderer) paginated(heading, summary string, views []*articleView, pathFor func(int) string) {
	size := r.g.cfg.PageSize
	total := (len(views) + size - 1) / size
	if total == 0 {
		total = 1
	}
	for page := 1; page <= total; page++ {
		lo := (page - 1) * size
		hi := min(lo+size, len(views))

		pg := pagination{Page: page, Pages: total}
		if page > 1 {
			pg.PrevURL = r.g.links.link(pathFor(page - 1))
		}
		if page < total {
			pg.NextURL = r.g.links.link(pathFor(page + 1))
		}

		title := heading
		if page > 1 {
			title = fmt.Sprintf("%s (page %d)", heading, page)
		}
		r.render(pathFor(page), "list.html", title, summary, struct {
			Heading    string
			Summary    string
			Articles   []*articleView
			Pagination pagination
		}{heading, summary, views[lo:hi], pg})
	}
}

func (r *pageRenderer) article(v *articleView, related []*articleView) {
	r.render(v.path, "article.html", v.Title, v.Description, struct {
		Article *articleView
		Related []*articleView
	}{v, related})
}

func (r *pageRenderer) categoryIndex(categories []group) {
	summaries := make([]categorySummary, 0, len(categories))
	for _, grp := range categories {
		summaries = append(summaries, categorySummary{
			Name:   grp.name,
			URL:    r.g.links.link(categoryPagePath(grp.name, 1)),
			Count:  len(grp.articles),
			Latest: grp.articles[0],
		})
	}
	r.render("category/index.html", "categories.html", "Categories", "", struct {
		Categories []categorySummary
	}{summaries})
}

func (r *pageRenderer) tagIndex(tags []group) {
	r.render("tags/index.html", "tags.html", "Tags", "", struct {
		Tags []link
	}{r.g.groupLinks(tags, tagPagePath)})
}

func (g *Generator) groupLinks(groups []group, pathFor func(string, int) string) []link {
	links := make([]link, 0, len(groups))
	for _, grp := range groups {
		links = append(links, link{Name: grp.name, URL: g.links.link(pathFor(grp.name, 1)), Count: len(grp.articles)})
	}
	return links
}
