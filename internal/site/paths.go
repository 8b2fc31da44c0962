package site

import (
	"net/url"
	"strconv"
	"strings"
)

// reservedSegment is the file name every listing directory uses for its
// own index page
const reservedSegment = "index"

// SlugToFilename maps an article slug to its page file name. Every rune
// outside a-z, 0-9 and '-' becomes '-'. The slug "index" maps to
// "index-article.html" so it cannot replace the article listing.
func SlugToFilename(slug string) string {
	var b strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	name := b.String()
	if name == reservedSegment {
		name += "-article"
	}
	return name + ".html"
}

// CategoryToSlug maps a category name to a path segment
func CategoryToSlug(name string) string {
	return nameToSegment(name, "category")
}

// TagToSlug maps a tag name to a path segment
func TagToSlug(name string) string {
	return nameToSegment(name, "tag")
}

// nameToSegment keeps names verbatim, non-ASCII included, except that path
// separators and leading dots are replaced so the result stays one segment.
// "index" in any case gets the fallback appended so it cannot replace the
// directory's index page.
func nameToSegment(name, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	name = strings.NewReplacer("/", "-", "\\", "-").Replace(name)
	if strings.HasPrefix(name, ".") {
		trimmed := strings.TrimLeft(name, ".")
		name = strings.Repeat("-", len(name)-len(trimmed)) + trimmed
	}
	if strings.EqualFold(name, reservedSegment) {
		name += "-" + fallback
	}
	return name
}

// Output paths, relative to the site root

func articlePath(slug string) string {
	return "articles/" + SlugToFilename(slug)
}

func articlesPagePath(page int) string {
	if page <= 1 {
		return "articles/index.html"
	}
	return "articles/page/" + strconv.Itoa(page) + ".html"
}

func categoryPagePath(name string, page int) string {
	seg := CategoryToSlug(name)
	if page <= 1 {
		return "category/" + seg + ".html"
	}
	return "category/" + seg + "/page/" + strconv.Itoa(page) + ".html"
}

func tagPagePath(name string, page int) string {
	seg := TagToSlug(name)
	if page <= 1 {
		return "tags/" + seg + ".html"
	}
	return "tags/" + seg + "/page/" + strconv.Itoa(page) + ".html"
}

// linker turns output paths into links under the configured base path
type linker struct {
	basePath string
}

func newLinker(basePath string) linker {
	basePath = strings.TrimRight(strings.TrimSpace(basePath), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return linker{basePath: basePath}
}

// link escapes each segment of an output path
func (l linker) link(path string) string {
	if path == "index.html" {
		return l.basePath + "/"
	}
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return l.basePath + "/" + strings.Join(segments, "/")
}

func (l linker) home() string {
	return l.basePath + "/"
}
