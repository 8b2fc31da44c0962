package site

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (g *Generator) absoluteURL(outPath string) string {
	return strings.TrimRight(g.cfg.BaseURL, "/") + g.links.link(outPath)
}

// sitemap lists every rendered HTML page; article pages carry their update time
func (g *Generator) sitemap(pages Pages, views []*articleView) ([]byte, error) {
	lastMod := make(map[string]string, len(views))
	for _, v := range views {
		lastMod[v.path] = v.UpdatedAt.UTC().Format(time.RFC3339)
	}

	set := urlSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range pages.Paths() {
		if !strings.HasSuffix(p, ".html") {
			continue
		}
		set.URLs = append(set.URLs, sitemapURL{Loc: g.absoluteURL(p), LastMod: lastMod[p]})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode sitemap: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
