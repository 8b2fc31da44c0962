package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/magnolia-blog/magnolia/internal/auth"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplates = []string{
	"login.html",
	"dashboard.html",
	"articles.html",
	"article.html",
	"form.html",
}

// PageData is passed to the layout of every admin page
type PageData struct {
	Title    string
	AppName  string
	Username string
	Flash    string
	Error    string
	Data     any
}

// Renderer executes the embedded admin templates. Each page is parsed into
// its own clone of the layout so "content" blocks do not collide.
type Renderer struct {
	appName string
	pages   map[string]*template.Template
	logger  *zap.Logger
}

func NewRenderer(appName string, logger *zap.Logger) (*Renderer, error) {
	base, err := template.New("layout").Funcs(adminFuncs()).ParseFS(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout template: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageTemplates))
	for _, name := range pageTemplates {
		tmpl, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout template: %w", err)
		}
		if _, err := tmpl.ParseFS(templatesFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{appName: appName, pages: pages, logger: logger}, nil
}

// Render writes a full page. Output is buffered so a template error still
// yields a clean 500.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, page PageData) {
	tmpl, ok := rd.pages[name]
	if !ok {
		rd.logger.Error("unknown template", zap.String("template", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	page.AppName = rd.appName
	if page.Username == "" {
		page.Username = auth.Username(r.Context())
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		rd.logger.Error("failed to render template", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func adminFuncs() template.FuncMap {
	return template.FuncMap{
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.UTC().Format("2006-01-02")
		},
		"datetime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.UTC().Format("2006-01-02 15:04")
		},
		"join": strings.Join,
		"add":  func(a, b int) int { return a + b },
		"sub":  func(a, b int) int { return a - b },
	}
}
