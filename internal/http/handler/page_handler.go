package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/service"
	"go.uber.org/zap"
)

var flashMessages = map[string]string{
	"created": "Article created",
	"updated": "Article updated",
	"deleted": "Article deleted",
}

// PageHandler serves the server-rendered admin UI
type PageHandler struct {
	articleService *service.ArticleService
	buildService   *service.BuildService
	renderer       *Renderer
	logger         *zap.Logger
}

func NewPageHandler(
	articleService *service.ArticleService,
	buildService *service.BuildService,
	renderer *Renderer,
	logger *zap.Logger,
) *PageHandler {
	return &PageHandler{
		articleService: articleService,
		buildService:   buildService,
		renderer:       renderer,
		logger:         logger,
	}
}

type dashboardData struct {
	ArticleCount   int
	Categories     []domain.NameCount
	Tags           []domain.NameCount
	GeneratedPages int
	LastBuild      *domain.BuildRecord
}

// Dashboard handles GET /
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := dashboardData{}

	var err error
	if data.ArticleCount, err = h.articleService.Count(ctx); err != nil {
		h.serverError(w, "count articles", err)
		return
	}
	if data.Categories, err = h.articleService.Categories(ctx); err != nil {
		h.serverError(w, "list categories", err)
		return
	}
	if data.Tags, err = h.articleService.Tags(ctx); err != nil {
		h.serverError(w, "list tags", err)
		return
	}
	status, err := h.buildService.Status(ctx)
	if err != nil {
		h.logger.Warn("failed to load build status", zap.Error(err))
	} else {
		data.GeneratedPages = status.GeneratedPages
		data.LastBuild = status.LastBuild
	}

	page := PageData{Title: "Dashboard", Data: data}
	switch r.URL.Query().Get("build") {
	case "ok":
		page.Flash = "Site build completed"
	case "failed":
		page.Error = "Site build failed"
	}
	h.renderer.Render(w, r, http.StatusOK, "dashboard.html", page)
}

// Build handles POST /build from the dashboard
func (h *PageHandler) Build(w http.ResponseWriter, r *http.Request) {
	resp, err := h.buildService.Build(r.Context(), service.TriggerManual, true)
	if err != nil || !resp.Success {
		http.Redirect(w, r, "/?build=failed", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/?build=ok", http.StatusSeeOther)
}

type articlesData struct {
	Articles []domain.Article
	Total    int
	Page     int
	Pages    int
	Limit    int
	Filter   domain.ArticleFilter
}

// PageURL links to another page of the current listing
func (d articlesData) PageURL(page int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if d.Limit != service.DefaultPageSize {
		q.Set("limit", strconv.Itoa(d.Limit))
	}
	if d.Filter.Category != "" {
		q.Set("category", d.Filter.Category)
	}
	if d.Filter.Tag != "" {
		q.Set("tag", d.Filter.Tag)
	}
	return "/articles?" + q.Encode()
}

// ListArticles handles GET /articles
func (h *PageHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r, service.DefaultPageSize)
	result, err := h.articleService.List(r.Context(), filter)
	if err != nil {
		h.serverError(w, "list articles", err)
		return
	}

	data := articlesData{
		Articles: result.Articles,
		Total:    result.Total,
		Page:     result.Page,
		Limit:    result.Limit,
		Filter:   filter,
	}
	data.Pages = (result.Total + result.Limit - 1) / result.Limit

	h.renderer.Render(w, r, http.StatusOK, "articles.html", PageData{
		Title: "Articles",
		Flash: flashMessages[r.URL.Query().Get("success")],
		Data:  data,
	})
}

// ShowArticle handles GET /articles/{id}
func (h *PageHandler) ShowArticle(w http.ResponseWriter, r *http.Request) {
	article, err := h.articleService.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.articleError(w, "get article", err)
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "article.html", PageData{Title: article.Title, Data: article})
}

type articleForm struct {
	ID       string
	Action   string
	Title    string
	Slug     string
	PubDate  string
	Category string
	Tags     string
	Body     string
	Errors   map[string]string
}

func formFromArticle(a *domain.Article) *articleForm {
	return &articleForm{
		ID:       a.ID,
		Action:   "/articles/" + a.ID + "/edit",
		Title:    a.Title,
		Slug:     a.Slug,
		PubDate:  a.PubDate.UTC().Format("2006-01-02"),
		Category: a.Category,
		Tags:     strings.Join(a.Tags, ", "),
		Body:     a.Body,
	}
}

// readArticleForm parses the submitted form. Tags arrive either as repeated
// tags[] fields or as one comma separated tags field.
func readArticleForm(w http.ResponseWriter, r *http.Request) (*articleForm, []string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return nil, nil, err
	}

	tags := r.PostForm["tags[]"]
	if raw := r.PostForm.Get("tags"); raw != "" {
		tags = append(tags, strings.Split(raw, ",")...)
	}
	tags = service.NormalizeTags(tags)

	f := &articleForm{
		Title:    strings.TrimSpace(r.PostForm.Get("title")),
		Slug:     strings.ToLower(strings.TrimSpace(r.PostForm.Get("slug"))),
		PubDate:  strings.TrimSpace(r.PostForm.Get("pub_date")),
		Category: strings.TrimSpace(r.PostForm.Get("category")),
		Tags:     strings.Join(tags, ", "),
		Body:     r.PostForm.Get("body"),
	}
	if f.Slug == "" {
		f.Slug = service.Slugify(f.Title)
	}
	return f, tags, nil
}

func (f *articleForm) request(tags []string) *domain.CreateArticleRequest {
	return &domain.CreateArticleRequest{
		Slug:     f.Slug,
		Title:    f.Title,
		PubDate:  f.PubDate,
		Category: f.Category,
		Tags:     tags,
		Body:     f.Body,
	}
}

// NewArticle handles GET /articles/new
func (h *PageHandler) NewArticle(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, &articleForm{Action: "/articles/new"}, "")
}

// CreateArticle handles POST /articles/new
func (h *PageHandler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	form, tags, err := readArticleForm(w, r)
	if err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form.Action = "/articles/new"

	req := form.request(tags)
	if errs := formErrors(validate.Struct(req)); errs != nil {
		form.Errors = errs
		h.renderForm(w, r, http.StatusBadRequest, form, "Please fix the highlighted fields")
		return
	}

	if _, err := h.articleService.Create(r.Context(), req); err != nil {
		h.formError(w, r, form, err)
		return
	}
	http.Redirect(w, r, "/articles?success=created", http.StatusSeeOther)
}

// EditArticle handles GET /articles/{id}/edit
func (h *PageHandler) EditArticle(w http.ResponseWriter, r *http.Request) {
	article, err := h.articleService.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.articleError(w, "get article", err)
		return
	}
	h.renderForm(w, r, http.StatusOK, formFromArticle(article), "")
}

// UpdateArticle handles POST /articles/{id}/edit
func (h *PageHandler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, err := h.articleService.GetByID(r.Context(), id)
	if err != nil {
		h.articleError(w, "get article", err)
		return
	}
	form, tags, err := readArticleForm(w, r)
	if err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form.ID = id
	form.Action = "/articles/" + id + "/edit"

	req := form.request(tags)
	if errs := formErrors(validate.Struct(req)); errs != nil {
		form.Errors = errs
		h.renderForm(w, r, http.StatusBadRequest, form, "Please fix the highlighted fields")
		return
	}

	update := &domain.UpdateArticleRequest{
		Slug:     &req.Slug,
		Title:    &req.Title,
		Category: &req.Category,
		Tags:     &req.Tags,
		Body:     &req.Body,
	}
	// the form only carries the date; keep the stored time of day when unchanged
	if req.PubDate != "" && req.PubDate != current.PubDate.UTC().Format("2006-01-02") {
		update.PubDate = &req.PubDate
	}
	if _, err := h.articleService.Update(r.Context(), id, update); err != nil {
		h.formError(w, r, form, err)
		return
	}
	http.Redirect(w, r, "/articles?success=updated", http.StatusSeeOther)
}

// DeleteArticle handles POST /articles/{id}/delete
func (h *PageHandler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	if err := h.articleService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.articleError(w, "delete article", err)
		return
	}
	http.Redirect(w, r, "/articles?success=deleted", http.StatusSeeOther)
}

func (h *PageHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, form *articleForm, message string) {
	title := "New article"
	if form.ID != "" {
		title = "Edit article"
	}
	h.renderer.Render(w, r, status, "form.html", PageData{Title: title, Error: message, Data: form})
}

func (h *PageHandler) formError(w http.ResponseWriter, r *http.Request, form *articleForm, err error) {
	status, msg := articleErrorStatus(err)
	switch {
	case errors.Is(err, service.ErrArticleNotFound):
		http.NotFound(w, r)
	case status == http.StatusInternalServerError:
		h.serverError(w, "save article", err)
	default:
		if errors.Is(err, service.ErrDuplicateSlug) {
			form.Errors = map[string]string{"slug": msg}
		}
		h.renderForm(w, r, status, form, msg)
	}
}

func (h *PageHandler) articleError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, service.ErrArticleNotFound) {
		http.Error(w, "Article not found", http.StatusNotFound)
		return
	}
	h.serverError(w, op, err)
}

func (h *PageHandler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("admin page failed", zap.String("operation", op), zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// formErrors maps validation failures to form field names
func formErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	out := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field, _, _ := strings.Cut(fe.Field(), "[")
			out[field] = formatValidationError(fe)
		}
	} else {
		out["form"] = err.Error()
	}
	return out
}
