package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/service"
	"go.uber.org/zap"
)

// PublicDefaultLimit is the page size of the public article API
const PublicDefaultLimit = 100

// ArticleHandler serves the admin and public article JSON APIs
type ArticleHandler struct {
	articleService *service.ArticleService
	logger         *zap.Logger
}

func NewArticleHandler(articleService *service.ArticleService, logger *zap.Logger) *ArticleHandler {
	return &ArticleHandler{
		articleService: articleService,
		logger:         logger,
	}
}

// List handles GET /api/articles
func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, service.DefaultPageSize)
}

// PublicList handles GET /api/public/articles
func (h *ArticleHandler) PublicList(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, PublicDefaultLimit)
}

func (h *ArticleHandler) list(w http.ResponseWriter, r *http.Request, defaultLimit int) {
	result, err := h.articleService.List(r.Context(), parseFilter(r, defaultLimit))
	if err != nil {
		h.logger.Error("failed to list articles", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list articles")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create handles POST /api/articles
func (h *ArticleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateArticleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	article, err := h.articleService.Create(r.Context(), &req)
	if err != nil {
		h.respondArticleError(w, "create", err)
		return
	}

	w.Header().Set("Location", "/api/articles/"+article.ID)
	respondJSON(w, http.StatusCreated, article)
}

// GetByID handles GET /api/articles/{id}
func (h *ArticleHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	article, err := h.articleService.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondArticleError(w, "get", err)
		return
	}
	respondJSON(w, http.StatusOK, article)
}

// Update handles PUT /api/articles/{id}
func (h *ArticleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateArticleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	article, err := h.articleService.Update(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		h.respondArticleError(w, "update", err)
		return
	}
	respondJSON(w, http.StatusOK, article)
}

// Delete handles DELETE /api/articles/{id}
func (h *ArticleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.articleService.Delete(r.Context(), id); err != nil {
		h.respondArticleError(w, "delete", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

func (h *ArticleHandler) respondArticleError(w http.ResponseWriter, op string, err error) {
	status, msg := articleErrorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("article request failed", zap.String("operation", op), zap.Error(err))
	} else if !errors.Is(err, service.ErrArticleNotFound) {
		h.logger.Debug("article request rejected", zap.String("operation", op), zap.Error(err))
	}
	respondWithError(w, status, msg)
}
