package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/service"
	"go.uber.org/zap"
)

type BuildHandler struct {
	buildService *service.BuildService
	logger       *zap.Logger
}

func NewBuildHandler(buildService *service.BuildService, logger *zap.Logger) *BuildHandler {
	return &BuildHandler{buildService: buildService, logger: logger}
}

// Trigger handles POST /api/build. An empty body runs a local build.
func (h *BuildHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req domain.BuildRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.TriggerGitHubActions {
		resp, err := h.buildService.TriggerWorkflow(r.Context())
		if err != nil {
			h.logger.Error("failed to trigger workflow", zap.Error(err))
			respondJSON(w, http.StatusInternalServerError, &domain.BuildResponse{
				Message: "failed to trigger GitHub Actions workflow",
				Error:   err.Error(),
			})
			return
		}
		respondJSON(w, http.StatusOK, resp)
		return
	}

	resp, err := h.buildService.Build(r.Context(), service.TriggerManual, req.Force)
	if err != nil {
		h.logger.Error("site build request failed", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrBuildInProgress) {
			status = http.StatusConflict
		}
		respondJSON(w, status, &domain.BuildResponse{
			Message: "site build request failed",
			Error:   err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Status handles GET /api/build. With runId it reports the workflow run instead.
func (h *BuildHandler) Status(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("runId"); raw != "" {
		runID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || runID <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid workflow run id")
			return
		}
		run, err := h.buildService.WorkflowStatus(r.Context(), runID)
		if err != nil {
			if errors.Is(err, service.ErrGitHubNotConfigured) {
				respondWithError(w, http.StatusBadRequest, err.Error())
				return
			}
			h.logger.Error("failed to get workflow status", zap.Int64("run_id", runID), zap.Error(err))
			respondWithError(w, http.StatusBadGateway, "Failed to get workflow status")
			return
		}
		respondJSON(w, http.StatusOK, &domain.BuildStatusResponse{Workflow: run})
		return
	}

	status, err := h.buildService.Status(r.Context())
	if err != nil {
		h.logger.Error("failed to get build status", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to get build status")
		return
	}
	respondJSON(w, http.StatusOK, status)
}
