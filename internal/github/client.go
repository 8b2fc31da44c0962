// Package github triggers and inspects the GitHub Actions workflow that
// deploys the static site.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/magnolia-blog/magnolia/internal/config"
	"github.com/magnolia-blog/magnolia/internal/domain"
)

const apiVersion = "2022-11-28"

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api returned %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	token    string
	owner    string
	repo     string
	workflow string
	ref      string
	baseURL  string
	http     *http.Client
}

func NewClient(cfg *config.GitHubConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := cfg.APIURL
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &Client{
		token:    cfg.Token,
		owner:    cfg.Owner,
		repo:     cfg.Repo,
		workflow: cfg.Workflow,
		ref:      cfg.Ref,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
	}
}

func (c *Client) workflowPath() string {
	return fmt.Sprintf("/repos/%s/%s/actions/workflows/%s",
		url.PathEscape(c.owner), url.PathEscape(c.repo), url.PathEscape(c.workflow))
}

// Dispatch starts the workflow with build_static_site=true
func (c *Client) Dispatch(ctx context.Context) error {
	body := map[string]any{
		"ref":    c.ref,
		"inputs": map[string]string{"build_static_site": "true"},
	}
	return c.do(ctx, http.MethodPost, c.workflowPath()+"/dispatches", body, nil)
}

// LatestRun returns the most recent run of the workflow
func (c *Client) LatestRun(ctx context.Context) (*domain.WorkflowRun, error) {
	var out struct {
		WorkflowRuns []domain.WorkflowRun `json:"workflow_runs"`
	}
	if err := c.do(ctx, http.MethodGet, c.workflowPath()+"/runs?per_page=1", nil, &out); err != nil {
		return nil, err
	}
	if len(out.WorkflowRuns) == 0 {
		return nil, fmt.Errorf("no runs found for workflow %s", c.workflow)
	}
	return &out.WorkflowRuns[0], nil
}

// Run returns a workflow run by id
func (c *Client) Run(ctx context.Context, id int64) (*domain.WorkflowRun, error) {
	var run domain.WorkflowRun
	p := fmt.Sprintf("/repos/%s/%s/actions/runs/%d", url.PathEscape(c.owner), url.PathEscape(c.repo), id)
	if err := c.do(ctx, http.MethodGet, p, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode github response: %w", err)
	}
	return nil
}
