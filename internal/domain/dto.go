package domain

import "math"

// CreateArticleRequest is the body of POST /api/articles and the new-article form
type CreateArticleRequest struct {
	Slug  string `json:"slug" validate:"required,max=200,slug"`
	Title string `json:"title" validate:"required,max=200"`
	// PubDate is RFC 3339 or YYYY-MM-DD; empty means now
	PubDate  string   `json:"pub_date,omitempty" validate:"omitempty,pubdate"`
	Category string   `json:"category" validate:"max=100"`
	Tags     []string `json:"tags" validate:"max=50,dive,max=50"`
	Body     string   `json:"body" validate:"required"`
}

// UpdateArticleRequest is a partial update; nil fields are left unchanged
type UpdateArticleRequest struct {
	Slug     *string   `json:"slug,omitempty" validate:"omitempty,max=200,slug"`
	Title    *string   `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	PubDate  *string   `json:"pub_date,omitempty" validate:"omitempty,pubdate"`
	Category *string   `json:"category,omitempty" validate:"omitempty,max=100"`
	Tags     *[]string `json:"tags,omitempty" validate:"omitempty,max=50,dive,max=50"`
	Body     *string   `json:"body,omitempty"`
}

// ArticleFilter selects a page of articles; Category takes precedence over Tag
type ArticleFilter struct {
	Page     int
	Limit    int
	Category string
	Tag      string
}

// Offset returns the number of entries skipped before the page, saturating
// at math.MaxInt
func (f ArticleFilter) Offset() int {
	if f.Page < 1 || f.Limit < 1 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.Limit {
		return math.MaxInt
	}
	return (f.Page - 1) * f.Limit
}

type ArticleListResponse struct {
	Articles []Article `json:"articles"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

// BuildRequest is the body of POST /api/build
type BuildRequest struct {
	Force                bool `json:"force"`
	TriggerGitHubActions bool `json:"trigger_github_actions"`
}

type BuildResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	BuildTime      int64  `json:"build_time,omitempty"`
	GeneratedPages int    `json:"generated_pages"`
	RemovedPages   int    `json:"removed_pages"`
	Error          string `json:"error,omitempty"`
	WorkflowRunID  int64  `json:"workflow_run_id,omitempty"`
}

// BuildStatusResponse answers GET /api/build
type BuildStatusResponse struct {
	GeneratedPages int          `json:"generated_pages"`
	LastBuild      *BuildRecord `json:"last_build,omitempty"`
	Workflow       *WorkflowRun `json:"workflow,omitempty"`
}

// WorkflowRun is the subset of a GitHub Actions run exposed by the build API
type WorkflowRun struct {
	ID         int64  `json:"id"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion,omitempty"`
	HTMLURL    string `json:"html_url"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}
