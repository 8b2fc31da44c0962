package service

import "errors"

var (
	// ErrArticleNotFound is returned when an article id or slug does not exist
	ErrArticleNotFound = errors.New("article not found")

	// ErrDuplicateSlug is returned when another article already uses the slug
	ErrDuplicateSlug = errors.New("slug already exists")

	// ErrInvalidArticle wraps normalisation failures such as a malformed slug or date
	ErrInvalidArticle = errors.New("invalid article")

	ErrInvalidCredentials = errors.New("invalid username or password")

	ErrSessionNotFound = errors.New("session not found")

	ErrSessionExpired = errors.New("session expired")

	// ErrBuildInProgress is returned when a build request cannot join a running build
	ErrBuildInProgress = errors.New("site build already in progress")

	// ErrGitHubNotConfigured is returned when workflow dispatch lacks token, owner or repo
	ErrGitHubNotConfigured = errors.New("github workflow dispatch is not configured")
)
