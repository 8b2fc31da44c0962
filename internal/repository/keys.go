package repository

import "github.com/magnolia-blog/magnolia/internal/kv"

// Key prefixes of the store layout
const (
	prefixArticles   = "articles"
	prefixBySlug     = "articles_by_slug"
	prefixByCategory = "articles_by_category"
	prefixByTag      = "articles_by_tag"
	prefixUsers      = "users"
	prefixSessions   = "sessions"
	prefixBuilds     = "builds"
)

func articleKey(id string) kv.Key            { return kv.K(prefixArticles, id) }
func slugKey(slug string) kv.Key             { return kv.K(prefixBySlug, slug) }
func categoryKey(category, id string) kv.Key { return kv.K(prefixByCategory, category, id) }
func tagKey(tag, id string) kv.Key           { return kv.K(prefixByTag, tag, id) }
func userKey(username string) kv.Key         { return kv.K(prefixUsers, username) }
func sessionKey(id string) kv.Key            { return kv.K(prefixSessions, id) }
