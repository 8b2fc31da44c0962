package domain

import "time"

// Article is a blog article as stored in the key-value store and served by the APIs
type Article struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	PubDate   time.Time `json:"pub_date"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasTag reports whether the article carries tag
func (a *Article) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// User is an admin account
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is a login session referenced by the session cookie
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session is no longer usable at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// BuildRecord describes the most recent static site build
type BuildRecord struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int64     `json:"duration_ms"`
	Pages      int       `json:"pages"`
	Removed    int       `json:"removed"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Trigger    string    `json:"trigger"`
}

// NameCount is a category or tag with the number of articles using it
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
