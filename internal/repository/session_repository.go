package repository

import (
	"context"
	"time"

	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/kv"
)

type SessionRepository struct {
	store *kv.Store
}

func NewSessionRepository(store *kv.Store) *SessionRepository {
	return &SessionRepository{store: store}
}

// Create stores a session; the entry itself expires after ttl
func (r *SessionRepository) Create(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	return r.store.Set(ctx, sessionKey(session.ID), session, ttl)
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	if err := r.store.Get(ctx, sessionKey(id), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, sessionKey(id))
}

// ListAll returns every session that has not been evicted by its entry TTL
func (r *SessionRepository) ListAll(ctx context.Context) ([]domain.Session, error) {
	entries, err := r.store.List(ctx, kv.K(prefixSessions), kv.ListOptions{})
	if err != nil {
		return nil, err
	}
	sessions := make([]domain.Session, 0, len(entries))
	for _, e := range entries {
		var s domain.Session
		if err := e.Decode(&s); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
