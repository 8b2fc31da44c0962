package repository

import (
	"context"

	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/kv"
)

type UserRepository struct {
	store *kv.Store
}

func NewUserRepository(store *kv.Store) *UserRepository {
	return &UserRepository{store: store}
}

// Get returns kv.ErrNotFound for an unknown username
func (r *UserRepository) Get(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	if err := r.store.Get(ctx, userKey(username), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	return r.store.Set(ctx, userKey(user.Username), user, 0)
}
