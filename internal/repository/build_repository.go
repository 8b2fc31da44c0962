package repository

import (
	"context"

	"github.com/magnolia-blog/magnolia/internal/domain"
	"github.com/magnolia-blog/magnolia/internal/kv"
)

// BuildRepository keeps the record of the most recent site build
type BuildRepository struct {
	store *kv.Store
}

func NewBuildRepository(store *kv.Store) *BuildRepository {
	return &BuildRepository{store: store}
}

func (r *BuildRepository) SaveLast(ctx context.Context, record *domain.BuildRecord) error {
	return r.store.Set(ctx, kv.K(prefixBuilds, "last"), record, 0)
}

// GetLast returns kv.ErrNotFound before the first build
func (r *BuildRepository) GetLast(ctx context.Context) (*domain.BuildRecord, error) {
	var rec domain.BuildRecord
	if err := r.store.Get(ctx, kv.K(prefixBuilds, "last"), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
