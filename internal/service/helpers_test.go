package service_test

import (
	"testing"

	"github.com/magnolia-blog/magnolia/internal/kv"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStore(t *testing.T) *kv.Store {
	t.Helper()
	store, err := kv.OpenInMemory(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
