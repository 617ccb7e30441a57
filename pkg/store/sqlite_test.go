package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xhad/saccoassist/internal/types"
	"github.com/xhad/saccoassist/pkg/store"
)

func newSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSQLiteStoreContract(t *testing.T) {
	runStoreContract(t, newSQLite(t), "")
}

func TestSQLiteHasNoVectorSearch(t *testing.T) {
	s := newSQLite(t)

	_, err := s.SearchChunks(context.Background(), []float32{1, 0}, 5)
	assert.ErrorIs(t, err, types.ErrVectorUnsupported)
}

func TestOpenSQLite(t *testing.T) {
	s, err := store.Open(context.Background(), store.Config{
		Driver: store.DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "open.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetSummary(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}
