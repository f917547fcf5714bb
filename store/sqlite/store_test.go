package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/store"
	"github.com/gasparian/lsh-evolve-go/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s := New(":memory:")
		require.NoError(t, s.Init(context.Background()))
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestFileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "population.db")
	s := New(path)
	require.NoError(t, s.Init(ctx))
	id, err := s.Create(ctx, lsh.NewPending(nil, nil))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Count(ctx)
	assert.ErrorIs(t, err, store.ErrClosed)

	reopened := New(path)
	require.NoError(t, reopened.Init(ctx))
	defer reopened.Close()
	hf, err := reopened.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, hf.ID)
}

func TestNoPath(t *testing.T) {
	assert.ErrorIs(t, New("").Init(context.Background()), noPathErr)
}
