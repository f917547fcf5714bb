package badger

import (
	"context"
	"testing"

	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/store"
	"github.com/gasparian/lsh-evolve-go/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s := New(Config{InMemory: true})
		require.NoError(t, s.Init(context.Background()))
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestReopenKeepsPopulation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(Config{Path: dir})
	require.NoError(t, s.Init(ctx))
	first, err := s.Create(ctx, lsh.NewPending(nil, nil))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Get(ctx, first)
	assert.ErrorIs(t, err, store.ErrClosed)

	reopened := New(Config{Path: dir})
	require.NoError(t, reopened.Init(ctx))
	defer reopened.Close()
	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	second, err := reopened.Create(ctx, lsh.NewPending(nil, nil))
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestNoPath(t *testing.T) {
	assert.ErrorIs(t, New(Config{}).Init(context.Background()), noPathErr)
}
