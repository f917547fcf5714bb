package purekv

import (
	"context"
	"os"
	"testing"

	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/store"
	"github.com/gasparian/lsh-evolve-go/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a running pure-kv server is needed, e.g. LSH_PUREKV_ADDR=localhost:6666
func serverAddress(t *testing.T) string {
	addr := os.Getenv("LSH_PUREKV_ADDR")
	if addr == "" {
		t.Skip("LSH_PUREKV_ADDR is not set")
	}
	return addr
}

func TestPureKvStore(t *testing.T) {
	addr := serverAddress(t)
	storetest.Run(t, func(t *testing.T) store.Store {
		s := New(Config{Address: addr, Timeout: 5})
		require.NoError(t, s.Init(context.Background()))
		require.NoError(t, s.Clear())
		t.Cleanup(func() {
			s.Clear()
			s.Close()
		})
		return s
	})
}

func TestToBytes(t *testing.T) {
	b, err := toBytes([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), b)
	b, err = toBytes("y")
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), b)
	_, err = toBytes(42)
	assert.ErrorIs(t, err, unexpectedValueErr)
}

func TestTimeoutMillis(t *testing.T) {
	assert.Equal(t, 30000, Config{Timeout: 30}.timeoutMillis())
	assert.Zero(t, Config{}.timeoutMillis())
}

func TestClear(t *testing.T) {
	addr := serverAddress(t)
	ctx := context.Background()
	s := New(Config{Address: addr, Timeout: 5})
	require.NoError(t, s.Init(ctx))
	defer s.Close()
	require.NoError(t, s.Clear())

	_, err := s.Create(ctx, lsh.NewPending(nil, nil))
	require.NoError(t, err)
	require.NoError(t, s.Clear())
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	id, err := s.Create(ctx, lsh.NewPending(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, lsh.ID(1), id)
	require.NoError(t, s.Clear())
}
