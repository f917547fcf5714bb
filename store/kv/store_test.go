package kv

import (
	"testing"

	"github.com/gasparian/lsh-evolve-go/store"
	"github.com/gasparian/lsh-evolve-go/store/storetest"
)

func TestKvStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return NewKVStore()
	})
}
