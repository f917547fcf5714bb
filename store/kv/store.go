// Package kv is the in-memory population store
package kv

import (
	"context"
	"fmt"
	"sync"

	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/store"
)

type KVStore struct {
	mx     sync.RWMutex
	m      map[lsh.ID]lsh.HashFunction
	lastID lsh.ID
}

func NewKVStore() *KVStore {
	return &KVStore{
		m: make(map[lsh.ID]lsh.HashFunction),
	}
}

func (s *KVStore) Init(ctx context.Context) error {
	return nil
}

func (s *KVStore) Create(ctx context.Context, hf lsh.HashFunction) (lsh.ID, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.lastID++
	hf.ID = s.lastID
	s.m[hf.ID] = hf
	return hf.ID, nil
}

func (s *KVStore) Get(ctx context.Context, id lsh.ID) (lsh.HashFunction, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	hf, ok := s.m[id]
	if !ok {
		return lsh.HashFunction{}, fmt.Errorf("%w: %d", store.ErrNotFound, id)
	}
	return hf, nil
}

// UpdateFitness keeps the stored lineage and takes params and fitness from hf
func (s *KVStore) UpdateFitness(ctx context.Context, hf lsh.HashFunction) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	old, ok := s.m[hf.ID]
	if !ok {
		return fmt.Errorf("%w: %d", store.ErrNotFound, hf.ID)
	}
	hf.Father, hf.Mother, hf.Generation = old.Father, old.Mother, old.Generation
	s.m[hf.ID] = hf
	return nil
}

func (s *KVStore) snapshot() []lsh.HashFunction {
	s.mx.RLock()
	defer s.mx.RUnlock()
	out := make([]lsh.HashFunction, 0, len(s.m))
	for _, hf := range s.m {
		out = append(out, hf)
	}
	store.SortByID(out)
	return out
}

func (s *KVStore) Untested(ctx context.Context, limit int) ([]lsh.HashFunction, error) {
	return store.Limit(s.snapshot(), limit), nil
}

func (s *KVStore) Top(ctx context.Context, n int) ([]lsh.HashFunction, error) {
	return store.Rank(s.snapshot(), n), nil
}

func (s *KVStore) Count(ctx context.Context) (int, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return len(s.m), nil
}

// Scan iterates over a snapshot, so fn may write to the store
func (s *KVStore) Scan(ctx context.Context, fn func(lsh.HashFunction) error) error {
	for _, hf := range s.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(hf); err != nil {
			return err
		}
	}
	return nil
}

func (s *KVStore) Close() error {
	return nil
}
