// Package store defines the population persistence contract
// and the helpers shared by its backends.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/gasparian/lsh-evolve-go/lsh"
)

var (
	// ErrNotFound is returned when there is no hash function with the requested id
	ErrNotFound = errors.New("hash function not found")
	// ErrClosed is returned by a backend used after Close
	ErrClosed = errors.New("store is closed")
)

// Store holds the population. Hash functions are never deleted;
// lineage is written once on Create and never changed.
type Store interface {
	Init(ctx context.Context) error
	// Create persists the hash function under a new id and returns it
	Create(ctx context.Context, hf lsh.HashFunction) (lsh.ID, error)
	Get(ctx context.Context, id lsh.ID) (lsh.HashFunction, error)
	// UpdateFitness writes params drawn at first evaluation and the fitness
	UpdateFitness(ctx context.Context, hf lsh.HashFunction) error
	// Untested returns up to limit untested hash functions by ascending id, all if limit <= 0
	Untested(ctx context.Context, limit int) ([]lsh.HashFunction, error)
	// Top returns up to n hash functions with a score, best first, all if n <= 0
	Top(ctx context.Context, n int) ([]lsh.HashFunction, error)
	Count(ctx context.Context) (int, error)
	// Scan calls fn for every hash function by ascending id
	Scan(ctx context.Context, fn func(lsh.HashFunction) error) error
	Close() error
}

// Encode serializes the hash function into the backend payload
func Encode(hf lsh.HashFunction) ([]byte, error) {
	return json.Marshal(hf.Record())
}

// Decode restores hash function from the backend payload
func Decode(payload []byte) (lsh.HashFunction, error) {
	var rec lsh.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return lsh.HashFunction{}, fmt.Errorf("decode hash function: %w", err)
	}
	return lsh.FromRecord(rec)
}

// Rank keeps hash functions that have a score and returns n best of them
func Rank(hfs []lsh.HashFunction, n int) []lsh.HashFunction {
	scored := make([]lsh.HashFunction, 0, len(hfs))
	for _, hf := range hfs {
		if _, ok := hf.Score(); ok {
			scored = append(scored, hf)
		}
	}
	lsh.SortByScore(scored)
	if n > 0 && len(scored) > n {
		scored = scored[:n]
	}
	return scored
}

// Limit keeps untested hash functions ordered by id, up to limit
func Limit(hfs []lsh.HashFunction, limit int) []lsh.HashFunction {
	out := make([]lsh.HashFunction, 0)
	for _, hf := range hfs {
		if !hf.Fitness().IsTested() {
			out = append(out, hf)
		}
	}
	SortByID(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SortByID orders hash functions by ascending id
func SortByID(hfs []lsh.HashFunction) {
	sort.Slice(hfs, func(i, j int) bool {
		return hfs[i].ID < hfs[j].ID
	})
}

// ScoreAt returns the score of the hash function ranked at the given place;
// ok is false when fewer hash functions have a score
func ScoreAt(ctx context.Context, s Store, rank int) (float64, bool, error) {
	if rank <= 0 {
		return 0, false, nil
	}
	top, err := s.Top(ctx, rank)
	if err != nil {
		return 0, false, err
	}
	if len(top) < rank {
		return 0, false, nil
	}
	score, ok := top[rank-1].Score()
	return score, ok, nil
}

// Export collects the whole population into a snapshot
func Export(ctx context.Context, s Store, runID string) (lsh.Snapshot, error) {
	snap := lsh.Snapshot{RunID: runID}
	err := s.Scan(ctx, func(hf lsh.HashFunction) error {
		snap.Records = append(snap.Records, hf.Record())
		return nil
	})
	return snap, err
}

// Import appends the snapshot to the store. Ids are reassigned and
// parent links are remapped, so parents must precede children by id.
func Import(ctx context.Context, s Store, snap lsh.Snapshot) (int, error) {
	records := append([]lsh.Record(nil), snap.Records...)
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	ids := make(map[lsh.ID]lsh.ID, len(records))
	remap := func(id lsh.ID) (lsh.ID, error) {
		if id == lsh.NoParent {
			return lsh.NoParent, nil
		}
		newID, ok := ids[id]
		if !ok {
			return 0, fmt.Errorf("%w: parent %d is missing in the snapshot", lsh.ErrInvalidRecord, id)
		}
		return newID, nil
	}
	for i, rec := range records {
		hf, err := lsh.FromRecord(rec)
		if err != nil {
			return i, err
		}
		if hf.Father, err = remap(rec.Father); err != nil {
			return i, err
		}
		if hf.Mother, err = remap(rec.Mother); err != nil {
			return i, err
		}
		id, err := s.Create(ctx, hf)
		if err != nil {
			return i, err
		}
		ids[rec.ID] = id
	}
	return len(records), nil
}
