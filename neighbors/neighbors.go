// Package neighbors computes and caches the exact k nearest neighbors of every
// point. The lists are a training fixture for hash function fitness.
package neighbors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	cm "github.com/gasparian/lsh-evolve-go/common"
	"github.com/gasparian/lsh-evolve-go/points"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultK is the size of the ground truth list per point
const DefaultK = 200

var unknownPointErr = errors.New("point is not in the store")

// Progress is notified once per computed list
type Progress interface {
	Increment()
}

type candidate struct {
	id   uint32
	dist float64
}

// Cache holds nearest neighbors lists; lists are written once and
// then only read, so concurrent readers need no coordination past the first miss
type Cache struct {
	store  points.Store
	k      int
	logger *cm.Logger

	mx    sync.RWMutex
	lists map[uint32][]uint32
	group singleflight.Group
}

// NewCache creates an empty cache; k is clamped to the number of other points
func NewCache(store points.Store, k int, logger *cm.Logger) *Cache {
	if k <= 0 {
		k = DefaultK
	}
	if n := len(store.Points()) - 1; k > n {
		k = n
	}
	if logger == nil {
		logger = cm.NewDiscardLogger()
	}
	return &Cache{
		store:  store,
		k:      k,
		logger: logger,
		lists:  make(map[uint32][]uint32),
	}
}

// K returns the effective list size
func (c *Cache) K() int {
	return c.k
}

// Len returns the number of cached lists
func (c *Cache) Len() int {
	c.mx.RLock()
	defer c.mx.RUnlock()
	return len(c.lists)
}

// Neighbors returns the ascending by distance ids of the k nearest points,
// computing the list on a cache miss. Concurrent misses share one computation,
// which runs to completion even if the caller that started it gives up.
func (c *Cache) Neighbors(ctx context.Context, id uint32) ([]uint32, error) {
	c.mx.RLock()
	list, ok := c.lists[id]
	c.mx.RUnlock()
	if ok {
		return list, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := c.group.DoChan(strconv.FormatUint(uint64(id), 10), func() (interface{}, error) {
		c.mx.RLock()
		list, ok := c.lists[id]
		c.mx.RUnlock()
		if ok {
			return list, nil
		}
		list, err := c.compute(id)
		if err != nil {
			return nil, err
		}
		c.mx.Lock()
		c.lists[id] = list
		c.mx.Unlock()
		return list, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]uint32), nil
	}
}

// compute scans all points keeping a bounded list sorted by distance;
// a newcomer enters a full list only if it is strictly closer than the worst kept
func (c *Cache) compute(id uint32) ([]uint32, error) {
	idx, ok := c.store.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", unknownPointErr, id)
	}
	all := c.store.Points()
	query := all[idx]
	best := make([]candidate, 0, c.k+1)
	for i, p := range all {
		if i == idx {
			continue
		}
		dist, err := c.store.Distance(query, p)
		if err != nil {
			return nil, err
		}
		if len(best) < c.k || dist < best[len(best)-1].dist {
			best = append(best, candidate{id: p.ID, dist: dist})
			sort.SliceStable(best, func(i, j int) bool {
				return best[i].dist < best[j].dist
			})
			if len(best) > c.k {
				best = best[:c.k]
			}
		}
	}
	out := make([]uint32, len(best))
	for i, cand := range best {
		out[i] = cand.id
	}
	return out, nil
}

// Precompute fills the cache for every point using a bounded worker pool
func (c *Cache) Precompute(ctx context.Context, workers int, progress Progress) error {
	if workers <= 0 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range c.store.Points() {
		id := p.ID
		g.Go(func() error {
			if _, err := c.Neighbors(ctx, id); err != nil {
				return err
			}
			if progress != nil {
				progress.Increment()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	c.logger.Info.Printf("Ground truth is ready: %v lists of %v neighbors", c.Len(), c.k)
	return nil
}
