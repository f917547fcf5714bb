// Package annbench measures how well a single hash function's buckets
// agree with the ground truth nearest neighbors.
package annbench

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/neighbors"
	"github.com/gasparian/lsh-evolve-go/points"
	"github.com/gasparian/lsh-evolve-go/vector"
	"golang.org/x/sync/errgroup"
)

var (
	noQueriesErr = errors.New("number of queries must be positive")
)

// Config holds the benchmark constants
type Config struct {
	Queries int
	Workers int
	Seed    uint64
}

// Report summarizes per query precision and recall of bucket membership
type Report struct {
	Queries       int     `json:"queries"`
	Skipped       int     `json:"skipped"`
	Precision     float64 `json:"precision"`
	PrecisionStd  float64 `json:"precisionStd"`
	Recall        float64 `json:"recall"`
	RecallStd     float64 `json:"recallStd"`
	MeanBucketLen float64 `json:"meanBucketLen"`
}

// PrecisionRecall returns ratio of relevant predictions over all predictions
// and over all truly relevant items
func PrecisionRecall(prediction, groundTruth *roaring.Bitmap) (float64, float64) {
	valid := prediction.AndCardinality(groundTruth)
	precision := 0.0
	if !prediction.IsEmpty() {
		precision = float64(valid) / float64(prediction.GetCardinality())
	}
	recall := 0.0
	if !groundTruth.IsEmpty() {
		recall = float64(valid) / float64(groundTruth.GetCardinality())
	}
	return precision, recall
}

type queryResult struct {
	precision float64
	recall    float64
	bucketLen int
	skipped   bool
}

// Bench hashes every point, then for sampled queries compares the other members
// of the query's bucket with its cached nearest neighbors
func Bench(ctx context.Context, store points.Store, cache *neighbors.Cache, hf *lsh.HashFunction, config Config) (Report, error) {
	if config.Queries <= 0 {
		return Report{}, noQueriesErr
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	all := store.Points()
	buckets := make(map[int64]*roaring.Bitmap)
	bucketOf := make([]int64, len(all))
	for i, p := range all {
		b, err := hf.Project(store.Address(p))
		if err != nil {
			return Report{}, fmt.Errorf("hashing point %d: %w", p.ID, err)
		}
		bucketOf[i] = b
		bm, ok := buckets[b]
		if !ok {
			bm = roaring.New()
			buckets[b] = bm
		}
		bm.Add(p.ID)
	}

	rng := rand.New(rand.NewPCG(config.Seed, config.Seed+1))
	queries := min(config.Queries, len(all))
	sample := rng.Perm(len(all))[:queries]

	results := make([]queryResult, queries)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for i, idx := range sample {
		g.Go(func() error {
			query := all[idx]
			near, err := cache.Neighbors(gctx, query.ID)
			if err != nil {
				return err
			}
			if len(near) == 0 {
				results[i].skipped = true
				return nil
			}
			prediction := buckets[bucketOf[idx]].Clone()
			prediction.Remove(query.ID)
			results[i].bucketLen = int(prediction.GetCardinality())
			results[i].precision, results[i].recall = PrecisionRecall(prediction, roaring.BitmapOf(near...))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	return summarize(results), nil
}

func summarize(results []queryResult) Report {
	var rep Report
	precision := make([]float64, 0, len(results))
	recall := make([]float64, 0, len(results))
	var bucketSum float64
	for _, r := range results {
		if r.skipped {
			rep.Skipped++
			continue
		}
		precision = append(precision, r.precision)
		recall = append(recall, r.recall)
		bucketSum += float64(r.bucketLen)
	}
	rep.Queries = len(precision)
	if rep.Queries == 0 {
		return rep
	}
	// a single query has no spread, its std is reported as 0
	rep.Precision, rep.PrecisionStd, _ = vector.MeanStd(precision)
	rep.Recall, rep.RecallStd, _ = vector.MeanStd(recall)
	rep.MeanBucketLen = bucketSum / float64(rep.Queries)
	return rep
}
