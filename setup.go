package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"
	"github.com/gasparian/lsh-evolve-go/annbench"
	cm "github.com/gasparian/lsh-evolve-go/common"
	"github.com/gasparian/lsh-evolve-go/evolve"
	"github.com/gasparian/lsh-evolve-go/fitness"
	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/neighbors"
	"github.com/gasparian/lsh-evolve-go/points"
	"github.com/gasparian/lsh-evolve-go/store"
	"github.com/gasparian/lsh-evolve-go/store/badger"
	"github.com/gasparian/lsh-evolve-go/store/kv"
	"github.com/gasparian/lsh-evolve-go/store/purekv"
	"github.com/gasparian/lsh-evolve-go/store/sqlite"
	"github.com/gasparian/lsh-evolve-go/vector"
	"gonum.org/v1/gonum/floats"
)

// progressBar adapts pb bars to the Progress interfaces
type progressBar struct {
	*pb.ProgressBar
}

func (b progressBar) Increment() {
	b.ProgressBar.Increment()
}

// openStore creates and initializes the configured persistence backend
func openStore(ctx context.Context, config cm.StoreConfig, logger *cm.Logger) (store.Store, error) {
	var st store.Store
	switch config.Kind {
	case "memory", "kv":
		logger.Warn.Println("Population is kept in memory and will be lost on exit")
		st = kv.NewKVStore()
	case "badger":
		st = badger.New(badger.Config{Path: config.Path, Logger: logger})
	case "sqlite":
		st = sqlite.New(config.Path)
	case "purekv":
		st = purekv.New(purekv.Config{Address: config.Address, Timeout: config.Timeout})
	default:
		return nil, fmt.Errorf("unknown store kind %q", config.Kind)
	}
	if err := st.Init(ctx); err != nil {
		return nil, fmt.Errorf("init %s store: %w", config.Kind, err)
	}
	return st, nil
}

func loadVectors(config cm.PointsConfig) ([][]float64, error) {
	switch config.Source {
	case "synthetic":
		return points.Synthetic(points.SyntheticConfig{
			Count:    config.Count,
			Dims:     config.Dims,
			Clusters: config.Clusters,
			Spread:   config.Spread,
			Extent:   config.Extent,
			Seed:     config.Seed,
		})
	case "hdf5":
		return annbench.LoadHDF5Points(filepath.Clean(config.Path), config.Dataset)
	default:
		return nil, fmt.Errorf("unknown points source %q", config.Source)
	}
}

func loadMetric(config cm.PointsConfig) (points.Metric, error) {
	switch config.Metric {
	case "euclidean":
		return points.Euclidean{}, nil
	case "cosine":
		return points.Cosine{}, nil
	case "composite":
		return points.NewComposite(config.CompositeWeights, config.Levels, config.MaxValue)
	default:
		return nil, fmt.Errorf("unknown metric %q", config.Metric)
	}
}

// loadPoints builds the point store
func loadPoints(config cm.PointsConfig, logger *cm.Logger) (*points.MemoryStore, error) {
	vecs, err := loadVectors(config)
	if err != nil {
		return nil, err
	}
	metric, err := loadMetric(config)
	if err != nil {
		return nil, err
	}
	pts, err := points.FromVectors(vecs, metric, points.Config{
		Radius:            config.Radius,
		Tolerance:         config.Tolerance,
		InitialPopulation: config.InitialPopulation,
	})
	if err != nil {
		return nil, err
	}
	logger.Info.Printf("Loaded %v points of %v dims from %v source", len(vecs), pts.Dimension(), config.Source)
	mean, std, err := vector.GetMeanStd(vecs)
	if err != nil {
		return nil, err
	}
	// hasher mean/std ranges are usually picked around these
	logger.Info.Printf("Points components: mean in [%.3f, %.3f], std in [%.3f, %.3f]",
		floats.Min(mean), floats.Max(mean), floats.Min(std), floats.Max(std))
	return pts, nil
}

// loadNeighbors precomputes ground truth for every point showing a progress bar
func loadNeighbors(ctx context.Context, pts *points.MemoryStore, k, workers int, logger *cm.Logger) (*neighbors.Cache, error) {
	cache := neighbors.NewCache(pts, k, logger)
	bar := pb.StartNew(len(pts.Points()))
	defer bar.Finish()
	if err := cache.Precompute(ctx, workers, progressBar{bar}); err != nil {
		return nil, err
	}
	return cache, nil
}

func hasherConfig(config cm.HasherConfig) lsh.Config {
	return lsh.Config{
		MeanMin:   config.MeanMin,
		MeanMax:   config.MeanMax,
		StdMin:    config.StdMin,
		StdMax:    config.StdMax,
		WidthMin:  config.WidthMin,
		WidthMax:  config.WidthMax,
		Integral:  config.Integral,
		MacroRate: config.MacroRate,
	}
}

func fitnessConfig(config cm.FitnessConfig) fitness.Config {
	return fitness.Config{
		Trials:     config.Trials,
		FarSetSize: config.FarSetSize,
		MinTrial:   config.EarlyExitMinTrial,
		Offset:     config.EarlyExitOffset,
	}
}

func engineConfig(config cm.Config) evolve.Config {
	return evolve.Config{
		Mode:               evolve.Mode(config.Evolve.Mode),
		InitialPopulation:  config.Points.InitialPopulation,
		TopParents:         config.Evolve.TopParents,
		FreshParents:       config.Evolve.FreshParents,
		MutationParents:    config.Evolve.MutationParents,
		MutationsPerParent: config.Evolve.MutationsPerParent,
		Workers:            config.Evolve.Workers,
		MaxSteps:           config.Evolve.MaxSteps,
		Seed:               config.Evolve.Seed,
		EarlyExit:          config.Fitness.EarlyExit,
		TargetRank:         config.Fitness.TargetRank,
	}
}
