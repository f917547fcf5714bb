package common

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// PointsConfig describes where the indexable points come from and
// the proximity constants used to score hash functions
type PointsConfig struct {
	Source            string     `yaml:"source"`
	Path              string     `yaml:"path"`
	Dataset           string     `yaml:"dataset"`
	Count             int        `yaml:"count"`
	Dims              int        `yaml:"dims"`
	Clusters          int        `yaml:"clusters"`
	Spread            float64    `yaml:"spread"`
	Extent            float64    `yaml:"extent"`
	Seed              uint64     `yaml:"seed"`
	Metric            string     `yaml:"metric"`
	CompositeWeights  [3]float64 `yaml:"compositeWeights"`
	Levels            int        `yaml:"levels"`
	MaxValue          float64    `yaml:"maxValue"`
	Radius            float64    `yaml:"radius"`
	Tolerance         float64    `yaml:"tolerance"`
	InitialPopulation int        `yaml:"initialPopulation"`
	Neighbors         int        `yaml:"neighbors"`
}

// HasherConfig holds the sampling ranges of the random hash functions
type HasherConfig struct {
	MeanMin   float64 `yaml:"meanMin"`
	MeanMax   float64 `yaml:"meanMax"`
	StdMin    float64 `yaml:"stdMin"`
	StdMax    float64 `yaml:"stdMax"`
	WidthMin  float64 `yaml:"widthMin"`
	WidthMax  float64 `yaml:"widthMax"`
	// Integral floors drawn mean, std and width, as for integer valued points
	Integral  bool    `yaml:"integral"`
	MacroRate float64 `yaml:"macroRate"`
}

// FitnessConfig holds the sampling constants of the fitness test
type FitnessConfig struct {
	Trials            int     `yaml:"trials"`
	FarSetSize        int     `yaml:"farSetSize"`
	EarlyExit         bool    `yaml:"earlyExit"`
	EarlyExitMinTrial int     `yaml:"earlyExitMinTrial"`
	EarlyExitOffset   float64 `yaml:"earlyExitOffset"`
	TargetRank        int     `yaml:"targetRank"`
}

// EvolveConfig holds the population control constants
type EvolveConfig struct {
	Mode               string `yaml:"mode"`
	TopParents         int    `yaml:"topParents"`
	FreshParents       int    `yaml:"freshParents"`
	MutationParents    int    `yaml:"mutationParents"`
	MutationsPerParent int    `yaml:"mutationsPerParent"`
	Workers            int    `yaml:"workers"`
	MaxSteps           int    `yaml:"maxSteps"`
	Seed               uint64 `yaml:"seed"`
}

// StoreConfig selects the population persistence backend
type StoreConfig struct {
	Kind    string `yaml:"kind"`
	Path    string `yaml:"path"`
	Address string `yaml:"address"`
	Timeout int    `yaml:"timeout"`
}

// AppConfig holds leaderboard service settings
type AppConfig struct {
	Address string `yaml:"address"`
	MaxTop  int    `yaml:"maxTop"`
}

// Config holds all needed variables to run the optimizer
type Config struct {
	Points  PointsConfig  `yaml:"points"`
	Hasher  HasherConfig  `yaml:"hasher"`
	Fitness FitnessConfig `yaml:"fitness"`
	Evolve  EvolveConfig  `yaml:"evolve"`
	Store   StoreConfig   `yaml:"store"`
	App     AppConfig     `yaml:"app"`
}

// DefaultConfig returns the constants the optimizer was tuned with
func DefaultConfig() Config {
	return Config{
		Points: PointsConfig{
			Source:            "synthetic",
			Dataset:           "train",
			Count:             5000,
			Dims:              48,
			Clusters:          50,
			Spread:            10,
			Extent:            1000,
			Seed:              1,
			Metric:            "euclidean",
			CompositeWeights:  [3]float64{0.4, 0.4, 0.2},
			Levels:            16,
			MaxValue:          255,
			Radius:            150,
			Tolerance:         3,
			InitialPopulation: 1000,
			Neighbors:         200,
		},
		Hasher: HasherConfig{
			MeanMin:   128,
			MeanMax:   2048,
			StdMin:    8,
			StdMax:    1024,
			WidthMin:  32,
			WidthMax:  16384,
			Integral:  true,
			MacroRate: 0.01,
		},
		Fitness: FitnessConfig{
			Trials:            200,
			FarSetSize:        200,
			EarlyExit:         true,
			EarlyExitMinTrial: 80,
			EarlyExitOffset:   0.2,
			TargetRank:        1000,
		},
		Evolve: EvolveConfig{
			Mode:               "crossover",
			TopParents:         60,
			FreshParents:       10,
			MutationParents:    20,
			MutationsPerParent: 50,
			Workers:            runtime.NumCPU(),
			Seed:               0,
		},
		Store: StoreConfig{
			Kind:    "memory",
			Timeout: 30,
		},
		App: AppConfig{
			Address: ":8080",
			MaxTop:  500,
		},
	}
}

// LoadConfig reads yaml file on top of the default config and
// then applies environment overrides
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ParseEnv(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// ParseEnv overrides config fields by the environment variables if they are set
func ParseEnv(config *Config) error {
	intVars := map[string]*int{
		"LSH_INITIAL_POPULATION": &config.Points.InitialPopulation,
		"LSH_WORKERS":            &config.Evolve.Workers,
		"LSH_MAX_STEPS":          &config.Evolve.MaxSteps,
		"LSH_STORE_TIMEOUT":      &config.Store.Timeout,
	}
	for key, dst := range intVars {
		raw, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		val, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = val
	}
	floatVars := map[string]*float64{
		"LSH_RADIUS":    &config.Points.Radius,
		"LSH_TOLERANCE": &config.Points.Tolerance,
	}
	for key, dst := range floatVars {
		raw, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = val
	}
	stringVars := map[string]*string{
		"LSH_STORE_KIND":  &config.Store.Kind,
		"LSH_STORE_PATH":  &config.Store.Path,
		"LSH_PUREKV_ADDR": &config.Store.Address,
		"LSH_APP_ADDR":    &config.App.Address,
		"LSH_POINTS_PATH": &config.Points.Path,
	}
	for key, dst := range stringVars {
		val := os.Getenv(key)
		if len(val) == 0 {
			continue
		}
		*dst = val
	}
	return nil
}

// Validate checks that config values are usable
func (c Config) Validate() error {
	var errs []error
	if c.Points.Radius <= 0 {
		errs = append(errs, errors.New("points.radius must be > 0"))
	}
	if c.Points.Tolerance < 1 {
		errs = append(errs, errors.New("points.tolerance must be >= 1"))
	}
	if c.Points.InitialPopulation <= 0 {
		errs = append(errs, errors.New("points.initialPopulation must be > 0"))
	}
	if c.Points.Neighbors <= 0 {
		errs = append(errs, errors.New("points.neighbors must be > 0"))
	}
	switch c.Points.Metric {
	case "euclidean", "cosine", "composite":
	default:
		errs = append(errs, fmt.Errorf("points.metric must be euclidean, cosine or composite, got %q", c.Points.Metric))
	}
	if c.Points.Metric == "composite" {
		sum := 0.0
		for _, w := range c.Points.CompositeWeights {
			if w < 0 {
				errs = append(errs, errors.New("points.compositeWeights must be non-negative"))
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-9 {
			errs = append(errs, fmt.Errorf("points.compositeWeights must sum to 1, got %v", sum))
		}
	}
	if c.Hasher.WidthMin <= 0 || c.Hasher.WidthMax <= c.Hasher.WidthMin {
		errs = append(errs, errors.New("hasher width range must be positive and non-empty"))
	}
	if c.Hasher.StdMin < 0 || c.Hasher.StdMax < c.Hasher.StdMin {
		errs = append(errs, errors.New("hasher std range is invalid"))
	}
	if c.Hasher.MeanMax < c.Hasher.MeanMin {
		errs = append(errs, errors.New("hasher mean range is invalid"))
	}
	if c.Hasher.MacroRate < 0 || c.Hasher.MacroRate > 1 {
		errs = append(errs, errors.New("hasher.macroRate must be in [0, 1]"))
	}
	if c.Fitness.Trials <= 0 || c.Fitness.FarSetSize <= 0 {
		errs = append(errs, errors.New("fitness trials and farSetSize must be > 0"))
	}
	if c.Fitness.TargetRank <= 0 {
		errs = append(errs, errors.New("fitness.targetRank must be > 0"))
	}
	switch c.Evolve.Mode {
	case "crossover", "mutation":
	default:
		errs = append(errs, fmt.Errorf("unsupported evolve.mode: %s", c.Evolve.Mode))
	}
	if c.Evolve.Workers <= 0 {
		errs = append(errs, errors.New("evolve.workers must be > 0"))
	}
	return errors.Join(errs...)
}
