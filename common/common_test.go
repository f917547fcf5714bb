package common_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cm "github.com/gasparian/lsh-evolve-go/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := cm.GetNewLogger()
	logger.Warn.SetOutput(&buf)
	logger.Info.SetOutput(&buf)
	logger.Err.SetOutput(&buf)
	defer func() {
		logger.Warn.SetOutput(os.Stderr)
		logger.Info.SetOutput(os.Stderr)
		logger.Err.SetOutput(os.Stderr)
	}()
	logger.Warn.Println("Test Warn")
	logger.Info.Println("Test Info")
	logger.Err.Println("Test Err")
	if buf.Len() == 0 {
		t.Fatal("Loggers returned nothing")
	}
}

func TestLoggerWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := cm.GetNewLogger()
	logger.Info.SetOutput(&buf)
	runLogger := logger.WithPrefix("run=42")
	runLogger.Info.Println("hello")
	assert.Contains(t, buf.String(), "[ Info ] run=42 ")
	assert.Contains(t, buf.String(), "hello")
}

func TestNewRunID(t *testing.T) {
	a, b := cm.NewRunID(), cm.NewRunID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestDecorate(t *testing.T) {
	var order []string
	mark := func(name string) cm.Decorator {
		return func(h http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				h.ServeHTTP(w, r)
			})
		}
	}
	h := cm.Decorate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mark("first"), mark("second"), cm.Timer(cm.NewDiscardLogger()))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, cm.DefaultConfig().Validate())
}

func TestLoadConfigYamlAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := strings.Join([]string{
		"points:",
		"  radius: 12.5",
		"  initialPopulation: 40",
		"evolve:",
		"  mode: mutation",
		"store:",
		"  kind: badger",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("LSH_TOLERANCE", "4")
	t.Setenv("LSH_STORE_PATH", "/tmp/population")

	config, err := cm.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 12.5, config.Points.Radius)
	assert.Equal(t, 40, config.Points.InitialPopulation)
	assert.Equal(t, 4.0, config.Points.Tolerance)
	assert.Equal(t, "mutation", config.Evolve.Mode)
	assert.Equal(t, "badger", config.Store.Kind)
	assert.Equal(t, "/tmp/population", config.Store.Path)
	// untouched defaults survive
	assert.Equal(t, 200, config.Fitness.Trials)
	require.NoError(t, config.Validate())
}

func TestLoadConfigBadEnv(t *testing.T) {
	t.Setenv("LSH_WORKERS", "many")
	_, err := cm.LoadConfig("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	config := cm.DefaultConfig()
	config.Points.Metric = "composite"
	config.Points.CompositeWeights = [3]float64{0.5, 0.5, 0.5}
	config.Hasher.WidthMin = 0
	config.Evolve.Mode = "annealing"
	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1")
	assert.Contains(t, err.Error(), "width range")
	assert.Contains(t, err.Error(), "annealing")
}

func TestValidateFitnessAndMetric(t *testing.T) {
	config := cm.DefaultConfig()
	config.Fitness.FarSetSize = 0
	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "farSetSize")

	config = cm.DefaultConfig()
	config.Points.Metric = "cosine"
	require.NoError(t, config.Validate())
	config.Points.Metric = "manhattan"
	err = config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manhattan")
}
