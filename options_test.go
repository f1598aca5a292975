package hnswstore

import (
	"log/slog"
	"testing"

	"github.com/hupe1980/hnswstore/resource"
	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	o := defaultOptions()
	o.setDefaults()

	assert.Equal(t, DefaultM, o.m)
	assert.Equal(t, DefaultEFConstruction, o.efConstruction)
	assert.Equal(t, DefaultEFSearch, o.efSearch)
	assert.True(t, o.heuristic)
	assert.Equal(t, BackendNative, o.backend)
	assert.NotNil(t, o.logger)
	assert.NotNil(t, o.metricsCollector)
	assert.NotNil(t, o.resources)
	assert.Zero(t, o.resources.MemoryLimit())
}

func TestOptions_Normalize(t *testing.T) {
	o := defaultOptions()
	for _, fn := range []Option{
		WithM(1),
		WithEFConstruction(-3),
		WithEFSearch(0),
		WithLogger(nil),
		WithMetricsCollector(nil),
		WithMemoryLimit(1 << 20),
		WithMaxConcurrentBuilds(4),
	} {
		fn(&o)
	}
	o.setDefaults()

	assert.Equal(t, DefaultM, o.m)
	assert.Equal(t, DefaultEFConstruction, o.efConstruction)
	assert.Equal(t, DefaultEFSearch, o.efSearch)
	assert.NotNil(t, o.logger)
	assert.IsType(t, NoopMetricsCollector{}, o.metricsCollector)
	assert.Equal(t, int64(1<<20), o.resources.MemoryLimit())
}

func TestOptions_ResourceController(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 42})

	o := defaultOptions()
	WithResourceController(rc)(&o)
	WithMemoryLimit(1 << 30)(&o)
	o.setDefaults()

	assert.Same(t, rc, o.resources)
}

func TestOptions_Misc(t *testing.T) {
	o := defaultOptions()
	for _, fn := range []Option{
		WithDimension(8),
		WithEFSearch(32),
		WithHeuristic(false),
		WithSeed(7),
		WithBackend(BackendCoder),
		WithLogLevel(slog.LevelDebug),
	} {
		fn(&o)
	}
	o.setDefaults()

	assert.Equal(t, 8, o.dimension)
	assert.Equal(t, 32, o.efSearch)
	assert.False(t, o.heuristic)
	assert.Equal(t, int64(7), *o.seed)
	assert.Equal(t, BackendCoder, o.backend)
	assert.True(t, o.logger.Enabled(t.Context(), slog.LevelDebug))
}

func TestBackend_String(t *testing.T) {
	assert.Equal(t, "native", BackendNative.String())
	assert.Equal(t, "coder", BackendCoder.String())
	assert.Equal(t, "Unknown(5)", Backend(5).String())
}
