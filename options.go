package hnswstore

import (
	"fmt"
	"log/slog"

	"github.com/hupe1980/hnswstore/internal/hnsw"
	"github.com/hupe1980/hnswstore/resource"
)

const (
	// DefaultM is the default number of graph links per node and layer.
	DefaultM = hnsw.DefaultM

	// DefaultEFConstruction is the default candidate list size while building.
	DefaultEFConstruction = hnsw.DefaultEF

	// DefaultEFSearch is the default candidate list size while searching.
	DefaultEFSearch = 64
)

// Backend selects the graph implementation.
type Backend int

const (
	// BackendNative is the built-in HNSW graph.
	BackendNative Backend = iota
	// BackendCoder builds graphs with github.com/coder/hnsw.
	BackendCoder
)

func (b Backend) String() string {
	switch b {
	case BackendNative:
		return "native"
	case BackendCoder:
		return "coder"
	default:
		return fmt.Sprintf("Unknown(%d)", b)
	}
}

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector

	dimension      int
	m              int
	efConstruction int
	efSearch       int
	heuristic      bool
	seed           *int64
	backend        Backend

	resources           *resource.Controller
	memoryLimit         int64
	maxConcurrentBuilds int64
}

// Option configures a Store.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		m:                DefaultM,
		efConstruction:   DefaultEFConstruction,
		efSearch:         DefaultEFSearch,
		heuristic:        true,
		backend:          BackendNative,
	}
}

func (o *options) setDefaults() {
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.m < 2 {
		o.m = DefaultM
	}
	if o.efConstruction <= 0 {
		o.efConstruction = DefaultEFConstruction
	}
	if o.efSearch <= 0 {
		o.efSearch = DefaultEFSearch
	}
	if o.resources == nil {
		o.resources = resource.NewController(resource.Config{
			MemoryLimitBytes:    o.memoryLimit,
			MaxConcurrentBuilds: o.maxConcurrentBuilds,
		})
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := hnswstore.NewJSONLogger(slog.LevelInfo)
//	store, _ := hnswstore.New(hnswstore.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithDimension fixes the vector dimension. Builds with vectors of any other
// length are rejected. Without it, each build takes the length of its first vector.
func WithDimension(dim int) Option {
	return func(o *options) {
		o.dimension = dim
	}
}

// WithM sets the number of links per node (layer 0 keeps twice as many).
// Values below 2 fall back to DefaultM.
func WithM(m int) Option {
	return func(o *options) {
		o.m = m
	}
}

// WithEFConstruction sets the candidate list size used while building.
func WithEFConstruction(ef int) Option {
	return func(o *options) {
		o.efConstruction = ef
	}
}

// WithEFSearch sets the default candidate list size used while searching.
func WithEFSearch(ef int) Option {
	return func(o *options) {
		o.efSearch = ef
	}
}

// WithHeuristic toggles heuristic neighbour selection (default on).
func WithHeuristic(enabled bool) Option {
	return func(o *options) {
		o.heuristic = enabled
	}
}

// WithSeed makes graph construction deterministic.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = &seed
	}
}

// WithBackend selects the graph implementation.
func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithResourceController shares a resource controller between stores and batch
// sources. It takes precedence over WithMemoryLimit and WithMaxConcurrentBuilds.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithMemoryLimit caps the estimated memory of the published index plus any index
// under construction. Builds over budget fail with ErrResourceExhausted.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithMaxConcurrentBuilds bounds how many graphs are constructed at the same time
// (default 1). Extra builds wait for a slot.
func WithMaxConcurrentBuilds(n int64) Option {
	return func(o *options) {
		o.maxConcurrentBuilds = n
	}
}
