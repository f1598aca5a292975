package hnswstore

import (
	"time"

	"github.com/hupe1980/hnswstore/internal/hnsw"
)

// Stats describes the current index.
type Stats struct {
	Loaded     bool
	Generation uint64
	Backend    Backend

	Points      int
	DistinctIDs uint64
	Dimension   int

	BuiltAt       time.Time
	BuildDuration time.Duration
	MemoryBytes   int64

	Graph GraphStats
}

// GraphStats describes the graph structure.
type GraphStats struct {
	M          int
	M0         int
	EF         int
	Heuristic  bool
	EntryPoint uint32
	MaxLevel   int
	Levels     []LevelStats
}

// LevelStats describes one graph layer.
type LevelStats struct {
	Level          int
	Nodes          int
	Connections    int
	AvgConnections float64
}

func newGraphStats(hs hnsw.Stats) GraphStats {
	gs := GraphStats{
		M:          hs.M,
		M0:         hs.M0,
		EF:         hs.EF,
		Heuristic:  hs.Heuristic,
		EntryPoint: hs.EntryPoint,
		MaxLevel:   hs.MaxLevel,
	}

	if len(hs.Levels) > 0 {
		gs.Levels = make([]LevelStats, len(hs.Levels))
		for i, l := range hs.Levels {
			gs.Levels[i] = LevelStats(l)
		}
	}

	return gs
}
