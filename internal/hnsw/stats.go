package hnsw

// Stats returns statistics about the HNSW graph.
func (h *HNSW) Stats() Stats {
	levels := make([]LevelStats, h.maxLevel+1)
	connectionNodes := make([]int, h.maxLevel+1)

	for i := range levels {
		levels[i].Level = i
	}

	for _, n := range h.nodes {
		levels[n.layer].Nodes++

		// Loop through each connection
		for level := n.layer; level >= 0; level-- {
			if total := len(n.connections[level]); total > 0 {
				levels[level].Connections += total
				connectionNodes[level]++
			}
		}
	}

	for i := range levels {
		if connectionNodes[i] > 0 {
			levels[i].AvgConnections = float64(levels[i].Connections) / float64(connectionNodes[i])
		}
	}

	return Stats{
		Nodes:      len(h.nodes),
		Dimension:  h.dimension,
		M:          h.mmax,
		M0:         h.mmax0,
		EF:         h.opts.EF,
		Heuristic:  h.opts.Heuristic,
		EntryPoint: h.ep,
		MaxLevel:   h.maxLevel,
		Levels:     levels,
	}
}
