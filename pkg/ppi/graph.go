package ppi

import (
	"slices"

	"github.com/openrepurpose/netprox/pkg/common"
	"github.com/openrepurpose/netprox/pkg/geneindex"
	"github.com/openrepurpose/netprox/pkg/logger"
)

type edgeKey struct {
	a, b int32
}

func keyFor(i, j int32) edgeKey {
	if i > j {
		i, j = j, i
	}
	return edgeKey{a: i, b: j}
}

// Graph is an undirected, deduplicated gene-gene interaction network over
// the integer domain of a gene index. It is built once and read-only
// afterwards.
type Graph struct {
	n       int
	adj     [][]int32
	weights map[edgeKey]float64
}

// BuildStats counts the records discarded while building a graph.
type BuildStats struct {
	Edges       int
	SelfLoops   int
	UnknownGene int
	Duplicates  int
}

// Build assembles a graph from filtered interaction records. Both endpoints
// must resolve through the index; records with an unknown endpoint are
// skipped and counted. Self-loops are dropped with a warning. A repeated
// unordered pair keeps the last observed weight rather than accumulating,
// since edge weight is not used in distance computation.
func Build(idx *geneindex.Index, interactions []common.Interaction) (*Graph, BuildStats) {
	g := &Graph{
		n:       idx.Len(),
		weights: make(map[edgeKey]float64, len(interactions)),
	}
	stats := BuildStats{}

	for _, inter := range interactions {
		if inter.Gene1 == inter.Gene2 {
			logger.Warn("Dropping self-loop interaction", "gene", inter.Gene1)
			stats.SelfLoops++
			continue
		}
		i, err := idx.Lookup(inter.Gene1)
		if err != nil {
			stats.UnknownGene++
			continue
		}
		j, err := idx.Lookup(inter.Gene2)
		if err != nil {
			stats.UnknownGene++
			continue
		}

		key := keyFor(int32(i), int32(j))
		if _, seen := g.weights[key]; seen {
			stats.Duplicates++
		}
		g.weights[key] = inter.Weight
	}

	g.adj = make([][]int32, g.n)
	for key := range g.weights {
		g.adj[key.a] = append(g.adj[key.a], key.b)
		g.adj[key.b] = append(g.adj[key.b], key.a)
	}
	for i := range g.adj {
		slices.Sort(g.adj[i])
	}

	stats.Edges = len(g.weights)
	return g, stats
}

// NodeCount returns the size of the index domain, including isolated genes.
func (g *Graph) NodeCount() int {
	return g.n
}

// EdgeCount returns the number of distinct undirected edges.
func (g *Graph) EdgeCount() int {
	return len(g.weights)
}

// Neighbors returns the adjacency list of a gene. The slice is shared and
// must not be modified.
func (g *Graph) Neighbors(i int) []int32 {
	return g.adj[i]
}

// Degree returns the number of distinct interaction partners of a gene.
func (g *Graph) Degree(i int) int {
	return len(g.adj[i])
}

// Weight returns the retained weight of the edge between two genes, if any.
func (g *Graph) Weight(i, j int) (float64, bool) {
	w, ok := g.weights[keyFor(int32(i), int32(j))]
	return w, ok
}
