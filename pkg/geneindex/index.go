package geneindex

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownGene is returned when an identifier is absent from the index.
var ErrUnknownGene = errors.New("unknown gene")

// Index is a deterministic bijection between gene identifiers and the
// row/column integers of a distance matrix. It is built once per gene
// universe and must not change for the lifetime of any matrix file built
// against it.
type Index struct {
	ids      []string
	position map[string]int
}

// Build constructs an index over the given gene universe. Duplicates are
// collapsed and the remaining identifiers are sorted, so the same universe
// always yields the same index regardless of input order.
func Build(universe []string) *Index {
	seen := make(map[string]struct{}, len(universe))
	ids := make([]string, 0, len(universe))
	for _, id := range universe {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	position := make(map[string]int, len(ids))
	for i, id := range ids {
		position[id] = i
	}

	return &Index{ids: ids, position: position}
}

// Lookup returns the matrix row/column for a gene identifier.
func (x *Index) Lookup(geneID string) (int, error) {
	i, ok := x.position[geneID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownGene, geneID)
	}
	return i, nil
}

// Contains reports whether the identifier is part of the index.
func (x *Index) Contains(geneID string) bool {
	_, ok := x.position[geneID]
	return ok
}

// ID returns the gene identifier at a given position.
func (x *Index) ID(i int) string {
	return x.ids[i]
}

// IDs returns the identifiers in index order. The returned slice is shared
// and must not be modified.
func (x *Index) IDs() []string {
	return x.ids
}

// Len returns the size of the gene universe.
func (x *Index) Len() int {
	return len(x.ids)
}
