// Package distmat computes and serves the all-pairs gene distance matrix.
//
// The matrix is a flat, row-major array of N*N little-endian uint16 hop
// counts, where N is the size of the gene index the matrix was built
// against. Row i starts at byte offset i*N*2. The maximum uint16 value is
// reserved as the sentinel for "unreachable or beyond cutoff".
package distmat

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/openrepurpose/netprox/pkg/logger"
	"github.com/openrepurpose/netprox/pkg/ppi"
)

// Sentinel marks gene pairs that are unreachable within the cutoff.
const Sentinel uint16 = 0xFFFF

// entrySize is the fixed width of one matrix entry in bytes.
const entrySize = 2

// BuildParams configures a matrix build.
type BuildParams struct {
	// Cutoff bounds the BFS depth. Genes farther apart than Cutoff hops
	// receive the sentinel. Cutoff <= 0 disables the bound; expansion is
	// then limited by the graph diameter.
	Cutoff int

	// Workers is the number of concurrent row-range builders. Values
	// below 1 fall back to 1.
	Workers int

	// rowsPerTask is the size of the disjoint row range a single task
	// owns. Exposed for tests.
	rowsPerTask int
}

// Build runs a bounded breadth-first search from every gene in the graph's
// index domain and writes the resulting rows into a fixed-size binary file
// at path. Row offsets are deterministic, so tasks own disjoint row ranges
// and never contend; rebuilding from an unchanged graph yields a
// byte-identical file.
func Build(ctx context.Context, g *ppi.Graph, path string, params BuildParams) error {
	n := g.NodeCount()
	if n == 0 {
		return fmt.Errorf("cannot build distance matrix over an empty gene index")
	}

	workers := params.Workers
	if workers < 1 {
		workers = 1
	}
	rowsPerTask := params.rowsPerTask
	if rowsPerTask < 1 {
		rowsPerTask = 256
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create distance matrix file: %w", err)
	}
	defer f.Close()

	if err := f.Truncate(int64(n) * int64(n) * entrySize); err != nil {
		return fmt.Errorf("failed to size distance matrix file: %w", err)
	}

	logger.Info("Building distance matrix",
		"genes", n,
		"edges", g.EdgeCount(),
		"cutoff", params.Cutoff,
		"workers", workers,
	)

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for start := 0; start < n; start += rowsPerTask {
		end := min(start+rowsPerTask, n)
		eg.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			if err := buildRowRange(g, f, start, end, params.Cutoff); err != nil {
				return err
			}
			logger.Debug("Row range complete", "start", start, "end", end)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("distance matrix build failed: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to flush distance matrix: %w", err)
	}

	logger.Info("Distance matrix written", "path", path)
	return nil
}

// buildRowRange computes and writes rows [start, end). Each row is encoded
// into its own buffer and written at its fixed offset with WriteAt, which
// is safe for concurrent use on a single *os.File.
func buildRowRange(g *ppi.Graph, f *os.File, start, end, cutoff int) error {
	n := g.NodeCount()
	row := make([]uint16, n)
	buf := make([]byte, n*entrySize)
	queue := make([]int32, 0, n)

	for src := start; src < end; src++ {
		bfsRow(g, src, cutoff, row, &queue)
		for j, d := range row {
			binary.LittleEndian.PutUint16(buf[j*entrySize:], d)
		}
		off := int64(src) * int64(n) * entrySize
		if _, err := f.WriteAt(buf, off); err != nil {
			return fmt.Errorf("failed to write row %d: %w", src, err)
		}
	}
	return nil
}

// bfsRow fills row with hop distances from src, using the sentinel for
// everything not reached within cutoff. An isolated gene yields an
// all-sentinel row except the zero diagonal.
func bfsRow(g *ppi.Graph, src, cutoff int, row []uint16, queue *[]int32) {
	for i := range row {
		row[i] = Sentinel
	}
	row[src] = 0

	q := (*queue)[:0]
	q = append(q, int32(src))

	for head := 0; head < len(q); head++ {
		u := q[head]
		du := row[u]
		if cutoff > 0 && int(du) >= cutoff {
			continue
		}
		for _, v := range g.Neighbors(int(u)) {
			if row[v] != Sentinel {
				continue
			}
			row[v] = du + 1
			q = append(q, v)
		}
	}
	*queue = q
}
