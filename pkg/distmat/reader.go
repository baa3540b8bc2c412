package distmat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/openrepurpose/netprox/pkg/geneindex"
)

// ErrCorruptMatrix is returned when a matrix file does not match the
// dimensions implied by its gene index.
var ErrCorruptMatrix = errors.New("corrupt distance matrix")

// Matrix is a read-only, memory-mapped view of a distance matrix file.
// Lookups compute a fixed offset into the mapping, so a Matrix can be
// shared across any number of concurrent readers without locking.
type Matrix struct {
	n    int
	f    *os.File
	data mmap.MMap
}

// Open maps a matrix file built against the given gene index. The file
// size must equal N*N*2 for the index's N; any mismatch means the file and
// the index disagree about the gene universe and every offset would be
// wrong, so Open fails with ErrCorruptMatrix before a single lookup.
func Open(path string, idx *geneindex.Index) (*Matrix, error) {
	n := idx.Len()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open distance matrix: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat distance matrix: %w", err)
	}
	expected := int64(n) * int64(n) * entrySize
	if info.Size() != expected {
		f.Close()
		return nil, fmt.Errorf("%w: file %s holds %d bytes, gene index of %d genes requires %d",
			ErrCorruptMatrix, path, info.Size(), n, expected)
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap distance matrix: %w", err)
	}

	return &Matrix{n: n, f: f, data: data}, nil
}

// N returns the matrix dimension.
func (m *Matrix) N() int {
	return m.n
}

// Distance returns the hop distance between genes i and j, or the sentinel
// when the pair is unreachable within the build cutoff.
func (m *Matrix) Distance(i, j int) uint16 {
	off := (int64(i)*int64(m.n) + int64(j)) * entrySize
	return binary.LittleEndian.Uint16(m.data[off:])
}

// Reachable reports whether the pair was connected within the cutoff.
func (m *Matrix) Reachable(i, j int) bool {
	return m.Distance(i, j) != Sentinel
}

// Close unmaps the file. No lookups may happen after Close.
func (m *Matrix) Close() error {
	if err := m.data.Unmap(); err != nil {
		m.f.Close()
		return err
	}
	return m.f.Close()
}
