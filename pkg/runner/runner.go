// Package runner drives the scoring pipeline: candidate generation, feature
// assembly, and frozen-model scoring over fixed-size chunks. Chunks are
// independent units of work with no cross-chunk state, written atomically,
// so an interrupted run resumes by reprocessing only the chunks that never
// completed.
package runner

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/openrepurpose/netprox/internal/util"
	"github.com/openrepurpose/netprox/pkg/candidates"
	"github.com/openrepurpose/netprox/pkg/common"
	"github.com/openrepurpose/netprox/pkg/features"
	"github.com/openrepurpose/netprox/pkg/logger"
	"github.com/openrepurpose/netprox/pkg/scorer"
)

// Sink receives completed chunks for persistence beyond the chunk files,
// e.g. the Postgres results table behind the query API.
type Sink interface {
	SaveScoredPairs(ctx context.Context, runID string, pairs []common.ScoredPair) error
}

// Params are the tunables of a batch run, supplied by the command layer.
type Params struct {
	RunID     string
	OutDir    string
	ChunkSize int
	// MaxPairs caps the candidate universe as a safety bound; <= 0 means
	// no cap.
	MaxPairs int
	Workers  int
	// Alpha and Beta weight the auxiliary combined score.
	Alpha float64
	Beta  float64
	// MaxRetries bounds per-chunk retry before a chunk is reported failed.
	MaxRetries int
}

// Runner wires the read-only pipeline stages together. All fields are
// immutable after construction, so one Runner serves all workers of a run.
type Runner struct {
	universe  *candidates.Universe
	assembler *features.Assembler
	model     *scorer.Scorer

	drugNames    map[string]string
	diseaseNames map[string]string

	sink Sink

	// pairs caches the materialized candidate sequence after Prepare.
	pairs []common.CandidatePair
}

// New builds a runner over a candidate universe, a feature assembler, and a
// frozen model. The name lookups and sink are optional.
func New(universe *candidates.Universe, assembler *features.Assembler, model *scorer.Scorer) *Runner {
	return &Runner{
		universe:  universe,
		assembler: assembler,
		model:     model,
	}
}

// WithNames attaches drug and disease display-name lookups.
func (r *Runner) WithNames(drugNames, diseaseNames map[string]string) *Runner {
	r.drugNames = drugNames
	r.diseaseNames = diseaseNames
	return r
}

// WithSink attaches a persistence sink invoked once per completed chunk.
func (r *Runner) WithSink(sink Sink) *Runner {
	r.sink = sink
	return r
}

// Prepare materializes and caches the deterministic candidate sequence,
// capped at maxPairs when maxPairs > 0, and returns its length. Every
// process of a distributed run calls this with identical inputs and gets
// the identical sequence, which is what makes chunk offsets meaningful
// across processes. The first call wins; later calls return the cached
// length.
func (r *Runner) Prepare(maxPairs int) int {
	if r.pairs == nil {
		r.pairs = r.universe.Collect(maxPairs)
	}
	return len(r.pairs)
}

// CandidateRange returns the cached sequence slice [start, end). Prepare
// must have been called first.
func (r *Runner) CandidateRange(start, end int) []common.CandidatePair {
	return r.pairs[start:end]
}

// Summary reports what a run did.
type Summary struct {
	Pairs        int
	Chunks       int
	Resumed      int
	FailedChunks []int
}

// ScoreChunk scores one slice of candidate pairs. Output order matches
// input order. It touches no shared mutable state and is the unit of work
// both the local pool and the queue workers execute.
func (r *Runner) ScoreChunk(pairs []common.CandidatePair, alpha, beta float64) ([]common.ScoredPair, error) {
	out := make([]common.ScoredPair, 0, len(pairs))
	for _, pair := range pairs {
		vec, meanDist := r.assembler.Assemble(pair)

		score, err := r.model.Score(vec.Values())
		if err != nil {
			return nil, fmt.Errorf("scoring %s/%s: %w", pair.DrugID, pair.DiseaseID, err)
		}

		out = append(out, common.ScoredPair{
			CandidatePair: pair,
			Features:      vec,
			MeanDistance:  meanDist,
			CombinedScore: scorer.Combined(pair.NOverlap, vec.PPIProximity, alpha, beta),
			Score:         score,
			DrugName:      r.drugNames[pair.DrugID],
			DiseaseName:   r.diseaseNames[pair.DiseaseID],
		})
	}
	return out, nil
}

// Run executes the full chunked pipeline. Chunk files already present in
// the output directory are treated as completed work from a previous
// attempt and skipped. Failed chunks are retried, then reported; sibling
// chunks keep running.
func (r *Runner) Run(ctx context.Context, params Params) (Summary, error) {
	if params.ChunkSize <= 0 {
		params.ChunkSize = 10000
	}
	if params.Workers < 1 {
		params.Workers = 1
	}
	if params.MaxRetries < 1 {
		params.MaxRetries = 1
	}
	if err := os.MkdirAll(params.OutDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	total := r.Prepare(params.MaxPairs)
	pairs := r.pairs
	numChunks := NumChunks(total, params.ChunkSize)

	logger.Info("Starting batch run",
		"run_id", params.RunID,
		"pairs", len(pairs),
		"chunk_size", params.ChunkSize,
		"chunks", numChunks,
		"workers", params.Workers,
	)

	summary := Summary{Pairs: len(pairs), Chunks: numChunks}
	prog := newProgress(numChunks)
	var mu sync.Mutex

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(params.Workers)

	for chunk := 0; chunk < numChunks; chunk++ {
		start := chunk * params.ChunkSize
		end := min(start+params.ChunkSize, len(pairs))

		eg.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			path := ChunkPath(params.OutDir, chunk)
			if _, err := os.Stat(path); err == nil {
				mu.Lock()
				summary.Resumed++
				mu.Unlock()
				logger.Debug("Skipping completed chunk", "chunk", chunk)
				prog.Mark(params.RunID)
				return nil
			}

			err := util.RetryErrWithContext(gCtx, params.MaxRetries, func(cctx context.Context) error {
				return r.ProcessChunk(cctx, params, chunk, pairs[start:end])
			})
			if err != nil {
				logger.Error("Chunk failed", "chunk", chunk, "err", err)
				mu.Lock()
				summary.FailedChunks = append(summary.FailedChunks, chunk)
				mu.Unlock()
				return nil
			}
			prog.Mark(params.RunID)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return summary, err
	}
	if len(summary.FailedChunks) > 0 {
		return summary, fmt.Errorf("%d of %d chunks failed; rerun to retry them",
			len(summary.FailedChunks), summary.Chunks)
	}

	logger.Info("Batch run complete",
		"run_id", params.RunID,
		"chunks", summary.Chunks,
		"resumed", summary.Resumed,
	)
	return summary, nil
}

// ProcessChunk scores one chunk, writes its file atomically, and forwards
// the rows to the sink. It is called by the local pool and by queue
// workers; only chunk index and pair slice distinguish the two.
func (r *Runner) ProcessChunk(ctx context.Context, params Params, chunk int, pairs []common.CandidatePair) error {
	scored, err := r.ScoreChunk(pairs, params.Alpha, params.Beta)
	if err != nil {
		return err
	}

	if err := writeChunkAtomic(ChunkPath(params.OutDir, chunk), scored); err != nil {
		return err
	}

	if r.sink != nil {
		if err := r.sink.SaveScoredPairs(ctx, params.RunID, scored); err != nil {
			return fmt.Errorf("sink rejected chunk %d: %w", chunk, err)
		}
	}

	logger.Debug("Chunk complete", "chunk", chunk, "pairs", len(scored))
	return nil
}

// ChunkPath returns the output file of a chunk. Chunk files are the resume
// markers: their presence means the chunk completed.
func ChunkPath(outDir string, chunk int) string {
	return filepath.Join(outDir, fmt.Sprintf("chunk_%06d.csv", chunk))
}

func writeChunkAtomic(path string, scored []common.ScoredPair) error {
	tmp := path + ".tmp"
	if err := WriteChunkCSV(tmp, scored); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// NumChunks returns how many chunks a pair count splits into.
func NumChunks(pairs, chunkSize int) int {
	if chunkSize <= 0 || pairs <= 0 {
		return 0
	}
	return int(math.Ceil(float64(pairs) / float64(chunkSize)))
}
