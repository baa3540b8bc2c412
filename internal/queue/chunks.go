package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rabbitmq/amqp091-go"

	"github.com/openrepurpose/netprox/internal/util"
	"github.com/openrepurpose/netprox/pkg/logger"
	"github.com/openrepurpose/netprox/pkg/runner"
)

const publishRetries = 3

// publishJob is swapped in tests.
var publishJob = publish

// ChunkJob identifies one chunk of a run by half-open offsets into the
// deterministic candidate sequence. Alpha and Beta travel with the job so
// every worker scores with the same weights.
type ChunkJob struct {
	RunID  string  `json:"run_id"`
	Chunk  int     `json:"chunk"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
	OutDir string  `json:"out_dir"`
	Alpha  float64 `json:"alpha"`
	Beta   float64 `json:"beta"`
}

// PublishRun splits a candidate count into chunk jobs and publishes them.
// Chunks already completed on disk are not filtered here; workers skip them
// idempotently, which keeps republishing a whole run safe.
func PublishRun(ch *amqp091.Channel, params runner.Params, totalPairs int) (int, error) {
	numChunks := runner.NumChunks(totalPairs, params.ChunkSize)

	for chunk := 0; chunk < numChunks; chunk++ {
		start := chunk * params.ChunkSize
		end := min(start+params.ChunkSize, totalPairs)

		job := ChunkJob{
			RunID:  params.RunID,
			Chunk:  chunk,
			Start:  start,
			End:    end,
			OutDir: params.OutDir,
			Alpha:  params.Alpha,
			Beta:   params.Beta,
		}
		body, err := json.Marshal(job)
		if err != nil {
			return chunk, err
		}
		err = util.RetryErr(publishRetries, func() error {
			return publishJob(ch, ScoreQueue, body)
		})
		if err != nil {
			return chunk, fmt.Errorf("failed to publish chunk %d: %w", chunk, err)
		}
	}

	logger.Info("Published chunk jobs",
		"run_id", params.RunID, "chunks", numChunks, "pairs", totalPairs)
	return numChunks, nil
}

// ProcessChunkMessage handles one delivery: decode the job, skip it if its
// chunk file already exists, otherwise score the named slice of the
// worker's candidate sequence.
func ProcessChunkMessage(ctx context.Context, r *runner.Runner, candidates int, msg string) error {
	job := new(ChunkJob)
	if err := json.Unmarshal([]byte(msg), job); err != nil {
		return fmt.Errorf("malformed chunk job: %w", err)
	}

	if job.Start < 0 || job.End < job.Start || job.End > candidates {
		return fmt.Errorf("chunk job %d of run %s: offsets [%d,%d) exceed %d candidates; worker inputs differ from publisher inputs",
			job.Chunk, job.RunID, job.Start, job.End, candidates)
	}

	path := runner.ChunkPath(job.OutDir, job.Chunk)
	if _, err := os.Stat(path); err == nil {
		logger.Debug("Chunk already complete", "run_id", job.RunID, "chunk", job.Chunk)
		return nil
	}
	if err := os.MkdirAll(job.OutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", job.OutDir, err)
	}

	params := runner.Params{
		RunID:  job.RunID,
		OutDir: job.OutDir,
		Alpha:  job.Alpha,
		Beta:   job.Beta,
	}
	pairs := r.CandidateRange(job.Start, job.End)
	if err := r.ProcessChunk(ctx, params, job.Chunk, pairs); err != nil {
		return err
	}

	logger.Info("Chunk scored", "run_id", job.RunID, "chunk", job.Chunk, "pairs", job.End-job.Start)
	return nil
}
