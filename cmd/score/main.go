package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/openrepurpose/netprox/internal/bootstrap"
	"github.com/openrepurpose/netprox/internal/queue"
	"github.com/openrepurpose/netprox/internal/util"
	"github.com/openrepurpose/netprox/pkg/leaselock"
	"github.com/openrepurpose/netprox/pkg/logger"
	"github.com/openrepurpose/netprox/pkg/logger/console"
	"github.com/openrepurpose/netprox/pkg/runner"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Prefix: "score",
	})
	logger.Init(consoleLogger)

	runID := util.GetEnv("RUN_ID")
	if runID == "" {
		id, err := gonanoid.New()
		if err != nil {
			logger.Fatal("Could not generate run id", "err", err)
		}
		runID = id
	}

	params := runner.Params{
		RunID:      runID,
		OutDir:     util.GetEnvString("OUT_DIR", filepath.Join("runs", runID)),
		ChunkSize:  util.GetEnvInt("CHUNK_SIZE", 10000),
		MaxPairs:   util.GetEnvInt("MAX_PAIRS", 0),
		Workers:    util.GetEnvInt("SCORE_WORKERS", runtime.NumCPU()),
		Alpha:      util.GetEnvFloat("SCORE_ALPHA", 0.5),
		Beta:       util.GetEnvFloat("SCORE_BETA", 0.5),
		MaxRetries: util.GetEnvInt("CHUNK_MAX_RETRIES", 3),
	}

	if err := os.MkdirAll(params.OutDir, 0o755); err != nil {
		logger.Fatal("Could not create output directory", "dir", params.OutDir, "err", err)
	}

	pipeline := bootstrap.BuildPipeline(ctx)
	defer pipeline.Close()

	total := pipeline.Runner.Prepare(params.MaxPairs)
	numChunks := runner.NumChunks(total, params.ChunkSize)
	logger.Info("Candidate universe ready", "run_id", runID, "pairs", total, "chunks", numChunks)

	run := func(ctx context.Context) error {
		// Publish mode hands the chunks to queue workers instead of scoring
		// locally. The run id and pair offsets are enough for a worker to
		// regenerate the same candidate sequence.
		if util.GetEnvBool("PUBLISH_ONLY", false) {
			publishRun(params, total)
			return nil
		}
		return scoreRun(ctx, pipeline, params)
	}

	// When a database is configured, hold a lease on the run id so two
	// processes started with the same RUN_ID cannot double-publish or
	// interleave sink writes.
	if pipeline.Store != nil {
		locks := leaselock.New(pipeline.Store.Pool())
		err := locks.WithLease(ctx, "run:"+runID, leaselock.Options{TTL: time.Minute}, run)
		if errors.Is(err, leaselock.ErrBusy) {
			logger.Fatal("Run is already in progress elsewhere", "run_id", runID)
		}
		if err != nil {
			logger.Fatal("Scoring run failed", "run_id", runID, "err", err)
		}
		return
	}

	if err := run(ctx); err != nil {
		logger.Fatal("Scoring run failed", "run_id", runID, "err", err)
	}
}

func scoreRun(ctx context.Context, pipeline *bootstrap.Pipeline, params runner.Params) error {
	startTime := time.Now()
	summary, err := pipeline.Runner.Run(ctx, params)
	if err != nil {
		return fmt.Errorf("failed chunks %v: %w", summary.FailedChunks, err)
	}
	logger.Info(
		"Scoring run complete",
		"run_id", params.RunID,
		"chunks", summary.Chunks,
		"resumed", summary.Resumed,
		"duration", time.Since(startTime).Round(time.Millisecond).String(),
	)

	topK := util.GetEnvInt("TOP_K", 0)
	ranked, err := runner.MergeRanked(params.OutDir, topK)
	if err != nil {
		return fmt.Errorf("could not merge chunk outputs: %w", err)
	}

	rankedPath := filepath.Join(params.OutDir, "ranked.csv")
	if err := runner.WriteRankedCSV(rankedPath, ranked); err != nil {
		return fmt.Errorf("could not write ranked output: %w", err)
	}
	logger.Info("Ranked output written", "path", rankedPath, "pairs", len(ranked))
	return nil
}

func publishRun(params runner.Params, total int) {
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	published, err := queue.PublishRun(ch, params, total)
	if err != nil {
		logger.Fatal("Failed to publish chunk jobs", "err", err)
	}
	logger.Info("Published chunk jobs", "run_id", params.RunID, "chunks", published)
}
