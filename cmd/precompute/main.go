package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/openrepurpose/netprox/internal/util"
	"github.com/openrepurpose/netprox/pkg/distmat"
	"github.com/openrepurpose/netprox/pkg/geneindex"
	"github.com/openrepurpose/netprox/pkg/loader"
	"github.com/openrepurpose/netprox/pkg/logger"
	"github.com/openrepurpose/netprox/pkg/logger/console"
	"github.com/openrepurpose/netprox/pkg/ppi"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Prefix: "precompute",
	})
	logger.Init(consoleLogger)

	dataDir := util.GetEnvString("DATA_DIR", "data")
	outDir := util.GetEnvString("ARTIFACT_DIR", "artifacts")
	cutoff := util.GetEnvInt("BFS_CUTOFF", 0)
	workers := util.GetEnvInt("BUILD_WORKERS", runtime.NumCPU())

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		logger.Fatal("Could not create artifact directory", "dir", outDir, "err", err)
	}

	dataset, err := loader.LoadDataset(dataDir)
	if err != nil {
		logger.Fatal("Could not load input tables", "dir", dataDir, "err", err)
	}

	idx := geneindex.Build(dataset.Universe())
	logger.Info("Built gene index", "genes", idx.Len())

	indexPath := filepath.Join(outDir, "gene_index.csv")
	if err := idx.Save(indexPath); err != nil {
		logger.Fatal("Could not write gene index", "path", indexPath, "err", err)
	}

	graph, stats := ppi.Build(idx, dataset.Interactions)
	logger.Info(
		"Built interaction graph",
		"nodes", graph.NodeCount(),
		"edges", graph.EdgeCount(),
		"self_loops", stats.SelfLoops,
		"duplicates", stats.Duplicates,
		"unknown_genes", stats.UnknownGene,
	)

	matrixPath := filepath.Join(outDir, "dist_matrix.u16")
	startTime := time.Now()
	err = distmat.Build(ctx, graph, matrixPath, distmat.BuildParams{
		Cutoff:  cutoff,
		Workers: workers,
	})
	if err != nil {
		logger.Fatal("Could not build distance matrix", "path", matrixPath, "err", err)
	}

	logger.Info(
		"Distance matrix written",
		"path", matrixPath,
		"genes", idx.Len(),
		"cutoff", cutoff,
		"duration", time.Since(startTime).Round(time.Millisecond).String(),
	)
}
