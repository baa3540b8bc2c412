// Package bootstrap wires the scoring pipeline from environment
// configuration. The score command and the queue worker load the exact same
// tables and artifacts, which is what lets a worker regenerate the candidate
// sequence a publisher enumerated.
package bootstrap

import (
	"context"
	"path/filepath"

	"github.com/openrepurpose/netprox/internal/storage"
	"github.com/openrepurpose/netprox/internal/util"
	"github.com/openrepurpose/netprox/pkg/candidates"
	"github.com/openrepurpose/netprox/pkg/distmat"
	"github.com/openrepurpose/netprox/pkg/features"
	"github.com/openrepurpose/netprox/pkg/geneindex"
	"github.com/openrepurpose/netprox/pkg/loader"
	"github.com/openrepurpose/netprox/pkg/logger"
	"github.com/openrepurpose/netprox/pkg/runner"
	"github.com/openrepurpose/netprox/pkg/scorer"
)

// Pipeline holds the scoring stages plus the resources that need closing.
type Pipeline struct {
	Runner *runner.Runner
	Matrix *distmat.Matrix
	Store  *storage.Postgres
}

// Close releases the memory map and the database pool.
func (p *Pipeline) Close() {
	if p.Matrix != nil {
		_ = p.Matrix.Close()
	}
	if p.Store != nil {
		p.Store.Close()
	}
}

// BuildPipeline loads the input tables from DATA_DIR, the gene index and
// distance matrix from ARTIFACT_DIR, the model from MODEL_PATH (falling back
// to the embedded frozen parameters), and connects to Postgres when
// DATABASE_URL is set. Any failure is fatal: a worker with a partial
// pipeline would silently score nothing.
func BuildPipeline(ctx context.Context) *Pipeline {
	dataDir := util.GetEnvString("DATA_DIR", "data")
	artifactDir := util.GetEnvString("ARTIFACT_DIR", "artifacts")

	dataset, err := loader.LoadDataset(dataDir)
	if err != nil {
		logger.Fatal("Could not load input tables", "dir", dataDir, "err", err)
	}

	idx, err := geneindex.Load(filepath.Join(artifactDir, "gene_index.csv"))
	if err != nil {
		logger.Fatal("Could not load gene index", "err", err)
	}

	matrix, err := distmat.Open(filepath.Join(artifactDir, "dist_matrix.u16"), idx)
	if err != nil {
		logger.Fatal("Could not open distance matrix", "err", err)
	}

	universe, stats, err := candidates.BuildUniverse(idx, dataset.DrugTargets, dataset.DiseaseGenes)
	if err != nil {
		logger.Fatal("Could not build candidate universe", "err", err)
	}
	logger.Info(
		"Resolved entity sets",
		"drugs", len(universe.Drugs()),
		"diseases", len(universe.Diseases()),
		"unknown_gene_rows", stats.UnknownGeneRows,
		"empty_drugs", stats.EmptyDrugs,
		"empty_diseases", stats.EmptyDiseases,
	)
	universe.AttachMoA(dataset.MoATargets)

	var model *scorer.Scorer
	if path := util.GetEnv("MODEL_PATH"); path != "" {
		model, err = scorer.Load(path)
		if err != nil {
			logger.Fatal("Could not load model parameters", "path", path, "err", err)
		}
	} else {
		model = scorer.Frozen()
	}
	logger.Info("Model ready", "version", model.Version())

	r := runner.New(universe, features.NewAssembler(matrix, universe), model).
		WithNames(dataset.DrugNames, dataset.DiseaseNames)

	p := &Pipeline{Runner: r, Matrix: matrix}

	if dbURL := util.GetEnv("DATABASE_URL"); dbURL != "" {
		store, err := storage.NewPostgres(ctx, dbURL)
		if err != nil {
			logger.Fatal("Unable to connect to database", "err", err)
		}
		p.Store = store
		p.Runner = r.WithSink(store)
		logger.Info("Persisting scored pairs to Postgres")
	}

	return p
}
