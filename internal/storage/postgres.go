// Package storage persists scored pairs to Postgres so the query API can
// serve rankings without touching the chunk files. Chunk saves are
// idempotent upserts, which keeps chunk retries safe.
package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"math"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openrepurpose/netprox/internal/util"
	"github.com/openrepurpose/netprox/pkg/common"
	"github.com/openrepurpose/netprox/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Postgres is a result store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database and applies pending migrations.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if err := runMigrations(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func runMigrations(databaseURL string) error {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Pool exposes the underlying pool for components that need raw access,
// such as the run lease.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

const insertScoredPair = `
INSERT INTO scored_pairs (
	run_id, drug_id, disease_id, drug_name, disease_name,
	n_overlap, log1p_n_overlap, drug_deg, disease_deg,
	frac_drug_covered, frac_disease_covered, jaccard, overlapping_genes,
	mean_distance, ppi_proximity, n_moa_targets, drug_has_moa,
	combined_score, score
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
ON CONFLICT (run_id, drug_id, disease_id) DO UPDATE SET
	drug_name = EXCLUDED.drug_name,
	disease_name = EXCLUDED.disease_name,
	n_overlap = EXCLUDED.n_overlap,
	log1p_n_overlap = EXCLUDED.log1p_n_overlap,
	drug_deg = EXCLUDED.drug_deg,
	disease_deg = EXCLUDED.disease_deg,
	frac_drug_covered = EXCLUDED.frac_drug_covered,
	frac_disease_covered = EXCLUDED.frac_disease_covered,
	jaccard = EXCLUDED.jaccard,
	overlapping_genes = EXCLUDED.overlapping_genes,
	mean_distance = EXCLUDED.mean_distance,
	ppi_proximity = EXCLUDED.ppi_proximity,
	n_moa_targets = EXCLUDED.n_moa_targets,
	drug_has_moa = EXCLUDED.drug_has_moa,
	combined_score = EXCLUDED.combined_score,
	score = EXCLUDED.score`

// SaveScoredPairs upserts one chunk of results inside a single transaction.
func (p *Postgres) SaveScoredPairs(ctx context.Context, runID string, pairs []common.ScoredPair) error {
	if len(pairs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, sp := range pairs {
		// SQL doubles have no +Inf; disconnected pairs store NULL.
		var meanDist *float64
		if !math.IsInf(sp.MeanDistance, 1) {
			d := sp.MeanDistance
			meanDist = &d
		}
		batch.Queue(insertScoredPair,
			runID, sp.DrugID, sp.DiseaseID,
			util.SanitizePostgresText(sp.DrugName), util.SanitizePostgresText(sp.DiseaseName),
			sp.NOverlap, sp.Log1pNOverlap, sp.DrugDeg, sp.DiseaseDeg,
			sp.FracDrugCovered, sp.FracDiseaseCovered, sp.Jaccard,
			joinGenes(sp.OverlappingGenes),
			meanDist, sp.Features.PPIProximity,
			int(sp.Features.NMoATargets), int(sp.Features.DrugHasMoA),
			sp.CombinedScore, sp.Score,
		)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	res := tx.SendBatch(ctx, batch)
	for range pairs {
		if _, err := res.Exec(); err != nil {
			res.Close()
			return fmt.Errorf("failed to save scored pairs: %w", err)
		}
	}
	if err := res.Close(); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit scored pairs: %w", err)
	}

	logger.Debug("Saved scored pairs", "run_id", runID, "rows", len(pairs))
	return nil
}

const selectTopPairs = `
SELECT drug_id, disease_id, drug_name, disease_name,
	n_overlap, log1p_n_overlap, drug_deg, disease_deg,
	frac_drug_covered, frac_disease_covered, jaccard, overlapping_genes,
	mean_distance, ppi_proximity, n_moa_targets, drug_has_moa,
	combined_score, score
FROM scored_pairs
WHERE run_id = $1
ORDER BY score DESC, drug_id, disease_id
LIMIT $2`

// TopPairs returns the k best-scoring pairs of a run.
func (p *Postgres) TopPairs(ctx context.Context, runID string, k int) ([]common.ScoredPair, error) {
	rows, err := p.pool.Query(ctx, selectTopPairs, runID, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query scored pairs: %w", err)
	}
	defer rows.Close()

	var out []common.ScoredPair
	for rows.Next() {
		var sp common.ScoredPair
		var genes string
		var meanDist *float64
		var nMoA, hasMoA int

		err := rows.Scan(
			&sp.DrugID, &sp.DiseaseID, &sp.DrugName, &sp.DiseaseName,
			&sp.NOverlap, &sp.Log1pNOverlap, &sp.DrugDeg, &sp.DiseaseDeg,
			&sp.FracDrugCovered, &sp.FracDiseaseCovered, &sp.Jaccard, &genes,
			&meanDist, &sp.Features.PPIProximity, &nMoA, &hasMoA,
			&sp.CombinedScore, &sp.Score,
		)
		if err != nil {
			return nil, err
		}

		sp.MeanDistance = math.Inf(1)
		if meanDist != nil {
			sp.MeanDistance = *meanDist
		}
		sp.Features.NMoATargets = float64(nMoA)
		sp.Features.DrugHasMoA = float64(hasMoA)
		sp.Features.Log1pNOverlap = sp.Log1pNOverlap
		sp.Features.DrugDeg = float64(sp.DrugDeg)
		sp.Features.DiseaseDeg = float64(sp.DiseaseDeg)
		sp.Features.FracDrugCovered = sp.FracDrugCovered
		sp.Features.FracDiseaseCovered = sp.FracDiseaseCovered
		if genes != "" {
			sp.OverlappingGenes = splitGenes(genes)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}
