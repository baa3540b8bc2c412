package runner

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/openrepurpose/netprox/pkg/common"
)

// chunkColumns is the fixed schema of chunk files and the merged ranking.
var chunkColumns = []string{
	"drug_id",
	"disease_id",
	"drug_name",
	"disease_name",
	"n_overlap",
	"log1p_n_overlap",
	"drug_deg",
	"disease_deg",
	"frac_drug_covered",
	"frac_disease_covered",
	"jaccard",
	"overlapping_genes",
	"mean_distance",
	"ppi_proximity",
	"n_moa_targets",
	"drug_has_moa",
	"combined_score",
	"score",
}

func formatFloat(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(s string) (float64, error) {
	if s == "inf" {
		return math.Inf(1), nil
	}
	return strconv.ParseFloat(s, 64)
}

// WriteChunkCSV writes scored pairs in input order with the fixed schema.
func WriteChunkCSV(path string, scored []common.ScoredPair) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chunk file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(chunkColumns); err != nil {
		return err
	}
	for _, sp := range scored {
		rec := []string{
			sp.DrugID,
			sp.DiseaseID,
			sp.DrugName,
			sp.DiseaseName,
			strconv.Itoa(sp.NOverlap),
			formatFloat(sp.Log1pNOverlap),
			strconv.Itoa(sp.DrugDeg),
			strconv.Itoa(sp.DiseaseDeg),
			formatFloat(sp.FracDrugCovered),
			formatFloat(sp.FracDiseaseCovered),
			formatFloat(sp.Jaccard),
			strings.Join(sp.OverlappingGenes, ";"),
			formatFloat(sp.MeanDistance),
			formatFloat(sp.Features.PPIProximity),
			strconv.Itoa(int(sp.Features.NMoATargets)),
			strconv.Itoa(int(sp.Features.DrugHasMoA)),
			formatFloat(sp.CombinedScore),
			formatFloat(sp.Score),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// ReadChunkCSV reads a chunk file back, preserving row order.
func ReadChunkCSV(path string) ([]common.ScoredPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk file %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	out := make([]common.ScoredPair, 0, len(records)-1)
	for i, rec := range records[1:] {
		sp, err := parseScoredRow(rec)
		if err != nil {
			return nil, fmt.Errorf("chunk file %s row %d: %w", path, i+1, err)
		}
		out = append(out, sp)
	}
	return out, nil
}

func parseScoredRow(rec []string) (common.ScoredPair, error) {
	if len(rec) != len(chunkColumns) {
		return common.ScoredPair{}, fmt.Errorf("expected %d columns, got %d", len(chunkColumns), len(rec))
	}

	var sp common.ScoredPair
	var err error

	sp.DrugID = rec[0]
	sp.DiseaseID = rec[1]
	sp.DrugName = rec[2]
	sp.DiseaseName = rec[3]

	if sp.NOverlap, err = strconv.Atoi(rec[4]); err != nil {
		return sp, err
	}
	if sp.Log1pNOverlap, err = parseFloat(rec[5]); err != nil {
		return sp, err
	}
	if sp.DrugDeg, err = strconv.Atoi(rec[6]); err != nil {
		return sp, err
	}
	if sp.DiseaseDeg, err = strconv.Atoi(rec[7]); err != nil {
		return sp, err
	}
	if sp.FracDrugCovered, err = parseFloat(rec[8]); err != nil {
		return sp, err
	}
	if sp.FracDiseaseCovered, err = parseFloat(rec[9]); err != nil {
		return sp, err
	}
	if sp.Jaccard, err = parseFloat(rec[10]); err != nil {
		return sp, err
	}
	if rec[11] != "" {
		sp.OverlappingGenes = strings.Split(rec[11], ";")
	}
	if sp.MeanDistance, err = parseFloat(rec[12]); err != nil {
		return sp, err
	}

	sp.Features = common.FeatureVector{
		Log1pNOverlap:      sp.Log1pNOverlap,
		DrugDeg:            float64(sp.DrugDeg),
		DiseaseDeg:         float64(sp.DiseaseDeg),
		FracDrugCovered:    sp.FracDrugCovered,
		FracDiseaseCovered: sp.FracDiseaseCovered,
	}
	if sp.Features.PPIProximity, err = parseFloat(rec[13]); err != nil {
		return sp, err
	}
	if sp.Features.NMoATargets, err = parseFloat(rec[14]); err != nil {
		return sp, err
	}
	if sp.Features.DrugHasMoA, err = parseFloat(rec[15]); err != nil {
		return sp, err
	}
	if sp.CombinedScore, err = parseFloat(rec[16]); err != nil {
		return sp, err
	}
	if sp.Score, err = parseFloat(rec[17]); err != nil {
		return sp, err
	}
	return sp, nil
}

// MergeRanked reads every chunk file in outDir and returns the rows sorted
// by model score, best first, ties broken by identifiers so the ranking is
// reproducible. topK > 0 truncates the result. This is the separate final
// pass over accumulated output; it is not part of chunk processing.
func MergeRanked(outDir string, topK int) ([]common.ScoredPair, error) {
	paths, err := filepath.Glob(filepath.Join(outDir, "chunk_*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var all []common.ScoredPair
	for _, path := range paths {
		rows, err := ReadChunkCSV(path)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		if all[i].DrugID != all[j].DrugID {
			return all[i].DrugID < all[j].DrugID
		}
		return all[i].DiseaseID < all[j].DiseaseID
	})

	if topK > 0 && len(all) > topK {
		all = all[:topK]
	}
	return all, nil
}

// WriteRankedCSV writes a merged ranking with the same schema as chunks.
func WriteRankedCSV(path string, ranked []common.ScoredPair) error {
	return WriteChunkCSV(path, ranked)
}
