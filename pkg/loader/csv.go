// Package loader reads the filtered tabular inputs of the pipeline: the
// interaction network, the drug-target and disease-gene association tables,
// the optional mechanism-of-action table, and the optional display-name
// lookups. Thresholding happens upstream; the loader only validates shape,
// trims whitespace, and counts malformed rows.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/openrepurpose/netprox/pkg/common"
	"github.com/openrepurpose/netprox/pkg/logger"
)

// Stats counts the rows of one table that survived loading and the rows
// skipped as malformed. Skipped rows are a warning, not an error; the
// caller decides whether the surviving set is usable.
type Stats struct {
	Rows    int
	Skipped int
}

type table struct {
	header  map[string]int
	records [][]string
}

func readTable(path string, required ...string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = false

	head, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	header := make(map[string]int, len(head))
	for i, name := range head {
		header[strings.TrimSpace(name)] = i
	}
	for _, col := range required {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("table %s is missing required column %q", path, col)
		}
	}

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		records = append(records, rec)
	}

	return &table{header: header, records: records}, nil
}

func (t *table) field(rec []string, col string) string {
	i := t.header[col]
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// LoadInteractions reads a gene-gene interaction table with columns
// gene1_id, gene2_id and an optional weight column. Rows with a missing
// endpoint or an unparsable weight are skipped and counted.
func LoadInteractions(path string) ([]common.Interaction, Stats, error) {
	t, err := readTable(path, "gene1_id", "gene2_id")
	if err != nil {
		return nil, Stats{}, err
	}
	_, hasWeight := t.header["weight"]

	out := make([]common.Interaction, 0, len(t.records))
	stats := Stats{}
	for _, rec := range t.records {
		g1 := t.field(rec, "gene1_id")
		g2 := t.field(rec, "gene2_id")
		if g1 == "" || g2 == "" {
			stats.Skipped++
			continue
		}
		weight := 1.0
		if hasWeight {
			raw := t.field(rec, "weight")
			if raw != "" {
				w, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					stats.Skipped++
					continue
				}
				weight = w
			}
		}
		out = append(out, common.Interaction{Gene1: g1, Gene2: g2, Weight: weight})
	}
	stats.Rows = len(out)

	if stats.Skipped > 0 {
		logger.Warn("Skipped malformed interaction rows", "path", path, "skipped", stats.Skipped)
	}
	return out, stats, nil
}

// LoadDrugTargets reads a drug-target association table with columns
// drug_id, gene_id.
func LoadDrugTargets(path string) ([]common.DrugTarget, Stats, error) {
	pairs, stats, err := loadPairs(path, "drug_id", "gene_id")
	if err != nil {
		return nil, Stats{}, err
	}
	out := make([]common.DrugTarget, len(pairs))
	for i, p := range pairs {
		out[i] = common.DrugTarget{DrugID: p[0], GeneID: p[1]}
	}
	return out, stats, nil
}

// LoadDiseaseGenes reads a gene-disease association table with columns
// gene_id, disease_id.
func LoadDiseaseGenes(path string) ([]common.DiseaseGene, Stats, error) {
	pairs, stats, err := loadPairs(path, "disease_id", "gene_id")
	if err != nil {
		return nil, Stats{}, err
	}
	out := make([]common.DiseaseGene, len(pairs))
	for i, p := range pairs {
		out[i] = common.DiseaseGene{DiseaseID: p[0], GeneID: p[1]}
	}
	return out, stats, nil
}

// LoadMoATargets reads the curated mechanism-of-action drug-gene table.
// The schema matches the drug-target table (drug_id, gene_id).
func LoadMoATargets(path string) ([]common.DrugTarget, Stats, error) {
	return LoadDrugTargets(path)
}

// LoadNameLookup reads a two-column identifier-to-name table, e.g.
// (drug_id, drug_name) or (disease_id, disease_name).
func LoadNameLookup(path, idCol, nameCol string) (map[string]string, Stats, error) {
	t, err := readTable(path, idCol, nameCol)
	if err != nil {
		return nil, Stats{}, err
	}

	out := make(map[string]string, len(t.records))
	stats := Stats{}
	for _, rec := range t.records {
		id := t.field(rec, idCol)
		if id == "" {
			stats.Skipped++
			continue
		}
		out[id] = t.field(rec, nameCol)
	}
	stats.Rows = len(out)

	if stats.Skipped > 0 {
		logger.Warn("Skipped malformed lookup rows", "path", path, "skipped", stats.Skipped)
	}
	return out, stats, nil
}

func loadPairs(path, colA, colB string) ([][2]string, Stats, error) {
	t, err := readTable(path, colA, colB)
	if err != nil {
		return nil, Stats{}, err
	}

	out := make([][2]string, 0, len(t.records))
	stats := Stats{}
	for _, rec := range t.records {
		a := t.field(rec, colA)
		b := t.field(rec, colB)
		if a == "" || b == "" {
			stats.Skipped++
			continue
		}
		out = append(out, [2]string{a, b})
	}
	stats.Rows = len(out)

	if stats.Skipped > 0 {
		logger.Warn("Skipped malformed association rows", "path", path, "skipped", stats.Skipped)
	}
	return out, stats, nil
}

// GeneUniverse collects every gene identifier appearing in the interaction,
// drug-target, or disease-gene tables. The result feeds geneindex.Build,
// which dedupes and orders it.
func GeneUniverse(
	interactions []common.Interaction,
	targets []common.DrugTarget,
	diseaseGenes []common.DiseaseGene,
) []string {
	out := make([]string, 0, 2*len(interactions)+len(targets)+len(diseaseGenes))
	for _, inter := range interactions {
		out = append(out, inter.Gene1, inter.Gene2)
	}
	for _, dt := range targets {
		out = append(out, dt.GeneID)
	}
	for _, dg := range diseaseGenes {
		out = append(out, dg.GeneID)
	}
	return out
}
