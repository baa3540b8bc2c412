package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/openrepurpose/netprox/pkg/common"
	"github.com/openrepurpose/netprox/pkg/logger"
)

// Dataset bundles every input table of one pipeline run. MoATargets and
// the name lookups are optional; missing files leave them empty.
type Dataset struct {
	Interactions []common.Interaction
	DrugTargets  []common.DrugTarget
	DiseaseGenes []common.DiseaseGene

	MoATargets []common.DrugTarget

	DrugNames    map[string]string
	DiseaseNames map[string]string
}

// LoadDataset reads the standard file layout of a data directory:
//
//	ppi.csv           gene1_id,gene2_id[,weight]   (required)
//	drug_targets.csv  drug_id,gene_id              (required)
//	gene_disease.csv  disease_id,gene_id           (required)
//	moa_targets.csv   drug_id,gene_id              (optional)
//	drugs.csv         drug_id,drug_name            (optional)
//	diseases.csv      disease_id,disease_name      (optional)
func LoadDataset(dataDir string) (*Dataset, error) {
	ds := &Dataset{}

	var err error
	var stats Stats

	ds.Interactions, stats, err = LoadInteractions(filepath.Join(dataDir, "ppi.csv"))
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded interactions", "rows", stats.Rows, "skipped", stats.Skipped)

	ds.DrugTargets, stats, err = LoadDrugTargets(filepath.Join(dataDir, "drug_targets.csv"))
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded drug targets", "rows", stats.Rows, "skipped", stats.Skipped)

	ds.DiseaseGenes, stats, err = LoadDiseaseGenes(filepath.Join(dataDir, "gene_disease.csv"))
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded disease genes", "rows", stats.Rows, "skipped", stats.Skipped)

	moaPath := filepath.Join(dataDir, "moa_targets.csv")
	if fileExists(moaPath) {
		ds.MoATargets, stats, err = LoadMoATargets(moaPath)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded MoA targets", "rows", stats.Rows, "skipped", stats.Skipped)
	} else {
		logger.Info("No MoA table found, MoA features default to zero")
	}

	drugsPath := filepath.Join(dataDir, "drugs.csv")
	if fileExists(drugsPath) {
		ds.DrugNames, _, err = LoadNameLookup(drugsPath, "drug_id", "drug_name")
		if err != nil {
			return nil, err
		}
	}

	diseasesPath := filepath.Join(dataDir, "diseases.csv")
	if fileExists(diseasesPath) {
		ds.DiseaseNames, _, err = LoadNameLookup(diseasesPath, "disease_id", "disease_name")
		if err != nil {
			return nil, err
		}
	}

	if len(ds.DrugTargets) == 0 {
		return nil, fmt.Errorf("drug target table in %s is empty", dataDir)
	}
	if len(ds.DiseaseGenes) == 0 {
		return nil, fmt.Errorf("disease gene table in %s is empty", dataDir)
	}

	return ds, nil
}

// Universe returns the gene universe of the dataset.
func (ds *Dataset) Universe() []string {
	return GeneUniverse(ds.Interactions, ds.DrugTargets, ds.DiseaseGenes)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
