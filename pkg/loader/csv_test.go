package loader

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadInteractions(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantRows    int
		wantSkipped int
	}{
		{
			name:     "with weights",
			content:  "gene1_id,gene2_id,weight\nA,B,0.9\nB,C,0.7\n",
			wantRows: 2,
		},
		{
			name:     "without weight column",
			content:  "gene1_id,gene2_id\nA,B\n",
			wantRows: 1,
		},
		{
			name:        "missing endpoint skipped",
			content:     "gene1_id,gene2_id\nA,\n,B\nA,B\n",
			wantRows:    1,
			wantSkipped: 2,
		},
		{
			name:        "bad weight skipped",
			content:     "gene1_id,gene2_id,weight\nA,B,abc\nB,C,0.5\n",
			wantRows:    1,
			wantSkipped: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "ppi.csv", tt.content)
			rows, stats, err := LoadInteractions(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(rows) != tt.wantRows || stats.Rows != tt.wantRows {
				t.Fatalf("unexpected rows: got %d, want %d", len(rows), tt.wantRows)
			}
			if stats.Skipped != tt.wantSkipped {
				t.Fatalf("unexpected skipped: got %d, want %d", stats.Skipped, tt.wantSkipped)
			}
		})
	}
}

func TestLoadInteractionsDefaultWeight(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ppi.csv", "gene1_id,gene2_id\nA,B\n")
	rows, _, err := LoadInteractions(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rows[0].Weight != 1.0 {
		t.Fatalf("unexpected default weight: got %v, want 1.0", rows[0].Weight)
	}
}

func TestLoadInteractionsMissingColumn(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ppi.csv", "gene1_id,weight\nA,0.4\n")
	if _, _, err := LoadInteractions(path); err == nil {
		t.Fatal("expected error for missing column")
	}
}

func TestLoadDrugTargets(t *testing.T) {
	path := writeFile(t, t.TempDir(), "drug_targets.csv", "drug_id,gene_id\nD1,G1\nD1,G2\n,G3\n")
	rows, stats, err := LoadDrugTargets(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("unexpected rows: got %d, want 2", len(rows))
	}
	if stats.Skipped != 1 {
		t.Fatalf("unexpected skipped: got %d, want 1", stats.Skipped)
	}
	if rows[0].DrugID != "D1" || rows[0].GeneID != "G1" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
}

func TestLoadNameLookup(t *testing.T) {
	path := writeFile(t, t.TempDir(), "drugs.csv", "drug_id,drug_name\nD1,Aspirin\nD2,Metformin\n")
	names, _, err := LoadNameLookup(path, "drug_id", "drug_name")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if names["D1"] != "Aspirin" || names["D2"] != "Metformin" {
		t.Fatalf("unexpected lookup: %v", names)
	}
}

func TestLoadDataset(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ppi.csv", "gene1_id,gene2_id\nA,B\n")
	writeFile(t, dir, "drug_targets.csv", "drug_id,gene_id\nD1,A\n")
	writeFile(t, dir, "gene_disease.csv", "disease_id,gene_id\nC1,B\n")

	ds, err := LoadDataset(dir)
	if err != nil {
		t.Fatalf("load dataset: %v", err)
	}
	if len(ds.Interactions) != 1 || len(ds.DrugTargets) != 1 || len(ds.DiseaseGenes) != 1 {
		t.Fatalf("unexpected dataset sizes: %+v", ds)
	}
	if len(ds.MoATargets) != 0 {
		t.Fatal("MoA targets should be empty without a table")
	}

	universe := ds.Universe()
	if len(universe) != 4 {
		t.Fatalf("unexpected universe size: got %d, want 4", len(universe))
	}
}

func TestLoadDatasetWithOptionalTables(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ppi.csv", "gene1_id,gene2_id\nA,B\n")
	writeFile(t, dir, "drug_targets.csv", "drug_id,gene_id\nD1,A\n")
	writeFile(t, dir, "gene_disease.csv", "disease_id,gene_id\nC1,B\n")
	writeFile(t, dir, "moa_targets.csv", "drug_id,gene_id\nD1,A\n")
	writeFile(t, dir, "drugs.csv", "drug_id,drug_name\nD1,Aspirin\n")
	writeFile(t, dir, "diseases.csv", "disease_id,disease_name\nC1,Asthma\n")

	ds, err := LoadDataset(dir)
	if err != nil {
		t.Fatalf("load dataset: %v", err)
	}
	if len(ds.MoATargets) != 1 {
		t.Fatalf("unexpected MoA rows: got %d, want 1", len(ds.MoATargets))
	}
	if ds.DrugNames["D1"] != "Aspirin" {
		t.Fatalf("unexpected drug name: %v", ds.DrugNames)
	}
	if ds.DiseaseNames["C1"] != "Asthma" {
		t.Fatalf("unexpected disease name: %v", ds.DiseaseNames)
	}
}

func TestLoadDatasetMissingRequiredTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ppi.csv", "gene1_id,gene2_id\nA,B\n")
	// no drug_targets.csv
	if _, err := LoadDataset(dir); err == nil {
		t.Fatal("expected error for missing drug target table")
	}
}
