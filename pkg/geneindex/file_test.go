package geneindex

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRejectsNonContiguousPositions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gene_index.csv")
	content := "gene_id,index\nG1,0\nG2,2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-contiguous positions")
	}
}

func TestLoadWithoutHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gene_index.csv")
	content := "G1,0\nG2,1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	idx, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("unexpected size: got %d, want 2", idx.Len())
	}
	if idx.ID(1) != "G2" {
		t.Fatalf("unexpected id: got %s, want G2", idx.ID(1))
	}
}
