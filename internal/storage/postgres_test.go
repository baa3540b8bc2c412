package storage

import (
	"strings"
	"testing"
)

// Reused run ids replace whole rows, not just scores. Every inserted
// column outside the conflict key must be refreshed from EXCLUDED, or a
// rerun against changed inputs would keep stale feature values.
func TestInsertScoredPairUpsertsAllColumns(t *testing.T) {
	open := strings.Index(insertScoredPair, "(")
	end := strings.Index(insertScoredPair, ")")
	if open < 0 || end < open {
		t.Fatal("could not locate insert column list")
	}
	setAt := strings.Index(insertScoredPair, "DO UPDATE SET")
	if setAt < 0 {
		t.Fatal("could not locate DO UPDATE SET clause")
	}

	conflictKey := map[string]bool{
		"run_id":     true,
		"drug_id":    true,
		"disease_id": true,
	}

	updateSet := insertScoredPair[setAt:]
	for _, col := range strings.Split(insertScoredPair[open+1:end], ",") {
		col = strings.TrimSpace(col)
		if conflictKey[col] {
			continue
		}
		if !strings.Contains(updateSet, col+" = EXCLUDED."+col) {
			t.Fatalf("column %s is not refreshed on conflict", col)
		}
	}
}
