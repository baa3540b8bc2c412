package candidates

import (
	"math"
	"testing"

	"github.com/openrepurpose/netprox/pkg/common"
	"github.com/openrepurpose/netprox/pkg/geneindex"
)

func buildTestUniverse(t *testing.T) *Universe {
	t.Helper()
	idx := geneindex.Build([]string{"A", "B", "C", "D"})
	u, _, err := BuildUniverse(idx,
		[]common.DrugTarget{
			{DrugID: "D1", GeneID: "A"},
			{DrugID: "D1", GeneID: "B"},
			{DrugID: "D2", GeneID: "D"},
		},
		[]common.DiseaseGene{
			{DiseaseID: "C1", GeneID: "B"},
			{DiseaseID: "C1", GeneID: "C"},
			{DiseaseID: "C2", GeneID: "D"},
		},
	)
	if err != nil {
		t.Fatalf("build universe: %v", err)
	}
	return u
}

func TestOverlapStatistics(t *testing.T) {
	u := buildTestUniverse(t)

	pairs := u.Collect(0)
	var found *common.CandidatePair
	for i := range pairs {
		if pairs[i].DrugID == "D1" && pairs[i].DiseaseID == "C1" {
			found = &pairs[i]
		}
	}
	if found == nil {
		t.Fatal("pair (D1, C1) missing from universe")
	}

	// D1 targets {A,B}, C1 genes {B,C}: one shared gene out of three total.
	if found.NOverlap != 1 {
		t.Fatalf("unexpected overlap: got %d, want 1", found.NOverlap)
	}
	if found.DrugDeg != 2 || found.DiseaseDeg != 2 {
		t.Fatalf("unexpected degrees: drug %d, disease %d", found.DrugDeg, found.DiseaseDeg)
	}
	if found.FracDrugCovered != 0.5 || found.FracDiseaseCovered != 0.5 {
		t.Fatalf("unexpected coverage: drug %v, disease %v", found.FracDrugCovered, found.FracDiseaseCovered)
	}
	if got, want := found.Jaccard, 1.0/3.0; math.Abs(got-want) > 1e-12 {
		t.Fatalf("unexpected jaccard: got %v, want %v", got, want)
	}
	if got := math.Abs(found.Log1pNOverlap - math.Log1p(1)); got > 1e-12 {
		t.Fatalf("unexpected log1p overlap: off by %v", got)
	}
	if len(found.OverlappingGenes) != 1 || found.OverlappingGenes[0] != "B" {
		t.Fatalf("unexpected overlapping genes: %v", found.OverlappingGenes)
	}
}

func TestPairsExcludeEmptyOverlap(t *testing.T) {
	u := buildTestUniverse(t)

	pairs := u.Collect(0)
	// Only (D1,C1) and (D2,C2) share genes; (D1,C2) and (D2,C1) do not.
	if len(pairs) != 2 {
		t.Fatalf("unexpected pair count: got %d, want 2", len(pairs))
	}
	for _, p := range pairs {
		if p.NOverlap < 1 {
			t.Fatalf("pair %s/%s admitted with zero overlap", p.DrugID, p.DiseaseID)
		}
	}
}

func TestCollectIsDeterministic(t *testing.T) {
	u1 := buildTestUniverse(t)
	u2 := buildTestUniverse(t)

	p1 := u1.Collect(0)
	p2 := u2.Collect(0)
	if len(p1) != len(p2) {
		t.Fatalf("sequence lengths differ: %d vs %d", len(p1), len(p2))
	}
	for i := range p1 {
		if p1[i].DrugID != p2[i].DrugID || p1[i].DiseaseID != p2[i].DiseaseID {
			t.Fatalf("order differs at %d: %s/%s vs %s/%s",
				i, p1[i].DrugID, p1[i].DiseaseID, p2[i].DrugID, p2[i].DiseaseID)
		}
	}
}

func TestCollectMaxPairsKeepsPrefix(t *testing.T) {
	u := buildTestUniverse(t)

	all := u.Collect(0)
	capped := u.Collect(1)
	if len(capped) != 1 {
		t.Fatalf("unexpected capped length: got %d, want 1", len(capped))
	}
	if capped[0].DrugID != all[0].DrugID || capped[0].DiseaseID != all[0].DiseaseID {
		t.Fatal("cap did not keep the sequence prefix")
	}
}

func TestBuildUniverseDropsUnknownGenes(t *testing.T) {
	idx := geneindex.Build([]string{"A"})
	u, stats, err := BuildUniverse(idx,
		[]common.DrugTarget{
			{DrugID: "D1", GeneID: "A"},
			{DrugID: "D1", GeneID: "ZZZ"},
			{DrugID: "D2", GeneID: "ZZZ"},
		},
		[]common.DiseaseGene{
			{DiseaseID: "C1", GeneID: "A"},
		},
	)
	if err != nil {
		t.Fatalf("build universe: %v", err)
	}
	if stats.UnknownGeneRows != 2 {
		t.Fatalf("unexpected unknown rows: got %d, want 2", stats.UnknownGeneRows)
	}
	// D2 lost its only gene and must be excluded entirely.
	if stats.EmptyDrugs != 1 {
		t.Fatalf("unexpected empty drugs: got %d, want 1", stats.EmptyDrugs)
	}
	if len(u.Drugs()) != 1 || u.Drugs()[0] != "D1" {
		t.Fatalf("unexpected drug set: %v", u.Drugs())
	}
}

func TestBuildUniverseFailsWhenSideEmpty(t *testing.T) {
	idx := geneindex.Build([]string{"A"})
	_, _, err := BuildUniverse(idx,
		[]common.DrugTarget{{DrugID: "D1", GeneID: "ZZZ"}},
		[]common.DiseaseGene{{DiseaseID: "C1", GeneID: "A"}},
	)
	if err == nil {
		t.Fatal("expected error when no drug resolves")
	}
}

func TestMoACounts(t *testing.T) {
	u := buildTestUniverse(t)

	if got := u.MoACount("D1"); got != 0 {
		t.Fatalf("MoA count before attach: got %d, want 0", got)
	}

	u.AttachMoA([]common.DrugTarget{
		{DrugID: "D1", GeneID: "A"},
		{DrugID: "D1", GeneID: "A"}, // duplicate gene counts once
		{DrugID: "D1", GeneID: "B"},
	})

	if got := u.MoACount("D1"); got != 2 {
		t.Fatalf("unexpected MoA count: got %d, want 2", got)
	}
	if got := u.MoACount("D2"); got != 0 {
		t.Fatalf("unexpected MoA count for absent drug: got %d, want 0", got)
	}
}
