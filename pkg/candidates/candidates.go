// Package candidates builds the scoring universe: every (drug, disease)
// pair whose target set and disease gene set share at least one gene,
// together with the overlap statistics fixed at generation time.
//
// Enumeration order is deterministic (sorted drug ids crossed with sorted
// disease ids), which is what lets independent workers regenerate the same
// sequence and claim disjoint chunks of it without coordination.
package candidates

import (
	"fmt"
	"math"
	"sort"

	"github.com/openrepurpose/netprox/pkg/common"
	"github.com/openrepurpose/netprox/pkg/geneindex"
	"github.com/openrepurpose/netprox/pkg/logger"
)

// Universe holds the per-entity gene sets, resolved to gene index integers,
// from which candidate pairs are enumerated. It is immutable once built.
type Universe struct {
	idx *geneindex.Index

	drugs    []string
	diseases []string

	drugGenes    map[string][]int32
	diseaseGenes map[string][]int32

	moaCounts map[string]int
}

// UniverseStats counts association rows dropped while resolving gene
// identifiers, and entities left without a single resolvable gene.
type UniverseStats struct {
	UnknownGeneRows int
	EmptyDrugs      int
	EmptyDiseases   int
}

// BuildUniverse resolves the association tables against the gene index.
// Rows naming a gene outside the index are dropped and counted. An entity
// whose entire gene set failed to resolve is excluded with a warning. If
// either side ends up empty there is nothing to score and an error is
// returned.
func BuildUniverse(
	idx *geneindex.Index,
	targets []common.DrugTarget,
	diseaseGenes []common.DiseaseGene,
) (*Universe, UniverseStats, error) {
	stats := UniverseStats{}

	seenDrugs := make(map[string]struct{})
	seenDiseases := make(map[string]struct{})

	drugSets := make(map[string]map[int32]struct{})
	for _, dt := range targets {
		seenDrugs[dt.DrugID] = struct{}{}
		gi, err := idx.Lookup(dt.GeneID)
		if err != nil {
			stats.UnknownGeneRows++
			continue
		}
		set := drugSets[dt.DrugID]
		if set == nil {
			set = make(map[int32]struct{})
			drugSets[dt.DrugID] = set
		}
		set[int32(gi)] = struct{}{}
	}

	diseaseSets := make(map[string]map[int32]struct{})
	for _, dg := range diseaseGenes {
		seenDiseases[dg.DiseaseID] = struct{}{}
		gi, err := idx.Lookup(dg.GeneID)
		if err != nil {
			stats.UnknownGeneRows++
			continue
		}
		set := diseaseSets[dg.DiseaseID]
		if set == nil {
			set = make(map[int32]struct{})
			diseaseSets[dg.DiseaseID] = set
		}
		set[int32(gi)] = struct{}{}
	}

	u := &Universe{
		idx:          idx,
		drugGenes:    make(map[string][]int32, len(drugSets)),
		diseaseGenes: make(map[string][]int32, len(diseaseSets)),
	}

	for drugID, set := range drugSets {
		u.drugGenes[drugID] = sortedIndices(set)
		u.drugs = append(u.drugs, drugID)
	}
	for diseaseID, set := range diseaseSets {
		u.diseaseGenes[diseaseID] = sortedIndices(set)
		u.diseases = append(u.diseases, diseaseID)
	}
	sort.Strings(u.drugs)
	sort.Strings(u.diseases)

	stats.EmptyDrugs = len(seenDrugs) - len(u.drugs)
	stats.EmptyDiseases = len(seenDiseases) - len(u.diseases)

	if stats.UnknownGeneRows > 0 {
		logger.Warn("Dropped association rows with genes outside the index",
			"rows", stats.UnknownGeneRows)
	}
	if stats.EmptyDrugs > 0 || stats.EmptyDiseases > 0 {
		logger.Warn("Excluded entities with no resolvable genes",
			"drugs", stats.EmptyDrugs, "diseases", stats.EmptyDiseases)
	}
	if len(u.drugs) == 0 {
		return nil, stats, fmt.Errorf("no drug has a resolvable target set")
	}
	if len(u.diseases) == 0 {
		return nil, stats, fmt.Errorf("no disease has a resolvable gene set")
	}

	return u, stats, nil
}

// AttachMoA records per-drug curated mechanism-of-action target counts.
// The table is optional; without it the MoA features stay zero.
func (u *Universe) AttachMoA(moa []common.DrugTarget) {
	counts := make(map[string]map[string]struct{})
	for _, dt := range moa {
		set := counts[dt.DrugID]
		if set == nil {
			set = make(map[string]struct{})
			counts[dt.DrugID] = set
		}
		set[dt.GeneID] = struct{}{}
	}
	u.moaCounts = make(map[string]int, len(counts))
	for drugID, set := range counts {
		u.moaCounts[drugID] = len(set)
	}
}

// MoACount returns the number of curated MoA targets for a drug, 0 when
// no MoA table was attached or the drug is absent from it.
func (u *Universe) MoACount(drugID string) int {
	return u.moaCounts[drugID]
}

// Drugs returns the admitted drug identifiers in enumeration order.
func (u *Universe) Drugs() []string { return u.drugs }

// Diseases returns the admitted disease identifiers in enumeration order.
func (u *Universe) Diseases() []string { return u.diseases }

// DrugTargetSet returns the sorted gene indices targeted by a drug.
func (u *Universe) DrugTargetSet(drugID string) []int32 { return u.drugGenes[drugID] }

// DiseaseGeneSet returns the sorted gene indices associated with a disease.
func (u *Universe) DiseaseGeneSet(diseaseID string) []int32 { return u.diseaseGenes[diseaseID] }

// Pairs enumerates every admitted candidate pair in deterministic order,
// calling yield for each. Enumeration stops early if yield returns false.
// Pairs with an empty intersection are simply not part of the universe.
func (u *Universe) Pairs(yield func(common.CandidatePair) bool) {
	for _, drugID := range u.drugs {
		drugSet := u.drugGenes[drugID]
		for _, diseaseID := range u.diseases {
			diseaseSet := u.diseaseGenes[diseaseID]
			overlap := intersectSorted(drugSet, diseaseSet)
			if len(overlap) == 0 {
				continue
			}
			if !yield(u.makePair(drugID, diseaseID, drugSet, diseaseSet, overlap)) {
				return
			}
		}
	}
}

// Collect materializes the candidate sequence, stopping at maxPairs when
// maxPairs > 0. The cap is a safety bound for exploratory runs, not a
// sampling mechanism: it always keeps a prefix of the deterministic order.
func (u *Universe) Collect(maxPairs int) []common.CandidatePair {
	var out []common.CandidatePair
	u.Pairs(func(p common.CandidatePair) bool {
		out = append(out, p)
		return maxPairs <= 0 || len(out) < maxPairs
	})
	return out
}

func (u *Universe) makePair(
	drugID, diseaseID string,
	drugSet, diseaseSet, overlap []int32,
) common.CandidatePair {
	genes := make([]string, len(overlap))
	for i, gi := range overlap {
		genes[i] = u.idx.ID(int(gi))
	}
	sort.Strings(genes)

	n := len(overlap)
	union := len(drugSet) + len(diseaseSet) - n

	return common.CandidatePair{
		DrugID:    drugID,
		DiseaseID: diseaseID,

		NOverlap:           n,
		Log1pNOverlap:      math.Log1p(float64(n)),
		DrugDeg:            len(drugSet),
		DiseaseDeg:         len(diseaseSet),
		FracDrugCovered:    float64(n) / float64(len(drugSet)),
		FracDiseaseCovered: float64(n) / float64(len(diseaseSet)),
		Jaccard:            float64(n) / float64(union),
		OverlappingGenes:   genes,
	}
}

func sortedIndices(set map[int32]struct{}) []int32 {
	out := make([]int32, 0, len(set))
	for gi := range set {
		out = append(out, gi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// intersectSorted walks two ascending slices in lockstep.
func intersectSorted(a, b []int32) []int32 {
	var out []int32
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
