// Package features turns candidate pairs into the fixed-width vectors the
// frozen model consumes, combining the overlap statistics computed at
// generation time with the network proximity read from the distance matrix.
package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/openrepurpose/netprox/pkg/candidates"
	"github.com/openrepurpose/netprox/pkg/common"
	"github.com/openrepurpose/netprox/pkg/distmat"
)

// Assembler computes feature vectors against one matrix and one universe.
// It holds no mutable state and is safe for concurrent use.
type Assembler struct {
	matrix   *distmat.Matrix
	universe *candidates.Universe
}

// NewAssembler binds a read-only distance matrix to a candidate universe.
// Both must have been built against the same gene index.
func NewAssembler(matrix *distmat.Matrix, universe *candidates.Universe) *Assembler {
	return &Assembler{matrix: matrix, universe: universe}
}

// Assemble computes the feature vector for a candidate pair, returning the
// vector and the raw mean distance behind the proximity feature. The mean
// is +Inf when no (target, disease gene) combination is connected within
// the cutoff.
func (a *Assembler) Assemble(pair common.CandidatePair) (common.FeatureVector, float64) {
	meanDist := a.meanDistance(pair.DrugID, pair.DiseaseID)

	moa := a.universe.MoACount(pair.DrugID)
	hasMoA := 0.0
	if moa >= 1 {
		hasMoA = 1.0
	}

	return common.FeatureVector{
		Log1pNOverlap:      pair.Log1pNOverlap,
		DrugDeg:            float64(pair.DrugDeg),
		DiseaseDeg:         float64(pair.DiseaseDeg),
		FracDrugCovered:    pair.FracDrugCovered,
		FracDiseaseCovered: pair.FracDiseaseCovered,
		PPIProximity:       Proximity(meanDist),
		NMoATargets:        float64(moa),
		DrugHasMoA:         hasMoA,
	}, meanDist
}

// meanDistance averages the matrix distance over every (target, disease
// gene) combination, sentinel entries excluded. Overlap genes are kept:
// a shared gene contributes distance 0, which is exactly the dominant
// signal the transform rewards.
func (a *Assembler) meanDistance(drugID, diseaseID string) float64 {
	targets := a.universe.DrugTargetSet(drugID)
	diseaseGenes := a.universe.DiseaseGeneSet(diseaseID)

	dists := make([]float64, 0, len(targets)*len(diseaseGenes))
	for _, t := range targets {
		for _, g := range diseaseGenes {
			d := a.matrix.Distance(int(t), int(g))
			if d == distmat.Sentinel {
				continue
			}
			dists = append(dists, float64(d))
		}
	}
	if len(dists) == 0 {
		return math.Inf(1)
	}
	return stat.Mean(dists, nil)
}

// Proximity maps a mean hop distance to a bounded score: 1 at distance 0,
// decreasing monotonically, 0 for disconnected pairs.
func Proximity(meanDistance float64) float64 {
	if math.IsInf(meanDistance, 1) {
		return 0
	}
	return 1.0 / (1.0 + meanDistance)
}
