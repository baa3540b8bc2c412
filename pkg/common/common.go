package common

// Interaction represents one gene-gene interaction record from a filtered
// network table. Weight is the confidence retained by the upstream filter;
// it is carried through but plays no role in distance computation, which is
// purely topological.
type Interaction struct {
	Gene1  string  `json:"gene1_id"`
	Gene2  string  `json:"gene2_id"`
	Weight float64 `json:"weight"`
}

// DrugTarget associates a drug with one of its target genes. Rows are
// assumed to be pre-filtered by binding evidence upstream.
type DrugTarget struct {
	DrugID string `json:"drug_id"`
	GeneID string `json:"gene_id"`
}

// DiseaseGene associates a disease with one of its linked genes. Rows are
// assumed to be pre-filtered by association confidence upstream.
type DiseaseGene struct {
	DiseaseID string `json:"disease_id"`
	GeneID    string `json:"gene_id"`
}

// CandidatePair is a (drug, disease) pair admitted into the scoring universe
// because the drug's target set and the disease's gene set intersect.
// The overlap statistics are fixed at generation time.
type CandidatePair struct {
	DrugID    string `json:"drug_id"`
	DiseaseID string `json:"disease_id"`

	NOverlap           int     `json:"n_overlap"`
	Log1pNOverlap      float64 `json:"log1p_n_overlap"`
	DrugDeg            int     `json:"drug_deg"`
	DiseaseDeg         int     `json:"disease_deg"`
	FracDrugCovered    float64 `json:"frac_drug_covered"`
	FracDiseaseCovered float64 `json:"frac_disease_covered"`
	Jaccard            float64 `json:"jaccard"`

	// OverlappingGenes lists the shared gene identifiers, sorted, joined
	// with ";" in tabular output.
	OverlappingGenes []string `json:"overlapping_genes"`
}

// FeatureVector is the fixed-schema numeric record handed to the frozen
// scorer. Field order here is documentation only; the scorer consumes
// the slice produced by Values, whose order must match the model's
// feature list.
type FeatureVector struct {
	Log1pNOverlap      float64 `json:"log1p_n_overlap"`
	DrugDeg            float64 `json:"drug_deg"`
	DiseaseDeg         float64 `json:"disease_deg"`
	FracDrugCovered    float64 `json:"frac_drug_covered"`
	FracDiseaseCovered float64 `json:"frac_disease_covered"`
	PPIProximity       float64 `json:"ppi_proximity"`
	NMoATargets        float64 `json:"n_moa_targets"`
	DrugHasMoA         float64 `json:"drug_has_moa"`
}

// Values returns the feature values in the canonical model order.
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.Log1pNOverlap,
		f.DrugDeg,
		f.DiseaseDeg,
		f.FracDrugCovered,
		f.FracDiseaseCovered,
		f.PPIProximity,
		f.NMoATargets,
		f.DrugHasMoA,
	}
}

// ScoredPair is the terminal output unit: a candidate pair, its features,
// and the frozen model's ranking score. CombinedScore is the auxiliary
// alpha/beta heuristic kept for comparison with older runs.
type ScoredPair struct {
	CandidatePair

	Features FeatureVector `json:"features"`

	MeanDistance  float64 `json:"mean_distance"`
	CombinedScore float64 `json:"combined_score"`
	Score         float64 `json:"score"`

	// DrugName and DiseaseName are filled from the optional lookup
	// tables when available, otherwise empty.
	DrugName    string `json:"drug_name,omitempty"`
	DiseaseName string `json:"disease_name,omitempty"`
}
