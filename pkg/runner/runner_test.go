package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/openrepurpose/netprox/pkg/candidates"
	"github.com/openrepurpose/netprox/pkg/common"
	"github.com/openrepurpose/netprox/pkg/distmat"
	"github.com/openrepurpose/netprox/pkg/features"
	"github.com/openrepurpose/netprox/pkg/geneindex"
	"github.com/openrepurpose/netprox/pkg/ppi"
	"github.com/openrepurpose/netprox/pkg/scorer"
)

// testRunner builds a ten-pair universe: drugs D0..D4 all target gene X,
// disease C0 carries {X} and disease C1 carries {X,Y} with an X-Y edge, so
// pairs against C1 score differently from pairs against C0.
func testRunner(t *testing.T) *Runner {
	t.Helper()

	idx := geneindex.Build([]string{"X", "Y"})
	g, _ := ppi.Build(idx, []common.Interaction{{Gene1: "X", Gene2: "Y", Weight: 1}})

	matrixPath := filepath.Join(t.TempDir(), "dist.u16")
	if err := distmat.Build(context.Background(), g, matrixPath, distmat.BuildParams{}); err != nil {
		t.Fatalf("build matrix: %v", err)
	}
	m, err := distmat.Open(matrixPath, idx)
	if err != nil {
		t.Fatalf("open matrix: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	targets := []common.DrugTarget{
		{DrugID: "D0", GeneID: "X"},
		{DrugID: "D1", GeneID: "X"},
		{DrugID: "D2", GeneID: "X"},
		{DrugID: "D3", GeneID: "X"},
		{DrugID: "D4", GeneID: "X"},
	}
	diseaseGenes := []common.DiseaseGene{
		{DiseaseID: "C0", GeneID: "X"},
		{DiseaseID: "C1", GeneID: "X"},
		{DiseaseID: "C1", GeneID: "Y"},
	}

	u, _, err := candidates.BuildUniverse(idx, targets, diseaseGenes)
	if err != nil {
		t.Fatalf("build universe: %v", err)
	}

	return New(u, features.NewAssembler(m, u), scorer.Frozen()).
		WithNames(map[string]string{"D0": "Drug Zero"}, nil)
}

type memorySink struct {
	mu    sync.Mutex
	runID string
	rows  []common.ScoredPair
}

func (s *memorySink) SaveScoredPairs(_ context.Context, runID string, pairs []common.ScoredPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = runID
	s.rows = append(s.rows, pairs...)
	return nil
}

func TestRunChunksMatchSingleChunkRun(t *testing.T) {
	r := testRunner(t)

	chunkedDir := t.TempDir()
	singleDir := t.TempDir()

	chunked, err := r.Run(context.Background(), Params{
		RunID: "chunked", OutDir: chunkedDir, ChunkSize: 3, Workers: 2,
		Alpha: 0.5, Beta: 0.5,
	})
	if err != nil {
		t.Fatalf("chunked run: %v", err)
	}
	if chunked.Pairs != 10 {
		t.Fatalf("unexpected pair count: got %d, want 10", chunked.Pairs)
	}
	if chunked.Chunks != 4 {
		t.Fatalf("unexpected chunk count: got %d, want 4", chunked.Chunks)
	}

	if _, err := r.Run(context.Background(), Params{
		RunID: "single", OutDir: singleDir, ChunkSize: 100, Workers: 1,
		Alpha: 0.5, Beta: 0.5,
	}); err != nil {
		t.Fatalf("single-chunk run: %v", err)
	}

	var concatenated []common.ScoredPair
	for chunk := 0; chunk < 4; chunk++ {
		rows, err := ReadChunkCSV(ChunkPath(chunkedDir, chunk))
		if err != nil {
			t.Fatalf("read chunk %d: %v", chunk, err)
		}
		concatenated = append(concatenated, rows...)
	}
	single, err := ReadChunkCSV(ChunkPath(singleDir, 0))
	if err != nil {
		t.Fatalf("read single chunk: %v", err)
	}

	if len(concatenated) != len(single) {
		t.Fatalf("row counts differ: %d vs %d", len(concatenated), len(single))
	}
	for i := range single {
		a, b := concatenated[i], single[i]
		if a.DrugID != b.DrugID || a.DiseaseID != b.DiseaseID || a.Score != b.Score {
			t.Fatalf("row %d differs: %s/%s %v vs %s/%s %v",
				i, a.DrugID, a.DiseaseID, a.Score, b.DrugID, b.DiseaseID, b.Score)
		}
	}
}

func TestRunChunkSizes(t *testing.T) {
	r := testRunner(t)
	dir := t.TempDir()

	if _, err := r.Run(context.Background(), Params{
		RunID: "sizes", OutDir: dir, ChunkSize: 3,
	}); err != nil {
		t.Fatalf("run: %v", err)
	}

	wantSizes := []int{3, 3, 3, 1}
	for chunk, want := range wantSizes {
		rows, err := ReadChunkCSV(ChunkPath(dir, chunk))
		if err != nil {
			t.Fatalf("read chunk %d: %v", chunk, err)
		}
		if len(rows) != want {
			t.Fatalf("chunk %d: got %d rows, want %d", chunk, len(rows), want)
		}
	}
}

func TestRunResumesCompletedChunks(t *testing.T) {
	r := testRunner(t)
	dir := t.TempDir()
	params := Params{RunID: "resume", OutDir: dir, ChunkSize: 3}

	if _, err := r.Run(context.Background(), params); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// A full rerun skips every chunk.
	summary, err := r.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Resumed != 4 {
		t.Fatalf("unexpected resumed count: got %d, want 4", summary.Resumed)
	}

	// Removing one chunk file makes exactly that chunk recompute.
	if err := os.Remove(ChunkPath(dir, 2)); err != nil {
		t.Fatal(err)
	}
	summary, err = r.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if summary.Resumed != 3 {
		t.Fatalf("unexpected resumed count: got %d, want 3", summary.Resumed)
	}
	if _, err := os.Stat(ChunkPath(dir, 2)); err != nil {
		t.Fatalf("chunk 2 not rebuilt: %v", err)
	}
}

func TestRunForwardsToSink(t *testing.T) {
	r := testRunner(t)
	sink := &memorySink{}
	r = r.WithSink(sink)

	if _, err := r.Run(context.Background(), Params{
		RunID: "sinked", OutDir: t.TempDir(), ChunkSize: 4,
	}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if sink.runID != "sinked" {
		t.Fatalf("unexpected sink run id: got %q", sink.runID)
	}
	if len(sink.rows) != 10 {
		t.Fatalf("unexpected sink rows: got %d, want 10", len(sink.rows))
	}
}

func TestRunMaxPairsCap(t *testing.T) {
	r := testRunner(t)

	summary, err := r.Run(context.Background(), Params{
		RunID: "capped", OutDir: t.TempDir(), ChunkSize: 3, MaxPairs: 5,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Pairs != 5 {
		t.Fatalf("unexpected pair count: got %d, want 5", summary.Pairs)
	}
	if summary.Chunks != 2 {
		t.Fatalf("unexpected chunk count: got %d, want 2", summary.Chunks)
	}
}

func TestCandidateRange(t *testing.T) {
	r := testRunner(t)

	total := r.Prepare(0)
	if total != 10 {
		t.Fatalf("unexpected total: got %d, want 10", total)
	}

	all := r.CandidateRange(0, total)
	slice := r.CandidateRange(3, 6)
	for i, p := range slice {
		if p.DrugID != all[3+i].DrugID || p.DiseaseID != all[3+i].DiseaseID {
			t.Fatalf("range slice diverges at %d", i)
		}
	}
}

func TestScoreChunkPreservesOrderAndNames(t *testing.T) {
	r := testRunner(t)

	pairs := r.CandidateRange(0, r.Prepare(0))
	scored, err := r.ScoreChunk(pairs, 0.5, 0.5)
	if err != nil {
		t.Fatalf("score chunk: %v", err)
	}
	if len(scored) != len(pairs) {
		t.Fatalf("row count changed: got %d, want %d", len(scored), len(pairs))
	}
	for i := range pairs {
		if scored[i].DrugID != pairs[i].DrugID || scored[i].DiseaseID != pairs[i].DiseaseID {
			t.Fatalf("order changed at %d", i)
		}
		if scored[i].Score <= 0 || scored[i].Score >= 1 {
			t.Fatalf("score outside (0,1): %v", scored[i].Score)
		}
	}

	// Only D0 has a display name in the lookup.
	for _, sp := range scored {
		want := ""
		if sp.DrugID == "D0" {
			want = "Drug Zero"
		}
		if sp.DrugName != want {
			t.Fatalf("unexpected drug name for %s: got %q, want %q", sp.DrugID, sp.DrugName, want)
		}
	}
}

func TestNumChunks(t *testing.T) {
	tests := []struct {
		name      string
		pairs     int
		chunkSize int
		want      int
	}{
		{"exact multiple", 9, 3, 3},
		{"remainder", 10, 3, 4},
		{"single chunk", 2, 100, 1},
		{"no pairs", 0, 10, 0},
		{"invalid chunk size", 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NumChunks(tt.pairs, tt.chunkSize); got != tt.want {
				t.Fatalf("unexpected chunk count: got %d, want %d", got, tt.want)
			}
		})
	}
}
