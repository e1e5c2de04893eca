package svd

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/jiangfeng1124/singular/lib/sparse"
)

// A dense random matrix has distinct singular values with probability
// one, so a full-rank request must be satisfied in full.
func TestDecomposesFullRankDenseMatrix(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	m := sparse.NewMatrix(5, 4)
	for c := 0; c < 4; c++ {
		for r := 0; r < 5; r++ {
			m.Set(r, c, rng.NormFloat64())
		}
	}
	solver := &TruncatedSVD{K: 4}
	result, err := solver.Solve(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Rank != 4 {
		t.Errorf("expected full rank 4 but got %d", result.Rank)
	}
	for i := 1; i < result.Rank; i++ {
		if result.Values[i] > result.Values[i-1] {
			t.Errorf("singular values not descending: %v", result.Values)
		}
	}
}

// An identity matrix has no eigengap at all; the solver cannot separate
// the values and must report a rank below the requested one.
func TestBreaksWithoutEigengaps(t *testing.T) {
	m := sparse.NewMatrix(4, 4)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1.0)
	}
	solver := &TruncatedSVD{K: 4}
	result, err := solver.Solve(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Rank == 4 {
		t.Errorf("expected achieved rank below 4 on a gapless spectrum, got %d", result.Rank)
	}
}

// A tiny eigengap is not enough either.
func TestBreaksEvenWithANonzeroEigengap(t *testing.T) {
	m := sparse.NewMatrix(4, 4)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1.0)
	}
	m.Set(0, 0, 1.0000001)
	solver := &TruncatedSVD{K: 4}
	result, err := solver.Solve(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Rank == 4 {
		t.Errorf("expected achieved rank below 4 with a 1e-7 eigengap, got %d", result.Rank)
	}
}

// With real separation between the values, the full request succeeds.
func TestDoesNotBreakWithEigengaps(t *testing.T) {
	m := sparse.NewMatrix(4, 4)
	value := 4.0
	for i := 0; i < 4; i++ {
		m.Set(i, i, value)
		value--
	}
	solver := &TruncatedSVD{K: 4}
	result, err := solver.Solve(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Rank != 4 {
		t.Fatalf("expected full rank 4 but got %d", result.Rank)
	}
	expected := []float64{4.0, 3.0, 2.0, 1.0}
	for i, want := range expected {
		if math.Abs(result.Values[i]-want) > 1e-8 {
			t.Errorf("expected singular value %f at position %d but got %f", want, i, result.Values[i])
		}
	}
}

func emptyColumnFixture() *sparse.Matrix {
	//     0  0  1  0
	//     0  0  0  0
	//     2  0  3  0
	//     0  0  4  0
	m := sparse.NewMatrix(4, 4)
	m.Set(2, 0, 2.0)
	m.Set(0, 2, 1.0)
	m.Set(2, 2, 3.0)
	m.Set(3, 2, 4.0)
	return m
}

func TestSparseMatrixWithEmptyColumns(t *testing.T) {
	solver := &TruncatedSVD{K: 2}
	result, err := solver.Solve(emptyColumnFixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Rank != 2 {
		t.Fatalf("expected rank 2 but got %d", result.Rank)
	}
	if math.Abs(result.Values[0]-5.2469) > 1e-4 {
		t.Errorf("expected leading singular value 5.2469 but got %f", result.Values[0])
	}
	if math.Abs(result.Values[1]-1.5716) > 1e-4 {
		t.Errorf("expected second singular value 1.5716 but got %f", result.Values[1])
	}
}

// Writing the input matrix to disk and solving the reloaded copy must
// reproduce the singular values of the in-memory original.
func TestWriteAndLoadPreservesSolution(t *testing.T) {
	original := emptyColumnFixture()
	path := filepath.Join(t.TempDir(), "matrix")
	if err := original.WriteFile(path); err != nil {
		t.Fatalf("unexpected error writing matrix: %v", err)
	}
	loaded, err := sparse.LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error loading matrix: %v", err)
	}

	solver := &TruncatedSVD{K: 2}
	fromMemory, err := solver.Solve(original)
	if err != nil {
		t.Fatalf("unexpected error solving original: %v", err)
	}
	fromDisk, err := solver.Solve(loaded)
	if err != nil {
		t.Fatalf("unexpected error solving reloaded matrix: %v", err)
	}
	if fromMemory.Rank != fromDisk.Rank {
		t.Fatalf("rank changed across the round trip: %d vs %d", fromMemory.Rank, fromDisk.Rank)
	}
	for i := range fromMemory.Values {
		if math.Abs(fromMemory.Values[i]-fromDisk.Values[i]) > 1e-10 {
			t.Errorf("singular value %d changed across the round trip: %f vs %f",
				i, fromMemory.Values[i], fromDisk.Values[i])
		}
	}
}

// A zero matrix produces no Krylov expansion at all. This surfaces as
// rank 0 with no singular values, not as an error.
func TestZeroMatrixYieldsRankZero(t *testing.T) {
	m := sparse.NewMatrix(3, 3)
	solver := &TruncatedSVD{K: 2}
	result, err := solver.Solve(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Rank != 0 {
		t.Errorf("expected rank 0 for the zero matrix but got %d", result.Rank)
	}
	if len(result.Values) != 0 {
		t.Errorf("expected no singular values but got %v", result.Values)
	}
}

func TestRejectsOutOfRangeRank(t *testing.T) {
	m := sparse.NewMatrix(3, 3)
	for _, k := range []int{0, -1, 4} {
		solver := &TruncatedSVD{K: k}
		if _, err := solver.Solve(m); err == nil {
			t.Errorf("expected an error for requested rank %d on a 3x3 matrix", k)
		}
	}
}
