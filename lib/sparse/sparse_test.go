package sparse

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetAtAndZeroRemoval(t *testing.T) {
	m := NewMatrix(3, 2)
	m.Set(1, 0, 2.5)
	if m.At(1, 0) != 2.5 {
		t.Errorf("expected 2.5 at (1,0) but got %f", m.At(1, 0))
	}
	if m.NonZeros() != 1 {
		t.Errorf("expected 1 nonzero but got %d", m.NonZeros())
	}
	m.Set(1, 0, 0.0)
	if m.NonZeros() != 0 {
		t.Errorf("expected setting zero to remove the entry, have %d nonzeros", m.NonZeros())
	}
	if len(m.Column(0)) != 0 {
		t.Errorf("expected column 0 to be empty after removal")
	}
}

func TestAddAccumulates(t *testing.T) {
	m := NewMatrix(2, 2)
	m.Add(0, 1, 1.0)
	m.Add(0, 1, 2.0)
	if m.At(0, 1) != 3.0 {
		t.Errorf("expected accumulated value 3.0 but got %f", m.At(0, 1))
	}
}

func TestMulVec(t *testing.T) {
	//  0 1
	//  2 3
	m := NewMatrix(2, 2)
	m.Set(0, 1, 1.0)
	m.Set(1, 0, 2.0)
	m.Set(1, 1, 3.0)

	y := make([]float64, 2)
	m.MulVec(y, []float64{1.0, 1.0})
	if y[0] != 1.0 || y[1] != 5.0 {
		t.Errorf("expected M*1 to be [1 5] but got %v", y)
	}
	m.MulTransVec(y, []float64{1.0, 1.0})
	if y[0] != 2.0 || y[1] != 4.0 {
		t.Errorf("expected Mt*1 to be [2 4] but got %v", y)
	}
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	// The matrix from the solver fixtures, with two empty columns.
	//     0  0  1  0
	//     0  0  0  0
	//     2  0  3  0
	//     0  0  4  0
	m := NewMatrix(4, 4)
	m.Set(2, 0, 2.0)
	m.Set(0, 2, 1.0)
	m.Set(2, 2, 3.0)
	m.Set(3, 2, 4.0)

	path := filepath.Join(t.TempDir(), "matrix")
	if err := m.WriteFile(path); err != nil {
		t.Fatalf("unexpected error writing matrix: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error loading matrix: %v", err)
	}
	rows, cols := loaded.Dims()
	if rows != 4 || cols != 4 {
		t.Errorf("expected 4x4 matrix but got %dx%d", rows, cols)
	}
	if loaded.NonZeros() != m.NonZeros() {
		t.Errorf("expected %d nonzeros after reload but got %d", m.NonZeros(), loaded.NonZeros())
	}
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if loaded.At(r, c) != m.At(r, c) {
				t.Errorf("entry (%d,%d) changed across the round trip: %f vs %f",
					r, c, m.At(r, c), loaded.At(r, c))
			}
		}
	}
}

func TestLoadRejectsMalformedFiles(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"empty":           "",
		"bad_header":      "4\n",
		"bad_column":      "4 4\nx 1\n0 1.0\n",
		"row_out_of_range": "2 2\n0 1\n5 1.0\n",
		"truncated":       "4 4\n0 2\n1 1.0\n",
	}
	for name, content := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0640); err != nil {
			t.Fatalf("failed to write fixture %s: %v", name, err)
		}
		if _, err := LoadFile(path); err == nil {
			t.Errorf("expected an error loading malformed file %q", name)
		}
	}
}

func TestEmptyMatrixRoundTrip(t *testing.T) {
	m := NewMatrix(0, 0)
	path := filepath.Join(t.TempDir(), "empty")
	if err := m.WriteFile(path); err != nil {
		t.Fatalf("unexpected error writing empty matrix: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error loading empty matrix: %v", err)
	}
	rows, cols := loaded.Dims()
	if rows != 0 || cols != 0 {
		t.Errorf("expected 0x0 matrix but got %dx%d", rows, cols)
	}
}
