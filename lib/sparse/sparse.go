// Package sparse implements the column-major sparse matrix that the
// co-occurrence counts and the correlation matrix live in.
package sparse

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// A Matrix is a sparse matrix stored as a map from column index to the
// nonzero entries of that column. No entry is ever stored for a logical
// zero; a column with no entries is a valid (empty) column.
type Matrix struct {
	rows    int
	cols    int
	columns map[int]map[int]float64
}

func NewMatrix(rows int, cols int) *Matrix {
	return &Matrix{
		rows:    rows,
		cols:    cols,
		columns: make(map[int]map[int]float64),
	}
}

func (m *Matrix) Dims() (rows int, cols int) {
	return m.rows, m.cols
}

// Resize grows the logical dimensions. Existing entries keep their
// positions; shrinking below them is rejected because it would orphan
// stored values.
func (m *Matrix) Resize(rows int, cols int) {
	if rows < m.rows || cols < m.cols {
		for c, col := range m.columns {
			if c >= cols {
				panic(fmt.Sprintf("sparse: cannot shrink to %d columns past stored column %d", cols, c))
			}
			for r := range col {
				if r >= rows {
					panic(fmt.Sprintf("sparse: cannot shrink to %d rows past stored row %d", rows, r))
				}
			}
		}
	}
	m.rows = rows
	m.cols = cols
}

func (m *Matrix) checkIndex(r int, c int) {
	if r < 0 || r >= m.rows || c < 0 || c >= m.cols {
		panic(fmt.Sprintf("sparse: index (%d,%d) out of range for %dx%d matrix", r, c, m.rows, m.cols))
	}
}

func (m *Matrix) At(r int, c int) float64 {
	m.checkIndex(r, c)
	return m.columns[c][r]
}

// Set stores v at (r, c). Setting an entry to zero removes it.
func (m *Matrix) Set(r int, c int, v float64) {
	m.checkIndex(r, c)
	if v == 0.0 {
		delete(m.columns[c], r)
		if len(m.columns[c]) == 0 {
			delete(m.columns, c)
		}
		return
	}
	col, ok := m.columns[c]
	if !ok {
		col = make(map[int]float64)
		m.columns[c] = col
	}
	col[r] = v
}

func (m *Matrix) Add(r int, c int, delta float64) {
	m.checkIndex(r, c)
	m.Set(r, c, m.columns[c][r]+delta)
}

func (m *Matrix) NonZeros() int {
	n := 0
	for _, col := range m.columns {
		n += len(col)
	}
	return n
}

// Column returns the nonzero entries of column c, keyed by row index.
// The returned map is the internal storage; callers must not modify it.
func (m *Matrix) Column(c int) map[int]float64 {
	return m.columns[c]
}

// MulVec computes dst = M * x where x has one entry per column.
// dst must have one entry per row and is overwritten.
func (m *Matrix) MulVec(dst []float64, x []float64) {
	if len(x) != m.cols || len(dst) != m.rows {
		panic(fmt.Sprintf("sparse: MulVec size mismatch for %dx%d matrix", m.rows, m.cols))
	}
	for i := range dst {
		dst[i] = 0.0
	}
	for c, col := range m.columns {
		xc := x[c]
		if xc == 0.0 {
			continue
		}
		for r, v := range col {
			dst[r] += v * xc
		}
	}
}

// MulTransVec computes dst = Mᵀ * x where x has one entry per row.
func (m *Matrix) MulTransVec(dst []float64, x []float64) {
	if len(x) != m.rows || len(dst) != m.cols {
		panic(fmt.Sprintf("sparse: MulTransVec size mismatch for %dx%d matrix", m.rows, m.cols))
	}
	for i := range dst {
		dst[i] = 0.0
	}
	for c, col := range m.columns {
		sum := 0.0
		for r, v := range col {
			sum += v * x[r]
		}
		dst[c] = sum
	}
}

// WriteFile persists the matrix in a line-oriented text layout:
// a dimension header, then for each nonempty column a line with the
// column index and its entry count, followed by one "row value" line
// per entry. Columns and rows are written in ascending order so the
// output is deterministic. The write is atomic: the file appears under
// its final name only once it is complete.
func (m *Matrix) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	writer := bufio.NewWriter(tmp)
	fmt.Fprintf(writer, "%d %d\n", m.rows, m.cols)

	colIndices := make([]int, 0, len(m.columns))
	for c := range m.columns {
		colIndices = append(colIndices, c)
	}
	sort.Ints(colIndices)
	for _, c := range colIndices {
		col := m.columns[c]
		fmt.Fprintf(writer, "%d %d\n", c, len(col))
		rowIndices := make([]int, 0, len(col))
		for r := range col {
			rowIndices = append(rowIndices, r)
		}
		sort.Ints(rowIndices)
		for _, r := range rowIndices {
			fmt.Fprintf(writer, "%d %s\n", r, strconv.FormatFloat(col[r], 'g', -1, 64))
		}
	}
	if err := writer.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFile reconstructs a matrix written by WriteFile.
func LoadFile(path string) (*Matrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sparse matrix file %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var matrix *Matrix
	remaining := 0
	currentCol := -1
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if matrix == nil {
			if len(fields) != 2 {
				return nil, fmt.Errorf("%s:%d: malformed dimension header %q", path, lineNo, line)
			}
			rows, err1 := strconv.Atoi(fields[0])
			cols, err2 := strconv.Atoi(fields[1])
			if err1 != nil || err2 != nil || rows < 0 || cols < 0 {
				return nil, fmt.Errorf("%s:%d: malformed dimension header %q", path, lineNo, line)
			}
			matrix = NewMatrix(rows, cols)
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s:%d: expected two fields, got %q", path, lineNo, line)
		}
		if remaining == 0 {
			col, err1 := strconv.Atoi(fields[0])
			count, err2 := strconv.Atoi(fields[1])
			if err1 != nil || err2 != nil || col < 0 || col >= matrix.cols || count < 0 {
				return nil, fmt.Errorf("%s:%d: malformed column header %q", path, lineNo, line)
			}
			currentCol = col
			remaining = count
			continue
		}
		row, err1 := strconv.Atoi(fields[0])
		value, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil || row < 0 || row >= matrix.rows {
			return nil, fmt.Errorf("%s:%d: malformed entry %q", path, lineNo, line)
		}
		matrix.Set(row, currentCol, value)
		remaining--
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if matrix == nil {
		return nil, fmt.Errorf("%s: missing dimension header", path)
	}
	if remaining != 0 {
		return nil, fmt.Errorf("%s: truncated column %d, %d entries missing", path, currentCol, remaining)
	}
	return matrix, nil
}
