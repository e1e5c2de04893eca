package corpus

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jiangfeng1124/singular/lib/sparse"
)

// WriteCountFile writes one count per line, in id order.
func WriteCountFile(path string, counts []int) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	writer := bufio.NewWriter(tmp)
	for _, c := range counts {
		fmt.Fprintf(writer, "%d\n", c)
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

// LoadCountFile reads a file written by WriteCountFile.
func LoadCountFile(path string) ([]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open count file %s: %w", path, err)
	}
	defer file.Close()

	var counts []int
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: malformed count %q", path, lineNo, line)
		}
		counts = append(counts, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return counts, nil
}

// WriteJointFile writes the joint counts column by column: a header
// line with rows, columns, and total nonzeros, then for every column a
// line with its nonzero count followed by one "row value" line per
// entry. Empty columns still get their zero line, so column positions
// survive the round trip.
func WriteJointFile(path string, joint *sparse.Matrix) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	rows, cols := joint.Dims()
	writer := bufio.NewWriter(tmp)
	fmt.Fprintf(writer, "%d %d %d\n", rows, cols, joint.NonZeros())
	for c := 0; c < cols; c++ {
		col := joint.Column(c)
		fmt.Fprintf(writer, "%d\n", len(col))
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

// LoadJointFile reads a file written by WriteJointFile.
func LoadJointFile(path string) (*sparse.Matrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open joint count file %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var matrix *sparse.Matrix
	currentCol := -1
	remaining := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if matrix == nil {
			if len(fields) != 3 {
				return nil, fmt.Errorf("%s:%d: malformed header %q", path, lineNo, line)
			}
			rows, err1 := strconv.Atoi(fields[0])
			cols, err2 := strconv.Atoi(fields[1])
			if err1 != nil || err2 != nil || rows < 0 || cols < 0 {
				return nil, fmt.Errorf("%s:%d: malformed header %q", path, lineNo, line)
			}
			matrix = sparse.NewMatrix(rows, cols)
			continue
		}
		if len(fields) == 1 {
			if remaining != 0 {
				return nil, fmt.Errorf("%s:%d: column %d ended with %d entries missing", path, lineNo, currentCol, remaining)
			}
			count, err := strconv.Atoi(fields[0])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("%s:%d: malformed column size %q", path, lineNo, line)
			}
			currentCol++
			remaining = count
			continue
		}
		if len(fields) != 2 || currentCol < 0 || remaining == 0 {
			return nil, fmt.Errorf("%s:%d: unexpected line %q", path, lineNo, line)
		}
		row, err1 := strconv.Atoi(fields[0])
		value, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%s:%d: malformed entry %q", path, lineNo, line)
		}
		matrix.Set(row, currentCol, value)
		remaining--
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if matrix == nil {
		return nil, fmt.Errorf("%s: missing header", path)
	}
	if remaining != 0 {
		return nil, fmt.Errorf("%s: truncated column %d, %d entries missing", path, currentCol, remaining)
	}
	_, cols := matrix.Dims()
	if currentCol+1 != cols {
		return nil, fmt.Errorf("%s: expected %d columns but found %d", path, cols, currentCol+1)
	}
	return matrix, nil
}
