package corpus

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// A Dictionary is a bidirectional mapping between a string token and a
// dense integer id. Ids are assigned in first-seen order and are stable
// for a fixed corpus pass.
type Dictionary struct {
	str2id map[string]int
	id2str []string
}

func NewDictionary() *Dictionary {
	return &Dictionary{str2id: make(map[string]int)}
}

// Add returns the id for s, assigning the next id if s is unknown.
func (d *Dictionary) Add(s string) int {
	if id, ok := d.str2id[s]; ok {
		return id
	}
	id := len(d.id2str)
	d.str2id[s] = id
	d.id2str = append(d.id2str, s)
	return id
}

func (d *Dictionary) Id(s string) (int, bool) {
	id, ok := d.str2id[s]
	return id, ok
}

func (d *Dictionary) String(id int) (string, bool) {
	if id < 0 || id >= len(d.id2str) {
		return "", false
	}
	return d.id2str[id], true
}

func (d *Dictionary) Len() int {
	return len(d.id2str)
}

// WriteFile persists the mapping, one "<string> <id>" line per entry in
// assignment order. Tokens are whitespace-delimited in the corpus, so
// they never contain spaces themselves.
func (d *Dictionary) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	writer := bufio.NewWriter(tmp)
	for id, s := range d.id2str {
		fmt.Fprintf(writer, "%s %d\n", s, id)
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

// LoadDictionary reconstructs a dictionary written by WriteFile.
func LoadDictionary(path string) (*Dictionary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary file %s: %w", path, err)
	}
	defer file.Close()

	d := NewDictionary()
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s:%d: malformed dictionary entry %q", path, lineNo, line)
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil || id != d.Len() {
			return nil, fmt.Errorf("%s:%d: dictionary ids out of order at %q", path, lineNo, line)
		}
		d.Add(fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return d, nil
}
