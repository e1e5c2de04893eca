// Package corpus turns a tokenized text stream into the co-occurrence
// statistics that drive the downstream decomposition: word and context
// dictionaries, marginal counts, and the sparse joint count matrix.
package corpus

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jiangfeng1124/singular/lib/sparse"
)

const (
	// RareToken replaces every word whose raw count falls at or below
	// the rare cutoff, both as a center word and inside contexts.
	RareToken = "<?>"

	// BufferToken stands in for context positions that fall outside a
	// sequence boundary.
	BufferToken = "<!>"
)

// Builder accumulates co-occurrence statistics over a corpus file.
type Builder struct {
	// WindowSize is the total window span including the center word.
	// Size 2 looks one position right, size 3 one position to each
	// side. Even sizes skew right.
	WindowSize int

	// SentencePerLine treats every input line as its own sequence with
	// buffer padding at both ends. Otherwise the whole corpus is one
	// sequence.
	SentencePerLine bool

	// RareCutoff collapses words with raw count at or below it into
	// RareToken. A negative value derives the cutoff from the count
	// distribution.
	RareCutoff int
}

// WordCount pairs a word with its raw count from the first pass.
type WordCount struct {
	Word  string
	Count int
}

// Statistics is the outcome of a corpus scan.
type Statistics struct {
	WordDict    *Dictionary
	ContextDict *Dictionary

	// WordCount[i] is the number of tokens of word id i after rare
	// collapsing; ContextCount[j] counts occurrences of context id j.
	WordCount    []int
	ContextCount []int

	// Joint has one row per word id and one column per context id.
	Joint *sparse.Matrix

	// NumTokens is the total token count of the corpus.
	NumTokens int

	// RareCutoff is the cutoff actually applied, with any automatic
	// derivation already resolved.
	RareCutoff int

	// RareWords are the collapsed word types, most frequent first.
	RareWords []WordCount

	// SortedWords are all raw word types, most frequent first.
	SortedWords []WordCount
}

// BuildFromFile scans the corpus twice. The first pass takes raw word
// counts and resolves the rare cutoff; the second rebuilds dictionaries
// and counts with rare words collapsed everywhere they appear.
func (b *Builder) BuildFromFile(path string) (*Statistics, error) {
	if b.WindowSize < 2 {
		return nil, fmt.Errorf("window size %d too small, need at least 2", b.WindowSize)
	}

	rawCounts, numTokens, err := b.countWords(path)
	if err != nil {
		return nil, err
	}

	cutoff := b.RareCutoff
	if cutoff < 0 {
		cutoff = deriveCutoff(rawCounts, numTokens)
	}
	rare := make(map[string]bool)
	for w, c := range rawCounts {
		if c <= cutoff {
			rare[w] = true
		}
	}

	stats := &Statistics{
		WordDict:    NewDictionary(),
		ContextDict: NewDictionary(),
		Joint:       sparse.NewMatrix(0, 0),
		NumTokens:   numTokens,
		RareCutoff:  cutoff,
		SortedWords: sortByCount(rawCounts),
	}
	for _, wc := range stats.SortedWords {
		if rare[wc.Word] {
			stats.RareWords = append(stats.RareWords, wc)
		}
	}

	if err := b.scanWindows(path, rare, stats); err != nil {
		return nil, err
	}
	stats.Joint.Resize(stats.WordDict.Len(), stats.ContextDict.Len())
	return stats, nil
}

func (b *Builder) countWords(path string) (map[string]int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open corpus %s: %w", path, err)
	}
	defer file.Close()

	counts := make(map[string]int)
	numTokens := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		for _, token := range strings.Fields(scanner.Text()) {
			counts[token]++
			numTokens++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read corpus %s: %w", path, err)
	}
	return counts, numTokens, nil
}

func (b *Builder) scanWindows(path string, rare map[string]bool, stats *Statistics) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open corpus %s: %w", path, err)
	}
	defer file.Close()

	window := newSlidingWindow(b.WindowSize, stats)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		tokens := strings.Fields(scanner.Text())
		for _, token := range tokens {
			if rare[token] {
				token = RareToken
			}
			window.push(token)
		}
		if b.SentencePerLine && len(tokens) > 0 {
			window.flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read corpus %s: %w", path, err)
	}
	if !b.SentencePerLine {
		window.flush()
	}
	return nil
}

// slidingWindow emits one observation per real token: the token as the
// center word plus one labeled context per surrounding position, with
// BufferToken substituted beyond sequence boundaries.
type slidingWindow struct {
	size   int
	half   int
	tokens []string
	stats  *Statistics
	// Context ids per offset are cached because the label strings
	// repeat for every single token.
	labelCache []map[string]int
}

func newSlidingWindow(size int, stats *Statistics) *slidingWindow {
	w := &slidingWindow{
		size:       size,
		half:       (size - 1) / 2,
		stats:      stats,
		labelCache: make([]map[string]int, size),
	}
	for i := range w.labelCache {
		w.labelCache[i] = make(map[string]int)
	}
	w.reset()
	return w
}

func (w *slidingWindow) reset() {
	w.tokens = w.tokens[:0]
	for i := 0; i < w.half; i++ {
		w.tokens = append(w.tokens, BufferToken)
	}
}

func (w *slidingWindow) push(token string) {
	w.tokens = append(w.tokens, token)
	if len(w.tokens) == w.size {
		w.emit()
		w.tokens = w.tokens[1:]
	}
}

// flush pads the right edge with buffers so every remaining real token
// gets its turn at the center, then rewinds for the next sequence.
func (w *slidingWindow) flush() {
	for i := 0; i < w.size-1-w.half; i++ {
		w.push(BufferToken)
	}
	w.reset()
}

func (w *slidingWindow) emit() {
	center := w.tokens[w.half]
	wordId := w.stats.WordDict.Add(center)
	if wordId >= len(w.stats.WordCount) {
		w.stats.WordCount = append(w.stats.WordCount, 0)
	}
	w.stats.WordCount[wordId]++

	for pos, token := range w.tokens {
		if pos == w.half {
			continue
		}
		contextId, ok := w.labelCache[pos][token]
		if !ok {
			contextId = w.stats.ContextDict.Add(fmt.Sprintf("w(%d)=%s", pos-w.half, token))
			w.labelCache[pos][token] = contextId
		}
		if contextId >= len(w.stats.ContextCount) {
			w.stats.ContextCount = append(w.stats.ContextCount, 0)
		}
		w.stats.ContextCount[contextId]++
		w.stats.Joint.Resize(w.stats.WordDict.Len(), w.stats.ContextDict.Len())
		w.stats.Joint.Add(wordId, contextId, 1.0)
	}
}

// The derived cutoff is the largest value that collapses at most a
// thousandth of the corpus tokens.
func deriveCutoff(rawCounts map[string]int, numTokens int) int {
	budget := numTokens / 1000
	histogram := make(map[int]int)
	for _, c := range rawCounts {
		histogram[c] += c
	}
	values := make([]int, 0, len(histogram))
	for v := range histogram {
		values = append(values, v)
	}
	sort.Ints(values)

	cutoff := 0
	mass := 0
	for _, v := range values {
		mass += histogram[v]
		if mass > budget {
			break
		}
		cutoff = v
	}
	return cutoff
}

func sortByCount(rawCounts map[string]int) []WordCount {
	sorted := make([]WordCount, 0, len(rawCounts))
	for w, c := range rawCounts {
		sorted = append(sorted, WordCount{Word: w, Count: c})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].Word < sorted[j].Word
	})
	return sorted
}
