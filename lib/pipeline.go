// Package lib drives the representation pipeline: corpus statistics,
// canonical correlation analysis, the principal component rebase, and
// agglomeration into clusters. Every artifact lands in the output
// directory keyed by a parameter signature, so a directory doubles as
// a cache across runs with overlapping settings.
package lib

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jiangfeng1124/singular/lib/cca"
	"github.com/jiangfeng1124/singular/lib/corpus"
	"github.com/jiangfeng1124/singular/lib/kmeans"
	"github.com/jiangfeng1124/singular/lib/pca"
	"github.com/jiangfeng1124/singular/lib/settings"
	"gonum.org/v1/gonum/mat"
)

type PipelineState int

const (
	StateUninitialized PipelineState = iota
	StateCountsExtracted
	StateRepresentationsInduced
)

// Pipeline owns one output directory and runs the two stages over it:
// ExtractStatistics, then InduceLexicalRepresentations.
type Pipeline struct {
	settings settings.PipelineSettings
	state    PipelineState

	// Stats holds the co-occurrence statistics after extraction.
	Stats *corpus.Statistics

	// WordVectors maps each word to its induced vector after the
	// principal component rebase.
	WordVectors map[string][]float64

	// SingularValues are the canonical correlations, length
	// AchievedRank.
	SingularValues []float64

	// PCAVariances are the per-component variances of the rebase.
	PCAVariances []float64

	// Clusters maps each word to its cluster index.
	Clusters map[string]int

	// AchievedRank is the rank the decomposition actually reached. It
	// can fall below the requested dimension on degenerate spectra.
	AchievedRank int

	// SmoothingUsed is the smoothing term that was applied, with any
	// automatic derivation resolved.
	SmoothingUsed float64
}

// NewPipeline prepares the output directory and resolves defaulted
// settings fields.
func NewPipeline(s settings.PipelineSettings) (*Pipeline, error) {
	s = s.ComputeSettingsFields()
	if s.OutputDirectory == "" {
		return nil, fmt.Errorf("no output directory configured")
	}
	if err := os.MkdirAll(s.OutputDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", s.OutputDirectory, err)
	}
	return &Pipeline{settings: s}, nil
}

// Settings returns the active settings. Automatic values appear
// resolved once the stage that resolves them has run.
func (p *Pipeline) Settings() settings.PipelineSettings {
	return p.settings
}

func (p *Pipeline) State() PipelineState {
	return p.state
}

// ResetOutputDirectory discards every artifact and returns the
// pipeline to its initial state.
func (p *Pipeline) ResetOutputDirectory() error {
	if err := os.RemoveAll(p.settings.OutputDirectory); err != nil {
		return fmt.Errorf("failed to clear output directory %s: %w", p.settings.OutputDirectory, err)
	}
	if err := os.MkdirAll(p.settings.OutputDirectory, 0755); err != nil {
		return fmt.Errorf("failed to recreate output directory %s: %w", p.settings.OutputDirectory, err)
	}
	p.state = StateUninitialized
	p.Stats = nil
	p.WordVectors = nil
	p.SingularValues = nil
	p.PCAVariances = nil
	p.Clusters = nil
	p.AchievedRank = 0
	return nil
}

func (p *Pipeline) outputPath(prefix string, version int) string {
	return filepath.Join(p.settings.OutputDirectory, prefix+p.settings.Signature(version))
}

func (p *Pipeline) CountWordPath() string { return p.outputPath("count_word_", 0) }
func (p *Pipeline) CountContextPath() string { return p.outputPath("count_context_", 1) }
func (p *Pipeline) CountWordContextPath() string {
	return p.outputPath("count_word_context_", 1)
}
func (p *Pipeline) WordDictionaryPath() string { return p.outputPath("word_str2num_", 0) }
func (p *Pipeline) ContextDictionaryPath() string {
	return p.outputPath("context_str2num_", 1)
}
func (p *Pipeline) RareWordsPath() string { return p.outputPath("rare_words_", 0) }
func (p *Pipeline) WordVectorsPath() string { return p.outputPath("wordvectors_", 2) }
func (p *Pipeline) SingularValuesPath() string { return p.outputPath("singular_values_", 2) }
func (p *Pipeline) PCAVariancePath() string { return p.outputPath("pca_variance_", 2) }
func (p *Pipeline) KMeansPath() string { return p.outputPath("kmeans_", 3) }
func (p *Pipeline) SortedWordTypesPath() string {
	return filepath.Join(p.settings.OutputDirectory, "sorted_word_types")
}
func (p *Pipeline) CorpusInfoPath() string {
	return filepath.Join(p.settings.OutputDirectory, "corpus_info")
}
func (p *Pipeline) RunLogPath() string {
	return filepath.Join(p.settings.OutputDirectory, "log")
}

// appendRunLog keeps a plain-text history of what ran against this
// output directory. Append only; failures here never fail the run.
func (p *Pipeline) appendRunLog(format string, args ...interface{}) {
	file, err := os.OpenFile(p.RunLogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open run log: %v", err)
		return
	}
	defer file.Close()
	fmt.Fprintf(file, "%s "+format+"\n",
		append([]interface{}{time.Now().Format(time.RFC3339)}, args...)...)
}

// ExtractStatistics scans the corpus and persists dictionaries and
// count tables. When the directory already holds counts for the active
// signature and Force is off, the cached artifacts are reloaded
// instead of rescanning. An automatic rare cutoff always rescans
// because the resolved cutoff is only known after the first pass.
func (p *Pipeline) ExtractStatistics() error {
	if p.settings.CorpusPath == "" {
		return &StateError{Operation: "extract statistics", Reason: "no corpus path configured"}
	}

	if p.settings.RareCutoff >= 0 && !p.settings.Force {
		if stats, err := p.loadCachedStatistics(); err == nil {
			p.Stats = stats
			p.state = StateCountsExtracted
			wordTypes.Set(float64(stats.WordDict.Len()))
			contextTypes.Set(float64(stats.ContextDict.Len()))
			log.Printf("reusing cached counts in %s for signature %s",
				p.settings.OutputDirectory, p.settings.Signature(1))
			return nil
		}
	}

	builder := &corpus.Builder{
		WindowSize:      p.settings.WindowSize,
		SentencePerLine: p.settings.SentencePerLine,
		RareCutoff:      p.settings.RareCutoff,
	}
	stats, err := builder.BuildFromFile(p.settings.CorpusPath)
	if err != nil {
		return fmt.Errorf("failed to extract statistics: %w", err)
	}
	p.settings.RareCutoff = stats.RareCutoff
	p.Stats = stats

	scannedTokens.Add(float64(stats.NumTokens))
	collapsed := 0
	for _, wc := range stats.RareWords {
		collapsed += wc.Count
	}
	collapsedRareTokens.Add(float64(collapsed))
	wordTypes.Set(float64(stats.WordDict.Len()))
	contextTypes.Set(float64(stats.ContextDict.Len()))

	if err := p.persistStatistics(); err != nil {
		return err
	}
	p.state = StateCountsExtracted
	log.Printf("extracted statistics: %d tokens, %d word types, %d contexts, rare cutoff %d",
		stats.NumTokens, stats.WordDict.Len(), stats.ContextDict.Len(), stats.RareCutoff)
	p.appendRunLog("extracted statistics from %s: %d tokens, %d word types, signature %s",
		p.settings.CorpusPath, stats.NumTokens, stats.WordDict.Len(), p.settings.Signature(1))
	return nil
}

// InduceLexicalRepresentations runs CCA over the extracted counts,
// rebases the projection onto its principal components, clusters the
// resulting vectors, and persists all of it.
func (p *Pipeline) InduceLexicalRepresentations() error {
	if p.state < StateCountsExtracted || p.Stats == nil {
		return &StateError{
			Operation: "induce lexical representations",
			Reason:    "statistics have not been extracted",
		}
	}
	if p.Stats.WordDict.Len() == 0 {
		return ErrEmptyVocabulary
	}
	words := p.Stats.WordDict.Len()
	contexts := p.Stats.ContextDict.Len()
	maxDim := words
	if contexts < maxDim {
		maxDim = contexts
	}
	if p.settings.CCADim < 1 || p.settings.CCADim > maxDim {
		return fmt.Errorf("cca dimension %d out of range for %d words and %d contexts",
			p.settings.CCADim, words, contexts)
	}

	varianceX := make([]float64, words)
	for i, c := range p.Stats.WordCount {
		varianceX[i] = float64(c)
	}
	varianceY := make([]float64, contexts)
	for j, c := range p.Stats.ContextCount {
		varianceY[j] = float64(c)
	}

	engine := &cca.Engine{Dim: p.settings.CCADim, Smoothing: p.settings.SmoothingTerm}
	started := time.Now()
	result, err := engine.PerformCCA(p.Stats.Joint, varianceX, varianceY)
	if err != nil {
		return fmt.Errorf("failed to perform cca: %w", err)
	}
	decompositionDuration.Set(float64(time.Since(started).Milliseconds()))
	achievedRank.Set(float64(result.Rank))

	p.settings.SmoothingTerm = result.SmoothingUsed
	p.SmoothingUsed = result.SmoothingUsed
	p.AchievedRank = result.Rank
	p.SingularValues = result.Correlations
	if result.Rank == 0 {
		return fmt.Errorf("decomposition achieved rank 0, nothing to induce")
	}
	if result.Rank < p.settings.CCADim {
		log.Printf("achieved rank %d below requested dimension %d", result.Rank, p.settings.CCADim)
	}

	rotated, basis, err := pca.ChangeOfBasis(result.Projection)
	if err != nil {
		return fmt.Errorf("failed to rebase word vectors: %w", err)
	}
	p.PCAVariances = basis.Variances

	// Seed one cluster per most frequent word.
	order := p.wordIdsByFrequency()
	k := p.settings.NumClusters
	if k > words {
		k = words
	}
	clustering, err := kmeans.Cluster(rotated, order[:k], 0)
	if err != nil {
		return fmt.Errorf("failed to cluster word vectors: %w", err)
	}

	p.WordVectors = make(map[string][]float64, words)
	p.Clusters = make(map[string]int, words)
	_, dim := rotated.Dims()
	for id := 0; id < words; id++ {
		word, _ := p.Stats.WordDict.String(id)
		vector := make([]float64, dim)
		mat.Row(vector, id, rotated)
		p.WordVectors[word] = vector
		p.Clusters[word] = clustering.Cluster[id]
	}

	if err := p.persistRepresentations(rotated, clustering, order); err != nil {
		return err
	}
	p.state = StateRepresentationsInduced
	log.Printf("induced %d-dimensional representations for %d words in %d clusters",
		dim, words, k)
	p.appendRunLog("induced representations: rank %d, smoothing %g, signature %s",
		result.Rank, result.SmoothingUsed, p.settings.Signature(3))
	return nil
}

// Word ids ordered most frequent first, ties by id.
func (p *Pipeline) wordIdsByFrequency() []int {
	order := make([]int, p.Stats.WordDict.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return p.Stats.WordCount[order[a]] > p.Stats.WordCount[order[b]]
	})
	return order
}

func (p *Pipeline) persistStatistics() error {
	if err := p.Stats.WordDict.WriteFile(p.WordDictionaryPath()); err != nil {
		return err
	}
	if err := p.Stats.ContextDict.WriteFile(p.ContextDictionaryPath()); err != nil {
		return err
	}
	if err := corpus.WriteCountFile(p.CountWordPath(), p.Stats.WordCount); err != nil {
		return err
	}
	if err := corpus.WriteCountFile(p.CountContextPath(), p.Stats.ContextCount); err != nil {
		return err
	}
	if err := corpus.WriteJointFile(p.CountWordContextPath(), p.Stats.Joint); err != nil {
		return err
	}
	if err := writeWordCounts(p.RareWordsPath(), p.Stats.RareWords); err != nil {
		return err
	}
	if err := writeWordCounts(p.SortedWordTypesPath(), p.Stats.SortedWords); err != nil {
		return err
	}
	return writeTextFile(p.CorpusInfoPath(), func(w *bufio.Writer) {
		fmt.Fprintf(w, "corpus %s\n", p.settings.CorpusPath)
		fmt.Fprintf(w, "num_tokens %d\n", p.Stats.NumTokens)
		fmt.Fprintf(w, "word_types %d\n", p.Stats.WordDict.Len())
		fmt.Fprintf(w, "context_types %d\n", p.Stats.ContextDict.Len())
		fmt.Fprintf(w, "rare_cutoff %d\n", p.Stats.RareCutoff)
	})
}

func (p *Pipeline) loadCachedStatistics() (*corpus.Statistics, error) {
	wordDict, err := corpus.LoadDictionary(p.WordDictionaryPath())
	if err != nil {
		return nil, err
	}
	contextDict, err := corpus.LoadDictionary(p.ContextDictionaryPath())
	if err != nil {
		return nil, err
	}
	wordCount, err := corpus.LoadCountFile(p.CountWordPath())
	if err != nil {
		return nil, err
	}
	contextCount, err := corpus.LoadCountFile(p.CountContextPath())
	if err != nil {
		return nil, err
	}
	joint, err := corpus.LoadJointFile(p.CountWordContextPath())
	if err != nil {
		return nil, err
	}
	rareWords, err := readWordCounts(p.RareWordsPath())
	if err != nil {
		return nil, err
	}
	sortedWords, err := readWordCounts(p.SortedWordTypesPath())
	if err != nil {
		return nil, err
	}
	if len(wordCount) != wordDict.Len() || len(contextCount) != contextDict.Len() {
		return nil, fmt.Errorf("cached counts in %s do not match their dictionaries",
			p.settings.OutputDirectory)
	}
	numTokens := 0
	for _, c := range wordCount {
		numTokens += c
	}
	return &corpus.Statistics{
		WordDict:     wordDict,
		ContextDict:  contextDict,
		WordCount:    wordCount,
		ContextCount: contextCount,
		Joint:        joint,
		NumTokens:    numTokens,
		RareCutoff:   p.settings.RareCutoff,
		RareWords:    rareWords,
		SortedWords:  sortedWords,
	}, nil
}

func (p *Pipeline) persistRepresentations(rotated *mat.Dense, clustering *kmeans.Assignment, order []int) error {
	_, dim := rotated.Dims()
	err := writeTextFile(p.WordVectorsPath(), func(w *bufio.Writer) {
		for _, id := range order {
			word, _ := p.Stats.WordDict.String(id)
			fmt.Fprintf(w, "%d %s", p.Stats.WordCount[id], word)
			for j := 0; j < dim; j++ {
				fmt.Fprintf(w, " %s", strconv.FormatFloat(rotated.At(id, j), 'g', -1, 64))
			}
			fmt.Fprintln(w)
		}
	})
	if err != nil {
		return err
	}

	err = writeTextFile(p.SingularValuesPath(), func(w *bufio.Writer) {
		for _, v := range p.SingularValues {
			fmt.Fprintf(w, "%s\n", strconv.FormatFloat(v, 'g', -1, 64))
		}
	})
	if err != nil {
		return err
	}

	err = writeTextFile(p.PCAVariancePath(), func(w *bufio.Writer) {
		for _, v := range p.PCAVariances {
			fmt.Fprintf(w, "%s\n", strconv.FormatFloat(v, 'g', -1, 64))
		}
	})
	if err != nil {
		return err
	}

	numClusters, _ := clustering.Centroids.Dims()
	return writeTextFile(p.KMeansPath(), func(w *bufio.Writer) {
		// Clusters in index order, words within a cluster most
		// frequent first.
		for c := 0; c < numClusters; c++ {
			for _, id := range order {
				if clustering.Cluster[id] != c {
					continue
				}
				word, _ := p.Stats.WordDict.String(id)
				fmt.Fprintf(w, "%d %d %s\n", c, p.Stats.WordCount[id], word)
			}
		}
	})
}

func writeWordCounts(path string, counts []corpus.WordCount) error {
	return writeTextFile(path, func(w *bufio.Writer) {
		for _, wc := range counts {
			fmt.Fprintf(w, "%s %d\n", wc.Word, wc.Count)
		}
	})
}

// LoadWordVectors reads a file written by the induction stage back
// into a word-to-vector map.
func LoadWordVectors(path string) (map[string][]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open word vector file %s: %w", path, err)
	}
	defer file.Close()

	vectors := make(map[string][]float64)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	dim := -1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("%s:%d: malformed word vector %q", path, lineNo, line)
		}
		if dim < 0 {
			dim = len(fields) - 2
		} else if len(fields)-2 != dim {
			return nil, fmt.Errorf("%s:%d: expected %d coordinates, got %d", path, lineNo, dim, len(fields)-2)
		}
		vector := make([]float64, dim)
		for j, f := range fields[2:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: malformed coordinate %q", path, lineNo, f)
			}
			vector[j] = v
		}
		vectors[fields[1]] = vector
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return vectors, nil
}

func readWordCounts(path string) ([]corpus.WordCount, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open word count file %s: %w", path, err)
	}
	defer file.Close()

	var counts []corpus.WordCount
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
			return nil, fmt.Errorf("%s:%d: malformed word count %q", path, lineNo, line)
		}
		c, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: malformed word count %q", path, lineNo, line)
		}
		counts = append(counts, corpus.WordCount{Word: fields[0], Count: c})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return counts, nil
}

// writeTextFile writes through a temp file and renames, so partially
// written artifacts never appear under their final name.
func writeTextFile(path string, fill func(w *bufio.Writer)) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	writer := bufio.NewWriter(tmp)
	fill(writer)
	if err := writer.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}
