// Package settings holds the tunable parameters of a representation
// run and derives the parameter signatures that key cached artifacts.
package settings

import (
	"fmt"
	"strconv"
)

// PipelineSettings collects every knob that affects the induced
// representations. Zero values are filled in by ComputeSettingsFields.
type PipelineSettings struct {
	// CorpusPath is the tokenized input corpus, one or more
	// whitespace-separated tokens per line.
	CorpusPath string

	// OutputDirectory receives every artifact, keyed by signature.
	OutputDirectory string

	// RareCutoff collapses words with raw count at or below it.
	// Negative derives the cutoff from the count distribution.
	RareCutoff int

	// WindowSize is the context window span including the center word.
	WindowSize int

	// SentencePerLine treats each corpus line as its own sequence.
	SentencePerLine bool

	// CCADim is the number of representation dimensions to induce.
	CCADim int

	// SmoothingTerm is added to marginal variances before whitening.
	// Negative derives it from the smallest observed marginal.
	SmoothingTerm float64

	// NumClusters for the K-means pass. Zero or negative derives the
	// count from CCADim.
	NumClusters int

	// Force recomputes counts even when cached artifacts match the
	// active signature.
	Force bool
}

// ComputeSettingsFields fills derived and defaulted fields and returns
// the updated settings.
func (s PipelineSettings) ComputeSettingsFields() PipelineSettings {
	if s.WindowSize == 0 {
		s.WindowSize = 3
	}
	if s.NumClusters <= 0 {
		s.NumClusters = s.CCADim
	}
	return s
}

// Signature returns the parameter signature at the requested version.
// Each version appends the parameters that first affect the artifact
// it keys:
//
//	version 0: rare cutoff
//	version 1: + window size, sentence mode
//	version 2: + cca dimension, smoothing term
//	version 3: + cluster count
//
// Callers must resolve automatic values (negative cutoff or smoothing)
// before taking signatures, so cached artifacts are keyed by what was
// actually computed.
func (s PipelineSettings) Signature(version int) string {
	signature := fmt.Sprintf("rare%d", s.RareCutoff)
	if version >= 1 {
		signature += fmt.Sprintf("_window%d_sent%t", s.WindowSize, s.SentencePerLine)
	}
	if version >= 2 {
		signature += fmt.Sprintf("_dim%d_smooth%s", s.CCADim,
			strconv.FormatFloat(s.SmoothingTerm, 'g', -1, 64))
	}
	if version >= 3 {
		signature += fmt.Sprintf("_clusters%d", s.NumClusters)
	}
	return signature
}
