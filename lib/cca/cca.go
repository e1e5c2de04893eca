// Package cca realizes canonical correlation analysis over sparse
// co-occurrence statistics: whiten the cross-covariance by smoothed
// marginal variances, then take a truncated SVD of the resulting
// correlation matrix.
package cca

import (
	"fmt"
	"math"

	"github.com/jiangfeng1124/singular/lib/sparse"
	"github.com/jiangfeng1124/singular/lib/svd"
	"gonum.org/v1/gonum/mat"
)

// Engine holds the tunable parameters of one CCA computation.
type Engine struct {
	// Dim is the requested number of CCA dimensions.
	Dim int

	// Smoothing is the additive constant on marginal variances before
	// whitening. A negative value lets the engine derive it from the
	// smallest observed marginal, which caps the whitening distortion
	// of the rarest item.
	Smoothing float64
}

// Result carries the canonical correlations and the projection for the
// first (row) view.
type Result struct {
	// Correlations are the canonical correlation values in descending
	// order. In the noiseless case they lie in [0, 1].
	Correlations []float64

	// Rank is the achieved dimension. It can be below the requested
	// dimension when the solver could not separate the spectrum; the
	// result is then truncated, never padded.
	Rank int

	// Projection is the row-view projection: one row per row-view
	// feature, one column per achieved dimension. Row i is feature i's
	// vector, at the scale the solver returned.
	Projection *mat.Dense

	// SmoothingUsed is the smoothing constant that was applied.
	SmoothingUsed float64
}

// PerformCCA computes CCA from a pre-aggregated cross-covariance
// matrix (rows = x features, columns = y features) and the two
// marginal variance vectors.
func (e *Engine) PerformCCA(covariance *sparse.Matrix, varianceX []float64, varianceY []float64) (*Result, error) {
	rows, cols := covariance.Dims()
	if len(varianceX) != rows || len(varianceY) != cols {
		return nil, fmt.Errorf("variance lengths (%d, %d) do not match covariance dims %dx%d",
			len(varianceX), len(varianceY), rows, cols)
	}
	minDim := rows
	if cols < minDim {
		minDim = cols
	}
	if e.Dim < 1 || e.Dim > minDim {
		return nil, fmt.Errorf("cca dimension %d out of range for %dx%d covariance", e.Dim, rows, cols)
	}

	kappa := e.Smoothing
	if kappa < 0 {
		kappa = deriveSmoothing(varianceX, varianceY)
	}

	correlation, err := correlationMatrix(covariance, varianceX, varianceY, kappa)
	if err != nil {
		return nil, err
	}

	solver := &svd.TruncatedSVD{K: e.Dim}
	decomposition, err := solver.Solve(correlation)
	if err != nil {
		return nil, fmt.Errorf("failed to decompose correlation matrix: %w", err)
	}

	return &Result{
		Correlations:  decomposition.Values,
		Rank:          decomposition.Rank,
		Projection:    decomposition.Left,
		SmoothingUsed: kappa,
	}, nil
}

// PerformCCAFromSamples computes CCA from raw paired samples, each a
// sparse vector keyed by feature index. Covariance and variance sums
// are accumulated first; the sample count only confirms the pairing,
// since the correlations are invariant to uniform scaling.
func (e *Engine) PerformCCAFromSamples(samplesX []map[int]float64, samplesY []map[int]float64) (*Result, error) {
	if len(samplesX) != len(samplesY) {
		return nil, fmt.Errorf("mismatched sample counts: %d x samples vs %d y samples",
			len(samplesX), len(samplesY))
	}

	dimX := 0
	dimY := 0
	for _, x := range samplesX {
		for i := range x {
			if i+1 > dimX {
				dimX = i + 1
			}
		}
	}
	for _, y := range samplesY {
		for j := range y {
			if j+1 > dimY {
				dimY = j + 1
			}
		}
	}

	covariance := sparse.NewMatrix(dimX, dimY)
	varianceX := make([]float64, dimX)
	varianceY := make([]float64, dimY)
	for s := range samplesX {
		for i, xv := range samplesX[s] {
			varianceX[i] += xv * xv
			for j, yv := range samplesY[s] {
				covariance.Add(i, j, xv*yv)
			}
		}
		for j, yv := range samplesY[s] {
			varianceY[j] += yv * yv
		}
	}

	return e.PerformCCA(covariance, varianceX, varianceY)
}

// The whitened correlation matrix:
// M[i][j] = cov[i][j] / sqrt((varX[i] + kappa) * (varY[j] + kappa)).
func correlationMatrix(covariance *sparse.Matrix, varianceX []float64, varianceY []float64, kappa float64) (*sparse.Matrix, error) {
	rows, cols := covariance.Dims()
	scaleX := make([]float64, rows)
	for i, v := range varianceX {
		d := v + kappa
		if d <= 0 {
			return nil, fmt.Errorf("nonpositive smoothed x variance %g at index %d", d, i)
		}
		scaleX[i] = d
	}
	scaleY := make([]float64, cols)
	for j, v := range varianceY {
		d := v + kappa
		if d <= 0 {
			return nil, fmt.Errorf("nonpositive smoothed y variance %g at index %d", d, j)
		}
		scaleY[j] = d
	}

	correlation := sparse.NewMatrix(rows, cols)
	for c := 0; c < cols; c++ {
		for r, v := range covariance.Column(c) {
			correlation.Set(r, c, v/math.Sqrt(scaleX[r]*scaleY[c]))
		}
	}
	return correlation, nil
}

// The smallest observed marginal across both views.
func deriveSmoothing(varianceX []float64, varianceY []float64) float64 {
	smallest := 0.0
	first := true
	for _, v := range varianceX {
		if first || v < smallest {
			smallest = v
			first = false
		}
	}
	for _, v := range varianceY {
		if first || v < smallest {
			smallest = v
			first = false
		}
	}
	if first {
		return 0.0
	}
	return smallest
}

