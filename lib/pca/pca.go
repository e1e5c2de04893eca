// Package pca rotates word vectors into their principal component
// basis so the coordinates are ordered by explained variance.
package pca

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Basis describes the transform applied by ChangeOfBasis.
type Basis struct {
	// Mean is the per-coordinate mean that was subtracted.
	Mean []float64

	// Components holds the principal directions as columns.
	Components *mat.Dense

	// Variances are the sample variances along each component, in
	// descending order.
	Variances []float64
}

// ChangeOfBasis mean-centers the rows of vectors and rotates them onto
// the principal components. The result has one row per input row and
// min(rows, cols) columns.
func ChangeOfBasis(vectors *mat.Dense) (*mat.Dense, *Basis, error) {
	m, d := vectors.Dims()
	if m == 0 || d == 0 {
		return nil, nil, fmt.Errorf("cannot rebase an empty %dx%d vector set", m, d)
	}

	mean := make([]float64, d)
	for j := 0; j < d; j++ {
		sum := 0.0
		for i := 0; i < m; i++ {
			sum += vectors.At(i, j)
		}
		mean[j] = sum / float64(m)
	}
	centered := mat.NewDense(m, d, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < d; j++ {
			centered.Set(i, j, vectors.At(i, j)-mean[j])
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return nil, nil, fmt.Errorf("failed to factorize %dx%d centered vectors", m, d)
	}
	values := svd.Values(nil)
	var components mat.Dense
	svd.VTo(&components)

	var rotated mat.Dense
	rotated.Mul(centered, &components)

	denominator := float64(m - 1)
	if m == 1 {
		denominator = 1.0
	}
	variances := make([]float64, len(values))
	for i, s := range values {
		variances[i] = s * s / denominator
	}

	return &rotated, &Basis{
		Mean:       mean,
		Components: &components,
		Variances:  variances,
	}, nil
}
