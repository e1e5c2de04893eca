// Package svd computes truncated singular value decompositions of
// sparse matrices with a Golub-Kahan-Lanczos bidiagonalization.
package svd

import (
	"fmt"
	"math"

	"github.com/jiangfeng1124/singular/lib/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// TruncatedSVD computes up to K singular triplets of a sparse matrix.
// The expansion uses a deterministic all-ones starting vector and full
// reorthogonalization; there are no random restarts, so results are
// reproducible for a fixed input.
//
// The achieved rank is authoritative and can be smaller than K: when
// the leading singular values have no usable eigengap, the Krylov
// space collapses early and the solver returns only the triplets it
// could separate. Callers must inspect Result.Rank rather than assume
// success. An all-zero input yields rank 0 and no singular values.
type TruncatedSVD struct {
	// The number of singular triplets to compute.
	K int

	// MaxIterations caps the number of Lanczos steps. Zero selects
	// K + max(K, 32), which is exact on small matrices and a
	// reasonable budget on large ones.
	MaxIterations int

	// Components holds the left singular vectors of the most recent
	// Solve, one column per achieved dimension.
	Components *mat.Dense
}

// Result is the outcome of a truncated decomposition.
type Result struct {
	// Rank is the number of triplets actually achieved, never more
	// than requested or than min(rows, cols).
	Rank int

	// Values are the singular values in descending order, length Rank.
	Values []float64

	// Left is rows x Rank, Right is cols x Rank. Both are nil when
	// Rank is 0.
	Left  *mat.Dense
	Right *mat.Dense
}

const (
	// A beta or alpha below this ends the Krylov expansion.
	breakdownTol = 1e-12
	// Relative residual bound for accepting a Ritz triplet.
	residualTol = 1e-6
)

// Solve factors m, returning the top triplets. The requested rank must
// be between 1 and min(rows, cols).
func (t *TruncatedSVD) Solve(m *sparse.Matrix) (*Result, error) {
	rows, cols := m.Dims()
	minDim := rows
	if cols < minDim {
		minDim = cols
	}
	if t.K < 1 || t.K > minDim {
		return nil, fmt.Errorf("requested rank %d out of range for %dx%d matrix", t.K, rows, cols)
	}

	steps := t.MaxIterations
	if steps <= 0 {
		extra := t.K
		if extra < 32 {
			extra = 32
		}
		steps = t.K + extra
	}
	if steps < t.K {
		steps = t.K
	}
	if steps > minDim {
		steps = minDim
	}

	// Golub-Kahan bidiagonalization: A P = U B with B upper bidiagonal,
	// alphas on the diagonal and betas on the superdiagonal.
	p := make([]float64, cols)
	for i := range p {
		p[i] = 1.0
	}
	normalize(p)

	pVectors := [][]float64{append([]float64(nil), p...)}
	uVectors := make([][]float64, 0, steps)
	alphas := make([]float64, 0, steps)
	betas := make([]float64, 0, steps)

	u := make([]float64, rows)
	q := make([]float64, cols)
	danglingBeta := 0.0

	for j := 0; j < steps; j++ {
		m.MulVec(u, pVectors[j])
		if j > 0 {
			floats.AddScaled(u, -betas[j-1], uVectors[j-1])
		}
		reorthogonalize(u, uVectors)
		alpha := floats.Norm(u, 2)
		if alpha <= breakdownTol {
			// The remaining Krylov direction maps into the span we
			// already have. B is rectangular, len(alphas) x len(P).
			break
		}
		floats.Scale(1.0/alpha, u)
		uVectors = append(uVectors, append([]float64(nil), u...))
		alphas = append(alphas, alpha)

		m.MulTransVec(q, u)
		floats.AddScaled(q, -alpha, pVectors[j])
		reorthogonalize(q, pVectors)
		beta := floats.Norm(q, 2)
		if beta <= breakdownTol {
			// Invariant subspace reached; every Ritz triplet is exact.
			break
		}
		if j == steps-1 {
			// Step budget exhausted. The neglected beta feeds the
			// residual estimates below.
			danglingBeta = beta
			break
		}
		betas = append(betas, beta)
		floats.Scale(1.0/beta, q)
		pVectors = append(pVectors, append([]float64(nil), q...))
	}

	ja := len(alphas)
	if ja == 0 {
		// Degenerate outcome, e.g. a zero matrix: no triplets at all.
		t.Components = nil
		return &Result{Rank: 0, Values: []float64{}}, nil
	}

	// When alpha broke down we kept one more p vector than alphas and
	// B is rectangular; otherwise it is square.
	jb := len(pVectors)
	bidiagonal := mat.NewDense(ja, jb, nil)
	for i := 0; i < ja; i++ {
		bidiagonal.Set(i, i, alphas[i])
		if i < len(betas) {
			bidiagonal.Set(i, i+1, betas[i])
		}
	}

	var dense mat.SVD
	if ok := dense.Factorize(bidiagonal, mat.SVDThin); !ok {
		return nil, fmt.Errorf("failed to factorize projected %dx%d bidiagonal matrix", ja, jb)
	}
	values := dense.Values(nil)
	var uB, vB mat.Dense
	dense.UTo(&uB)
	dense.VTo(&vB)

	// Accept Ritz triplets from the top until the first one whose
	// residual estimate is too large. The estimate is the neglected
	// beta times the last component of the projected left vector;
	// it is exactly zero when the expansion ended in a breakdown.
	available := ja
	achieved := 0
	for i := 0; i < available && achieved < t.K; i++ {
		residual := danglingBeta * math.Abs(uB.At(ja-1, i))
		bound := residualTol
		if values[0] > 0 {
			bound = residualTol * values[0]
		}
		if residual > bound {
			break
		}
		achieved++
	}

	if achieved == 0 {
		t.Components = nil
		return &Result{Rank: 0, Values: []float64{}}, nil
	}

	left := mat.NewDense(rows, achieved, nil)
	for r := 0; r < rows; r++ {
		for i := 0; i < achieved; i++ {
			sum := 0.0
			for j := 0; j < ja; j++ {
				sum += uVectors[j][r] * uB.At(j, i)
			}
			left.Set(r, i, sum)
		}
	}
	right := mat.NewDense(cols, achieved, nil)
	for c := 0; c < cols; c++ {
		for i := 0; i < achieved; i++ {
			sum := 0.0
			for j := 0; j < jb; j++ {
				sum += pVectors[j][c] * vB.At(j, i)
			}
			right.Set(c, i, sum)
		}
	}

	t.Components = left
	return &Result{
		Rank:   achieved,
		Values: append([]float64(nil), values[:achieved]...),
		Left:   left,
		Right:  right,
	}, nil
}

func normalize(v []float64) {
	norm := floats.Norm(v, 2)
	if norm == 0.0 {
		return
	}
	floats.Scale(1.0/norm, v)
}

// Two classical Gram-Schmidt sweeps against the accumulated basis.
func reorthogonalize(v []float64, basis [][]float64) {
	for sweep := 0; sweep < 2; sweep++ {
		for _, w := range basis {
			c := floats.Dot(w, v)
			if c != 0.0 {
				floats.AddScaled(v, -c, w)
			}
		}
	}
}
