// Package kmeans groups word vectors with Lloyd's algorithm. Seeding
// is explicit and there is no random restart, so a fixed input always
// produces the same clustering.
package kmeans

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Assignment is the outcome of a clustering run.
type Assignment struct {
	// Cluster[i] is the cluster index of point i.
	Cluster []int

	// Centroids holds the final cluster centers, one per row.
	Centroids *mat.Dense

	// Iterations is the number of Lloyd rounds that ran.
	Iterations int
}

const defaultMaxIterations = 100

// Cluster partitions the rows of points into len(seeds) groups. Each
// seed is a row index whose vector becomes an initial centroid. Ties
// go to the lowest cluster index; a cluster that loses all its points
// keeps its previous centroid.
func Cluster(points *mat.Dense, seeds []int, maxIterations int) (*Assignment, error) {
	m, d := points.Dims()
	k := len(seeds)
	if k < 1 {
		return nil, fmt.Errorf("need at least one seed")
	}
	if k > m {
		return nil, fmt.Errorf("cannot form %d clusters from %d points", k, m)
	}
	for _, s := range seeds {
		if s < 0 || s >= m {
			return nil, fmt.Errorf("seed index %d out of range for %d points", s, m)
		}
	}
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	centroids := mat.NewDense(k, d, nil)
	for c, s := range seeds {
		for j := 0; j < d; j++ {
			centroids.Set(c, j, points.At(s, j))
		}
	}

	assignment := make([]int, m)
	for i := range assignment {
		assignment[i] = -1
	}
	iterations := 0
	for ; iterations < maxIterations; iterations++ {
		changed := false
		for i := 0; i < m; i++ {
			best := 0
			bestDistance := math.Inf(1)
			for c := 0; c < k; c++ {
				distance := squaredDistance(points, i, centroids, c)
				if distance < bestDistance {
					bestDistance = distance
					best = c
				}
			}
			if assignment[i] != best {
				assignment[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := mat.NewDense(k, d, nil)
		sizes := make([]int, k)
		for i := 0; i < m; i++ {
			c := assignment[i]
			sizes[c]++
			for j := 0; j < d; j++ {
				sums.Set(c, j, sums.At(c, j)+points.At(i, j))
			}
		}
		for c := 0; c < k; c++ {
			if sizes[c] == 0 {
				continue
			}
			for j := 0; j < d; j++ {
				centroids.Set(c, j, sums.At(c, j)/float64(sizes[c]))
			}
		}
	}

	return &Assignment{
		Cluster:    assignment,
		Centroids:  centroids,
		Iterations: iterations,
	}, nil
}

func squaredDistance(points *mat.Dense, i int, centroids *mat.Dense, c int) float64 {
	_, d := points.Dims()
	sum := 0.0
	for j := 0; j < d; j++ {
		diff := points.At(i, j) - centroids.At(c, j)
		sum += diff * diff
	}
	return sum
}
