package kmeans

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func twoBlobs() *mat.Dense {
	return mat.NewDense(6, 2, []float64{
		0.0, 0.1,
		0.1, 0.0,
		0.1, 0.1,
		5.0, 5.1,
		5.1, 5.0,
		5.1, 5.1,
	})
}

func TestSeparatesTwoBlobs(t *testing.T) {
	points := twoBlobs()
	result, err := Cluster(points, []int{0, 3}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{0, 0, 0, 1, 1, 1}
	for i, c := range want {
		if result.Cluster[i] != c {
			t.Errorf("expected point %d in cluster %d but got %d", i, c, result.Cluster[i])
		}
	}
	if c := result.Centroids.At(0, 0); math.Abs(c-0.0667) > 1e-3 {
		t.Errorf("expected first centroid x near 0.0667 but got %g", c)
	}
	if c := result.Centroids.At(1, 0); math.Abs(c-5.0667) > 1e-3 {
		t.Errorf("expected second centroid x near 5.0667 but got %g", c)
	}
}

func TestSameSeedsGiveSameClustering(t *testing.T) {
	points := twoBlobs()
	first, err := Cluster(points, []int{1, 4}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Cluster(points, []int{1, 4}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range first.Cluster {
		if first.Cluster[i] != second.Cluster[i] {
			t.Errorf("clustering not deterministic at point %d: %d vs %d",
				i, first.Cluster[i], second.Cluster[i])
		}
	}
	if first.Iterations != second.Iterations {
		t.Errorf("iteration counts differ: %d vs %d", first.Iterations, second.Iterations)
	}
}

// Seeding both clusters inside one blob drains the second cluster on
// the first round; its centroid must stay where it was seeded instead
// of collapsing to the origin.
func TestEmptyClusterKeepsItsCentroid(t *testing.T) {
	points := mat.NewDense(3, 1, []float64{
		10.0,
		10.1,
		10.2,
	})
	result, err := Cluster(points, []int{0, 0}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Identical seeds tie on every point, so cluster 0 wins them all.
	for i, c := range result.Cluster {
		if c != 0 {
			t.Errorf("expected point %d in cluster 0 but got %d", i, c)
		}
	}
	if got := result.Centroids.At(1, 0); got != 10.0 {
		t.Errorf("expected the empty cluster to keep centroid 10.0 but got %g", got)
	}
}

func TestRejectsBadSeeds(t *testing.T) {
	points := twoBlobs()
	if _, err := Cluster(points, nil, 0); err == nil {
		t.Errorf("expected an error for no seeds")
	}
	if _, err := Cluster(points, []int{0, 6}, 0); err == nil {
		t.Errorf("expected an error for an out-of-range seed")
	}
	if _, err := Cluster(points, []int{0, 1, 2, 3, 4, 5, 0}, 0); err == nil {
		t.Errorf("expected an error for more clusters than points")
	}
}
