package palette

import (
	"fmt"
	"math"
	"math/rand"
)

// Defaults used by the service: three clusters (hair, skin, eyes by catalog
// convention).
const (
	DefaultK             = 3
	DefaultSeed          = 42
	DefaultMaxIterations = 300
	DefaultTolerance     = 1e-4
)

// Extractor produces a signature from a normalized raster.
type Extractor interface {
	Extract(img RasterImage) (Signature, error)
}

// KMeans extracts dominant colors with Lloyd's algorithm seeded by k-means++.
// A KMeans value is never mutated by Extract, so one instance may serve
// concurrent callers.
type KMeans struct {
	// K is the number of clusters (and signature length).
	K int
	// MaxIterations caps the Lloyd loop.
	MaxIterations int
	// Tolerance stops iterating once no centroid moves farther than this.
	Tolerance float64
	// Seed drives initialization; equal seeds give equal signatures.
	Seed int64
	// Strict fails images with fewer distinct colors than K instead of
	// returning duplicate centroids.
	Strict bool
}

var _ Extractor = (*KMeans)(nil) // ensures we conform to the Extractor interface

// NewKMeans creates an extractor with default iteration settings.
func NewKMeans(k int, seed int64) *KMeans {
	return &KMeans{
		K:             k,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
		Seed:          seed,
	}
}

// Extract clusters every pixel of img and returns the K centroids in cluster
// index order. The order follows initialization and is not sorted by any
// external criterion.
func (km *KMeans) Extract(img RasterImage) (Signature, error) {
	if km.K < 1 {
		return Signature{}, fmt.Errorf("%w, got %d", ErrInvalidK, km.K)
	}

	n := img.Len()
	if n == 0 {
		return Signature{}, fmt.Errorf("%w: empty raster", ErrDecode)
	}

	if km.Strict && countDistinct(img, km.K) < km.K {
		return Signature{}, fmt.Errorf("%w: k=%d", ErrDegenerateInput, km.K)
	}

	points := make([]Color, n)
	for i := range points {
		points[i] = img.At(i)
	}

	rng := rand.New(rand.NewSource(km.Seed))
	centroids := initPlusPlus(points, km.K, rng)
	assignments := make([]int, n)

	maxIter := km.MaxIterations
	if maxIter < 1 {
		maxIter = 1
	}

	for iter := 0; iter < maxIter; iter++ {
		for i, p := range points {
			assignments[i] = nearest(p, centroids)
		}

		next := recompute(points, assignments, centroids)

		movement := 0.0
		for i := range centroids {
			movement = math.Max(movement, centroids[i].Distance(next[i]))
		}

		centroids = next
		if movement < km.Tolerance {
			break
		}
	}

	return Signature{colors: centroids}, nil
}

//--------------------------------------------------------------------------------
// private

// initPlusPlus picks the first centroid uniformly and each following one with
// probability proportional to its squared distance from the closest chosen
// centroid. When every point coincides with a chosen centroid the remaining
// centroids duplicate a random point.
func initPlusPlus(points []Color, k int, rng *rand.Rand) []Color {
	centroids := make([]Color, 0, k)
	centroids = append(centroids, points[rng.Intn(len(points))])

	dists := make([]float64, len(points))
	for len(centroids) < k {
		total := 0.0
		for i, p := range points {
			d := math.MaxFloat64
			for _, c := range centroids {
				d = math.Min(d, p.SquaredDistance(c))
			}
			dists[i] = d
			total += d
		}

		if total == 0 {
			centroids = append(centroids, points[rng.Intn(len(points))])
			continue
		}

		target := rng.Float64() * total
		chosen := -1
		lastPositive := 0
		cumulative := 0.0
		for i, d := range dists {
			if d == 0 {
				continue
			}
			lastPositive = i
			cumulative += d
			if cumulative >= target {
				chosen = i
				break
			}
		}

		// rounding can leave cumulative just short of target
		if chosen < 0 {
			chosen = lastPositive
		}

		centroids = append(centroids, points[chosen])
	}

	return centroids
}

// nearest returns the closest centroid; ties go to the lowest index.
func nearest(p Color, centroids []Color) int {
	best := 0
	bestDist := math.MaxFloat64
	for i, c := range centroids {
		d := p.SquaredDistance(c)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// recompute moves each centroid to the mean of its points. An empty cluster
// is re-seeded to the point farthest from its assigned centroid.
func recompute(points []Color, assignments []int, centroids []Color) []Color {
	k := len(centroids)
	sums := make([]Color, k)
	counts := make([]int, k)

	for i, p := range points {
		c := assignments[i]
		sums[c][0] += p[0]
		sums[c][1] += p[1]
		sums[c][2] += p[2]
		counts[c]++
	}

	next := make([]Color, k)
	taken := map[int]bool{}
	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			n := float64(counts[c])
			next[c] = Color{sums[c][0] / n, sums[c][1] / n, sums[c][2] / n}
			continue
		}

		idx := farthest(points, assignments, centroids, taken)
		taken[idx] = true
		next[c] = points[idx]
	}

	return next
}

func farthest(points []Color, assignments []int, centroids []Color, taken map[int]bool) int {
	best := 0
	bestDist := -1.0
	for i, p := range points {
		if taken[i] {
			continue
		}
		d := p.SquaredDistance(centroids[assignments[i]])
		if d > bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// countDistinct stops counting once limit distinct colors have been seen.
func countDistinct(img RasterImage, limit int) int {
	seen := map[[3]uint8]struct{}{}
	for i := 0; i+2 < len(img.Pix) && len(seen) < limit; i += 3 {
		seen[[3]uint8{img.Pix[i], img.Pix[i+1], img.Pix[i+2]}] = struct{}{}
	}
	return len(seen)
}
