package palette

import (
	"fmt"
	"math"
	"sort"
)

// Metric measures the dissimilarity of two signatures of equal length.
type Metric func(a, b Signature) (float64, error)

// Metric names accepted by MetricByName.
const (
	MetricAligned    = "aligned"
	MetricAssignment = "assignment"
)

var metrics = map[string]Metric{
	MetricAligned:    Distance,
	MetricAssignment: AssignmentDistance,
}

// MetricByName looks up a registered metric.
func MetricByName(name string) (Metric, error) {
	m, ok := metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown match strategy: %s (valid: %v)", name, MetricNames())
	}
	return m, nil
}

// MetricNames lists the registered metric names in order.
func MetricNames() []string {
	names := make([]string, 0, len(metrics))
	for n := range metrics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Distance sums the Euclidean distances between colors at the same index.
//
// The comparison is index aligned and therefore not permutation invariant:
// it assumes both signatures list their clusters in a consistent order, which
// k-means does not guarantee across different images. AssignmentDistance
// removes that assumption.
func Distance(a, b Signature) (float64, error) {
	if err := checkLengths(a, b); err != nil {
		return 0, err
	}

	total := 0.0
	for i := range a.colors {
		total += a.colors[i].Distance(b.colors[i])
	}
	return total, nil
}

// AssignmentDistance pairs each color of a with a distinct color of b so that
// the summed Euclidean distance is minimal, and returns that sum.
func AssignmentDistance(a, b Signature) (float64, error) {
	if err := checkLengths(a, b); err != nil {
		return 0, err
	}

	n := a.Len()
	cost := make([][]float64, n)
	for i := range cost {
		cost[i] = make([]float64, n)
		for j := range cost[i] {
			cost[i][j] = a.colors[i].Distance(b.colors[j])
		}
	}

	total := 0.0
	for i, j := range minCostAssignment(cost) {
		total += cost[i][j]
	}
	return total, nil
}

//--------------------------------------------------------------------------------
// private

func checkLengths(a, b Signature) error {
	if a.Len() != b.Len() {
		return &LengthMismatchError{Want: a.Len(), Got: b.Len()}
	}
	return nil
}

// minCostAssignment solves the square assignment problem with the Hungarian
// method (potentials variant, O(n^3)). The result maps row i to its column.
func minCostAssignment(cost [][]float64) []int {
	n := len(cost)
	// 1-based: index 0 is the virtual starting column
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	match := make([]int, n+1) // match[col] = row
	way := make([]int, n+1)

	for row := 1; row <= n; row++ {
		match[0] = row
		col0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}

		for {
			used[col0] = true
			r := match[col0]
			delta := math.Inf(1)
			col1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[r-1][j-1] - u[r] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = col0
				}
				if minv[j] < delta {
					delta = minv[j]
					col1 = j
				}
			}

			for j := 0; j <= n; j++ {
				if used[j] {
					u[match[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			col0 = col1
			if match[col0] == 0 {
				break
			}
		}

		for col0 != 0 {
			col1 := way[col0]
			match[col0] = match[col1]
			col0 = col1
		}
	}

	rows := make([]int, n)
	for j := 1; j <= n; j++ {
		rows[match[j]-1] = j - 1
	}
	return rows
}
