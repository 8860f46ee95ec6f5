package anomaly

import (
	"math"
	"math/rand"
	"sort"
)

// Isolation forest over a single feature. Anomalous points isolate in fewer
// random splits, giving them shorter expected path lengths and scores closer
// to 1. The fixed seed keeps runs reproducible.
const (
	numTrees     = 100
	maxSubsample = 256
)

type isoNode struct {
	split       float64
	left, right *isoNode
	size        int // leaf only
}

type isoForest struct {
	trees     []*isoNode
	subsample int
}

func fitIsolationForest(values []float64, seed int64) *isoForest {
	rng := rand.New(rand.NewSource(seed))

	subsample := len(values)
	if subsample > maxSubsample {
		subsample = maxSubsample
	}
	heightLimit := int(math.Ceil(math.Log2(float64(subsample))))

	f := &isoForest{
		trees:     make([]*isoNode, numTrees),
		subsample: subsample,
	}
	for t := 0; t < numTrees; t++ {
		sample := sampleWithoutReplacement(values, subsample, rng)
		f.trees[t] = buildTree(sample, 0, heightLimit, rng)
	}
	return f
}

func sampleWithoutReplacement(values []float64, n int, rng *rand.Rand) []float64 {
	perm := rng.Perm(len(values))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = values[perm[i]]
	}
	return out
}

func buildTree(values []float64, depth, limit int, rng *rand.Rand) *isoNode {
	if len(values) <= 1 || depth >= limit {
		return &isoNode{size: len(values)}
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return &isoNode{size: len(values)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right []float64
	for _, v := range values {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}

	return &isoNode{
		split: split,
		left:  buildTree(left, depth+1, limit, rng),
		right: buildTree(right, depth+1, limit, rng),
	}
}

// pathLength follows a value down a tree, extending leaf depth by the
// average path length of the points left unseparated there.
func pathLength(node *isoNode, v float64, depth int) float64 {
	if node.left == nil {
		return float64(depth) + avgPathLength(node.size)
	}
	if v < node.split {
		return pathLength(node.left, v, depth+1)
	}
	return pathLength(node.right, v, depth+1)
}

// avgPathLength is c(n), the average path length of an unsuccessful BST
// search over n points.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649 // Euler-Mascheroni
	return 2*h - 2*float64(n-1)/float64(n)
}

// score returns the anomaly score in (0, 1); higher is more anomalous.
func (f *isoForest) score(v float64) float64 {
	total := 0.0
	for _, tree := range f.trees {
		total += pathLength(tree, v, 0)
	}
	mean := total / float64(len(f.trees))
	return math.Pow(2, -mean/avgPathLength(f.subsample))
}

// isOutlier reports whether values[idx] scores strictly above the
// (1 - contamination) quantile of the whole series' scores. The strict
// comparison keeps constant series from flagging themselves.
func (f *isoForest) isOutlier(values []float64, idx int, contamination float64) bool {
	scores := make([]float64, len(values))
	for i, v := range values {
		scores[i] = f.score(v)
	}
	target := scores[idx]

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	cutoff := quantile(sorted, 1-contamination)

	return target > cutoff
}

// quantile interpolates linearly over a sorted slice, q in [0, 1].
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
