package forest

import (
	"math"
	"sort"
)

const leaf = -1

// Tree is a fitted CART regression tree stored as parallel node arrays.
// Node 0 is the root. A node with Feature == -1 is a leaf holding Value.
// Otherwise samples with x[Feature] <= Threshold go Left.
type Tree struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Value     []float64 `json:"value"`
}

// Predict walks x down the tree.
func (t *Tree) Predict(x []float64) float64 {
	n := 0
	for t.Feature[n] != leaf {
		if x[t.Feature[n]] <= t.Threshold[n] {
			n = t.Left[n]
		} else {
			n = t.Right[n]
		}
	}
	return t.Value[n]
}

// Nodes returns the number of nodes.
func (t *Tree) Nodes() int {
	return len(t.Feature)
}

// Depth returns the longest root-to-leaf edge count.
func (t *Tree) Depth() int {
	var walk func(n, d int) int
	walk = func(n, d int) int {
		if t.Feature[n] == leaf {
			return d
		}
		l, r := walk(t.Left[n], d+1), walk(t.Right[n], d+1)
		if l > r {
			return l
		}
		return r
	}
	if t.Nodes() == 0 {
		return 0
	}
	return walk(0, 0)
}

func (t *Tree) valid(numFeatures int) bool {
	n := len(t.Feature)
	if n == 0 || len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n || len(t.Value) != n {
		return false
	}
	for i := 0; i < n; i++ {
		if t.Feature[i] == leaf {
			continue
		}
		if t.Feature[i] < 0 || t.Feature[i] >= numFeatures {
			return false
		}
		// children are appended after their parent, so indices only grow; this also rules out cycles
		if t.Left[i] <= i || t.Left[i] >= n || t.Right[i] <= i || t.Right[i] >= n {
			return false
		}
	}
	return true
}

type treeBuilder struct {
	x               [][]float64
	y               []float64
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	tree            *Tree
}

func (b *treeBuilder) addNode() int {
	t := b.tree
	t.Feature = append(t.Feature, leaf)
	t.Threshold = append(t.Threshold, 0)
	t.Left = append(t.Left, leaf)
	t.Right = append(t.Right, leaf)
	t.Value = append(t.Value, 0)
	return len(t.Feature) - 1
}

func (b *treeBuilder) build(samples []int, depth int) int {
	node := b.addNode()
	mean, sse := meanSSE(b.y, samples)
	b.tree.Value[node] = mean

	if depth >= b.maxDepth || len(samples) < b.minSamplesSplit || len(samples) < 2*b.minSamplesLeaf || sse <= 1e-12 {
		return node
	}
	s, ok := b.bestSplit(samples)
	if !ok {
		return node
	}

	left := make([]int, 0, len(samples))
	right := make([]int, 0, len(samples))
	for _, i := range samples {
		if b.x[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.tree.Feature[node] = s.feature
	b.tree.Threshold[node] = s.threshold
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.tree.Left[node] = l
	b.tree.Right[node] = r
	return node
}

type split struct {
	feature   int
	threshold float64
	cost      float64
}

// bestSplit scans every feature for the threshold minimising the summed
// squared error of both children. Ties keep the earliest feature and position.
func (b *treeBuilder) bestSplit(samples []int) (split, bool) {
	n := len(samples)
	best := split{cost: math.Inf(1)}
	found := false
	order := make([]int, n)
	numFeatures := len(b.x[samples[0]])

	var totalSum, totalSq float64
	for _, i := range samples {
		totalSum += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}

	for f := 0; f < numFeatures; f++ {
		copy(order, samples)
		sort.SliceStable(order, func(a, c int) bool {
			return b.x[order[a]][f] < b.x[order[c]][f]
		})
		var leftSum, leftSq float64
		for k := 1; k < n; k++ {
			yi := b.y[order[k-1]]
			leftSum += yi
			leftSq += yi * yi
			if k < b.minSamplesLeaf || n-k < b.minSamplesLeaf {
				continue
			}
			lo, hi := b.x[order[k-1]][f], b.x[order[k]][f]
			if lo >= hi {
				continue
			}
			nl, nr := float64(k), float64(n-k)
			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			cost := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if cost < best.cost {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, cost: cost}
				found = true
			}
		}
	}
	return best, found
}

func meanSSE(y []float64, samples []int) (float64, float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, i := range samples {
		sum += y[i]
	}
	mean := sum / float64(len(samples))
	var sse float64
	for _, i := range samples {
		d := y[i] - mean
		sse += d * d
	}
	return mean, sse
}
