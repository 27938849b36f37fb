package model

import (
	"math/rand"
	"sort"
)

const leafNode = -1

// Node is a flattened regression tree node. Leaves have Left == Right == -1.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left == leafNode {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
}

// treeBuilder grows a least-squares regression tree on target, then asks
// leafValue for the value stored in each leaf.
type treeBuilder struct {
	params    treeParams
	x         [][]float64
	target    []float64
	leafValue func(idx []int) float64
	features  []int
	tree      *Tree
}

func growTree(x [][]float64, target []float64, params treeParams, rng *rand.Rand, leafValue func(idx []int) float64) *Tree {
	nFeatures := 0
	if len(x) > 0 {
		nFeatures = len(x[0])
	}

	b := &treeBuilder{
		params:    params,
		x:         x,
		target:    target,
		leafValue: leafValue,
		features:  rng.Perm(nFeatures),
		tree:      &Tree{},
	}

	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	b.build(idx, 0)
	return b.tree
}

func (b *treeBuilder) build(idx []int, depth int) int {
	id := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Left: leafNode, Right: leafNode})

	if depth >= b.params.maxDepth || len(idx) < b.params.minSamplesSplit || b.pure(idx) {
		b.tree.Nodes[id].Value = b.leafValue(idx)
		return id
	}

	split, ok := b.bestSplit(idx)
	if !ok {
		b.tree.Nodes[id].Value = b.leafValue(idx)
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][split.feature] <= split.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.tree.Nodes[id].Feature = split.feature
	b.tree.Nodes[id].Threshold = split.threshold
	b.tree.Nodes[id].Left = l
	b.tree.Nodes[id].Right = r
	return id
}

func (b *treeBuilder) pure(idx []int) bool {
	first := b.target[idx[0]]
	for _, i := range idx[1:] {
		if b.target[i] != first {
			return false
		}
	}
	return true
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// bestSplit maximizes nL*nR/n * (meanL - meanR)^2, the reduction in squared
// error of the target.
func (b *treeBuilder) bestSplit(idx []int) (split, bool) {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += b.target[i]
	}

	best := split{gain: 1e-12}
	found := false
	sorted := make([]int, n)
	minLeaf := max(1, b.params.minSamplesLeaf)

	for _, f := range b.features {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.x[sorted[a]][f] < b.x[sorted[c]][f] })

		var leftSum float64
		for k := 0; k < n-1; k++ {
			leftSum += b.target[sorted[k]]
			nl := k + 1
			nr := n - nl
			lo, hi := b.x[sorted[k]][f], b.x[sorted[k+1]][f]
			if lo == hi || nl < minLeaf || nr < minLeaf {
				continue
			}

			meanL := leftSum / float64(nl)
			meanR := (total - leftSum) / float64(nr)
			diff := meanL - meanR
			gain := float64(nl) * float64(nr) / float64(n) * diff * diff
			if gain > best.gain {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, gain: gain}
				found = true
			}
		}
	}
	return best, found
}
