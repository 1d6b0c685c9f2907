package boost

import (
	"math"
	"sort"
)

// Node is one node of a regression tree, stored in a flat slice. Leaves
// carry the boosted weight in Value; internal nodes carry the
// cover-weighted mean of their subtree, which the contribution
// decomposition uses as the expected value at that node.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Cover     float64 `json:"cover"`
	Leaf      bool    `json:"leaf"`
}

// Tree is a single regression tree. Leaf values already include the
// learning rate.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict returns the tree's output for one feature vector. Rows route
// left when the feature value is below the threshold.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for !t.Nodes[i].Leaf {
		n := &t.Nodes[i]
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

// treeBuilder grows one tree against fixed gradient/hessian vectors.
type treeBuilder struct {
	X        [][]float64
	grad     []float64
	hess     []float64
	features []int // column subsample for this tree
	params   Params
	nodes    []Node
}

// thresholdL1 applies the L1 shrinkage to a gradient sum.
func thresholdL1(g, alpha float64) float64 {
	if g > alpha {
		return g - alpha
	}
	if g < -alpha {
		return g + alpha
	}
	return 0
}

// leafWeight is the optimal leaf value before the learning rate.
func (b *treeBuilder) leafWeight(g, h float64) float64 {
	return -thresholdL1(g, b.params.Alpha) / (h + b.params.Lambda)
}

// scoreGain is the structure score of a candidate child.
func (b *treeBuilder) scoreGain(g, h float64) float64 {
	t := thresholdL1(g, b.params.Alpha)
	return t * t / (h + b.params.Lambda)
}

// build grows the tree from the given row subsample and returns it with
// internal-node expected values filled in.
func (b *treeBuilder) build(rows []int) Tree {
	b.nodes = b.nodes[:0]
	b.grow(rows, 0)

	t := Tree{Nodes: b.nodes}
	fillExpectedValues(t.Nodes, 0)
	return t
}

// grow appends the node for rows and recurses; returns its index.
func (b *treeBuilder) grow(rows []int, depth int) int {
	var gSum, hSum float64
	for _, r := range rows {
		gSum += b.grad[r]
		hSum += b.hess[r]
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Cover: hSum})

	if depth < b.params.MaxDepth {
		if feat, thr, ok := b.bestSplit(rows, gSum, hSum); ok {
			var left, right []int
			for _, r := range rows {
				if b.X[r][feat] < thr {
					left = append(left, r)
				} else {
					right = append(right, r)
				}
			}

			l := b.grow(left, depth+1)
			r := b.grow(right, depth+1)
			b.nodes[idx].Feature = feat
			b.nodes[idx].Threshold = thr
			b.nodes[idx].Left = l
			b.nodes[idx].Right = r
			return idx
		}
	}

	b.nodes[idx].Leaf = true
	b.nodes[idx].Value = b.params.LearningRate * b.leafWeight(gSum, hSum)
	return idx
}

// bestSplit scans the tree's feature subsample for the highest-gain
// split satisfying the minimum child weight.
func (b *treeBuilder) bestSplit(rows []int, gSum, hSum float64) (feature int, threshold float64, ok bool) {
	parentScore := b.scoreGain(gSum, hSum)
	bestGain := 0.0

	vals := make([]float64, 0, len(rows))
	order := make([]int, 0, len(rows))

	for _, feat := range b.features {
		vals = vals[:0]
		order = order[:0]
		for _, r := range rows {
			vals = append(vals, b.X[r][feat])
			order = append(order, r)
		}
		sort.Sort(&byValue{vals: vals, rows: order})

		var gl, hl float64
		for i := 0; i < len(order)-1; i++ {
			gl += b.grad[order[i]]
			hl += b.hess[order[i]]
			if vals[i] == vals[i+1] {
				continue
			}
			gr := gSum - gl
			hr := hSum - hl
			if hl < b.params.MinChildWeight || hr < b.params.MinChildWeight {
				continue
			}

			gain := 0.5*(b.scoreGain(gl, hl)+b.scoreGain(gr, hr)-parentScore) - b.params.Gamma
			if gain > bestGain {
				bestGain = gain
				feature = feat
				threshold = midpoint(vals[i], vals[i+1])
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

// midpoint picks a split threshold between two adjacent sorted values.
func midpoint(a, c float64) float64 {
	m := a + (c-a)/2
	if m <= a || math.IsInf(m, 0) {
		return c
	}
	return m
}

// byValue sorts rows by feature value, keeping the two slices aligned.
type byValue struct {
	vals []float64
	rows []int
}

func (s *byValue) Len() int           { return len(s.vals) }
func (s *byValue) Less(i, j int) bool { return s.vals[i] < s.vals[j] }
func (s *byValue) Swap(i, j int) {
	s.vals[i], s.vals[j] = s.vals[j], s.vals[i]
	s.rows[i], s.rows[j] = s.rows[j], s.rows[i]
}

// fillExpectedValues sets each internal node's Value to the
// cover-weighted mean of its children, bottom-up.
func fillExpectedValues(nodes []Node, i int) float64 {
	n := &nodes[i]
	if n.Leaf {
		return n.Value
	}
	lv := fillExpectedValues(nodes, n.Left)
	rv := fillExpectedValues(nodes, n.Right)
	lc := nodes[n.Left].Cover
	rc := nodes[n.Right].Cover
	if lc+rc > 0 {
		n.Value = (lc*lv + rc*rv) / (lc + rc)
	} else {
		n.Value = (lv + rv) / 2
	}
	return n.Value
}
