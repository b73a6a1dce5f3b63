package ensemble

import (
	"math"

	"github.com/YuminosukeSato/co2stack/core/parallel"
)

// Node is a single node of a regression tree.
type Node struct {
	LeftChild  int // -1 for leaves
	RightChild int // -1 for leaves
	Depth      int

	// Split information (internal nodes)
	SplitFeature int
	Threshold    float64 // x <= Threshold goes left
	BinThreshold uint8
	DefaultLeft  bool // direction of missing values
	Gain         float64

	// Leaf information
	LeafValue float64
	Count     int
}

// IsLeaf returns true if the node has no children.
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is a binary regression tree stored as a flat node slice; the root is
// Nodes[0]. Leaf values already include the learning rate.
type Tree struct {
	Nodes     []Node
	NumLeaves int
	MaxDepth  int
}

// Predict returns the leaf value reached by a single sample.
func (t *Tree) Predict(features []float64) float64 {
	id := 0
	for {
		node := &t.Nodes[id]
		if node.IsLeaf() {
			return node.LeafValue
		}
		v := features[node.SplitFeature]
		switch {
		case math.IsNaN(v):
			if node.DefaultLeft {
				id = node.LeftChild
			} else {
				id = node.RightChild
			}
		case v <= node.Threshold:
			id = node.LeftChild
		default:
			id = node.RightChild
		}
	}
}

// histBin accumulates gradient statistics of one bin. With squared error
// every hessian is 1, so Count doubles as the hessian sum.
type histBin struct {
	SumGrad float64
	Count   int
}

// growParams are the tree-level hyperparameters of the booster.
type growParams struct {
	maxLeafNodes   int
	maxDepth       int // 0 = unlimited
	minSamplesLeaf int
	l2             float64
	learningRate   float64
}

// splitInfo describes the best split found for a node.
type splitInfo struct {
	valid       bool
	feature     int
	bin         uint8
	missingLeft bool
	gain        float64
}

// growingNode is a leaf that may still be split.
type growingNode struct {
	id      int
	samples []int
	sumGrad float64
	hist    [][]histBin
	split   splitInfo
}

// treeGrower grows a single tree best-first on binned data: the leaf with the
// largest gain is split until maxLeafNodes leaves exist or no leaf can be
// split.
type treeGrower struct {
	binned [][]uint8
	mapper *BinMapper
	grad   []float64
	params growParams
	tree   *Tree
}

func newTreeGrower(binned [][]uint8, mapper *BinMapper, grad []float64, params growParams) *treeGrower {
	return &treeGrower{
		binned: binned,
		mapper: mapper,
		grad:   grad,
		params: params,
		tree:   &Tree{},
	}
}

// grow builds the tree from the given sample indices and adds every leaf
// value to raw for the samples that reach it.
func (g *treeGrower) grow(samples []int, raw []float64) *Tree {
	root := g.newNode(samples, 0, g.buildHistograms(samples))

	open := []*growingNode{root}
	leaves := 1
	var final []*growingNode
	for len(open) > 0 {
		best := 0
		for i, n := range open {
			if n.split.gain > open[best].split.gain {
				best = i
			}
		}
		node := open[best]
		open = append(open[:best], open[best+1:]...)

		if !node.split.valid || leaves >= g.params.maxLeafNodes {
			final = append(final, node)
			continue
		}

		left, right := g.splitNode(node)
		leaves++
		open = append(open, left, right)
	}

	for _, n := range final {
		g.finalizeLeaf(n, raw)
	}
	g.tree.NumLeaves = len(final)
	return g.tree
}

// newNode appends a node to the tree and searches its best split.
func (g *treeGrower) newNode(samples []int, depth int, hist [][]histBin) *growingNode {
	sumGrad := 0.0
	for _, i := range samples {
		sumGrad += g.grad[i]
	}
	g.tree.Nodes = append(g.tree.Nodes, Node{
		LeftChild:  -1,
		RightChild: -1,
		Depth:      depth,
		Count:      len(samples),
	})
	if depth > g.tree.MaxDepth {
		g.tree.MaxDepth = depth
	}

	n := &growingNode{
		id:      len(g.tree.Nodes) - 1,
		samples: samples,
		sumGrad: sumGrad,
		hist:    hist,
	}
	if g.canSplit(len(samples), depth) {
		n.split = g.findBestSplit(n)
	}
	return n
}

func (g *treeGrower) canSplit(nSamples, depth int) bool {
	if g.params.maxDepth > 0 && depth >= g.params.maxDepth {
		return false
	}
	return nSamples >= 2*g.params.minSamplesLeaf
}

// buildHistograms builds one histogram per feature for the given samples.
// The last slot of every histogram holds missing values.
func (g *treeGrower) buildHistograms(samples []int) [][]histBin {
	nFeatures := len(g.binned)
	hist := make([][]histBin, nFeatures)
	parallel.ParallelizeWithThreshold(nFeatures, 4, func(start, end int) {
		for f := start; f < end; f++ {
			h := make([]histBin, g.mapper.MaxBins+1)
			col := g.binned[f]
			for _, i := range samples {
				b := &h[col[i]]
				b.SumGrad += g.grad[i]
				b.Count++
			}
			hist[f] = h
		}
	})
	return hist
}

// subtractHistograms derives a sibling histogram from its parent.
func subtractHistograms(parent, child [][]histBin) [][]histBin {
	out := make([][]histBin, len(parent))
	for f := range parent {
		out[f] = make([]histBin, len(parent[f]))
		for b := range parent[f] {
			out[f][b] = histBin{
				SumGrad: parent[f][b].SumGrad - child[f][b].SumGrad,
				Count:   parent[f][b].Count - child[f][b].Count,
			}
		}
	}
	return out
}

func (g *treeGrower) score(sumGrad float64, count int) float64 {
	return sumGrad * sumGrad / (float64(count) + g.params.l2)
}

// findBestSplit scans every bin boundary of every feature. Missing values
// are tried on both sides when present; otherwise they follow the larger
// child at prediction time.
func (g *treeGrower) findBestSplit(n *growingNode) splitInfo {
	total := len(n.samples)
	parentScore := g.score(n.sumGrad, total)
	minLeaf := g.params.minSamplesLeaf
	missing := g.mapper.MissingBin()

	best := splitInfo{}
	for f, h := range n.hist {
		nBins := g.mapper.NBins(f)
		miss := h[missing]
		directions := []bool{false}
		if miss.Count > 0 {
			directions = []bool{true, false}
		}

		for _, missingLeft := range directions {
			var leftGrad float64
			var leftCount int
			if missingLeft {
				leftGrad, leftCount = miss.SumGrad, miss.Count
			}
			// with missing values present and sent right, the last candidate
			// puts every non-missing value left
			last := nBins - 1
			if !missingLeft && miss.Count > 0 {
				last = nBins
			}
			for b := 0; b < last; b++ {
				leftGrad += h[b].SumGrad
				leftCount += h[b].Count
				rightCount := total - leftCount
				if leftCount < minLeaf {
					continue
				}
				if rightCount < minLeaf {
					break
				}
				rightGrad := n.sumGrad - leftGrad
				gain := g.score(leftGrad, leftCount) + g.score(rightGrad, rightCount) - parentScore
				if gain > best.gain {
					best = splitInfo{
						valid:       true,
						feature:     f,
						bin:         uint8(b),
						missingLeft: missingLeft,
						gain:        gain,
					}
					if miss.Count == 0 {
						best.missingLeft = leftCount >= rightCount
					}
				}
			}
		}
	}
	return best
}

// splitNode partitions the samples of n and creates its two children. The
// smaller child gets a fresh histogram; the larger one is derived by
// subtraction.
func (g *treeGrower) splitNode(n *growingNode) (*growingNode, *growingNode) {
	s := n.split
	col := g.binned[s.feature]
	missing := g.mapper.MissingBin()

	left := make([]int, 0, len(n.samples))
	right := make([]int, 0, len(n.samples))
	for _, i := range n.samples {
		b := col[i]
		goLeft := b <= s.bin
		if b == missing {
			goLeft = s.missingLeft
		}
		if goLeft {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	var leftHist, rightHist [][]histBin
	if len(left) <= len(right) {
		leftHist = g.buildHistograms(left)
		rightHist = subtractHistograms(n.hist, leftHist)
	} else {
		rightHist = g.buildHistograms(right)
		leftHist = subtractHistograms(n.hist, rightHist)
	}
	n.hist = nil

	depth := g.tree.Nodes[n.id].Depth + 1
	l := g.newNode(left, depth, leftHist)
	r := g.newNode(right, depth, rightHist)

	node := &g.tree.Nodes[n.id]
	node.LeftChild = l.id
	node.RightChild = r.id
	node.SplitFeature = s.feature
	node.BinThreshold = s.bin
	node.Threshold = math.Inf(1)
	if th := g.mapper.Thresholds[s.feature]; int(s.bin) < len(th) {
		node.Threshold = th[s.bin]
	}
	node.DefaultLeft = s.missingLeft
	node.Gain = s.gain
	return l, r
}

// finalizeLeaf sets the shrunk Newton step as the leaf value and applies it
// to the raw predictions of the leaf's samples.
func (g *treeGrower) finalizeLeaf(n *growingNode, raw []float64) {
	value := -g.params.learningRate * n.sumGrad / (float64(len(n.samples)) + g.params.l2)
	g.tree.Nodes[n.id].LeafValue = value
	for _, i := range n.samples {
		raw[i] += value
	}
}
