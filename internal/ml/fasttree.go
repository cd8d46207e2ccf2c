package ml

import (
	"fmt"
	"math"
	"sort"
	"time"

	"creditcard-fraud/internal/data"

	"github.com/rs/zerolog/log"
)

// Columns added by a fitted FastTree model.
const (
	ScoreColumn          = "Score"
	ProbabilityColumn    = "Probability"
	PredictedLabelColumn = "PredictedLabel"
)

const (
	minHessianInLeaf = 1e-3
	probabilityEps   = 1e-6
)

// FastTreeOptions are the boosting hyperparameters.
type FastTreeOptions struct {
	LabelColumn           string
	FeatureColumn         string
	NumLeaves             int
	NumTrees              int
	MinDatapointsInLeaves int
	LearningRate          float64
	L2Regularization      float64
	MaxBins               int
}

// DefaultFastTreeOptions trains on Label/Features with 100 trees of 20 leaves.
func DefaultFastTreeOptions() FastTreeOptions {
	return FastTreeOptions{
		LabelColumn:           data.LabelColumn,
		FeatureColumn:         data.FeaturesColumn,
		NumLeaves:             20,
		NumTrees:              100,
		MinDatapointsInLeaves: 10,
		LearningRate:          0.2,
		MaxBins:               255,
	}
}

func (o FastTreeOptions) validate() error {
	switch {
	case o.LabelColumn == "" || o.FeatureColumn == "":
		return fmt.Errorf("label and feature columns are required")
	case o.NumLeaves < 2:
		return fmt.Errorf("numLeaves must be at least 2, got %d", o.NumLeaves)
	case o.NumTrees < 1:
		return fmt.Errorf("numTrees must be positive, got %d", o.NumTrees)
	case o.MinDatapointsInLeaves < 1:
		return fmt.Errorf("minDatapointsInLeaves must be positive, got %d", o.MinDatapointsInLeaves)
	case o.LearningRate <= 0:
		return fmt.Errorf("learningRate must be positive, got %f", o.LearningRate)
	case o.L2Regularization < 0:
		return fmt.Errorf("l2 regularization must not be negative")
	case o.MaxBins < 3 || o.MaxBins > 256:
		return fmt.Errorf("maxBins must be in [3, 256], got %d", o.MaxBins)
	}
	return nil
}

type fastTreeEstimator struct {
	opts FastTreeOptions
}

// FastTree returns a gradient boosted decision tree binary classifier.
// Trees are grown leaf-wise on quantile-binned features and fitted to the
// gradient of the logistic loss with Newton leaf values.
func FastTree(opts FastTreeOptions) Estimator {
	return fastTreeEstimator{opts: opts}
}

// RegressionTree is one boosted tree. Internal node i sends x to LeftChild[i]
// when x[SplitFeature[i]] <= Threshold[i]; NaN goes right. A negative child
// c refers to leaf ^c. A tree with no internal nodes has a single leaf.
type RegressionTree struct {
	SplitFeature []int     `json:"split_feature"`
	Threshold    []float64 `json:"threshold"`
	LeftChild    []int     `json:"left_child"`
	RightChild   []int     `json:"right_child"`
	LeafValues   []float64 `json:"leaf_values"`
}

// Leaf returns the leaf index for x.
func (t *RegressionTree) Leaf(x []float64) int {
	if len(t.SplitFeature) == 0 {
		return 0
	}
	node := 0
	for node >= 0 {
		if x[t.SplitFeature[node]] <= t.Threshold[node] {
			node = t.LeftChild[node]
		} else {
			node = t.RightChild[node]
		}
	}
	return ^node
}

// NumLeaves returns the number of leaves.
func (t *RegressionTree) NumLeaves() int {
	return len(t.LeafValues)
}

// FastTreeBinaryModel is a fitted boosted tree ensemble.
type FastTreeBinaryModel struct {
	FeatureColumn string           `json:"feature_column"`
	NumFeatures   int              `json:"num_features"`
	Bias          float64          `json:"bias"`
	Trees         []RegressionTree `json:"trees"`
	Gains         []float64        `json:"gains"` // total split gain per feature
	SplitCounts   []int            `json:"split_counts"`
}

// Score returns the raw margin for one feature vector.
func (m *FastTreeBinaryModel) Score(x []float64) float64 {
	s := m.Bias
	for i := range m.Trees {
		t := &m.Trees[i]
		s += t.LeafValues[t.Leaf(x)]
	}
	return s
}

// Transform adds the Score, Probability and PredictedLabel columns.
func (m *FastTreeBinaryModel) Transform(view *data.DataView) (*data.DataView, error) {
	features, err := view.Vector(m.FeatureColumn)
	if err != nil {
		return nil, err
	}
	rows, cols := features.Dims()
	if cols != m.NumFeatures {
		return nil, fmt.Errorf("fast tree: expected %d features, got %d", m.NumFeatures, cols)
	}

	score := make([]float64, rows)
	prob := make([]float64, rows)
	label := make([]float64, rows)
	for i := 0; i < rows; i++ {
		score[i] = m.Score(features.RawRowView(i))
		prob[i] = sigmoid(score[i])
		if score[i] > 0 {
			label[i] = 1
		}
	}

	out, err := view.WithScalar(data.Column{Name: ScoreColumn, Kind: data.Single, Index: -1}, score)
	if err != nil {
		return nil, err
	}
	if out, err = out.WithScalar(data.Column{Name: ProbabilityColumn, Kind: data.Single, Index: -1}, prob); err != nil {
		return nil, err
	}
	return out.WithScalar(data.Column{Name: PredictedLabelColumn, Kind: data.Boolean, Index: -1}, label)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Fit trains the ensemble.
func (e fastTreeEstimator) Fit(view *data.DataView) (Transformer, error) {
	opts := e.opts
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("fast tree: %w", err)
	}
	labels, err := view.Scalar(opts.LabelColumn)
	if err != nil {
		return nil, fmt.Errorf("fast tree: %w", err)
	}
	features, err := view.Vector(opts.FeatureColumn)
	if err != nil {
		return nil, fmt.Errorf("fast tree: %w", err)
	}
	n, f := features.Dims()
	if n == 0 {
		return nil, fmt.Errorf("fast tree: no training rows")
	}

	start := time.Now()
	bounds := make([][]float64, f)
	bins := make([][]uint8, f)
	col := make([]float64, n)
	for j := 0; j < f; j++ {
		for i := 0; i < n; i++ {
			col[i] = features.At(i, j)
		}
		bounds[j] = binBounds(col, opts.MaxBins-1)
		bins[j] = binColumn(col, bounds[j])
	}

	y := make([]float64, n)
	positives := 0.0
	for i, l := range labels {
		if l != 0 {
			y[i] = 1
			positives++
		}
	}
	p0 := math.Min(math.Max(positives/float64(n), probabilityEps), 1-probabilityEps)

	model := &FastTreeBinaryModel{
		FeatureColumn: opts.FeatureColumn,
		NumFeatures:   f,
		Bias:          math.Log(p0 / (1 - p0)),
		Gains:         make([]float64, f),
		SplitCounts:   make([]int, f),
	}

	g := &treeGrower{
		opts:   opts,
		bins:   bins,
		bounds: bounds,
		grad:   make([]float64, n),
		hess:   make([]float64, n),
		model:  model,
	}
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = model.Bias
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	for t := 0; t < opts.NumTrees; t++ {
		for i := range scores {
			p := sigmoid(scores[i])
			g.grad[i] = p - y[i]
			g.hess[i] = math.Max(p*(1-p), 1e-16)
		}
		tree, leafRows := g.grow(all)
		for leaf, rows := range leafRows {
			for _, r := range rows {
				scores[r] += tree.LeafValues[leaf]
			}
		}
		model.Trees = append(model.Trees, tree)
	}

	log.Info().
		Int("rows", n).
		Int("features", f).
		Int("trees", len(model.Trees)).
		Dur("elapsed", time.Since(start)).
		Msg("FastTree training completed")

	return model, nil
}

// binBounds returns increasing split thresholds for the finite values of col,
// producing at most maxBins bins. A value x falls in the first bin b with
// x <= bounds[b], or in bin len(bounds) when it exceeds every bound.
func binBounds(col []float64, maxBins int) []float64 {
	sorted := make([]float64, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Float64s(sorted)

	distinct := sorted[:1:1]
	for _, v := range sorted[1:] {
		if v != distinct[len(distinct)-1] {
			distinct = append(distinct, v)
		}
	}

	var bounds []float64
	if len(distinct) <= maxBins {
		for i := 1; i < len(distinct); i++ {
			bounds = append(bounds, midpoint(distinct[i-1], distinct[i]))
		}
		return bounds
	}

	for k := 1; k < maxBins; k++ {
		pos := k * len(sorted) / maxBins
		lo, hi := sorted[pos-1], sorted[pos]
		if lo == hi {
			continue
		}
		b := midpoint(lo, hi)
		if len(bounds) == 0 || b > bounds[len(bounds)-1] {
			bounds = append(bounds, b)
		}
	}
	return bounds
}

// midpoint returns a threshold t with lo <= t < hi.
func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi || math.IsInf(m, 0) {
		return lo
	}
	return m
}

// binColumn maps values to bins; NaN gets the extra bin after the last
// finite bin so it always lands right of any split.
func binColumn(col, bounds []float64) []uint8 {
	out := make([]uint8, len(col))
	for i, v := range col {
		if math.IsNaN(v) {
			out[i] = uint8(len(bounds) + 1)
			continue
		}
		out[i] = uint8(sort.SearchFloat64s(bounds, v))
	}
	return out
}

type histBin struct {
	g, h float64
	n    int
}

type splitInfo struct {
	feature int
	bin     int
	gain    float64
}

type growLeaf struct {
	rows   []int
	hist   [][]histBin
	sumG   float64
	sumH   float64
	best   splitInfo
	parent int // internal node that points at this leaf, -1 for the root
	left   bool
}

type treeGrower struct {
	opts   FastTreeOptions
	bins   [][]uint8
	bounds [][]float64
	grad   []float64
	hess   []float64
	model  *FastTreeBinaryModel
}

// grow builds one tree leaf-wise and returns it with the rows of every leaf.
func (g *treeGrower) grow(rows []int) (RegressionTree, [][]int) {
	root := &growLeaf{rows: rows, hist: g.histogram(rows), parent: -1}
	root.sumG, root.sumH = g.sums(rows)
	g.findSplit(root)

	leaves := []*growLeaf{root}
	var tree RegressionTree
	for len(leaves) < g.opts.NumLeaves {
		bestLeaf := -1
		for i, l := range leaves {
			if l.best.feature >= 0 && l.best.gain > 0 && (bestLeaf < 0 || l.best.gain > leaves[bestLeaf].best.gain) {
				bestLeaf = i
			}
		}
		if bestLeaf < 0 {
			break
		}

		leaf := leaves[bestLeaf]
		s := leaf.best
		node := len(tree.SplitFeature)
		tree.SplitFeature = append(tree.SplitFeature, s.feature)
		tree.Threshold = append(tree.Threshold, g.bounds[s.feature][s.bin])
		tree.LeftChild = append(tree.LeftChild, ^bestLeaf)
		tree.RightChild = append(tree.RightChild, ^len(leaves))
		if leaf.parent >= 0 {
			if leaf.left {
				tree.LeftChild[leaf.parent] = node
			} else {
				tree.RightChild[leaf.parent] = node
			}
		}
		g.model.Gains[s.feature] += s.gain
		g.model.SplitCounts[s.feature]++

		left, right := g.split(leaf, node)
		leaves[bestLeaf] = left
		leaves = append(leaves, right)
	}

	tree.LeafValues = make([]float64, len(leaves))
	leafRows := make([][]int, len(leaves))
	for i, l := range leaves {
		tree.LeafValues[i] = g.leafValue(l.sumG, l.sumH)
		leafRows[i] = l.rows
	}
	return tree, leafRows
}

func (g *treeGrower) split(leaf *growLeaf, node int) (*growLeaf, *growLeaf) {
	s := leaf.best
	featureBins := g.bins[s.feature]
	var leftRows, rightRows []int
	for _, r := range leaf.rows {
		if int(featureBins[r]) <= s.bin {
			leftRows = append(leftRows, r)
		} else {
			rightRows = append(rightRows, r)
		}
	}

	left := &growLeaf{rows: leftRows, parent: node, left: true}
	right := &growLeaf{rows: rightRows, parent: node}
	small, large := left, right
	if len(rightRows) < len(leftRows) {
		small, large = right, left
	}
	small.hist = g.histogram(small.rows)
	large.hist = subtractHistogram(leaf.hist, small.hist)

	for _, l := range []*growLeaf{left, right} {
		l.sumG, l.sumH = g.sums(l.rows)
		g.findSplit(l)
	}
	return left, right
}

func (g *treeGrower) histogram(rows []int) [][]histBin {
	hist := make([][]histBin, len(g.bins))
	for j, featureBins := range g.bins {
		h := make([]histBin, len(g.bounds[j])+2)
		for _, r := range rows {
			b := &h[featureBins[r]]
			b.g += g.grad[r]
			b.h += g.hess[r]
			b.n++
		}
		hist[j] = h
	}
	return hist
}

func subtractHistogram(parent, child [][]histBin) [][]histBin {
	out := make([][]histBin, len(parent))
	for j := range parent {
		h := make([]histBin, len(parent[j]))
		for b := range h {
			h[b] = histBin{
				g: parent[j][b].g - child[j][b].g,
				h: parent[j][b].h - child[j][b].h,
				n: parent[j][b].n - child[j][b].n,
			}
		}
		out[j] = h
	}
	return out
}

func (g *treeGrower) sums(rows []int) (float64, float64) {
	var sg, sh float64
	for _, r := range rows {
		sg += g.grad[r]
		sh += g.hess[r]
	}
	return sg, sh
}

// findSplit stores the best split of leaf, or feature -1 when none is valid.
func (g *treeGrower) findSplit(leaf *growLeaf) {
	leaf.best = splitInfo{feature: -1}
	minCount := g.opts.MinDatapointsInLeaves
	n := len(leaf.rows)
	if n < 2*minCount {
		return
	}
	lambda := g.opts.L2Regularization
	parentScore := leaf.sumG * leaf.sumG / (leaf.sumH + lambda)

	for j, hist := range leaf.hist {
		var lg, lh float64
		ln := 0
		for b := 0; b < len(g.bounds[j]); b++ {
			lg += hist[b].g
			lh += hist[b].h
			ln += hist[b].n
			rn := n - ln
			if ln < minCount {
				continue
			}
			if rn < minCount {
				break
			}
			rg, rh := leaf.sumG-lg, leaf.sumH-lh
			if lh < minHessianInLeaf || rh < minHessianInLeaf {
				continue
			}
			gain := lg*lg/(lh+lambda) + rg*rg/(rh+lambda) - parentScore
			if gain > leaf.best.gain {
				leaf.best = splitInfo{feature: j, bin: b, gain: gain}
			}
		}
	}
}

func (g *treeGrower) leafValue(sumG, sumH float64) float64 {
	denom := sumH + g.opts.L2Regularization
	if denom < 1e-12 {
		return 0
	}
	return -sumG / denom * g.opts.LearningRate
}
