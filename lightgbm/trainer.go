package lightgbm

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
	"github.com/YuminosukeSato/bikedemand/pkg/log"
)

// EvalHistory holds the RMSE after each boosting round
type EvalHistory struct {
	Train []float64 `json:"train"`
	Valid []float64 `json:"valid,omitempty"`
}

// Trainer grows histogram-based regression trees leaf-wise
type Trainer struct {
	params    TrainingParams
	objective ObjectiveFunction
	sampler   *samplingStrategy

	// Data
	X            *mat.Dense
	y            []float64
	sampleWeight []float64

	// Histogram data structures
	mappers []binMapper
	bins    [][]uint16 // bins[feature][row]

	// Gradient and Hessian, already scaled by the sample weight
	gradients []float64
	hessians  []float64
	scores    []float64

	trees     []Tree
	initScore float64

	validX      *mat.Dense
	validY      []float64
	validScores []float64
	history     EvalHistory
}

// leafState is a leaf of the tree under construction
type leafState struct {
	node    int
	indices []int
	depth   int
	sumGrad float64
	sumHess float64
	split   splitInfo
}

// NewTrainer creates a new trainer
func NewTrainer(params TrainingParams, objective ObjectiveFunction) *Trainer {
	if objective == nil {
		objective = L2Objective{}
	}
	return &Trainer{params: params, objective: objective}
}

// WithValidation sets a held-out set scored after every round
func (t *Trainer) WithValidation(X mat.Matrix, y []float64) *Trainer {
	t.validX = mat.DenseCopyOf(X)
	t.validY = y
	return t
}

// Fit trains the ensemble. A nil sampleWeight weighs every sample equally.
func (t *Trainer) Fit(X mat.Matrix, y, sampleWeight []float64) error {
	if err := t.params.Validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("Trainer.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(y) != rows {
		return errors.NewDimensionError("Trainer.Fit", rows, len(y), 0)
	}
	if err := errors.CheckNumericalStability("Trainer.Fit", y); err != nil {
		return err
	}

	w := sampleWeight
	if w == nil {
		w = make([]float64, rows)
		floats.AddConst(1, w)
	}
	if len(w) != rows {
		return errors.NewDimensionError("Trainer.Fit", rows, len(w), 0)
	}
	if floats.Min(w) < 0 || floats.Sum(w) <= 0 {
		return errors.NewValueError("Trainer.Fit", "sample weights must be non-negative with a positive sum")
	}

	if t.validX != nil {
		vr, vc := t.validX.Dims()
		if vc != cols {
			return errors.NewDimensionError("Trainer.Fit", cols, vc, 1)
		}
		if len(t.validY) != vr {
			return errors.NewDimensionError("Trainer.Fit", vr, len(t.validY), 0)
		}
	}

	t.X = mat.DenseCopyOf(X)
	t.y = y
	t.sampleWeight = w
	if err := t.buildBins(); err != nil {
		return err
	}

	t.gradients = make([]float64, rows)
	t.hessians = make([]float64, rows)
	t.initScore = t.objective.InitScore(y, w)
	t.scores = make([]float64, rows)
	floats.AddConst(t.initScore, t.scores)
	if t.validX != nil {
		vr, _ := t.validX.Dims()
		t.validScores = make([]float64, vr)
		floats.AddConst(t.initScore, t.validScores)
	}
	t.trees = t.trees[:0]
	t.history = EvalHistory{}
	t.sampler = newSamplingStrategy(t.params)

	logger := log.GetLoggerWithName("lightgbm")
	for iter := 0; iter < t.params.NumIterations; iter++ {
		t.calculateGradients()

		bag := t.sampler.sampleInstances(rows, iter)
		features := t.sampler.sampleFeatures(cols)
		tree := t.buildTree(bag, features)
		t.trees = append(t.trees, tree)
		t.updateScores(&tree)

		t.history.Train = append(t.history.Train, rmse(t.y, t.scores, t.sampleWeight))
		if t.validX != nil {
			t.history.Valid = append(t.history.Valid, rmse(t.validY, t.validScores, nil))
		}

		if iter%10 == 0 {
			logger.Debug("Boosting round",
				log.TreesKey, iter+1,
				log.RMSEKey, t.history.Train[iter],
			)
		}
	}

	if t.Model().numSplits() == 0 {
		errors.Warn(errors.NewDataQualityWarning("lightgbm", "no_split_found", rows))
	}
	return nil
}

// buildBins maps every column onto its histogram bins
func (t *Trainer) buildBins() error {
	rows, cols := t.X.Dims()
	t.mappers = make([]binMapper, cols)
	t.bins = make([][]uint16, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, t.X)
		for _, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewNumericalInstabilityError("Trainer.Fit", []float64{v})
			}
		}
		m := newBinMapper(col, t.params.MaxBin)
		binned := make([]uint16, rows)
		for i, v := range col {
			binned[i] = uint16(m.bin(v))
		}
		t.mappers[j] = m
		t.bins[j] = binned
	}
	return nil
}

// calculateGradients computes weighted gradients and hessians for the
// current scores
func (t *Trainer) calculateGradients() {
	for i, target := range t.y {
		t.gradients[i] = t.objective.Gradient(t.scores[i], target) * t.sampleWeight[i]
		t.hessians[i] = t.objective.Hessian(t.scores[i], target) * t.sampleWeight[i]
	}
}

// buildTree grows one tree best-first until NumLeaves is reached or no leaf
// has a split worth MinGainToSplit.
func (t *Trainer) buildTree(bag, features []int) Tree {
	tree := Tree{ShrinkageRate: t.params.LearningRate}
	leaves := []*leafState{t.newLeaf(&tree, bag, 0, features)}

	for len(leaves) < t.params.NumLeaves {
		best := -1
		for i, l := range leaves {
			if l.split.feature < 0 || l.split.gain <= t.params.MinGainToSplit {
				continue
			}
			if best < 0 || l.split.gain > leaves[best].split.gain {
				best = i
			}
		}
		if best < 0 {
			break
		}

		l := leaves[best]
		left, right := t.partition(l)
		lc := t.newLeaf(&tree, left, l.depth+1, features)
		rc := t.newLeaf(&tree, right, l.depth+1, features)
		tree.Nodes[l.node] = Node{
			NodeType:     NumericalNode,
			LeftChild:    lc.node,
			RightChild:   rc.node,
			SplitFeature: l.split.feature,
			Threshold:    l.split.threshold,
			Gain:         l.split.gain,
			Count:        len(l.indices),
		}
		leaves[best] = lc
		leaves = append(leaves, rc)
	}

	for _, l := range leaves {
		tree.Nodes[l.node].LeafValue = t.params.leafOutput(l.sumGrad, l.sumHess)
	}
	tree.NumLeaves = len(leaves)
	return tree
}

func (t *Trainer) newLeaf(tree *Tree, indices []int, depth int, features []int) *leafState {
	l := &leafState{node: len(tree.Nodes), indices: indices, depth: depth}
	for _, i := range indices {
		l.sumGrad += t.gradients[i]
		l.sumHess += t.hessians[i]
	}
	tree.Nodes = append(tree.Nodes, Node{
		NodeType:   LeafNode,
		LeftChild:  -1,
		RightChild: -1,
		Count:      len(indices),
	})
	l.split = t.findBestSplit(l, features)
	return l
}

// partition splits the rows of l on its best split
func (t *Trainer) partition(l *leafState) (left, right []int) {
	col := t.bins[l.split.feature]
	left = make([]int, 0, l.split.leftCount)
	right = make([]int, 0, len(l.indices)-l.split.leftCount)
	for _, i := range l.indices {
		if int(col[i]) <= l.split.bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// updateScores adds the new tree to the cached train and validation scores
func (t *Trainer) updateScores(tree *Tree) {
	rows, _ := t.X.Dims()
	for i := 0; i < rows; i++ {
		t.scores[i] += tree.Predict(t.X.RawRowView(i))
	}
	if t.validX != nil {
		for i := range t.validScores {
			t.validScores[i] += tree.Predict(t.validX.RawRowView(i))
		}
	}
}

// Model returns the trained ensemble
func (t *Trainer) Model() *Model {
	cols := 0
	if t.X != nil {
		_, cols = t.X.Dims()
	}
	return &Model{
		Objective:    t.objective.Name(),
		NumFeatures:  cols,
		LearningRate: t.params.LearningRate,
		InitScore:    t.initScore,
		Trees:        append([]Tree(nil), t.trees...),
	}
}

// History returns the per-round RMSE
func (t *Trainer) History() EvalHistory {
	return EvalHistory{
		Train: append([]float64(nil), t.history.Train...),
		Valid: append([]float64(nil), t.history.Valid...),
	}
}
