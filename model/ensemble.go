package model

import (
	"fmt"
	"strings"
)

// KindTreeEnsemble identifies TreeEnsemble artifacts
const KindTreeEnsemble = "tree_ensemble"

// Aggregation modes for tree outputs
const (
	AggregateMean = "mean" // random forest
	AggregateSum  = "sum"  // gradient boosting
)

// Node is one node of a regression tree stored as a flat slice.
// Internal nodes send x[Feature] <= Threshold to Left, everything else to Right.
type Node struct {
	Leaf      bool    `json:"leaf" msgpack:"leaf"`
	Feature   int     `json:"feature,omitempty" msgpack:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty" msgpack:"threshold,omitempty"`
	Left      int     `json:"left,omitempty" msgpack:"left,omitempty"`
	Right     int     `json:"right,omitempty" msgpack:"right,omitempty"`
	Value     float64 `json:"value,omitempty" msgpack:"value,omitempty"`
}

// Tree is a regression tree rooted at Nodes[0]
type Tree struct {
	Nodes []Node `json:"nodes" msgpack:"nodes"`
}

// TreeEnsemble averages (forest) or sums (boosting) regression trees.
// For AggregateSum the result is BaseScore + LearningRate * sum(trees).
type TreeEnsemble struct {
	nFeatures    int
	aggregation  string
	baseScore    float64
	learningRate float64
	trees        []Tree
}

// EnsembleConfig holds the decoded parameters of a tree ensemble
type EnsembleConfig struct {
	NumFeatures  int
	Aggregation  string
	BaseScore    float64
	LearningRate float64
	Trees        []Tree
}

// NewTreeEnsemble validates the trees and builds the ensemble.
// Child indices must point forward so traversal always terminates.
func NewTreeEnsemble(cfg EnsembleConfig) (*TreeEnsemble, error) {
	if cfg.NumFeatures <= 0 {
		return nil, fmt.Errorf("tree ensemble needs a positive feature count, got %d", cfg.NumFeatures)
	}
	if len(cfg.Trees) == 0 {
		return nil, fmt.Errorf("tree ensemble needs at least one tree")
	}

	agg := strings.ToLower(strings.TrimSpace(cfg.Aggregation))
	switch agg {
	case "":
		agg = AggregateMean
	case AggregateMean, AggregateSum:
	default:
		return nil, fmt.Errorf("unknown aggregation %q (use %s or %s)", cfg.Aggregation, AggregateMean, AggregateSum)
	}

	lr := cfg.LearningRate
	if lr == 0 {
		lr = 1
	}

	trees := make([]Tree, len(cfg.Trees))
	for t, tree := range cfg.Trees {
		if len(tree.Nodes) == 0 {
			return nil, fmt.Errorf("tree %d has no nodes", t)
		}
		for i, n := range tree.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= cfg.NumFeatures {
				return nil, fmt.Errorf("tree %d node %d splits on feature %d, have %d", t, i, n.Feature, cfg.NumFeatures)
			}
			for _, child := range []int{n.Left, n.Right} {
				if child <= i || child >= len(tree.Nodes) {
					return nil, fmt.Errorf("tree %d node %d has invalid child %d", t, i, child)
				}
			}
		}
		nodes := make([]Node, len(tree.Nodes))
		copy(nodes, tree.Nodes)
		trees[t] = Tree{Nodes: nodes}
	}

	return &TreeEnsemble{
		nFeatures:    cfg.NumFeatures,
		aggregation:  agg,
		baseScore:    cfg.BaseScore,
		learningRate: lr,
		trees:        trees,
	}, nil
}

// Predict walks every tree and aggregates the leaf values
func (m *TreeEnsemble) Predict(x []float64) (float64, error) {
	if err := checkRow(KindTreeEnsemble, x, m.nFeatures); err != nil {
		return 0, err
	}

	sum := 0.0
	for _, tree := range m.trees {
		sum += tree.eval(x)
	}

	if m.aggregation == AggregateSum {
		return checkOutput(KindTreeEnsemble, m.baseScore+m.learningRate*sum)
	}
	return checkOutput(KindTreeEnsemble, m.baseScore+sum/float64(len(m.trees)))
}

func (t Tree) eval(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (m *TreeEnsemble) NumFeatures() int { return m.nFeatures }

func (m *TreeEnsemble) Kind() string { return KindTreeEnsemble }

// Config returns the parameters needed to re-encode the ensemble
func (m *TreeEnsemble) Config() EnsembleConfig {
	trees := make([]Tree, len(m.trees))
	copy(trees, m.trees)
	return EnsembleConfig{
		NumFeatures:  m.nFeatures,
		Aggregation:  m.aggregation,
		BaseScore:    m.baseScore,
		LearningRate: m.learningRate,
		Trees:        trees,
	}
}
