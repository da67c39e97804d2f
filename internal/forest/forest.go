// Package forest implements a bagged random-forest regressor over CART trees.
//
// Fitting is deterministic for a given Params.Seed and input order: per-tree
// seeds are drawn sequentially before any tree is built, so the worker count
// does not change the result.
package forest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrNotFitted is returned when predicting with an empty forest.
var ErrNotFitted = errors.New("forest: not fitted")

// Params are the forest hyperparameters.
type Params struct {
	Trees           int   `json:"trees"`
	MaxDepth        int   `json:"maxDepth"`
	MinSamplesSplit int   `json:"minSamplesSplit"`
	MinSamplesLeaf  int   `json:"minSamplesLeaf"`
	Bootstrap       bool  `json:"bootstrap"`
	Seed            int64 `json:"seed"`
	// Workers bounds concurrent tree fitting; 0 means GOMAXPROCS.
	Workers int `json:"-"`
}

// DefaultParams are the fixed hyperparameters used by the trainer.
func DefaultParams() Params {
	return Params{
		Trees:           150,
		MaxDepth:        10,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		Seed:            42,
	}
}

func (p Params) validate() error {
	switch {
	case p.Trees <= 0:
		return fmt.Errorf("forest: trees must be positive, got %d", p.Trees)
	case p.MaxDepth <= 0:
		return fmt.Errorf("forest: max depth must be positive, got %d", p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return fmt.Errorf("forest: min samples split must be at least 2, got %d", p.MinSamplesSplit)
	case p.MinSamplesLeaf < 1:
		return fmt.Errorf("forest: min samples leaf must be at least 1, got %d", p.MinSamplesLeaf)
	}
	return nil
}

// Forest is a fitted regressor; its prediction is the mean over Trees.
type Forest struct {
	NumFeatures int     `json:"numFeatures"`
	Trees       []*Tree `json:"trees"`
}

// Fit trains a forest on x (rows of equal width) and y.
func Fit(ctx context.Context, x [][]float64, y []float64, p Params) (*Forest, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if len(x) == 0 {
		return nil, errors.New("forest: no training samples")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("forest: %d feature rows but %d targets", len(x), len(y))
	}
	width := len(x[0])
	if width == 0 {
		return nil, errors.New("forest: samples have no features")
	}
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("forest: row %d has %d features, want %d", i, len(row), width)
		}
	}

	rng := rand.New(rand.NewSource(p.Seed))
	seeds := make([]int64, p.Trees)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*Tree, p.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			trees[i] = fitTree(x, y, p, rand.New(rand.NewSource(seeds[i])))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("forest: fit: %w", err)
	}
	return &Forest{NumFeatures: width, Trees: trees}, nil
}

func fitTree(x [][]float64, y []float64, p Params, rng *rand.Rand) *Tree {
	n := len(y)
	samples := make([]int, n)
	if p.Bootstrap {
		for i := range samples {
			samples[i] = rng.Intn(n)
		}
	} else {
		for i := range samples {
			samples[i] = i
		}
	}
	b := &treeBuilder{
		x:               x,
		y:               y,
		maxDepth:        p.MaxDepth,
		minSamplesSplit: p.MinSamplesSplit,
		minSamplesLeaf:  p.MinSamplesLeaf,
		tree:            &Tree{},
	}
	b.build(samples, 0)
	return b.tree
}

// Predict returns the mean tree output for one feature vector.
func (f *Forest) Predict(x []float64) (float64, error) {
	if f == nil || len(f.Trees) == 0 {
		return 0, ErrNotFitted
	}
	if len(x) != f.NumFeatures {
		return 0, fmt.Errorf("forest: got %d features, want %d", len(x), f.NumFeatures)
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Trees)), nil
}

// PredictBatch predicts every row of x.
func (f *Forest) PredictBatch(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		v, err := f.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Validate checks the structure of a decoded forest so that Predict cannot
// index out of range.
func (f *Forest) Validate() error {
	if f == nil || len(f.Trees) == 0 {
		return ErrNotFitted
	}
	if f.NumFeatures <= 0 {
		return fmt.Errorf("forest: invalid feature count %d", f.NumFeatures)
	}
	for i, t := range f.Trees {
		if t == nil || !t.valid(f.NumFeatures) {
			return fmt.Errorf("forest: tree %d is malformed", i)
		}
	}
	return nil
}
