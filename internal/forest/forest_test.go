package forest

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
)

// synthetic returns n rows where y is a noisy step function of the first two features.
func synthetic(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range x {
		a, b, c, d := rng.Float64()*500, rng.Float64()*500, rng.Float64()*300, rng.Float64()*30000
		x[i] = []float64{a, b, c, d}
		y[i] = 1 + a/125 + b/500 + rng.NormFloat64()*0.05
	}
	return x, y
}

func smallParams() Params {
	p := DefaultParams()
	p.Trees = 20
	return p
}

func TestFit_Deterministic(t *testing.T) {
	x, y := synthetic(200, 1)
	p := smallParams()
	p.Workers = 1
	f1, err := Fit(context.Background(), x, y, p)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	p.Workers = 8
	f2, err := Fit(context.Background(), x, y, p)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	probe := []float64{55, 80, 25, 600}
	a, _ := f1.Predict(probe)
	b, _ := f2.Predict(probe)
	if a != b {
		t.Errorf("Predict differs across runs: %v vs %v", a, b)
	}
}

func TestFit_SeedChangesForest(t *testing.T) {
	x, y := synthetic(200, 1)
	p := smallParams()
	f1, _ := Fit(context.Background(), x, y, p)
	p.Seed = 7
	f2, _ := Fit(context.Background(), x, y, p)
	same := true
	for i := range x {
		a, _ := f1.Predict(x[i])
		b, _ := f2.Predict(x[i])
		if a != b {
			same = false
			break
		}
	}
	if same {
		t.Error("forests with different seeds predicted identically on every row")
	}
}

func TestFit_LearnsSignal(t *testing.T) {
	x, y := synthetic(400, 2)
	f, err := Fit(context.Background(), x, y, smallParams())
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	lo, _ := f.Predict([]float64{10, 10, 10, 100})
	hi, _ := f.Predict([]float64{450, 450, 10, 100})
	if !(hi > lo+2) {
		t.Errorf("Predict(high) = %v, Predict(low) = %v; want high well above low", hi, lo)
	}
}

func TestFit_RespectsMaxDepth(t *testing.T) {
	x, y := synthetic(300, 3)
	p := smallParams()
	p.MaxDepth = 3
	f, err := Fit(context.Background(), x, y, p)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	for i, tr := range f.Trees {
		if d := tr.Depth(); d > 3 {
			t.Errorf("tree %d depth = %d, want <= 3", i, d)
		}
	}
}

func TestFit_ConstantTargetIsSingleLeaf(t *testing.T) {
	x := [][]float64{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10, 11, 12}}
	y := []float64{2, 2, 2}
	p := smallParams()
	p.Trees = 3
	f, err := Fit(context.Background(), x, y, p)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	for i, tr := range f.Trees {
		if tr.Nodes() != 1 {
			t.Errorf("tree %d nodes = %d, want 1", i, tr.Nodes())
		}
	}
	got, _ := f.Predict([]float64{0, 0, 0, 0})
	if got != 2 {
		t.Errorf("Predict() = %v, want 2", got)
	}
}

func TestFit_NoBootstrapFitsTrainingData(t *testing.T) {
	x := [][]float64{{1, 0, 0, 0}, {2, 0, 0, 0}, {3, 0, 0, 0}, {4, 0, 0, 0}}
	y := []float64{1, 2, 3, 4}
	p := DefaultParams()
	p.Trees = 1
	p.Bootstrap = false
	f, err := Fit(context.Background(), x, y, p)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	for i := range x {
		got, _ := f.Predict(x[i])
		if math.Abs(got-y[i]) > 1e-12 {
			t.Errorf("Predict(%v) = %v, want %v", x[i], got, y[i])
		}
	}
	// thresholds sit midway between neighbours
	if got, _ := f.Predict([]float64{2.4, 0, 0, 0}); got != 2 {
		t.Errorf("Predict(2.4) = %v, want 2", got)
	}
	if got, _ := f.Predict([]float64{2.6, 0, 0, 0}); got != 3 {
		t.Errorf("Predict(2.6) = %v, want 3", got)
	}
}

func TestFit_InvalidInput(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		x    [][]float64
		y    []float64
		p    Params
	}{
		{"empty", nil, nil, DefaultParams()},
		{"length mismatch", [][]float64{{1}}, []float64{1, 2}, DefaultParams()},
		{"ragged", [][]float64{{1, 2}, {1}}, []float64{1, 2}, DefaultParams()},
		{"zero trees", [][]float64{{1}}, []float64{1}, Params{MaxDepth: 1, MinSamplesSplit: 2, MinSamplesLeaf: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Fit(ctx, tt.x, tt.y, tt.p); err == nil {
				t.Error("Fit() error = nil, want error")
			}
		})
	}
}

func TestFit_CancelledContext(t *testing.T) {
	x, y := synthetic(50, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Fit(ctx, x, y, smallParams()); !errors.Is(err, context.Canceled) {
		t.Errorf("Fit() error = %v, want context.Canceled", err)
	}
}

func TestForest_PredictErrors(t *testing.T) {
	var empty *Forest
	if _, err := empty.Predict([]float64{1}); !errors.Is(err, ErrNotFitted) {
		t.Errorf("nil Predict() error = %v, want ErrNotFitted", err)
	}
	x, y := synthetic(30, 5)
	f, _ := Fit(context.Background(), x, y, smallParams())
	if _, err := f.Predict([]float64{1, 2}); err == nil {
		t.Error("Predict() with wrong width error = nil, want error")
	}
}

func TestForest_Validate(t *testing.T) {
	x, y := synthetic(60, 6)
	f, _ := Fit(context.Background(), x, y, smallParams())
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate() on fitted forest error = %v", err)
	}
	bad := &Forest{NumFeatures: 4, Trees: []*Tree{{
		Feature:   []int{0},
		Threshold: []float64{1},
		Left:      []int{0},
		Right:     []int{0},
		Value:     []float64{1},
	}}}
	if err := bad.Validate(); err == nil {
		t.Error("Validate() on cyclic tree error = nil, want error")
	}
}
