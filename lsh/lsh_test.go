package lsh

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func newRng(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func scored(id ID, params Params, p1, p2 float64) HashFunction {
	hf := NewGenerated(params, NoParent, NoParent, 0)
	hf.ID = id
	hf.SetFitness(Tested(p1+p2, p1, p2, 200, false))
	return hf
}

func TestProject(t *testing.T) {
	hf := NewGenerated(Params{A: []float64{1, 1, 1}, R: 2, B: 1}, NoParent, NoParent, 0)
	cases := []struct {
		x      []float64
		bucket int64
	}{
		{[]float64{0, 0, 0}, 0},
		{[]float64{1, 0, 0}, 1},
		{[]float64{5, 1, 1}, 4},
		{[]float64{-1, -1, 0}, -1},
		{[]float64{-2, -1, 0}, -1},
		{[]float64{-3, -1, 0}, -2},
	}
	for _, c := range cases {
		got, err := hf.Project(c.x)
		if err != nil {
			t.Fatal(err)
		}
		if got != c.bucket {
			t.Fatalf("Wrong bucket for %v: got %v, expected %v", c.x, got, c.bucket)
		}
	}
	if _, err := hf.Project([]float64{1, 2}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("Expected dimension mismatch, got %v", err)
	}
}

func TestProjectMonotonic(t *testing.T) {
	hf := NewPending(nil, nil)
	if err := hf.EnsureGenerated(newRng(1), DefaultConfig(), 8); err != nil {
		t.Fatal(err)
	}
	params, _ := hf.Params()
	base := make([]float64, 8)
	prev, _ := hf.Project(base)
	for step := 1; step < 50; step++ {
		x := make([]float64, 8)
		for i := range x {
			x[i] = params.A[i] * float64(step)
		}
		bucket, err := hf.Project(x)
		if err != nil {
			t.Fatal(err)
		}
		if bucket < prev {
			t.Fatalf("Buckets must not decrease along the weights direction: %v < %v", bucket, prev)
		}
		prev = bucket
	}
}

func TestProjectPending(t *testing.T) {
	hf := NewPending(nil, nil)
	if _, err := hf.Project([]float64{1}); !errors.Is(err, ErrNotGenerated) {
		t.Fatalf("Expected ErrNotGenerated, got %v", err)
	}
}

func TestEnsureGenerated(t *testing.T) {
	mean, std := 300.0, 20.0
	hf := NewPending(&mean, &std)
	config := DefaultConfig()
	if err := hf.EnsureGenerated(newRng(2), config, 48); err != nil {
		t.Fatal(err)
	}
	p, ok := hf.Params()
	if !ok {
		t.Fatal("Params must be generated")
	}
	if len(p.A) != 48 || p.Mean != mean || p.Std != std {
		t.Fatalf("Hints must be kept: %+v", p)
	}
	if p.R < config.WidthMin || p.R >= config.WidthMax || p.B < 0 || p.B > p.R {
		t.Fatalf("Width or offset out of range: r=%v b=%v", p.R, p.B)
	}
	// second call must not re-randomize
	if err := hf.EnsureGenerated(newRng(3), config, 48); err != nil {
		t.Fatal(err)
	}
	again, _ := hf.Params()
	if again.R != p.R || again.A[0] != p.A[0] {
		t.Fatal("Generated params must be stable")
	}
	if err := hf.EnsureGenerated(newRng(3), config, 10); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("Expected dimension mismatch, got %v", err)
	}

	orphan := HashFunction{Father: 1}
	if err := orphan.EnsureGenerated(newRng(4), config, 10); !errors.Is(err, ErrMalformedHashFunction) {
		t.Fatalf("Expected malformed error, got %v", err)
	}
	if _, err := Generate(newRng(5), config, 0, nil, nil); !errors.Is(err, ErrMalformedHashFunction) {
		t.Fatalf("Expected malformed error, got %v", err)
	}
}

func TestFitness(t *testing.T) {
	if _, ok := Untested().Score(); ok {
		t.Fatal("Untested fitness has no score")
	}
	zero := Tested(0, 5, 1, 200, false)
	if _, _, ok := zero.NearFar(); ok {
		t.Fatal("p1/p2 must be dropped without collisions")
	}
	if c, ok := zero.Collisions(); !ok || c != 0 {
		t.Fatal("Tested fitness always has collisions")
	}
	f := Tested(3, 2.5, 0.5, 120, true)
	s, ok := f.Score()
	if !ok || s != 2 {
		t.Fatalf("Wrong score %v", s)
	}
	if f.Trials() != 120 || !f.EarlyExit() {
		t.Fatal("Wrong trials bookkeeping")
	}
}

func TestSortByScore(t *testing.T) {
	p := Params{A: []float64{1}, R: 1}
	hfs := []HashFunction{
		NewPending(nil, nil),
		scored(2, p, 1, 0.5),
		scored(3, p, 3, 0.5),
		scored(4, p, 1, 0.5),
	}
	hfs[0].ID = 1
	SortByScore(hfs)
	expected := []ID{3, 2, 4, 1}
	for i, hf := range hfs {
		if hf.ID != expected[i] {
			t.Fatalf("Wrong order at %d: got %v, expected %v", i, hf.ID, expected[i])
		}
	}
}

func TestRecordRoundTrip(t *testing.T) {
	hf := scored(7, Params{A: []float64{1, 2}, R: 10, B: 3, Mean: 1.5, Std: 0.7}, 4, 1)
	hf.Father, hf.Mother, hf.Generation = 2, 3, 5
	restored, err := FromRecord(hf.Record())
	if err != nil {
		t.Fatal(err)
	}
	if restored.ID != 7 || restored.Father != 2 || restored.Mother != 3 || restored.Generation != 5 {
		t.Fatalf("Lineage lost: %+v", restored)
	}
	s, ok := restored.Score()
	if !ok || s != 3 {
		t.Fatalf("Wrong restored score %v", s)
	}
}

func TestFromRecordInvariant(t *testing.T) {
	one, zero := 1.0, 0.0
	valid := Record{ID: 1, Generated: true, A: []float64{1}, R: 2, B: 1}
	broken := []Record{
		func() Record { r := valid; r.Tested = true; return r }(),
		func() Record { r := valid; r.Collisions = &one; return r }(),
		func() Record { r := valid; r.Tested = true; r.Collisions = &one; r.P1 = &one; return r }(),
		func() Record { r := valid; r.Tested = true; r.Collisions = &zero; r.P1 = &one; r.P2 = &one; return r }(),
		func() Record { r := valid; r.Tested = true; r.Collisions = &one; return r }(),
		func() Record { r := valid; r.B = 3; return r }(),
		func() Record { r := valid; r.R = 0; return r }(),
		{ID: 2, Father: 1},
	}
	for i, rec := range broken {
		if _, err := FromRecord(rec); !errors.Is(err, ErrInvalidRecord) {
			t.Fatalf("Record %d must be rejected, got %v", i, err)
		}
	}
	if _, err := FromRecord(valid); err != nil {
		t.Fatal(err)
	}
	if _, err := FromRecord(Record{ID: 3}); err != nil {
		t.Fatal(err)
	}
}
