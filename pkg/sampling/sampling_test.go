package sampling

import (
	"errors"
	"testing"
)

func TestTruncatedNormalStaysInBounds(t *testing.T) {
	rng := New(1)
	d := Dist{Mu: 5, Sigma: 2}
	for i := 0; i < 10000; i++ {
		x, err := rng.TruncatedNormal(d)
		if err != nil {
			t.Fatalf("TruncatedNormal: %v", err)
		}
		if x < 3 || x > 7 {
			t.Fatalf("sample %d: got %g, want within [3, 7]", i, x)
		}
	}
}

func TestTruncatedNormalZeroSigma(t *testing.T) {
	x, err := New(1).TruncatedNormal(Dist{Mu: 4, Sigma: 0})
	if err != nil {
		t.Fatalf("TruncatedNormal: %v", err)
	}
	if x != 4 {
		t.Fatalf("got %g, want 4", x)
	}
}

func TestTruncatedNormalInvalid(t *testing.T) {
	rng := New(1)
	for _, d := range []Dist{{Mu: 1, Sigma: 2}, {Mu: 1, Sigma: -1}} {
		if _, err := rng.TruncatedNormal(d); !errors.Is(err, ErrInvalidDistribution) {
			t.Fatalf("TruncatedNormal(%+v): got %v, want ErrInvalidDistribution", d, err)
		}
	}
}

func TestUniform(t *testing.T) {
	rng := New(7)
	for i := 0; i < 1000; i++ {
		x := rng.Uniform(2, 3)
		if x < 2 || x >= 3 {
			t.Fatalf("Uniform(2, 3): got %g", x)
		}
	}
	if x := rng.Uniform(0, 0); x != 0 {
		t.Fatalf("Uniform(0, 0): got %g, want 0", x)
	}
}

func TestBinomialEdges(t *testing.T) {
	rng := New(3)
	if k := rng.Binomial(10, 0); k != 0 {
		t.Fatalf("Binomial(10, 0): got %d, want 0", k)
	}
	if k := rng.Binomial(10, 1); k != 10 {
		t.Fatalf("Binomial(10, 1): got %d, want 10", k)
	}
	for i := 0; i < 100; i++ {
		if k := rng.Binomial(5, 0.5); k < 0 || k > 5 {
			t.Fatalf("Binomial(5, 0.5): got %d", k)
		}
	}
}

func TestSameSeedSameStream(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d: %g != %g", i, x, y)
		}
	}
}

func TestChoice(t *testing.T) {
	rng := New(9)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[Choice(rng, []string{"a", "b", "c"})] = true
	}
	if len(seen) != 3 {
		t.Fatalf("Choice covered %d of 3 values", len(seen))
	}
}
