package allen

import (
	"errors"
	"math"
	"testing"

	"github.com/boristopalov/openthechests/pkg/event"
	"github.com/boristopalov/openthechests/pkg/sampling"
)

func ev(t *testing.T, typ string, start, end float64) event.Event {
	t.Helper()
	e, err := event.New(typ, map[string]string{"bg": "red"}, start, end)
	if err != nil {
		t.Fatalf("event.New: %v", err)
	}
	return e
}

func TestDuringContainment(t *testing.T) {
	rng := sampling.New(11)
	first := ev(t, "F", 3, 8)
	second := ev(t, "S", 0, 2)
	for i := 0; i < 1000; i++ {
		got, err := PlaceDuring(rng, second, first)
		if err != nil {
			t.Fatalf("PlaceDuring: %v", err)
		}
		if got.Start < first.Start || got.End > first.End+event.Tolerance {
			t.Fatalf("run %d: [%g, %g) not inside [%g, %g)", i, got.Start, got.End, first.Start, first.End)
		}
		if got.Start > first.End-2+event.Tolerance {
			t.Fatalf("run %d: start %g beyond %g", i, got.Start, first.End-2)
		}
		if math.Abs(got.Duration()-2) > 1e-9 {
			t.Fatalf("run %d: duration changed to %g", i, got.Duration())
		}
	}
}

func TestDuringTooLong(t *testing.T) {
	_, err := PlaceDuring(sampling.New(1), ev(t, "S", 0, 6), ev(t, "F", 0, 5))
	if !errors.Is(err, ErrContainmentViolation) {
		t.Fatalf("got %v, want ErrContainmentViolation", err)
	}
}

func TestAfterGapBounds(t *testing.T) {
	rng := sampling.New(5)
	first := ev(t, "F", 1, 4)
	second := ev(t, "S", 0, 3)
	gap := sampling.Dist{Mu: 4, Sigma: 1}
	for i := 0; i < 1000; i++ {
		got, err := PlaceAfter(rng, second, first, gap)
		if err != nil {
			t.Fatalf("PlaceAfter: %v", err)
		}
		if got.Start < first.End+3 || got.Start > first.End+5 {
			t.Fatalf("run %d: start %g outside [%g, %g]", i, got.Start, first.End+3, first.End+5)
		}
	}
}

func TestAfterInvalidGap(t *testing.T) {
	_, err := PlaceAfter(sampling.New(1), ev(t, "S", 0, 1), ev(t, "F", 0, 1), sampling.Dist{Mu: 1, Sigma: 3})
	if !errors.Is(err, sampling.ErrInvalidDistribution) {
		t.Fatalf("got %v, want ErrInvalidDistribution", err)
	}
}

func TestDuringAfterMetByAtFractionalTimes(t *testing.T) {
	rng := sampling.New(5)
	container := ev(t, "E", 0, 8)
	contained := ev(t, "D", 0, 8)
	for i := 0; i < 1000; i++ {
		anchor := ev(t, "A", 0, rng.Uniform(0.01, 50))
		placed, err := PlaceMetBy(container, anchor)
		if err != nil {
			t.Fatalf("PlaceMetBy: %v", err)
		}
		got, err := PlaceDuring(rng, contained, placed)
		if err != nil {
			t.Fatalf("run %d: container [%v, %v): %v", i, placed.Start, placed.End, err)
		}
		if math.Abs(got.Start-placed.Start) > 1e-9 {
			t.Fatalf("run %d: equal durations must share a start, got %v and %v", i, got.Start, placed.Start)
		}
	}
}

func TestMetBy(t *testing.T) {
	got, err := PlaceMetBy(ev(t, "S", 0, 2), ev(t, "F", 3, 8))
	if err != nil {
		t.Fatalf("PlaceMetBy: %v", err)
	}
	if got.Start != 8 || got.End != 10 {
		t.Fatalf("got [%g, %g), want [8, 10)", got.Start, got.End)
	}
}

func TestOverlappedFreshEventStartsAtFirstEnd(t *testing.T) {
	// A freshly instantiated event starts at 0, so the lower bound collapses
	// onto first.End.
	got, err := PlaceOverlapped(sampling.New(2), ev(t, "S", 0, 2), ev(t, "F", 3, 8))
	if err != nil {
		t.Fatalf("PlaceOverlapped: %v", err)
	}
	if got.Start != 8 {
		t.Fatalf("start: got %g, want 8", got.Start)
	}
}

func TestOverlappedPlacedEvent(t *testing.T) {
	rng := sampling.New(2)
	first := ev(t, "F", 3, 8)
	second := ev(t, "S", 5, 6)
	for i := 0; i < 200; i++ {
		got, err := PlaceOverlapped(rng, second, first)
		if err != nil {
			t.Fatalf("PlaceOverlapped: %v", err)
		}
		if got.Start < 3 || got.Start > 8 {
			t.Fatalf("run %d: start %g outside [3, 8]", i, got.Start)
		}
	}
}

func TestApply(t *testing.T) {
	rng := sampling.New(4)
	second, first := ev(t, "S", 0, 1), ev(t, "F", 0, 5)

	if _, err := Apply(rng, After, second, first, Params{}); !errors.Is(err, ErrMissingGap) {
		t.Fatalf("after without gap: got %v, want ErrMissingGap", err)
	}
	if _, err := Apply(rng, Op("before"), second, first, Params{}); !errors.Is(err, ErrUnknownOp) {
		t.Fatalf("unknown op: got %v, want ErrUnknownOp", err)
	}
	for _, op := range Ops {
		params := Params{Gap: &sampling.Dist{Mu: 1, Sigma: 0}}
		got, err := Apply(rng, op, second, first, params)
		if err != nil {
			t.Fatalf("Apply(%s): %v", op, err)
		}
		if got.Type != "S" {
			t.Fatalf("Apply(%s): type changed to %s", op, got.Type)
		}
	}
}

func TestParseOp(t *testing.T) {
	for _, op := range Ops {
		got, err := ParseOp(string(op))
		if err != nil || got != op {
			t.Fatalf("ParseOp(%q): got %q, %v", op, got, err)
		}
	}
	if _, err := ParseOp("meets"); !errors.Is(err, ErrUnknownOp) {
		t.Fatalf("ParseOp(meets): got %v, want ErrUnknownOp", err)
	}
}
