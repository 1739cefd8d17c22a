package parser

import (
	"errors"
	"testing"

	"github.com/boristopalov/openthechests/pkg/allen"
	"github.com/boristopalov/openthechests/pkg/event"
	"github.com/boristopalov/openthechests/pkg/pattern"
	"github.com/boristopalov/openthechests/pkg/sampling"
	"github.com/google/go-cmp/cmp"
)

func vocab() Vocabulary {
	return Vocabulary{
		EventTypes: []string{"A", "B", "C"},
		NoiseTypes: []string{"N"},
		EventAttributes: map[string][]string{
			"bg": {"red", "blue"},
			"fg": {"green"},
		},
		NoiseAttributes: map[string][]string{
			"bg": {"grey"},
		},
	}
}

func newParser(t *testing.T, seed uint64) *Parser {
	t.Helper()
	p, err := New(vocab(), sampling.New(seed))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func dist(mu, sigma float64) *sampling.Dist { return &sampling.Dist{Mu: mu, Sigma: sigma} }

func TestNewRequiresEventTypes(t *testing.T) {
	if _, err := New(Vocabulary{}, sampling.New(1)); !errors.Is(err, ErrEmptyVocabulary) {
		t.Fatalf("got %v, want ErrEmptyVocabulary", err)
	}
}

func TestLabelConcatenatesNoiseVocabulary(t *testing.T) {
	p := newParser(t, 1)
	e, _ := event.New("N", map[string]string{"bg": "grey"}, 1, 2)
	got, err := p.Label(e)
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	want := event.Labelled{Type: 3, Attributes: map[string]int{"bg": 2}, Start: 1, End: 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	got.Attributes["fg"] = event.NoLabel
	back, err := p.Unlabel(got)
	if err != nil {
		t.Fatalf("Unlabel: %v", err)
	}
	if !back.Equal(e) {
		t.Fatalf("Unlabel: got %s, want %s", back, e)
	}
}

func TestLabelUnknownSymbol(t *testing.T) {
	p := newParser(t, 1)
	for _, e := range []event.Event{
		{Type: "Z", Attributes: map[string]string{}},
		{Type: "A", Attributes: map[string]string{"bg": "purple"}},
		{Type: "A", Attributes: map[string]string{"size": "big"}},
	} {
		if _, err := p.Label(e); !errors.Is(err, ErrUnknownSymbol) {
			t.Fatalf("Label(%s): got %v, want ErrUnknownSymbol", e, err)
		}
	}
	if _, err := p.Unlabel(event.Labelled{Type: 99}); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("Unlabel(99): got %v, want ErrUnknownSymbol", err)
	}
}

func TestMakeEventFillsMissingValues(t *testing.T) {
	p := newParser(t, 2)
	for i := 0; i < 50; i++ {
		e, err := p.MakeEvent("", map[string]string{"bg": "blue"}, dist(5, 2))
		if err != nil {
			t.Fatalf("MakeEvent: %v", err)
		}
		if e.Start != 0 {
			t.Fatalf("start: got %g, want 0", e.Start)
		}
		if e.Duration() < 3 || e.Duration() > 7 {
			t.Fatalf("duration %g outside [3, 7]", e.Duration())
		}
		if e.Attributes["bg"] != "blue" || e.Attributes["fg"] != "green" {
			t.Fatalf("attributes: got %v", e.Attributes)
		}
		if e.Type != "A" && e.Type != "B" && e.Type != "C" {
			t.Fatalf("type %q drawn outside event types", e.Type)
		}
	}
}

func TestMakeEventRejectsNoiseType(t *testing.T) {
	p := newParser(t, 1)
	if _, err := p.MakeEvent("N", nil, nil); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("got %v, want ErrUnknownSymbol", err)
	}
}

func TestMakeEventSynthesisesDuration(t *testing.T) {
	p := newParser(t, 3)
	// records durations 1 (initial), 2 and 10
	if _, err := p.MakeEvent("A", nil, dist(2, 0)); err != nil {
		t.Fatalf("MakeEvent: %v", err)
	}
	if _, err := p.MakeEvent("A", nil, dist(10, 0)); err != nil {
		t.Fatalf("MakeEvent: %v", err)
	}
	if d := p.durationDist(); d.Mu != 5.5 || d.Sigma != 4.5 {
		t.Fatalf("durationDist: got %+v, want {5.5 4.5}", d)
	}
	for i := 0; i < 100; i++ {
		e, err := p.MakeEvent("A", nil, nil)
		if err != nil {
			t.Fatalf("MakeEvent: %v", err)
		}
		if e.Duration() < 1 || e.Duration() > 10 {
			t.Fatalf("synthesised duration %g outside [1, 10]", e.Duration())
		}
	}
}

func TestMakeNoise(t *testing.T) {
	p := newParser(t, 4)
	for i := 0; i < 200; i++ {
		e, err := p.MakeNoise(6)
		if err != nil {
			t.Fatalf("MakeNoise: %v", err)
		}
		if e.Start < 0 || e.End > 6 || e.Start > e.End {
			t.Fatalf("noise [%g, %g) outside [0, 6)", e.Start, e.End)
		}
		if e.Type != "N" || e.Attributes["bg"] != "grey" {
			t.Fatalf("noise drawn from wrong vocabulary: %s", e)
		}
	}
}

func TestMakeNoiseWithoutNoiseTypes(t *testing.T) {
	v := vocab()
	v.NoiseTypes = nil
	p, err := New(v, sampling.New(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.MakeNoise(3); !errors.Is(err, ErrEmptyVocabulary) {
		t.Fatalf("got %v, want ErrEmptyVocabulary", err)
	}
}

func TestCompile(t *testing.T) {
	p := newParser(t, 5)
	instructions := []pattern.Instruction{
		pattern.Instantiate{Variable: "e2", Type: "B", Duration: dist(8, 0)},
		pattern.Instantiate{Variable: "c1", Type: "C", Duration: dist(5, 0)},
		pattern.Instantiate{Variable: "e1", Type: "A", Duration: dist(3, 0)},
		pattern.Instantiate{Variable: "d", Type: "A", Duration: dist(2, 0)},
		pattern.Relation{Variable: "e2", Op: allen.MetBy, Operands: []string{"e2", "c1"}},
		pattern.Relation{Variable: "e1", Op: allen.During, Operands: []string{"e1", "e2"}},
		pattern.Relation{Variable: "d", Op: allen.After, Operands: []string{"d", "e2"}, Gap: dist(4, 0)},
	}
	events, err := p.Compile(instructions)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want one per variable (4)", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].End < events[i-1].End {
			t.Fatalf("events not sorted by end: %v", events)
		}
	}

	byType := map[string][]event.Event{}
	for _, e := range events {
		byType[e.Type] = append(byType[e.Type], e)
	}
	c1, e2 := byType["C"][0], byType["B"][0]
	if c1.Start != 0 || c1.End != 5 {
		t.Fatalf("c1: got %s, want [0, 5)", c1)
	}
	if e2.Start != 5 || e2.End != 13 {
		t.Fatalf("e2 met by c1: got %s, want [5, 13)", e2)
	}
	last := events[len(events)-1]
	if last.Start != 17 || last.End != 19 {
		t.Fatalf("d after e2 with gap 4: got %s, want [17, 19)", last)
	}
}

func TestCompileErrors(t *testing.T) {
	p := newParser(t, 6)
	tests := []struct {
		name  string
		instr []pattern.Instruction
		want  error
	}{
		{"empty", nil, pattern.ErrEmptyPattern},
		{"unbound", []pattern.Instruction{
			pattern.Instantiate{Variable: "a", Type: "A"},
			pattern.Relation{Variable: "a", Op: allen.MetBy, Operands: []string{"a", "b"}},
		}, pattern.ErrMalformedInstruction},
		{"containment", []pattern.Instruction{
			pattern.Instantiate{Variable: "a", Type: "A", Duration: dist(9, 0)},
			pattern.Instantiate{Variable: "b", Type: "A", Duration: dist(2, 0)},
			pattern.Relation{Variable: "a", Op: allen.During, Operands: []string{"a", "b"}},
		}, allen.ErrContainmentViolation},
		{"unknown symbol", []pattern.Instruction{
			pattern.Instantiate{Variable: "a", Type: "Q"},
		}, ErrUnknownSymbol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Compile(tt.instr); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCompileIsReproducible(t *testing.T) {
	instr := []pattern.Instruction{
		pattern.Instantiate{Variable: "a"},
		pattern.Instantiate{Variable: "b", Duration: dist(4, 2)},
		pattern.Relation{Variable: "b", Op: allen.After, Operands: []string{"b", "a"}, Gap: dist(2, 1)},
	}
	a, err := newParser(t, 42).Compile(instr)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	b, err := newParser(t, 42).Compile(instr)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Fatalf("event %d differs under the same seed: %s vs %s", i, a[i], b[i])
		}
	}
}
