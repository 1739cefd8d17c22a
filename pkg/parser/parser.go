// Package parser turns box instructions into concrete, time-stamped events.
//
// The Parser owns the symbol vocabulary: the event and noise types and the
// attribute domains. It draws missing types and attributes from that
// vocabulary, samples durations, interprets the relation instructions, and
// translates events to and from their integer labels.
package parser

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/boristopalov/openthechests/pkg/allen"
	"github.com/boristopalov/openthechests/pkg/event"
	"github.com/boristopalov/openthechests/pkg/pattern"
	"github.com/boristopalov/openthechests/pkg/sampling"
)

var (
	// ErrUnknownSymbol is returned when a type or attribute value is not in the vocabulary.
	ErrUnknownSymbol = errors.New("parser: unknown symbol")
	// ErrEmptyVocabulary is returned when a draw is requested from an empty vocabulary.
	ErrEmptyVocabulary = errors.New("parser: empty vocabulary")
)

// Vocabulary lists every symbol an environment can emit.
type Vocabulary struct {
	EventTypes      []string
	NoiseTypes      []string
	EventAttributes map[string][]string
	NoiseAttributes map[string][]string
}

// Parser is not goroutine-safe; each environment owns its own.
type Parser struct {
	vocab Vocabulary
	rng   *sampling.Rng

	allTypes      []string
	allAttributes map[string][]string

	// sorted attribute names, so draws are reproducible for a given seed
	eventAttrNames []string
	noiseAttrNames []string

	minDuration float64
	maxDuration float64
}

// New builds a parser over vocab. At least one event type is required.
func New(vocab Vocabulary, rng *sampling.Rng) (*Parser, error) {
	if len(vocab.EventTypes) == 0 {
		return nil, fmt.Errorf("%w: no event types", ErrEmptyVocabulary)
	}
	for name, values := range vocab.EventAttributes {
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: attribute %q has no values", ErrEmptyVocabulary, name)
		}
	}
	for name, values := range vocab.NoiseAttributes {
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: noise attribute %q has no values", ErrEmptyVocabulary, name)
		}
	}

	p := &Parser{
		vocab:         vocab,
		rng:           rng,
		allTypes:      append(slices.Clone(vocab.EventTypes), vocab.NoiseTypes...),
		allAttributes: map[string][]string{},
		minDuration:   1,
		maxDuration:   1,
	}
	for name, values := range vocab.EventAttributes {
		p.allAttributes[name] = slices.Clone(values)
	}
	for name, values := range vocab.NoiseAttributes {
		p.allAttributes[name] = append(p.allAttributes[name], values...)
	}
	p.eventAttrNames = sortedNames(vocab.EventAttributes)
	p.noiseAttrNames = sortedNames(vocab.NoiseAttributes)
	return p, nil
}

// Types returns event types followed by noise types; a type's label is its
// index in this slice.
func (p *Parser) Types() []string { return slices.Clone(p.allTypes) }

// Attributes returns every attribute domain, event values followed by noise
// values; a value's label is its index in its domain.
func (p *Parser) Attributes() map[string][]string {
	out := make(map[string][]string, len(p.allAttributes))
	for k, v := range p.allAttributes {
		out[k] = slices.Clone(v)
	}
	return out
}

// Label converts e to its integer form.
func (p *Parser) Label(e event.Event) (event.Labelled, error) {
	typ := slices.Index(p.allTypes, e.Type)
	if typ < 0 {
		return event.Labelled{}, fmt.Errorf("%w: type %q", ErrUnknownSymbol, e.Type)
	}
	attrs := make(map[string]int, len(e.Attributes))
	for k, v := range e.Attributes {
		domain, ok := p.allAttributes[k]
		if !ok {
			return event.Labelled{}, fmt.Errorf("%w: attribute %q", ErrUnknownSymbol, k)
		}
		idx := slices.Index(domain, v)
		if idx < 0 {
			return event.Labelled{}, fmt.Errorf("%w: %s=%q", ErrUnknownSymbol, k, v)
		}
		attrs[k] = idx
	}
	return event.Labelled{Type: typ, Attributes: attrs, Start: e.Start, End: e.End}, nil
}

// Unlabel converts a labelled event back to its symbolic form. Attributes
// labelled event.NoLabel are left out.
func (p *Parser) Unlabel(l event.Labelled) (event.Event, error) {
	if l.Type < 0 || l.Type >= len(p.allTypes) {
		return event.Event{}, fmt.Errorf("%w: type label %d", ErrUnknownSymbol, l.Type)
	}
	attrs := make(map[string]string, len(l.Attributes))
	for k, v := range l.Attributes {
		if v == event.NoLabel {
			continue
		}
		domain, ok := p.allAttributes[k]
		if !ok || v < 0 || v >= len(domain) {
			return event.Event{}, fmt.Errorf("%w: %s label %d", ErrUnknownSymbol, k, v)
		}
		attrs[k] = domain[v]
	}
	return event.New(p.allTypes[l.Type], attrs, l.Start, l.End)
}

// MakeEvent draws an event starting at 0. An empty typ is drawn from the
// event types, missing attributes from their domains. A nil dist is
// synthesised from the range of durations requested so far.
func (p *Parser) MakeEvent(typ string, attributes map[string]string, dist *sampling.Dist) (event.Event, error) {
	if err := p.checkEventValues(typ, attributes); err != nil {
		return event.Event{}, err
	}
	if typ == "" {
		typ = sampling.Choice(p.rng, p.vocab.EventTypes)
	}
	attrs := make(map[string]string, len(p.eventAttrNames))
	for k, v := range attributes {
		attrs[k] = v
	}
	for _, name := range p.eventAttrNames {
		if _, ok := attrs[name]; !ok {
			attrs[name] = sampling.Choice(p.rng, p.vocab.EventAttributes[name])
		}
	}

	var d sampling.Dist
	if dist != nil {
		d = *dist
		p.recordDuration(d.Mu)
	} else {
		d = p.durationDist()
	}
	duration, err := p.rng.TruncatedNormal(d)
	if err != nil {
		return event.Event{}, fmt.Errorf("duration of %s: %w", typ, err)
	}
	return event.New(typ, attrs, 0, duration)
}

// MakeNoise draws a noise event contained in [0, before).
func (p *Parser) MakeNoise(before float64) (event.Event, error) {
	if len(p.vocab.NoiseTypes) == 0 {
		return event.Event{}, fmt.Errorf("%w: no noise types", ErrEmptyVocabulary)
	}
	t1, t2 := p.rng.Uniform(0, before), p.rng.Uniform(0, before)
	typ := sampling.Choice(p.rng, p.vocab.NoiseTypes)
	attrs := make(map[string]string, len(p.noiseAttrNames))
	for _, name := range p.noiseAttrNames {
		attrs[name] = sampling.Choice(p.rng, p.vocab.NoiseAttributes[name])
	}
	return event.New(typ, attrs, min(t1, t2), max(t1, t2))
}

// Compile interprets instructions and returns one event per distinct
// variable, sorted by end time. Relations rebind their variable, so a name
// is never counted twice.
func (p *Parser) Compile(instructions []pattern.Instruction) ([]event.Event, error) {
	vars := map[string]event.Event{}
	var order []string
	bind := func(name string, e event.Event) {
		if _, ok := vars[name]; !ok {
			order = append(order, name)
		}
		vars[name] = e
	}

	for i, ins := range instructions {
		switch v := ins.(type) {
		case pattern.Instantiate:
			e, err := p.MakeEvent(v.Type, v.Attributes, v.Duration)
			if err != nil {
				return nil, fmt.Errorf("instruction %d (instantiate %s): %w", i, v.Variable, err)
			}
			bind(v.Variable, e)
		case pattern.Relation:
			if len(v.Operands) != 2 {
				return nil, fmt.Errorf("%w: instruction %d: %s takes 2 operands", pattern.ErrMalformedInstruction, i, v.Op)
			}
			second, ok := vars[v.Operands[0]]
			if !ok {
				return nil, fmt.Errorf("%w: instruction %d: unbound variable %q", pattern.ErrMalformedInstruction, i, v.Operands[0])
			}
			first, ok := vars[v.Operands[1]]
			if !ok {
				return nil, fmt.Errorf("%w: instruction %d: unbound variable %q", pattern.ErrMalformedInstruction, i, v.Operands[1])
			}
			e, err := allen.Apply(p.rng, v.Op, second, first, allen.Params{Gap: v.Gap})
			if err != nil {
				return nil, fmt.Errorf("instruction %d (%s %s): %w", i, v.Op, v.Variable, err)
			}
			bind(v.Variable, e)
		case pattern.Delay, pattern.Noise:
			// control commands carry no events
		default:
			return nil, fmt.Errorf("%w: instruction %d: %s", pattern.ErrUnknownCommand, i, ins.Command())
		}
	}

	if len(order) == 0 {
		return nil, pattern.ErrEmptyPattern
	}
	events := make([]event.Event, 0, len(order))
	for _, name := range order {
		events = append(events, vars[name])
	}
	event.SortByEnd(events)
	return events, nil
}

func (p *Parser) checkEventValues(typ string, attributes map[string]string) error {
	if typ != "" && !slices.Contains(p.vocab.EventTypes, typ) {
		return fmt.Errorf("%w: event type %q not in %v", ErrUnknownSymbol, typ, p.vocab.EventTypes)
	}
	for k, v := range attributes {
		domain, ok := p.vocab.EventAttributes[k]
		if !ok {
			return fmt.Errorf("%w: attribute %q", ErrUnknownSymbol, k)
		}
		if !slices.Contains(domain, v) {
			return fmt.Errorf("%w: %s=%q not in %v", ErrUnknownSymbol, k, v, domain)
		}
	}
	return nil
}

func (p *Parser) recordDuration(d float64) {
	p.minDuration = min(p.minDuration, d)
	p.maxDuration = max(p.maxDuration, d)
}

func (p *Parser) durationDist() sampling.Dist {
	sigma := (p.maxDuration - p.minDuration) / 2
	return sampling.Dist{Mu: p.minDuration + sigma, Sigma: sigma}
}

func sortedNames(m map[string][]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
