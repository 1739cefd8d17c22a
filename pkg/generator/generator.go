// Package generator merges the event streams of every pattern into one
// timeline ordered by end time.
//
// Each live pattern owns a stack of pending events sorted by end time. Every
// call to NextEvent pops the globally earliest-ending head. When a stack runs
// dry its pattern is reported satisfied and a fresh batch is generated after
// a random delay, so each stream is infinite until its timeline is disabled.
package generator

import (
	"fmt"
	"io"
	"log"

	"github.com/boristopalov/openthechests/pkg/event"
	"github.com/boristopalov/openthechests/pkg/parser"
	"github.com/boristopalov/openthechests/pkg/pattern"
	"github.com/boristopalov/openthechests/pkg/sampling"
)

// Signal is emitted for a pattern during a merge step.
type Signal string

const (
	// SignalActive means the pattern's next event has already begun.
	SignalActive Signal = "active"
	// SignalSatisfied means the pattern's last pending event was just emitted.
	SignalSatisfied Signal = "satisfied"
)

// Signals maps a pattern id to the signals raised for it in one step.
type Signals map[int][]Signal

// Has reports whether s was raised for pattern id.
func (s Signals) Has(id int, sig Signal) bool {
	for _, got := range s[id] {
		if got == sig {
			return true
		}
	}
	return false
}

// Generator is not goroutine-safe.
type Generator struct {
	parser   *parser.Parser
	rng      *sampling.Rng
	patterns []*pattern.Pattern
	byID     map[int]*pattern.Pattern
	stacks   map[int][]event.Event
	logger   *log.Logger
}

type Option func(*Generator)

// WithLogger sets the logger used for refill and merge traces.
func WithLogger(l *log.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// New creates a generator over patterns. Pattern ids must be unique; their
// order fixes how ties between equal end times are broken.
func New(p *parser.Parser, patterns []*pattern.Pattern, rng *sampling.Rng, opts ...Option) (*Generator, error) {
	g := &Generator{
		parser:   p,
		rng:      rng,
		patterns: patterns,
		byID:     make(map[int]*pattern.Pattern, len(patterns)),
		stacks:   make(map[int][]event.Event, len(patterns)),
		logger:   log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(g)
	}
	for _, pat := range patterns {
		if _, dup := g.byID[pat.ID()]; dup {
			return nil, fmt.Errorf("generator: duplicate pattern id %d", pat.ID())
		}
		g.byID[pat.ID()] = pat
	}
	return g, nil
}

// Reset refills every pattern's stack from a random phase in [0, timeout).
func (g *Generator) Reset() error {
	g.stacks = make(map[int][]event.Event, len(g.patterns))
	for _, pat := range g.patterns {
		pat.Reset()
		stack, err := g.FillStack(pat.SampleTimeout(g.rng), pat, nil)
		if err != nil {
			return fmt.Errorf("reset pattern %d: %w", pat.ID(), err)
		}
		g.stacks[pat.ID()] = stack
	}
	return nil
}

// FillStack generates one batch of pat after t plus a regeneration delay,
// mixes in noise, and returns it sorted by end time. last, when given, is
// kept at the head of the pattern's display history.
func (g *Generator) FillStack(t float64, pat *pattern.Pattern, last *event.Event) ([]event.Event, error) {
	t += pat.SampleTimeout(g.rng)

	compiled, err := g.parser.Compile(pat.Instructions())
	if err != nil {
		return nil, err
	}
	if len(compiled) == 0 {
		return nil, pattern.ErrEmptyPattern
	}
	patternEnd := compiled[len(compiled)-1].End

	events := make([]event.Event, 0, len(compiled))
	for _, e := range compiled {
		shifted, err := e.Shifted(t)
		if err != nil {
			return nil, err
		}
		events = append(events, shifted)
	}

	k := g.rng.Binomial(len(compiled), pat.Noise())
	noise := make([]event.Event, 0, k)
	for i := 0; i < k; i++ {
		n, err := g.parser.MakeNoise(patternEnd)
		if err != nil {
			return nil, fmt.Errorf("noise for pattern %d: %w", pat.ID(), err)
		}
		shifted, err := n.Shifted(t)
		if err != nil {
			return nil, err
		}
		noise = append(noise, shifted)
	}

	history := make([]event.Event, 0, len(events)+1)
	if last != nil {
		history = append(history, *last)
	}
	pat.SetFullPattern(append(history, events...))

	stack := append(noise, events...)
	event.SortByEnd(stack)
	g.logger.Printf("pattern %d: sampled %d events (%d noise) from t=%.3f", pat.ID(), len(stack), k, t)
	return stack, nil
}

// NextEvent pops the earliest-ending pending event across live patterns.
// When every timeline is disabled it returns event.Empty and no signals.
func (g *Generator) NextEvent() (event.Event, Signals, error) {
	signals := Signals{}
	sampled, ok := g.earliest()
	if !ok {
		return event.Empty(), signals, nil
	}

	stack := g.stacks[sampled]
	next, rest := stack[0], stack[1:]

	// a failed refill leaves the stack untouched
	if len(rest) == 0 {
		g.logger.Printf("pattern %d: finished, generating next batch", sampled)
		refill, err := g.FillStack(next.End, g.byID[sampled], &next)
		if err != nil {
			return event.Event{}, nil, fmt.Errorf("refill pattern %d: %w", sampled, err)
		}
		signals[sampled] = append(signals[sampled], SignalSatisfied)
		rest = refill
	}
	g.stacks[sampled] = rest

	for _, pat := range g.patterns {
		id := pat.ID()
		if id == sampled {
			continue
		}
		if s, live := g.stacks[id]; live && s[0].Start <= next.End {
			signals[id] = append(signals[id], SignalActive)
		}
	}
	return next, signals, nil
}

// earliest returns the live pattern whose head ends first; the first
// pattern in construction order wins ties.
func (g *Generator) earliest() (int, bool) {
	best, found := 0, false
	var bestEnd float64
	for _, pat := range g.patterns {
		s, live := g.stacks[pat.ID()]
		if !live {
			continue
		}
		if !found || s[0].End < bestEnd {
			best, bestEnd, found = pat.ID(), s[0].End, true
		}
	}
	return best, found
}

// DisableTimeline removes a pattern from all future merges.
func (g *Generator) DisableTimeline(id int) {
	delete(g.stacks, id)
}

// Live reports whether the pattern's timeline is still merged.
func (g *Generator) Live(id int) bool {
	_, ok := g.stacks[id]
	return ok
}

// Timeline returns the head of every live stack.
func (g *Generator) Timeline() []event.Event {
	heads := make([]event.Event, 0, len(g.stacks))
	for _, pat := range g.patterns {
		if s, live := g.stacks[pat.ID()]; live {
			heads = append(heads, s[0])
		}
	}
	return heads
}

// Pending returns a copy of a pattern's stack, or nil if it is disabled.
func (g *Generator) Pending(id int) []event.Event {
	s, ok := g.stacks[id]
	if !ok {
		return nil
	}
	out := make([]event.Event, len(s))
	copy(out, s)
	return out
}
