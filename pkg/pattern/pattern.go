// Package pattern holds the compiled configuration of one box: the event
// instructions plus the regeneration delay and noise ratio that control how
// often and how noisily the pattern is replayed.
package pattern

import (
	"fmt"
	"strings"

	"github.com/boristopalov/openthechests/pkg/allen"
	"github.com/boristopalov/openthechests/pkg/event"
	"github.com/boristopalov/openthechests/pkg/sampling"
)

// Pattern is immutable after New apart from the display history.
type Pattern struct {
	id           int
	instructions []Instruction
	timeout      float64
	noise        float64

	// display only
	fullPattern []event.Event
}

// New validates instructions and extracts the delay and noise commands.
// Exactly one Delay and one Noise are required, at least one Instantiate,
// and every relation must reference variables bound earlier.
func New(id int, instructions []Instruction) (*Pattern, error) {
	p := &Pattern{id: id}
	var haveDelay, haveNoise bool
	bound := map[string]bool{}

	for i, ins := range instructions {
		switch v := ins.(type) {
		case Delay:
			if haveDelay {
				return nil, fmt.Errorf("%w: pattern %d: more than one delay", ErrMalformedInstruction, id)
			}
			if v.Timeout < 0 {
				return nil, fmt.Errorf("%w: pattern %d: negative delay %g", ErrMalformedInstruction, id, v.Timeout)
			}
			haveDelay = true
			p.timeout = v.Timeout
		case Noise:
			if haveNoise {
				return nil, fmt.Errorf("%w: pattern %d: more than one noise", ErrMalformedInstruction, id)
			}
			if v.Ratio < 0 || v.Ratio > 1 {
				return nil, fmt.Errorf("%w: pattern %d: noise ratio %g outside [0, 1]", ErrMalformedInstruction, id, v.Ratio)
			}
			haveNoise = true
			p.noise = v.Ratio
		case Instantiate:
			if v.Variable == "" {
				return nil, fmt.Errorf("%w: pattern %d: instruction %d: instantiate without variable", ErrMalformedInstruction, id, i)
			}
			if v.Duration != nil {
				if err := v.Duration.Validate(); err != nil {
					return nil, fmt.Errorf("pattern %d: instantiate %s: %w", id, v.Variable, err)
				}
			}
			bound[v.Variable] = true
			p.instructions = append(p.instructions, v)
		case Relation:
			if err := checkRelation(v, bound); err != nil {
				return nil, fmt.Errorf("pattern %d: instruction %d: %w", id, i, err)
			}
			bound[v.Variable] = true
			p.instructions = append(p.instructions, v)
		default:
			return nil, fmt.Errorf("%w: pattern %d: %T", ErrUnknownCommand, id, ins)
		}
	}

	if !haveDelay {
		return nil, fmt.Errorf("%w: pattern %d: missing delay", ErrMalformedInstruction, id)
	}
	if !haveNoise {
		return nil, fmt.Errorf("%w: pattern %d: missing noise", ErrMalformedInstruction, id)
	}
	if len(bound) == 0 {
		return nil, fmt.Errorf("%w: pattern %d", ErrEmptyPattern, id)
	}
	return p, nil
}

func checkRelation(r Relation, bound map[string]bool) error {
	if len(r.Operands) != 2 {
		return fmt.Errorf("%w: %s takes 2 operands, got %d", ErrMalformedInstruction, r.Op, len(r.Operands))
	}
	for _, name := range r.Operands {
		if !bound[name] {
			return fmt.Errorf("%w: %s references unbound variable %q (bound: %s)",
				ErrMalformedInstruction, r.Op, name, strings.Join(sortedKeys(bound), ", "))
		}
	}
	if r.Variable == "" {
		return fmt.Errorf("%w: %s without variable", ErrMalformedInstruction, r.Op)
	}
	if r.Op == allen.After {
		if r.Gap == nil {
			return fmt.Errorf("%w: after without gap_dist", ErrMalformedInstruction)
		}
		if err := r.Gap.Validate(); err != nil {
			return fmt.Errorf("after gap: %w", err)
		}
	}
	return nil
}

// ID identifies the pattern and its box.
func (p *Pattern) ID() int { return p.id }

// Timeout is the maximum regeneration delay.
func (p *Pattern) Timeout() float64 { return p.timeout }

// Noise is the noise injection probability.
func (p *Pattern) Noise() float64 { return p.noise }

// Instructions returns the event instructions, delay and noise stripped.
func (p *Pattern) Instructions() []Instruction {
	out := make([]Instruction, len(p.instructions))
	copy(out, p.instructions)
	return out
}

// Variables returns the distinct variable names in binding order.
func (p *Pattern) Variables() []string { return variables(p.instructions) }

// SampleTimeout draws a regeneration delay in [0, Timeout).
func (p *Pattern) SampleTimeout(rng *sampling.Rng) float64 {
	return rng.Uniform(0, p.timeout)
}

// FullPattern returns the last generated batch, preceded by the event that
// ended the batch before it.
func (p *Pattern) FullPattern() []event.Event {
	out := make([]event.Event, len(p.fullPattern))
	copy(out, p.fullPattern)
	return out
}

// SetFullPattern records the display history.
func (p *Pattern) SetFullPattern(events []event.Event) {
	p.fullPattern = events
}

// Reset clears the display history. Instructions are untouched.
func (p *Pattern) Reset() {
	p.fullPattern = nil
}
