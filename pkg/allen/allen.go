// Package allen places one event relative to another using a subset of
// Allen's interval relations.
//
// Every relation takes the event to move ("second") and an already placed
// reference ("first") and returns a copy of second at its new position. Type,
// attributes and duration of second are preserved.
package allen

import (
	"errors"
	"fmt"

	"github.com/boristopalov/openthechests/pkg/event"
	"github.com/boristopalov/openthechests/pkg/sampling"
)

var (
	// ErrContainmentViolation is returned by During when second is longer than first.
	ErrContainmentViolation = errors.New("allen: contained event longer than container")
	// ErrMissingGap is returned by After when no gap distribution is given.
	ErrMissingGap = errors.New("allen: after requires a gap distribution")
	// ErrUnknownOp is returned for an operator name outside the supported set.
	ErrUnknownOp = errors.New("allen: unknown relation")
)

// Op names a relation as it appears in instruction records.
type Op string

const (
	After      Op = "after"
	During     Op = "during"
	MetBy      Op = "met_by"
	Overlapped Op = "overlapped"
)

// Ops lists the supported relations.
var Ops = []Op{After, During, MetBy, Overlapped}

// ParseOp maps a command name to an Op.
func ParseOp(name string) (Op, error) {
	for _, op := range Ops {
		if string(op) == name {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOp, name)
}

// Params carries the optional arguments of a relation.
type Params struct {
	Gap *sampling.Dist
}

// Apply dispatches to the relation named by op.
func Apply(rng *sampling.Rng, op Op, second, first event.Event, params Params) (event.Event, error) {
	switch op {
	case After:
		if params.Gap == nil {
			return event.Event{}, ErrMissingGap
		}
		return PlaceAfter(rng, second, first, *params.Gap)
	case During:
		return PlaceDuring(rng, second, first)
	case MetBy:
		return PlaceMetBy(second, first)
	case Overlapped:
		return PlaceOverlapped(rng, second, first)
	}
	return event.Event{}, fmt.Errorf("%w: %q", ErrUnknownOp, op)
}

// PlaceAfter starts second a truncated-normal gap after first ends.
func PlaceAfter(rng *sampling.Rng, second, first event.Event, gap sampling.Dist) (event.Event, error) {
	g, err := rng.TruncatedNormal(gap)
	if err != nil {
		return event.Event{}, fmt.Errorf("after: %w", err)
	}
	return second.At(first.End + g)
}

// PlaceDuring puts second at a uniform offset inside first.
func PlaceDuring(rng *sampling.Rng, second, first event.Event) (event.Event, error) {
	slack := event.Tolerance * max(1, first.Duration())
	if first.Duration()+slack < second.Duration() {
		return event.Event{}, fmt.Errorf("%w: %g < %g", ErrContainmentViolation, first.Duration(), second.Duration())
	}
	offset := rng.Uniform(0, max(0, first.Duration()-second.Duration()))
	return second.At(first.Start + offset)
}

// PlaceMetBy starts second exactly when first ends.
func PlaceMetBy(second, first event.Event) (event.Event, error) {
	return second.At(first.End)
}

// PlaceOverlapped starts second uniformly in
// [max(0, first.End - second.Start), first.End], evaluated before second
// is moved.
func PlaceOverlapped(rng *sampling.Rng, second, first event.Event) (event.Event, error) {
	earliest := max(0, first.End-second.Start)
	return second.At(rng.Uniform(earliest, first.End))
}
