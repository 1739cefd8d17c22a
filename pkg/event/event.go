// Package event defines the typed, attributed time intervals that make up a
// box's timeline.
//
// An Event covers [Start, End) on the simulation clock. Events are ordered by
// End: the event that finishes first is the next one a player observes.
// Events are values; Shifted returns a translated copy and never mutates the
// receiver.
package event

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var (
	// ErrInvalidInterval is returned when an event would end before it starts.
	ErrInvalidInterval = errors.New("event: start after end")
	// ErrNegativeStart is returned when a shift would move an event before time 0.
	ErrNegativeStart = errors.New("event: negative start")
)

// EmptyType is the type of the sentinel event returned once every timeline
// has been disabled.
const EmptyType = "Empty"

// Tolerance is the absolute slack used when comparing event times.
const Tolerance = 1e-9

// Event is a symbolic event: its type and attribute values are the strings
// found in the configuration vocabulary.
type Event struct {
	Type       string
	Attributes map[string]string
	Start      float64
	End        float64
}

// New creates an event, rejecting intervals where start > end.
func New(typ string, attributes map[string]string, start, end float64) (Event, error) {
	if start > end {
		return Event{}, fmt.Errorf("%w: [%g, %g)", ErrInvalidInterval, start, end)
	}
	return Event{
		Type:       typ,
		Attributes: cloneAttributes(attributes),
		Start:      start,
		End:        end,
	}, nil
}

// Empty returns the sentinel event produced when no timeline is live.
func Empty() Event {
	return Event{Type: EmptyType, Attributes: map[string]string{}}
}

// IsEmpty reports whether e is the Empty sentinel.
func (e Event) IsEmpty() bool { return e.Type == EmptyType }

// Duration is End - Start.
func (e Event) Duration() float64 { return e.End - e.Start }

// Shifted returns a copy of e translated by delta.
func (e Event) Shifted(delta float64) (Event, error) {
	if e.Start+delta < 0 {
		return Event{}, fmt.Errorf("%w: shifting %s by %g starts at %g", ErrNegativeStart, e, delta, e.Start+delta)
	}
	return Event{
		Type:       e.Type,
		Attributes: cloneAttributes(e.Attributes),
		Start:      e.Start + delta,
		End:        e.End + delta,
	}, nil
}

// At returns a copy of e moved so that it starts at start. The duration is
// carried over as is rather than recomputed from shifted endpoints.
func (e Event) At(start float64) (Event, error) {
	if start < 0 {
		return Event{}, fmt.Errorf("%w: moving %s to %g", ErrNegativeStart, e, start)
	}
	return New(e.Type, e.Attributes, start, start+e.Duration())
}

// Less orders events by end time.
func (e Event) Less(other Event) bool { return e.End < other.End }

// Equal compares type, attributes and times within Tolerance.
func (e Event) Equal(other Event) bool {
	if e.Type != other.Type || len(e.Attributes) != len(other.Attributes) {
		return false
	}
	for k, v := range e.Attributes {
		if ov, ok := other.Attributes[k]; !ok || ov != v {
			return false
		}
	}
	return approx(e.Start, other.Start) && approx(e.End, other.End)
}

// Record flattens the event into the key/value form used at the observation
// boundary: the type under "e_type", one entry per attribute, then start, end
// and duration.
func (e Event) Record() map[string]any {
	rec := make(map[string]any, len(e.Attributes)+4)
	rec["e_type"] = e.Type
	for k, v := range e.Attributes {
		rec[k] = v
	}
	rec["start"] = e.Start
	rec["end"] = e.End
	rec["duration"] = e.Duration()
	return rec
}

func (e Event) String() string {
	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]string, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, k+"="+e.Attributes[k])
	}
	return fmt.Sprintf("%s{%s}[%.3f, %.3f)", e.Type, strings.Join(attrs, " "), e.Start, e.End)
}

// SortByEnd sorts events by end time, keeping insertion order on ties.
func SortByEnd(events []Event) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Less(events[j]) })
}

func cloneAttributes(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func approx(a, b float64) bool {
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b
	}
	return math.Abs(a-b) <= Tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
