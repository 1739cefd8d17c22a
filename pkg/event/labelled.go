package event

import "sort"

// NoLabel stands for a missing type or attribute value in a Labelled event.
const NoLabel = -1

// Labelled is the integer form of an Event handed to agents: the type and
// every attribute value are replaced by their index in the vocabulary.
type Labelled struct {
	Type       int
	Attributes map[string]int
	Start      float64
	End        float64
}

// Duration is End - Start.
func (l Labelled) Duration() float64 { return l.End - l.Start }

// AttributeNames returns the attribute keys in sorted order.
func (l Labelled) AttributeNames() []string {
	names := make([]string, 0, len(l.Attributes))
	for k := range l.Attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Record flattens the labelled event into numeric fields keyed like
// Event.Record.
func (l Labelled) Record() map[string]float64 {
	rec := make(map[string]float64, len(l.Attributes)+4)
	rec["e_type"] = float64(l.Type)
	for k, v := range l.Attributes {
		rec[k] = float64(v)
	}
	rec["start"] = l.Start
	rec["end"] = l.End
	rec["duration"] = l.Duration()
	return rec
}
