package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boristopalov/openthechests/pkg/event"
)

// ErrInvalidAction is returned for an action that does not match the box count.
var ErrInvalidAction = errors.New("invalid action")

// Action holds one press decision per box; true presses the button.
type Action []bool

// DecodeAction expands a discrete action into its binary form, most
// significant bit first and left-padded with zeros to boxes entries. Box 0
// is the leftmost bit.
func DecodeAction(n, boxes int) (Action, error) {
	if boxes <= 0 || boxes >= 63 {
		return nil, fmt.Errorf("%w: %d boxes", ErrInvalidAction, boxes)
	}
	if n < 0 || n >= 1<<boxes {
		return nil, fmt.Errorf("%w: %d outside [0, %d)", ErrInvalidAction, n, 1<<boxes)
	}
	a := make(Action, boxes)
	for i := 0; i < boxes; i++ {
		a[boxes-1-i] = n&(1<<i) != 0
	}
	return a, nil
}

// ParseAction reads a bit string such as "010" or "0 1 0".
func ParseAction(s string, boxes int) (Action, error) {
	s = strings.Join(strings.Fields(s), "")
	if len(s) != boxes {
		return nil, fmt.Errorf("%w: got %d bits for %d boxes", ErrInvalidAction, len(s), boxes)
	}
	a := make(Action, boxes)
	for i, c := range s {
		switch c {
		case '0':
		case '1':
			a[i] = true
		default:
			return nil, fmt.Errorf("%w: %q is not a bit", ErrInvalidAction, c)
		}
	}
	return a, nil
}

// Int is the inverse of DecodeAction.
func (a Action) Int() int {
	n := 0
	for _, pressed := range a {
		n <<= 1
		if pressed {
			n |= 1
		}
	}
	return n
}

func (a Action) String() string {
	var b strings.Builder
	for _, pressed := range a {
		if pressed {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Observation is what a player sees after a step: which boxes are active
// and open, and the last event in labelled form. HasContext is false until
// the first event has been observed.
type Observation struct {
	Active     []bool
	Open       []bool
	Context    event.Labelled
	HasContext bool
}

// Flatten turns the observation into a single-level map of numeric arrays:
// "active", "open", "e_type", one key per attribute, "start", "end" and
// "duration". Scalars become length-1 arrays. The key set is the one of
// Context, so observations from one environment all have the same keys.
func (o Observation) Flatten() map[string][]float64 {
	out := map[string][]float64{
		"active": boolsToFloats(o.Active),
		"open":   boolsToFloats(o.Open),
	}
	for k, v := range o.Context.Record() {
		out[k] = []float64{v}
	}
	return out
}

func boolsToFloats(bs []bool) []float64 {
	out := make([]float64, len(bs))
	for i, b := range bs {
		if b {
			out[i] = 1
		}
	}
	return out
}

// BoxState is a read-only view of one box.
type BoxState struct {
	ID            int
	Phase         string
	Open          bool
	Ready         bool
	Active        bool
	Deactivations int
}

// Snapshot is everything a renderer needs to draw one step. It shares no
// memory with the environment that produced it.
type Snapshot struct {
	Step       int
	Time       float64
	Context    event.Event
	LastAction Action
	Reward     int
	Done       bool
	Boxes      []BoxState
	History    [][]event.Event
}

type ExperimentStatus struct {
	Running   bool
	StartTime time.Time
	EndTime   time.Time
	Episodes  int
	Completed int
	Errors    []error
}
